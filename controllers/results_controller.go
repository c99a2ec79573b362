package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"

	"github.com/Kaung2240/VoteX/cache"
	"github.com/Kaung2240/VoteX/models"
	"github.com/Kaung2240/VoteX/tally"
)

// GetResults handles GET /api/events/:id/results/
func (h *Handler) GetResults(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.results(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr(c, err, "failed to compute results")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// StreamResults handles GET /api/events/:id/results/stream/ with
// Server-Sent Events. A summary is pushed on connect and then every
// ResultsInterval until the client goes away or the event has ended.
func (h *Handler) StreamResults(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	summary, err := h.results(ctx, id)
	if err != nil {
		h.notFoundOr(c, err, "failed to compute results")
		return
	}

	interval := h.Cfg.ResultsInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	first := true
	c.Stream(func(w io.Writer) bool {
		if !first {
			select {
			case <-ctx.Done():
				return false
			case <-ticker.C:
			}
			next, err := h.results(ctx, id)
			if err != nil {
				h.Logger.Warn().Err(err).Uint("event_id", id).Msg("results stream stopped")
				return false
			}
			summary = next
		}
		first = false
		c.SSEvent("results", summary)
		return summary.Status != models.StatusEnded
	})
}

// ExportResults handles GET /api/events/:id/results/export/ as CSV.
func (h *Handler) ExportResults(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.results(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr(c, err, "failed to compute results")
		return
	}

	body, err := gocsv.MarshalBytes(summary.Candidates)
	if err != nil {
		h.serverError(c, err, "failed to encode results")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="event-%d-results.csv"`, id))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}

// results returns the cached summary of an event, computing and caching it
// on a miss. Cache failures fall through to the database.
func (h *Handler) results(ctx context.Context, eventID uint) (tally.Summary, error) {
	key := cache.ResultsKey(eventID)
	var summary tally.Summary
	hit, err := h.Cache.Get(ctx, key, &summary)
	if err != nil {
		h.Logger.Warn().Err(err).Str("key", key).Msg("results cache read failed")
	}
	if hit {
		return summary, nil
	}

	db := h.DB.WithContext(ctx)
	var event models.VotingEvent
	if err := db.Preload("Candidates", orderByID).First(&event, eventID).Error; err != nil {
		return tally.Summary{}, err
	}
	var recent []models.Vote
	err = db.Preload("Voter").Preload("Candidate").
		Where("voting_event_id = ?", eventID).
		Order("created_at DESC").Order("id DESC").
		Limit(tally.RecentLimit).
		Find(&recent).Error
	if err != nil {
		return tally.Summary{}, fmt.Errorf("load recent votes: %w", err)
	}
	var voters int64
	if err := db.Model(&models.Vote{}).Where("voting_event_id = ?", eventID).Distinct("voter_id").Count(&voters).Error; err != nil {
		return tally.Summary{}, fmt.Errorf("count voters: %w", err)
	}

	summary = tally.Summarize(event, recent, int(voters), h.now())
	if err := h.Cache.Set(ctx, key, summary, h.Cfg.ResultsCacheTTL); err != nil {
		h.Logger.Warn().Err(err).Str("key", key).Msg("results cache write failed")
	}
	return summary, nil
}
