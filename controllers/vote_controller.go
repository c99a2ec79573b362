package controllers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/ballot"
	"github.com/Kaung2240/VoteX/metrics"
	"github.com/Kaung2240/VoteX/models"
)

const (
	msgAlreadyVoted     = "You have already voted in this event"
	msgInvalidCandidate = "Invalid candidate"
	msgVotingClosed     = "Voting is not open for this event"
	msgBadEventToken    = "Invalid event token"
)

// CastVote handles POST /api/events/:id/vote/
func (h *Handler) CastVote(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	var input struct {
		Candidate  uint   `json:"candidate" binding:"required"`
		Anonymous  bool   `json:"anonymous"`
		EventToken string `json:"event_token"`
	}
	if !bindJSON(c, &input) {
		return
	}
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if event.IsPrivate && (event.EventToken == nil || input.EventToken != *event.EventToken) {
		detail(c, http.StatusForbidden, msgBadEventToken)
		return
	}
	if event.Status(h.now()) != models.StatusOngoing {
		detail(c, http.StatusBadRequest, msgVotingClosed)
		return
	}

	var voted int64
	if err := h.DB.WithContext(ctx).Model(&models.Vote{}).
		Where("voting_event_id = ? AND voter_id = ?", event.ID, user.ID).
		Count(&voted).Error; err != nil {
		h.serverError(c, err, "failed to check existing vote")
		return
	}
	if voted > 0 {
		detail(c, http.StatusBadRequest, msgAlreadyVoted)
		return
	}

	var candidate *models.Candidate
	for i := range event.Candidates {
		if event.Candidates[i].ID == input.Candidate {
			candidate = &event.Candidates[i]
			break
		}
	}
	if candidate == nil {
		detail(c, http.StatusBadRequest, msgInvalidCandidate)
		return
	}

	sealed, err := h.Sealer.Seal(event.ID, candidate.ID)
	if err != nil {
		h.serverError(c, err, "failed to seal vote")
		return
	}

	vote := models.Vote{
		VotingEventID: event.ID,
		CandidateID:   candidate.ID,
		VoterID:       user.ID,
		IsAnonymous:   input.Anonymous,
		EncryptedVote: base64.StdEncoding.EncodeToString(sealed.Box),
		Receipt:       sealed.Receipt,
	}
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		shares := make([]models.VoteShare, 0, len(sealed.Shares))
		for index, data := range sealed.Shares {
			shares = append(shares, models.VoteShare{
				VoteID:     vote.ID,
				ShareIndex: int(index),
				ShareData:  base64.StdEncoding.EncodeToString(data),
			})
		}
		if err := tx.Create(&shares).Error; err != nil {
			return err
		}
		return tx.Model(&models.Candidate{}).Where("id = ?", candidate.ID).
			UpdateColumn("votes_count", gorm.Expr("votes_count + ?", 1)).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		detail(c, http.StatusBadRequest, msgAlreadyVoted)
		return
	}
	if err != nil {
		h.serverError(c, err, "failed to record vote")
		return
	}

	h.logActivity(c, &user.ID, fmt.Sprintf("Voted in event %d", event.ID))
	h.invalidateResults(ctx, event.ID)
	metrics.VotesCast.WithLabelValues(strconv.FormatBool(input.Anonymous)).Inc()

	h.Logger.Info().Uint("event_id", event.ID).Uint("vote_id", vote.ID).Bool("anonymous", input.Anonymous).Msg("vote cast")
	c.JSON(http.StatusOK, gin.H{"status": "Vote Completed.", "receipt": sealed.Receipt})
}

// VerifyReceipt handles POST /api/events/:id/receipt/verify/. The receipt is
// checked against the digest rebuilt from the stored shares, and the sealed
// ballot is opened to report the candidate it was cast for.
func (h *Handler) VerifyReceipt(c *gin.Context) {
	eventID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Receipt string `json:"receipt" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	db := h.DB.WithContext(c.Request.Context())

	var vote models.Vote
	err := db.Preload("Candidate").
		Where("voting_event_id = ? AND receipt = ?", eventID, input.Receipt).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	if err != nil {
		h.serverError(c, err, "failed to look up receipt")
		return
	}

	var rows []models.VoteShare
	if err := db.Where("vote_id = ?", vote.ID).Order("share_index").Limit(h.Sealer.Threshold()).Find(&rows).Error; err != nil {
		h.serverError(c, err, "failed to load receipt shares")
		return
	}
	shares := make(map[byte][]byte, len(rows))
	for _, row := range rows {
		data, err := base64.StdEncoding.DecodeString(row.ShareData)
		if err != nil {
			h.serverError(c, err, "corrupt receipt share")
			return
		}
		shares[byte(row.ShareIndex)] = data
	}

	valid, err := h.Sealer.Verify(input.Receipt, shares)
	if err != nil && !errors.Is(err, ballot.ErrNotEnoughShare) {
		h.serverError(c, err, "failed to verify receipt")
		return
	}
	if !valid {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	box, err := base64.StdEncoding.DecodeString(vote.EncryptedVote)
	if err != nil {
		h.serverError(c, err, "corrupt sealed vote")
		return
	}
	sealedEvent, sealedCandidate, err := h.Sealer.Open(box)
	if err != nil || sealedEvent != vote.VotingEventID || sealedCandidate != vote.CandidateID || ballot.Receipt(box) != vote.Receipt {
		h.Logger.Warn().Err(err).Uint("vote_id", vote.ID).Msg("sealed vote does not match its record")
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"candidate": vote.Candidate.Name,
		"cast_at":   vote.CreatedAt,
	})
}

// logActivity records an action; failures are logged and never fail the
// request.
func (h *Handler) logActivity(c *gin.Context, userID *uint, action string) {
	entry := models.ActivityLog{UserID: userID, Action: action, IPAddress: clientIP(c), Timestamp: h.now()}
	if err := h.DB.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
		h.Logger.Warn().Err(err).Str("action", action).Msg("failed to write activity log")
	}
}
