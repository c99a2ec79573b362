package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/cache"
	"github.com/Kaung2240/VoteX/middleware"
	"github.com/Kaung2240/VoteX/models"
)

var eventOrderings = map[string]string{
	"created_at":  "created_at",
	"start_time":  "start_time",
	"event_name":  "event_name",
	"-created_at": "created_at DESC",
	"-start_time": "start_time DESC",
	"-event_name": "event_name DESC",
}

type candidateInput struct {
	ID          *uint   `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ProfilePic  *string `json:"profile_pic"`
}

type eventInput struct {
	EventName  *string           `json:"event_name"`
	StartTime  *time.Time        `json:"start_time"`
	EndTime    *time.Time        `json:"end_time"`
	IsPrivate  *bool             `json:"is_private"`
	Categories *[]uint           `json:"categories"`
	Candidates *[]candidateInput `json:"candidates"`
}

// ListEvents handles GET /api/events/
func (h *Handler) ListEvents(c *gin.Context) {
	number, size, ok := pagination(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	now := h.now()

	query := h.DB.WithContext(ctx).Model(&models.VotingEvent{})
	switch c.Query("status") {
	case models.StatusOngoing:
		query = query.Where("start_time <= ? AND end_time >= ?", now, now)
	case models.StatusUpcoming:
		query = query.Where("start_time > ?", now)
	case models.StatusEnded:
		query = query.Where("end_time < ?", now)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("id IN (?)", h.DB.Table("event_categories").
			Select("event_categories.voting_event_id").
			Joins("JOIN categories ON categories.id = event_categories.category_id").
			Where("categories.name = ?", category))
	}
	if search := c.Query("search"); search != "" {
		query = query.Where(`LOWER(event_name) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToLower(search))+"%")
	}
	if isPrivate := c.Query("is_private"); isPrivate != "" {
		query = query.Where("is_private = ?", strings.EqualFold(isPrivate, "true"))
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		h.serverError(c, err, "failed to count events")
		return
	}

	order, known := eventOrderings[c.DefaultQuery("ordering", "-created_at")]
	if !known {
		order = "created_at DESC"
	}
	var events []models.VotingEvent
	err := query.Preload("Categories").Preload("Candidates", orderByID).
		Order(order).Order("id DESC").
		Offset((number - 1) * size).Limit(size).
		Find(&events).Error
	if err != nil {
		h.serverError(c, err, "failed to list events")
		return
	}

	viewer, _ := middleware.UserID(c)
	favorites, err := h.favoritedIDs(ctx, viewer, events)
	if err != nil {
		h.serverError(c, err, "failed to load favorites")
		return
	}
	results := make([]eventResponse, 0, len(events))
	for _, e := range events {
		results = append(results, serializeEvent(e, viewer, favorites[e.ID], now))
	}
	c.JSON(http.StatusOK, newPage(c, number, size, count, results))
}

// CreateEvent handles POST /api/events/
func (h *Handler) CreateEvent(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	var input eventInput
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()

	errs := validateEventInput(input, false, nil)
	categories, err := h.lookupCategories(ctx, input.Categories, errs)
	if err != nil {
		h.serverError(c, err, "failed to load categories")
		return
	}
	if len(errs) > 0 {
		badRequest(c, errs)
		return
	}

	event := models.VotingEvent{
		EventName:   strings.TrimSpace(*input.EventName),
		StartTime:   input.StartTime.UTC(),
		EndTime:     input.EndTime.UTC(),
		CreatedByID: user.ID,
		Categories:  categories,
	}
	if input.IsPrivate != nil && *input.IsPrivate {
		event.IsPrivate = true
		token := newEventToken()
		event.EventToken = &token
	}
	for _, ci := range *input.Candidates {
		event.Candidates = append(event.Candidates, newCandidate(ci))
	}

	if err := h.DB.WithContext(ctx).Create(&event).Error; err != nil {
		h.serverError(c, err, "failed to create event")
		return
	}

	h.Logger.Info().Uint("event_id", event.ID).Uint("user_id", user.ID).Bool("private", event.IsPrivate).Msg("event created")
	c.JSON(http.StatusCreated, serializeEvent(event, user.ID, false, h.now()))
}

// GetEvent handles GET /api/events/:id/
func (h *Handler) GetEvent(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	viewer, _ := middleware.UserID(c)
	favorites, err := h.favoritedIDs(c.Request.Context(), viewer, []models.VotingEvent{*event})
	if err != nil {
		h.serverError(c, err, "failed to load favorites")
		return
	}
	c.JSON(http.StatusOK, serializeEvent(*event, viewer, favorites[event.ID], h.now()))
}

// UpdateEvent handles PUT and PATCH /api/events/:id/. Categories are
// replaced when given; candidates with a known id are updated and the rest
// are created.
func (h *Handler) UpdateEvent(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	if event.CreatedByID != user.ID {
		detail(c, http.StatusForbidden, msgForbidden)
		return
	}
	var input eventInput
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()

	partial := c.Request.Method == http.MethodPatch
	errs := validateEventInput(input, partial, event)
	categories, err := h.lookupCategories(ctx, input.Categories, errs)
	if err != nil {
		h.serverError(c, err, "failed to load categories")
		return
	}
	existing := make(map[uint]*models.Candidate, len(event.Candidates))
	for i := range event.Candidates {
		existing[event.Candidates[i].ID] = &event.Candidates[i]
	}
	if input.Candidates != nil {
		for _, ci := range *input.Candidates {
			if ci.ID != nil && existing[*ci.ID] == nil {
				errs.add("candidates", fmt.Sprintf("Candidate %d does not belong to this event.", *ci.ID))
			}
		}
	}
	if len(errs) > 0 {
		badRequest(c, errs)
		return
	}

	if input.EventName != nil {
		event.EventName = strings.TrimSpace(*input.EventName)
	}
	if input.StartTime != nil {
		event.StartTime = input.StartTime.UTC()
	}
	if input.EndTime != nil {
		event.EndTime = input.EndTime.UTC()
	}
	if input.IsPrivate != nil {
		event.IsPrivate = *input.IsPrivate
		switch {
		case event.IsPrivate && event.EventToken == nil:
			token := newEventToken()
			event.EventToken = &token
		case !event.IsPrivate:
			event.EventToken = nil
		}
	}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(event).Select("event_name", "start_time", "end_time", "is_private", "event_token").Updates(event).Error; err != nil {
			return err
		}
		if input.Categories != nil {
			if err := tx.Model(event).Association("Categories").Replace(categories); err != nil {
				return err
			}
			event.Categories = categories
		}
		if input.Candidates == nil {
			return nil
		}
		var added []models.Candidate
		for _, ci := range *input.Candidates {
			if ci.ID != nil {
				current := existing[*ci.ID]
				applyCandidate(current, ci)
				if err := tx.Model(current).Select("name", "description", "profile_pic").Updates(current).Error; err != nil {
					return err
				}
				continue
			}
			candidate := newCandidate(ci)
			candidate.VotingEventID = event.ID
			if err := tx.Create(&candidate).Error; err != nil {
				return err
			}
			added = append(added, candidate)
		}
		event.Candidates = append(event.Candidates, added...)
		return nil
	})
	if err != nil {
		h.serverError(c, err, "failed to update event")
		return
	}
	h.invalidateResults(ctx, event.ID)

	favorites, err := h.favoritedIDs(ctx, user.ID, []models.VotingEvent{*event})
	if err != nil {
		h.serverError(c, err, "failed to load favorites")
		return
	}
	c.JSON(http.StatusOK, serializeEvent(*event, user.ID, favorites[event.ID], h.now()))
}

// DeleteEvent handles DELETE /api/events/:id/
func (h *Handler) DeleteEvent(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	if event.CreatedByID != user.ID {
		detail(c, http.StatusForbidden, msgForbidden)
		return
	}

	ctx := c.Request.Context()
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		voteIDs := tx.Model(&models.Vote{}).Select("id").Where("voting_event_id = ?", event.ID)
		steps := []*gorm.DB{
			tx.Where("vote_id IN (?)", voteIDs).Delete(&models.VoteShare{}),
			tx.Where("voting_event_id = ?", event.ID).Delete(&models.Vote{}),
			tx.Where("voting_event_id = ?", event.ID).Delete(&models.Candidate{}),
			tx.Where("event_id = ?", event.ID).Delete(&models.Comment{}),
			tx.Where("event_id = ?", event.ID).Delete(&models.Favorite{}),
			tx.Model(&models.Notification{}).Where("related_event_id = ?", event.ID).Update("related_event_id", nil),
		}
		for _, step := range steps {
			if step.Error != nil {
				return step.Error
			}
		}
		if err := tx.Model(event).Association("Categories").Clear(); err != nil {
			return err
		}
		return tx.Delete(event).Error
	})
	if err != nil {
		h.serverError(c, err, "failed to delete event")
		return
	}
	h.invalidateResults(ctx, event.ID)

	h.Logger.Info().Uint("event_id", event.ID).Uint("user_id", user.ID).Msg("event deleted")
	c.Status(http.StatusNoContent)
}

// FavoriteEvent handles POST and DELETE /api/events/:id/favorite/
func (h *Handler) FavoriteEvent(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	db := h.DB.WithContext(c.Request.Context())

	if c.Request.Method == http.MethodDelete {
		if err := db.Where("user_id = ? AND event_id = ?", user.ID, event.ID).Delete(&models.Favorite{}).Error; err != nil {
			h.serverError(c, err, "failed to unfavorite")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "unfavorited"})
		return
	}

	fav := models.Favorite{UserID: user.ID, EventID: event.ID}
	if err := db.Where(fav).FirstOrCreate(&fav).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		h.serverError(c, err, "failed to favorite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "favorited"})
}

// ListCategories handles GET /api/categories/
func (h *Handler) ListCategories(c *gin.Context) {
	var categories []models.Category
	if err := h.DB.WithContext(c.Request.Context()).Order("name").Find(&categories).Error; err != nil {
		h.serverError(c, err, "failed to list categories")
		return
	}
	resp := make([]categoryResponse, 0, len(categories))
	for _, cat := range categories {
		resp = append(resp, serializeCategory(cat))
	}
	c.JSON(http.StatusOK, resp)
}

// loadEvent fetches the :id event with categories and candidates.
func (h *Handler) loadEvent(c *gin.Context) (*models.VotingEvent, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	var event models.VotingEvent
	err := h.DB.WithContext(c.Request.Context()).
		Preload("Categories").Preload("Candidates", orderByID).
		First(&event, id).Error
	if err != nil {
		h.notFoundOr(c, err, "failed to load event")
		return nil, false
	}
	return &event, true
}

func (h *Handler) favoritedIDs(ctx context.Context, userID uint, events []models.VotingEvent) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 || len(events) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	var favorited []uint
	err := h.DB.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ? AND event_id IN ?", userID, ids).
		Pluck("event_id", &favorited).Error
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	for _, id := range favorited {
		out[id] = true
	}
	return out, nil
}

// lookupCategories resolves category IDs, recording unknown ones in errs.
func (h *Handler) lookupCategories(ctx context.Context, ids *[]uint, errs fieldErrors) ([]models.Category, error) {
	if ids == nil || len(*ids) == 0 {
		return []models.Category{}, nil
	}
	var categories []models.Category
	if err := h.DB.WithContext(ctx).Where("id IN ?", *ids).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	found := make(map[uint]bool, len(categories))
	for _, cat := range categories {
		found[cat.ID] = true
	}
	for _, id := range *ids {
		if !found[id] {
			errs.add("categories", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
		}
	}
	return categories, nil
}

// validateEventInput checks an event payload. A partial update only checks
// the fields present; current supplies the stored window for that case.
func validateEventInput(in eventInput, partial bool, current *models.VotingEvent) fieldErrors {
	errs := fieldErrors{}
	if !partial {
		if in.EventName == nil {
			errs.add("event_name", msgRequired)
		}
		if in.StartTime == nil {
			errs.add("start_time", msgRequired)
		}
		if in.EndTime == nil {
			errs.add("end_time", msgRequired)
		}
		if in.Categories == nil {
			errs.add("categories", msgRequired)
		}
		if in.Candidates == nil && current == nil {
			errs.add("candidates", msgRequired)
		}
	}
	if in.EventName != nil {
		name := strings.TrimSpace(*in.EventName)
		switch {
		case name == "":
			errs.add("event_name", "This field may not be blank.")
		case utf8.RuneCountInString(name) > 100:
			errs.add("event_name", "Ensure this field has no more than 100 characters.")
		}
	}

	var start, end time.Time
	if current != nil {
		start, end = current.StartTime, current.EndTime
	}
	if in.StartTime != nil {
		start = *in.StartTime
	}
	if in.EndTime != nil {
		end = *in.EndTime
	}
	if (in.StartTime != nil || in.EndTime != nil) && !start.IsZero() && !end.IsZero() && !end.After(start) {
		errs.add("non_field_errors", "End time must be after start time")
	}

	if in.Candidates != nil {
		if current == nil && len(*in.Candidates) < 2 {
			errs.add("candidates", "Ensure this field has at least 2 elements.")
		}
		for i, ci := range *in.Candidates {
			creating := ci.ID == nil
			if ci.Name == nil && creating {
				errs.add("candidates", fmt.Sprintf("Candidate %d: name is required.", i+1))
				continue
			}
			if ci.Name != nil {
				name := strings.TrimSpace(*ci.Name)
				if name == "" || utf8.RuneCountInString(name) > 100 {
					errs.add("candidates", fmt.Sprintf("Candidate %d: name must be 1-100 characters.", i+1))
				}
			}
		}
	}
	return errs
}

func newCandidate(in candidateInput) models.Candidate {
	var c models.Candidate
	applyCandidate(&c, in)
	return c
}

func applyCandidate(c *models.Candidate, in candidateInput) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ProfilePic != nil {
		c.ProfilePic = *in.ProfilePic
	}
}

// newEventToken returns ten upper-case hex characters.
func newEventToken() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func (h *Handler) invalidateResults(ctx context.Context, eventID uint) {
	if err := h.Cache.Delete(ctx, cache.ResultsKey(eventID)); err != nil {
		h.Logger.Warn().Err(err).Uint("event_id", eventID).Msg("failed to invalidate cached results")
	}
}
