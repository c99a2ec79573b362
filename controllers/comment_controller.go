package controllers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/metrics"
	"github.com/Kaung2240/VoteX/models"
)

type commentInput struct {
	Content       *string `json:"content"`
	ParentComment *uint   `json:"parent_comment"`
}

// ListComments handles GET /api/events/:id/comments/. Top-level comments
// come newest first, replies oldest first.
func (h *Handler) ListComments(c *gin.Context) {
	eventID, ok := h.existingEventID(c)
	if !ok {
		return
	}
	var comments []models.Comment
	err := h.DB.WithContext(c.Request.Context()).Preload("User").
		Where("event_id = ? AND is_approved = ?", eventID, true).
		Order("created_at").Order("id").
		Find(&comments).Error
	if err != nil {
		h.serverError(c, err, "failed to list comments")
		return
	}

	children := make(map[uint][]models.Comment)
	var roots []models.Comment
	for _, cm := range comments {
		if cm.ParentCommentID == nil {
			roots = append(roots, cm)
			continue
		}
		children[*cm.ParentCommentID] = append(children[*cm.ParentCommentID], cm)
	}
	sort.SliceStable(roots, func(i, j int) bool { return roots[i].CreatedAt.After(roots[j].CreatedAt) })

	resp := make([]commentResponse, 0, len(roots))
	for _, root := range roots {
		resp = append(resp, buildCommentTree(root, children))
	}
	c.JSON(http.StatusOK, resp)
}

// CreateComment handles POST /api/events/:id/comments/
func (h *Handler) CreateComment(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	eventID, ok := h.existingEventID(c)
	if !ok {
		return
	}
	var input commentInput
	if !bindJSON(c, &input) {
		return
	}
	errs := validateCommentContent(input.Content, true)
	ctx := c.Request.Context()

	var parent *models.Comment
	if input.ParentComment != nil {
		var p models.Comment
		err := h.DB.WithContext(ctx).Where("id = ? AND event_id = ?", *input.ParentComment, eventID).First(&p).Error
		if err != nil {
			if !isNotFound(err) {
				h.serverError(c, err, "failed to load parent comment")
				return
			}
			errs.add("parent_comment", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *input.ParentComment))
		} else {
			parent = &p
		}
	}
	if len(errs) > 0 {
		badRequest(c, errs)
		return
	}

	comment := models.Comment{
		EventID:         eventID,
		UserID:          user.ID,
		Content:         strings.TrimSpace(*input.Content),
		ParentCommentID: input.ParentComment,
		IsApproved:      true,
	}
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		if parent == nil || parent.UserID == user.ID {
			return nil
		}
		return tx.Create(&models.Notification{
			UserID:           parent.UserID,
			NotificationType: models.NotificationCommentReply,
			Message:          fmt.Sprintf("%s replied to your comment", user.Username),
			RelatedEventID:   &eventID,
			RelatedCommentID: &comment.ID,
		}).Error
	})
	if err != nil {
		h.serverError(c, err, "failed to create comment")
		return
	}
	if parent != nil && parent.UserID != user.ID {
		metrics.NotificationsSent.WithLabelValues(models.NotificationCommentReply).Inc()
	}

	comment.User = *user
	c.JSON(http.StatusCreated, buildCommentTree(comment, nil))
}

// GetComment handles GET /api/events/:id/comments/:cid/
func (h *Handler) GetComment(c *gin.Context) {
	comment, ok := h.loadComment(c)
	if !ok {
		return
	}
	var replies []models.Comment
	err := h.DB.WithContext(c.Request.Context()).Preload("User").
		Where("event_id = ? AND is_approved = ?", comment.EventID, true).
		Order("created_at").Order("id").
		Find(&replies).Error
	if err != nil {
		h.serverError(c, err, "failed to load replies")
		return
	}
	children := make(map[uint][]models.Comment)
	for _, r := range replies {
		if r.ParentCommentID != nil {
			children[*r.ParentCommentID] = append(children[*r.ParentCommentID], r)
		}
	}
	c.JSON(http.StatusOK, buildCommentTree(*comment, children))
}

// UpdateComment handles PUT and PATCH /api/events/:id/comments/:cid/. Only
// the content can change.
func (h *Handler) UpdateComment(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	comment, ok := h.loadComment(c)
	if !ok {
		return
	}
	if comment.UserID != user.ID {
		detail(c, http.StatusForbidden, msgForbidden)
		return
	}
	var input commentInput
	if !bindJSON(c, &input) {
		return
	}
	if errs := validateCommentContent(input.Content, c.Request.Method == http.MethodPut); len(errs) > 0 {
		badRequest(c, errs)
		return
	}
	if input.Content != nil {
		comment.Content = strings.TrimSpace(*input.Content)
		if err := h.DB.WithContext(c.Request.Context()).Model(&models.Comment{ID: comment.ID}).Update("content", comment.Content).Error; err != nil {
			h.serverError(c, err, "failed to update comment")
			return
		}
	}
	c.JSON(http.StatusOK, buildCommentTree(*comment, nil))
}

// DeleteComment handles DELETE /api/events/:id/comments/:cid/ and removes
// the whole reply thread below the comment.
func (h *Handler) DeleteComment(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	comment, ok := h.loadComment(c)
	if !ok {
		return
	}
	if comment.UserID != user.ID {
		detail(c, http.StatusForbidden, msgForbidden)
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		ids := []uint{comment.ID}
		for frontier := ids; len(frontier) > 0; {
			var next []uint
			if err := tx.Model(&models.Comment{}).Where("parent_comment_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
				return err
			}
			ids = append(ids, next...)
			frontier = next
		}
		if err := tx.Model(&models.Notification{}).Where("related_comment_id IN ?", ids).Update("related_comment_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
	})
	if err != nil {
		h.serverError(c, err, "failed to delete comment")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) existingEventID(c *gin.Context) (uint, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return 0, false
	}
	var event models.VotingEvent
	if err := h.DB.WithContext(c.Request.Context()).Select("id").First(&event, id).Error; err != nil {
		h.notFoundOr(c, err, "failed to load event")
		return 0, false
	}
	return event.ID, true
}

func (h *Handler) loadComment(c *gin.Context) (*models.Comment, bool) {
	eventID, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	cid, ok := idParam(c, "cid")
	if !ok {
		return nil, false
	}
	var comment models.Comment
	err := h.DB.WithContext(c.Request.Context()).Preload("User").
		Where("id = ? AND event_id = ?", cid, eventID).
		First(&comment).Error
	if err != nil {
		h.notFoundOr(c, err, "failed to load comment")
		return nil, false
	}
	return &comment, true
}

func validateCommentContent(content *string, required bool) fieldErrors {
	errs := fieldErrors{}
	switch {
	case content == nil:
		if required {
			errs.add("content", msgRequired)
		}
	case strings.TrimSpace(*content) == "":
		errs.add("content", "This field may not be blank.")
	case utf8.RuneCountInString(*content) > 2000:
		errs.add("content", "Ensure this field has no more than 2000 characters.")
	}
	return errs
}

func buildCommentTree(cm models.Comment, children map[uint][]models.Comment) commentResponse {
	resp := commentResponse{
		ID:            cm.ID,
		User:          cm.User.Username,
		Content:       cm.Content,
		ParentComment: cm.ParentCommentID,
		CreatedAt:     cm.CreatedAt,
		Replies:       []commentResponse{},
	}
	for _, child := range children[cm.ID] {
		resp.Replies = append(resp.Replies, buildCommentTree(child, children))
	}
	return resp
}
