package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kaung2240/VoteX/models"
)

// ListNotifications handles GET /api/notifications/
func (h *Handler) ListNotifications(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	query := h.DB.WithContext(c.Request.Context()).Where("user_id = ?", user.ID)
	if isRead := c.Query("is_read"); isRead != "" {
		query = query.Where("is_read = ?", strings.EqualFold(isRead, "true"))
	}
	var notifications []models.Notification
	if err := query.Order("created_at DESC").Order("id DESC").Find(&notifications).Error; err != nil {
		h.serverError(c, err, "failed to list notifications")
		return
	}
	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, serializeNotification(n))
	}
	c.JSON(http.StatusOK, resp)
}

// GetNotification handles GET /api/notifications/:id/
func (h *Handler) GetNotification(c *gin.Context) {
	n, ok := h.loadNotification(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, serializeNotification(*n))
}

// UpdateNotification handles PATCH /api/notifications/:id/. Only the read
// flag can change.
func (h *Handler) UpdateNotification(c *gin.Context) {
	n, ok := h.loadNotification(c)
	if !ok {
		return
	}
	var input struct {
		IsRead *bool `json:"is_read"`
	}
	if !bindJSON(c, &input) {
		return
	}
	if input.IsRead != nil {
		n.IsRead = *input.IsRead
		if err := h.DB.WithContext(c.Request.Context()).Model(n).Update("is_read", n.IsRead).Error; err != nil {
			h.serverError(c, err, "failed to update notification")
			return
		}
	}
	c.JSON(http.StatusOK, serializeNotification(*n))
}

// DeleteNotification handles DELETE /api/notifications/:id/
func (h *Handler) DeleteNotification(c *gin.Context) {
	n, ok := h.loadNotification(c)
	if !ok {
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Delete(n).Error; err != nil {
		h.serverError(c, err, "failed to delete notification")
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /api/notifications/mark_all_read/
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	res := h.DB.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Update("is_read", true)
	if res.Error != nil {
		h.serverError(c, res.Error, "failed to mark notifications read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": res.RowsAffected})
}

// loadNotification returns the :id notification of the current user. Other
// users' notifications are reported as missing.
func (h *Handler) loadNotification(c *gin.Context) (*models.Notification, bool) {
	user, ok := h.requireUser(c)
	if !ok {
		return nil, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	var n models.Notification
	if err := h.DB.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, user.ID).First(&n).Error; err != nil {
		h.notFoundOr(c, err, "failed to load notification")
		return nil, false
	}
	return &n, true
}
