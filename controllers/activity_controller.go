package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kaung2240/VoteX/models"
)

// ListActivity handles GET /api/activity/ for staff, newest first.
func (h *Handler) ListActivity(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	if !user.IsStaff {
		detail(c, http.StatusForbidden, msgForbidden)
		return
	}
	number, size, ok := pagination(c)
	if !ok {
		return
	}
	db := h.DB.WithContext(c.Request.Context())

	var count int64
	if err := db.Model(&models.ActivityLog{}).Count(&count).Error; err != nil {
		h.serverError(c, err, "failed to count activity")
		return
	}
	var logs []models.ActivityLog
	err := db.Preload("User").
		Order("timestamp DESC").Order("id DESC").
		Offset((number - 1) * size).Limit(size).
		Find(&logs).Error
	if err != nil {
		h.serverError(c, err, "failed to list activity")
		return
	}
	results := make([]activityResponse, 0, len(logs))
	for _, l := range logs {
		results = append(results, serializeActivity(l))
	}
	c.JSON(http.StatusOK, newPage(c, number, size, count, results))
}
