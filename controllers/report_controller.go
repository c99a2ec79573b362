package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kaung2240/VoteX/models"
)

// ListReports handles GET /api/reports/. Staff see every report, everyone
// else only their own.
func (h *Handler) ListReports(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	query := h.DB.WithContext(c.Request.Context())
	if !user.IsStaff {
		query = query.Where("reporter_id = ?", user.ID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	var reports []models.Report
	if err := query.Order("created_at DESC").Order("id DESC").Find(&reports).Error; err != nil {
		h.serverError(c, err, "failed to list reports")
		return
	}
	resp := make([]reportResponse, 0, len(reports))
	for _, r := range reports {
		resp = append(resp, serializeReport(r))
	}
	c.JSON(http.StatusOK, resp)
}

// CreateReport handles POST /api/reports/
func (h *Handler) CreateReport(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	var input struct {
		ContentType string `json:"content_type" binding:"required,oneof=event comment user"`
		ContentID   uint   `json:"content_id" binding:"required"`
		Reason      string `json:"reason" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	if strings.TrimSpace(input.Reason) == "" {
		badRequest(c, fieldErrors{"reason": {"This field may not be blank."}})
		return
	}
	ctx := c.Request.Context()

	var target any
	switch input.ContentType {
	case models.ReportEvent:
		target = &models.VotingEvent{}
	case models.ReportComment:
		target = &models.Comment{}
	default:
		target = &models.User{}
	}
	var count int64
	if err := h.DB.WithContext(ctx).Model(target).Where("id = ?", input.ContentID).Count(&count).Error; err != nil {
		h.serverError(c, err, "failed to check reported content")
		return
	}
	if count == 0 {
		badRequest(c, fieldErrors{"content_id": {fmt.Sprintf("No %s with id %d exists.", input.ContentType, input.ContentID)}})
		return
	}

	report := models.Report{
		ReporterID:  user.ID,
		ContentType: input.ContentType,
		ContentID:   input.ContentID,
		Reason:      strings.TrimSpace(input.Reason),
		Status:      models.ReportPending,
	}
	if err := h.DB.WithContext(ctx).Create(&report).Error; err != nil {
		h.serverError(c, err, "failed to create report")
		return
	}
	h.Logger.Info().Uint("report_id", report.ID).Str("content_type", report.ContentType).Uint("content_id", report.ContentID).Msg("content reported")
	c.JSON(http.StatusCreated, serializeReport(report))
}

// GetReport handles GET /api/reports/:id/
func (h *Handler) GetReport(c *gin.Context) {
	_, report, ok := h.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, serializeReport(*report))
}

// UpdateReport handles PATCH /api/reports/:id/ for staff. Moving a report
// to resolved stamps resolved_at; moving it back clears it.
func (h *Handler) UpdateReport(c *gin.Context) {
	user, report, ok := h.loadReport(c)
	if !ok {
		return
	}
	if !user.IsStaff {
		detail(c, http.StatusForbidden, msgForbidden)
		return
	}
	var input struct {
		Status     *string `json:"status" binding:"omitempty,oneof=pending investigating resolved"`
		AdminNotes *string `json:"admin_notes"`
	}
	if !bindJSON(c, &input) {
		return
	}

	if input.Status != nil && *input.Status != report.Status {
		report.Status = *input.Status
		if report.Status == models.ReportResolved {
			now := h.now()
			report.ResolvedAt = &now
		} else {
			report.ResolvedAt = nil
		}
	}
	if input.AdminNotes != nil {
		report.AdminNotes = input.AdminNotes
	}
	err := h.DB.WithContext(c.Request.Context()).Model(report).
		Select("status", "admin_notes", "resolved_at").Updates(report).Error
	if err != nil {
		h.serverError(c, err, "failed to update report")
		return
	}
	c.JSON(http.StatusOK, serializeReport(*report))
}

// DeleteReport handles DELETE /api/reports/:id/
func (h *Handler) DeleteReport(c *gin.Context) {
	_, report, ok := h.loadReport(c)
	if !ok {
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Delete(report).Error; err != nil {
		h.serverError(c, err, "failed to delete report")
		return
	}
	c.Status(http.StatusNoContent)
}

// loadReport returns the :id report if the current user is staff or its
// reporter.
func (h *Handler) loadReport(c *gin.Context) (*models.User, *models.Report, bool) {
	user, ok := h.requireUser(c)
	if !ok {
		return nil, nil, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil, nil, false
	}
	query := h.DB.WithContext(c.Request.Context())
	if !user.IsStaff {
		query = query.Where("reporter_id = ?", user.ID)
	}
	var report models.Report
	if err := query.First(&report, id).Error; err != nil {
		h.notFoundOr(c, err, "failed to load report")
		return nil, nil, false
	}
	return user, &report, true
}
