package controllers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/Kaung2240/VoteX/models"
)

// ListCandidates handles GET /api/events/:id/candidates/
func (h *Handler) ListCandidates(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	resp := make([]candidateResponse, 0, len(event.Candidates))
	for _, cand := range event.Candidates {
		resp = append(resp, serializeCandidate(cand))
	}
	c.JSON(http.StatusOK, resp)
}

// GetCandidate handles GET /api/events/:id/candidates/:cid/
func (h *Handler) GetCandidate(c *gin.Context) {
	_, candidate, ok := h.loadCandidate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, serializeCandidate(*candidate))
}

// UpdateCandidate handles PUT and PATCH /api/events/:id/candidates/:cid/
func (h *Handler) UpdateCandidate(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	event, candidate, ok := h.loadCandidate(c)
	if !ok {
		return
	}
	if event.CreatedByID != user.ID {
		detail(c, http.StatusForbidden, msgForbidden)
		return
	}
	var input candidateInput
	if !bindJSON(c, &input) {
		return
	}

	errs := fieldErrors{}
	if input.Name == nil && c.Request.Method == http.MethodPut {
		errs.add("name", msgRequired)
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		switch {
		case name == "":
			errs.add("name", "This field may not be blank.")
		case utf8.RuneCountInString(name) > 100:
			errs.add("name", "Ensure this field has no more than 100 characters.")
		}
	}
	if len(errs) > 0 {
		badRequest(c, errs)
		return
	}

	applyCandidate(candidate, input)
	ctx := c.Request.Context()
	if err := h.DB.WithContext(ctx).Model(candidate).Select("name", "description", "profile_pic").Updates(candidate).Error; err != nil {
		h.serverError(c, err, "failed to update candidate")
		return
	}
	h.invalidateResults(ctx, event.ID)
	c.JSON(http.StatusOK, serializeCandidate(*candidate))
}

// DeleteCandidate handles DELETE /api/events/:id/candidates/:cid/. A
// candidate that already received votes cannot be removed.
func (h *Handler) DeleteCandidate(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	event, candidate, ok := h.loadCandidate(c)
	if !ok {
		return
	}
	if event.CreatedByID != user.ID {
		detail(c, http.StatusForbidden, msgForbidden)
		return
	}
	ctx := c.Request.Context()

	var votes int64
	if err := h.DB.WithContext(ctx).Model(&models.Vote{}).Where("candidate_id = ?", candidate.ID).Count(&votes).Error; err != nil {
		h.serverError(c, err, "failed to count candidate votes")
		return
	}
	if votes > 0 {
		detail(c, http.StatusBadRequest, "Cannot delete a candidate that has received votes")
		return
	}
	if err := h.DB.WithContext(ctx).Delete(candidate).Error; err != nil {
		h.serverError(c, err, "failed to delete candidate")
		return
	}
	h.invalidateResults(ctx, event.ID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) loadCandidate(c *gin.Context) (*models.VotingEvent, *models.Candidate, bool) {
	event, ok := h.loadEvent(c)
	if !ok {
		return nil, nil, false
	}
	cid, ok := idParam(c, "cid")
	if !ok {
		return nil, nil, false
	}
	for i := range event.Candidates {
		if event.Candidates[i].ID == cid {
			return event, &event.Candidates[i], true
		}
	}
	detail(c, http.StatusNotFound, msgNotFound)
	return nil, nil, false
}
