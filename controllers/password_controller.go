package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/auth"
	"github.com/Kaung2240/VoteX/models"
)

const msgBadResetToken = "The reset token is invalid or has expired."

// RequestPasswordReset handles POST /api/auth/reset-password/
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()

	var user models.User
	err := h.DB.WithContext(ctx).Where("LOWER(email) = LOWER(?)", input.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		badRequest(c, fieldErrors{"email": {"We couldn't find an account associated with that email. Please try a different e-mail address."}})
		return
	}
	if err != nil {
		h.serverError(c, err, "failed to look up user for reset")
		return
	}

	token, hash, err := auth.NewResetToken()
	if err != nil {
		h.serverError(c, err, "failed to generate reset token")
		return
	}
	reset := models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: h.now().Add(h.Cfg.ResetTokenTTL),
	}
	if err := h.DB.WithContext(ctx).Create(&reset).Error; err != nil {
		h.serverError(c, err, "failed to store reset token")
		return
	}

	link := fmt.Sprintf("%s/reset-password/confirm?token=%s", h.Cfg.FrontendURL, url.QueryEscape(token))
	body := fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password:\n\n%s\n\nIf you did not ask for a reset you can ignore this message.\n", user.Username, link)
	if err := h.Mailer.Send(ctx, user.Email, "Reset your VoteX password", body); err != nil {
		h.serverError(c, err, "failed to send reset mail")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// ValidateResetToken handles POST /api/auth/password/reset/validate_token/
func (h *Handler) ValidateResetToken(c *gin.Context) {
	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	if _, ok := h.activeResetToken(c, input.Token); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// ConfirmPasswordReset handles POST /api/auth/password/reset/confirm/
func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var input struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	reset, ok := h.activeResetToken(c, input.Token)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, reset.UserID).Error; err != nil {
		h.notFoundOr(c, err, "failed to load user for reset")
		return
	}
	if problems := auth.ValidatePassword(input.Password, user.Username, user.Email); len(problems) > 0 {
		badRequest(c, fieldErrors{"password": problems})
		return
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		h.serverError(c, err, "failed to hash password")
		return
	}

	now := h.now()
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", hashed).Error; err != nil {
			return err
		}
		// Every outstanding token of the user dies with the first one used.
		return tx.Model(&models.PasswordResetToken{}).
			Where("user_id = ? AND used_at IS NULL", user.ID).
			Update("used_at", now).Error
	})
	if err != nil {
		h.serverError(c, err, "failed to reset password")
		return
	}

	h.Logger.Info().Uint("user_id", user.ID).Msg("password reset")
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) activeResetToken(c *gin.Context, token string) (*models.PasswordResetToken, bool) {
	var reset models.PasswordResetToken
	err := h.DB.WithContext(c.Request.Context()).
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", auth.HashResetToken(token), h.now()).
		First(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		detail(c, http.StatusNotFound, msgBadResetToken)
		return nil, false
	}
	if err != nil {
		h.serverError(c, err, "failed to look up reset token")
		return nil, false
	}
	return &reset, true
}
