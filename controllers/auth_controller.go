package controllers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/auth"
	"github.com/Kaung2240/VoteX/models"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// RegisterUser handles POST /api/auth/register/
func (h *Handler) RegisterUser(c *gin.Context) {
	var input struct {
		Username  string `json:"username" binding:"required,max=150"`
		Email     string `json:"email" binding:"required,email,max=254"`
		Password  string `json:"password" binding:"required"`
		Password2 string `json:"password2" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	ctx := c.Request.Context()
	errs := fieldErrors{}
	if !usernamePattern.MatchString(input.Username) {
		errs.add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if input.Password != input.Password2 {
		errs.add("password", "Password fields didn't match.")
	}
	for _, problem := range auth.ValidatePassword(input.Password, input.Username, input.Email) {
		errs.add("password", problem)
	}

	var count int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = LOWER(?)", input.Email).Count(&count).Error; err != nil {
		h.serverError(c, err, "failed to check email")
		return
	}
	if count > 0 {
		errs.add("email", "A user with this email already exists.")
	}
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", input.Username).Count(&count).Error; err != nil {
		h.serverError(c, err, "failed to check username")
		return
	}
	if count > 0 {
		errs.add("username", "A user with that username already exists.")
	}
	if len(errs) > 0 {
		badRequest(c, errs)
		return
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		h.serverError(c, err, "failed to hash password")
		return
	}

	user := models.User{
		Username: input.Username,
		Email:    strings.TrimSpace(input.Email),
		Password: hashedPassword,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			badRequest(c, fieldErrors{"username": {"A user with that username already exists."}})
			return
		}
		h.serverError(c, err, "failed to create user")
		return
	}

	h.Logger.Info().Uint("user_id", user.ID).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    gin.H{"username": user.Username, "email": user.Email},
	})
}

// Login handles POST /api/token/. The username field also accepts an e-mail.
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	user, err := h.loginUser(c.Request.Context(), input.Username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.serverError(c, err, "failed to look up user")
		return
	}
	if err != nil || !auth.CheckPassword(user.Password, input.Password) {
		detail(c, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	pair, err := h.Issuer.IssuePair(user.ID)
	if err != nil {
		h.serverError(c, err, "failed to generate token")
		return
	}
	c.JSON(http.StatusOK, pair)
}

// loginUser resolves the login name as a username first and only then as an
// e-mail address.
func (h *Handler) loginUser(ctx context.Context, name string) (models.User, error) {
	var user models.User
	err := h.DB.WithContext(ctx).Where("username = ?", name).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = h.DB.WithContext(ctx).Where("LOWER(email) = LOWER(?)", name).Order("id").Take(&user).Error
	}
	return user, err
}

// RefreshToken handles POST /api/token/refresh/
func (h *Handler) RefreshToken(c *gin.Context) {
	var input struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	access, err := h.Issuer.Refresh(input.Refresh)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access})
}
