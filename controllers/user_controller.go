package controllers

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/models"
)

// profileInput is shared by the nested profile of /users/me/ and by
// /user/profile/. An empty birthday clears it.
type profileInput struct {
	Timezone       *string `json:"timezone"`
	Birthday       *string `json:"birthday"`
	ProfilePicture *string `json:"profile_picture"`
}

// GetMe handles GET /api/users/me/
func (h *Handler) GetMe(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, serializeUser(*user))
}

// UpdateMe handles PATCH /api/users/me/
func (h *Handler) UpdateMe(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	var input struct {
		Username *string       `json:"username"`
		Email    *string       `json:"email"`
		Profile  *profileInput `json:"profile"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()
	db := h.DB.WithContext(ctx)

	errs := fieldErrors{}
	if input.Username != nil {
		name := strings.TrimSpace(*input.Username)
		switch {
		case !usernamePattern.MatchString(name) || utf8.RuneCountInString(name) > 150:
			errs.add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
		case name != user.Username:
			var count int64
			if err := db.Model(&models.User{}).Where("username = ? AND id <> ?", name, user.ID).Count(&count).Error; err != nil {
				h.serverError(c, err, "failed to check username")
				return
			}
			if count > 0 {
				errs.add("username", "A user with that username already exists.")
			}
		}
		user.Username = name
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if !validEmail(email) || utf8.RuneCountInString(email) > 254 {
			errs.add("email", "Enter a valid email address.")
		} else if !strings.EqualFold(email, user.Email) {
			var count int64
			if err := db.Model(&models.User{}).Where("LOWER(email) = LOWER(?) AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
				h.serverError(c, err, "failed to check email")
				return
			}
			if count > 0 {
				errs.add("email", "A user with this email already exists.")
			}
		}
		user.Email = email
	}
	if input.Profile != nil {
		for field, msgs := range applyProfile(&user.Profile, *input.Profile) {
			for _, msg := range msgs {
				errs.add("profile."+field, msg)
			}
		}
	}
	if len(errs) > 0 {
		badRequest(c, errs)
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Select("username", "email").Updates(user).Error; err != nil {
			return err
		}
		return saveProfile(tx, user)
	})
	if err != nil {
		if !isDuplicate(err) {
			h.serverError(c, err, "failed to update user")
			return
		}
		badRequest(c, fieldErrors{"username": {"A user with that username already exists."}})
		return
	}
	c.JSON(http.StatusOK, serializeUser(*user))
}

// UpdateProfile handles PATCH /api/user/profile/
func (h *Handler) UpdateProfile(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	var input profileInput
	if !bindJSON(c, &input) {
		return
	}
	if errs := applyProfile(&user.Profile, input); len(errs) > 0 {
		badRequest(c, errs)
		return
	}
	if err := saveProfile(h.DB.WithContext(c.Request.Context()), user); err != nil {
		h.serverError(c, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, serializeProfile(user.Profile))
}

// MyEvents handles GET /api/users/events/
func (h *Handler) MyEvents(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	h.listEventsWhere(c, user.ID, h.DB.Where("created_by_id = ?", user.ID))
}

// MyFavorites handles GET /api/users/favorites/
func (h *Handler) MyFavorites(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	favorites := h.DB.Model(&models.Favorite{}).Select("event_id").Where("user_id = ?", user.ID)
	h.listEventsWhere(c, user.ID, h.DB.Where("id IN (?)", favorites))
}

func (h *Handler) listEventsWhere(c *gin.Context, viewer uint, cond *gorm.DB) {
	ctx := c.Request.Context()
	var events []models.VotingEvent
	err := h.DB.WithContext(ctx).Where(cond).
		Preload("Categories").Preload("Candidates", orderByID).
		Order("created_at DESC").Order("id DESC").
		Find(&events).Error
	if err != nil {
		h.serverError(c, err, "failed to list events")
		return
	}
	favorites, err := h.favoritedIDs(ctx, viewer, events)
	if err != nil {
		h.serverError(c, err, "failed to load favorites")
		return
	}
	now := h.now()
	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, serializeEvent(e, viewer, favorites[e.ID], now))
	}
	c.JSON(http.StatusOK, resp)
}

// applyProfile copies the given fields onto p and returns validation
// problems keyed by field name.
func applyProfile(p *models.Profile, in profileInput) fieldErrors {
	errs := fieldErrors{}
	if in.Timezone != nil {
		if _, err := time.LoadLocation(*in.Timezone); err != nil || *in.Timezone == "" || *in.Timezone == "Local" {
			errs.add("timezone", "\""+*in.Timezone+"\" is not a valid choice.")
		} else {
			p.Timezone = *in.Timezone
		}
	}
	if in.Birthday != nil {
		if *in.Birthday == "" {
			p.Birthday = nil
		} else if day, err := time.Parse(dateLayout, *in.Birthday); err != nil {
			errs.add("birthday", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
		} else {
			p.Birthday = &day
		}
	}
	if in.ProfilePicture != nil {
		p.ProfilePicture = strings.TrimSpace(*in.ProfilePicture)
	}
	return errs
}

// saveProfile upserts the user's profile; accounts created before profiles
// existed get one on first save.
func saveProfile(tx *gorm.DB, user *models.User) error {
	user.Profile.UserID = user.ID
	if user.Profile.ID == 0 {
		return tx.Create(&user.Profile).Error
	}
	return tx.Model(&user.Profile).Select("timezone", "birthday", "profile_picture").Updates(&user.Profile).Error
}
