package controllers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/auth"
	"github.com/Kaung2240/VoteX/ballot"
	"github.com/Kaung2240/VoteX/cache"
	"github.com/Kaung2240/VoteX/config"
	"github.com/Kaung2240/VoteX/logging"
	"github.com/Kaung2240/VoteX/mailer"
	"github.com/Kaung2240/VoteX/middleware"
	"github.com/Kaung2240/VoteX/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	msgNotFound     = "Not found."
	msgForbidden    = "You do not have permission to perform this action."
	msgServerError  = "A server error occurred."
	msgRequired     = "This field is required."
	msgInvalidJSON  = "JSON parse error."
	msgNotAuthentic = "Authentication credentials were not provided."
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	DB     *gorm.DB
	Cfg    config.Config
	Issuer *auth.Issuer
	Sealer *ballot.Sealer
	Cache  cache.Cache
	Mailer mailer.Mailer
	Logger zerolog.Logger
	Now    func() time.Time
}

var registerTagNames sync.Once

// New wires a Handler. now defaults to time.Now.
func New(h Handler) *Handler {
	if h.Now == nil {
		h.Now = time.Now
	}
	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(f reflect.StructField) string {
				name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
				if name == "-" {
					return ""
				}
				return name
			})
		}
	})
	return &h
}

func (h *Handler) now() time.Time {
	return h.Now().UTC()
}

// fieldErrors maps a field name to its validation messages.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func badRequest(c *gin.Context, errs fieldErrors) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errs)
}

// serverError logs err with the request ID and hides it from the client.
func (h *Handler) serverError(c *gin.Context, err error, msg string) {
	l := logging.FromContext(c.Request.Context(), h.Logger)
	l.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
	_ = c.Error(err)
	detail(c, http.StatusInternalServerError, msgServerError)
}

// bindJSON decodes the body into dst, writing a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		errs := fieldErrors{}
		for _, fe := range verrs {
			errs.add(fe.Field(), validationMessage(fe))
		}
		badRequest(c, errs)
		return false
	}
	detail(c, http.StatusBadRequest, msgInvalidJSON)
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s elements.", fe.Param())
	case "oneof":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	default:
		return "Invalid value."
	}
}

// idParam parses a positive integer path parameter, writing a 404 otherwise.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		detail(c, http.StatusNotFound, msgNotFound)
		return 0, false
	}
	return uint(id), true
}

// requireUser loads the authenticated user, writing a 401 if there is none.
func (h *Handler) requireUser(c *gin.Context) (*models.User, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		detail(c, http.StatusUnauthorized, msgNotAuthentic)
		return nil, false
	}
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).Preload("Profile").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			detail(c, http.StatusUnauthorized, "User not found")
			return nil, false
		}
		h.serverError(c, err, "failed to load current user")
		return nil, false
	}
	return &user, true
}

// notFoundOr writes a 404 for missing records and a 500 for anything else.
func (h *Handler) notFoundOr(c *gin.Context, err error, msg string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		detail(c, http.StatusNotFound, msgNotFound)
		return
	}
	h.serverError(c, err, msg)
}

var fieldValidator = validator.New()

// likeEscaper quotes LIKE wildcards for patterns declared with ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func validEmail(s string) bool {
	return fieldValidator.Var(s, "required,email") == nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

type page struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// pagination reads page and page_size query parameters.
func pagination(c *gin.Context) (number, size int, ok bool) {
	number, size = 1, defaultPageSize
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			detail(c, http.StatusNotFound, "Invalid page.")
			return 0, 0, false
		}
		number = n
	}
	if v := c.Query("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			size = min(n, maxPageSize)
		}
	}
	return number, size, true
}

func newPage(c *gin.Context, number, size int, count int64, results any) page {
	p := page{Count: count, Results: results}
	last := int(math.Ceil(float64(count) / float64(size)))
	if number < last {
		s := pageURL(c, number+1)
		p.Next = &s
	}
	if number > 1 {
		s := pageURL(c, number-1)
		p.Previous = &s
	}
	return p
}

func pageURL(c *gin.Context, number int) string {
	u := url.URL{Path: c.Request.URL.Path}
	q := c.Request.URL.Query()
	q.Set("page", strconv.Itoa(number))
	u.RawQuery = q.Encode()
	return u.String()
}

func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return c.ClientIP()
}
