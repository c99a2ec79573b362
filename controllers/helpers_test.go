package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/auth"
	"github.com/Kaung2240/VoteX/ballot"
	"github.com/Kaung2240/VoteX/cache"
	"github.com/Kaung2240/VoteX/config"
	"github.com/Kaung2240/VoteX/controllers"
	"github.com/Kaung2240/VoteX/models"
	"github.com/Kaung2240/VoteX/routes"
)

type sentMail struct {
	To, Subject, Body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	db     *gorm.DB
	h      *controllers.Handler
	router *gin.Engine
	mail   *recordingMailer
}

func newTestEnv(t *testing.T, overrides ...func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		DatabaseType:     config.DatabaseSQLite,
		SQLitePath:       filepath.Join(t.TempDir(), "votex.db"),
		JWTSecret:        "test-secret",
		EncryptionKey:    strings.Repeat("k", 32),
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  24 * time.Hour,
		ResetTokenTTL:    time.Hour,
		ReceiptShares:    5,
		ReceiptThreshold: 3,
		ResultsCacheTTL:  time.Minute,
		ResultsInterval:  10 * time.Millisecond,
		VoteRate:         100,
		AnonVoteRate:     100,
		CORSOrigins:      []string{"http://frontend.test"},
		FrontendURL:      "http://frontend.test",
	}
	for _, override := range overrides {
		override(&cfg)
	}
	db, err := config.ConnectDatabase(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))
	require.NoError(t, models.SeedCategories(db, []string{"Politics", "Sports"}))

	sealer, err := ballot.NewSealer(cfg.Key(), cfg.ReceiptShares, cfg.ReceiptThreshold)
	require.NoError(t, err)

	mail := &recordingMailer{}
	h := controllers.New(controllers.Handler{
		DB:     db,
		Cfg:    cfg,
		Issuer: auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Sealer: sealer,
		Cache:  cache.NewMemory(),
		Mailer: mail,
		Logger: zerolog.Nop(),
	})
	return &testEnv{db: db, h: h, router: routes.SetupRouter(h), mail: mail}
}

// createUser stores a user with password "correct-horse" and returns it with
// an access token.
func (e *testEnv) createUser(t *testing.T, username string, staff bool) (models.User, string) {
	t.Helper()
	hashed, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	user := models.User{Username: username, Email: username + "@example.com", Password: hashed, IsStaff: staff}
	require.NoError(t, e.db.Create(&user).Error)
	pair, err := e.h.Issuer.IssuePair(user.ID)
	require.NoError(t, err)
	return user, pair.Access
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type eventBody struct {
	ID         uint    `json:"id"`
	EventName  string  `json:"event_name"`
	IsPrivate  bool    `json:"is_private"`
	EventToken *string `json:"event_token"`
	Status     string  `json:"status"`
	Favorited  bool    `json:"is_favorited"`
	Categories []struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
	Candidates []struct {
		ID         uint   `json:"id"`
		Name       string `json:"name"`
		VotesCount int    `json:"votes_count"`
	} `json:"candidates"`
}

// createEvent posts an event whose window is [now+startIn, now+startIn+length].
func (e *testEnv) createEvent(t *testing.T, token, name string, startIn, length time.Duration, private bool) eventBody {
	t.Helper()
	start := time.Now().UTC().Add(startIn)
	var politics models.Category
	require.NoError(t, e.db.Where("name = ?", "Politics").First(&politics).Error)

	w := e.do(t, http.MethodPost, "/api/events/", token, map[string]any{
		"event_name": name,
		"start_time": start,
		"end_time":   start.Add(length),
		"is_private": private,
		"categories": []uint{politics.ID},
		"candidates": []map[string]string{
			{"name": "Alice", "description": "first"},
			{"name": "Bob"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[eventBody](t, w)
}
