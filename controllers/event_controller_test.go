package controllers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaung2240/VoteX/models"
)

type eventPage struct {
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  []eventBody `json:"results"`
}

func TestCreateEventValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "owner", false)
	start := time.Now().UTC()

	w := env.do(t, http.MethodPost, "/api/events/", "", map[string]any{"event_name": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/events/", token, map[string]any{
		"event_name": "Backwards",
		"start_time": start,
		"end_time":   start.Add(-time.Hour),
		"categories": []uint{},
		"candidates": []map[string]string{{"name": "A"}, {"name": "B"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"End time must be after start time"}, decode[map[string][]string](t, w)["non_field_errors"])

	w = env.do(t, http.MethodPost, "/api/events/", token, map[string]any{
		"event_name": "Lonely",
		"start_time": start,
		"end_time":   start.Add(time.Hour),
		"categories": []uint{999},
		"candidates": []map[string]string{{"name": "A"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	errs := decode[map[string][]string](t, w)
	assert.NotEmpty(t, errs["candidates"])
	assert.NotEmpty(t, errs["categories"])
}

func TestPrivateEventTokenVisibility(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	_, other := env.createUser(t, "other", false)

	created := env.createEvent(t, owner, "Board election", -time.Minute, time.Hour, true)
	require.NotNil(t, created.EventToken)
	assert.Len(t, *created.EventToken, 10)
	assert.Equal(t, models.StatusOngoing, created.Status)
	require.Len(t, created.Categories, 1)
	assert.Equal(t, "Politics", created.Categories[0].Name)

	path := fmt.Sprintf("/api/events/%d/", created.ID)
	w := env.do(t, http.MethodGet, path, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.EventToken, decode[eventBody](t, w).EventToken)

	for _, token := range []string{other, ""} {
		w = env.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, decode[eventBody](t, w).EventToken)
	}

	w = env.do(t, http.MethodPatch, path, owner, map[string]any{"is_private": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[eventBody](t, w).EventToken)
}

func TestListEventsFilters(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	env.createEvent(t, owner, "Ongoing poll", -time.Minute, time.Hour, false)
	env.createEvent(t, owner, "Future poll", time.Hour, time.Hour, false)
	env.createEvent(t, owner, "Past poll", -2*time.Hour, time.Hour, true)

	tests := []struct {
		query string
		names []string
	}{
		{"", []string{"Past poll", "Future poll", "Ongoing poll"}},
		{"?status=ongoing", []string{"Ongoing poll"}},
		{"?status=upcoming", []string{"Future poll"}},
		{"?status=ended", []string{"Past poll"}},
		{"?search=FUTURE", []string{"Future poll"}},
		{"?is_private=true", []string{"Past poll"}},
		{"?category=Politics&ordering=event_name", []string{"Future poll", "Ongoing poll", "Past poll"}},
		{"?category=Sports", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/events/"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			page := decode[eventPage](t, w)
			names := []string{}
			for _, e := range page.Results {
				names = append(names, e.EventName)
			}
			assert.Equal(t, tt.names, names)
			assert.Equal(t, int64(len(tt.names)), page.Count)
		})
	}
}

func TestListEventsSearchIsLiteral(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	env.createEvent(t, owner, "Student Council", time.Hour, time.Hour, false)
	env.createEvent(t, owner, "Best Movie", time.Hour, time.Hour, false)
	env.createEvent(t, owner, "Run_off at 50%", time.Hour, time.Hour, false)
	env.createEvent(t, owner, `Path C:\votes`, time.Hour, time.Hour, false)

	tests := []struct {
		search string
		names  []string
	}{
		{"_", []string{"Run_off at 50%"}},
		{"%25", []string{"Run_off at 50%"}},
		{"t_c", []string{}},
		{`%5C`, []string{`Path C:\votes`}},
		{"council", []string{"Student Council"}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/events/?search="+tt.search, "", nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			names := []string{}
			for _, e := range decode[eventPage](t, w).Results {
				names = append(names, e.EventName)
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestCreateEventCountsCharacters(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "owner", false)
	start := time.Now().UTC().Add(time.Hour)
	body := func(name string) map[string]any {
		return map[string]any{
			"event_name": name,
			"start_time": start,
			"end_time":   start.Add(time.Hour),
			"candidates": []map[string]string{{"name": strings.Repeat("ü", 100)}, {"name": "B"}},
		}
	}

	w := env.do(t, http.MethodPost, "/api/events/", token, body(strings.Repeat("é", 100)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/events/", token, body(strings.Repeat("é", 101)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string][]string](t, w), "event_name")
}

func TestListEventsPagination(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	for i := 0; i < 3; i++ {
		env.createEvent(t, owner, fmt.Sprintf("Poll %d", i), time.Hour, time.Hour, false)
	}

	w := env.do(t, http.MethodGet, "/api/events/?page_size=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[eventPage](t, w)
	assert.Equal(t, int64(3), page.Count)
	assert.Len(t, page.Results, 2)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "page=2")
	assert.Nil(t, page.Previous)

	w = env.do(t, http.MethodGet, "/api/events/?page_size=2&page=2", "", nil)
	page = decode[eventPage](t, w)
	assert.Len(t, page.Results, 1)
	assert.Nil(t, page.Next)
	assert.NotNil(t, page.Previous)

	w = env.do(t, http.MethodGet, "/api/events/?page=0", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateEvent(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	_, other := env.createUser(t, "other", false)
	created := env.createEvent(t, owner, "Original", time.Hour, time.Hour, false)
	path := fmt.Sprintf("/api/events/%d/", created.ID)

	w := env.do(t, http.MethodPatch, path, other, map[string]any{"event_name": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var sports models.Category
	require.NoError(t, env.db.Where("name = ?", "Sports").First(&sports).Error)
	w = env.do(t, http.MethodPatch, path, owner, map[string]any{
		"event_name": "Renamed",
		"categories": []uint{sports.ID},
		"candidates": []map[string]any{
			{"id": created.Candidates[0].ID, "name": "Alice Updated"},
			{"name": "Carol"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[eventBody](t, w)
	assert.Equal(t, "Renamed", updated.EventName)
	require.Len(t, updated.Categories, 1)
	assert.Equal(t, "Sports", updated.Categories[0].Name)
	require.Len(t, updated.Candidates, 3)
	assert.Equal(t, "Alice Updated", updated.Candidates[0].Name)
	assert.Equal(t, "Bob", updated.Candidates[1].Name)
	assert.Equal(t, "Carol", updated.Candidates[2].Name)

	w = env.do(t, http.MethodPatch, path, owner, map[string]any{"end_time": time.Now().UTC()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, path, owner, map[string]any{"event_name": "Only a name"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string][]string](t, w), "start_time")
}

func TestFavoriteAndDeleteEvent(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	_, fan := env.createUser(t, "fan", false)
	created := env.createEvent(t, owner, "Fan favourite", time.Hour, time.Hour, false)
	path := fmt.Sprintf("/api/events/%d/", created.ID)

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, path+"favorite/", fan, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"status":"favorited"}`, w.Body.String())
	}
	var favorites int64
	require.NoError(t, env.db.Model(&models.Favorite{}).Count(&favorites).Error)
	assert.Equal(t, int64(1), favorites)

	w := env.do(t, http.MethodGet, path, fan, nil)
	assert.True(t, decode[eventBody](t, w).Favorited)
	w = env.do(t, http.MethodGet, "/api/users/favorites/", fan, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]eventBody](t, w), 1)

	w = env.do(t, http.MethodDelete, path+"favorite/", fan, nil)
	assert.JSONEq(t, `{"status":"unfavorited"}`, w.Body.String())

	w = env.do(t, http.MethodDelete, path, fan, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, path, owner, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = env.do(t, http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var candidates int64
	require.NoError(t, env.db.Model(&models.Candidate{}).Count(&candidates).Error)
	assert.Zero(t, candidates)
}

func TestListCategories(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/categories/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"name":"Politics"},{"id":2,"name":"Sports"}]`, w.Body.String())
}

func TestCandidateEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	_, other := env.createUser(t, "other", false)
	created := env.createEvent(t, owner, "Candidates", time.Hour, time.Hour, false)
	base := fmt.Sprintf("/api/events/%d/candidates/", created.ID)
	bob := fmt.Sprintf("%s%d/", base, created.Candidates[1].ID)

	w := env.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = env.do(t, http.MethodPatch, bob, other, map[string]string{"description": "nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPatch, bob, owner, map[string]string{"description": "Second choice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Second choice", decode[map[string]any](t, w)["description"])

	w = env.do(t, http.MethodGet, fmt.Sprintf("%s%d/", base, 9999), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, bob, owner, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, bob, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
