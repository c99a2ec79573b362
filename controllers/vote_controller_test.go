package controllers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaung2240/VoteX/config"
	"github.com/Kaung2240/VoteX/models"
	"github.com/Kaung2240/VoteX/tally"
)

func TestCastVote(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.createUser(t, "owner", false)
	_, voterToken := env.createUser(t, "voter", false)
	event := env.createEvent(t, ownerToken, "Board election", -time.Minute, time.Hour, true)
	votePath := fmt.Sprintf("/api/events/%d/vote/", event.ID)
	alice, bob := event.Candidates[0].ID, event.Candidates[1].ID

	w := env.do(t, http.MethodPost, votePath, "", map[string]any{"candidate": alice})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, votePath, voterToken, map[string]any{"candidate": alice, "event_token": "WRONG"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, votePath, voterToken, map[string]any{"candidate": 9999, "event_token": *event.EventToken})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid candidate"}`, w.Body.String())

	w = env.do(t, http.MethodPost, votePath, voterToken, map[string]any{"candidate": alice, "event_token": *event.EventToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[map[string]string](t, w)
	assert.Equal(t, "Vote Completed.", resp["status"])
	assert.Len(t, resp["receipt"], 64)

	w = env.do(t, http.MethodPost, votePath, voterToken, map[string]any{"candidate": bob, "event_token": *event.EventToken})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"You have already voted in this event"}`, w.Body.String())

	w = env.do(t, http.MethodPost, votePath, ownerToken, map[string]any{"candidate": bob, "anonymous": true, "event_token": *event.EventToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var candidates []models.Candidate
	require.NoError(t, env.db.Order("id").Find(&candidates).Error)
	require.Len(t, candidates, 2)
	assert.Equal(t, 1, candidates[0].VotesCount)
	assert.Equal(t, 1, candidates[1].VotesCount)

	var shares int64
	require.NoError(t, env.db.Model(&models.VoteShare{}).Count(&shares).Error)
	assert.Equal(t, int64(10), shares)

	var logs []models.ActivityLog
	require.NoError(t, env.db.Where("user_id = ?", owner.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, fmt.Sprintf("Voted in event %d", event.ID), logs[0].Action)
}

func TestCastVoteOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	_, voter := env.createUser(t, "voter", false)

	for _, startIn := range []time.Duration{time.Hour, -2 * time.Hour} {
		event := env.createEvent(t, owner, "Closed", startIn, time.Hour, false)
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/events/%d/vote/", event.ID), voter, map[string]any{"candidate": event.Candidates[0].ID})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"detail":"Voting is not open for this event"}`, w.Body.String())
	}

	w := env.do(t, http.MethodPost, "/api/events/999/vote/", voter, map[string]any{"candidate": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCastVoteConcurrentSingleUser(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	_, voter := env.createUser(t, "voter", false)
	event := env.createEvent(t, owner, "Contested", -time.Minute, time.Hour, false)
	body := fmt.Sprintf(`{"candidate":%d}`, event.Candidates[0].ID)

	const attempts = 10
	requests := make([]*http.Request, attempts)
	for i := range requests {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/events/%d/vote/", event.ID), strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+voter)
		requests[i] = req
	}

	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	var accepted, rejected int
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			accepted++
		case http.StatusBadRequest:
			rejected++
		}
	}
	assert.Equal(t, 1, accepted, codes)
	assert.Equal(t, attempts-1, rejected, codes)

	var votes int64
	require.NoError(t, env.db.Model(&models.Vote{}).Where("voting_event_id = ?", event.ID).Count(&votes).Error)
	assert.Equal(t, int64(1), votes)
	var candidate models.Candidate
	require.NoError(t, env.db.First(&candidate, event.Candidates[0].ID).Error)
	assert.Equal(t, 1, candidate.VotesCount)
}

func TestEventRoutesThrottled(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.VoteRate = 2
		cfg.AnonVoteRate = 1
	})
	_, owner := env.createUser(t, "owner", false)
	_, voter := env.createUser(t, "voter", false)
	event := env.createEvent(t, owner, "Busy", -time.Minute, time.Hour, false)
	votePath := fmt.Sprintf("/api/events/%d/vote/", event.ID)
	vote := map[string]any{"candidate": event.Candidates[0].ID}

	w := env.do(t, http.MethodPost, votePath, voter, vote)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, votePath, voter, vote)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, votePath, voter, vote)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many action.","message":"Please wait 30 seconds before to try again."}`, w.Body.String())

	// Anonymous callers are bucketed by IP on the public event routes.
	w = env.do(t, http.MethodGet, "/api/events/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/events/%d/", event.ID), "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Routes outside the event resource are not throttled.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/events/%d/results/", event.ID), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResultsAndReceipt(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	event := env.createEvent(t, owner, "Results", -time.Minute, time.Hour, false)
	alice, bob := event.Candidates[0].ID, event.Candidates[1].ID
	resultsPath := fmt.Sprintf("/api/events/%d/results/", event.ID)

	w := env.do(t, http.MethodGet, resultsPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[tally.Summary](t, w)
	assert.Zero(t, empty.TotalVotes)
	assert.Nil(t, empty.Winner)

	var receipt string
	for i, choice := range []uint{alice, alice, bob} {
		_, token := env.createUser(t, fmt.Sprintf("voter%d", i), false)
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/events/%d/vote/", event.ID), token, map[string]any{"candidate": choice, "anonymous": i == 2})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		if i == 0 {
			receipt = decode[map[string]string](t, w)["receipt"]
		}
	}

	// The cached empty summary must have been invalidated by the votes.
	w = env.do(t, http.MethodGet, resultsPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[tally.Summary](t, w)
	assert.Equal(t, 3, summary.TotalVotes)
	assert.Equal(t, 3, summary.UniqueVoters)
	assert.Equal(t, models.StatusOngoing, summary.Status)
	require.NotNil(t, summary.Winner)
	assert.Equal(t, "Alice", summary.Winner.Name)
	assert.Equal(t, 67, summary.Candidates[0].Percentage)
	assert.Equal(t, 33, summary.Candidates[1].Percentage)
	require.Len(t, summary.RecentVotes, 3)
	assert.Equal(t, tally.AnonymousVoter, summary.RecentVotes[0].Voter)
	assert.Equal(t, "Voting ends in", summary.TimeStatus.Text)

	w = env.do(t, http.MethodGet, resultsPath+"export/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Equal(t, []string{"candidate,votes,percentage", "Alice,2,67", "Bob,1,33"}, lines)

	verifyPath := fmt.Sprintf("/api/events/%d/receipt/verify/", event.ID)
	w = env.do(t, http.MethodPost, verifyPath, "", map[string]string{"receipt": receipt})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	verified := decode[map[string]any](t, w)
	assert.Equal(t, true, verified["valid"])
	assert.Equal(t, "Alice", verified["candidate"])

	w = env.do(t, http.MethodPost, verifyPath, "", map[string]string{"receipt": strings.Repeat("0", 64)})
	assert.JSONEq(t, `{"valid":false}`, w.Body.String())

	var vote models.Vote
	require.NoError(t, env.db.Where("receipt = ?", receipt).First(&vote).Error)
	require.NoError(t, env.db.Model(&models.VoteShare{}).Where("vote_id = ?", vote.ID).Update("share_data", "AAAA").Error)
	w = env.do(t, http.MethodPost, verifyPath, "", map[string]string{"receipt": receipt})
	assert.JSONEq(t, `{"valid":false}`, w.Body.String())
}

func TestStreamResults(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	event := env.createEvent(t, owner, "Live", -time.Minute, time.Hour, false)

	server := httptest.NewServer(env.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/events/%d/results/stream/", server.URL, event.ID), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	var events int
	for scanner.Scan() && events < 2 {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			assert.Equal(t, "results", strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		}
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			var s tally.Summary
			require.NoError(t, json.Unmarshal([]byte(data), &s))
			assert.Equal(t, event.ID, s.EventID)
			events++
		}
	}
	assert.Equal(t, 2, events)
}

func TestStreamResultsStopsAfterEnd(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.createUser(t, "owner", false)
	event := env.createEvent(t, owner, "Over", -2*time.Hour, time.Hour, false)

	server := httptest.NewServer(env.router)
	defer server.Close()

	resp, err := http.Get(fmt.Sprintf("%s/api/events/%d/results/stream/", server.URL, event.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(body), "event:results"))
}
