// Package tally turns stored votes into the results view of an event.
package tally

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Kaung2240/VoteX/models"
)

// RecentLimit is how many votes the results view lists.
const RecentLimit = 10

// AnonymousVoter is shown in place of the voter of an anonymous vote.
const AnonymousVoter = "Anonymous"

type CandidateResult struct {
	ID         uint   `json:"id" csv:"-"`
	Name       string `json:"name" csv:"candidate"`
	Votes      int    `json:"votes" csv:"votes"`
	Percentage int    `json:"percentage" csv:"percentage"`
}

type RecentVote struct {
	ID        uint      `json:"id"`
	Voter     string    `json:"voter"`
	Candidate string    `json:"candidate"`
	CastAt    time.Time `json:"time"`
}

type TimeStatus struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

type Summary struct {
	EventID      uint              `json:"event_id"`
	EventName    string            `json:"event_name"`
	Status       string            `json:"status"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	TotalVotes   int               `json:"total_votes"`
	UniqueVoters int               `json:"unique_voters"`
	Candidates   []CandidateResult `json:"candidates"`
	Winner       *CandidateResult  `json:"winner"`
	Progress     int               `json:"progress"`
	TimeStatus   TimeStatus        `json:"time_status"`
	RecentVotes  []RecentVote      `json:"recent_votes"`
	ComputedAt   time.Time         `json:"computed_at"`
}

// Summarize computes the results of an event. Candidate totals come from the
// candidates' counters. recent must have Voter and Candidate loaded; only the
// newest RecentLimit of them are listed.
func Summarize(event models.VotingEvent, recent []models.Vote, uniqueVoters int, now time.Time) Summary {
	s := Summary{
		EventID:      event.ID,
		EventName:    event.EventName,
		Status:       event.Status(now),
		StartTime:    event.StartTime,
		EndTime:      event.EndTime,
		UniqueVoters: uniqueVoters,
		Candidates:   make([]CandidateResult, 0, len(event.Candidates)),
		RecentVotes:  []RecentVote{},
		ComputedAt:   now,
	}

	for _, c := range event.Candidates {
		s.TotalVotes += c.VotesCount
	}
	for _, c := range event.Candidates {
		s.Candidates = append(s.Candidates, CandidateResult{
			ID:         c.ID,
			Name:       c.Name,
			Votes:      c.VotesCount,
			Percentage: Percentage(c.VotesCount, s.TotalVotes),
		})
	}
	if s.TotalVotes > 0 {
		ranked := make([]CandidateResult, len(s.Candidates))
		copy(ranked, s.Candidates)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Votes > ranked[j].Votes })
		winner := ranked[0]
		s.Winner = &winner
	}

	ordered := make([]models.Vote, len(recent))
	copy(ordered, recent)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CreatedAt.After(ordered[j].CreatedAt) })
	if len(ordered) > RecentLimit {
		ordered = ordered[:RecentLimit]
	}
	for _, v := range ordered {
		voter := v.Voter.Username
		if v.IsAnonymous {
			voter = AnonymousVoter
		}
		s.RecentVotes = append(s.RecentVotes, RecentVote{
			ID:        v.ID,
			Voter:     voter,
			Candidate: v.Candidate.Name,
			CastAt:    v.CreatedAt,
		})
	}

	s.Progress = Progress(event.StartTime, event.EndTime, now)
	s.TimeStatus = StatusText(s.Status, event.StartTime, event.EndTime, now)
	return s
}

// Percentage is votes/total rounded to a whole percent, 0 when total is 0.
func Percentage(votes, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(votes) / float64(total) * 100))
}

// Progress is the elapsed share of the voting window, floored and clamped
// to [0, 100].
func Progress(start, end, now time.Time) int {
	duration := end.Sub(start)
	if duration <= 0 {
		if now.Before(end) {
			return 0
		}
		return 100
	}
	p := math.Floor(float64(now.Sub(start)) / float64(duration) * 100)
	return int(math.Max(0, math.Min(100, p)))
}

func StatusText(status string, start, end, now time.Time) TimeStatus {
	switch status {
	case models.StatusUpcoming:
		return TimeStatus{Text: "Voting starts in", Value: FormatRemaining(start.Sub(now))}
	case models.StatusOngoing:
		return TimeStatus{Text: "Voting ends in", Value: FormatRemaining(end.Sub(now))}
	default:
		return TimeStatus{Text: "Voting ended", Value: FormatElapsed(now.Sub(end))}
	}
}

// FormatRemaining renders a countdown as "1d 2h", "3h 4m" or "5m 6s".
func FormatRemaining(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	default:
		return fmt.Sprintf("%dm %ds", minutes%60, seconds%60)
	}
}

// FormatElapsed renders time since an event ended, e.g. "2 days ago".
func FormatElapsed(d time.Duration) string {
	minutes := int64(d / time.Minute)
	hours := minutes / 60
	days := hours / 24
	switch {
	case days > 0:
		return plural(days, "day") + " ago"
	case hours > 0:
		return plural(hours, "hour") + " ago"
	default:
		return plural(minutes, "minute") + " ago"
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
