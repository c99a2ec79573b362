package controllers

import (
	"time"

	"github.com/Kaung2240/VoteX/models"
)

const dateLayout = "2006-01-02"

type categoryResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type candidateResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProfilePic  string `json:"profile_pic"`
	VotesCount  int    `json:"votes_count"`
}

type eventResponse struct {
	ID          uint                `json:"id"`
	EventName   string              `json:"event_name"`
	StartTime   time.Time           `json:"start_time"`
	EndTime     time.Time           `json:"end_time"`
	IsPrivate   bool                `json:"is_private"`
	EventToken  *string             `json:"event_token"`
	CreatedBy   uint                `json:"created_by"`
	Categories  []categoryResponse  `json:"categories"`
	Candidates  []candidateResponse `json:"candidates"`
	Status      string              `json:"status"`
	IsFavorited bool                `json:"is_favorited"`
}

type profileResponse struct {
	Timezone       string  `json:"timezone"`
	ProfilePicture string  `json:"profile_picture"`
	Birthday       *string `json:"birthday"`
}

type userResponse struct {
	ID       uint            `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Profile  profileResponse `json:"profile"`
}

type commentResponse struct {
	ID            uint              `json:"id"`
	User          string            `json:"user"`
	Content       string            `json:"content"`
	ParentComment *uint             `json:"parent_comment"`
	CreatedAt     time.Time         `json:"created_at"`
	Replies       []commentResponse `json:"replies"`
}

type notificationResponse struct {
	ID               uint      `json:"id"`
	User             uint      `json:"user"`
	NotificationType string    `json:"notification_type"`
	Message          string    `json:"message"`
	RelatedEvent     *uint     `json:"related_event"`
	RelatedComment   *uint     `json:"related_comment"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

type reportResponse struct {
	ID          uint       `json:"id"`
	Reporter    uint       `json:"reporter"`
	ContentType string     `json:"content_type"`
	ContentID   uint       `json:"content_id"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	AdminNotes  *string    `json:"admin_notes"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

type activityResponse struct {
	ID        uint      `json:"id"`
	User      *string   `json:"user"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ip_address"`
	Timestamp time.Time `json:"timestamp"`
}

func serializeCategory(c models.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name}
}

func serializeCandidate(c models.Candidate) candidateResponse {
	return candidateResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ProfilePic:  c.ProfilePic,
		VotesCount:  c.VotesCount,
	}
}

// serializeEvent hides the private event token from everyone but the creator.
func serializeEvent(e models.VotingEvent, viewer uint, favorited bool, now time.Time) eventResponse {
	resp := eventResponse{
		ID:          e.ID,
		EventName:   e.EventName,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		IsPrivate:   e.IsPrivate,
		CreatedBy:   e.CreatedByID,
		Categories:  make([]categoryResponse, 0, len(e.Categories)),
		Candidates:  make([]candidateResponse, 0, len(e.Candidates)),
		Status:      e.Status(now),
		IsFavorited: favorited,
	}
	if viewer != 0 && viewer == e.CreatedByID {
		resp.EventToken = e.EventToken
	}
	for _, c := range e.Categories {
		resp.Categories = append(resp.Categories, serializeCategory(c))
	}
	for _, c := range e.Candidates {
		resp.Candidates = append(resp.Candidates, serializeCandidate(c))
	}
	return resp
}

func serializeUser(u models.User) userResponse {
	resp := userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Profile:  serializeProfile(u.Profile),
	}
	return resp
}

func serializeProfile(p models.Profile) profileResponse {
	resp := profileResponse{Timezone: p.Timezone, ProfilePicture: p.ProfilePicture}
	if p.Birthday != nil {
		s := p.Birthday.Format(dateLayout)
		resp.Birthday = &s
	}
	return resp
}

func serializeNotification(n models.Notification) notificationResponse {
	return notificationResponse{
		ID:               n.ID,
		User:             n.UserID,
		NotificationType: n.NotificationType,
		Message:          n.Message,
		RelatedEvent:     n.RelatedEventID,
		RelatedComment:   n.RelatedCommentID,
		IsRead:           n.IsRead,
		CreatedAt:        n.CreatedAt,
	}
}

func serializeReport(r models.Report) reportResponse {
	return reportResponse{
		ID:          r.ID,
		Reporter:    r.ReporterID,
		ContentType: r.ContentType,
		ContentID:   r.ContentID,
		Reason:      r.Reason,
		Status:      r.Status,
		AdminNotes:  r.AdminNotes,
		CreatedAt:   r.CreatedAt,
		ResolvedAt:  r.ResolvedAt,
	}
}

func serializeActivity(a models.ActivityLog) activityResponse {
	resp := activityResponse{ID: a.ID, Action: a.Action, IPAddress: a.IPAddress, Timestamp: a.Timestamp}
	if a.User != nil {
		name := a.User.Username
		resp.User = &name
	}
	return resp
}
