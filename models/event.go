package models

import (
	"time"
)

// Event status values. They are derived from the time window, never stored.
const (
	StatusUpcoming = "upcoming"
	StatusOngoing  = "ongoing"
	StatusEnded    = "ended"
)

type Category struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100;uniqueIndex;not null"`
}

// VotingEvent is a voting occasion with a time window and a set of candidates.
type VotingEvent struct {
	ID              uint      `gorm:"primaryKey"`
	EventName       string    `gorm:"size:100;not null;index"`
	StartTime       time.Time `gorm:"not null;index"`
	EndTime         time.Time `gorm:"not null;index"`
	EventToken      *string   `gorm:"size:10"`
	IsPrivate       bool      `gorm:"not null;default:false"`
	CreatedByID     uint      `gorm:"not null;index"`
	CreatedBy       User
	Categories      []Category  `gorm:"many2many:event_categories"`
	Candidates      []Candidate `gorm:"foreignKey:VotingEventID"`
	CreatedAt       time.Time   `gorm:"index"`
	StartNotifiedAt *time.Time
	ReminderSentAt  *time.Time
}

// Status reports where now falls relative to the event window.
func (e VotingEvent) Status(now time.Time) string {
	switch {
	case now.Before(e.StartTime):
		return StatusUpcoming
	case now.After(e.EndTime):
		return StatusEnded
	default:
		return StatusOngoing
	}
}

// Candidate is an option within an event that can receive votes.
type Candidate struct {
	ID            uint   `gorm:"primaryKey"`
	VotingEventID uint   `gorm:"not null;index"`
	Name          string `gorm:"size:100;not null"`
	Description   string
	ProfilePic    string
	VotesCount    int `gorm:"not null;default:0"`
}

// Favorite marks an event a user wants to follow.
type Favorite struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_favorite_user_event"`
	EventID   uint `gorm:"not null;uniqueIndex:idx_favorite_user_event;index"`
	CreatedAt time.Time
}
