package models

import "time"

const (
	NotificationEventStart    = "event_start"
	NotificationEventReminder = "event_reminder"
	NotificationCommentReply  = "comment_reply"
	NotificationVoteUpdate    = "vote_update"
)

type Notification struct {
	ID               uint   `gorm:"primaryKey"`
	UserID           uint   `gorm:"not null;index"`
	NotificationType string `gorm:"size:20;not null"`
	Message          string `gorm:"not null"`
	RelatedEventID   *uint  `gorm:"index"`
	RelatedCommentID *uint
	IsRead           bool      `gorm:"not null;default:false;index"`
	CreatedAt        time.Time `gorm:"index"`
}
