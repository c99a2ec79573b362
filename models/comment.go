package models

import "time"

type Comment struct {
	ID              uint `gorm:"primaryKey"`
	EventID         uint `gorm:"not null;index"`
	UserID          uint `gorm:"not null;index"`
	User            User
	Content         string `gorm:"not null"`
	ParentCommentID *uint  `gorm:"index"`
	IsApproved      bool   `gorm:"not null;default:true"`
	CreatedAt       time.Time
}
