package models

import "time"

// ActivityLog records security-relevant actions such as casting a vote.
type ActivityLog struct {
	ID        uint  `gorm:"primaryKey"`
	UserID    *uint `gorm:"index"`
	User      *User
	Action    string    `gorm:"size:255;not null"`
	IPAddress string    `gorm:"size:45"`
	Timestamp time.Time `gorm:"autoCreateTime;index"`
}
