package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account that can create events, vote and comment.
type User struct {
	gorm.Model
	Username   string  `gorm:"size:150;uniqueIndex;not null"`
	Email      string  `gorm:"size:254;uniqueIndex;not null"`
	Password   string  `gorm:"not null"`
	IsStaff    bool    `gorm:"not null;default:false"`
	Profile    Profile `gorm:"constraint:OnDelete:CASCADE"`
	DateJoined time.Time
}

// Profile carries per-user preferences. It is created together with the user.
type Profile struct {
	ID             uint `gorm:"primaryKey"`
	UserID         uint `gorm:"uniqueIndex;not null"`
	ProfilePicture string
	Birthday       *time.Time
	Timezone       string `gorm:"size:63;not null;default:UTC"`
}

// BeforeCreate fills in defaults that the database cannot express portably.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	if u.Profile.Timezone == "" {
		u.Profile.Timezone = "UTC"
	}
	return nil
}
