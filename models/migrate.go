package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the API uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Profile{},
		&Category{},
		&VotingEvent{},
		&Candidate{},
		&Favorite{},
		&Vote{},
		&VoteShare{},
		&Comment{},
		&Notification{},
		&Report{},
		&ActivityLog{},
		&PasswordResetToken{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
