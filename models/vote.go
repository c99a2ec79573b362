package models

import "time"

// Vote is a single user's choice of candidate within an event.
type Vote struct {
	ID            uint `gorm:"primaryKey"`
	VotingEventID uint `gorm:"not null;uniqueIndex:idx_vote_event_voter"`
	CandidateID   uint `gorm:"not null;index"`
	Candidate     Candidate
	VoterID       uint `gorm:"not null;uniqueIndex:idx_vote_event_voter"`
	Voter         User
	IsAnonymous   bool      `gorm:"not null;default:false"`
	EncryptedVote string    `gorm:"not null"`
	Receipt       string    `gorm:"size:64;not null;index"`
	CreatedAt     time.Time `gorm:"index"`
}
