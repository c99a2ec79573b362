package models

// VoteShare is one Shamir share of a vote receipt digest.
type VoteShare struct {
	ID         uint   `gorm:"primaryKey"`
	VoteID     uint   `gorm:"not null;uniqueIndex:idx_share_vote_index"`
	ShareIndex int    `gorm:"not null;uniqueIndex:idx_share_vote_index"`
	ShareData  string `gorm:"not null"`
}
