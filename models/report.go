package models

import "time"

const (
	ReportEvent   = "event"
	ReportComment = "comment"
	ReportUser    = "user"

	ReportPending       = "pending"
	ReportInvestigating = "investigating"
	ReportResolved      = "resolved"
)

type Report struct {
	ID          uint   `gorm:"primaryKey"`
	ReporterID  uint   `gorm:"not null;index"`
	ContentType string `gorm:"size:10;not null;index:idx_report_content"`
	ContentID   uint   `gorm:"not null;index:idx_report_content"`
	Reason      string `gorm:"not null"`
	Status      string `gorm:"size:15;not null;default:pending;index"`
	AdminNotes  *string
	CreatedAt   time.Time `gorm:"index"`
	ResolvedAt  *time.Time
}
