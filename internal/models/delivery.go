package models

import "time"

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// DeliveryRecord is one attempted send. Records are append-only.
type DeliveryRecord struct {
	ID         string
	ScheduleID string
	UserID     string
	ContentID  string
	Channel    string
	Status     string
	SentAt     time.Time
	// LocalDate is SentAt rendered as YYYY-MM-DD in the schedule's timezone.
	LocalDate string
}
