package models

import "time"

const (
	PlanFree = "free"
	PlanPro  = "pro"

	UsageActive    = "active"
	UsageCancelled = "cancelled"
	UsageFailed    = "failed"
	UsageExpired   = "expired"
)

// UsageCounter is a user's monthly send allowance.
type UsageCounter struct {
	UserID       string
	Plan         string
	Status       string
	MessageLimit int
	MessagesUsed int
	BillingCycle string
	UpdatedAt    time.Time
}
