package models

import "time"

const (
	ChannelEmail = "email"

	FrequencyDaily          = "daily"
	FrequencySpecificDays   = "specific_days"
	FrequencyCustomInterval = "custom_interval"

	WindowMorning   = "morning"
	WindowAfternoon = "afternoon"
	WindowEvening   = "evening"

	UnitHours = "hours"
	UnitDays  = "days"
	UnitWeeks = "weeks"
)

// Schedule is a user's standing delivery configuration. The engine only reads it.
type Schedule struct {
	ID            string
	UserID        string
	UserEmail     string
	UserFirstName string
	Channel       string
	Frequency     string
	TimeOfDay     string
	Timezone      string
	DaysOfWeek    []string
	IntervalValue int
	IntervalUnit  string
	IsActive      bool
	CreatedAt     time.Time
}

// ScheduleWithLast pairs a schedule with its most recent sent delivery, if any.
type ScheduleWithLast struct {
	Schedule
	LastSent *DeliveryRecord
}
