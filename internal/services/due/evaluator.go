package due

import (
	"strings"
	"time"

	"github.com/hopeana/dispatcher/internal/models"
)

var unitDurations = map[string]time.Duration{
	models.UnitHours: time.Hour,
	models.UnitDays:  24 * time.Hour,
	models.UnitWeeks: 7 * 24 * time.Hour,
}

// Verdict is the outcome of evaluating one schedule at one instant.
type Verdict struct {
	Due bool
	// InWindow reports that the local hour is inside the schedule's window.
	InWindow bool
	// PastWindow reports that today's window has already closed (catch-up).
	PastWindow bool
}

// IsDue reports whether the schedule should be delivered at now.
// It has no side effects.
func IsDue(s models.Schedule, last *models.DeliveryRecord, now time.Time) bool {
	return Evaluate(s, last, now).Due
}

// Evaluate computes the window predicates and the due decision for s at now.
func Evaluate(s models.Schedule, last *models.DeliveryRecord, now time.Time) Verdict {
	var v Verdict
	if !s.IsActive {
		return v
	}

	w, ok := WindowFor(s.TimeOfDay)
	if !ok {
		return v
	}

	loc := Location(s.Timezone)
	local := now.In(loc)
	hour := local.Hour()

	v.InWindow = hour >= w.StartHour && hour < w.EndHour
	v.PastWindow = hour >= w.EndHour
	if !v.InWindow && !v.PastWindow {
		return v
	}

	if last != nil && sentTodayInWindow(last.SentAt.In(loc), local, w) {
		return v
	}

	switch s.Frequency {
	case models.FrequencySpecificDays:
		v.Due = dayMatches(s.DaysOfWeek, local.Weekday())
	case models.FrequencyCustomInterval:
		v.Due = intervalElapsed(s.IntervalValue, s.IntervalUnit, last, now)
	default:
		v.Due = true
	}
	return v
}

func sentTodayInWindow(sentLocal, nowLocal time.Time, w Window) bool {
	sy, sm, sd := sentLocal.Date()
	ny, nm, nd := nowLocal.Date()
	if sy != ny || sm != nm || sd != nd {
		return false
	}
	return sentLocal.Hour() >= w.StartHour
}

func dayMatches(days []string, weekday time.Weekday) bool {
	name := weekday.String()
	for _, d := range days {
		if strings.EqualFold(strings.TrimSpace(d), name) {
			return true
		}
	}
	return false
}

// intervalElapsed fails open: a missing or unknown interval never strands a schedule.
func intervalElapsed(value int, unit string, last *models.DeliveryRecord, now time.Time) bool {
	if last == nil || value <= 0 || unit == "" {
		return true
	}
	d, ok := unitDurations[strings.ToLower(unit)]
	if !ok {
		return true
	}
	return now.Sub(last.SentAt) >= time.Duration(value)*d
}
