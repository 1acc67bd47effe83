package due

import (
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/hopeana/dispatcher/internal/models"
)

// Window is a named local time-of-day range [StartHour, EndHour).
type Window struct {
	Name      string
	StartHour int
	EndHour   int
}

// Hours is the length of the window.
func (w Window) Hours() int {
	return w.EndHour - w.StartHour
}

var windows = map[string]Window{
	models.WindowMorning:   {Name: models.WindowMorning, StartHour: 6, EndHour: 12},
	models.WindowAfternoon: {Name: models.WindowAfternoon, StartHour: 12, EndHour: 17},
	models.WindowEvening:   {Name: models.WindowEvening, StartHour: 17, EndHour: 21},
}

// WindowFor resolves a window name. An empty name means morning.
func WindowFor(name string) (Window, bool) {
	if name == "" {
		name = models.WindowMorning
	}
	w, ok := windows[strings.ToLower(name)]
	return w, ok
}

// SmallestWindowHours returns the length of the shortest configured window.
func SmallestWindowHours() int {
	smallest := 0
	for _, w := range windows {
		if smallest == 0 || w.Hours() < smallest {
			smallest = w.Hours()
		}
	}
	return smallest
}

var locations sync.Map

// Location resolves an IANA timezone. Empty or unknown names fall back to UTC.
func Location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(tz); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	locations.Store(tz, loc)
	return loc
}

// LocalDate renders t as YYYY-MM-DD in the given timezone.
func LocalDate(tz string, t time.Time) string {
	return t.In(Location(tz)).Format(time.DateOnly)
}
