package planner

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hopeana/dispatcher/internal/models"
)

const (
	defaultTickMinutes = 15
	defaultWindowHours = 4
	defaultHardCap     = 500
)

// Config bounds the work done per invocation.
type Config struct {
	// TickMinutes is the assumed cadence of the external trigger.
	TickMinutes int
	// WindowHours is the length of the smallest delivery window.
	WindowHours int
	// HardCap is the absolute per-invocation limit.
	HardCap int
}

// Candidate is a due schedule together with its window position.
type Candidate struct {
	models.ScheduleWithLast
	InWindow bool
}

// Plan is the ordered subset selected for this invocation.
type Plan struct {
	Batch     []Candidate
	Remaining int
}

// Planner sizes and orders the due set.
type Planner struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a Planner. A nil rng is replaced by a time-seeded one.
func New(cfg Config, rng *rand.Rand) *Planner {
	if cfg.TickMinutes <= 0 {
		cfg.TickMinutes = defaultTickMinutes
	}
	if cfg.WindowHours <= 0 {
		cfg.WindowHours = defaultWindowHours
	}
	if cfg.HardCap <= 0 {
		cfg.HardCap = defaultHardCap
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, rng: rng}
}

// Slots is the number of ticks that fit in the smallest window.
func (p *Planner) Slots() int {
	slots := p.cfg.WindowHours * 60 / p.cfg.TickMinutes
	if slots < 1 {
		return 1
	}
	return slots
}

// BatchSize spreads dueCount across the slots of the smallest window,
// never exceeding the hard cap.
func (p *Planner) BatchSize(dueCount int) int {
	if dueCount <= 0 {
		return 0
	}
	slots := p.Slots()
	target := (dueCount + slots - 1) / slots
	return min(target, p.cfg.HardCap, dueCount)
}

// Plan shuffles the due set, moves on-time candidates ahead of catch-up ones
// keeping the shuffled order inside each group, and truncates to BatchSize.
// The input slice is not modified.
func (p *Planner) Plan(due []Candidate) Plan {
	ordered := make([]Candidate, len(due))
	copy(ordered, due)

	p.shuffle(ordered)
	ordered = partition(ordered)

	size := p.BatchSize(len(ordered))
	return Plan{
		Batch:     ordered[:size],
		Remaining: len(ordered) - size,
	}
}

// shuffle is an in-place Fisher-Yates shuffle.
func (p *Planner) shuffle(c []Candidate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(c) - 1; i > 0; i-- {
		j := p.rng.Intn(i + 1)
		c[i], c[j] = c[j], c[i]
	}
}

func partition(c []Candidate) []Candidate {
	out := make([]Candidate, 0, len(c))
	for _, x := range c {
		if x.InWindow {
			out = append(out, x)
		}
	}
	for _, x := range c {
		if !x.InWindow {
			out = append(out, x)
		}
	}
	return out
}
