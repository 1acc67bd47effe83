// Package engine runs one dispatch invocation end to end: load schedules,
// decide what is due, bound the batch, admit, pick content and send.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/services/dispatch"
	"github.com/hopeana/dispatcher/internal/services/due"
	"github.com/hopeana/dispatcher/internal/services/planner"
)

const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

type scheduleSource interface {
	ListActiveWithLastSent(ctx context.Context, channel string) ([]models.ScheduleWithLast, error)
}

type contentSource interface {
	ListActive(ctx context.Context) ([]models.ContentItem, error)
}

type batchPlanner interface {
	Plan(due []planner.Candidate) planner.Plan
}

type quotaGate interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

type contentPicker interface {
	Pick(ctx context.Context, userID string, pool []models.ContentItem) (models.ContentItem, error)
}

type executor interface {
	Execute(ctx context.Context, deliveries []models.Delivery) dispatch.Outcome
}

type triggerKey struct{}

// WithTrigger labels the runs started with ctx, e.g. for metrics.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return TriggerManual
}

// Engine is the per-invocation orchestrator. It is safe to call Run from
// several goroutines; overlapping runs are not serialised.
type Engine struct {
	schedules scheduleSource
	content   contentSource
	planner   batchPlanner
	quota     quotaGate
	picker    contentPicker
	exec      executor
	now       func() time.Time
	logger    zerolog.Logger
	m         *metrics.Metrics
}

func New(
	schedules scheduleSource,
	content contentSource,
	plan batchPlanner,
	quota quotaGate,
	picker contentPicker,
	exec executor,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Engine {
	logger = logger.With().Str("component", "Engine").Logger()
	return &Engine{
		schedules: schedules,
		content:   content,
		planner:   plan,
		quota:     quota,
		picker:    picker,
		exec:      exec,
		now:       time.Now,
		logger:    logger,
		m:         m,
	}
}

// WithClock replaces the time source used for due evaluation.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run performs one invocation. Failures never escape; they are counted and
// listed in the returned summary.
func (e *Engine) Run(ctx context.Context) models.RunSummary {
	start := time.Now()
	trigger := triggerFrom(ctx)
	e.m.Runs.WithLabelValues(trigger).Inc()

	summary := models.RunSummary{Errors: []string{}}
	defer func() {
		dur := time.Since(start)
		e.m.RunDuration.WithLabelValues(trigger).Observe(dur.Seconds())
		e.m.Deliveries.WithLabelValues("sent").Add(float64(summary.Sent))
		e.m.Deliveries.WithLabelValues("failed").Add(float64(summary.Failed))
		e.m.Deliveries.WithLabelValues("skipped").Add(float64(summary.Skipped))
		e.m.RemainingLoad.Set(float64(summary.Remaining))
		e.logger.Info().Ctx(ctx).
			Str("trigger", trigger).
			Int("sent", summary.Sent).
			Int("failed", summary.Failed).
			Int("skipped", summary.Skipped).
			Int("remaining", summary.Remaining).
			Int("errors", len(summary.Errors)).
			Dur("duration", dur).
			Msg("dispatch run finished")
	}()

	schedules, err := e.schedules.ListActiveWithLastSent(ctx, models.ChannelEmail)
	if err != nil {
		e.m.Technical("load_schedules_error")
		summary.AddError(fmt.Sprintf("Failed to load schedules: %s", err.Error()))
		return summary
	}

	pool, err := e.content.ListActive(ctx)
	if err != nil {
		e.m.Technical("load_content_error")
		summary.AddError(fmt.Sprintf("Failed to load content: %s", err.Error()))
		return summary
	}
	if len(pool) == 0 {
		e.m.Business("empty_content_pool")
		e.logger.Error().Ctx(ctx).Err(models.ErrEmptyContentPool).Msg("aborting run")
		summary.AddError("No active content found in the content pool")
		return summary
	}

	now := e.now()
	candidates := e.dueCandidates(schedules, now)
	summary.Skipped = len(schedules) - len(candidates)
	e.m.DueSchedules.Set(float64(len(candidates)))

	plan := e.planner.Plan(candidates)
	summary.Remaining = plan.Remaining
	e.m.BatchSize.Set(float64(len(plan.Batch)))

	e.logger.Debug().Ctx(ctx).
		Int("active", len(schedules)).
		Int("due", len(candidates)).
		Int("batch", len(plan.Batch)).
		Int("pool", len(pool)).
		Msg("batch planned")

	deliveries := e.prepare(ctx, plan.Batch, pool, now, &summary)
	if len(deliveries) == 0 {
		return summary
	}

	out := e.exec.Execute(ctx, deliveries)
	summary.Sent += out.Sent
	summary.Failed += out.Failed
	summary.Errors = append(summary.Errors, out.Errors...)
	return summary
}

func (e *Engine) dueCandidates(schedules []models.ScheduleWithLast, now time.Time) []planner.Candidate {
	var out []planner.Candidate
	for _, s := range schedules {
		v := due.Evaluate(s.Schedule, s.LastSent, now)
		if !v.Due {
			continue
		}
		out = append(out, planner.Candidate{ScheduleWithLast: s, InWindow: v.InWindow})
	}
	return out
}

// prepare admits each candidate through the quota gate and assigns content.
func (e *Engine) prepare(
	ctx context.Context,
	batch []planner.Candidate,
	pool []models.ContentItem,
	now time.Time,
	summary *models.RunSummary,
) []models.Delivery {
	deliveries := make([]models.Delivery, 0, len(batch))
	for _, c := range batch {
		s := c.Schedule

		allowed, err := e.quota.Allow(ctx, s.UserID)
		if err != nil {
			e.m.Technical("usage_read_error")
			summary.Failed++
			summary.AddError(fmt.Sprintf("Quota check failed for user %s: %s", s.UserID, err.Error()))
			continue
		}
		if !allowed {
			e.m.Business("quota_exhausted")
			summary.Skipped++
			continue
		}

		item, err := e.picker.Pick(ctx, s.UserID, pool)
		if err != nil {
			if !errors.Is(err, models.ErrNoContent) {
				e.m.Technical("content_pick_error")
			}
			summary.Failed++
			summary.AddError(fmt.Sprintf("No unsent content available for user %s", s.UserID))
			continue
		}

		deliveries = append(deliveries, models.Delivery{
			Schedule:  s,
			Content:   item,
			Recipient: dispatch.NewRecipient(s, item, now),
		})
	}
	return deliveries
}
