package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
)

const billingCycleLayout = "2006-01"

// UsageRepository stores per-user monthly usage counters.
type UsageRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewUsageRepository(db *sql.DB, logger zerolog.Logger, m *metrics.Metrics) *UsageRepository {
	logger = logger.With().Str("component", "UsageRepository").Logger()
	return &UsageRepository{DB: db, log: logger, m: m}
}

// GetUsage returns the counter of userID, or nil when none exists.
func (r *UsageRepository) GetUsage(ctx context.Context, userID string) (*models.UsageCounter, error) {
	var (
		u         models.UsageCounter
		updatedAt int64
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT user_id, plan, status, message_limit, messages_used, billing_cycle, updated_at
		FROM usage_counters WHERE user_id = ?`, userID,
	).Scan(&u.UserID, &u.Plan, &u.Status, &u.MessageLimit, &u.MessagesUsed, &u.BillingCycle, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("user_id", userID).Msg("failed to read usage counter")
		r.m.Technical("db_query_error")
		return nil, err
	}
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

// IncrementUsage adds one message to the user's counter in a single
// statement, creating a free-tier row with usage 1 when none exists.
func (r *UsageRepository) IncrementUsage(ctx context.Context, userID string, freeLimit int) error {
	now := time.Now()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO usage_counters
		    (user_id, plan, status, message_limit, messages_used, billing_cycle, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		    messages_used = messages_used + 1,
		    updated_at    = excluded.updated_at`,
		userID, models.PlanFree, models.UsageActive, freeLimit,
		now.UTC().Format(billingCycleLayout), toMillis(now),
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("user_id", userID).Msg("failed to increment usage")
		r.m.Technical("db_upsert_error")
		return err
	}
	r.log.Debug().Ctx(ctx).Str("user_id", userID).Msg("usage incremented")
	return nil
}

// PutUsage creates or replaces a counter. Used by the subscription
// lifecycle (plan activation and renewal) and by tests.
func (r *UsageRepository) PutUsage(ctx context.Context, u models.UsageCounter) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO usage_counters
		    (user_id, plan, status, message_limit, messages_used, billing_cycle, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		    plan          = excluded.plan,
		    status        = excluded.status,
		    message_limit = excluded.message_limit,
		    messages_used = excluded.messages_used,
		    billing_cycle = excluded.billing_cycle,
		    updated_at    = excluded.updated_at`,
		u.UserID, u.Plan, u.Status, u.MessageLimit, u.MessagesUsed, u.BillingCycle, toMillis(time.Now()),
	)
	if err != nil {
		r.m.Technical("db_upsert_error")
	}
	return err
}
