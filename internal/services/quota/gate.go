package quota

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/models"
)

// DefaultFreeLimit is the monthly allowance of a user without a usage row.
const DefaultFreeLimit = 5

type usageStore interface {
	// GetUsage returns nil and no error when the user has no counter yet.
	GetUsage(ctx context.Context, userID string) (*models.UsageCounter, error)
	IncrementUsage(ctx context.Context, userID string, freeLimit int) error
}

var blockedStatuses = map[string]struct{}{
	models.UsageCancelled: {},
	models.UsageFailed:    {},
	models.UsageExpired:   {},
}

// Gate enforces per-user monthly send quotas.
type Gate struct {
	store     usageStore
	freeLimit int
	logger    zerolog.Logger
}

func NewGate(store usageStore, freeLimit int, logger zerolog.Logger) *Gate {
	if freeLimit <= 0 {
		freeLimit = DefaultFreeLimit
	}
	logger = logger.With().Str("component", "QuotaGate").Logger()
	return &Gate{store: store, freeLimit: freeLimit, logger: logger}
}

// Allow reports whether userID may receive one more message.
func (g *Gate) Allow(ctx context.Context, userID string) (bool, error) {
	usage, err := g.store.GetUsage(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("read usage for user %s: %w", userID, err)
	}
	if usage == nil {
		g.logger.Debug().Str("user_id", userID).Msg("no usage row, free tier allowance")
		return g.freeLimit > 0, nil
	}

	if _, blocked := blockedStatuses[usage.Status]; blocked {
		g.logger.Debug().
			Str("user_id", userID).
			Str("status", usage.Status).
			Msg("subscription status blocks delivery")
		return false, nil
	}

	allowed := usage.MessagesUsed < usage.MessageLimit
	if !allowed {
		g.logger.Debug().
			Str("user_id", userID).
			Int("used", usage.MessagesUsed).
			Int("limit", usage.MessageLimit).
			Msg("monthly quota exhausted")
	}
	return allowed, nil
}

// Consume records one successful send for userID, creating a free-tier
// counter when none exists.
func (g *Gate) Consume(ctx context.Context, userID string) error {
	if err := g.store.IncrementUsage(ctx, userID, g.freeLimit); err != nil {
		return fmt.Errorf("increment usage for user %s: %w", userID, err)
	}
	return nil
}
