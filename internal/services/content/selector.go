package content

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/models"
)

// DefaultHistoryMax caps how many recently delivered items are avoided.
const DefaultHistoryMax = 50

type historyStore interface {
	// RecentContentIDs returns up to limit distinct content ids most recently
	// delivered to userID, newest first.
	RecentContentIDs(ctx context.Context, userID string, limit int) ([]string, error)
}

// Selector picks a content item the recipient has not seen recently.
type Selector struct {
	history    historyStore
	historyMax int
	logger     zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector builds a Selector. A nil rng is replaced by a time-seeded one.
func NewSelector(history historyStore, historyMax int, rng *rand.Rand, logger zerolog.Logger) *Selector {
	if historyMax <= 0 {
		historyMax = DefaultHistoryMax
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger = logger.With().Str("component", "ContentSelector").Logger()
	return &Selector{history: history, historyMax: historyMax, rng: rng, logger: logger}
}

// Pick draws uniformly from the items of pool not among the user's recent
// deliveries, or from the whole pool once everything has been seen.
// It returns models.ErrNoContent only when pool is empty.
func (s *Selector) Pick(ctx context.Context, userID string, pool []models.ContentItem) (models.ContentItem, error) {
	if len(pool) == 0 {
		return models.ContentItem{}, models.ErrNoContent
	}

	// keep at least one item selectable
	limit := min(len(pool)-1, s.historyMax)

	seen := make(map[string]struct{}, limit)
	if limit > 0 {
		ids, err := s.history.RecentContentIDs(ctx, userID, limit)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("user_id", userID).
				Msg("content history unavailable, selecting from full pool")
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	unseen := make([]int, 0, len(pool))
	for i, item := range pool {
		if _, ok := seen[item.ID]; !ok {
			unseen = append(unseen, i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(unseen) == 0 {
		return pool[s.rng.Intn(len(pool))], nil
	}
	return pool[unseen[s.rng.Intn(len(unseen))]], nil
}
