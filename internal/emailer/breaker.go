package emailer

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hopeana/dispatcher/internal/services/dispatch"
)

type BreakerConfig struct {
	TimeInterval time.Duration
	TimeTimeOut  time.Duration
	RepeatNumber uint32
}

// BreakerSender stops calling a provider whose calls keep failing. Only
// call errors trip it; a rejected chunk is a completed call.
type BreakerSender struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	wrapped dispatch.BulkSender
}

func NewBreakerSender(name string, cfg BreakerConfig, wrapped dispatch.BulkSender) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.TimeInterval,
		Timeout:     cfg.TimeTimeOut,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.RepeatNumber
		},
	}
	return &BreakerSender{
		name:    name,
		cb:      gobreaker.NewCircuitBreaker(settings),
		wrapped: wrapped,
	}
}

func (b *BreakerSender) SendBulk(ctx context.Context, chunk dispatch.Chunk) (dispatch.ChunkResult, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.wrapped.SendBulk(ctx, chunk)
	})
	if err != nil {
		return dispatch.ChunkResult{}, fmt.Errorf("%s unavailable: %w", b.name, err)
	}
	res, ok := result.(dispatch.ChunkResult)
	if !ok {
		return dispatch.ChunkResult{}, fmt.Errorf("%s returned unexpected result", b.name)
	}
	return res, nil
}

// State reports the breaker state, e.g. for health output.
func (b *BreakerSender) State() string {
	return b.cb.State().String()
}
