package cache

import (
	"context"
	"time"
)

type cache[T any] interface {
	Set(ctx context.Context, key string, value T) error
	Get(ctx context.Context, key string) (T, error)
}

type metricsCollector interface {
	ObserveCache(operation, result string, d time.Duration)
}

// MetricsDecorator records latency and hit ratio of the wrapped cache.
type MetricsDecorator[T any] struct {
	next      cache[T]
	collector metricsCollector
}

func NewMetricsDecorator[T any](next cache[T], collector metricsCollector) *MetricsDecorator[T] {
	return &MetricsDecorator[T]{next: next, collector: collector}
}

func (m *MetricsDecorator[T]) Set(ctx context.Context, key string, value T) error {
	start := time.Now()
	err := m.next.Set(ctx, key, value)
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.collector.ObserveCache("set", result, time.Since(start))
	return err
}

//nolint:ireturn
func (m *MetricsDecorator[T]) Get(ctx context.Context, key string) (T, error) {
	start := time.Now()
	data, err := m.next.Get(ctx, key)
	result := "hit"
	if err != nil {
		result = "miss"
	}
	m.collector.ObserveCache("get", result, time.Since(start))
	return data, err
}
