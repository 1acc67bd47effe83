package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hopeana/dispatcher/internal/repository/cache"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Set(ctx context.Context, key string, value []string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockCache) Get(ctx context.Context, key string) ([]string, error) {
	args := m.Called(ctx, key)
	v, _ := args.Get(0).([]string)
	return v, args.Error(1)
}

type recordingCollector struct {
	ops []string
}

func (r *recordingCollector) ObserveCache(operation, result string, _ time.Duration) {
	r.ops = append(r.ops, operation+":"+result)
}

func TestMetricsDecorator(t *testing.T) {
	inner := &mockCache{}
	t.Cleanup(func() { inner.AssertExpectations(t) })

	inner.On("Get", mock.Anything, "k").Return([]string{"a"}, nil).Once()
	inner.On("Get", mock.Anything, "missing").Return(nil, redis.Nil).Once()
	inner.On("Set", mock.Anything, "k", []string{"b"}).Return(nil).Once()
	inner.On("Set", mock.Anything, "bad", []string{"c"}).Return(errors.New("down")).Once()

	col := &recordingCollector{}
	d := cache.NewMetricsDecorator[[]string](inner, col)
	ctx := context.Background()

	v, err := d.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)

	_, err = d.Get(ctx, "missing")
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, d.Set(ctx, "k", []string{"b"}))
	assert.Error(t, d.Set(ctx, "bad", []string{"c"}))

	assert.Equal(t, []string{"get:hit", "get:miss", "set:ok", "set:error"}, col.ops)
}
