package content_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/services/content"
)

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) RecentContentIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	args := m.Called(ctx, userID, limit)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func pool(n int) []models.ContentItem {
	items := make([]models.ContentItem, n)
	for i := range items {
		items[i] = models.ContentItem{ID: fmt.Sprintf("q-%d", i), Body: "quote", IsActive: true}
	}
	return items
}

func newSelector(h *mockHistory, max int) *content.Selector {
	return content.NewSelector(h, max, rand.New(rand.NewSource(1)), zerolog.Nop())
}

func TestSelector_PicksUnseen(t *testing.T) {
	h := &mockHistory{}
	h.On("RecentContentIDs", mock.Anything, "u-1", 3).
		Return([]string{"q-0", "q-1", "q-2"}, nil)
	t.Cleanup(func() { h.AssertExpectations(t) })

	s := newSelector(h, 50)
	for i := 0; i < 20; i++ {
		item, err := s.Pick(context.Background(), "u-1", pool(4))
		require.NoError(t, err)
		assert.Equal(t, "q-3", item.ID)
	}
}

func TestSelector_HistoryCapped(t *testing.T) {
	h := &mockHistory{}
	h.On("RecentContentIDs", mock.Anything, "u-1", 10).Return([]string{}, nil).Once()
	t.Cleanup(func() { h.AssertExpectations(t) })

	s := newSelector(h, 10)
	_, err := s.Pick(context.Background(), "u-1", pool(100))
	require.NoError(t, err)
}

func TestSelector_FallsBackToFullPool(t *testing.T) {
	h := &mockHistory{}
	// history returns more than the pool minus one, e.g. items since deactivated
	h.On("RecentContentIDs", mock.Anything, "u-1", 2).
		Return([]string{"q-0", "q-1", "q-2"}, nil)

	s := newSelector(h, 50)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		item, err := s.Pick(context.Background(), "u-1", pool(3))
		require.NoError(t, err)
		seen[item.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestSelector_SingleItemPoolSkipsHistory(t *testing.T) {
	h := &mockHistory{}
	s := newSelector(h, 50)

	item, err := s.Pick(context.Background(), "u-1", pool(1))
	require.NoError(t, err)
	assert.Equal(t, "q-0", item.ID)
	h.AssertNotCalled(t, "RecentContentIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestSelector_HistoryErrorDegrades(t *testing.T) {
	h := &mockHistory{}
	h.On("RecentContentIDs", mock.Anything, "u-1", 4).Return(nil, errors.New("db down")).Once()

	s := newSelector(h, 50)
	item, err := s.Pick(context.Background(), "u-1", pool(5))
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
}

func TestSelector_EmptyPool(t *testing.T) {
	s := newSelector(&mockHistory{}, 50)
	_, err := s.Pick(context.Background(), "u-1", nil)
	assert.ErrorIs(t, err, models.ErrNoContent)
}
