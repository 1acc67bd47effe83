package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/repository/sqlite"
)

type repos struct {
	db         *sql.DB
	schedules  *sqlite.ScheduleRepository
	content    *sqlite.ContentRepository
	usage      *sqlite.UsageRepository
	deliveries *sqlite.DeliveryRepository
}

func setup(t *testing.T) repos {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db, "sqlite3"))

	l := zerolog.Nop()
	m := metrics.NewMetrics("repo_test")
	return repos{
		db:         db,
		schedules:  sqlite.NewScheduleRepository(db, l, m),
		content:    sqlite.NewContentRepository(db, l, m),
		usage:      sqlite.NewUsageRepository(db, l, m),
		deliveries: sqlite.NewDeliveryRepository(db, l, m),
	}
}

func record(scheduleID, userID, contentID, status string, at time.Time) models.DeliveryRecord {
	return models.DeliveryRecord{
		ID:         scheduleID + contentID + status + at.Format(time.RFC3339Nano),
		ScheduleID: scheduleID,
		UserID:     userID,
		ContentID:  contentID,
		Channel:    models.ChannelEmail,
		Status:     status,
		SentAt:     at,
		LocalDate:  at.UTC().Format(time.DateOnly),
	}
}

func TestSchedules_ListActiveWithLastSent(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	userID, err := r.schedules.CreateUser(ctx, "ann@example.com", "Ann")
	require.NoError(t, err)

	activeID, err := r.schedules.CreateSchedule(ctx, models.Schedule{
		UserID:     userID,
		Frequency:  models.FrequencySpecificDays,
		TimeOfDay:  models.WindowEvening,
		Timezone:   "Europe/Kyiv",
		DaysOfWeek: []string{"Monday", "friday"},
		IsActive:   true,
	})
	require.NoError(t, err)
	_, err = r.schedules.CreateSchedule(ctx, models.Schedule{UserID: userID, IsActive: false})
	require.NoError(t, err)
	_, err = r.schedules.CreateSchedule(ctx, models.Schedule{UserID: userID, Channel: "sms", IsActive: true})
	require.NoError(t, err)

	older := time.Date(2026, 1, 3, 18, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 4, 18, 0, 0, 0, time.UTC)
	failed := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	require.NoError(t, r.deliveries.AppendDelivery(ctx, record(activeID, userID, "q-1", models.StatusSent, older)))
	require.NoError(t, r.deliveries.AppendDelivery(ctx, record(activeID, userID, "q-2", models.StatusSent, newer)))
	require.NoError(t, r.deliveries.AppendDelivery(ctx, record(activeID, userID, "q-3", models.StatusFailed, failed)))

	got, err := r.schedules.ListActiveWithLastSent(ctx, models.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, activeID, s.ID)
	assert.Equal(t, "ann@example.com", s.UserEmail)
	assert.Equal(t, "Ann", s.UserFirstName)
	assert.Equal(t, []string{"monday", "friday"}, s.DaysOfWeek)
	assert.True(t, s.IsActive)
	require.NotNil(t, s.LastSent)
	assert.True(t, s.LastSent.SentAt.Equal(newer))
}

func TestSchedules_NoDeliveries(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	userID, err := r.schedules.CreateUser(ctx, "bob@example.com", "")
	require.NoError(t, err)
	_, err = r.schedules.CreateSchedule(ctx, models.Schedule{UserID: userID, IsActive: true})
	require.NoError(t, err)

	got, err := r.schedules.ListActiveWithLastSent(ctx, models.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].LastSent)
}

func TestDeliveries_SentOncePerLocalDay(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	require.NoError(t, r.deliveries.AppendDelivery(ctx, record("s-1", "u-1", "q-1", models.StatusSent, at)))
	err := r.deliveries.AppendDelivery(ctx, record("s-1", "u-1", "q-2", models.StatusSent, at.Add(time.Hour)))
	assert.Error(t, err)

	// failed attempts are not constrained
	require.NoError(t, r.deliveries.AppendDelivery(ctx, record("s-1", "u-1", "q-3", models.StatusFailed, at.Add(2*time.Hour))))
	require.NoError(t, r.deliveries.AppendDelivery(ctx, record("s-1", "u-1", "q-4", models.StatusFailed, at.Add(3*time.Hour))))

	recs, err := r.deliveries.ListBySchedule(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestDeliveries_RecentContentIDs(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	// q-1 twice, then q-2, then q-3; a failed q-9 must not count as seen
	for i, id := range []string{"q-1", "q-1", "q-2", "q-3"} {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, r.deliveries.AppendDelivery(ctx, record("s-1", "u-1", id, models.StatusSent, at)))
	}
	require.NoError(t, r.deliveries.AppendDelivery(ctx,
		record("s-1", "u-1", "q-9", models.StatusFailed, base.Add(10*24*time.Hour))))
	require.NoError(t, r.deliveries.AppendDelivery(ctx, record("s-2", "u-2", "q-5", models.StatusSent, base)))

	ids, err := r.deliveries.RecentContentIDs(ctx, "u-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"q-3", "q-2"}, ids)

	ids, err = r.deliveries.RecentContentIDs(ctx, "u-1", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"q-3", "q-2", "q-1"}, ids)

	ids, err = r.deliveries.RecentContentIDs(ctx, "u-1", 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUsage_IncrementCreatesFreeTier(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	u, err := r.usage.GetUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, r.usage.IncrementUsage(ctx, "u-1", 5))
	u, err = r.usage.GetUsage(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, models.PlanFree, u.Plan)
	assert.Equal(t, models.UsageActive, u.Status)
	assert.Equal(t, 5, u.MessageLimit)
	assert.Equal(t, 1, u.MessagesUsed)

	require.NoError(t, r.usage.IncrementUsage(ctx, "u-1", 5))
	u, err = r.usage.GetUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.MessagesUsed)
}

func TestUsage_PutThenIncrement(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	require.NoError(t, r.usage.PutUsage(ctx, models.UsageCounter{
		UserID: "u-1", Plan: models.PlanPro, Status: models.UsageActive,
		MessageLimit: 30, MessagesUsed: 4, BillingCycle: "2026-01",
	}))
	require.NoError(t, r.usage.IncrementUsage(ctx, "u-1", 5))

	u, err := r.usage.GetUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, u.Plan)
	assert.Equal(t, 30, u.MessageLimit)
	assert.Equal(t, 5, u.MessagesUsed)
}

func TestContent_InsertAndList(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	created, err := r.content.Insert(ctx, "Stay hungry.", "Steve Jobs", "grit")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = r.content.Insert(ctx, "Stay hungry.", "Someone else", "grit")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = r.content.Insert(ctx, "Begin anywhere.", "", "")
	require.NoError(t, err)

	items, err := r.content.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, r.content.SetActive(ctx, items[0].ID, false))
	items, err = r.content.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
