//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/repository/sqlite"
)

// seedDueSchedule creates a user whose daily schedule is inside its window
// right now, whatever the wall clock says.
func seedDueSchedule(t *testing.T, e *env, email string) string {
	t.Helper()
	ctx := context.Background()
	repo := sqlite.NewScheduleRepository(e.container.Db, zerolog.Nop(), metrics.NewMetrics("seed"))

	userID, err := repo.CreateUser(ctx, email, "Ada")
	require.NoError(t, err)

	// afternoon is 12-17; pick a zone where it is 14:xx now
	_, err = repo.CreateSchedule(ctx, models.Schedule{
		UserID:    userID,
		Frequency: models.FrequencyDaily,
		TimeOfDay: models.WindowAfternoon,
		Timezone:  zoneAtHour(14),
		IsActive:  true,
	})
	require.NoError(t, err)
	return userID
}

// zoneAtHour returns an Etc/GMT zone in which the local hour is currently h.
func zoneAtHour(h int) string {
	offset := h - time.Now().UTC().Hour()
	if offset > 12 {
		offset -= 24
	}
	if offset < -12 {
		offset += 24
	}
	// Etc/GMT signs are inverted
	switch {
	case offset == 0:
		return "Etc/GMT"
	case offset > 0:
		return "Etc/GMT-" + strconv.Itoa(offset)
	default:
		return "Etc/GMT+" + strconv.Itoa(-offset)
	}
}

func seedContent(t *testing.T, e *env) {
	t.Helper()
	repo := sqlite.NewContentRepository(e.container.Db, zerolog.Nop(), metrics.NewMetrics("seed"))
	for _, body := range []string{"Begin anywhere.", "Keep going."} {
		_, err := repo.Insert(context.Background(), body, "", "")
		require.NoError(t, err)
	}
}

func triggerRun(t *testing.T, e *env) models.RunSummary {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/api/v1/dispatch/run", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s models.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

func TestDispatchFlow_EmptyPoolAborts(t *testing.T) {
	e := setup(t)
	seedDueSchedule(t, e, "ada@example.com")

	got := triggerRun(t, e)

	assert.Equal(t, 0, got.Sent)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, 0, e.api.count())
}

func TestDispatchFlow_SendsOncePerDay(t *testing.T) {
	e := setup(t)
	seedContent(t, e)
	userID := seedDueSchedule(t, e, "ada@example.com")

	got := triggerRun(t, e)
	assert.Equal(t, 1, got.Sent)
	assert.Empty(t, got.Errors)
	assert.Equal(t, 1, e.api.count())

	usage := sqlite.NewUsageRepository(e.container.Db, zerolog.Nop(), metrics.NewMetrics("check"))
	u, err := usage.GetUsage(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 1, u.MessagesUsed)
	assert.Equal(t, 5, u.MessageLimit)

	// the same window on the same day is deduplicated
	got = triggerRun(t, e)
	assert.Equal(t, 0, got.Sent)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 1, e.api.count())
}

func TestDispatchFlow_RejectedChunkRecordsFailures(t *testing.T) {
	e := setup(t)
	seedContent(t, e)
	userID := seedDueSchedule(t, e, "ada@example.com")
	e.api.respond(http.StatusBadRequest, `{"error":{"message":"template not found"}}`)

	got := triggerRun(t, e)

	assert.Equal(t, 0, got.Sent)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, []string{"Bulk send failed for 1 emails: template not found"}, got.Errors)

	usage := sqlite.NewUsageRepository(e.container.Db, zerolog.Nop(), metrics.NewMetrics("check"))
	u, err := usage.GetUsage(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestDispatchFlow_QuotaExhausted(t *testing.T) {
	e := setup(t)
	seedContent(t, e)
	userID := seedDueSchedule(t, e, "ada@example.com")

	usage := sqlite.NewUsageRepository(e.container.Db, zerolog.Nop(), metrics.NewMetrics("check"))
	require.NoError(t, usage.PutUsage(context.Background(), models.UsageCounter{
		UserID: userID, Plan: models.PlanFree, Status: models.UsageActive,
		MessageLimit: 5, MessagesUsed: 5, BillingCycle: time.Now().Format("2006-01"),
	}))

	got := triggerRun(t, e)

	assert.Equal(t, 0, got.Sent)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 0, e.api.count())
}

func TestHealthAndMetrics(t *testing.T) {
	e := setup(t)

	resp, err := http.Get(e.server.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(e.server.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
