package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/services/due"
)

type recordStore interface {
	AppendDelivery(ctx context.Context, rec models.DeliveryRecord) error
}

type quotaConsumer interface {
	Consume(ctx context.Context, userID string) error
}

// Outcome aggregates the results of one Execute call.
type Outcome struct {
	Sent   int
	Failed int
	Errors []string
}

// Executor sends admitted deliveries in provider-sized chunks and records
// the outcome of every item.
type Executor struct {
	sender    BulkSender
	records   recordStore
	quota     quotaConsumer
	envelope  models.Envelope
	chunkSize int
	now       func() time.Time
	logger    zerolog.Logger
	m         *metrics.Metrics
}

func NewExecutor(
	sender BulkSender,
	records recordStore,
	quota quotaConsumer,
	envelope models.Envelope,
	chunkSize int,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Executor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	logger = logger.With().Str("component", "DispatchExecutor").Logger()
	return &Executor{
		sender:    sender,
		records:   records,
		quota:     quota,
		envelope:  envelope,
		chunkSize: chunkSize,
		now:       time.Now,
		logger:    logger,
		m:         m,
	}
}

// WithClock replaces the time source used for delivery timestamps.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute sends deliveries chunk by chunk, one provider call at a time.
// A failing chunk never aborts the remaining ones.
func (e *Executor) Execute(ctx context.Context, deliveries []models.Delivery) Outcome {
	var out Outcome
	for i, chunk := range Chunks(deliveries, e.chunkSize) {
		e.sendChunk(ctx, i, chunk, &out)
	}
	return out
}

func (e *Executor) sendChunk(ctx context.Context, idx int, items []models.Delivery, out *Outcome) {
	payload := Chunk{Envelope: e.envelope, Recipients: make([]models.Recipient, len(items))}
	for i, d := range items {
		payload.Recipients[i] = d.Recipient
	}

	start := time.Now()
	res, err := e.sender.SendBulk(ctx, payload)
	dur := time.Since(start)

	switch {
	case err != nil:
		e.m.ObserveChunk("error", dur)
		e.m.Technical("bulk_send_error")
		msg := fmt.Sprintf("Bulk send error for %d emails: %s", len(items), err.Error())
		e.logger.Error().Err(err).Int("chunk", idx).Int("size", len(items)).Dur("duration", dur).
			Msg("bulk send call failed")
		e.fail(ctx, items, msg, out)
	case !res.Success:
		e.m.ObserveChunk("rejected", dur)
		e.m.Business("bulk_send_rejected")
		reason := res.Error
		if reason == "" {
			reason = "unknown error"
		}
		msg := fmt.Sprintf("Bulk send failed for %d emails: %s", len(items), reason)
		e.logger.Warn().Str("reason", reason).Int("chunk", idx).Int("size", len(items)).Dur("duration", dur).
			Msg("bulk send rejected by provider")
		e.fail(ctx, items, msg, out)
	default:
		e.m.ObserveChunk("ok", dur)
		e.logger.Info().Int("chunk", idx).Int("size", len(items)).Dur("duration", dur).
			Msg("bulk chunk sent")
		e.succeed(ctx, items, out)
	}
}

func (e *Executor) succeed(ctx context.Context, items []models.Delivery, out *Outcome) {
	out.Sent += len(items)
	now := e.now()
	for _, d := range items {
		e.record(ctx, d, models.StatusSent, now)
		// the provider result is authoritative for billing, even if the
		// audit row could not be written
		if err := e.quota.Consume(ctx, d.Schedule.UserID); err != nil {
			e.m.Technical("usage_increment_error")
			e.logger.Error().Err(err).Str("user_id", d.Schedule.UserID).Msg("failed to increment usage")
			out.Errors = append(out.Errors, err.Error())
		}
	}
}

func (e *Executor) fail(ctx context.Context, items []models.Delivery, msg string, out *Outcome) {
	out.Failed += len(items)
	out.Errors = append(out.Errors, msg)
	now := e.now()
	for _, d := range items {
		e.record(ctx, d, models.StatusFailed, now)
	}
}

// record is best-effort: audit write failures are logged and otherwise ignored.
func (e *Executor) record(ctx context.Context, d models.Delivery, status string, at time.Time) {
	rec := models.DeliveryRecord{
		ID:         uuid.NewString(),
		ScheduleID: d.Schedule.ID,
		UserID:     d.Schedule.UserID,
		ContentID:  d.Content.ID,
		Channel:    models.ChannelEmail,
		Status:     status,
		SentAt:     at,
		LocalDate:  due.LocalDate(d.Schedule.Timezone, at),
	}
	if err := e.records.AppendDelivery(ctx, rec); err != nil {
		e.m.Technical("delivery_record_error")
		e.logger.Warn().Err(err).
			Str("schedule_id", rec.ScheduleID).
			Str("status", status).
			Msg("failed to write delivery record")
	}
}

// Chunks splits deliveries into consecutive groups of at most size items.
func Chunks(deliveries []models.Delivery, size int) [][]models.Delivery {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]models.Delivery
	for i := 0; i < len(deliveries); i += size {
		end := min(i+size, len(deliveries))
		chunks = append(chunks, deliveries[i:end])
	}
	return chunks
}
