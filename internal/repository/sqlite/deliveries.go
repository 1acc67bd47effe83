package sqlite

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
)

// DeliveryRepository is the append-only delivery log.
type DeliveryRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewDeliveryRepository(db *sql.DB, logger zerolog.Logger, m *metrics.Metrics) *DeliveryRepository {
	logger = logger.With().Str("component", "DeliveryRepository").Logger()
	return &DeliveryRepository{DB: db, log: logger, m: m}
}

// AppendDelivery inserts one record. A second sent record for the same
// schedule and local date violates ux_delivery_sent_per_day.
func (r *DeliveryRepository) AppendDelivery(ctx context.Context, rec models.DeliveryRecord) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO delivery_records
		    (id, schedule_id, user_id, content_id, channel, status, sent_at, local_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ScheduleID, rec.UserID, rec.ContentID, rec.Channel, rec.Status,
		toMillis(rec.SentAt), rec.LocalDate,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("schedule_id", rec.ScheduleID).
			Str("status", rec.Status).
			Msg("failed to insert delivery record")
		r.m.Technical("db_insert_error")
		return err
	}
	return nil
}

// RecentContentIDs returns up to limit distinct content ids most recently
// sent to userID, newest first.
func (r *DeliveryRepository) RecentContentIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT content_id
		FROM delivery_records
		WHERE user_id = ? AND status = 'sent'
		GROUP BY content_id
		ORDER BY MAX(sent_at) DESC
		LIMIT ?`, userID, limit,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("user_id", userID).Msg("failed to query content history")
		r.m.Technical("db_query_error")
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to close rows after query")
		}
	}(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			r.m.Technical("db_scan_error")
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListBySchedule returns every record of a schedule, oldest first.
func (r *DeliveryRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.DeliveryRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, schedule_id, user_id, content_id, channel, status, sent_at, local_date
		FROM delivery_records
		WHERE schedule_id = ?
		ORDER BY sent_at, id`, scheduleID,
	)
	if err != nil {
		r.m.Technical("db_query_error")
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to close rows after query")
		}
	}(rows)

	var out []models.DeliveryRecord
	for rows.Next() {
		var (
			rec    models.DeliveryRecord
			sentAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.ScheduleID, &rec.UserID, &rec.ContentID,
			&rec.Channel, &rec.Status, &sentAt, &rec.LocalDate); err != nil {
			r.m.Technical("db_scan_error")
			return nil, err
		}
		rec.SentAt = fromMillis(sentAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
