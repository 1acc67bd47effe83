package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
)

// ScheduleRepository reads delivery schedules together with their last
// successful delivery.
type ScheduleRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewScheduleRepository(db *sql.DB, logger zerolog.Logger, m *metrics.Metrics) *ScheduleRepository {
	logger = logger.With().Str("component", "ScheduleRepository").Logger()
	return &ScheduleRepository{DB: db, log: logger, m: m}
}

// CreateUser inserts a user and returns its id.
func (r *ScheduleRepository) CreateUser(ctx context.Context, email, firstName string) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, created_at) VALUES (?, ?, ?, ?)`,
		id, email, firstName, toMillis(time.Now()),
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("email", email).Msg("failed to insert user")
		r.m.Technical("db_insert_error")
		return "", err
	}
	return id, nil
}

// CreateSchedule inserts s, assigning an id and creation time when missing.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, s models.Schedule) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Channel == "" {
		s.Channel = models.ChannelEmail
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO schedules
		    (id, user_id, channel, frequency, time_of_day, timezone, days_of_week,
		     interval_value, interval_unit, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Channel, s.Frequency, s.TimeOfDay, s.Timezone, joinDays(s.DaysOfWeek),
		s.IntervalValue, s.IntervalUnit, boolToInt(s.IsActive), toMillis(s.CreatedAt),
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("user_id", s.UserID).Msg("failed to insert schedule")
		r.m.Technical("db_insert_error")
		return "", err
	}
	return s.ID, nil
}

// ListActiveWithLastSent returns every active schedule of channel joined with
// its user and its most recent sent delivery.
func (r *ScheduleRepository) ListActiveWithLastSent(
	ctx context.Context, channel string,
) ([]models.ScheduleWithLast, error) {
	start := time.Now()
	r.log.Debug().Ctx(ctx).Str("channel", channel).Msg("querying active schedules")

	rows, err := r.DB.QueryContext(ctx, `
		SELECT s.id, s.user_id, u.email, u.first_name, s.channel, s.frequency,
		       s.time_of_day, s.timezone, s.days_of_week, s.interval_value,
		       s.interval_unit, s.is_active, s.created_at,
		       (SELECT MAX(d.sent_at)
		          FROM delivery_records d
		         WHERE d.schedule_id = s.id AND d.status = 'sent') AS last_sent_at
		FROM schedules s
		JOIN users u ON u.id = s.user_id
		WHERE s.is_active = 1 AND s.channel = ?`, channel,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to query schedules")
		r.m.Technical("db_query_error")
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to close rows after query")
		}
	}(rows)

	var out []models.ScheduleWithLast
	for rows.Next() {
		var (
			s         models.ScheduleWithLast
			days      string
			active    int
			createdAt int64
			lastSent  sql.NullInt64
		)
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.UserEmail, &s.UserFirstName, &s.Channel, &s.Frequency,
			&s.TimeOfDay, &s.Timezone, &days, &s.IntervalValue,
			&s.IntervalUnit, &active, &createdAt, &lastSent,
		); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to scan schedule row")
			r.m.Technical("db_scan_error")
			return nil, err
		}
		s.DaysOfWeek = splitDays(days)
		s.IsActive = active != 0
		s.CreatedAt = fromMillis(createdAt)
		if lastSent.Valid {
			s.LastSent = &models.DeliveryRecord{
				ScheduleID: s.ID,
				UserID:     s.UserID,
				Channel:    s.Channel,
				Status:     models.StatusSent,
				SentAt:     fromMillis(lastSent.Int64),
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("row iteration error")
		r.m.Technical("db_rows_error")
		return nil, err
	}

	r.log.Info().Ctx(ctx).
		Str("channel", channel).
		Int("count", len(out)).
		Dur("duration", time.Since(start)).
		Msg("retrieved active schedules")
	return out, nil
}
