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

// ContentRepository stores the deliverable content pool.
type ContentRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewContentRepository(db *sql.DB, logger zerolog.Logger, m *metrics.Metrics) *ContentRepository {
	logger = logger.With().Str("component", "ContentRepository").Logger()
	return &ContentRepository{DB: db, log: logger, m: m}
}

// ListActive returns all active content items.
func (r *ContentRepository) ListActive(ctx context.Context) ([]models.ContentItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, body, author FROM content_items WHERE is_active = 1 ORDER BY created_at, id`)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to query content items")
		r.m.Technical("db_query_error")
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to close rows after query")
		}
	}(rows)

	var items []models.ContentItem
	for rows.Next() {
		item := models.ContentItem{IsActive: true}
		if err := rows.Scan(&item.ID, &item.Body, &item.Author); err != nil {
			r.m.Technical("db_scan_error")
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		r.m.Technical("db_rows_error")
		return nil, err
	}

	r.log.Debug().Ctx(ctx).Int("count", len(items)).Msg("retrieved active content items")
	return items, nil
}

// Insert adds an active content item unless one with the same body exists.
// It reports whether a row was created.
func (r *ContentRepository) Insert(ctx context.Context, body, author, category string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO content_items (id, body, author, category, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(body) DO NOTHING`,
		uuid.NewString(), body, author, category, toMillis(time.Now()),
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to insert content item")
		r.m.Technical("db_insert_error")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetActive toggles the active flag of a content item.
func (r *ContentRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE content_items SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		r.m.Technical("db_update_error")
	}
	return err
}
