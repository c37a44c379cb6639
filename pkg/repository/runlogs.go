package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/atomwire/ingest/pkg/domain"
)

// RunLogRepository handles scrape run history
type RunLogRepository struct {
	db *sqlx.DB
}

// NewRunLogRepository creates a new run log repository
func NewRunLogRepository(database *sqlx.DB) *RunLogRepository {
	return &RunLogRepository{db: database}
}

// Append records a completed scrape run. The timestamp is written explicitly
// so that range queries in Recent compare values in the same format.
func (r *RunLogRepository) Append(ctx context.Context, log *domain.RunLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO run_logs (source_id, success, total_fetched, new_articles, duplicates, duration_ms, errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		log.SourceID, log.Success, log.TotalFetched, log.NewArticles,
		log.Duplicates, log.DurationMs, stringsJSON(log.Errors), log.CreatedAt)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	log.ID = id
	return nil
}

// Recent returns run logs for a source newer than the cutoff, newest first.
// The limit caps pathological sources with very short intervals.
func (r *RunLogRepository) Recent(ctx context.Context, sourceID int64, since time.Time, limit int) ([]domain.RunLog, error) {
	if limit <= 0 {
		limit = 2000
	}

	var rows []runLogSQL
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM run_logs WHERE source_id = ? AND created_at >= ? ORDER BY created_at DESC LIMIT ?",
		sourceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent run logs: %w", err)
	}

	logs := make([]domain.RunLog, len(rows))
	for i, row := range rows {
		logs[i] = *row.toDomain()
	}
	return logs, nil
}
