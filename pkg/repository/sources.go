package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/atomwire/ingest/pkg/domain"
)

// SourceRepository handles source-related database operations
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(database *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: database}
}

// Create inserts a new source; the adapter config version starts at 1
func (r *SourceRepository) Create(ctx context.Context, src *domain.Source) error {
	if src.AdapterConfig.Version == 0 {
		src.AdapterConfig.Version = 1
	}
	if err := src.AdapterConfig.Validate(src.AdapterType); err != nil {
		return fmt.Errorf("validate adapter config: %w", err)
	}

	query := `
		INSERT INTO sources (name, slug, url, adapter_type, adapter_config, language, is_active, scrape_interval_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		src.Name, src.Slug, src.URL, string(src.AdapterType), configJSON(src.AdapterConfig),
		src.Language, src.IsActive, src.ScrapeIntervalMinutes)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	src.ID = id
	return nil
}

// Get retrieves a source by id
func (r *SourceRepository) Get(ctx context.Context, id int64) (*domain.Source, error) {
	var row sourceSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM sources WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %d: %w", id, domain.ErrSourceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return row.toDomain(), nil
}

// List retrieves sources, optionally only active ones
func (r *SourceRepository) List(ctx context.Context, activeOnly bool) ([]domain.Source, error) {
	query := "SELECT * FROM sources"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY name"

	var rows []sourceSQL
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	sources := make([]domain.Source, len(rows))
	for i, row := range rows {
		sources[i] = *row.toDomain()
	}
	return sources, nil
}

// Update applies admin edits to a source. Any edit bumps the adapter config
// version so previews taken against the old config are invalidated.
func (r *SourceRepository) Update(ctx context.Context, src *domain.Source) error {
	src.AdapterConfig.Version++
	if err := src.AdapterConfig.Validate(src.AdapterType); err != nil {
		src.AdapterConfig.Version--
		return fmt.Errorf("validate adapter config: %w", err)
	}

	query := `
		UPDATE sources
		SET name = ?, url = ?, adapter_type = ?, adapter_config = ?, language = ?,
		    is_active = ?, scrape_interval_minutes = ?, updated_at = datetime('now')
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		src.Name, src.URL, string(src.AdapterType), configJSON(src.AdapterConfig),
		src.Language, src.IsActive, src.ScrapeIntervalMinutes, src.ID)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source %d: %w", src.ID, domain.ErrSourceNotFound)
	}
	return nil
}

// UpdateLastScraped records a completed run, success or not
func (r *SourceRepository) UpdateLastScraped(ctx context.Context, id int64, at time.Time) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx, "UPDATE sources SET last_scraped_at = ? WHERE id = ?", at, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update last scraped: %w", err)}
		}
		return nil
	})
}
