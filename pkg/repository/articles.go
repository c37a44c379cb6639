package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/atomwire/ingest/pkg/domain"
)

// ArticleRepository handles article-related database operations
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(database *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: database}
}

// Create persists a draft as a new article in INGESTED status. A
// unique-constraint violation maps to domain.ErrDuplicate: the dedup check
// and the insert may race, and losing that race is a duplicate, not a failure.
func (r *ArticleRepository) Create(ctx context.Context, draft *domain.Draft) (int64, error) {
	query := `
		INSERT INTO articles (
			source_id, external_id, external_url, title, content, excerpt,
			language, authors, tags, images, published_at, scraped_at, content_hash, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var published sql.NullTime
	if draft.PublishedAt != nil {
		published = sql.NullTime{Time: *draft.PublishedAt, Valid: true}
	}

	var id int64
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	doInsert := func() error {
		result, err := r.db.ExecContext(ctx, query,
			draft.SourceID, draft.ExternalID, draft.ExternalURL, draft.Title, draft.Content,
			draft.Excerpt, draft.Language, stringsJSON(draft.Authors), stringsJSON(draft.Tags),
			imagesJSON(draft.Images), published, draft.ScrapedAt, draft.ContentHash,
			string(domain.StatusIngested))
		if err != nil {
			if isUniqueViolation(err) {
				return &criticalError{err: domain.ErrDuplicate}
			}
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("create article: %w", err)}
		}

		id, err = result.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		return nil
	}

	// a racing duplicate insert is terminal, no point retrying it
	err := retrier.Do(ctx, doInsert, domain.ErrDuplicate)
	if err != nil {
		var ce *criticalError
		if errors.As(err, &ce) {
			return 0, ce.err
		}
		return 0, err
	}
	return id, nil
}

// Get retrieves an article by id
func (r *ArticleRepository) Get(ctx context.Context, id int64) (*domain.Article, error) {
	var row articleSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM articles WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return row.toDomain(), nil
}

// FindExisting looks for an article matching either the (source, external id)
// pair or the content hash. The OR is intentional: it guards against the same
// content reappearing under a renumbered external id.
func (r *ArticleRepository) FindExisting(ctx context.Context, sourceID int64, externalID, contentHash string) (int64, bool, error) {
	var id int64
	err := r.db.GetContext(ctx, &id,
		"SELECT id FROM articles WHERE (source_id = ? AND external_id = ?) OR content_hash = ? LIMIT 1",
		sourceID, externalID, contentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find existing article: %w", err)
	}
	return id, true, nil
}

// UpdateStatus moves an article to the given workflow state
func (r *ArticleRepository) UpdateStatus(ctx context.Context, id int64, status domain.ArticleStatus) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE articles SET status = ?, updated_at = datetime('now') WHERE id = ?",
		string(status), id)
	if err != nil {
		return fmt.Errorf("update article status: %w", err)
	}
	return nil
}

// UpdateProcessed stores the downstream processing result and moves the
// article to DRAFT
func (r *ArticleRepository) UpdateProcessed(ctx context.Context, id int64, processed *domain.ProcessedContent) error {
	tags, err := json.Marshal(processed.Tags)
	if err != nil {
		return fmt.Errorf("marshal processed tags: %w", err)
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE articles
			SET processed_title = ?, processed_content = ?, processed_excerpt = ?,
			    category = ?, processed_tags = ?, significance_score = ?,
			    status = ?, updated_at = datetime('now')
			WHERE id = ?`,
			processed.Title, processed.Content, processed.Excerpt,
			processed.Category, string(tags), processed.SignificanceScore,
			string(domain.StatusDraft), id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update processed article: %w", err)}
		}
		return nil
	})
}
