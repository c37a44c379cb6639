package repository

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atomwire/ingest/pkg/domain"
)

// stringsJSON stores a string slice as a JSON text column
type stringsJSON []string

// Value implements driver.Valuer
func (s stringsJSON) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (s *stringsJSON) Scan(value any) error {
	return scanJSON(value, s)
}

// imagesJSON stores article images as a JSON text column
type imagesJSON []domain.Image

// Value implements driver.Valuer
func (im imagesJSON) Value() (driver.Value, error) {
	if im == nil {
		return "[]", nil
	}
	data, err := json.Marshal(im)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (im *imagesJSON) Scan(value any) error {
	return scanJSON(value, im)
}

// configJSON stores the adapter config as a JSON text column
type configJSON domain.AdapterConfig

// Value implements driver.Valuer
func (c configJSON) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal adapter config: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (c *configJSON) Scan(value any) error {
	return scanJSON(value, c)
}

func scanJSON(value, target any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(v), target)
	case []byte:
		return json.Unmarshal(v, target)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}

// sourceSQL represents a source row
type sourceSQL struct {
	ID                    int64        `db:"id"`
	Name                  string       `db:"name"`
	Slug                  string       `db:"slug"`
	URL                   string       `db:"url"`
	AdapterType           string       `db:"adapter_type"`
	AdapterConfig         configJSON   `db:"adapter_config"`
	Language              string       `db:"language"`
	IsActive              bool         `db:"is_active"`
	ScrapeIntervalMinutes int          `db:"scrape_interval_minutes"`
	LastScrapedAt         sql.NullTime `db:"last_scraped_at"`
	CreatedAt             time.Time    `db:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at"`
}

func (s *sourceSQL) toDomain() *domain.Source {
	src := &domain.Source{
		ID:                    s.ID,
		Name:                  s.Name,
		Slug:                  s.Slug,
		URL:                   s.URL,
		AdapterType:           domain.AdapterType(s.AdapterType),
		AdapterConfig:         domain.AdapterConfig(s.AdapterConfig),
		Language:              s.Language,
		IsActive:              s.IsActive,
		ScrapeIntervalMinutes: s.ScrapeIntervalMinutes,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
	if s.LastScrapedAt.Valid {
		t := s.LastScrapedAt.Time
		src.LastScrapedAt = &t
	}
	return src
}

// articleSQL represents an article row
type articleSQL struct {
	ID                int64          `db:"id"`
	SourceID          int64          `db:"source_id"`
	ExternalID        string         `db:"external_id"`
	ExternalURL       string         `db:"external_url"`
	Title             string         `db:"title"`
	Content           string         `db:"content"`
	Excerpt           string         `db:"excerpt"`
	Language          string         `db:"language"`
	Authors           stringsJSON    `db:"authors"`
	Tags              stringsJSON    `db:"tags"`
	Images            imagesJSON     `db:"images"`
	PublishedAt       sql.NullTime   `db:"published_at"`
	ScrapedAt         time.Time      `db:"scraped_at"`
	ContentHash       string         `db:"content_hash"`
	Status            string         `db:"status"`
	ProcessedTitle    sql.NullString `db:"processed_title"`
	ProcessedContent  sql.NullString `db:"processed_content"`
	ProcessedExcerpt  sql.NullString `db:"processed_excerpt"`
	Category          sql.NullString `db:"category"`
	ProcessedTags     sql.NullString `db:"processed_tags"`
	SignificanceScore sql.NullInt64  `db:"significance_score"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (a *articleSQL) toDomain() *domain.Article {
	article := &domain.Article{
		Draft: domain.Draft{
			SourceID:    a.SourceID,
			ExternalID:  a.ExternalID,
			ExternalURL: a.ExternalURL,
			Title:       a.Title,
			Content:     a.Content,
			Excerpt:     a.Excerpt,
			Language:    a.Language,
			Authors:     a.Authors,
			Tags:        a.Tags,
			Images:      a.Images,
			ScrapedAt:   a.ScrapedAt,
			ContentHash: a.ContentHash,
		},
		ID:        a.ID,
		Status:    domain.ArticleStatus(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.PublishedAt.Valid {
		t := a.PublishedAt.Time
		article.PublishedAt = &t
	}
	return article
}

// runLogSQL represents a run log row
type runLogSQL struct {
	ID           int64       `db:"id"`
	SourceID     int64       `db:"source_id"`
	Success      bool        `db:"success"`
	TotalFetched int         `db:"total_fetched"`
	NewArticles  int         `db:"new_articles"`
	Duplicates   int         `db:"duplicates"`
	DurationMs   int64       `db:"duration_ms"`
	Errors       stringsJSON `db:"errors"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (l *runLogSQL) toDomain() *domain.RunLog {
	return &domain.RunLog{
		ID:           l.ID,
		SourceID:     l.SourceID,
		Success:      l.Success,
		TotalFetched: l.TotalFetched,
		NewArticles:  l.NewArticles,
		Duplicates:   l.Duplicates,
		DurationMs:   l.DurationMs,
		Errors:       l.Errors,
		CreatedAt:    l.CreatedAt,
	}
}
