package domain

import (
	"fmt"
	"time"
)

// AdapterType identifies the fetch engine used for a source
type AdapterType string

// supported adapter types
const (
	AdapterRSS     AdapterType = "rss"
	AdapterHTML    AdapterType = "html"
	AdapterBrowser AdapterType = "playwright"
)

// Valid reports whether the adapter type is one of the known variants
func (t AdapterType) Valid() bool {
	return t == AdapterRSS || t == AdapterHTML || t == AdapterBrowser
}

// Selectors holds CSS selectors for html and playwright adapters.
// The two adapter types share the same selector schema; only the execution
// engine differs.
type Selectors struct {
	ListURL     string `json:"list_url,omitempty" yaml:"list_url,omitempty"`
	Article     string `json:"article_selector" yaml:"article_selector"`
	Link        string `json:"link_selector" yaml:"link_selector"`
	Title       string `json:"title_selector" yaml:"title_selector"`
	Content     string `json:"content_selector,omitempty" yaml:"content_selector,omitempty"`
	Date        string `json:"date_selector,omitempty" yaml:"date_selector,omitempty"`
	Image       string `json:"image_selector,omitempty" yaml:"image_selector,omitempty"`
	WaitFor     string `json:"wait_for_selector,omitempty" yaml:"wait_for_selector,omitempty"` // playwright only
	MaxArticles int    `json:"max_articles,omitempty" yaml:"max_articles,omitempty"`
	ListOnly    bool   `json:"list_only,omitempty" yaml:"list_only,omitempty"`
}

// AdapterConfig is the per-source adapter configuration. Exactly one section
// is meaningful depending on the source's adapter type; Validate enforces it.
// Version is bumped on every admin edit so stale previews can be detected.
type AdapterConfig struct {
	Version   int       `json:"version" yaml:"version"`
	FeedURL   string    `json:"feed_url,omitempty" yaml:"feed_url,omitempty"` // rss
	Selectors Selectors `json:"selectors,omitempty" yaml:"selectors,omitempty"`
}

// Validate checks the config against the given adapter type
func (c AdapterConfig) Validate(t AdapterType) error {
	if c.Version < 1 {
		return fmt.Errorf("adapter config version must be positive, got %d", c.Version)
	}
	switch t {
	case AdapterRSS:
		if c.FeedURL == "" {
			return fmt.Errorf("rss adapter requires feed_url")
		}
	case AdapterHTML, AdapterBrowser:
		if c.Selectors.Article == "" {
			return fmt.Errorf("%s adapter requires article_selector", t)
		}
		if c.Selectors.Link == "" {
			return fmt.Errorf("%s adapter requires link_selector", t)
		}
		if c.Selectors.Title == "" {
			return fmt.Errorf("%s adapter requires title_selector", t)
		}
	default:
		return fmt.Errorf("unknown adapter type %q", t)
	}
	return nil
}

// Source is a configured origin of content
type Source struct {
	ID                    int64
	Name                  string
	Slug                  string
	URL                   string
	AdapterType           AdapterType
	AdapterConfig         AdapterConfig
	Language              string
	IsActive              bool
	ScrapeIntervalMinutes int
	LastScrapedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
