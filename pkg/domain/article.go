package domain

import "time"

// Image is a single article image reference
type Image struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
	IsCover bool   `json:"is_cover,omitempty"`
}

// RawItem is one adapter extraction result before normalization.
// It lives only within a single ingestion or preview call.
type RawItem struct {
	ExternalID  string
	ExternalURL string
	Title       string
	BodyHTML    string
	Excerpt     string
	PublishedAt *time.Time
	Images      []Image
	DetailError string // set when the detail fetch failed and the item degraded to list-page fields
}

// Draft is the canonical article form handed to persistence
type Draft struct {
	SourceID    int64
	ExternalID  string
	ExternalURL string
	Title       string
	Content     string // sanitized HTML
	Excerpt     string
	Language    string
	Authors     []string
	Tags        []string
	Images      []Image
	PublishedAt *time.Time
	ScrapedAt   time.Time
	ContentHash string
}

// ArticleStatus is the workflow state of a persisted article. The ingestion
// core only ever creates articles as INGESTED; the downstream processing
// consumer moves them to PROCESSING and then DRAFT or FAILED. Later
// transitions belong to the publishing stage.
type ArticleStatus string

// article workflow states
const (
	StatusIngested   ArticleStatus = "INGESTED"
	StatusProcessing ArticleStatus = "PROCESSING"
	StatusDraft      ArticleStatus = "DRAFT"
	StatusScheduled  ArticleStatus = "SCHEDULED"
	StatusPublished  ArticleStatus = "PUBLISHED"
	StatusArchived   ArticleStatus = "ARCHIVED"
	StatusFailed     ArticleStatus = "FAILED"
)

// Article is a persisted article
type Article struct {
	Draft
	ID        int64
	Status    ArticleStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProcessedContent holds the AI processing result stored alongside an article
type ProcessedContent struct {
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	Excerpt           string   `json:"excerpt"`
	Category          string   `json:"category"`
	Tags              []string `json:"tags"`
	SignificanceScore int      `json:"significance_score"`
}
