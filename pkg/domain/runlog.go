package domain

import "time"

// RunLog records one ingestion attempt for a source, append-only
type RunLog struct {
	ID           int64
	SourceID     int64
	Success      bool
	TotalFetched int
	NewArticles  int
	Duplicates   int
	DurationMs   int64
	Errors       []string
	CreatedAt    time.Time
}
