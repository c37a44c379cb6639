package domain

import "time"

// HealthStatus classifies a source based on its recent run history
type HealthStatus string

// health classifications, ordered roughly from best to worst
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStale    HealthStatus = "stale"
	HealthBroken   HealthStatus = "broken"
	HealthInactive HealthStatus = "inactive"
	HealthNever    HealthStatus = "never"
)

// HealthMetrics are derived numbers over the recent run-log window.
// Ratio and median pointers are nil when the window carries no data for them.
type HealthMetrics struct {
	DuplicateRatio         *float64   `json:"duplicate_ratio"`
	ParseErrorRatio        float64    `json:"parse_error_ratio"`
	MedianScrapeDurationMs *int64     `json:"median_scrape_duration_ms"`
	LastSuccessAt          *time.Time `json:"last_success_at"`
	TotalRunsLast7d        int        `json:"total_runs_last_7d"`
}

// SourceHealth is a derived view, recomputed on every read and never persisted
type SourceHealth struct {
	Status  HealthStatus  `json:"health"`
	Message string        `json:"health_message"`
	Metrics HealthMetrics `json:"metrics"`
}
