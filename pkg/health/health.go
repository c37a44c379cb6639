// Package health derives a source's health classification from its recent
// run logs. Pure read-side computation, recomputed per request, never cached.
package health

import (
	"fmt"
	"sort"
	"time"

	"github.com/atomwire/ingest/pkg/domain"
)

// staleFactor: a source is stale once the time since its last success exceeds
// this many scrape intervals
const staleFactor = 2

// degradedThreshold is the failed-run ratio at which a source degrades,
// inclusive
const degradedThreshold = 0.3

// Derive classifies a source from its recent run logs. First matching rule
// wins: inactive, never ran, broken, stale, degraded, healthy.
func Derive(src domain.Source, logs []domain.RunLog, now time.Time) domain.SourceHealth {
	metrics := deriveMetrics(logs)

	if !src.IsActive {
		return domain.SourceHealth{Status: domain.HealthInactive, Message: "source is disabled", Metrics: metrics}
	}
	if len(logs) == 0 {
		return domain.SourceHealth{Status: domain.HealthNever, Message: "source has never been scraped", Metrics: metrics}
	}
	if metrics.LastSuccessAt == nil {
		return domain.SourceHealth{Status: domain.HealthBroken, Message: "no successful runs in window", Metrics: metrics}
	}

	interval := time.Duration(src.ScrapeIntervalMinutes) * time.Minute
	sinceSuccess := now.Sub(*metrics.LastSuccessAt)
	if sinceSuccess > staleFactor*interval {
		return domain.SourceHealth{
			Status:  domain.HealthStale,
			Message: fmt.Sprintf("last success %s ago, interval is %s", sinceSuccess.Round(time.Minute), interval),
			Metrics: metrics,
		}
	}

	if metrics.ParseErrorRatio >= degradedThreshold {
		return domain.SourceHealth{
			Status:  domain.HealthDegraded,
			Message: fmt.Sprintf("%.0f%% of recent runs failed", metrics.ParseErrorRatio*100),
			Metrics: metrics,
		}
	}

	return domain.SourceHealth{Status: domain.HealthHealthy, Metrics: metrics}
}

func deriveMetrics(logs []domain.RunLog) domain.HealthMetrics {
	metrics := domain.HealthMetrics{TotalRunsLast7d: len(logs)}
	if len(logs) == 0 {
		return metrics
	}

	totalFetched, totalDuplicates, failed := 0, 0, 0
	durations := make([]int64, 0, len(logs))
	for _, log := range logs {
		totalFetched += log.TotalFetched
		totalDuplicates += log.Duplicates
		if !log.Success {
			failed++
		}
		if log.DurationMs > 0 {
			durations = append(durations, log.DurationMs)
		}
		if log.Success && (metrics.LastSuccessAt == nil || log.CreatedAt.After(*metrics.LastSuccessAt)) {
			at := log.CreatedAt
			metrics.LastSuccessAt = &at
		}
	}

	metrics.ParseErrorRatio = float64(failed) / float64(len(logs))
	if totalFetched > 0 {
		ratio := float64(totalDuplicates) / float64(totalFetched)
		metrics.DuplicateRatio = &ratio
	}
	if len(durations) > 0 {
		median := medianOf(durations)
		metrics.MedianScrapeDurationMs = &median
	}
	return metrics
}

func medianOf(values []int64) int64 {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
