// Package schedule decides which sources are due for scraping and runs the
// periodic in-process sweep. The due filter is pure; side effects stay with
// the orchestrator.
package schedule

import (
	"time"

	"github.com/atomwire/ingest/pkg/domain"
)

// Due returns the sources whose interval has elapsed since the last scrape.
// A source never scraped is always due; the elapsed comparison is inclusive.
func Due(sources []domain.Source, now time.Time) []domain.Source {
	due := make([]domain.Source, 0, len(sources))
	for _, src := range sources {
		if !src.IsActive {
			continue
		}
		if src.LastScrapedAt == nil {
			due = append(due, src)
			continue
		}
		interval := time.Duration(src.ScrapeIntervalMinutes) * time.Minute
		if now.Sub(*src.LastScrapedAt) >= interval {
			due = append(due, src)
		}
	}
	return due
}

// Remaining reports how long until the source is due again, zero if due now
func Remaining(src domain.Source, now time.Time) time.Duration {
	if src.LastScrapedAt == nil {
		return 0
	}
	interval := time.Duration(src.ScrapeIntervalMinutes) * time.Minute
	left := interval - now.Sub(*src.LastScrapedAt)
	if left < 0 {
		return 0
	}
	return left
}
