package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/atomwire/ingest/pkg/domain"
	"github.com/atomwire/ingest/pkg/ingest"
)

//go:generate moq -out mocks/ingester.go -pkg mocks -skip-ensure -fmt goimports . Ingester
//go:generate moq -out mocks/source_lister.go -pkg mocks -skip-ensure -fmt goimports . SourceLister

// Ingester runs ingestion for one source
type Ingester interface {
	IngestSource(ctx context.Context, id int64) (*ingest.Result, error)
}

// SourceLister provides active sources for the due check
type SourceLister interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Source, error)
}

// Runner sweeps due sources on a fixed tick. Cron-driven deployments can skip
// it and hit the trigger endpoints instead.
type Runner struct {
	sources  SourceLister
	ingester Ingester
	interval time.Duration
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewRunner creates a runner with the given sweep interval
func NewRunner(sources SourceLister, ingester Ingester, interval time.Duration) *Runner {
	if interval == 0 {
		interval = time.Minute
	}
	return &Runner{sources: sources, ingester: ingester, interval: interval}
}

// Start begins the sweep loop, running once immediately
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()

	lgr.Printf("[INFO] schedule runner started, sweep every %v", r.interval)
}

// Stop gracefully stops the runner
func (r *Runner) Stop() {
	lgr.Printf("[INFO] stopping schedule runner...")
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	lgr.Printf("[INFO] schedule runner stopped")
}

// sweep ingests every due source sequentially
func (r *Runner) sweep(ctx context.Context) {
	sources, err := r.sources.List(ctx, true)
	if err != nil {
		lgr.Printf("[ERROR] failed to list sources for sweep: %v", err)
		return
	}

	due := Due(sources, time.Now().UTC())
	if len(due) == 0 {
		return
	}
	lgr.Printf("[INFO] sweeping %d due sources of %d active", len(due), len(sources))

	for _, src := range due {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.ingester.IngestSource(ctx, src.ID); err != nil {
			lgr.Printf("[WARN] sweep ingest failed for %s: %v", src.Slug, err)
		}
	}
}
