// Package ingest implements the ingestion core: orchestration over sources,
// dedup, preview dry runs and the downstream processing trigger. Sources are
// processed sequentially; external sites are rate-sensitive and sequential
// execution keeps backoff reasoning per source simple.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/atomwire/ingest/pkg/adapter"
	"github.com/atomwire/ingest/pkg/domain"
	"github.com/atomwire/ingest/pkg/normalize"
	"github.com/atomwire/ingest/pkg/retry"
)

//go:generate moq -out mocks/source_store.go -pkg mocks -skip-ensure -fmt goimports . SourceStore
//go:generate moq -out mocks/article_store.go -pkg mocks -skip-ensure -fmt goimports . ArticleStore
//go:generate moq -out mocks/runlog_store.go -pkg mocks -skip-ensure -fmt goimports . RunLogStore

// SourceStore provides source persistence for the orchestrator
type SourceStore interface {
	Get(ctx context.Context, id int64) (*domain.Source, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Source, error)
	UpdateLastScraped(ctx context.Context, id int64, at time.Time) error
}

// ArticleStore provides article persistence for the orchestrator
type ArticleStore interface {
	Create(ctx context.Context, draft *domain.Draft) (int64, error)
	FindExisting(ctx context.Context, sourceID int64, externalID, contentHash string) (int64, bool, error)
}

// RunLogStore records completed scrape runs
type RunLogStore interface {
	Append(ctx context.Context, log *domain.RunLog) error
}

// AdapterRegistry selects the fetch engine for a source
type AdapterRegistry interface {
	For(t domain.AdapterType) (adapter.Adapter, error)
}

// Notifier receives ids of freshly ingested articles for downstream processing
type Notifier interface {
	Notify(articleID int64)
}

// Result aggregates one source's ingestion run
type Result struct {
	SourceID     int64    `json:"source_id"`
	SourceName   string   `json:"source_name"`
	TotalFetched int      `json:"total_fetched"`
	NewArticles  int      `json:"new_articles"`
	Duplicates   int      `json:"duplicates"`
	Errors       []string `json:"errors"`
	DurationMs   int64    `json:"duration_ms"`
}

// Params configures the orchestrator
type Params struct {
	Sources  SourceStore
	Articles ArticleStore
	RunLogs  RunLogStore
	Adapters AdapterRegistry
	Notifier Notifier // optional, nil disables downstream processing

	FetchPolicy   retry.Policy  // zero value falls back to retry.DefaultPolicy
	SourceTimeout time.Duration // bound for one source's full run
}

// Orchestrator runs ingestion for one or all sources
type Orchestrator struct {
	sources    SourceStore
	articles   ArticleStore
	runLogs    RunLogStore
	adapters   AdapterRegistry
	notifier   Notifier
	dedup      *Deduper
	normalizer *normalize.Normalizer
	policy     retry.Policy
	timeout    time.Duration
}

// NewOrchestrator creates an orchestrator from the given collaborators
func NewOrchestrator(p Params) *Orchestrator {
	policy := p.FetchPolicy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy
	}
	timeout := p.SourceTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Orchestrator{
		sources:    p.Sources,
		articles:   p.Articles,
		runLogs:    p.RunLogs,
		adapters:   p.Adapters,
		notifier:   p.Notifier,
		dedup:      NewDeduper(p.Articles),
		normalizer: normalize.New(),
		policy:     policy,
		timeout:    timeout,
	}
}

// IngestSource runs ingestion for a single source. The returned error covers
// only the source lookup; fetch and per-item failures are reported inside the
// result so a multi-source run always gets an entry per source.
func (o *Orchestrator) IngestSource(ctx context.Context, id int64) (*Result, error) {
	src, err := o.sources.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.ingest(ctx, src), nil
}

// IngestAll runs ingestion for every active source, sequentially. One source's
// failure never aborts the loop.
func (o *Orchestrator) IngestAll(ctx context.Context) ([]Result, error) {
	sources, err := o.sources.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}

	results := make([]Result, 0, len(sources))
	for i := range sources {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, *o.ingest(ctx, &sources[i]))
	}
	return results, nil
}

func (o *Orchestrator) ingest(ctx context.Context, src *domain.Source) *Result {
	start := time.Now()
	res := &Result{SourceID: src.ID, SourceName: src.Name, Errors: []string{}}

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	items, err := o.fetch(runCtx, src)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("fetch %s: %v", src.Slug, err))
	}
	res.TotalFetched = len(items)

	now := time.Now().UTC()
	for _, item := range items {
		// a degraded item is still ingested with its list-page fields, but the
		// run must show the failure
		if item.DetailError != "" {
			res.Errors = append(res.Errors, fmt.Sprintf("detail %s: %s", item.ExternalURL, item.DetailError))
		}
		if err := o.ingestItem(runCtx, src, item, now, res); err != nil {
			res.Errors = append(res.Errors, err.Error())
		}
	}

	res.DurationMs = time.Since(start).Milliseconds()

	// a partial or failed run still counts as "ran"; persistence here uses the
	// parent context so a fetch timeout can't also lose the bookkeeping
	if err := o.sources.UpdateLastScraped(ctx, src.ID, now); err != nil {
		lgr.Printf("[WARN] failed to update last scraped for %s: %v", src.Slug, err)
	}

	runLog := &domain.RunLog{
		SourceID:     src.ID,
		Success:      len(res.Errors) == 0,
		TotalFetched: res.TotalFetched,
		NewArticles:  res.NewArticles,
		Duplicates:   res.Duplicates,
		DurationMs:   res.DurationMs,
		Errors:       res.Errors,
	}
	if err := o.runLogs.Append(ctx, runLog); err != nil {
		lgr.Printf("[WARN] failed to append run log for %s: %v", src.Slug, err)
	}

	lgr.Printf("[INFO] ingested %s: fetched %d, new %d, duplicates %d, errors %d in %dms",
		src.Slug, res.TotalFetched, res.NewArticles, res.Duplicates, len(res.Errors), res.DurationMs)
	return res
}

func (o *Orchestrator) fetch(ctx context.Context, src *domain.Source) ([]domain.RawItem, error) {
	a, err := o.adapters.For(src.AdapterType)
	if err != nil {
		return nil, err
	}

	var items []domain.RawItem
	err = retry.Do(ctx, o.policy, func() error {
		var ferr error
		items, ferr = a.Fetch(ctx, *src)
		return ferr
	})
	return items, err
}

func (o *Orchestrator) ingestItem(ctx context.Context, src *domain.Source, item domain.RawItem, now time.Time, res *Result) error {
	draft, err := o.normalizer.Normalize(*src, item, now)
	if err != nil {
		return fmt.Errorf("normalize item %q: %w", item.Title, err)
	}

	dup, _, err := o.dedup.IsDuplicate(ctx, draft)
	if err != nil {
		return fmt.Errorf("dedup check %s: %w", draft.ExternalID, err)
	}
	if dup {
		res.Duplicates++
		return nil
	}

	id, err := o.articles.Create(ctx, &draft)
	if errors.Is(err, domain.ErrDuplicate) {
		// lost the race to a concurrent insert, same outcome as dedup hit
		res.Duplicates++
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist %s: %w", draft.ExternalID, err)
	}

	res.NewArticles++
	if o.notifier != nil {
		o.notifier.Notify(id)
	}
	return nil
}
