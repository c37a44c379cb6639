package ingest

import (
	"context"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/atomwire/ingest/pkg/ai"
	"github.com/atomwire/ingest/pkg/domain"
	"github.com/atomwire/ingest/pkg/retry"
)

//go:generate moq -out mocks/text_processor.go -pkg mocks -skip-ensure -fmt goimports . TextProcessor

// TextProcessor is the downstream AI collaborator
type TextProcessor interface {
	ProcessText(ctx context.Context, req ai.Request) (*domain.ProcessedContent, error)
}

// ArticleUpdater provides the article operations the trigger needs
type ArticleUpdater interface {
	Get(ctx context.Context, id int64) (*domain.Article, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ArticleStatus) error
	UpdateProcessed(ctx context.Context, id int64, processed *domain.ProcessedContent) error
}

// Trigger hands freshly ingested article ids to a bounded pool of processing
// workers over a buffered channel. Ingestion never blocks on it: when the
// buffer is full the notification is dropped and the article stays INGESTED
// for a later sweep.
type Trigger struct {
	ch        chan int64
	articles  ArticleUpdater
	sources   SourceStore
	processor TextProcessor
	policy    retry.Policy
	workers   int
}

// NewTrigger creates a trigger with the given worker pool size and queue depth
func NewTrigger(articles ArticleUpdater, sources SourceStore, processor TextProcessor, workers, queueSize int) *Trigger {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Trigger{
		ch:        make(chan int64, queueSize),
		articles:  articles,
		sources:   sources,
		processor: processor,
		policy:    retry.DefaultPolicy,
		workers:   workers,
	}
}

// Notify enqueues an article for processing, never blocking the caller
func (t *Trigger) Notify(articleID int64) {
	select {
	case t.ch <- articleID:
	default:
		lgr.Printf("[WARN] processing queue full, article %d stays ingested", articleID)
	}
}

// Run starts the worker pool and blocks until the context is canceled
func (t *Trigger) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < t.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-t.ch:
					t.process(ctx, id)
				}
			}
		})
	}
	return g.Wait()
}

// process moves one article INGESTED -> PROCESSING -> DRAFT or FAILED. A
// failure here is logged and never surfaces to the ingestion result.
func (t *Trigger) process(ctx context.Context, id int64) {
	article, err := t.articles.Get(ctx, id)
	if err != nil {
		lgr.Printf("[WARN] can't load article %d for processing: %v", id, err)
		return
	}
	if article.Status != domain.StatusIngested {
		return // picked up by someone else already
	}

	if err := t.articles.UpdateStatus(ctx, id, domain.StatusProcessing); err != nil {
		lgr.Printf("[WARN] can't mark article %d processing: %v", id, err)
		return
	}

	sourceName := ""
	if src, err := t.sources.Get(ctx, article.SourceID); err == nil {
		sourceName = src.Name
	}

	var processed *domain.ProcessedContent
	err = retry.Do(ctx, t.policy, func() error {
		result, perr := t.processor.ProcessText(ctx, ai.Request{
			Title:      article.Title,
			SourceName: sourceName,
			Content:    article.Content,
		})
		if perr != nil {
			return perr
		}
		processed = result
		return nil
	})
	if err != nil {
		lgr.Printf("[WARN] processing failed for article %d: %v", id, err)
		if serr := t.articles.UpdateStatus(ctx, id, domain.StatusFailed); serr != nil {
			lgr.Printf("[WARN] can't mark article %d failed: %v", id, serr)
		}
		return
	}

	if err := t.articles.UpdateProcessed(ctx, id, processed); err != nil {
		lgr.Printf("[WARN] can't store processing result for article %d: %v", id, err)
		return
	}
	lgr.Printf("[DEBUG] article %d processed into draft", id)
}
