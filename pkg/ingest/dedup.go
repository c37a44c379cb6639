package ingest

import (
	"context"

	"github.com/atomwire/ingest/pkg/domain"
)

// Deduper answers whether a draft was already ingested. The persisted store is
// authoritative; no in-memory fingerprint cache is kept.
type Deduper struct {
	articles ArticleStore
}

// NewDeduper creates a deduper over the article store
func NewDeduper(articles ArticleStore) *Deduper {
	return &Deduper{articles: articles}
}

// IsDuplicate matches either the (source, external id) pair or the content
// hash and returns the existing article id on a hit
func (d *Deduper) IsDuplicate(ctx context.Context, draft domain.Draft) (bool, int64, error) {
	id, found, err := d.articles.FindExisting(ctx, draft.SourceID, draft.ExternalID, draft.ContentHash)
	if err != nil {
		return false, 0, err
	}
	return found, id, nil
}
