// Package normalize converts raw adapter extractions into canonical article
// drafts. The transform is pure: it never reads or mutates persisted state.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/atomwire/ingest/pkg/domain"
)

// Fingerprint computes the stable content hash for an article. Only the
// source slug and external id participate: upstream edits to title or body
// must not change the identity of a re-ingested article.
func Fingerprint(sourceSlug, externalID string) string {
	sum := sha256.Sum256([]byte(sourceSlug + ":" + externalID))
	return hex.EncodeToString(sum[:])
}

// Normalizer turns raw items into drafts
type Normalizer struct {
	policy *bluemonday.Policy
}

// New creates a normalizer with a UGC sanitization policy for body html
func New() *Normalizer {
	return &Normalizer{policy: bluemonday.UGCPolicy()}
}

// Normalize converts one raw item into a canonical draft for the given source
func (n *Normalizer) Normalize(src domain.Source, item domain.RawItem, now time.Time) (domain.Draft, error) {
	externalID := strings.TrimSpace(item.ExternalID)
	if externalID == "" {
		externalID = strings.TrimSpace(item.ExternalURL)
	}
	if externalID == "" {
		return domain.Draft{}, fmt.Errorf("item %q has no external id or url", item.Title)
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return domain.Draft{}, fmt.Errorf("item %s has no title", externalID)
	}

	language := src.Language
	if language == "" {
		language = "en"
	}

	draft := domain.Draft{
		SourceID:    src.ID,
		ExternalID:  externalID,
		ExternalURL: strings.TrimSpace(item.ExternalURL),
		Title:       title,
		Content:     n.policy.Sanitize(strings.TrimSpace(item.BodyHTML)),
		Excerpt:     strings.TrimSpace(item.Excerpt),
		Language:    language,
		Tags:        []string{},
		Images:      normalizeImages(item.Images),
		PublishedAt: item.PublishedAt,
		ScrapedAt:   now,
		ContentHash: Fingerprint(src.Slug, externalID),
	}

	return draft, nil
}

// normalizeImages preserves source order and keeps at most one cover: the
// first image with an explicit cover signal. Cover selection for articles
// without one belongs to the downstream processing stage.
func normalizeImages(images []domain.Image) []domain.Image {
	if len(images) == 0 {
		return nil
	}

	out := make([]domain.Image, 0, len(images))
	coverSeen := false
	for _, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		if img.IsCover {
			if coverSeen {
				img.IsCover = false
			}
			coverSeen = true
		}
		out = append(out, img)
	}
	return out
}
