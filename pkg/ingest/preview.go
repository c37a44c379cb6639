package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/atomwire/ingest/pkg/domain"
)

// preview limits, the path is interactive and must stay cheap
const (
	defaultPreviewLimit = 5
	maxPreviewLimit     = 20
)

// qualityGateThreshold is the minimum fraction of sample items with a
// non-empty title and url for a config to be considered saveable
const qualityGateThreshold = 0.8

// PreviewRequest carries optional overrides so admins can test config edits
// before saving them
type PreviewRequest struct {
	Limit         int                   `json:"limit"`
	URL           string                `json:"url,omitempty"`
	AdapterType   domain.AdapterType    `json:"adapter_type,omitempty"`
	AdapterConfig *domain.AdapterConfig `json:"adapter_config,omitempty"`
}

// SampleItem is one preview extraction, enough detail to judge quality
type SampleItem struct {
	Title       string     `json:"title"`
	ExternalURL string     `json:"external_url"`
	ImageCount  int        `json:"image_count"`
	HasCover    bool       `json:"has_cover"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// PreviewResult is the outcome of a dry run, nothing persisted
type PreviewResult struct {
	SourceID      int64              `json:"source_id"`
	SourceName    string             `json:"source_name"`
	AdapterType   domain.AdapterType `json:"adapter_type"`
	ConfigVersion int                `json:"config_version"`
	DurationMs    int64              `json:"duration_ms"`
	TotalFetched  int                `json:"total_fetched"`
	Sample        []SampleItem       `json:"sample"`
}

// QualityRatio is the fraction of sample items with a non-empty title and url
func (r *PreviewResult) QualityRatio() float64 {
	if len(r.Sample) == 0 {
		return 0
	}
	good := 0
	for _, item := range r.Sample {
		if item.Title != "" && item.ExternalURL != "" {
			good++
		}
	}
	return float64(good) / float64(len(r.Sample))
}

// PassesQualityGate reports whether the previewed config may be saved. A run
// that fetched nothing always fails the gate.
func (r *PreviewResult) PassesQualityGate() bool {
	return r.TotalFetched > 0 && r.QualityRatio() >= qualityGateThreshold
}

// Preview runs the adapter and normalizer against the persisted config or the
// request's override, capped at the request limit, with no dedup check and no
// persistence
func (o *Orchestrator) Preview(ctx context.Context, sourceID int64, req PreviewRequest) (*PreviewResult, error) {
	src, err := o.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if req.URL != "" {
		src.URL = req.URL
	}
	if req.AdapterType != "" {
		src.AdapterType = req.AdapterType
	}
	if req.AdapterConfig != nil {
		cfg := *req.AdapterConfig
		if cfg.Version == 0 {
			cfg.Version = src.AdapterConfig.Version
		}
		src.AdapterConfig = cfg
	}
	if err := src.AdapterConfig.Validate(src.AdapterType); err != nil {
		return nil, fmt.Errorf("validate preview config: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	if limit > maxPreviewLimit {
		limit = maxPreviewLimit
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	items, err := o.fetch(runCtx, src)
	if err != nil {
		return nil, fmt.Errorf("preview fetch %s: %w", src.Slug, err)
	}

	result := &PreviewResult{
		SourceID:      src.ID,
		SourceName:    src.Name,
		AdapterType:   src.AdapterType,
		ConfigVersion: src.AdapterConfig.Version,
		TotalFetched:  len(items),
		Sample:        []SampleItem{},
	}

	now := time.Now().UTC()
	for _, item := range items {
		if len(result.Sample) >= limit {
			break
		}
		result.Sample = append(result.Sample, o.sampleItem(*src, item, now))
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// sampleItem normalizes one item for display. Items the normalizer rejects
// still show up in the sample with whatever survived extraction, so a bad
// selector drags the quality ratio down instead of hiding.
func (o *Orchestrator) sampleItem(src domain.Source, item domain.RawItem, now time.Time) SampleItem {
	draft, err := o.normalizer.Normalize(src, item, now)
	if err != nil {
		return SampleItem{
			Title:       item.Title,
			ExternalURL: item.ExternalURL,
			ImageCount:  len(item.Images),
			PublishedAt: item.PublishedAt,
		}
	}

	hasCover := false
	for _, img := range draft.Images {
		if img.IsCover {
			hasCover = true
			break
		}
	}
	return SampleItem{
		Title:       draft.Title,
		ExternalURL: draft.ExternalURL,
		ImageCount:  len(draft.Images),
		HasCover:    hasCover,
		PublishedAt: draft.PublishedAt,
	}
}
