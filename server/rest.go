package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/atomwire/ingest/pkg/domain"
	"github.com/atomwire/ingest/pkg/health"
	"github.com/atomwire/ingest/pkg/ingest"
	"github.com/atomwire/ingest/pkg/schedule"
)

// health window bounds, matches the repository query limits
const (
	healthWindow   = 7 * 24 * time.Hour
	healthLogLimit = 2000
)

// sourceView is the admin-facing source representation
type sourceView struct {
	ID                    int64                `json:"id"`
	Name                  string               `json:"name"`
	Slug                  string               `json:"slug"`
	URL                   string               `json:"url"`
	AdapterType           domain.AdapterType   `json:"adapter_type"`
	AdapterConfig         domain.AdapterConfig `json:"adapter_config"`
	Language              string               `json:"language"`
	IsActive              bool                 `json:"is_active"`
	ScrapeIntervalMinutes int                  `json:"scrape_interval_minutes"`
	LastScrapedAt         *time.Time           `json:"last_scraped_at,omitempty"`
	Health                *domain.SourceHealth `json:"health,omitempty"`
}

func toView(src domain.Source, h *domain.SourceHealth) sourceView {
	return sourceView{
		ID:                    src.ID,
		Name:                  src.Name,
		Slug:                  src.Slug,
		URL:                   src.URL,
		AdapterType:           src.AdapterType,
		AdapterConfig:         src.AdapterConfig,
		Language:              src.Language,
		IsActive:              src.IsActive,
		ScrapeIntervalMinutes: src.ScrapeIntervalMinutes,
		LastScrapedAt:         src.LastScrapedAt,
		Health:                h,
	}
}

// sourceRequest is the create/update payload
type sourceRequest struct {
	Name                  string               `json:"name"`
	Slug                  string               `json:"slug"`
	URL                   string               `json:"url"`
	AdapterType           domain.AdapterType   `json:"adapter_type"`
	AdapterConfig         domain.AdapterConfig `json:"adapter_config"`
	Language              string               `json:"language"`
	IsActive              *bool                `json:"is_active"`
	ScrapeIntervalMinutes int                  `json:"scrape_interval_minutes"`
}

func (req *sourceRequest) validate() error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if req.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !req.AdapterType.Valid() {
		return fmt.Errorf("unknown adapter type %q", req.AdapterType)
	}
	return nil
}

// previewResponse decorates the preview result with the quality gate outcome
type previewResponse struct {
	*ingest.PreviewResult
	QualityRatio      float64 `json:"quality_ratio"`
	PassesQualityGate bool    `json:"passes_quality_gate"`
}

func sourceID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid source id %q", r.PathValue("id"))
	}
	return id, nil
}

// ingestAllHandler scrapes every active source and returns per-source results
func (s *Server) ingestAllHandler(w http.ResponseWriter, r *http.Request) {
	results, err := s.ingester.IngestAll(r.Context())
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	failed := 0
	for _, res := range results {
		if len(res.Errors) > 0 {
			failed++
		}
	}
	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"sources": len(results),
		"failed":  failed,
		"results": results,
	})
}

// ingestSourceHandler scrapes one source
func (s *Server) ingestSourceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := sourceID(r)
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	result, err := s.ingester.IngestSource(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			RenderError(w, r, err, http.StatusNotFound)
			return
		}
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, result)
}

// previewHandler runs a dry scrape against the persisted or overridden config
func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := sourceID(r)
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	// an absent body means "preview the persisted config", not a bad request
	var req ingest.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RenderError(w, r, fmt.Errorf("decode preview request: %w", err), http.StatusBadRequest)
		return
	}

	result, err := s.ingester.Preview(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSourceNotFound):
			RenderError(w, r, err, http.StatusNotFound)
		case isValidationError(err):
			RenderError(w, r, err, http.StatusBadRequest)
		default:
			RenderError(w, r, err, http.StatusUnprocessableEntity)
		}
		return
	}

	RenderJSON(w, r, http.StatusOK, previewResponse{
		PreviewResult:     result,
		QualityRatio:      result.QualityRatio(),
		PassesQualityGate: result.PassesQualityGate(),
	})
}

// listSourcesHandler returns all sources with derived health
func (s *Server) listSourcesHandler(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.List(r.Context(), false)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	views := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		logs, err := s.runLogs.Recent(r.Context(), src.ID, now.Add(-healthWindow), healthLogLimit)
		if err != nil {
			lgr.Printf("[WARN] can't load run logs for %s: %v", src.Slug, err)
		}
		h := health.Derive(src, logs, now)
		views = append(views, toView(src, &h))
	}
	RenderJSON(w, r, http.StatusOK, views)
}

// dueSourcesHandler returns the active sources whose interval has elapsed
func (s *Server) dueSourcesHandler(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.List(r.Context(), true)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	views := make([]sourceView, 0)
	for _, src := range schedule.Due(sources, time.Now().UTC()) {
		views = append(views, toView(src, nil))
	}
	RenderJSON(w, r, http.StatusOK, views)
}

// createSourceHandler registers a new source
func (s *Server) createSourceHandler(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("decode source request: %w", err), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	src := &domain.Source{
		Name:                  req.Name,
		Slug:                  req.Slug,
		URL:                   req.URL,
		AdapterType:           req.AdapterType,
		AdapterConfig:         req.AdapterConfig,
		Language:              req.Language,
		IsActive:              req.IsActive == nil || *req.IsActive,
		ScrapeIntervalMinutes: req.ScrapeIntervalMinutes,
	}
	if src.ScrapeIntervalMinutes == 0 {
		src.ScrapeIntervalMinutes = 60
	}

	if err := s.sources.Create(r.Context(), src); err != nil {
		if isValidationError(err) {
			RenderError(w, r, err, http.StatusBadRequest)
			return
		}
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusCreated, toView(*src, nil))
}

// updateSourceHandler applies admin edits; any edit bumps the config version
func (s *Server) updateSourceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := sourceID(r)
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("decode source request: %w", err), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	src, err := s.sources.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			RenderError(w, r, err, http.StatusNotFound)
			return
		}
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	src.Name = req.Name
	src.Slug = req.Slug
	src.URL = req.URL
	src.AdapterType = req.AdapterType
	src.AdapterConfig.FeedURL = req.AdapterConfig.FeedURL
	src.AdapterConfig.Selectors = req.AdapterConfig.Selectors
	src.Language = req.Language
	if req.IsActive != nil {
		src.IsActive = *req.IsActive
	}
	if req.ScrapeIntervalMinutes > 0 {
		src.ScrapeIntervalMinutes = req.ScrapeIntervalMinutes
	}

	if err := s.sources.Update(r.Context(), src); err != nil {
		switch {
		case errors.Is(err, domain.ErrSourceNotFound):
			RenderError(w, r, err, http.StatusNotFound)
		case isValidationError(err):
			RenderError(w, r, err, http.StatusBadRequest)
		default:
			RenderError(w, r, err, http.StatusInternalServerError)
		}
		return
	}
	RenderJSON(w, r, http.StatusOK, toView(*src, nil))
}

// isValidationError matches config validation failures from the domain layer
func isValidationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "validate") || strings.Contains(msg, "requires") || strings.Contains(msg, "must be")
}
