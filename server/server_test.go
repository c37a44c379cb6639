package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomwire/ingest/pkg/domain"
	"github.com/atomwire/ingest/pkg/ingest"
)

type fakeIngester struct {
	allResults []ingest.Result
	oneResult  *ingest.Result
	preview    *ingest.PreviewResult
	err        error

	previewReq ingest.PreviewRequest
}

func (f *fakeIngester) IngestSource(_ context.Context, id int64) (*ingest.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := *f.oneResult
	res.SourceID = id
	return &res, nil
}

func (f *fakeIngester) IngestAll(context.Context) ([]ingest.Result, error) {
	return f.allResults, f.err
}

func (f *fakeIngester) Preview(_ context.Context, _ int64, req ingest.PreviewRequest) (*ingest.PreviewResult, error) {
	f.previewReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.preview, nil
}

type fakeSources struct {
	byID    map[int64]*domain.Source
	created []*domain.Source
	updated []*domain.Source
}

func (f *fakeSources) Get(_ context.Context, id int64) (*domain.Source, error) {
	src, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("source %d: %w", id, domain.ErrSourceNotFound)
	}
	cp := *src
	return &cp, nil
}

func (f *fakeSources) List(_ context.Context, activeOnly bool) ([]domain.Source, error) {
	out := []domain.Source{}
	for _, src := range f.byID {
		if activeOnly && !src.IsActive {
			continue
		}
		out = append(out, *src)
	}
	return out, nil
}

func (f *fakeSources) Create(_ context.Context, src *domain.Source) error {
	if err := src.AdapterConfig.Validate(src.AdapterType); err != nil {
		return fmt.Errorf("validate adapter config: %w", err)
	}
	src.ID = int64(len(f.created) + 100)
	f.created = append(f.created, src)
	return nil
}

func (f *fakeSources) Update(_ context.Context, src *domain.Source) error {
	if _, ok := f.byID[src.ID]; !ok {
		return fmt.Errorf("source %d: %w", src.ID, domain.ErrSourceNotFound)
	}
	src.AdapterConfig.Version++
	f.updated = append(f.updated, src)
	return nil
}

type fakeRunLogs struct{ logs map[int64][]domain.RunLog }

func (f *fakeRunLogs) Recent(_ context.Context, sourceID int64, _ time.Time, _ int) ([]domain.RunLog, error) {
	return f.logs[sourceID], nil
}

func rssSource(id int64, active bool, lastScraped *time.Time) *domain.Source {
	return &domain.Source{
		ID:                    id,
		Name:                  fmt.Sprintf("Source %d", id),
		Slug:                  fmt.Sprintf("source-%d", id),
		URL:                   "https://example.com",
		AdapterType:           domain.AdapterRSS,
		AdapterConfig:         domain.AdapterConfig{Version: 1, FeedURL: "https://example.com/feed.xml"},
		IsActive:              active,
		ScrapeIntervalMinutes: 60,
		LastScrapedAt:         lastScraped,
	}
}

func newTestServer(ing *fakeIngester, sources *fakeSources, logs *fakeRunLogs) *Server {
	if sources == nil {
		sources = &fakeSources{byID: map[int64]*domain.Source{}}
	}
	if logs == nil {
		logs = &fakeRunLogs{logs: map[int64][]domain.RunLog{}}
	}
	return New(ing, sources, logs, ":0", time.Second, "test", false)
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(&fakeIngester{}, nil, nil)

	req := httptest.NewRequest("GET", "/api/v1/status", http.NoBody)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestServer_Ping(t *testing.T) {
	srv := newTestServer(&fakeIngester{}, nil, nil)

	req := httptest.NewRequest("GET", "/ping", http.NoBody)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestServer_IngestAll(t *testing.T) {
	ing := &fakeIngester{allResults: []ingest.Result{
		{SourceID: 1, NewArticles: 3, Errors: []string{}},
		{SourceID: 2, Errors: []string{"fetch failed"}},
	}}
	srv := newTestServer(ing, nil, nil)

	req := httptest.NewRequest("POST", "/api/v1/ingest", http.NoBody)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Sources int             `json:"sources"`
		Failed  int             `json:"failed"`
		Results []ingest.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Sources)
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Results, 2)
}

func TestServer_IngestSource(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		ing := &fakeIngester{oneResult: &ingest.Result{SourceName: "Test", NewArticles: 2}}
		srv := newTestServer(ing, nil, nil)

		req := httptest.NewRequest("POST", "/api/v1/sources/7/ingest", http.NoBody)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var res ingest.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, int64(7), res.SourceID)
		assert.Equal(t, 2, res.NewArticles)
	})

	t.Run("unknown source", func(t *testing.T) {
		ing := &fakeIngester{err: fmt.Errorf("source 7: %w", domain.ErrSourceNotFound)}
		srv := newTestServer(ing, nil, nil)

		req := httptest.NewRequest("POST", "/api/v1/sources/7/ingest", http.NoBody)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		srv := newTestServer(&fakeIngester{}, nil, nil)

		req := httptest.NewRequest("POST", "/api/v1/sources/abc/ingest", http.NoBody)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_Preview(t *testing.T) {
	t.Run("quality gate in response", func(t *testing.T) {
		ing := &fakeIngester{preview: &ingest.PreviewResult{
			SourceID:     1,
			TotalFetched: 5,
			Sample: []ingest.SampleItem{
				{Title: "a", ExternalURL: "u"},
				{Title: "b", ExternalURL: "u"},
				{Title: "c", ExternalURL: "u"},
				{Title: "d", ExternalURL: "u"},
				{Title: "", ExternalURL: "u"},
			},
		}}
		srv := newTestServer(ing, nil, nil)

		body := bytes.NewBufferString(`{"limit": 5}`)
		req := httptest.NewRequest("POST", "/api/v1/sources/1/preview", body)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var res struct {
			TotalFetched      int     `json:"total_fetched"`
			QualityRatio      float64 `json:"quality_ratio"`
			PassesQualityGate bool    `json:"passes_quality_gate"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, 5, res.TotalFetched)
		assert.InDelta(t, 0.8, res.QualityRatio, 0.001)
		assert.True(t, res.PassesQualityGate)
		assert.Equal(t, 5, ing.previewReq.Limit)
	})

	t.Run("no body previews persisted config", func(t *testing.T) {
		ing := &fakeIngester{preview: &ingest.PreviewResult{
			SourceID:     1,
			TotalFetched: 1,
			Sample:       []ingest.SampleItem{{Title: "a", ExternalURL: "u"}},
		}}
		srv := newTestServer(ing, nil, nil)

		req := httptest.NewRequest("POST", "/api/v1/sources/1/preview", http.NoBody)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ingest.PreviewRequest{}, ing.previewReq, "empty body means defaults")
	})

	t.Run("malformed body", func(t *testing.T) {
		ing := &fakeIngester{}
		srv := newTestServer(ing, nil, nil)

		req := httptest.NewRequest("POST", "/api/v1/sources/1/preview", bytes.NewBufferString("{not json"))
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid override config", func(t *testing.T) {
		ing := &fakeIngester{err: errors.New("validate preview config: html adapter requires article_selector")}
		srv := newTestServer(ing, nil, nil)

		req := httptest.NewRequest("POST", "/api/v1/sources/1/preview", http.NoBody)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("fetch failure", func(t *testing.T) {
		ing := &fakeIngester{err: errors.New("preview fetch src: network error: status 500")}
		srv := newTestServer(ing, nil, nil)

		req := httptest.NewRequest("POST", "/api/v1/sources/1/preview", http.NoBody)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestServer_ListSources(t *testing.T) {
	past := time.Now().UTC().Add(-30 * time.Minute)
	sources := &fakeSources{byID: map[int64]*domain.Source{
		1: rssSource(1, true, &past),
		2: rssSource(2, false, nil),
	}}
	logs := &fakeRunLogs{logs: map[int64][]domain.RunLog{
		1: {{SourceID: 1, Success: true, TotalFetched: 10, CreatedAt: past}},
	}}
	srv := newTestServer(&fakeIngester{}, sources, logs)

	req := httptest.NewRequest("GET", "/api/v1/sources", http.NoBody)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var views []sourceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)

	byID := map[int64]sourceView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	require.NotNil(t, byID[1].Health)
	assert.Equal(t, domain.HealthHealthy, byID[1].Health.Status)
	require.NotNil(t, byID[2].Health)
	assert.Equal(t, domain.HealthInactive, byID[2].Health.Status)
}

func TestServer_DueSources(t *testing.T) {
	recent := time.Now().UTC().Add(-5 * time.Minute)
	stale := time.Now().UTC().Add(-3 * time.Hour)
	sources := &fakeSources{byID: map[int64]*domain.Source{
		1: rssSource(1, true, nil),     // never scraped, due
		2: rssSource(2, true, &recent), // not due
		3: rssSource(3, true, &stale),  // due
		4: rssSource(4, false, nil),    // inactive
	}}
	srv := newTestServer(&fakeIngester{}, sources, nil)

	req := httptest.NewRequest("GET", "/api/v1/sources/due", http.NoBody)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var views []sourceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)
	ids := []int64{views[0].ID, views[1].ID}
	assert.ElementsMatch(t, []int64{1, 3}, ids)
}

func TestServer_CreateSource(t *testing.T) {
	t.Run("created with defaults", func(t *testing.T) {
		sources := &fakeSources{byID: map[int64]*domain.Source{}}
		srv := newTestServer(&fakeIngester{}, sources, nil)

		body := bytes.NewBufferString(`{
			"name": "World Nuclear News",
			"slug": "wnn",
			"url": "https://example.com/wnn",
			"adapter_type": "rss",
			"adapter_config": {"version": 1, "feed_url": "https://example.com/wnn/feed.xml"}
		}`)
		req := httptest.NewRequest("POST", "/api/v1/sources", body)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		var view sourceView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.True(t, view.IsActive)
		assert.Equal(t, 60, view.ScrapeIntervalMinutes)
		require.Len(t, sources.created, 1)
	})

	t.Run("unknown adapter type rejected", func(t *testing.T) {
		srv := newTestServer(&fakeIngester{}, nil, nil)

		body := bytes.NewBufferString(`{"name": "x", "slug": "x", "url": "https://x", "adapter_type": "ftp"}`)
		req := httptest.NewRequest("POST", "/api/v1/sources", body)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing config rejected", func(t *testing.T) {
		srv := newTestServer(&fakeIngester{}, &fakeSources{byID: map[int64]*domain.Source{}}, nil)

		body := bytes.NewBufferString(`{"name": "x", "slug": "x", "url": "https://x", "adapter_type": "rss", "adapter_config": {"version": 1}}`)
		req := httptest.NewRequest("POST", "/api/v1/sources", body)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_UpdateSource(t *testing.T) {
	t.Run("update bumps version and toggles active", func(t *testing.T) {
		sources := &fakeSources{byID: map[int64]*domain.Source{1: rssSource(1, true, nil)}}
		srv := newTestServer(&fakeIngester{}, sources, nil)

		body := bytes.NewBufferString(`{
			"name": "Renamed",
			"slug": "source-1",
			"url": "https://example.com",
			"adapter_type": "rss",
			"adapter_config": {"feed_url": "https://example.com/feed.xml"},
			"is_active": false
		}`)
		req := httptest.NewRequest("PUT", "/api/v1/sources/1", body)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var view sourceView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, "Renamed", view.Name)
		assert.False(t, view.IsActive)
		assert.Equal(t, 2, view.AdapterConfig.Version)
	})

	t.Run("unknown source", func(t *testing.T) {
		srv := newTestServer(&fakeIngester{}, &fakeSources{byID: map[int64]*domain.Source{}}, nil)

		body := bytes.NewBufferString(`{"name": "x", "slug": "x", "url": "https://x", "adapter_type": "rss", "adapter_config": {"feed_url": "https://x/f"}}`)
		req := httptest.NewRequest("PUT", "/api/v1/sources/99", body)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
