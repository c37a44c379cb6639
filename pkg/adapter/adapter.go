package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/atomwire/ingest/pkg/domain"
)

// Adapter fetches raw items from an external source. Implementations must
// honor the context and return typed errors so callers can tell transient
// network failures from permanent parse failures. An empty item list is a
// valid result, not an error.
type Adapter interface {
	Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error)
	FetchDetail(ctx context.Context, pageURL string, cfg domain.AdapterConfig) (*Detail, error)
}

// Detail is the per-article extraction result for list-then-detail adapters
type Detail struct {
	ContentHTML string
	Images      []domain.Image
	PublishedAt *time.Time
}

// ErrorKind classifies adapter failures
type ErrorKind string

// adapter failure kinds
const (
	KindNetwork ErrorKind = "network"
	KindParse   ErrorKind = "parse"
	KindTimeout ErrorKind = "timeout"
)

// Error is a classified adapter failure
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s error: %v", e.Kind, e.Err) }

// Unwrap exposes the underlying error for errors.Is/As
func (e *Error) Unwrap() error { return e.Err }

// newError wraps err with the given kind; timeout detection wins over the
// caller-suggested kind so hung fetches classify consistently.
func newError(kind ErrorKind, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the error kind, or empty string for unclassified errors
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Config holds shared adapter settings
type Config struct {
	Timeout        time.Duration // list/feed/detail http fetches
	BrowserTimeout time.Duration // headless renders, much slower
	UserAgent      string
	MaxArticles    int // default cap when a source doesn't set one
}

// Registry selects an adapter implementation by source adapter type
type Registry struct {
	byType map[domain.AdapterType]Adapter
}

// NewRegistry builds the three adapter variants over a shared http client
func NewRegistry(cfg Config) *Registry {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BrowserTimeout == 0 {
		cfg.BrowserTimeout = 45 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; atomwire-ingest/1.0)"
	}
	if cfg.MaxArticles == 0 {
		cfg.MaxArticles = 20
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	htmlAdapter := NewHTML(client, cfg)
	return &Registry{byType: map[domain.AdapterType]Adapter{
		domain.AdapterRSS:     NewRSS(client, cfg),
		domain.AdapterHTML:    htmlAdapter,
		domain.AdapterBrowser: NewBrowser(htmlAdapter, cfg),
	}}
}

// For returns the adapter for the given type
func (r *Registry) For(t domain.AdapterType) (Adapter, error) {
	a, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for type %q", t)
	}
	return a, nil
}
