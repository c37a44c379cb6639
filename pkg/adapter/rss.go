package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/atomwire/ingest/pkg/domain"
)

// RSS fetches and parses RSS/Atom feeds
type RSS struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewRSS creates the rss adapter
func NewRSS(client *http.Client, cfg Config) *RSS {
	return &RSS{client: client, timeout: cfg.Timeout, userAgent: cfg.UserAgent}
}

// Fetch retrieves the configured feed and maps entries to raw items
func (a *RSS) Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error) {
	feedURL := src.AdapterConfig.FeedURL
	if feedURL == "" {
		feedURL = src.URL
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	addFeedHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, fmt.Errorf("fetch feed %s: %w", feedURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindNetwork, fmt.Errorf("fetch feed %s: unexpected status code %d", feedURL, resp.StatusCode))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, newError(KindParse, fmt.Errorf("parse feed %s: %w", feedURL, err))
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := domain.RawItem{
			ExternalURL: entry.Link,
			Title:       entry.Title,
			Excerpt:     entry.Description,
		}

		// guid falls back to link, feeds without either are unidentifiable
		if entry.GUID != "" {
			item.ExternalID = entry.GUID
		} else {
			item.ExternalID = entry.Link
		}

		// prefer full content:encoded over description
		if entry.Content != "" {
			item.BodyHTML = entry.Content
		} else {
			item.BodyHTML = entry.Description
		}

		if entry.PublishedParsed != nil {
			item.PublishedAt = entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			item.PublishedAt = entry.UpdatedParsed
		}

		// a feed-declared image is an explicit cover signal
		if entry.Image != nil && entry.Image.URL != "" {
			item.Images = append(item.Images, domain.Image{URL: entry.Image.URL, IsCover: true})
		}
		for _, enc := range entry.Enclosures {
			if enc != nil && enc.URL != "" && len(enc.Type) >= 5 && enc.Type[:5] == "image" {
				item.Images = append(item.Images, domain.Image{URL: enc.URL})
			}
		}

		items = append(items, item)
	}

	return items, nil
}

// FetchDetail is not supported for rss sources, feeds carry full content already
func (a *RSS) FetchDetail(_ context.Context, pageURL string, _ domain.AdapterConfig) (*Detail, error) {
	return nil, fmt.Errorf("rss adapter does not fetch article details (url %s)", pageURL)
}
