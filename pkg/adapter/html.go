package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-pkgz/lgr"
	"github.com/markusmobius/go-trafilatura"

	"github.com/atomwire/ingest/pkg/domain"
)

// HTML scrapes article listings with CSS selectors over plain http fetches
type HTML struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxArticles int
}

// NewHTML creates the html adapter
func NewHTML(client *http.Client, cfg Config) *HTML {
	return &HTML{client: client, timeout: cfg.Timeout, userAgent: cfg.UserAgent, maxArticles: cfg.MaxArticles}
}

// Fetch retrieves the list page, extracts item stubs and, unless list_only is
// set, visits each article URL for full content. A detail-fetch failure
// degrades the item to its list-page fields instead of failing the batch.
func (a *HTML) Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error) {
	sel := src.AdapterConfig.Selectors
	listURL := sel.ListURL
	if listURL == "" {
		listURL = src.URL
	}

	body, err := a.fetchPage(ctx, listURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindParse, fmt.Errorf("parse list page %s: %w", listURL, err))
	}

	items, err := a.extractList(doc, listURL, sel)
	if err != nil {
		return nil, err
	}

	if sel.ListOnly {
		return items, nil
	}

	for i := range items {
		detail, err := a.FetchDetail(ctx, items[i].ExternalURL, src.AdapterConfig)
		if err != nil {
			lgr.Printf("[WARN] detail fetch failed for %s: %v", items[i].ExternalURL, err)
			items[i].DetailError = err.Error()
			continue
		}
		mergeDetail(&items[i], detail)
	}

	return items, nil
}

// FetchDetail retrieves one article page and extracts content, date and images
func (a *HTML) FetchDetail(ctx context.Context, pageURL string, cfg domain.AdapterConfig) (*Detail, error) {
	body, err := a.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindParse, fmt.Errorf("parse article page %s: %w", pageURL, err))
	}

	return a.extractDetail(doc, body, pageURL, cfg.Selectors)
}

// fetchPage retrieves a page body with a bounded timeout
func (a *HTML) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	addPageHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, fmt.Errorf("fetch page %s: %w", pageURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindNetwork, fmt.Errorf("fetch page %s: unexpected status code %d", pageURL, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindNetwork, fmt.Errorf("read page %s: %w", pageURL, err))
	}
	return body, nil
}

// extractList pulls item stubs out of a listing document
func (a *HTML) extractList(doc *goquery.Document, baseURL string, sel domain.Selectors) ([]domain.RawItem, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, newError(KindParse, fmt.Errorf("parse base url %s: %w", baseURL, err))
	}

	limit := sel.MaxArticles
	if limit <= 0 {
		limit = a.maxArticles
	}

	var items []domain.RawItem
	doc.Find(sel.Article).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Find(sel.Link).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true // container without a link, skip
		}

		abs := absoluteURL(base, href)
		item := domain.RawItem{
			ExternalID:  abs,
			ExternalURL: abs,
			Title:       strings.TrimSpace(s.Find(sel.Title).First().Text()),
		}
		items = append(items, item)

		return len(items) < limit
	})

	return items, nil
}

// extractDetail pulls article content from a detail document. When no content
// selector is configured, trafilatura extracts the main text from the raw page.
func (a *HTML) extractDetail(doc *goquery.Document, raw []byte, pageURL string, sel domain.Selectors) (*Detail, error) {
	detail := &Detail{}

	if sel.Content != "" {
		node := doc.Find(sel.Content).First()
		if node.Length() > 0 {
			contentHTML, err := node.Html()
			if err != nil {
				return nil, newError(KindParse, fmt.Errorf("render content of %s: %w", pageURL, err))
			}
			detail.ContentHTML = strings.TrimSpace(contentHTML)
		}
	} else {
		parsed, _ := url.Parse(pageURL)
		result, err := trafilatura.Extract(bytes.NewReader(raw), trafilatura.Options{
			EnableFallback:  true,
			ExcludeComments: true,
			OriginalURL:     parsed,
		})
		if err != nil {
			return nil, newError(KindParse, fmt.Errorf("extract content of %s: %w", pageURL, err))
		}
		if result != nil {
			detail.ContentHTML = strings.TrimSpace(result.ContentText)
		}
	}

	if sel.Date != "" {
		if raw := strings.TrimSpace(doc.Find(sel.Date).First().Text()); raw != "" {
			if ts, err := dateparse.ParseAny(raw); err == nil {
				detail.PublishedAt = &ts
			} else {
				lgr.Printf("[DEBUG] unparseable date %q on %s", raw, pageURL)
			}
		}
	}

	if sel.Image != "" {
		base, _ := url.Parse(pageURL)
		doc.Find(sel.Image).Each(func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || strings.TrimSpace(src) == "" {
				return
			}
			img := domain.Image{URL: absoluteURL(base, src)}
			if caption, ok := s.Attr("alt"); ok {
				img.Caption = strings.TrimSpace(caption)
			}
			detail.Images = append(detail.Images, img)
		})
	}

	return detail, nil
}

// mergeDetail folds a detail result into a list-page item stub
func mergeDetail(item *domain.RawItem, detail *Detail) {
	if detail.ContentHTML != "" {
		item.BodyHTML = detail.ContentHTML
	}
	if detail.PublishedAt != nil {
		item.PublishedAt = detail.PublishedAt
	}
	if len(detail.Images) > 0 {
		item.Images = append(item.Images, detail.Images...)
	}
}

// absoluteURL resolves href against base, passing through already-absolute urls
func absoluteURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
