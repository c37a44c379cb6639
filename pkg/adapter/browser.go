package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/go-pkgz/lgr"

	"github.com/atomwire/ingest/pkg/domain"
)

// Browser executes the same selector schema as the html adapter against a
// JS-rendered DOM. Reserved for sites that block plain http fetches or render
// their listings client-side. Requires Chrome/Chromium on the host.
type Browser struct {
	html      *HTML
	timeout   time.Duration
	userAgent string
}

// NewBrowser creates the headless-browser adapter reusing html extraction
func NewBrowser(htmlAdapter *HTML, cfg Config) *Browser {
	return &Browser{html: htmlAdapter, timeout: cfg.BrowserTimeout, userAgent: cfg.UserAgent}
}

// Fetch renders the listing page and extracts item stubs, then renders each
// article page for detail unless list_only is set
func (a *Browser) Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error) {
	sel := src.AdapterConfig.Selectors
	listURL := sel.ListURL
	if listURL == "" {
		listURL = src.URL
	}

	rendered, err := a.render(ctx, listURL, sel.WaitFor)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, newError(KindParse, fmt.Errorf("parse rendered page %s: %w", listURL, err))
	}

	items, err := a.html.extractList(doc, listURL, sel)
	if err != nil {
		return nil, err
	}

	if sel.ListOnly {
		return items, nil
	}

	for i := range items {
		detail, err := a.FetchDetail(ctx, items[i].ExternalURL, src.AdapterConfig)
		if err != nil {
			lgr.Printf("[WARN] browser detail fetch failed for %s: %v", items[i].ExternalURL, err)
			items[i].DetailError = err.Error()
			continue
		}
		mergeDetail(&items[i], detail)
	}

	return items, nil
}

// FetchDetail renders one article page and runs selector extraction over it
func (a *Browser) FetchDetail(ctx context.Context, pageURL string, cfg domain.AdapterConfig) (*Detail, error) {
	rendered, err := a.render(ctx, pageURL, "")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, newError(KindParse, fmt.Errorf("parse rendered article %s: %w", pageURL, err))
	}

	return a.html.extractDetail(doc, []byte(rendered), pageURL, cfg.Selectors)
}

// render loads a page in headless chrome and returns the rendered html.
// waitFor, when set, delays extraction until the selector is visible so
// client-side-rendered listings have a chance to appear.
func (a *Browser) render(ctx context.Context, pageURL, waitFor string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(a.userAgent),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, a.timeout)
	defer cancelTimeout()

	actions := []chromedp.Action{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
	}
	if waitFor != "" {
		actions = append(actions, chromedp.WaitVisible(waitFor, chromedp.ByQuery))
	}

	var rendered string
	actions = append(actions, chromedp.OuterHTML("html", &rendered))

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return "", newError(KindNetwork, fmt.Errorf("render page %s: %w", pageURL, err))
	}

	return rendered, nil
}
