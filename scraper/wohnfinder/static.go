package wohnfinder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"flatwatch/models"
	"flatwatch/scraper"
	"flatwatch/utils"
)

// StaticFetcher pulls the page over plain HTTP and parses the served markup.
// Cheaper than the browser backend when the source delivers the listing
// table server-side.
type StaticFetcher struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *utils.Logger
}

// NewStaticFetcher creates a StaticFetcher with the given per-fetch timeout.
func NewStaticFetcher(rawURL string, timeout time.Duration, logger *utils.Logger) *StaticFetcher {
	return &StaticFetcher{
		url:     rawURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch retrieves and parses the page, returning one RawItem per listing
// element.
func (f *StaticFetcher) Fetch(ctx context.Context) ([]scraper.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("wohnfinder: build request: %w", err)
	}
	req.Header.Set("User-Agent", "flatwatch/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &models.FetchTimeoutError{URL: f.url, Wait: f.timeout.String()}
		}
		return nil, fmt.Errorf("wohnfinder: fetch %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wohnfinder: fetch %s: status %d", f.url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wohnfinder: parse page: %w", err)
	}

	base, _ := url.Parse(f.url)

	var items []scraper.RawItem
	doc.Find(ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		items = append(items, &gqItem{sel: sel, base: base})
	})

	f.logger.Debug("[wohnfinder] Fetched %d raw items (static)", len(items))
	return items, nil
}

// Close is a no-op; the static backend holds no long-lived resources.
func (f *StaticFetcher) Close() error { return nil }

// gqItem adapts a goquery selection to the RawItem capability interface.
type gqItem struct {
	sel  *goquery.Selection
	base *url.URL
}

func (i *gqItem) Text() string {
	return flattenText(i.sel.Text())
}

func (i *gqItem) Attr(name string) string {
	val, _ := i.sel.Attr(name)
	if name == "href" && val != "" && i.base != nil {
		if ref, err := url.Parse(val); err == nil {
			return i.base.ResolveReference(ref).String()
		}
	}
	return val
}

func (i *gqItem) Find(selector string) []scraper.RawItem {
	var subs []scraper.RawItem
	i.sel.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		subs = append(subs, &gqItem{sel: sel, base: i.base})
	})
	return subs
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// flattenText joins the non-empty lines of rendered text with the same
// delimiter the source uses inline, matching the browser backend's shape.
func flattenText(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}
