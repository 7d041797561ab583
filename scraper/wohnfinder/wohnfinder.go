package wohnfinder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"flatwatch/models"
	"flatwatch/scraper"
	"flatwatch/utils"
)

// Selectors for the inberlinwohnen Wohnungsfinder page. One <li> per flat;
// feature markers and the listing link live inside it.
const (
	ItemSelector = "li.tb-merkflat"

	balconySelector = "span.hackerl"
	balconyMarker   = "Balkon/Loggia/Terrasse"
	linkSelector    = "a.org-but"
	permitSelector  = "a[title='Wohnberechtigungsschein']"
)

// Selectors returns the field selectors the extractor probes on each item.
func Selectors() scraper.FieldSelectors {
	return scraper.FieldSelectors{
		Balcony:       balconySelector,
		BalconyMarker: balconyMarker,
		Link:          linkSelector,
		Permit:        permitSelector,
	}
}

// ChromeFetcher drives a headless browser against the source page. The page
// builds its listing table client-side, so the static backend only works
// when the server-rendered markup is complete; headless Chrome is the
// default.
type ChromeFetcher struct {
	url     string
	timeout time.Duration
	logger  *utils.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// NewChromeFetcher creates a ChromeFetcher. The browser process is started
// lazily on the first Fetch and reacquired after a timeout.
func NewChromeFetcher(url string, timeout time.Duration, logger *utils.Logger) *ChromeFetcher {
	return &ChromeFetcher{url: url, timeout: timeout, logger: logger}
}

// domNode mirrors the JSON shape produced by the extraction script.
type domNode struct {
	Text  string               `json:"text"`
	Attrs map[string]string    `json:"attrs"`
	Subs  map[string][]domNode `json:"subs"`
}

// Fetch navigates to the source page, waits for listing items up to the
// configured bound, and materializes them into in-memory RawItems. Expiry of
// the bound tears the browser down and reports *models.FetchTimeoutError.
func (f *ChromeFetcher) Fetch(ctx context.Context) ([]scraper.RawItem, error) {
	allocCtx := f.ensureBrowser(ctx)

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	var nodes []domNode
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(f.url),
		chromedp.WaitReady(ItemSelector, chromedp.ByQuery),
		chromedp.Evaluate(extractScript(), &nodes),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.dropBrowser()
			return nil, &models.FetchTimeoutError{URL: f.url, Wait: f.timeout.String()}
		}
		return nil, fmt.Errorf("wohnfinder: fetch %s: %w", f.url, err)
	}

	items := make([]scraper.RawItem, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, buildItem(n))
	}

	f.logger.Debug("[wohnfinder] Fetched %d raw items", len(items))
	return items, nil
}

// Close releases the browser process.
func (f *ChromeFetcher) Close() error {
	f.dropBrowser()
	return nil
}

func (f *ChromeFetcher) ensureBrowser(ctx context.Context) context.Context {
	if f.allocCtx != nil {
		return f.allocCtx
	}

	chromeBin := findChromeBinary()
	if chromeBin != "" {
		f.logger.Info("[wohnfinder] Using browser binary: %s", chromeBin)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	f.allocCtx = silentCtx
	f.cancelAlloc = func() {
		cancelSilent()
		cancelAlloc()
	}
	return f.allocCtx
}

func (f *ChromeFetcher) dropBrowser() {
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
	f.allocCtx = nil
	f.cancelAlloc = nil
}

// extractScript materializes each listing item with the sub-elements the
// extractor will probe. Block boundaries in innerText are flattened to the
// same delimiter the source uses inline.
func extractScript() string {
	subSelectors, _ := json.Marshal([]string{balconySelector, linkSelector, permitSelector})
	itemSelector, _ := json.Marshal(ItemSelector)

	return `
		(function() {
			var subSelectors = ` + string(subSelectors) + `;
			var out = [];
			var nodes = document.querySelectorAll(` + string(itemSelector) + `);
			for (var i = 0; i < nodes.length; i++) {
				var el = nodes[i];
				var subs = {};
				for (var s = 0; s < subSelectors.length; s++) {
					var sel = subSelectors[s];
					var found = el.querySelectorAll(sel);
					if (!found.length) continue;
					var list = [];
					for (var j = 0; j < found.length; j++) {
						var sub = found[j];
						list.push({
							text: (sub.innerText || '').trim(),
							attrs: {
								href: sub.href || '',
								title: sub.getAttribute('title') || ''
							}
						});
					}
					subs[sel] = list;
				}
				out.push({
					text: (el.innerText || '').replace(/\s*\n\s*/g, ', ').trim(),
					attrs: { id: el.id || '' },
					subs: subs
				});
			}
			return out;
		})()
	`
}

func buildItem(n domNode) *scraper.Item {
	item := scraper.NewItem(n.Text, n.Attrs)
	for selector, subs := range n.Subs {
		for _, s := range subs {
			item.AddSub(selector, scraper.NewItem(s.Text, s.Attrs))
		}
	}
	return item
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
