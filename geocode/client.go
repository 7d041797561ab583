package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL points at the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Lookup turns a free-text address into the ordered address-component
// sequence of the best match.
type Lookup interface {
	Components(ctx context.Context, address string) ([]string, error)
}

// LookupError is a permanent geocoding failure for a given address: the
// service answered, but not with a usable result. Retrying the same request
// will not change the outcome.
type LookupError struct {
	Address string
	Reason  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("geocode: %s: %s", e.Reason, e.Address)
}

// Client queries a Nominatim-compatible search endpoint. A mutex-guarded
// minimum interval between requests is enforced globally, independent of how
// many goroutines resolve addresses in parallel.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	userAgent   string
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the search endpoint base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the HTTP client used for lookups.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMinInterval sets the minimum delay between consecutive lookups.
func WithMinInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.minInterval = interval
	}
}

// NewClient creates a Client with sane defaults for the public endpoint.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		userAgent:   "flatwatch/1.0",
		minInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Components issues one search request and returns the comma-separated
// display-name components of the first result. Transport failures bubble up
// as-is (they may be transient); a well-formed answer without a usable
// result comes back as *LookupError.
func (c *Client) Components(ctx context.Context, address string) ([]string, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/search"
	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("q", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LookupError{Address: address, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var results []struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &LookupError{Address: address, Reason: "malformed response"}
	}
	if len(results) == 0 {
		return nil, &LookupError{Address: address, Reason: "no results"}
	}

	parts := strings.Split(results[0].DisplayName, ", ")
	components := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			components = append(components, p)
		}
	}
	if len(components) == 0 {
		return nil, &LookupError{Address: address, Reason: "empty display name"}
	}
	return components, nil
}

func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	now := time.Now()
	next := c.lastRequest.Add(c.minInterval)
	if !next.After(now) {
		c.lastRequest = now
		c.mu.Unlock()
		return nil
	}
	c.lastRequest = next
	c.mu.Unlock()

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
