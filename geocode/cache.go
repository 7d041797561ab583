package geocode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FailCache records addresses whose geocoding failed permanently. Entries are
// never evicted: the same lookup for the same address will not start
// succeeding, so retrying is pure load on the external service.
//
// The backing file is a plain YAML sequence of address strings so it stays
// hand-editable.
type FailCache struct {
	path string

	mu      sync.Mutex
	entries map[string]struct{}
	order   []string
}

// LoadFailCache reads the cache file, creating an empty cache when the file
// does not exist yet.
func LoadFailCache(path string) (*FailCache, error) {
	c := &FailCache{
		path:    path,
		entries: make(map[string]struct{}),
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("geocode: read cache %s: %w", path, err)
	}

	var addresses []string
	if err := yaml.Unmarshal(payload, &addresses); err != nil {
		return nil, fmt.Errorf("geocode: parse cache %s: %w", path, err)
	}

	for _, addr := range addresses {
		key := cacheKey(addr)
		if key == "" {
			continue
		}
		if _, dup := c.entries[key]; dup {
			continue
		}
		c.entries[key] = struct{}{}
		c.order = append(c.order, strings.TrimSpace(addr))
	}
	return c, nil
}

// Contains reports whether the address is known to be unresolvable.
func (c *FailCache) Contains(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[cacheKey(address)]
	return ok
}

// Add records a permanent failure and persists the cache immediately. Adding
// an address that is already cached is a no-op, so repeated failures across
// cycles never produce duplicate entries.
func (c *FailCache) Add(address string) error {
	key := cacheKey(address)
	if key == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.entries[key]; dup {
		return nil
	}
	c.entries[key] = struct{}{}
	c.order = append(c.order, strings.TrimSpace(address))

	return c.persistLocked()
}

// Size returns the number of cached addresses.
func (c *FailCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// persistLocked rewrites the whole file. The cache stays small (one line per
// permanently failed address) so wholesale rewriting is fine.
func (c *FailCache) persistLocked() error {
	if c.path == "" {
		return nil
	}

	payload, err := yaml.Marshal(c.order)
	if err != nil {
		return fmt.Errorf("geocode: marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("geocode: create cache dir: %w", err)
		}
	}
	if err := os.WriteFile(c.path, payload, 0644); err != nil {
		return fmt.Errorf("geocode: write cache %s: %w", c.path, err)
	}
	return nil
}

func cacheKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
