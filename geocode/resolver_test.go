package geocode

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"flatwatch/models"
	"flatwatch/utils"
)

type fakeLookup struct {
	calls      int
	components []string
	errs       []error
}

func (f *fakeLookup) Components(_ context.Context, _ string) ([]string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.components, nil
}

func newTestResolver(t *testing.T, lookup Lookup) (*Resolver, *FailCache) {
	t.Helper()
	cache, err := LoadFailCache(filepath.Join(t.TempDir(), "unresolved.yaml"))
	if err != nil {
		t.Fatalf("load cache: %v", err)
	}
	r := NewResolver(lookup, cache, utils.NewLogger())
	r.retry.BaseDelay = 0
	return r, cache
}

func TestResolveExtractsDistrictComponent(t *testing.T) {
	lookup := &fakeLookup{components: []string{"12", "Hauptstraße", "Mitte", "Berlin", "Deutschland"}}
	r, _ := newTestResolver(t, lookup)

	got := r.Resolve(context.Background(), "Hauptstraße 12, Berlin")
	if got != "Mitte" {
		t.Errorf("district: got %q, want %q", got, "Mitte")
	}
}

func TestResolveCachesPermanentFailure(t *testing.T) {
	lookup := &fakeLookup{errs: []error{&LookupError{Address: "nowhere", Reason: "no results"}}}
	r, cache := newTestResolver(t, lookup)

	got := r.Resolve(context.Background(), "nowhere")
	if got != models.UnknownDistrict {
		t.Errorf("got %q, want Unknown", got)
	}
	if !cache.Contains("nowhere") {
		t.Error("permanent failure should be cached")
	}
	if lookup.calls != 1 {
		t.Errorf("permanent failure must not be retried, got %d calls", lookup.calls)
	}

	// Second cycle for the same address: cache hit, no network call, and no
	// duplicate entry.
	got = r.Resolve(context.Background(), "nowhere")
	if got != models.UnknownDistrict {
		t.Errorf("got %q, want Unknown", got)
	}
	if lookup.calls != 1 {
		t.Errorf("cache hit must short-circuit, got %d calls", lookup.calls)
	}
	if cache.Size() != 1 {
		t.Errorf("cache size: got %d, want 1", cache.Size())
	}
}

func TestResolveRetriesTransientThenSucceeds(t *testing.T) {
	transient := errors.New("dial tcp: i/o timeout")
	lookup := &fakeLookup{
		errs:       []error{transient, transient},
		components: []string{"1", "Weg", "Pankow", "Berlin"},
	}
	r, cache := newTestResolver(t, lookup)

	got := r.Resolve(context.Background(), "Weg 1")
	if got != "Pankow" {
		t.Errorf("got %q, want %q", got, "Pankow")
	}
	if lookup.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", lookup.calls)
	}
	if cache.Size() != 0 {
		t.Error("transient failures must not be cached")
	}
}

func TestResolveTransientExhaustionNotCached(t *testing.T) {
	transient := errors.New("connection reset")
	lookup := &fakeLookup{errs: []error{transient, transient, transient}}
	r, cache := newTestResolver(t, lookup)

	got := r.Resolve(context.Background(), "Somewhere 5")
	if got != models.UnknownDistrict {
		t.Errorf("got %q, want Unknown", got)
	}
	if cache.Size() != 0 {
		t.Error("exhausted transient retries must not poison the cache")
	}
}

func TestResolveTooFewComponentsIsPermanent(t *testing.T) {
	lookup := &fakeLookup{components: []string{"Berlin"}}
	r, cache := newTestResolver(t, lookup)

	got := r.Resolve(context.Background(), "Berlin")
	if got != models.UnknownDistrict {
		t.Errorf("got %q, want Unknown", got)
	}
	if !cache.Contains("Berlin") {
		t.Error("short component sequence should be treated as permanent")
	}
}

func TestResolveEmptyAddress(t *testing.T) {
	lookup := &fakeLookup{}
	r, _ := newTestResolver(t, lookup)

	if got := r.Resolve(context.Background(), "   "); got != models.UnknownDistrict {
		t.Errorf("got %q, want Unknown", got)
	}
	if lookup.calls != 0 {
		t.Error("empty address must not hit the network")
	}
}

func TestFailCachePersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unresolved.yaml")

	cache, err := LoadFailCache(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cache.Add("Ghost Street 1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cache.Add("Ghost Street 1"); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	reloaded, err := LoadFailCache(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.Contains("ghost street 1") {
		t.Error("lookup should be case-insensitive after reload")
	}
	if reloaded.Size() != 1 {
		t.Errorf("size after reload: got %d, want 1", reloaded.Size())
	}
}
