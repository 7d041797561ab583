package geocode

import (
	"context"
	"errors"
	"strings"
	"time"

	"flatwatch/models"
	"flatwatch/utils"
)

// districtComponent is the fixed offset of the district within the
// address-component sequence the lookup service returns. Positional
// convention tied to the service's response shape.
const districtComponent = 2

// Resolver maps an address to a district name. It never returns an error:
// every unrecoverable condition degrades to models.UnknownDistrict.
type Resolver struct {
	lookup Lookup
	cache  *FailCache
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewResolver wires a Lookup and a FailCache into a Resolver. Transient
// lookup failures are retried twice with a fixed backoff; permanent failures
// are cached so the address is never looked up again.
func NewResolver(lookup Lookup, cache *FailCache, logger *utils.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		cache:  cache,
		retry: &utils.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			Fixed:       true,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Resolve returns the district for the address, or models.UnknownDistrict.
func (r *Resolver) Resolve(ctx context.Context, address string) string {
	if strings.TrimSpace(address) == "" {
		return models.UnknownDistrict
	}

	if r.cache.Contains(address) {
		r.logger.Debug("[geocode] Cache hit (unresolvable): %s", address)
		return models.UnknownDistrict
	}

	var components []string
	var permanent *LookupError

	err := r.retry.Do("geocode-lookup", func() error {
		cs, err := r.lookup.Components(ctx, address)
		if err != nil {
			var le *LookupError
			if errors.As(err, &le) {
				// The service answered; retrying changes nothing.
				permanent = le
				return nil
			}
			// Timeout or other transport trouble: worth another attempt.
			return err
		}
		components = cs
		return nil
	})

	if err != nil {
		// Transient condition outlasted the retries. Not cached: the next
		// poll cycle starts over from scratch.
		r.logger.Warn("[geocode] Giving up on %s for this cycle: %v", address, err)
		return models.UnknownDistrict
	}

	if permanent == nil && len(components) <= districtComponent {
		permanent = &LookupError{Address: address, Reason: "too few address components"}
	}

	if permanent != nil {
		r.logger.Warn("[geocode] Permanent failure, caching: %v", permanent)
		if cacheErr := r.cache.Add(address); cacheErr != nil {
			r.logger.Error("[geocode] Failed to persist cache: %v", cacheErr)
		}
		return models.UnknownDistrict
	}

	return components[districtComponent]
}
