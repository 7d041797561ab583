package storage

import (
	"time"

	"flatwatch/models"
)

// Catalog is the persisted, append-only, de-duplicated set of every listing
// ever seen. It is the source of truth for "already known".
type Catalog interface {
	// KnownIDs reads the whole catalog and returns the set of persisted ids.
	KnownIDs() (map[string]struct{}, error)
	// Append persists listings exactly once each, assigning ObservedAt at
	// append time. A no-op on empty input.
	Append(listings []*models.Listing) error
	// Exists reports whether the catalog has ever recorded a listing; a
	// fresh catalog triggers the baseline cycle.
	Exists() bool
	// LastUpdated returns when the catalog last changed, if known.
	LastUpdated() (time.Time, bool)
	Close() error
}
