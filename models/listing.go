package models

import "time"

// UnknownDistrict is the sentinel district for listings whose area could not
// be determined. It is a normal string value as far as filtering is
// concerned: listings carrying it are only excluded when the sentinel itself
// appears in the excluded-district set.
const UnknownDistrict = "Unknown"

// Listing is one structured record derived from a source item.
type Listing struct {
	ID             string
	Rooms          float64
	Size           float64
	Rent           float64
	Address        string
	District       string
	HasBalcony     bool
	RequiresPermit bool
	Link           string

	// ObservedAt is assigned by the catalog at append time, not during
	// extraction, so re-extracting the same raw item stays idempotent.
	ObservedAt time.Time
}

// DispatchResult summarizes one dispatch call per recipient.
type DispatchResult struct {
	Delivered []int64
	Failed    map[int64]error
}

// OK reports whether every recipient received the message.
func (r DispatchResult) OK() bool {
	return len(r.Failed) == 0
}
