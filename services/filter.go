package services

import "flatwatch/models"

// Criteria is the immutable set of thresholds a new listing must satisfy to
// be worth a notification. Built once at startup; the engine never mutates
// or re-reads ambient state.
type Criteria struct {
	MinSize           float64
	MaxRent           float64
	RequireBalcony    bool
	ExcludedDistricts map[string]struct{}
	PermitRoomLimit   float64
}

// Criterion names, for diagnosability of failed evaluations.
const (
	CriterionSize     = "size"
	CriterionRent     = "rent"
	CriterionBalcony  = "balcony"
	CriterionDistrict = "district"
	CriterionPermit   = "permit"
)

// Passes reports whether the listing satisfies all five criteria.
func Passes(l *models.Listing, c Criteria) bool {
	return len(Evaluate(l, c)) == 0
}

// Evaluate returns the names of the criteria the listing fails, empty when
// it passes. The five checks are independent; their order carries no
// meaning. A listing in the Unknown district is only excluded when the
// sentinel itself is listed.
func Evaluate(l *models.Listing, c Criteria) []string {
	var failed []string

	if l.Size < c.MinSize {
		failed = append(failed, CriterionSize)
	}
	if l.Rent > c.MaxRent {
		failed = append(failed, CriterionRent)
	}
	if l.HasBalcony != c.RequireBalcony {
		failed = append(failed, CriterionBalcony)
	}
	if _, excluded := c.ExcludedDistricts[l.District]; excluded {
		failed = append(failed, CriterionDistrict)
	}
	if l.RequiresPermit && l.Rooms > c.PermitRoomLimit {
		failed = append(failed, CriterionPermit)
	}

	return failed
}
