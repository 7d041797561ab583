package services

import (
	"testing"

	"flatwatch/models"
)

func testCriteria() Criteria {
	return Criteria{
		MinSize:        56,
		MaxRent:        800,
		RequireBalcony: true,
		ExcludedDistricts: map[string]struct{}{
			"Marzahn": {},
		},
		PermitRoomLimit: 2,
	}
}

func passingListing() *models.Listing {
	return &models.Listing{
		ID:         "ok",
		Rooms:      3,
		Size:       60,
		Rent:       750,
		District:   "Mitte",
		HasBalcony: true,
	}
}

func TestPassesAllCriteria(t *testing.T) {
	if !Passes(passingListing(), testCriteria()) {
		t.Error("listing satisfying all criteria should pass")
	}
}

func TestEvaluateSingleFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Listing)
		failure string
	}{
		{"too small", func(l *models.Listing) { l.Size = 40 }, CriterionSize},
		{"too expensive", func(l *models.Listing) { l.Rent = 900 }, CriterionRent},
		{"no balcony", func(l *models.Listing) { l.HasBalcony = false }, CriterionBalcony},
		{"excluded district", func(l *models.Listing) { l.District = "Marzahn" }, CriterionDistrict},
		{"permit with too many rooms", func(l *models.Listing) { l.RequiresPermit = true }, CriterionPermit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := passingListing()
			tt.mutate(l)

			failed := Evaluate(l, testCriteria())
			if len(failed) != 1 || failed[0] != tt.failure {
				t.Errorf("got %v, want exactly [%s]", failed, tt.failure)
			}
			if Passes(l, testCriteria()) {
				t.Error("Passes must agree with Evaluate")
			}
		})
	}
}

func TestRentDominatesOtherCriteria(t *testing.T) {
	// rent=900 against max 800 fails no matter what else holds
	l := passingListing()
	l.Rent = 900
	l.Size = 200
	l.Rooms = 1

	if Passes(l, testCriteria()) {
		t.Error("over-budget listing must never pass")
	}
}

func TestPermitRuleAllowsSmallFlats(t *testing.T) {
	l := passingListing()
	l.RequiresPermit = true
	l.Rooms = 2

	if !Passes(l, testCriteria()) {
		t.Error("permit-restricted listing within the room limit should pass")
	}
}

func TestUnknownDistrictNotExcludedBySentinel(t *testing.T) {
	l := passingListing()
	l.District = models.UnknownDistrict

	if !Passes(l, testCriteria()) {
		t.Error("Unknown district passes unless explicitly listed")
	}

	c := testCriteria()
	c.ExcludedDistricts[models.UnknownDistrict] = struct{}{}
	if Passes(l, c) {
		t.Error("Unknown district is excludable like any other string")
	}
}

func TestEvaluateIsPureAndDeterministic(t *testing.T) {
	l := passingListing()
	l.Size = 10
	l.Rent = 5000
	c := testCriteria()

	first := Evaluate(l, c)
	second := Evaluate(l, c)

	if len(first) != len(second) {
		t.Fatalf("repeated evaluation diverged: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("repeated evaluation diverged at %d: %v vs %v", i, first, second)
		}
	}
	if l.Size != 10 || l.Rent != 5000 {
		t.Error("Evaluate must not mutate the listing")
	}
}
