package services

import (
	"testing"

	"flatwatch/models"
)

func ids(listings []*models.Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

func batchOf(idList ...string) []*models.Listing {
	batch := make([]*models.Listing, len(idList))
	for i, id := range idList {
		batch[i] = &models.Listing{ID: id}
	}
	return batch
}

func TestDiffSetDifferencePreservesOrder(t *testing.T) {
	known := map[string]struct{}{"A1": {}, "C3": {}}

	unseen := Diff(batchOf("A1", "B2", "C3", "D4"), known)

	got := ids(unseen)
	want := []string{"B2", "D4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiffKnownListingNotReDetected(t *testing.T) {
	known := map[string]struct{}{"A1": {}}

	unseen := Diff(batchOf("A1", "B2"), known)

	if len(unseen) != 1 || unseen[0].ID != "B2" {
		t.Errorf("got %v, want exactly [B2]", ids(unseen))
	}
}

func TestDiffEmptyInputs(t *testing.T) {
	if got := Diff(nil, map[string]struct{}{"A1": {}}); len(got) != 0 {
		t.Errorf("empty batch: got %v", ids(got))
	}
	if got := Diff(batchOf("A1"), map[string]struct{}{}); len(got) != 1 {
		t.Errorf("empty known set: got %v", ids(got))
	}
}

func TestDiffDuplicateInBatch(t *testing.T) {
	unseen := Diff(batchOf("X", "X"), map[string]struct{}{})
	if len(unseen) != 1 {
		t.Errorf("duplicate id in batch: got %v, want one entry", ids(unseen))
	}
}
