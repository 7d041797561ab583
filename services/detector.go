package services

import "flatwatch/models"

// Diff returns the listings from batch whose ids are not in known, in the
// batch's original order. Pure set difference by id; repeated ids within the
// batch keep their first sighting only.
func Diff(batch []*models.Listing, known map[string]struct{}) []*models.Listing {
	unseen := make([]*models.Listing, 0)
	inBatch := make(map[string]struct{}, len(batch))

	for _, l := range batch {
		if _, seen := known[l.ID]; seen {
			continue
		}
		if _, dup := inBatch[l.ID]; dup {
			continue
		}
		inBatch[l.ID] = struct{}{}
		unseen = append(unseen, l)
	}
	return unseen
}
