package notify

import (
	"fmt"
	"html"
	"strings"

	"flatwatch/models"
)

// MaxRendered caps how many listings are rendered in full per message. The
// cap bounds message size deterministically: overflow becomes a single
// summary line instead of a mid-template cut.
const MaxRendered = 5

// ComposeMessage renders the passing listings into one HTML message, in the
// order the change detector produced them.
func ComposeMessage(listings []*models.Listing) string {
	rendered := listings
	omitted := 0
	if len(listings) > MaxRendered {
		rendered = listings[:MaxRendered]
		omitted = len(listings) - MaxRendered
	}

	parts := make([]string, 0, len(rendered)+1)
	for _, l := range rendered {
		parts = append(parts, renderListing(l))
	}
	if omitted > 0 {
		parts = append(parts, fmt.Sprintf("and %d more listings were truncated.", omitted))
	}

	return strings.Join(parts, "\n")
}

func renderListing(l *models.Listing) string {
	balcony := "No"
	if l.HasBalcony {
		balcony = "Yes"
	}

	return fmt.Sprintf(
		"New Interesting Listing: \n\n"+
			"Listing ID: %s\n"+
			"Rooms: %s\n"+
			"Size: %s m²\n"+
			"Base Rent: €%s\n"+
			"Balcony: %s\n"+
			"Address: <a href='%s'>%s</a>\n"+
			"District: %s\n"+
			"Link: %s\n",
		html.EscapeString(l.ID),
		formatNumber(l.Rooms),
		formatNumber(l.Size),
		formatNumber(l.Rent),
		balcony,
		mapsLink(l.Address),
		html.EscapeString(l.Address),
		html.EscapeString(l.District),
		html.EscapeString(l.Link),
	)
}

func mapsLink(address string) string {
	query := strings.ReplaceAll(address, " ", "+")
	return "https://www.google.com/maps/search/?api=1&query=" + html.EscapeString(query)
}

func formatNumber(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
