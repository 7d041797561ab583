package services

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"flatwatch/models"
	"flatwatch/scraper"
	"flatwatch/utils"
)

// fieldDelimiters splits one listing's text block into its ordered fields.
var fieldDelimiters = regexp.MustCompile(`, |\| `)

// itemFormat is one accepted shape of the source's text block. The source
// has drifted between revisions (with and without a trailing district, with
// and without an address), so the accepted shapes are tried in order instead
// of branching ad hoc.
type itemFormat struct {
	fields      int
	exact       bool
	hasAddress  bool
	hasDistrict bool
}

var acceptedFormats = []itemFormat{
	{fields: 5, exact: true, hasAddress: true, hasDistrict: true},
	{fields: 4, hasAddress: true},
	{fields: 3}, // address missing is a soft failure, not a hard one
}

// DistrictResolver maps an address to a district name, degrading to the
// Unknown sentinel on any failure.
type DistrictResolver interface {
	Resolve(ctx context.Context, address string) string
}

// Extractor turns raw source items into structured Listings.
type Extractor struct {
	selectors scraper.FieldSelectors
	resolver  DistrictResolver
	pool      *utils.WorkerPool
	logger    *utils.Logger
}

// NewExtractor creates an Extractor. District resolution for items without
// an embedded district runs through a worker pool; the resolver's own global
// rate limit keeps the aggregate call interval intact.
func NewExtractor(selectors scraper.FieldSelectors, resolver DistrictResolver, maxConcurrency int, logger *utils.Logger) *Extractor {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Extractor{
		selectors: selectors,
		resolver:  resolver,
		pool:      utils.NewWorkerPool(maxConcurrency, 0),
		logger:    logger,
	}
}

// ExtractAll processes a fetched batch. A failing item is logged and
// skipped; the result is the subsequence of successfully extracted Listings
// in fetch order, with districts resolved where needed.
func (e *Extractor) ExtractAll(ctx context.Context, items []scraper.RawItem) []*models.Listing {
	seen := utils.NewStringSet()
	listings := make([]*models.Listing, 0, len(items))
	var unresolved []*models.Listing

	for _, item := range items {
		listing, err := e.extractOne(item)
		if err != nil {
			e.logger.Warn("[extract] Skipping item: %v", err)
			continue
		}
		if !seen.Add(listing.ID) {
			e.logger.Debug("[extract] Duplicate id in batch skipped: %s", listing.ID)
			continue
		}

		if listing.District == models.UnknownDistrict && listing.Address != "" && e.resolver != nil {
			unresolved = append(unresolved, listing)
		}
		listings = append(listings, listing)
	}

	for _, l := range unresolved {
		l := l
		e.pool.Submit(func() {
			l.District = e.resolver.Resolve(ctx, l.Address)
		})
	}
	e.pool.Wait()

	e.logger.Info("[extract] Extracted %d of %d items (%d districts resolved externally)",
		len(listings), len(items), len(unresolved))
	return listings
}

// extractOne parses a single raw item against the accepted formats.
func (e *Extractor) extractOne(item scraper.RawItem) (*models.Listing, error) {
	text := item.Text()
	fields := splitFields(text)

	format, ok := matchFormat(len(fields))
	if !ok {
		return nil, &models.ExtractionError{Kind: models.MalformedText,
			Detail: "expected at least 3 fields in " + strconv.Quote(truncate(text, 120))}
	}

	id := strings.TrimSpace(item.Attr("id"))
	if id == "" {
		return nil, &models.ExtractionError{Kind: models.MissingField, Detail: "item has no id attribute"}
	}

	rooms, err := parseDecimal(fields[0])
	if err != nil {
		return nil, &models.ExtractionError{Kind: models.InvalidNumber, Detail: "rooms: " + fields[0]}
	}
	size, err := parseDecimal(fields[1])
	if err != nil {
		return nil, &models.ExtractionError{Kind: models.InvalidNumber, Detail: "size: " + fields[1]}
	}
	rent, err := parseDecimal(fields[2])
	if err != nil {
		return nil, &models.ExtractionError{Kind: models.InvalidNumber, Detail: "rent: " + fields[2]}
	}

	listing := &models.Listing{
		ID:       id,
		Rooms:    rooms,
		Size:     size,
		Rent:     rent,
		District: models.UnknownDistrict,
	}

	if format.hasAddress {
		listing.Address = strings.TrimSpace(fields[3])
	}
	if format.hasDistrict {
		listing.District = strings.TrimSpace(fields[len(fields)-1])
	}

	listing.HasBalcony = e.hasMarker(item, e.selectors.Balcony, e.selectors.BalconyMarker)
	listing.RequiresPermit = len(item.Find(e.selectors.Permit)) > 0

	if links := item.Find(e.selectors.Link); len(links) > 0 {
		listing.Link = links[0].Attr("href")
	}

	return listing, nil
}

// hasMarker reports whether a sub-element matching the selector carries the
// marker text. Absence means false, never an error.
func (e *Extractor) hasMarker(item scraper.RawItem, selector, marker string) bool {
	for _, sub := range item.Find(selector) {
		if marker == "" || sub.Text() == marker {
			return true
		}
	}
	return false
}

func matchFormat(fieldCount int) (itemFormat, bool) {
	for _, f := range acceptedFormats {
		if f.exact && fieldCount == f.fields {
			return f, true
		}
		if !f.exact && fieldCount >= f.fields {
			return f, true
		}
	}
	return itemFormat{}, false
}

func splitFields(text string) []string {
	var fields []string
	for _, f := range fieldDelimiters.Split(text, -1) {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// parseDecimal reads the leading numeric token of a field, normalizing the
// source's decimal-comma convention and optional thousands separator.
// "1.024,50 € Miete" parses to 1024.5.
func parseDecimal(field string) (float64, error) {
	tokens := strings.Fields(field)
	if len(tokens) == 0 {
		return 0, strconv.ErrSyntax
	}

	token := strings.ReplaceAll(tokens[0], ".", "")
	token = strings.ReplaceAll(token, ",", ".")

	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
