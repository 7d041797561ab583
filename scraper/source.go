package scraper

import (
	"context"
	"strings"
)

// RawItem is the narrow capability interface over one source item. Any fetch
// backend can implement it: the pipeline only ever reads text, looks up an
// attribute, or finds sub-elements by selector.
type RawItem interface {
	Text() string
	Attr(name string) string
	Find(selector string) []RawItem
}

// Fetcher yields the current raw items from the listing source. A bounded
// wait expiring surfaces as *models.FetchTimeoutError; the caller reacquires
// and retries rather than aborting.
type Fetcher interface {
	Fetch(ctx context.Context) ([]RawItem, error)
	Close() error
}

// FieldSelectors names the sub-elements the extractor probes on each item.
type FieldSelectors struct {
	// Balcony matches the feature-marker elements; an item has a balcony
	// when one of the matches carries BalconyMarker as its text.
	Balcony       string
	BalconyMarker string
	// Link matches the anchor holding the listing URL in its href.
	Link string
	// Permit matches the marker present on permit-restricted listings.
	Permit string
}

// Item is an in-memory RawItem. The chrome backend materializes the page
// into Items once per fetch; tests build them directly.
type Item struct {
	text  string
	attrs map[string]string
	subs  map[string][]RawItem
}

// NewItem creates an Item with the given text and attributes.
func NewItem(text string, attrs map[string]string) *Item {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	return &Item{
		text:  text,
		attrs: attrs,
		subs:  make(map[string][]RawItem),
	}
}

// AddSub registers a sub-element under the selector it was matched by.
func (i *Item) AddSub(selector string, sub *Item) *Item {
	i.subs[selector] = append(i.subs[selector], sub)
	return i
}

func (i *Item) Text() string { return strings.TrimSpace(i.text) }

func (i *Item) Attr(name string) string { return i.attrs[name] }

func (i *Item) Find(selector string) []RawItem { return i.subs[selector] }
