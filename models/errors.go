package models

import "fmt"

// ExtractionKind classifies why a raw item could not be turned into a Listing.
type ExtractionKind string

const (
	MalformedText ExtractionKind = "malformed_text"
	MissingField  ExtractionKind = "missing_field"
	InvalidNumber ExtractionKind = "invalid_number"
)

// ExtractionError is a per-item failure. The batch continues without the item.
type ExtractionError struct {
	Kind   ExtractionKind
	Detail string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s: %s", e.Kind, e.Detail)
}

// PersistenceError wraps an I/O failure of the catalog. The poll cycle
// proceeds with its in-memory data; the next cycle re-attempts the append.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FetchTimeoutError signals that the source did not produce items within the
// bounded wait. Recoverable: the scheduler reacquires the fetch backend and
// retries.
type FetchTimeoutError struct {
	URL  string
	Wait string
}

func (e *FetchTimeoutError) Error() string {
	return fmt.Sprintf("fetch: timed out after %s waiting for items at %s", e.Wait, e.URL)
}

// TransportError is a per-recipient delivery failure. Remaining recipients
// are still attempted.
type TransportError struct {
	Recipient int64
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("notify: recipient %d: %v", e.Recipient, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
