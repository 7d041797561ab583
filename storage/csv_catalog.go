package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"flatwatch/models"
	"flatwatch/utils"
)

// utf8BOM marks the catalog file so spreadsheet tools open it correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// catalogHeader fixes the column order on first write. Appends never change it.
var catalogHeader = []string{
	"listing_id", "rooms", "size", "rent", "address", "district",
	"has_balcony", "requires_permit", "link", "observed_at",
}

// CSVCatalog is the default Catalog backend: one append-only CSV file,
// header row on creation, one row per listing. A single serialized writer
// guards against duplicate-id races.
type CSVCatalog struct {
	path   string
	logger *utils.Logger
	mu     sync.Mutex
}

// NewCSVCatalog creates a CSVCatalog at the given path. The file itself is
// only created once there is something to append.
func NewCSVCatalog(path string, logger *utils.Logger) (*CSVCatalog, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("catalog: create dir: %w", err)
		}
	}
	return &CSVCatalog{path: path, logger: logger}, nil
}

// KnownIDs reads the whole file. Any read failure degrades to an empty set:
// the pipeline fails open toward re-processing, never closed toward silence.
func (c *CSVCatalog) KnownIDs() (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knownIDsLocked(), nil
}

func (c *CSVCatalog) knownIDsLocked() map[string]struct{} {
	known := make(map[string]struct{})

	f, err := os.Open(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("[catalog] Read failed, treating catalog as empty: %v", err)
		}
		return known
	}
	defer f.Close()

	r := csv.NewReader(newBOMReader(f))
	r.FieldsPerRecord = -1

	header := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.logger.Warn("[catalog] Malformed row skipped: %v", err)
			continue
		}
		if header {
			header = false
			continue
		}
		if len(row) > 0 && row[0] != "" {
			known[row[0]] = struct{}{}
		}
	}
	return known
}

// Append adds listings that are not yet in the catalog, stamping ObservedAt.
// Empty input is a no-op and never creates a header-only file. I/O failures
// surface as *models.PersistenceError; the caller's cycle continues and the
// next cycle re-attempts.
func (c *CSVCatalog) Append(listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	known := c.knownIDsLocked()

	fresh := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l.ID == "" {
			c.logger.Warn("[catalog] Refusing to persist listing without id")
			continue
		}
		if _, dup := known[l.ID]; dup {
			continue
		}
		known[l.ID] = struct{}{}
		fresh = append(fresh, l)
	}
	if len(fresh) == 0 {
		return nil
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &models.PersistenceError{Op: "open", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &models.PersistenceError{Op: "stat", Err: err}
	}

	w := csv.NewWriter(f)

	if info.Size() == 0 {
		if _, err := f.Write(utf8BOM); err != nil {
			return &models.PersistenceError{Op: "write bom", Err: err}
		}
		if err := w.Write(catalogHeader); err != nil {
			return &models.PersistenceError{Op: "write header", Err: err}
		}
	}

	now := time.Now()
	for _, l := range fresh {
		l.ObservedAt = now
		if err := w.Write(listingRow(l)); err != nil {
			return &models.PersistenceError{Op: "write row", Err: err}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return &models.PersistenceError{Op: "flush", Err: err}
	}

	c.logger.Info("[catalog] Appended %d listings to %s", len(fresh), c.path)
	return nil
}

// Exists reports whether the catalog file holds any data.
func (c *CSVCatalog) Exists() bool {
	info, err := os.Stat(c.path)
	return err == nil && info.Size() > 0
}

// LastUpdated returns the catalog file's modification time.
func (c *CSVCatalog) LastUpdated() (time.Time, bool) {
	info, err := os.Stat(c.path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Close is a no-op; the file is opened per append.
func (c *CSVCatalog) Close() error { return nil }

func listingRow(l *models.Listing) []string {
	return []string{
		l.ID,
		strconv.FormatFloat(l.Rooms, 'f', -1, 64),
		strconv.FormatFloat(l.Size, 'f', -1, 64),
		strconv.FormatFloat(l.Rent, 'f', -1, 64),
		l.Address,
		l.District,
		strconv.FormatBool(l.HasBalcony),
		strconv.FormatBool(l.RequiresPermit),
		l.Link,
		l.ObservedAt.Format(time.RFC3339),
	}
}

// newBOMReader strips a leading UTF-8 byte-order marker if present.
func newBOMReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil &&
		lead[0] == utf8BOM[0] && lead[1] == utf8BOM[1] && lead[2] == utf8BOM[2] {
		br.Discard(len(utf8BOM))
	}
	return br
}
