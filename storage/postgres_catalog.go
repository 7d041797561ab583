package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"flatwatch/models"
	"flatwatch/utils"
)

// PostgresCatalog is the alternate Catalog backend with the same append-only
// semantics as the CSV file: a unique listing id, no updates, no deletes.
type PostgresCatalog struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresCatalog opens a connection, runs schema migration, and returns
// a ready-to-use catalog.
func NewPostgresCatalog(dsn string, logger *utils.Logger) (*PostgresCatalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pc := &PostgresCatalog{db: db, logger: logger}
	if err := pc.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pc, nil
}

func (pc *PostgresCatalog) migrate() error {
	_, err := pc.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			listing_id      TEXT PRIMARY KEY,
			rooms           NUMERIC(6,2)  NOT NULL DEFAULT 0,
			size            NUMERIC(8,2)  NOT NULL DEFAULT 0,
			rent            NUMERIC(10,2) NOT NULL DEFAULT 0,
			address         TEXT          NOT NULL DEFAULT '',
			district        TEXT          NOT NULL DEFAULT 'Unknown',
			has_balcony     BOOLEAN       NOT NULL DEFAULT FALSE,
			requires_permit BOOLEAN       NOT NULL DEFAULT FALSE,
			link            TEXT          NOT NULL DEFAULT '',
			observed_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_district ON listings(district);
		CREATE INDEX IF NOT EXISTS idx_listings_observed ON listings(observed_at);
	`)
	return err
}

// KnownIDs returns every persisted listing id. A query failure degrades to
// an empty set, same as the CSV backend: fail open toward re-processing.
func (pc *PostgresCatalog) KnownIDs() (map[string]struct{}, error) {
	known := make(map[string]struct{})

	rows, err := pc.db.Query(`SELECT listing_id FROM listings`)
	if err != nil {
		pc.logger.Warn("[catalog] Read failed, treating catalog as empty: %v", err)
		return known, nil
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			pc.logger.Warn("[catalog] Bad row skipped: %v", err)
			continue
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// Append batch-inserts listings; ids already present are left untouched.
func (pc *PostgresCatalog) Append(listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	now := time.Now()

	const cols = 10
	valueStrings := make([]string, 0, len(listings))
	valueArgs := make([]interface{}, 0, len(listings)*cols)

	n := 0
	for _, l := range listings {
		if l.ID == "" {
			pc.logger.Warn("[catalog] Refusing to persist listing without id")
			continue
		}
		l.ObservedAt = now
		base := n * cols
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		valueArgs = append(valueArgs,
			l.ID, l.Rooms, l.Size, l.Rent, l.Address, l.District,
			l.HasBalcony, l.RequiresPermit, l.Link, l.ObservedAt)
		n++
	}
	if n == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO listings
			(listing_id, rooms, size, rent, address, district,
			 has_balcony, requires_permit, link, observed_at)
		VALUES %s
		ON CONFLICT (listing_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := pc.db.Exec(query, valueArgs...); err != nil {
		return &models.PersistenceError{Op: "insert", Err: err}
	}

	pc.logger.Info("[catalog] Appended %d listings to postgres", n)
	return nil
}

// Exists reports whether any listing has ever been recorded.
func (pc *PostgresCatalog) Exists() bool {
	var exists bool
	if err := pc.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM listings)`).Scan(&exists); err != nil {
		return false
	}
	return exists
}

// LastUpdated returns the newest observed_at in the catalog.
func (pc *PostgresCatalog) LastUpdated() (time.Time, bool) {
	var last sql.NullTime
	if err := pc.db.QueryRow(`SELECT MAX(observed_at) FROM listings`).Scan(&last); err != nil {
		return time.Time{}, false
	}
	return last.Time, last.Valid
}

func (pc *PostgresCatalog) Close() error {
	return pc.db.Close()
}
