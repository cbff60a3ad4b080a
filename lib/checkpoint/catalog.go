package checkpoint

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoCheckpoints is returned by Catalog.Latest when nothing has been
// recorded.
var ErrNoCheckpoints = errors.New("checkpoint catalogue is empty")

// Entry describes one bundle.
type Entry struct {
	Step      int
	Time, Dt  float64
	Path      string
	Particles int64
	Levels    int
	WrittenAt time.Time
}

// Catalog is a SQLite record of every bundle a run has written.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (creating if needed) the catalogue database in fname.
func OpenCatalog(fname string) (*Catalog, error) {
	db, err := sql.Open("sqlite", fname)
	if err != nil {
		return nil, err
	}
	c, err := NewCatalog(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewCatalog initializes the schema in db and returns a Catalog using it.
func NewCatalog(db *sql.DB) (*Catalog, error) {
	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			path TEXT PRIMARY KEY,
			step INTEGER NOT NULL,
			time REAL NOT NULL,
			dt REAL NOT NULL,
			particles INTEGER NOT NULL,
			levels INTEGER NOT NULL,
			written_at INTEGER NOT NULL
		);`,
	)
	return err
}

// Record adds a bundle, replacing any earlier record with the same path.
func (c *Catalog) Record(e Entry) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO checkpoints (path, step, time, dt, particles, levels, written_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Path, e.Step, e.Time, e.Dt, e.Particles, e.Levels,
		e.WrittenAt.UnixNano(),
	)
	return err
}

// Latest returns the bundle with the highest step, breaking ties by the
// most recent write.
func (c *Catalog) Latest() (Entry, error) {
	row := c.db.QueryRow(`
		SELECT path, step, time, dt, particles, levels, written_at
		FROM checkpoints
		ORDER BY step DESC, written_at DESC
		LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNoCheckpoints
	}
	return e, err
}

// List returns every bundle in step order.
func (c *Catalog) List() ([]Entry, error) {
	rows, err := c.db.Query(`
		SELECT path, step, time, dt, particles, levels, written_at
		FROM checkpoints
		ORDER BY step ASC, written_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var written int64
	err := s.Scan(&e.Path, &e.Step, &e.Time, &e.Dt, &e.Particles, &e.Levels,
		&written)
	if err != nil {
		return Entry{}, err
	}
	e.WrittenAt = time.Unix(0, written)
	return e, nil
}

// Resolve turns the Restart configuration value into a bundle path. The
// value "latest" asks the catalogue, which must then be non-nil.
func Resolve(restart string, cat *Catalog) (string, error) {
	if !strings.EqualFold(strings.TrimSpace(restart), "latest") {
		return restart, nil
	}
	if cat == nil {
		return "", errors.New("Restart = latest needs a CatalogFile")
	}
	e, err := cat.Latest()
	if err != nil {
		return "", err
	}
	return e.Path, nil
}
