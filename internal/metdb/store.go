// Package metdb implements the wind and plume-height databases (C8):
// append-only, time-bucketed, location-tagged stores backed by SQLite,
// with exact/nearest/bilinear spatial lookups and XML import/export.
//
// Grounded on internal/lidar/storage/sqlite's per-domain store package
// shape and internal/db/migrate.go's golang-migrate-over-modernc.org/sqlite
// wiring (see .teacher-seed/migrate.go.seed); this package keeps the same
// migrate-on-open, embedded-migrations idiom.
package metdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store owns a SQLite-backed wind/plume database. Not safe for concurrent
// writers; concurrent readers are safe (spec §5 "shared read-mostly stores").
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates it to the latest schema version. path may be ":memory:" for an
// ephemeral, process-local database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metdb: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("metdb: iofs source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("metdb: sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("metdb: migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("metdb: migrate up: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[metdb migrate] "+format, v...) }
func (migrateLogger) Verbose() bool                          { return false }

// internLocation returns the id of an existing (lat, lon) row, inserting
// one if absent (spec §4.8 "Location is interned against a deduplicated
// list of GPS points"). The sentinel location -1 ("global") never touches
// this table and is handled by callers directly.
func (s *Store) internLocation(lat, lon float64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM locations WHERE lat = ? AND lon = ?`, lat, lon).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("metdb: lookup location: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO locations(lat, lon) VALUES (?, ?)`, lat, lon)
	if err != nil {
		return 0, fmt.Errorf("metdb: insert location: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) locationCoords(id int64) (lat, lon float64, err error) {
	if id < 0 {
		return 0, 0, nil
	}
	err = s.db.QueryRow(`SELECT lat, lon FROM locations WHERE id = ?`, id).Scan(&lat, &lon)
	return lat, lon, err
}
