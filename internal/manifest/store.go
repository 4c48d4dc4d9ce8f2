package manifest

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/upgradekit/upgradekit/internal/utils"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS hashes (
    file_path TEXT PRIMARY KEY,
    calculated_hash TEXT NOT NULL
);
`

// Entry is one manifest record: a forward-slash relative path and the
// lowercase hex SHA-256 of the file's content.
type Entry struct {
	Path        string `db:"file_path"`
	Fingerprint string `db:"calculated_hash"`
}

// Store is a persisted path→fingerprint mapping backed by a single SQLite
// file, so it can be shipped over HTTP and opened independently by the local
// and remote sides.
type Store struct {
	db   *sqlx.DB
	path string
}

// OpenStore opens (creating if necessary) a manifest store at path.
func OpenStore(path string) (*Store, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("manifest: store dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("manifest: open store %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: init store schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the fingerprint recorded for a relative path.
func (s *Store) Get(path string) (string, error) {
	var fingerprint string
	err := s.db.Get(&fingerprint, "SELECT calculated_hash FROM hashes WHERE file_path = ?", path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("manifest: get %q: %w", path, err)
	}
	return fingerprint, nil
}

// Paths returns every relative path in the store.
func (s *Store) Paths() ([]string, error) {
	var paths []string
	if err := s.db.Select(&paths, "SELECT file_path FROM hashes"); err != nil {
		return nil, fmt.Errorf("manifest: list paths: %w", err)
	}
	return paths, nil
}

// All loads the full path→fingerprint mapping. Manifests are orders of
// magnitude smaller than the trees they describe, so this is cheap.
func (s *Store) All() (map[string]string, error) {
	var entries []Entry
	if err := s.db.Select(&entries, "SELECT file_path, calculated_hash FROM hashes"); err != nil {
		return nil, fmt.Errorf("manifest: load entries: %w", err)
	}

	all := make(map[string]string, len(entries))
	for _, e := range entries {
		all[e.Path] = e.Fingerprint
	}
	return all, nil
}

func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM hashes"); err != nil {
		return 0, fmt.Errorf("manifest: count entries: %w", err)
	}
	return count, nil
}

// putBatch inserts a batch of entries in one transaction. The builder is the
// single writer; readers never see a store mid-build because builds target a
// temp file.
func (s *Store) putBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("manifest: begin batch: %w", err)
	}

	stmt, err := tx.Preparex("INSERT OR REPLACE INTO hashes (file_path, calculated_hash) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("manifest: prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Path, e.Fingerprint); err != nil {
			tx.Rollback()
			return fmt.Errorf("manifest: insert %q: %w", e.Path, err)
		}
	}

	return tx.Commit()
}
