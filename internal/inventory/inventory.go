// Package inventory persists audit data extracted from scanned binaries
// into a local SQLite database, so a fleet of executables can be queried
// for package occurrences without re-reading the binaries.
package inventory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/depstamp/depstamp/pkg/audit"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed inventory.
type Store struct {
	db   *sql.DB
	path string
}

// Scan is one recorded binary.
type Scan struct {
	ID           int64
	Path         string
	ScannedAt    time.Time
	PackageCount int
}

// Occurrence is one package found in one scanned binary.
type Occurrence struct {
	BinaryPath string
	Name       string
	Version    string
	Kind       audit.Kind
}

// Open opens (or creates) the inventory database and brings its schema up
// to date. Use ":memory:" for an in-memory inventory.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create inventory directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping inventory database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveScan records the audit document extracted from a binary, replacing
// any previous scan of the same path.
func (s *Store) SaveScan(binaryPath string, info *audit.Info) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM scans WHERE path = ?`, binaryPath); err != nil {
		return fmt.Errorf("failed to clear previous scan: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO scans (path, scanned_at, package_count) VALUES (?, ?, ?)`,
		binaryPath, time.Now().UTC(), len(info.Packages),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read scan id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO scan_packages
		(scan_id, position, name, version, source_type, source_url, source_commit, kind, root)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare package insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range info.Packages {
		root := 0
		if p.Root {
			root = 1
		}
		if _, err := stmt.Exec(
			scanID, i, p.Name, p.Version.String(),
			string(p.Source.Type), p.Source.URL, p.Source.Commit,
			string(p.Kind), root,
		); err != nil {
			return fmt.Errorf("failed to insert package %q: %w", p.Name, err)
		}
	}

	return tx.Commit()
}

// ListScans returns every recorded scan, most recent first.
func (s *Store) ListScans() ([]Scan, error) {
	rows, err := s.db.Query(
		`SELECT id, path, scanned_at, package_count FROM scans ORDER BY scanned_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var sc Scan
		if err := rows.Scan(&sc.ID, &sc.Path, &sc.ScannedAt, &sc.PackageCount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}

// FindPackage returns every scanned binary containing the named package,
// at any version.
func (s *Store) FindPackage(name string) ([]Occurrence, error) {
	rows, err := s.db.Query(`
		SELECT s.path, p.name, p.version, p.kind
		FROM scan_packages p
		JOIN scans s ON s.id = p.scan_id
		WHERE p.name = ?
		ORDER BY s.path, p.version`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query package %q: %w", name, err)
	}
	defer rows.Close()

	var occ []Occurrence
	for rows.Next() {
		var o Occurrence
		var kind string
		if err := rows.Scan(&o.BinaryPath, &o.Name, &o.Version, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		o.Kind = audit.Kind(kind)
		occ = append(occ, o)
	}
	return occ, rows.Err()
}
