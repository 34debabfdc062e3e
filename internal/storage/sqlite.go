package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the invocation journal, backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal database in dataDir and runs pending
// migrations. Pass ":memory:" for a journal that lives only as long as the
// process.
func Open(dataDir string) (*Store, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "journal.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: every ":memory:" connection is a separate database,
	// and a single writer avoids "database is locked" on file journals.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that have not been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}
		if err := s.applyMigration(version, "migrations/"+entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(version int, name string) error {
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
		return fmt.Errorf("checking migration %d: %w", version, err)
	}
	if exists > 0 {
		return nil
	}

	content, err := migrationsFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("applying migration %d: %w", version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", version, err)
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Invocations ---

const invocationColumns = `id, created_at, command, transport, args, status, error, duration_us`

// RecordInvocation appends inv to the journal.
func (s *Store) RecordInvocation(inv Invocation) error {
	if inv.ID == "" {
		return errors.New("invocation id is required")
	}
	if inv.Args == "" {
		inv.Args = "{}"
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO invocations (`+invocationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CreatedAt.UTC().UnixNano(), inv.Command, inv.Transport, inv.Args,
		inv.Status, inv.Error, inv.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording invocation %s: %w", inv.ID, err)
	}
	return nil
}

// GetInvocation returns the invocation with the given id.
func (s *Store) GetInvocation(id string) (Invocation, error) {
	row := s.db.QueryRow(`SELECT `+invocationColumns+` FROM invocations WHERE id = ?`, id)
	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Invocation{}, ErrNotFound
	}
	return inv, err
}

// ListInvocations returns invocations of command newest first, or of all
// commands when command is empty.
func (s *Store) ListInvocations(command string, limit, offset int) ([]Invocation, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if command == "" {
		rows, err = s.db.Query(`SELECT `+invocationColumns+` FROM invocations
			ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	} else {
		rows, err = s.db.Query(`SELECT `+invocationColumns+` FROM invocations
			WHERE command = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, command, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, inv)
	}
	return results, rows.Err()
}

// CountInvocations returns the number of journaled invocations of command,
// or of all commands when command is empty.
func (s *Store) CountInvocations(command string) (int, error) {
	var n int
	var err error
	if command == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM invocations`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM invocations WHERE command = ?`, command).Scan(&n)
	}
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(r rowScanner) (Invocation, error) {
	var inv Invocation
	var createdAt, durationUS int64
	if err := r.Scan(&inv.ID, &createdAt, &inv.Command, &inv.Transport, &inv.Args,
		&inv.Status, &inv.Error, &durationUS); err != nil {
		return Invocation{}, err
	}
	inv.CreatedAt = time.Unix(0, createdAt).UTC()
	inv.Duration = time.Duration(durationUS) * time.Microsecond
	return inv, nil
}
