package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/simcore/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version.
//
//	1: models, runs, ticks, checkpoints
const schemaVersion = 1

const defaultBusyTimeout = 5 * time.Second

// Store is the SQLite run log: models, runs, their ticks and state
// checkpoints.
type Store struct {
	db *sql.DB
}

type openConfig struct {
	busyTimeout time.Duration
	logger      *slog.Logger
}

// Option configures Open.
type Option func(*openConfig)

// WithBusyTimeout sets how long a writer waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *openConfig) { c.busyTimeout = d }
}

// WithLogger sets the logger for schema setup.
func WithLogger(l *slog.Logger) Option {
	return func(c *openConfig) { c.logger = l }
}

type pragma struct {
	name  string
	value string
	// want is what reading the pragma back returns, if it differs from value.
	want string
}

func (p pragma) expected() string {
	if p.want != "" {
		return p.want
	}
	return p.value
}

func pragmas(c openConfig) []pragma {
	return []pragma{
		{name: "journal_mode", value: "WAL", want: "wal"},
		{name: "synchronous", value: "NORMAL", want: "1"},
		{name: "busy_timeout", value: strconv.FormatInt(c.busyTimeout.Milliseconds(), 10)},
		{name: "foreign_keys", value: "ON", want: "1"},
	}
}

// Open opens the database at path, creating it and its schema if needed.
// ":memory:" opens a private in-memory database. Opening an existing
// database again is safe.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := openConfig{busyTimeout: defaultBusyTimeout, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := setup(db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func setup(db *sql.DB, cfg openConfig) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, p := range pragmas(cfg) {
		if _, err := db.Exec("PRAGMA " + p.name + " = " + p.value); err != nil {
			return fmt.Errorf("set pragma %s: %w", p.name, err)
		}
	}
	return migrate(db, cfg.logger)
}

// migrate applies the schema and records its version. A database written
// by a newer schema is refused.
func migrate(db *sql.DB, logger *slog.Logger) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case version > schemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	case version < schemaVersion:
		logger.Debug("applying schema", "from", version, "to", schemaVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.Exec("PRAGMA user_version = " + strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// checkPragma reads a pragma back and compares it with want.
func (s *Store) checkPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s = %q, want %q", name, got, want)
	}
	return nil
}
