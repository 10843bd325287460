package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/livequery/internal/querysql"
	"github.com/roach88/livequery/internal/schema"
)

// Row is one result row: column name to value.
type Row = map[string]any

// ErrUnknownTable is returned for operations on tables never passed to Define.
var ErrUnknownTable = errors.New("unknown table")

// driverSeq makes each Store's driver name unique. Hooks are bound at
// connect time, so every Store registers its own driver instance.
var driverSeq atomic.Uint64

// Store is a SQLite database with table-level change notification.
type Store struct {
	db       *sql.DB
	compiler *querysql.SQLCompiler
	logger   *slog.Logger

	mu     sync.RWMutex
	tables map[string]*schema.Table

	notify *notifier
	regexp *regexpCache
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open creates or opens a SQLite database at the given path.
// Use ":memory:" for a private in-memory database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		compiler: querysql.NewSQLCompiler(),
		logger:   slog.Default(),
		tables:   make(map[string]*schema.Table),
		regexp:   newRegexpCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notify = newNotifier(s.logger)

	driverName := fmt.Sprintf("sqlite3_livequery_%d", driverSeq.Add(1))
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: s.connectHook,
	})

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A single connection keeps hook state coherent and keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s.db = db
	return s, nil
}

// connectHook wires SQL functions and change hooks into every new connection.
func (s *Store) connectHook(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc("regexp", s.regexp.match, true); err != nil {
		return fmt.Errorf("register regexp: %w", err)
	}
	conn.RegisterUpdateHook(func(_ int, _ string, table string, _ int64) {
		s.notify.markDirty(table)
	})
	conn.RegisterCommitHook(func() int {
		s.notify.commit()
		return 0
	})
	conn.RegisterRollbackHook(func() {
		s.notify.rollback()
	})
	return nil
}

// Close closes the database connection and drops all subscriptions.
func (s *Store) Close() error {
	s.notify.clear()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Writes issued through it still notify subscribers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Table returns the metadata of a defined table.
func (s *Store) Table(name string) (*schema.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	return t, ok
}

func (s *Store) table(name string) (*schema.Table, error) {
	t, ok := s.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Subscribe registers fn to run after every commit that modified table.
// fn runs on the goroutine that committed and must not block or touch the
// store. The returned function cancels the subscription; it is idempotent.
func (s *Store) Subscribe(table string, fn func()) (cancel func()) {
	return s.notify.subscribe(table, fn)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
