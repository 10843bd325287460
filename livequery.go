// Package livequery is a reactive query layer over an embedded SQLite
// database.
//
// Applications define tables, then ask for queries written as ordered
// MongoDB-style descriptions. Every query returns a single-use Token that
// can be read once, followed as a live stream of results, or followed as
// a stream of results plus the ops between them:
//
//	db, err := livequery.Open(livequery.Config{Path: "app.db"})
//	...
//	tok := db.Get("Task", livequery.Query{Where: livequery.D{{Key: "done", Value: false}}})
//	it, err := tok.Changes(ctx)
//	for {
//		rows, err := it.Next()
//		...
//	}
package livequery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/livequery/internal/compiler"
	"github.com/roach88/livequery/internal/engine"
	"github.com/roach88/livequery/internal/schema"
	"github.com/roach88/livequery/internal/selector"
	"github.com/roach88/livequery/internal/store"
)

// Config configures Open.
type Config struct {
	// Path is the SQLite database file. Empty means ":memory:".
	Path string

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Database owns the store, the schema registry and the loop every live
// query runs on. Its methods are safe for concurrent use.
type Database struct {
	store  *store.Store
	reg    *schema.Registry
	loop   *engine.Loop
	env    *selector.Env
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []*pendingQuery
	closed  bool
}

// Open opens the database and starts its loop.
func Open(cfg Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	loop := engine.NewLoop(engine.WithLogger(logger))

	db := &Database{
		store:  st,
		reg:    schema.NewRegistry(),
		loop:   loop,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	db.env = selector.NewEnv(st, loop,
		selector.WithLogger(logger),
		selector.WithContext(ctx),
	)
	db.reg.OnDefine(db.resolvePending)

	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("loop exited", "error", err)
		}
	}()

	return db, nil
}

// Close stops every live query and closes the store. Blocked iterator
// calls return an error satisfying IsStopped.
func (db *Database) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.pending = nil
	db.mu.Unlock()

	db.cancel()
	<-db.loop.Done()
	return db.store.Close()
}

// Define creates tables in the store and registers them. Queries waiting
// on an association to one of these tables are resolved.
func (db *Database) Define(ctx context.Context, tables ...*Table) error {
	for _, t := range tables {
		if err := db.store.Define(ctx, t); err != nil {
			return fmt.Errorf("define %s: %w", t.Name, err)
		}
		if err := db.reg.Define(t); err != nil {
			return fmt.Errorf("define %s: %w", t.Name, err)
		}
	}
	return nil
}

// DefineFile compiles a CUE schema file, or the CUE package in a
// directory, and defines every table in it.
func (db *Database) DefineFile(ctx context.Context, path string) error {
	tables, err := compiler.CompilePath(path)
	if err != nil {
		return err
	}
	return db.Define(ctx, tables...)
}

// Table returns a defined table.
func (db *Database) Table(name string) (*Table, bool) {
	return db.reg.Lookup(name)
}

// IsStopped reports whether err came from a closed Database.
func IsStopped(err error) bool {
	return engine.IsStopped(err)
}
