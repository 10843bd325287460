// Package selector owns live queries.
//
// A Selector is one query over one table (or a composition of several). It
// executes through a Storage, re-executes whenever storage reports a commit
// on a table it reads, and exposes the results as streams. Every method must run
// on the loop goroutine of the Env it was built from.
package selector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/livequery/internal/diff"
	"github.com/roach88/livequery/internal/engine"
	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/stream"
)

// Row is one result row.
type Row = map[string]any

// Storage is what a Selector needs from the storage engine.
type Storage interface {
	Execute(ctx context.Context, q queryir.Select) ([]Row, error)
	// Subscribe registers fn for every commit that touched table. fn may
	// run on any goroutine.
	Subscribe(table string, fn func()) (cancel func())
}

// Snapshot is one emission of ChangesWithOps: the full result plus the ops
// that turn the previous result into it.
type Snapshot struct {
	Result []Row
	Ops    diff.Ops
}

// Env carries what every Selector of a database shares.
type Env struct {
	storage Storage
	loop    engine.Scheduler
	logger  *slog.Logger
	ids     engine.IDGenerator
	ctx     context.Context
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Env) {
		e.logger = logger
	}
}

// WithIDGenerator sets how selector IDs are minted. Defaults to UUIDv7.
func WithIDGenerator(ids engine.IDGenerator) Option {
	return func(e *Env) {
		e.ids = ids
	}
}

// WithContext sets the context queries execute under.
func WithContext(ctx context.Context) Option {
	return func(e *Env) {
		e.ctx = ctx
	}
}

// NewEnv binds storage to the loop that will run every query.
func NewEnv(storage Storage, loop engine.Scheduler, opts ...Option) *Env {
	e := &Env{
		storage: storage,
		loop:    loop,
		logger:  slog.Default(),
		ids:     engine.UUIDv7Generator{},
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selector is a live query.
//
// Its stream is shared: any number of subscribers ride one storage
// subscription, which is released when the last of them leaves. Emitted
// slices are shared between subscribers and must not be modified.
type Selector struct {
	id     string
	env    *Env
	table  string
	pk     string
	desc   string
	source stream.Source[[]Row]
}

// New creates a selector for q. pk names the identity column used by
// ChangesWithOps; desc is what String reports.
func New(env *Env, q queryir.Select, pk, desc string) *Selector {
	s := &Selector{
		id:    env.ids.Generate(),
		env:   env,
		table: q.From,
		pk:    pk,
		desc:  desc,
	}
	s.source = stream.NewReplay[[]Row](stream.Func[[]Row](func(obs stream.Observer[[]Row]) stream.Cancel {
		return s.live(q, obs)
	}))
	return s
}

// live runs q now and again after every commit on a table it reads, until
// cancelled or until an execution fails.
func (s *Selector) live(q queryir.Select, obs stream.Observer[[]Row]) stream.Cancel {
	active := true
	var unsubscribe func()

	run := func() {
		if !active {
			return
		}
		rows, err := s.env.storage.Execute(s.env.ctx, q)
		if err != nil {
			active = false
			if unsubscribe != nil {
				unsubscribe()
			}
			s.env.logger.Error("selector query failed", "selector", s.id, "table", s.table, "error", err)
			obs.OnError(fmt.Errorf("query %s: %w", s.table, err))
			return
		}
		obs.OnNext(rows)
	}

	tables := q.Tables()
	cancels := make([]func(), 0, len(tables))
	for _, name := range tables {
		name := name
		cancels = append(cancels, s.env.storage.Subscribe(name, func() {
			s.env.loop.Post(func() {
				s.env.logger.Debug("selector notified", "selector", s.id, "table", name)
				run()
			})
		}))
	}
	unsubscribe = func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
	s.env.logger.Debug("selector subscribed", "selector", s.id, "tables", tables)

	run()

	return func() {
		if !active {
			return
		}
		active = false
		unsubscribe()
		s.env.logger.Debug("selector disposed", "selector", s.id, "table", s.table)
	}
}

// derive returns a selector sharing s's identity but emitting src.
func (s *Selector) derive(src stream.Source[[]Row]) *Selector {
	return &Selector{
		id:     s.env.ids.Generate(),
		env:    s.env,
		table:  s.table,
		pk:     s.pk,
		desc:   s.desc,
		source: src,
	}
}

// ID identifies the selector in logs.
func (s *Selector) ID() string {
	return s.id
}

// Table returns the table the selector reads.
func (s *Selector) Table() string {
	return s.table
}

// PrimaryKey returns the identity column used for diffing.
func (s *Selector) PrimaryKey() string {
	return s.pk
}

// String returns the canonical form of the selector's description.
func (s *Selector) String() string {
	return s.desc
}

// Values emits the current result once and completes.
func (s *Selector) Values(obs stream.Observer[[]Row]) stream.Cancel {
	return stream.Take(s.source, 1).Subscribe(obs)
}

// Changes emits the current result, then a new result after every commit
// on the table, until cancelled.
func (s *Selector) Changes(obs stream.Observer[[]Row]) stream.Cancel {
	return s.source.Subscribe(obs)
}

// ChangesWithOps is Changes plus the ops from the previous emission, keyed
// on pk. An empty pk means the selector's own primary key. The first
// emission diffs against an empty result, so it is all inserts.
func (s *Selector) ChangesWithOps(pk string, obs stream.Observer[Snapshot]) stream.Cancel {
	if pk == "" {
		pk = s.pk
	}
	var prev []Row
	return s.source.Subscribe(stream.Observer[[]Row]{
		Next: func(rows []Row) {
			ops := diff.Diff(prev, rows, pk)
			prev = rows
			obs.OnNext(Snapshot{Result: rows, Ops: ops})
		},
		Error:    obs.OnError,
		Complete: obs.OnComplete,
	})
}

// Map returns a selector whose results pass through fn. s is unchanged.
// fn receives shared slices and must return a new one rather than modify
// its input.
func (s *Selector) Map(fn func([]Row) []Row) *Selector {
	return s.derive(stream.Map(s.source, fn))
}
