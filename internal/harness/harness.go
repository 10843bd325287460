package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/livequery"
	"github.com/roach88/livequery/internal/diff"
	"github.com/roach88/livequery/internal/predicate"
	"github.com/roach88/livequery/internal/testutil"
)

// DefaultTimeout bounds a whole scenario run.
const DefaultTimeout = 10 * time.Second

// Option configures Run.
type Option func(*Harness)

// WithTimeout bounds the run. Every blocking read of a watch honors it.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) {
		h.timeout = d
	}
}

// WithLogger routes database logs. Defaults to discarding them.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Harness runs one scenario against a fresh in-memory database.
type Harness struct {
	db      *livequery.Database
	clock   *testutil.TraceClock
	logger  *slog.Logger
	timeout time.Duration
	watches []*watch
}

type watch struct {
	spec   Watch
	it     *livequery.OpsIterator
	tables []string
	last   []diff.Row
	dead   bool
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh in-memory database
//  2. Define every schema file
//  3. Run setup writes
//  4. Open the watches and trace their initial results
//  5. Run flow writes, tracing each write and the emissions it causes
//  6. Evaluate assertions
//
// An error is returned only when the scenario cannot run at all; failed
// expectations and assertions are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		clock:   testutil.NewTraceClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	db, err := livequery.Open(livequery.Config{Logger: h.logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	h.db = db

	for _, path := range scenario.Schema {
		if err := db.DefineFile(ctx, path); err != nil {
			return nil, fmt.Errorf("schema %s: %w", path, err)
		}
	}

	for i, step := range scenario.Setup {
		if _, err := h.write(ctx, step); err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
	}

	result := NewResult()

	if err := h.openWatches(ctx, scenario.Watch, result); err != nil {
		return nil, err
	}
	defer h.stopWatches()

	for i, step := range scenario.Flow {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	for _, w := range h.watches {
		result.Final[w.spec.Name] = w.last
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{DB: db, Ctx: ctx}) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) openWatches(ctx context.Context, specs []Watch, result *Result) error {
	for _, spec := range specs {
		spec := spec
		where, err := parseWhere(&spec.Where)
		if err != nil {
			return fmt.Errorf("watch %s: %w", spec.Name, err)
		}

		q := livequery.Query{
			Fields:  spec.Fields,
			Where:   where,
			Limit:   spec.Limit,
			Skip:    spec.Skip,
			Include: includes(spec.Include),
		}
		for _, o := range spec.OrderBy {
			q.OrderBy = append(q.OrderBy, livequery.Order{Column: o.Column, Desc: o.Desc})
		}

		tables := []string{spec.Table}
		if ex, err := h.db.Explain(spec.Table, q); err == nil {
			tables = ex.Tables
		}

		var keys []string
		if spec.Key != "" {
			keys = append(keys, spec.Key)
		}
		it, err := h.db.Get(spec.Table, q).ChangesWithOps(ctx, keys...)
		if err != nil {
			return fmt.Errorf("watch %s: %w", spec.Name, err)
		}

		w := &watch{spec: spec, it: it, tables: tables}
		h.watches = append(h.watches, w)
		h.logger.Debug("watch opened", "watch", spec.Name, "table", spec.Table)

		if err := h.readEmission(ctx, w, result); err != nil {
			return err
		}
	}
	return nil
}

func includes(specs []IncludeSpec) []livequery.Include {
	if len(specs) == 0 {
		return nil
	}
	out := make([]livequery.Include, len(specs))
	for i, s := range specs {
		out[i] = livequery.Include{Association: s.Association, Fields: s.Fields, Include: includes(s.Include)}
	}
	return out
}

func (h *Harness) stopWatches() {
	for _, w := range h.watches {
		w.it.Stop()
	}
}

// runStep performs one flow write and collects the emissions it causes.
func (h *Harness) runStep(ctx context.Context, index int, step Step, result *Result) error {
	counts, err := h.write(ctx, step)
	seq := h.clock.Next()

	if err != nil {
		result.AddWriteTrace(seq, step, nil, err)
	} else {
		result.AddWriteTrace(seq, step, &counts, nil)
	}

	if msg := checkExpect(index, step, counts, err); msg != "" {
		result.AddError(msg)
	}

	// Writes that touched no rows fire no commit notification.
	if err != nil || counts.Insert+counts.Update+counts.Delete == 0 {
		return nil
	}

	for _, w := range h.watches {
		if w.dead || !slices.Contains(w.tables, step.Table) {
			continue
		}
		if err := h.readEmission(ctx, w, result); err != nil {
			return err
		}
	}
	return nil
}

// readEmission reads the watch's next emission into the trace. A stream
// error is traced and retires the watch; a timeout aborts the run.
func (h *Harness) readEmission(ctx context.Context, w *watch, result *Result) error {
	snap, err := w.it.Next()
	seq := h.clock.Next()

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("watch %s: no emission before timeout: %w", w.spec.Name, err)
		}
		w.dead = true
		result.AddEmissionTrace(seq, w.spec.Name, nil, nil, err)
		return nil
	}

	replayed, applyErr := diff.Apply(w.last, snap.Ops)
	if applyErr != nil {
		result.AddError(fmt.Sprintf("watch %s (seq %d): ops do not apply: %v", w.spec.Name, seq, applyErr))
	} else if !rowsEqual(replayed, snap.Result) {
		result.AddError(fmt.Sprintf("watch %s (seq %d): ops do not replay to the result", w.spec.Name, seq))
	}

	rows := make([]map[string]any, len(snap.Result))
	for i, r := range snap.Result {
		rows[i] = r
	}
	ops := make([]OpEvent, len(snap.Ops))
	for i, op := range snap.Ops {
		ops[i] = OpEvent{
			Kind:    op.Kind.String(),
			Index:   op.Index,
			Value:   op.Value,
			Removed: op.Removed,
		}
	}

	w.last = snap.Result
	result.AddEmissionTrace(seq, w.spec.Name, rows, ops, nil)
	return nil
}

func (h *Harness) write(ctx context.Context, step Step) (Counts, error) {
	var (
		res livequery.Result
		err error
	)

	switch step.Op {
	case OpInsert:
		rows := make([]livequery.Row, len(step.Rows))
		for i, r := range step.Rows {
			rows[i] = r
		}
		res, err = h.db.Insert(ctx, step.Table, rows...)

	case OpUpdate:
		where, perr := parseWhere(&step.Where)
		if perr != nil {
			return Counts{}, perr
		}
		res, err = h.db.Update(ctx, step.Table, where, step.Set)

	case OpDelete:
		where, perr := parseWhere(&step.Where)
		if perr != nil {
			return Counts{}, perr
		}
		res, err = h.db.Delete(ctx, step.Table, where)

	default:
		return Counts{}, fmt.Errorf("unknown op %q", step.Op)
	}

	if err != nil {
		return Counts{}, err
	}
	return Counts{Insert: res.Insert, Update: res.Update, Delete: res.Delete}, nil
}

func checkExpect(index int, step Step, counts Counts, err error) string {
	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{}
	}

	if expect.Error {
		if err == nil {
			return fmt.Sprintf("flow[%d]: %s %s: expected an error", index, step.Op, step.Table)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("flow[%d]: %s %s: %v", index, step.Op, step.Table, err)
	}

	check := []struct {
		name string
		want *int
		got  int
	}{
		{"insert", expect.Insert, counts.Insert},
		{"update", expect.Update, counts.Update},
		{"delete", expect.Delete, counts.Delete},
	}
	for _, c := range check {
		if c.want != nil && *c.want != c.got {
			return fmt.Sprintf("flow[%d]: %s %s: expected %s count %d, got %d", index, step.Op, step.Table, c.name, *c.want, c.got)
		}
	}
	return ""
}

// parseWhere decodes a where node keeping key order. An absent node
// matches every row.
func parseWhere(node *yaml.Node) (livequery.D, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	v, err := predicate.FromNode(node)
	if err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	d, ok := v.(predicate.D)
	if !ok {
		return nil, errors.New("where: expected a mapping")
	}
	return d, nil
}
