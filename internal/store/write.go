package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/querysql"
	"github.com/roach88/livequery/internal/schema"
)

// Result reports the outcome of a write: whether it succeeded and how many
// rows it inserted, updated and deleted.
type Result struct {
	Result bool
	Insert int
	Update int
	Delete int
}

func (r Result) add(o Result) Result {
	return Result{
		Result: r.Result && o.Result,
		Insert: r.Insert + o.Insert,
		Update: r.Update + o.Update,
		Delete: r.Delete + o.Delete,
	}
}

// ErrTxDone is returned by operations on a committed or aborted Tx.
var ErrTxDone = errors.New("transaction already finished")

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert writes rows to table in one transaction. Keys that are not
// physical columns of the table are ignored.
func (s *Store) Insert(ctx context.Context, table string, rows ...Row) (Result, error) {
	return s.inTx(ctx, func(tx *Tx) (Result, error) {
		return tx.Insert(ctx, table, rows...)
	})
}

// Update applies patch to every row of table matching where. A nil where
// updates every row. The primary key is never modified.
func (s *Store) Update(ctx context.Context, table string, where queryir.Predicate, patch Row) (Result, error) {
	return s.inTx(ctx, func(tx *Tx) (Result, error) {
		return tx.Update(ctx, table, where, patch)
	})
}

// Delete removes every row of table matching where. A nil where deletes
// every row.
func (s *Store) Delete(ctx context.Context, table string, where queryir.Predicate) (Result, error) {
	return s.inTx(ctx, func(tx *Tx) (Result, error) {
		return tx.Delete(ctx, table, where)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*Tx) (Result, error)) (Result, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	if _, err := fn(tx); err != nil {
		tx.Abort()
		return Result{}, err
	}
	return tx.Commit()
}

// Tx is an explicit transaction. Subscribers are notified once, at Commit,
// for every table the transaction modified.
//
// A Tx holds the store's only connection until it finishes; queries issued
// elsewhere wait for it.
type Tx struct {
	s      *Store
	tx     *sql.Tx
	result Result
	done   bool
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{s: s, tx: tx, result: Result{Result: true}}, nil
}

// Insert writes rows inside the transaction.
func (tx *Tx) Insert(ctx context.Context, table string, rows ...Row) (Result, error) {
	if tx.done {
		return Result{}, ErrTxDone
	}
	t, err := tx.s.table(table)
	if err != nil {
		return Result{}, fmt.Errorf("insert: %w", err)
	}

	res := Result{Result: true}
	for i, row := range rows {
		n, err := tx.s.insertRow(ctx, tx.tx, t, row)
		if err != nil {
			return Result{}, fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
		res.Insert += n
	}
	tx.result = tx.result.add(res)
	return res, nil
}

// Update applies patch inside the transaction.
func (tx *Tx) Update(ctx context.Context, table string, where queryir.Predicate, patch Row) (Result, error) {
	if tx.done {
		return Result{}, ErrTxDone
	}
	t, err := tx.s.table(table)
	if err != nil {
		return Result{}, fmt.Errorf("update: %w", err)
	}

	var set []querysql.Assignment
	for _, name := range t.Physical() {
		v, ok := patch[name]
		if !ok || name == t.PrimaryKey() {
			continue
		}
		enc, err := encodeValue(t, name, v)
		if err != nil {
			return Result{}, fmt.Errorf("update %s: %w", table, err)
		}
		set = append(set, querysql.Assignment{Column: name, Value: enc})
	}
	if len(set) == 0 {
		return Result{Result: true}, nil
	}

	query, params, err := tx.s.compiler.CompileUpdate(table, set, where)
	if err != nil {
		return Result{}, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := execCount(ctx, tx.tx, query, params)
	if err != nil {
		return Result{}, fmt.Errorf("update %s: %w", table, err)
	}

	res := Result{Result: true, Update: n}
	tx.result = tx.result.add(res)
	return res, nil
}

// Delete removes matching rows inside the transaction.
func (tx *Tx) Delete(ctx context.Context, table string, where queryir.Predicate) (Result, error) {
	if tx.done {
		return Result{}, ErrTxDone
	}
	if _, err := tx.s.table(table); err != nil {
		return Result{}, fmt.Errorf("delete: %w", err)
	}

	query, params, err := tx.s.compiler.CompileDelete(table, where)
	if err != nil {
		return Result{}, fmt.Errorf("delete %s: %w", table, err)
	}
	n, err := execCount(ctx, tx.tx, query, params)
	if err != nil {
		return Result{}, fmt.Errorf("delete %s: %w", table, err)
	}

	res := Result{Result: true, Delete: n}
	tx.result = tx.result.add(res)
	return res, nil
}

// Commit makes the transaction's writes visible and notifies subscribers.
// Returns the accumulated counts of every operation in the transaction.
func (tx *Tx) Commit() (Result, error) {
	if tx.done {
		return Result{}, ErrTxDone
	}
	tx.done = true
	if err := tx.tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	return tx.result, nil
}

// Abort discards the transaction. Subscribers are not notified.
func (tx *Tx) Abort() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	if err := tx.tx.Rollback(); err != nil {
		return fmt.Errorf("abort: %w", err)
	}
	return nil
}

func (s *Store) insertRow(ctx context.Context, db execer, t *schema.Table, row Row) (int, error) {
	var cols []string
	var values []any
	for _, name := range t.Physical() {
		v, ok := row[name]
		if !ok {
			continue
		}
		enc, err := encodeValue(t, name, v)
		if err != nil {
			return 0, err
		}
		cols = append(cols, name)
		values = append(values, enc)
	}

	query, err := s.compiler.CompileInsert(t.Name, cols)
	if err != nil {
		return 0, err
	}
	return execCount(ctx, db, query, values)
}

// encodeValue prepares a value for binding. Object columns are stored as
// JSON text.
func encodeValue(t *schema.Table, name string, v any) (any, error) {
	col, ok := t.Column(name)
	if !ok || col.Type != schema.Object || v == nil {
		return v, nil
	}
	text, err := ir.MarshalOrdered(v)
	if err != nil {
		return nil, fmt.Errorf("column %s: encode object: %w", name, err)
	}
	return string(text), nil
}

func execCount(ctx context.Context, db execer, query string, params []any) (int, error) {
	res, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
