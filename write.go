package livequery

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/livequery/internal/predicate"
	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/store"
)

// Insert writes rows to table in one transaction.
func (db *Database) Insert(ctx context.Context, table string, rows ...Row) (Result, error) {
	return db.store.Insert(ctx, table, rows...)
}

// Update applies patch to every row of table matching where. A where that
// compiles to nothing matches every row. The primary key is never changed.
// A where naming an association whose target is not defined yet fails
// with ErrPendingTable.
func (db *Database) Update(ctx context.Context, table string, where D, patch Row) (Result, error) {
	filter, err := db.compile(table, where)
	if err != nil {
		return Result{}, err
	}
	return db.store.Update(ctx, table, filter, patch)
}

// Delete removes every row of table matching where. A where that compiles
// to nothing matches every row. A where naming an association whose target
// is not defined yet fails with ErrPendingTable.
func (db *Database) Delete(ctx context.Context, table string, where D) (Result, error) {
	filter, err := db.compile(table, where)
	if err != nil {
		return Result{}, err
	}
	return db.store.Delete(ctx, table, filter)
}

func (db *Database) compile(table string, where D) (queryir.Predicate, error) {
	if pending := predicate.PendingTables(db.reg, table, where); len(pending) > 0 {
		return nil, fmt.Errorf("write %s: %w: %s", table, ErrPendingTable, strings.Join(pending, ", "))
	}
	return predicate.NewProvider(db.reg, table, where).Predicate(), nil
}

// Tx groups writes. Live queries see them, and are notified, only at
// Commit.
//
// A Tx holds the database's only connection: live queries cannot refresh
// and other writers wait until it finishes.
type Tx struct {
	db *Database
	tx *store.Tx
}

// Transaction begins a transaction.
func (db *Database) Transaction(ctx context.Context) (*Tx, error) {
	tx, err := db.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{db: db, tx: tx}, nil
}

// Insert is Database.Insert inside the transaction.
func (tx *Tx) Insert(ctx context.Context, table string, rows ...Row) (Result, error) {
	return tx.tx.Insert(ctx, table, rows...)
}

// Update is Database.Update inside the transaction.
func (tx *Tx) Update(ctx context.Context, table string, where D, patch Row) (Result, error) {
	filter, err := tx.db.compile(table, where)
	if err != nil {
		return Result{}, err
	}
	return tx.tx.Update(ctx, table, filter, patch)
}

// Delete is Database.Delete inside the transaction.
func (tx *Tx) Delete(ctx context.Context, table string, where D) (Result, error) {
	filter, err := tx.db.compile(table, where)
	if err != nil {
		return Result{}, err
	}
	return tx.tx.Delete(ctx, table, filter)
}

// Commit applies the transaction and returns the accumulated counts.
func (tx *Tx) Commit() (Result, error) {
	return tx.tx.Commit()
}

// Abort discards the transaction.
func (tx *Tx) Abort() error {
	return tx.tx.Abort()
}
