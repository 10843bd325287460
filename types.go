package livequery

import (
	"errors"

	"github.com/roach88/livequery/internal/diff"
	"github.com/roach88/livequery/internal/predicate"
	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/schema"
	"github.com/roach88/livequery/internal/selector"
	"github.com/roach88/livequery/internal/store"
	"github.com/roach88/livequery/internal/token"
)

type (
	// Row is one result row: column name to value.
	Row = store.Row

	// D is an ordered query description.
	D = predicate.D

	// E is one key/value of a D.
	E = predicate.E

	// Predicate is a compiled filter, used by association joins.
	Predicate = queryir.Predicate

	// Table is a table definition.
	Table = schema.Table

	// Column is a column definition.
	Column = schema.Column

	// Virtual declares an association column.
	Virtual = schema.Virtual

	// Type is a column type.
	Type = schema.Type

	// Result counts the rows a write touched.
	Result = store.Result

	// Token is the single-use handle returned by Get.
	Token = token.Token

	// Iterator follows a live query.
	Iterator = token.Iterator

	// OpsIterator follows a live query with ops.
	OpsIterator = token.OpsIterator

	// Snapshot is a result plus the ops that produced it.
	Snapshot = selector.Snapshot

	// Op is one step of a diff.
	Op = diff.Op

	// Ops is a replayable diff.
	Ops = diff.Ops
)

// Column types.
const (
	String       = schema.String
	Number       = schema.Number
	Integer      = schema.Integer
	Boolean      = schema.Boolean
	DateTime     = schema.DateTime
	Object       = schema.Object
	Relationship = schema.Relationship
)

// Op kinds.
const (
	OpInsert = diff.Insert
	OpUpdate = diff.Update
	OpDelete = diff.Delete
)

// NewTable validates columns and builds a table definition.
func NewTable(name string, columns ...*Column) (*Table, error) {
	return schema.NewTable(name, columns...)
}

// On builds the usual association join: local.localField equals
// target.foreignField.
func On(local, localField, foreignField string) func(target *Table) Predicate {
	return schema.On(local, localField, foreignField)
}

// ParseWhere decodes a JSON or YAML description, keeping key order.
func ParseWhere(text []byte) (D, error) {
	return predicate.Parse(text)
}

// IsConsumed reports whether err is a second terminal call on a Token.
func IsConsumed(err error) bool {
	return token.IsConsumed(err)
}

// ErrIteratorStopped is returned by Next after Stop.
var ErrIteratorStopped = token.ErrIteratorStopped

// ErrUnknownTable is returned for operations on undefined tables.
var ErrUnknownTable = store.ErrUnknownTable

// ErrPendingTable is returned by Update and Delete when where reaches
// through an association whose target table is not defined yet.
var ErrPendingTable = errors.New("association target not defined")
