// Package schema holds table metadata and association declarations.
//
// Tables are registered once and never mutated afterwards; the predicate
// compiler and the store read them as static metadata. Associations
// (virtual columns) name another table and carry a function that builds the
// join predicate lazily, so a table may reference a target that is
// registered later.
package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/livequery/internal/queryir"
)

// Type is the storage type of a column.
type Type int

const (
	String Type = iota + 1
	Number
	Integer
	Boolean
	DateTime
	Object
	Relationship
)

var typeNames = map[Type]string{
	String:       "string",
	Number:       "number",
	Integer:      "integer",
	Boolean:      "boolean",
	DateTime:     "datetime",
	Object:       "object",
	Relationship: "relationship",
}

// String returns the lower-case type name used in schema files.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps a schema-file type name to a Type.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown column type %q", name)
}

// Virtual declares an association to another table.
type Virtual struct {
	// Name is the target table.
	Name string

	// Where builds the join predicate given the target table's metadata.
	Where func(target *Table) queryir.Predicate
}

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       Type
	PrimaryKey bool
	Index      bool
	Unique     bool
	Nullable   bool

	// Virtual is set for association columns, which have no physical storage.
	Virtual *Virtual
}

// IsVirtual reports whether the column is an association.
func (c *Column) IsVirtual() bool {
	return c.Virtual != nil
}

// Table is the metadata of one table. Columns keep declaration order.
type Table struct {
	Name    string
	Columns []*Column

	byName map[string]*Column
	pk     string
}

var (
	// ErrNoPrimaryKey is returned for tables without a primary key column.
	ErrNoPrimaryKey = errors.New("table has no primary key")

	// ErrMultiplePrimaryKeys is returned when more than one column is primary.
	ErrMultiplePrimaryKeys = errors.New("table has more than one primary key")
)

// NewTable validates columns and builds a Table.
//
// Exactly one non-virtual column must be the primary key.
func NewTable(name string, columns ...*Column) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table without a name")
	}

	t := &Table{
		Name:    name,
		Columns: columns,
		byName:  make(map[string]*Column, len(columns)),
	}
	for _, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("table %s: column without a name", name)
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %s", name, c.Name)
		}
		if c.Virtual != nil && c.Type == 0 {
			c.Type = Relationship
		}
		t.byName[c.Name] = c
		if c.PrimaryKey && !c.IsVirtual() {
			if t.pk != "" {
				return nil, fmt.Errorf("table %s: %w", name, ErrMultiplePrimaryKeys)
			}
			t.pk = c.Name
		}
	}
	if t.pk == "" {
		return nil, fmt.Errorf("table %s: %w", name, ErrNoPrimaryKey)
	}
	return t, nil
}

// MustTable is NewTable that panics on error, for static declarations.
func MustTable(name string, columns ...*Column) *Table {
	t, err := NewTable(name, columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// PrimaryKey returns the primary key column name.
func (t *Table) PrimaryKey() string {
	return t.pk
}

// Col returns a qualified reference to a column of this table.
func (t *Table) Col(name string) queryir.Column {
	return queryir.Col(t.Name, name)
}

// Physical returns the names of stored (non-virtual) columns in order.
func (t *Table) Physical() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.IsVirtual() {
			out = append(out, c.Name)
		}
	}
	return out
}

// Associations returns the virtual columns in declaration order.
func (t *Table) Associations() []*Column {
	var out []*Column
	for _, c := range t.Columns {
		if c.IsVirtual() {
			out = append(out, c)
		}
	}
	return out
}

// On builds the common equality association: target.foreignField equals
// local.localField.
func On(local, localField, foreignField string) func(target *Table) queryir.Predicate {
	return func(target *Table) queryir.Predicate {
		return queryir.ColumnCompare{
			Left:  target.Col(foreignField),
			Op:    queryir.OpEq,
			Right: queryir.Col(local, localField),
		}
	}
}

// Registry is the set of defined tables.
//
// Safe for concurrent use; tables are immutable once defined.
type Registry struct {
	mu        sync.RWMutex
	tables    map[string]*Table
	order     []string
	listeners []func(*Table)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Table)}
}

// Define registers a table. Redefining a name is an error.
// Listeners registered with OnDefine run after the table is visible.
func (r *Registry) Define(t *Table) error {
	r.mu.Lock()
	if _, exists := r.tables[t.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("table %s already defined", t.Name)
	}
	r.tables[t.Name] = t
	r.order = append(r.order, t.Name)
	listeners := append([]func(*Table){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	return nil
}

// Lookup returns the table registered under name.
// A nil Registry has no tables.
func (r *Registry) Lookup(name string) (*Table, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// Tables returns every table in definition order.
func (r *Registry) Tables() []*Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Table, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}

// Association resolves the virtual column name on table.
// Returns the column and whether the target table is already defined.
func (r *Registry) Association(table, name string) (*Column, bool) {
	t, ok := r.Lookup(table)
	if !ok {
		return nil, false
	}
	c, ok := t.Column(name)
	if !ok || !c.IsVirtual() {
		return nil, false
	}
	_, defined := r.Lookup(c.Virtual.Name)
	return c, defined
}

// OnDefine registers fn to run after every subsequent Define.
func (r *Registry) OnDefine(fn func(*Table)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}
