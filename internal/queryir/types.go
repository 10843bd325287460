package queryir

import "fmt"

// Column is a table-qualified column reference.
type Column struct {
	Table string
	Name  string
}

// Col builds a Column reference.
func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

// String returns "table.name".
func (c Column) String() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// CompareOp is a binary comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota + 1
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
)

// String returns the SQL spelling of the operator.
func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	default:
		return fmt.Sprintf("CompareOp(%d)", int(op))
	}
}

// Predicate is a node of a compiled predicate tree.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Compare: column <op> literal
//   - Between: inclusive range test
//   - In: set membership
//   - Match: regular-expression test (optionally negated)
//   - Null: IS NULL / IS NOT NULL
//   - ColumnCompare: column <op> column (association joins)
//   - Exists: correlated sub-query over an associated table
//   - And, Or, Not: boolean combinators
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Compare represents a column-versus-literal comparison.
//
// Semantics:
//
//	<column> <op> <value>
//
// SQL NULL never compares equal or unequal to anything, so Compare{OpNe}
// excludes rows whose column is NULL.
type Compare struct {
	Column Column
	Op     CompareOp
	Value  any
}

func (Compare) predicateNode() {}

// Between represents an inclusive range test.
//
//	<column> BETWEEN <low> AND <high>
type Between struct {
	Column Column
	Low    any
	High   any
}

func (Between) predicateNode() {}

// In represents set membership. An empty Values list matches nothing.
type In struct {
	Column Column
	Values []any
}

func (In) predicateNode() {}

// Match tests the column against a regular expression (RE2 syntax).
// Negate inverts the result; NULL columns never match, so a negated
// Match selects them.
type Match struct {
	Column  Column
	Pattern string
	Negate  bool
}

func (Match) predicateNode() {}

// Null tests for SQL NULL. Negate turns it into IS NOT NULL.
type Null struct {
	Column Column
	Negate bool
}

func (Null) predicateNode() {}

// ColumnCompare compares two columns, typically across an association.
//
//	<left> <op> <right>
type ColumnCompare struct {
	Left  Column
	Op    CompareOp
	Right Column
}

func (ColumnCompare) predicateNode() {}

// Exists holds when at least one row of Table satisfies Filter.
//
// Filter is usually the association join (a ColumnCompare correlating Table
// with the outer table) conjoined with the nested description compiled
// against Table.
type Exists struct {
	Table  string
	Filter Predicate
}

func (Exists) predicateNode() {}

// And represents a conjunction. Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. Empty Predicates means "always false".
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates its child.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// All conjoins preds, dropping nils. It returns nil for an empty list and the
// sole element for a single-element list.
func All(preds ...Predicate) Predicate {
	kept := compact(preds)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}

// Any disjoins preds, dropping nils, with the same collapsing rules as All.
func Any(preds ...Predicate) Predicate {
	kept := compact(preds)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return Or{Predicates: kept}
	}
}

func compact(preds []Predicate) []Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return kept
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Select is a single-table query with an optional predicate tree.
//
// Semantics:
//
//	SELECT <fields> FROM <from> WHERE <filter>
//	ORDER BY <order...> LIMIT <limit> OFFSET <skip>
//
// Empty Fields selects every physical column. A zero Limit means unlimited.
// Each Include attaches associated rows to every result row.
type Select struct {
	From    string
	Fields  []string
	Filter  Predicate
	OrderBy []Order
	Limit   int
	Skip    int
	Include []Include
}

// Include attaches the rows of an associated table to each outer row.
//
// Join correlates Table with the outer table, usually through a
// ColumnCompare. For every outer row the outer columns of Join are bound to
// the row's values (see Bind), Table is queried with the result, and the
// matching rows are stored under As in insertion order.
type Include struct {
	As      string
	Table   string
	Fields  []string
	Join    Predicate
	Include []Include
}

// Tables lists every table sel reads: From first, then the tables of its
// Exists filters and its includes, without duplicates.
func (sel Select) Tables() []string {
	seen := map[string]bool{sel.From: true}
	out := []string{sel.From}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	var walk func(Predicate)
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case Exists:
			add(pred.Table)
			walk(pred.Filter)
		case And:
			for _, c := range pred.Predicates {
				walk(c)
			}
		case Or:
			for _, c := range pred.Predicates {
				walk(c)
			}
		case Not:
			walk(pred.Predicate)
		}
	}
	var includes func([]Include)
	includes = func(incs []Include) {
		for _, inc := range incs {
			add(inc.Table)
			walk(inc.Join)
			includes(inc.Include)
		}
	}

	walk(sel.Filter)
	includes(sel.Include)
	return out
}
