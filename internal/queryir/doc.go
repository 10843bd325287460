// Package queryir defines the compiled, executable form of a live query.
//
// The predicate compiler produces a Predicate tree from a declarative
// description; the SQL backend (package querysql) turns a Select carrying that
// tree into parameterized SQL for the embedded store.
//
//	[description] → [predicate compiler] → [queryir.Select] → [querysql] → SQLite
//
// SEALED INTERFACES:
//
// Predicate is sealed using the marker method pattern. Only types in this
// package implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	    // column <op> literal
//	case And:
//	    // conjunction
//	default:
//	    // impossible - every Predicate type is declared here
//	}
//
// Every leaf references a qualified Column (table + name). Qualification keeps
// association sub-queries (Exists) unambiguous when both tables share column
// names such as "_id".
//
// A nil Predicate means "match all rows". Constructors All and Any collapse
// empty and single-element lists so callers never build degenerate nodes.
package queryir
