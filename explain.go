package livequery

import (
	"fmt"

	"github.com/roach88/livequery/internal/querysql"
)

// Explanation shows what a query compiles to without running it.
type Explanation struct {
	Table string `json:"table"`

	// Description is the canonical form of the where clause. Two queries
	// with the same description share a Key.
	Description string `json:"description"`
	Key         string `json:"key"`

	SQL    string `json:"sql"`
	Params []any  `json:"params"`

	// Tables lists every table whose commits refresh the query, the
	// queried table first.
	Tables []string `json:"tables"`

	// Pending lists association targets that are not defined yet. Such a
	// query waits for them instead of running.
	Pending []string `json:"pending,omitempty"`
}

// Explain compiles q over table. The table must be defined.
func (db *Database) Explain(table string, q Query) (Explanation, error) {
	if _, ok := db.reg.Lookup(table); !ok {
		return Explanation{}, fmt.Errorf("explain %s: %w", table, ErrUnknownTable)
	}

	pending := db.pendingTables(table, q)
	sel, _, provider := db.plan(table, q)

	query, params, err := querysql.NewSQLCompiler().Compile(sel)
	if err != nil {
		return Explanation{}, fmt.Errorf("explain %s: %w", table, err)
	}
	if params == nil {
		params = []any{}
	}

	return Explanation{
		Table:       table,
		Description: provider.String(),
		Key:         provider.Key(),
		SQL:         query,
		Params:      params,
		Tables:      sel.Tables(),
		Pending:     pending,
	}, nil
}
