package livequery

import (
	"slices"

	"github.com/roach88/livequery/internal/predicate"
	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/schema"
	"github.com/roach88/livequery/internal/selector"
	"github.com/roach88/livequery/internal/token"
)

// Query selects rows of one table.
type Query struct {
	// Fields to return. Empty means every column. The primary key is
	// always included so results can be diffed.
	Fields []string

	// Where is the filter description. Nil matches every row.
	Where D

	// OrderBy sorts the result; ties fall back to insertion order.
	OrderBy []Order

	// Limit caps the result size. Zero means unlimited.
	Limit int

	// Skip drops the first rows of the result.
	Skip int

	// Include attaches the rows of associated tables to each result row,
	// under the association's name.
	Include []Include
}

// Include selects the rows an association column points at.
type Include struct {
	// Association names a virtual column of the including table.
	Association string

	// Fields of the associated table. Empty means every column.
	Fields []string

	// Include nests further associations of the associated table.
	Include []Include
}

// Order is one sort key.
type Order struct {
	Column string
	Desc   bool
}

// pendingQuery is a query waiting for association targets to be defined.
type pendingQuery struct {
	table string
	query Query
	proxy *selector.Proxy
}

// Get returns a token for q over table. Unknown fields, sort columns and
// includes are ignored. A query on an undefined table fails when consumed.
// A query navigating or including an association whose target is not
// defined yet waits until Define registers it.
func (db *Database) Get(table string, q Query) *Token {
	if missing := db.pendingTables(table, q); len(missing) > 0 {
		return db.getPending(table, q, missing)
	}
	return token.FromSelector(db.loop, db.ctx, db.newSelector(table, q))
}

func (db *Database) getPending(table string, q Query, missing []string) *Token {
	t, _ := db.reg.Lookup(table)
	p := selector.NewProxy(table, t.PrimaryKey())

	db.mu.Lock()
	db.pending = append(db.pending, &pendingQuery{table: table, query: q, proxy: p})
	db.mu.Unlock()

	db.logger.Debug("query waiting for tables", "table", table, "missing", missing)

	// A Define may have landed between PendingTables and registration.
	db.resolvePending(nil)
	return token.FromProxy(db.loop, db.ctx, p)
}

// resolvePending builds selectors for every pending query whose
// association targets are now all defined.
func (db *Database) resolvePending(*schema.Table) {
	db.mu.Lock()
	var ready []*pendingQuery
	kept := db.pending[:0]
	for _, pq := range db.pending {
		if len(db.pendingTables(pq.table, pq.query)) == 0 {
			ready = append(ready, pq)
			continue
		}
		kept = append(kept, pq)
	}
	db.pending = kept
	db.mu.Unlock()

	for _, pq := range ready {
		sel := db.newSelector(pq.table, pq.query)
		proxy := pq.proxy
		db.loop.Post(func() { proxy.Resolve(sel) })
	}
}

// pendingTables lists the undefined association targets q filters on or
// includes, sorted and without duplicates.
func (db *Database) pendingTables(table string, q Query) []string {
	missing := predicate.PendingTables(db.reg, table, q.Where)
	collectIncludes(db.reg, table, q.Include, func(col *schema.Column, defined bool) {
		if !defined {
			missing = append(missing, col.Virtual.Name)
		}
	})
	slices.Sort(missing)
	return slices.Compact(missing)
}

// collectIncludes visits every association column incs name, descending
// only into targets that are defined.
func collectIncludes(reg *schema.Registry, table string, incs []Include, visit func(col *schema.Column, defined bool)) {
	for _, inc := range incs {
		col, defined := reg.Association(table, inc.Association)
		if col == nil {
			continue
		}
		visit(col, defined)
		if defined {
			collectIncludes(reg, col.Virtual.Name, inc.Include, visit)
		}
	}
}

func (db *Database) newSelector(table string, q Query) *selector.Selector {
	sel, pk, provider := db.plan(table, q)
	return selector.New(db.env, sel, pk, provider.String())
}

// plan compiles q into the select a selector runs.
func (db *Database) plan(table string, q Query) (queryir.Select, string, *predicate.Provider) {
	provider := predicate.NewProvider(db.reg, table, q.Where)
	sel := queryir.Select{
		From:   table,
		Filter: provider.Predicate(),
		Limit:  q.Limit,
		Skip:   q.Skip,
	}

	var pk string
	if t, ok := db.reg.Lookup(table); ok {
		pk = t.PrimaryKey()
		sel.Fields = projection(t, q.Fields)
		sel.Include = db.includes(table, q.Include)
		for _, o := range q.OrderBy {
			if c, ok := t.Column(o.Column); ok && !c.IsVirtual() {
				sel.OrderBy = append(sel.OrderBy, queryir.Order{Column: o.Column, Desc: o.Desc})
			}
		}
	}
	return sel, pk, provider
}

// includes compiles the includes whose association targets are defined.
func (db *Database) includes(table string, incs []Include) []queryir.Include {
	var out []queryir.Include
	for _, inc := range incs {
		col, defined := db.reg.Association(table, inc.Association)
		if !defined {
			continue
		}
		target, _ := db.reg.Lookup(col.Virtual.Name)
		var join queryir.Predicate
		if col.Virtual.Where != nil {
			join = col.Virtual.Where(target)
		}
		out = append(out, queryir.Include{
			As:      inc.Association,
			Table:   target.Name,
			Fields:  projection(target, inc.Fields),
			Join:    join,
			Include: db.includes(target.Name, inc.Include),
		})
	}
	return out
}

// projection keeps the known physical fields and adds the primary key.
// Nil means every column.
func projection(t *schema.Table, fields []string) []string {
	var out []string
	hasPK := false
	for _, f := range fields {
		c, ok := t.Column(f)
		if !ok || c.IsVirtual() {
			continue
		}
		if f == t.PrimaryKey() {
			hasPK = true
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	if !hasPK {
		out = append([]string{t.PrimaryKey()}, out...)
	}
	return out
}
