package predicate

import (
	"sort"

	"github.com/roach88/livequery/internal/ir"
	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/schema"
)

// Provider pairs a description with its compiled predicate.
//
// The predicate is compiled once at construction; tables are immutable after
// registration so the result never goes stale, except for association
// targets registered later (see PendingTables).
type Provider struct {
	table string
	desc  D
	pred  queryir.Predicate
}

// NewProvider compiles d against tableName in reg. An unknown table yields a
// provider whose predicate is nil.
func NewProvider(reg *schema.Registry, tableName string, d D) *Provider {
	p := &Provider{table: tableName, desc: d}
	if t, ok := reg.Lookup(tableName); ok {
		p.pred = Compile(t, reg, d)
	}
	return p
}

// Predicate returns the compiled tree, nil meaning "match all".
func (p *Provider) Predicate() queryir.Predicate {
	return p.pred
}

// Table returns the table the description was compiled against.
func (p *Provider) Table() string {
	return p.table
}

// Description returns the source description.
func (p *Provider) Description() D {
	return p.desc
}

// String returns the compact JSON of the description in its original key
// order, or "" when the description compiled to nothing.
func (p *Provider) String() string {
	if p.pred == nil {
		return ""
	}
	out, err := ir.MarshalOrdered(p.desc)
	if err != nil {
		return ""
	}
	return string(out)
}

// Key returns a stable hash identifying table plus description.
func (p *Provider) Key() string {
	key, err := ir.QueryKey(p.table, p.desc)
	if err != nil {
		return ""
	}
	return key
}

// Equal reports whether two providers describe the same query.
func (p *Provider) Equal(other *Provider) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.table == other.table && p.String() == other.String()
}

// PendingTables lists association targets referenced by d that are not yet
// registered, sorted and without duplicates. A query over such a description
// must wait until every listed table is defined.
func PendingTables(reg *schema.Registry, tableName string, d D) []string {
	t, ok := reg.Lookup(tableName)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	collectPending(reg, t, d, seen)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectPending(reg *schema.Registry, t *schema.Table, d D, seen map[string]bool) {
	for _, e := range d {
		switch e.Key {
		case OpAnd, OpOr, OpNot:
			if sub, ok := e.Value.(D); ok {
				collectPending(reg, t, sub, seen)
				continue
			}
			for _, item := range sliceOf(e.Value) {
				if sub, ok := item.(D); ok {
					collectPending(reg, t, sub, seen)
				}
			}
			continue
		}

		col, ok := t.Column(e.Key)
		if !ok || !col.IsVirtual() {
			continue
		}
		sub, ok := e.Value.(D)
		if !ok {
			continue
		}
		target, ok := reg.Lookup(col.Virtual.Name)
		if !ok {
			seen[col.Virtual.Name] = true
			continue
		}
		collectPending(reg, target, sub, seen)
	}
}
