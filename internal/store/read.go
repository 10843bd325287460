package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/schema"
)

// Execute runs a select and returns its rows in result order.
//
// Object columns are decoded from their JSON text. Returns an empty slice
// (not nil) when nothing matches. Includes run after the outer rows are
// read, one query per outer row and include.
func (s *Store) Execute(ctx context.Context, q queryir.Select) ([]Row, error) {
	t, err := s.table(q.From)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	outer, extra := withJoinColumns(q)
	out, err := s.scan(ctx, t, outer)
	if err != nil {
		return nil, err
	}
	if len(q.Include) == 0 {
		return out, nil
	}

	for _, row := range out {
		for _, inc := range q.Include {
			nested, err := s.Execute(ctx, queryir.Select{
				From:    inc.Table,
				Fields:  inc.Fields,
				Filter:  queryir.Bind(inc.Join, q.From, row),
				Include: inc.Include,
			})
			if err != nil {
				return nil, fmt.Errorf("include %s.%s: %w", q.From, inc.As, err)
			}
			row[inc.As] = nested
		}
		for _, name := range extra {
			delete(row, name)
		}
	}
	return out, nil
}

func (s *Store) scan(ctx context.Context, t *schema.Table, q queryir.Select) ([]Row, error) {
	query, params, err := s.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", q.From, err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.From, err)
	}
	defer rows.Close()

	out, err := scanRows(t, rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", q.From, err)
	}
	return out, nil
}

// withJoinColumns adds to a projected select the outer columns its
// includes bind, and returns the names it added so they can be dropped
// from the result.
func withJoinColumns(q queryir.Select) (queryir.Select, []string) {
	if len(q.Fields) == 0 || len(q.Include) == 0 {
		return q, nil
	}
	have := make(map[string]bool, len(q.Fields))
	for _, f := range q.Fields {
		have[f] = true
	}

	var extra []string
	for _, inc := range q.Include {
		for _, name := range queryir.OuterColumns(inc.Join, q.From) {
			if !have[name] {
				have[name] = true
				extra = append(extra, name)
			}
		}
	}
	if len(extra) == 0 {
		return q, nil
	}
	q.Fields = append(append([]string{}, q.Fields...), extra...)
	return q, extra
}

// scanRows reads every row into a map keyed by column name.
func scanRows(t *schema.Table, rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, name := range cols {
			v, err := decodeValue(t, name, values[i])
			if err != nil {
				return nil, err
			}
			row[name] = v
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeValue converts a driver value to the column's Go representation.
func decodeValue(t *schema.Table, name string, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	col, ok := t.Column(name)
	if !ok || col.Type != schema.Object || v == nil {
		return v, nil
	}

	text, ok := v.(string)
	if !ok {
		return v, nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, fmt.Errorf("column %s: decode object: %w", name, err)
	}
	return decoded, nil
}
