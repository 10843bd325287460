package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/livequery/internal/queryir"
)

// Assignment is one "column = value" pair of an UPDATE.
type Assignment struct {
	Column string
	Value  any
}

// CompileInsert returns an INSERT statement for one row with the given
// column order. Values are bound positionally in the same order.
func (c *SQLCompiler) CompileInsert(table string, columns []string) (string, error) {
	if table == "" {
		return "", fmt.Errorf("insert without a table")
	}
	if len(columns) == 0 {
		return "INSERT INTO " + QuoteIdent(table) + " DEFAULT VALUES", nil
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdent(col)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table),
		strings.Join(quoted, ", "),
		marks), nil
}

// CompileUpdate returns an UPDATE statement applying set to every row that
// matches filter. A nil filter updates the whole table.
func (c *SQLCompiler) CompileUpdate(table string, set []Assignment, filter queryir.Predicate) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("update without a table")
	}
	if len(set) == 0 {
		return "", nil, fmt.Errorf("update of %s has no assignments", table)
	}

	parts := make([]string, len(set))
	params := make([]any, 0, len(set))
	for i, a := range set {
		parts[i] = QuoteIdent(a.Column) + " = ?"
		params = append(params, a.Value)
	}

	where, whereParams, err := c.CompileWhere(filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile update filter: %w", err)
	}
	params = append(params, whereParams...)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", QuoteIdent(table), strings.Join(parts, ", "), where)
	return sql, params, nil
}

// CompileDelete returns a DELETE statement for rows matching filter.
// A nil filter deletes every row.
func (c *SQLCompiler) CompileDelete(table string, filter queryir.Predicate) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("delete without a table")
	}
	where, params, err := c.CompileWhere(filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile delete filter: %w", err)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", QuoteIdent(table), where), params, nil
}
