package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/livequery/internal/queryir"
)

// SQLCompiler compiles queryir trees to parameterized SQL for SQLite.
//
// All literal values are parameterized, never interpolated. Identifiers are
// double-quoted. Every SELECT ends with a tiebreak ORDER BY term so results
// are deterministic across executions.
type SQLCompiler struct {
	// Tiebreak is the final ORDER BY term appended to every SELECT.
	// Defaults to the table's rowid, which yields insertion order.
	Tiebreak string
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Tiebreak: "rowid"}
}

// Compile converts a Select to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Select) (string, []any, error) {
	if result := queryir.Validate(q); !result.Valid {
		return "", nil, fmt.Errorf("invalid select: %s", strings.Join(result.Problems, "; "))
	}

	var b strings.Builder
	var params []any

	b.WriteString("SELECT ")
	b.WriteString(c.compileFields(q.Fields))
	b.WriteString(" FROM ")
	b.WriteString(QuoteIdent(q.From))

	if q.Filter != nil {
		where, whereParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = append(params, whereParams...)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(c.compileOrder(q))

	if q.Limit > 0 || q.Skip > 0 {
		limit := q.Limit
		if limit == 0 {
			limit = -1 // SQLite: negative LIMIT means no upper bound
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		params = append(params, limit, q.Skip)
	}

	return b.String(), params, nil
}

// CompileWhere compiles a predicate alone. A nil predicate compiles to a
// tautology so callers can always append "WHERE <sql>".
func (c *SQLCompiler) CompileWhere(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}
	return c.compilePredicate(p)
}

// compileFields converts the projection list to a column list.
// Empty means every column.
func (c *SQLCompiler) compileFields(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = QuoteIdent(f)
	}
	return strings.Join(parts, ", ")
}

// compileOrder returns the ORDER BY list, always ending in the tiebreak.
func (c *SQLCompiler) compileOrder(q queryir.Select) string {
	parts := make([]string, 0, len(q.OrderBy)+1)
	for _, o := range q.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, QuoteIdent(o.Column)+" "+dir)
	}
	tiebreak := c.Tiebreak
	if tiebreak == "" {
		tiebreak = "rowid"
	}
	parts = append(parts, QuoteIdent(q.From)+"."+tiebreak+" ASC")
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a predicate node to a SQL fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return fmt.Sprintf("%s %s ?", quoteColumn(pred.Column), pred.Op), []any{pred.Value}, nil

	case queryir.Between:
		return fmt.Sprintf("%s BETWEEN ? AND ?", quoteColumn(pred.Column)), []any{pred.Low, pred.High}, nil

	case queryir.In:
		if len(pred.Values) == 0 {
			return "0 = 1", nil, nil
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		params := make([]any, len(pred.Values))
		copy(params, pred.Values)
		return fmt.Sprintf("%s IN (%s)", quoteColumn(pred.Column), marks), params, nil

	case queryir.Match:
		sql := fmt.Sprintf("%s REGEXP ?", quoteColumn(pred.Column))
		if pred.Negate {
			sql = "NOT (" + sql + ")"
		}
		return sql, []any{pred.Pattern}, nil

	case queryir.Null:
		if pred.Negate {
			return quoteColumn(pred.Column) + " IS NOT NULL", nil, nil
		}
		return quoteColumn(pred.Column) + " IS NULL", nil, nil

	case queryir.ColumnCompare:
		return fmt.Sprintf("%s %s %s", quoteColumn(pred.Left), pred.Op, quoteColumn(pred.Right)), nil, nil

	case queryir.Exists:
		sub := "SELECT 1 FROM " + QuoteIdent(pred.Table)
		if pred.Filter == nil {
			return "EXISTS (" + sub + ")", nil, nil
		}
		where, params, err := c.compilePredicate(pred.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile exists %s: %w", pred.Table, err)
		}
		return "EXISTS (" + sub + " WHERE " + where + ")", params, nil

	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")

	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "0 = 1")

	case queryir.Not:
		inner, params, err := c.compilePredicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", params, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileJunction joins children with sep, parenthesized. An empty list
// compiles to the junction's identity element.
func (c *SQLCompiler) compileJunction(children []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(children) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(children))
	var params []any
	for _, child := range children {
		sql, childParams, err := c.compilePredicate(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, childParams...)
	}

	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// QuoteIdent double-quotes a SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteColumn(c queryir.Column) string {
	if c.Table == "" {
		return QuoteIdent(c.Name)
	}
	return QuoteIdent(c.Table) + "." + QuoteIdent(c.Name)
}
