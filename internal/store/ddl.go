package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/livequery/internal/querysql"
	"github.com/roach88/livequery/internal/schema"
)

// sqlTypes maps column types to SQLite declared types. The declared type
// also steers go-sqlite3's decoding: BOOLEAN reads back as bool and
// DATETIME as time.Time.
var sqlTypes = map[schema.Type]string{
	schema.String:   "TEXT",
	schema.Number:   "REAL",
	schema.Integer:  "INTEGER",
	schema.Boolean:  "BOOLEAN",
	schema.DateTime: "DATETIME",
	schema.Object:   "TEXT",
}

// Define creates the table and its indexes if they do not exist and makes
// the table available to Execute and the write methods.
//
// This function is idempotent for the same table definition.
func (s *Store) Define(ctx context.Context, t *schema.Table) error {
	stmts, err := createStatements(t)
	if err != nil {
		return fmt.Errorf("define %s: %w", t.Name, err)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("define %s: %w", t.Name, err)
		}
	}

	s.mu.Lock()
	s.tables[t.Name] = t
	s.mu.Unlock()

	s.logger.Debug("table defined", "table", t.Name, "columns", len(t.Physical()))
	return nil
}

// createStatements returns CREATE TABLE plus one CREATE INDEX per indexed
// column. Virtual columns have no storage.
func createStatements(t *schema.Table) ([]string, error) {
	var defs []string
	var indexes []string

	for _, c := range t.Columns {
		if c.IsVirtual() {
			continue
		}
		typ, ok := sqlTypes[c.Type]
		if !ok {
			return nil, fmt.Errorf("column %s: no storage for type %s", c.Name, c.Type)
		}

		def := querysql.QuoteIdent(c.Name) + " " + typ
		switch {
		case c.PrimaryKey:
			def += " PRIMARY KEY NOT NULL"
		case c.Unique:
			def += " UNIQUE"
		}
		if !c.PrimaryKey && !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)

		if c.Index && !c.PrimaryKey && !c.Unique {
			indexes = append(indexes, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				querysql.QuoteIdent("idx_"+t.Name+"_"+c.Name),
				querysql.QuoteIdent(t.Name),
				querysql.QuoteIdent(c.Name)))
		}
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		querysql.QuoteIdent(t.Name), strings.Join(defs, ", "))
	return append([]string{create}, indexes...), nil
}
