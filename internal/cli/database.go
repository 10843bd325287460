package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/livequery"
)

// openDatabase opens the configured database and defines every schema.
// Defining is idempotent, so reopening a file database is safe.
func openDatabase(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*livequery.Database, error) {
	if len(opts.Schema) == 0 {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, "no schema given (use --schema or LIVEQUERY_SCHEMA)")
	}

	db, err := livequery.Open(livequery.Config{Path: opts.DB, Logger: opts.logger()})
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, err.Error())
	}

	for _, path := range opts.Schema {
		f.VerboseLog("Defining tables from %s", path)
		if err := db.DefineFile(ctx, path); err != nil {
			db.Close()
			code := ErrCodeCompile
			if errors.Is(err, fs.ErrNotExist) {
				code = ErrCodeNotFound
			}
			return nil, f.Fail(ExitCommandError, code, fmt.Sprintf("schema %s: %v", path, err))
		}
	}
	return db, nil
}

// requireTable fails unless table is defined.
func requireTable(db *livequery.Database, table string, f *OutputFormatter) (*livequery.Table, error) {
	t, ok := db.Table(table)
	if !ok {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("unknown table %q", table))
	}
	return t, nil
}

// parseWhereArg parses the optional where argument at args[i].
func parseWhereArg(args []string, i int, f *OutputFormatter) (livequery.D, error) {
	if len(args) <= i || strings.TrimSpace(args[i]) == "" {
		return nil, nil
	}
	where, err := livequery.ParseWhere([]byte(args[i]))
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeWhere, fmt.Sprintf("where: %v", err))
	}
	return where, nil
}

// queryFlags are the flags shared by query and explain.
type queryFlags struct {
	Fields  []string
	Order   []string
	Limit   int
	Skip    int
	Include []string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&q.Fields, "fields", nil, "columns to return (default all)")
	cmd.Flags().StringSliceVar(&q.Order, "order", nil, "sort columns, prefix with - for descending")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum rows (0 for no limit)")
	cmd.Flags().IntVar(&q.Skip, "skip", 0, "rows to skip")
	cmd.Flags().StringArrayVar(&q.Include, "include", nil, "association to attach, as path[=field,...] (repeatable)")
}

func (q *queryFlags) build(where livequery.D) livequery.Query {
	query := livequery.Query{
		Fields: q.Fields,
		Where:  where,
		Limit:  q.Limit,
		Skip:   q.Skip,
	}
	for _, o := range q.Order {
		if col, ok := strings.CutPrefix(o, "-"); ok {
			query.OrderBy = append(query.OrderBy, livequery.Order{Column: col, Desc: true})
			continue
		}
		query.OrderBy = append(query.OrderBy, livequery.Order{Column: o})
	}
	for _, inc := range q.Include {
		query.Include = addInclude(query.Include, inc)
	}
	return query
}

// addInclude merges one --include value into incs. A dotted path nests:
// "posts.author=name" includes author, with only its name, inside posts.
func addInclude(incs []livequery.Include, value string) []livequery.Include {
	path, fields, _ := strings.Cut(value, "=")
	name, rest, nested := strings.Cut(path, ".")
	if name == "" {
		return incs
	}

	i := slices.IndexFunc(incs, func(inc livequery.Include) bool { return inc.Association == name })
	if i < 0 {
		incs = append(incs, livequery.Include{Association: name})
		i = len(incs) - 1
	}
	switch {
	case nested:
		if fields != "" {
			rest += "=" + fields
		}
		incs[i].Include = addInclude(incs[i].Include, rest)
	case fields != "":
		incs[i].Fields = append(incs[i].Fields, strings.Split(fields, ",")...)
	}
	return incs
}

// includeNames lists the top-level includes of q that name associations
// of t.
func includeNames(t *livequery.Table, q livequery.Query) []string {
	var out []string
	for _, inc := range q.Include {
		if c, ok := t.Column(inc.Association); ok && c.IsVirtual() {
			out = append(out, inc.Association)
		}
	}
	return out
}

// columnsOf lists t's physical columns, narrowed to fields when any of
// them is known. Queries ignore unknown fields the same way.
func columnsOf(t *livequery.Table, fields []string) []string {
	all := t.Physical()
	var out []string
	matched := false
	for _, c := range all {
		if slices.Contains(fields, c) {
			matched = true
			out = append(out, c)
		} else if c == t.PrimaryKey() {
			out = append(out, c)
		}
	}
	if !matched {
		return all
	}
	return out
}
