package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/livequery"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	queryFlags
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Table string          `json:"table"`
	Count int             `json:"count"`
	Rows  []livequery.Row `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <table> [where]",
		Short: "Run a query once and print its rows",
		Long: `Run a query against the database once and print the result.

Examples:
  livequery query --db app.db --schema app.cue Task
  livequery query --db app.db --schema app.cue Task '{"done": false}' --order rank --fields title
  livequery query --db app.db --schema app.cue Project --include posts=title --include posts.author`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	opts.register(cmd)
	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	where, err := parseWhereArg(args, 1, formatter)
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	table, err := requireTable(db, args[0], formatter)
	if err != nil {
		return err
	}

	q := opts.build(where)
	rows, err := db.Get(args[0], q).Values(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQuery, err.Error())
	}
	formatter.VerboseLog("%d row(s) from %s", len(rows), args[0])

	if formatter.Format == "json" {
		if rows == nil {
			rows = []livequery.Row{}
		}
		return formatter.Success(QueryResult{Table: args[0], Count: len(rows), Rows: rows})
	}

	columns := append(columnsOf(table, opts.Fields), includeNames(table, q)...)
	if err := formatter.Table(columns, rows); err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "(%d row(s))\n", len(rows))
	return nil
}
