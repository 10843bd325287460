package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/livequery/internal/ir"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	queryFlags
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <table> [where]",
		Short: "Show what a query compiles to",
		Long: `Compile a query without running it and print its canonical
description, its cache key and the SQL it runs.

The where argument is a JSON or YAML description; key order is kept.

Examples:
  livequery explain --schema app.cue Task '{"done": false}'
  livequery explain --schema app.cue Task '{"rank": {"$gte": 2}}' --order -rank --limit 10`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args, cmd)
		},
	}

	opts.register(cmd)
	return cmd
}

func runExplain(opts *ExplainOptions, args []string, cmd *cobra.Command) error {
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

	if _, err := requireTable(db, args[0], formatter); err != nil {
		return err
	}

	ex, err := db.Explain(args[0], opts.build(where))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQuery, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(ex)
	}

	params, err := ir.MarshalOrdered(ex.Params)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}
	description := ex.Description
	if description == "" {
		description = "(all rows)"
	}

	w := formatter.Writer
	fmt.Fprintf(w, "table:       %s\n", ex.Table)
	fmt.Fprintf(w, "description: %s\n", description)
	fmt.Fprintf(w, "key:         %s\n", ex.Key)
	fmt.Fprintf(w, "sql:         %s\n", ex.SQL)
	fmt.Fprintf(w, "params:      %s\n", params)
	fmt.Fprintf(w, "reads:       %s\n", strings.Join(ex.Tables, ", "))
	if len(ex.Pending) > 0 {
		fmt.Fprintf(w, "waiting on:  %s\n", strings.Join(ex.Pending, ", "))
	}
	return nil
}
