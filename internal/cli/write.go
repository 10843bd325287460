package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/livequery"
)

// WriteResult is the JSON payload of the write commands.
type WriteResult struct {
	Table  string `json:"table"`
	Insert int    `json:"insert"`
	Update int    `json:"update"`
	Delete int    `json:"delete"`
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <table> <rows>",
		Short: "Insert rows",
		Long: `Insert rows given as a JSON or YAML list of objects (a single object
is accepted too). The whole batch is one transaction.

Example:
  livequery insert --db app.db --schema app.cue Task '[{"_id": "a", "title": "Write docs", "rank": 1}]'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, args[0], cmd, func(ctx context.Context, db *livequery.Database, f *OutputFormatter) (livequery.Result, error) {
				rows, err := parseRows(args[1])
				if err != nil {
					return livequery.Result{}, f.Fail(ExitCommandError, ErrCodeWhere, fmt.Sprintf("rows: %v", err))
				}
				return db.Insert(ctx, args[0], rows...)
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> <where> <set>",
		Short: "Update matching rows",
		Long: `Apply a patch to every row matching where. The primary key is never
changed.

Example:
  livequery update --db app.db --schema app.cue Task '{"_id": "a"}' '{"done": true}'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, args[0], cmd, func(ctx context.Context, db *livequery.Database, f *OutputFormatter) (livequery.Result, error) {
				where, err := parseWhereArg(args, 1, f)
				if err != nil {
					return livequery.Result{}, err
				}
				var patch map[string]any
				if err := yaml.Unmarshal([]byte(args[2]), &patch); err != nil {
					return livequery.Result{}, f.Fail(ExitCommandError, ErrCodeWhere, fmt.Sprintf("set: %v", err))
				}
				return db.Update(ctx, args[0], where, patch)
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> [where]",
		Short: "Delete matching rows",
		Long: `Delete every row matching where. Without where, every row is deleted.

Example:
  livequery delete --db app.db --schema app.cue Task '{"done": true}'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, args[0], cmd, func(ctx context.Context, db *livequery.Database, f *OutputFormatter) (livequery.Result, error) {
				where, err := parseWhereArg(args, 1, f)
				if err != nil {
					return livequery.Result{}, err
				}
				return db.Delete(ctx, args[0], where)
			})
		},
	}
}

type writeFunc func(ctx context.Context, db *livequery.Database, f *OutputFormatter) (livequery.Result, error)

// runWrite opens the database, runs write and reports its counts. Errors
// already reported by write pass through untouched.
func runWrite(opts *RootOptions, table string, cmd *cobra.Command, write writeFunc) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	db, err := openDatabase(cmd.Context(), opts, formatter)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := requireTable(db, table, formatter); err != nil {
		return err
	}

	res, err := write(cmd.Context(), db, formatter)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return formatter.Fail(ExitCommandError, ErrCodeQuery, err.Error())
	}

	result := WriteResult{Table: table, Insert: res.Insert, Update: res.Update, Delete: res.Delete}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s: %d inserted, %d updated, %d deleted\n", table, res.Insert, res.Update, res.Delete)
	return nil
}

// parseRows decodes a list of row objects, or a single object.
func parseRows(text string) ([]livequery.Row, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, errors.New("no rows")
	}

	doc := node.Content[0]
	switch doc.Kind {
	case yaml.MappingNode:
		var row map[string]any
		if err := doc.Decode(&row); err != nil {
			return nil, err
		}
		return []livequery.Row{row}, nil
	case yaml.SequenceNode:
		var rows []map[string]any
		if err := doc.Decode(&rows); err != nil {
			return nil, err
		}
		out := make([]livequery.Row, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out, nil
	default:
		return nil, errors.New("expected an object or a list of objects")
	}
}
