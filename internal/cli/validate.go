package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/livequery/internal/compiler"
	"github.com/roach88/livequery/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Tables []string                   `json:"tables,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema>",
		Short: "Validate a CUE schema",
		Long: `Compile a CUE schema file or package directory and check every table.

Reports all problems at once: missing or duplicate primary keys, unknown
column types and associations that do not line up with their targets.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Compiling %s", path)
	tables, err := compiler.CompilePath(path)
	if err != nil {
		return outputCompileFailure(formatter, path, err)
	}

	return outputValidateSuccess(formatter, tables)
}

// outputCompileFailure sorts a compile failure into validation errors or a
// command error.
func outputCompileFailure(formatter *OutputFormatter, path string, err error) error {
	var schemaErr *compiler.SchemaError
	if errors.As(err, &schemaErr) {
		return outputValidationErrors(formatter, schemaErr.Errors)
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		ve := compiler.ValidationError{
			Field:   compileErr.Field,
			Message: compileErr.Message,
			Code:    ErrCodeCompile,
		}
		if compileErr.Pos.IsValid() {
			ve.Line = compileErr.Pos.Line()
		}
		return outputValidationErrors(formatter, []compiler.ValidationError{ve})
	}

	if errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("schema not found: %s", path))
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, tables []*schema.Table) error {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Tables: names})
	}

	fmt.Fprintf(formatter.Writer, "✓ Schema valid: %d table(s)\n", len(tables))
	for _, t := range tables {
		formatter.VerboseLog("  %s (%d columns, primary key %s)", t.Name, len(t.Columns), t.PrimaryKey())
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
