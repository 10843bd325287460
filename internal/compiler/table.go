package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// TableSpec is a table as declared in a schema file, before validation.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	Pos     token.Pos
}

// ColumnSpec is one declared column. Type holds the declared type name.
type ColumnSpec struct {
	Name       string
	Type       string
	PrimaryKey bool
	Index      bool
	Unique     bool
	Nullable   bool
	Virtual    *VirtualSpec
	Pos        token.Pos
}

// VirtualSpec declares an association: rows of Table whose Foreign column
// equals this table's Local column.
type VirtualSpec struct {
	Table   string
	Local   string
	Foreign string
}

// CompileTable parses one table struct.
//
// The value is the table itself, its label being the table name:
//
//	tables: Task: {
//		columns: {
//			"_id":    {type: "string", primaryKey: true}
//			title:    {type: "string", index: true}
//			ownerId:  {type: "string"}
//			owner:    {type: "relationship", virtual: {table: "User", local: "ownerId", foreign: "_id"}}
//		}
//	}
//
// Labels beginning with an underscore are hidden in CUE and must be quoted.
func CompileTable(v cue.Value) (*TableSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &TableSpec{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, &CompileError{
			Field:   "columns",
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := columnsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		col, err := compileColumn(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Columns = append(spec.Columns, col)
	}

	if len(spec.Columns) == 0 {
		return nil, &CompileError{
			Field:   "columns",
			Message: "at least one column is required",
			Pos:     v.Pos(),
		}
	}
	return spec, nil
}

func compileColumn(name string, v cue.Value) (ColumnSpec, error) {
	col := ColumnSpec{Name: name, Pos: v.Pos()}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return col, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("column %q has no type", name),
			Pos:     v.Pos(),
		}
	}
	typ, err := typeVal.String()
	if err != nil {
		return col, formatCUEError(err)
	}
	col.Type = typ

	flags := []struct {
		label string
		dst   *bool
	}{
		{"primaryKey", &col.PrimaryKey},
		{"index", &col.Index},
		{"unique", &col.Unique},
		{"nullable", &col.Nullable},
	}
	for _, f := range flags {
		fv := v.LookupPath(cue.ParsePath(f.label))
		if !fv.Exists() {
			continue
		}
		b, err := fv.Bool()
		if err != nil {
			return col, formatCUEError(err)
		}
		*f.dst = b
	}

	virtualVal := v.LookupPath(cue.ParsePath("virtual"))
	if virtualVal.Exists() {
		virtual, err := compileVirtual(name, virtualVal)
		if err != nil {
			return col, err
		}
		col.Virtual = virtual
	}

	return col, nil
}

func compileVirtual(column string, v cue.Value) (*VirtualSpec, error) {
	var spec VirtualSpec
	fields := []struct {
		label string
		dst   *string
	}{
		{"table", &spec.Table},
		{"local", &spec.Local},
		{"foreign", &spec.Foreign},
	}
	for _, f := range fields {
		fv := v.LookupPath(cue.ParsePath(f.label))
		if !fv.Exists() {
			return nil, &CompileError{
				Field:   "virtual",
				Message: fmt.Sprintf("association %q needs %s", column, f.label),
				Pos:     v.Pos(),
			}
		}
		s, err := fv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		*f.dst = s
	}
	return &spec, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
