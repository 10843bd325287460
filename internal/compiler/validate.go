package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/livequery/internal/schema"
)

// Validation error codes (E100-E199)
const (
	// Table errors (E101-E109)
	ErrTableNoPrimaryKey       = "E101" // exactly one primary key required
	ErrTableMultiplePrimaryKey = "E102" // more than one primary key
	ErrTableNoColumns          = "E103" // table declares no columns
	ErrInvalidColumnType       = "E104" // unknown type name
	ErrDuplicateName           = "E105" // duplicate table name
	ErrVirtualPrimaryKey       = "E106" // association marked as primary key

	// Association errors (E110-E119)
	ErrVirtualType         = "E110" // association column not typed relationship
	ErrVirtualLocalField   = "E111" // join field missing on the local table
	ErrVirtualForeignField = "E112" // join field missing on a target in the same file
	ErrRelationshipNoJoin  = "E113" // relationship column without virtual
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled tables against schema rules.
// Returns all errors found (does not fail-fast).
//
// Association targets outside specs are allowed: they may be defined
// later, and queries through them wait until they are.
func Validate(specs []*TableSpec) []ValidationError {
	var errs []ValidationError

	byName := make(map[string]*TableSpec, len(specs))
	for i, spec := range specs {
		if _, dup := byName[spec.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tables[%d].name", i),
				Message: fmt.Sprintf("duplicate table name: %q", spec.Name),
				Code:    ErrDuplicateName,
				Line:    spec.Pos.Line(),
			})
			continue
		}
		byName[spec.Name] = spec
	}

	for _, spec := range specs {
		errs = append(errs, validateTable(spec, byName)...)
	}
	return errs
}

func validateTable(spec *TableSpec, byName map[string]*TableSpec) []ValidationError {
	var errs []ValidationError
	field := func(col string) string { return spec.Name + ".columns." + col }

	if len(spec.Columns) == 0 {
		errs = append(errs, ValidationError{
			Field:   spec.Name,
			Message: "at least one column is required",
			Code:    ErrTableNoColumns,
			Line:    spec.Pos.Line(),
		})
	}

	primaryKeys := 0
	for _, col := range spec.Columns {
		typ, err := schema.ParseType(col.Type)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   field(col.Name),
				Message: fmt.Sprintf("invalid type %q, must be one of %s", col.Type, validTypes()),
				Code:    ErrInvalidColumnType,
				Line:    col.Pos.Line(),
			})
		}

		if col.PrimaryKey {
			if col.Virtual != nil {
				errs = append(errs, ValidationError{
					Field:   field(col.Name),
					Message: "an association cannot be the primary key",
					Code:    ErrVirtualPrimaryKey,
					Line:    col.Pos.Line(),
				})
			} else {
				primaryKeys++
			}
		}

		if col.Virtual == nil {
			if err == nil && typ == schema.Relationship {
				errs = append(errs, ValidationError{
					Field:   field(col.Name),
					Message: "relationship columns need a virtual join",
					Code:    ErrRelationshipNoJoin,
					Line:    col.Pos.Line(),
				})
			}
			continue
		}

		if err == nil && typ != schema.Relationship {
			errs = append(errs, ValidationError{
				Field:   field(col.Name),
				Message: fmt.Sprintf("association must have type %q", schema.Relationship),
				Code:    ErrVirtualType,
				Line:    col.Pos.Line(),
			})
		}
		if !hasPhysical(spec, col.Virtual.Local) {
			errs = append(errs, ValidationError{
				Field:   field(col.Name) + ".virtual.local",
				Message: fmt.Sprintf("no column %q on %s", col.Virtual.Local, spec.Name),
				Code:    ErrVirtualLocalField,
				Line:    col.Pos.Line(),
			})
		}
		if target, ok := byName[col.Virtual.Table]; ok && !hasPhysical(target, col.Virtual.Foreign) {
			errs = append(errs, ValidationError{
				Field:   field(col.Name) + ".virtual.foreign",
				Message: fmt.Sprintf("no column %q on %s", col.Virtual.Foreign, target.Name),
				Code:    ErrVirtualForeignField,
				Line:    col.Pos.Line(),
			})
		}
	}

	switch {
	case primaryKeys == 0 && len(spec.Columns) > 0:
		errs = append(errs, ValidationError{
			Field:   spec.Name,
			Message: "exactly one column must be the primary key",
			Code:    ErrTableNoPrimaryKey,
			Line:    spec.Pos.Line(),
		})
	case primaryKeys > 1:
		errs = append(errs, ValidationError{
			Field:   spec.Name,
			Message: fmt.Sprintf("%d primary keys declared, exactly one allowed", primaryKeys),
			Code:    ErrTableMultiplePrimaryKey,
			Line:    spec.Pos.Line(),
		})
	}

	return errs
}

func hasPhysical(spec *TableSpec, name string) bool {
	for _, c := range spec.Columns {
		if c.Name == name && c.Virtual == nil {
			return true
		}
	}
	return false
}

func validTypes() string {
	names := make([]string, 0, 7)
	for _, t := range []schema.Type{
		schema.String, schema.Number, schema.Integer, schema.Boolean,
		schema.DateTime, schema.Object, schema.Relationship,
	} {
		names = append(names, fmt.Sprintf("%q", t.String()))
	}
	return strings.Join(names, ", ")
}

// Build turns validated specs into schema tables.
func Build(specs []*TableSpec) ([]*schema.Table, error) {
	tables := make([]*schema.Table, 0, len(specs))
	for _, spec := range specs {
		cols := make([]*schema.Column, 0, len(spec.Columns))
		for _, c := range spec.Columns {
			typ, err := schema.ParseType(c.Type)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", spec.Name, c.Name, err)
			}
			col := &schema.Column{
				Name:       c.Name,
				Type:       typ,
				PrimaryKey: c.PrimaryKey,
				Index:      c.Index,
				Unique:     c.Unique,
				Nullable:   c.Nullable,
			}
			if c.Virtual != nil {
				col.Virtual = &schema.Virtual{
					Name:  c.Virtual.Table,
					Where: schema.On(spec.Name, c.Virtual.Local, c.Virtual.Foreign),
				}
			}
			cols = append(cols, col)
		}

		t, err := schema.NewTable(spec.Name, cols...)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", spec.Name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}
