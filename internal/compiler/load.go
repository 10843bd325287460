package compiler

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/livequery/internal/schema"
)

// SchemaError carries every validation failure of a schema.
type SchemaError struct {
	Errors []ValidationError
}

func (e *SchemaError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("schema invalid: %s", strings.Join(msgs, "; "))
}

// CompileSpecs extracts every table under the top-level "tables" field,
// in declaration order.
func CompileSpecs(v cue.Value) ([]*TableSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, &CompileError{
			Field:   "tables",
			Message: "no tables found",
			Pos:     v.Pos(),
		}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []*TableSpec
	for iter.Next() {
		spec, err := CompileTable(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("tables.%s: %w", iter.Selector().Unquoted(), err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// CompileValue compiles, validates and builds every table in v.
func CompileValue(v cue.Value) ([]*schema.Table, error) {
	specs, err := CompileSpecs(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(specs); len(errs) > 0 {
		return nil, &SchemaError{Errors: errs}
	}
	return Build(specs)
}

// CompileFile compiles a single CUE file.
func CompileFile(path string) ([]*schema.Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	ctx := cuecontext.New()
	return CompileValue(ctx.CompileBytes(src, cue.Filename(path)))
}

// LoadDir builds the CUE package in dir.
func LoadDir(dir string) (cue.Value, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return cue.Value{}, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return cue.Value{}, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// CompileDir compiles every table of the CUE package in dir.
func CompileDir(dir string) ([]*schema.Table, error) {
	v, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return CompileValue(v)
}

// CompilePath compiles a CUE file or a package directory.
func CompilePath(path string) ([]*schema.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("schema path: %w", err)
	}
	if info.IsDir() {
		return CompileDir(path)
	}
	return CompileFile(path)
}
