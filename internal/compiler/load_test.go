package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const todoSchema = `
tables: {
	User: columns: {
		"_id": {type: "string", primaryKey: true}
		name:  {type: "string"}
	}
	Task: columns: {
		"_id":   {type: "string", primaryKey: true}
		title:   {type: "string"}
		rank:    {type: "integer", index: true}
		ownerId: {type: "string"}
		owner:   {type: "relationship", virtual: {table: "User", local: "ownerId", foreign: "_id"}}
	}
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompileValue(t *testing.T) {
	v := cuecontext.New().CompileString(todoSchema)

	tables, err := CompileValue(v)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "User", tables[0].Name)
	assert.Equal(t, "Task", tables[1].Name)
	assert.Len(t, tables[1].Associations(), 1)
}

func TestCompileValueNoTables(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)

	_, err := CompileValue(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables found")
}

func TestCompileValueSchemaError(t *testing.T) {
	v := cuecontext.New().CompileString(`
		tables: A: columns: {
			x: {type: "string"}
		}
	`)

	_, err := CompileValue(v)
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Errors, 1)
	assert.Equal(t, ErrTableNoPrimaryKey, schemaErr.Errors[0].Code)
	assert.Contains(t, err.Error(), "schema invalid")
}

func TestCompileValueNamesFailingTable(t *testing.T) {
	v := cuecontext.New().CompileString(`tables: Broken: {}`)

	_, err := CompileValue(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tables.Broken")
}

func TestCompileFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "schema.cue", todoSchema)

	tables, err := CompileFile(path)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "_id", tables[1].PrimaryKey())
}

func TestCompileFileMissing(t *testing.T) {
	_, err := CompileFile(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read schema")
}

func TestCompileFileSyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "tables: {")

	_, err := CompileFile(path)
	require.Error(t, err)
}

func TestCompileDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.cue", `
package todo

tables: User: columns: "_id": {type: "string", primaryKey: true}
`)
	writeFile(t, dir, "tasks.cue", `
package todo

tables: Task: columns: {
	"_id":   {type: "string", primaryKey: true}
	ownerId: {type: "string"}
}
`)

	tables, err := CompileDir(dir)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	names := []string{tables[0].Name, tables[1].Name}
	assert.ElementsMatch(t, []string{"User", "Task"}, names)
}

func TestCompileDirNotADirectory(t *testing.T) {
	path := writeFile(t, t.TempDir(), "schema.cue", todoSchema)

	_, err := CompileDir(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestCompilePath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema.cue", "package todo\n"+todoSchema)

	fromFile, err := CompilePath(path)
	require.NoError(t, err)
	assert.Len(t, fromFile, 2)

	fromDir, err := CompilePath(dir)
	require.NoError(t, err)
	assert.Len(t, fromDir, 2)
}
