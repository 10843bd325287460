package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/queryir"
)

func TestCompileInsert(t *testing.T) {
	sql, err := NewSQLCompiler().CompileInsert("Task", []string{"_id", "name"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "Task" ("_id", "name") VALUES (?, ?)`, sql)
}

func TestCompileUpdate(t *testing.T) {
	filter := queryir.Compare{Column: queryir.Col("Task", "_id"), Op: queryir.OpEq, Value: "t1"}

	sql, params, err := NewSQLCompiler().CompileUpdate("Task", []Assignment{
		{Column: "name", Value: "renamed"},
		{Column: "done", Value: true},
	}, filter)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "Task" SET "name" = ?, "done" = ? WHERE "Task"."_id" = ?`, sql)
	assert.Equal(t, []any{"renamed", true, "t1"}, params)
}

func TestCompileUpdate_NoAssignments(t *testing.T) {
	_, _, err := NewSQLCompiler().CompileUpdate("Task", nil, nil)
	assert.Error(t, err)
}

func TestCompileDelete(t *testing.T) {
	sql, params, err := NewSQLCompiler().CompileDelete("Task", nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "Task" WHERE 1 = 1`, sql)
	assert.Nil(t, params)
}
