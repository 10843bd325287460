package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/queryir"
)

func taskTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable("Task",
		&Column{Name: "_id", Type: String, PrimaryKey: true},
		&Column{Name: "title", Type: String},
		&Column{Name: "_projectId", Type: String, Index: true},
		&Column{Name: "project", Virtual: &Virtual{Name: "Project", Where: On("Task", "_projectId", "_id")}},
	)
	require.NoError(t, err)
	return tbl
}

func TestNewTable_Metadata(t *testing.T) {
	tbl := taskTable(t)

	assert.Equal(t, "_id", tbl.PrimaryKey())
	assert.Equal(t, []string{"_id", "title", "_projectId"}, tbl.Physical())

	assocs := tbl.Associations()
	require.Len(t, assocs, 1)
	assert.Equal(t, "project", assocs[0].Name)
	assert.Equal(t, Relationship, assocs[0].Type)

	col, ok := tbl.Column("title")
	require.True(t, ok)
	assert.Equal(t, String, col.Type)

	_, ok = tbl.Column("missing")
	assert.False(t, ok)
}

func TestNewTable_PrimaryKeyRules(t *testing.T) {
	_, err := NewTable("NoPK", &Column{Name: "a", Type: String})
	assert.ErrorIs(t, err, ErrNoPrimaryKey)

	_, err = NewTable("TwoPK",
		&Column{Name: "a", Type: String, PrimaryKey: true},
		&Column{Name: "b", Type: String, PrimaryKey: true},
	)
	assert.ErrorIs(t, err, ErrMultiplePrimaryKeys)

	_, err = NewTable("Dup",
		&Column{Name: "a", Type: String, PrimaryKey: true},
		&Column{Name: "a", Type: String},
	)
	assert.Error(t, err)
}

func TestOn_BuildsJoin(t *testing.T) {
	project := MustTable("Project", &Column{Name: "_id", Type: String, PrimaryKey: true})

	pred := On("Task", "_projectId", "_id")(project)
	assert.Equal(t, queryir.ColumnCompare{
		Left:  queryir.Col("Project", "_id"),
		Op:    queryir.OpEq,
		Right: queryir.Col("Task", "_projectId"),
	}, pred)
}

func TestRegistry_DefineLookup(t *testing.T) {
	reg := NewRegistry()
	tbl := taskTable(t)

	var defined []string
	reg.OnDefine(func(t *Table) { defined = append(defined, t.Name) })

	require.NoError(t, reg.Define(tbl))
	assert.Error(t, reg.Define(tbl), "redefinition must fail")

	got, ok := reg.Lookup("Task")
	require.True(t, ok)
	assert.Same(t, tbl, got)
	assert.Equal(t, []string{"Task"}, defined)

	_, ok = reg.Lookup("Nope")
	assert.False(t, ok)
}

func TestRegistry_AssociationResolution(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(taskTable(t)))

	col, defined := reg.Association("Task", "project")
	require.NotNil(t, col)
	assert.False(t, defined, "Project is not registered yet")

	require.NoError(t, reg.Define(MustTable("Project", &Column{Name: "_id", Type: String, PrimaryKey: true})))
	_, defined = reg.Association("Task", "project")
	assert.True(t, defined)

	col, _ = reg.Association("Task", "title")
	assert.Nil(t, col, "physical columns are not associations")
}

func TestNilRegistry_LookupIsEmpty(t *testing.T) {
	var reg *Registry
	_, ok := reg.Lookup("Task")
	assert.False(t, ok)
}

func TestParseType(t *testing.T) {
	for typ, name := range typeNames {
		got, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, typ, got)
		assert.Equal(t, name, typ.String())
	}
	_, err := ParseType("blob")
	assert.Error(t, err)
}
