package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/schema"
)

func userSpec() *TableSpec {
	return &TableSpec{
		Name: "User",
		Columns: []ColumnSpec{
			{Name: "_id", Type: "string", PrimaryKey: true},
			{Name: "name", Type: "string"},
		},
	}
}

func taskSpec() *TableSpec {
	return &TableSpec{
		Name: "Task",
		Columns: []ColumnSpec{
			{Name: "_id", Type: "string", PrimaryKey: true},
			{Name: "rank", Type: "integer", Index: true},
			{Name: "ownerId", Type: "string"},
			{Name: "owner", Type: "relationship", Virtual: &VirtualSpec{Table: "User", Local: "ownerId", Foreign: "_id"}},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	errs := Validate([]*TableSpec{userSpec(), taskSpec()})
	assert.Empty(t, errs)
}

func TestValidateAssociationTargetNotDeclared(t *testing.T) {
	// User may be defined later; only the local field is checked.
	errs := Validate([]*TableSpec{taskSpec()})
	assert.Empty(t, errs)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		specs []*TableSpec
		want  string
	}{
		{
			name: "no primary key",
			specs: []*TableSpec{{Name: "A", Columns: []ColumnSpec{
				{Name: "x", Type: "string"},
			}}},
			want: ErrTableNoPrimaryKey,
		},
		{
			name: "two primary keys",
			specs: []*TableSpec{{Name: "A", Columns: []ColumnSpec{
				{Name: "x", Type: "string", PrimaryKey: true},
				{Name: "y", Type: "string", PrimaryKey: true},
			}}},
			want: ErrTableMultiplePrimaryKey,
		},
		{
			name:  "no columns",
			specs: []*TableSpec{{Name: "A"}},
			want:  ErrTableNoColumns,
		},
		{
			name: "unknown type",
			specs: []*TableSpec{{Name: "A", Columns: []ColumnSpec{
				{Name: "x", Type: "uuid", PrimaryKey: true},
			}}},
			want: ErrInvalidColumnType,
		},
		{
			name:  "duplicate table",
			specs: []*TableSpec{userSpec(), userSpec()},
			want:  ErrDuplicateName,
		},
		{
			name: "association as primary key",
			specs: []*TableSpec{{Name: "A", Columns: []ColumnSpec{
				{Name: "x", Type: "string", PrimaryKey: true},
				{Name: "b", Type: "relationship", PrimaryKey: true, Virtual: &VirtualSpec{Table: "B", Local: "x", Foreign: "y"}},
			}}},
			want: ErrVirtualPrimaryKey,
		},
		{
			name: "association not a relationship",
			specs: []*TableSpec{{Name: "A", Columns: []ColumnSpec{
				{Name: "x", Type: "string", PrimaryKey: true},
				{Name: "b", Type: "string", Virtual: &VirtualSpec{Table: "B", Local: "x", Foreign: "y"}},
			}}},
			want: ErrVirtualType,
		},
		{
			name: "missing local field",
			specs: []*TableSpec{{Name: "A", Columns: []ColumnSpec{
				{Name: "x", Type: "string", PrimaryKey: true},
				{Name: "b", Type: "relationship", Virtual: &VirtualSpec{Table: "B", Local: "nope", Foreign: "y"}},
			}}},
			want: ErrVirtualLocalField,
		},
		{
			name: "missing foreign field",
			specs: []*TableSpec{userSpec(), {Name: "Task", Columns: []ColumnSpec{
				{Name: "_id", Type: "string", PrimaryKey: true},
				{Name: "owner", Type: "relationship", Virtual: &VirtualSpec{Table: "User", Local: "_id", Foreign: "missing"}},
			}}},
			want: ErrVirtualForeignField,
		},
		{
			name: "relationship without join",
			specs: []*TableSpec{{Name: "A", Columns: []ColumnSpec{
				{Name: "x", Type: "string", PrimaryKey: true},
				{Name: "b", Type: "relationship"},
			}}},
			want: ErrRelationshipNoJoin,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.specs)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	specs := []*TableSpec{{Name: "A", Columns: []ColumnSpec{
		{Name: "x", Type: "uuid"},
		{Name: "b", Type: "relationship"},
	}}}

	errs := Validate(specs)
	assert.ElementsMatch(t, []string{ErrInvalidColumnType, ErrRelationshipNoJoin, ErrTableNoPrimaryKey}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "A", Message: "bad", Code: ErrTableNoColumns}
	assert.Equal(t, "[E103] A: bad", err.Error())

	err.Line = 4
	assert.Equal(t, "[E103] line 4: A: bad", err.Error())
}

func TestBuild(t *testing.T) {
	tables, err := Build([]*TableSpec{userSpec(), taskSpec()})
	require.NoError(t, err)
	require.Len(t, tables, 2)

	task := tables[1]
	assert.Equal(t, "Task", task.Name)
	assert.Equal(t, "_id", task.PrimaryKey())
	assert.Equal(t, []string{"_id", "rank", "ownerId"}, task.Physical())

	rank, ok := task.Column("rank")
	require.True(t, ok)
	assert.Equal(t, schema.Integer, rank.Type)
	assert.True(t, rank.Index)

	assocs := task.Associations()
	require.Len(t, assocs, 1)
	assert.Equal(t, "owner", assocs[0].Name)
	assert.Equal(t, "User", assocs[0].Virtual.Name)
	require.NotNil(t, assocs[0].Virtual.Where)
	assert.NotNil(t, assocs[0].Virtual.Where(tables[0]))
}

func TestBuildRejectsUnknownType(t *testing.T) {
	_, err := Build([]*TableSpec{{Name: "A", Columns: []ColumnSpec{
		{Name: "x", Type: "uuid", PrimaryKey: true},
	}}})
	require.Error(t, err)
}
