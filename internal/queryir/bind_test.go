package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBind_ColumnCompare(t *testing.T) {
	row := map[string]any{"belongTo": "p1", "rank": 3}

	testCases := []struct {
		name string
		in   Predicate
		want Predicate
	}{
		{
			name: "outer on the right",
			in:   ColumnCompare{Left: Col("Project", "_id"), Op: OpEq, Right: Col("Post", "belongTo")},
			want: Compare{Column: Col("Project", "_id"), Op: OpEq, Value: "p1"},
		},
		{
			name: "outer on the left flips the operator",
			in:   ColumnCompare{Left: Col("Post", "rank"), Op: OpLt, Right: Col("Level", "min")},
			want: Compare{Column: Col("Level", "min"), Op: OpGt, Value: 3},
		},
		{
			name: "missing value binds nil",
			in:   ColumnCompare{Left: Col("Project", "_id"), Op: OpEq, Right: Col("Post", "owner")},
			want: Compare{Column: Col("Project", "_id"), Op: OpEq, Value: nil},
		},
		{
			name: "unrelated columns are kept",
			in:   ColumnCompare{Left: Col("A", "x"), Op: OpEq, Right: Col("B", "y")},
			want: ColumnCompare{Left: Col("A", "x"), Op: OpEq, Right: Col("B", "y")},
		},
		{
			name: "literal comparisons are kept",
			in:   Compare{Column: Col("Project", "name"), Op: OpEq, Value: "x"},
			want: Compare{Column: Col("Project", "name"), Op: OpEq, Value: "x"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Bind(tc.in, "Post", row))
		})
	}
}

func TestBind_Nested(t *testing.T) {
	join := ColumnCompare{Left: Col("Project", "_id"), Op: OpEq, Right: Col("Post", "belongTo")}
	in := And{Predicates: []Predicate{
		join,
		Not{Predicate: Or{Predicates: []Predicate{join}}},
		Exists{Table: "Owner", Filter: ColumnCompare{Left: Col("Owner", "_id"), Op: OpEq, Right: Col("Post", "owner")}},
	}}

	got := Bind(in, "Post", map[string]any{"belongTo": "p1", "owner": "u1"})

	bound := Compare{Column: Col("Project", "_id"), Op: OpEq, Value: "p1"}
	assert.Equal(t, And{Predicates: []Predicate{
		bound,
		Not{Predicate: Or{Predicates: []Predicate{bound}}},
		Exists{Table: "Owner", Filter: Compare{Column: Col("Owner", "_id"), Op: OpEq, Value: "u1"}},
	}}, got)
}

func TestBind_Nil(t *testing.T) {
	assert.Nil(t, Bind(nil, "Post", map[string]any{}))
}

func TestFlip(t *testing.T) {
	assert.Equal(t, OpGt, OpLt.Flip())
	assert.Equal(t, OpGte, OpLte.Flip())
	assert.Equal(t, OpLt, OpGt.Flip())
	assert.Equal(t, OpLte, OpGte.Flip())
	assert.Equal(t, OpEq, OpEq.Flip())
	assert.Equal(t, OpNe, OpNe.Flip())
}

func TestOuterColumns(t *testing.T) {
	p := All(
		ColumnCompare{Left: Col("Project", "_id"), Op: OpEq, Right: Col("Post", "belongTo")},
		Compare{Column: Col("Post", "rank"), Op: OpGt, Value: 1},
		Compare{Column: Col("Post", "belongTo"), Op: OpNe, Value: ""},
	)
	assert.Equal(t, []string{"belongTo", "rank"}, OuterColumns(p, "Post"))
	assert.Empty(t, OuterColumns(nil, "Post"))
}

func TestSelectTables(t *testing.T) {
	sel := Select{
		From: "Post",
		Filter: Not{Predicate: Exists{
			Table:  "Project",
			Filter: Exists{Table: "Owner"},
		}},
		Include: []Include{
			{As: "project", Table: "Project", Include: []Include{{As: "tags", Table: "Tag"}}},
			{As: "self", Table: "Post"},
		},
	}
	assert.Equal(t, []string{"Post", "Project", "Owner", "Tag"}, sel.Tables())
	assert.Equal(t, []string{"Task"}, Select{From: "Task"}.Tables())
}

func TestValidate_IncludeProblems(t *testing.T) {
	result := Validate(Select{
		From: "Post",
		Include: []Include{
			{As: "project"},
			{Table: "Project", Include: []Include{{As: "x", Table: "X", Join: Compare{Op: OpEq}}}},
		},
	})
	assert.False(t, result.Valid)
	assert.Equal(t, []string{
		"include 0 has no table",
		"include 1 has no name",
		`column reference without a name (table "")`,
	}, result.Problems)
}
