package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_WellFormed(t *testing.T) {
	sel := Select{
		From: "Task",
		Filter: All(
			Compare{Column: Col("Task", "time1"), Op: OpGte, Value: 10},
			Not{Predicate: Match{Column: Col("Task", "name"), Pattern: "^a"}},
			Exists{
				Table: "Project",
				Filter: ColumnCompare{
					Left:  Col("Project", "_id"),
					Op:    OpEq,
					Right: Col("Task", "_projectId"),
				},
			},
		),
		OrderBy: []Order{{Column: "time1", Desc: true}},
		Limit:   10,
	}

	result := Validate(sel)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
}

func TestValidate_NilFilterIsValid(t *testing.T) {
	result := Validate(Select{From: "Task"})
	assert.True(t, result.Valid)
}

func TestValidate_Problems(t *testing.T) {
	testCases := []struct {
		name string
		sel  Select
		want string
	}{
		{
			name: "missing table",
			sel:  Select{},
			want: "select has no source table",
		},
		{
			name: "negative limit",
			sel:  Select{From: "T", Limit: -1},
			want: "negative limit -1",
		},
		{
			name: "unnamed column",
			sel:  Select{From: "T", Filter: Null{Column: Col("T", "")}},
			want: `column reference without a name (table "T")`,
		},
		{
			name: "nil child",
			sel:  Select{From: "T", Filter: And{Predicates: []Predicate{nil}}},
			want: "nil operand inside and",
		},
		{
			name: "open between",
			sel:  Select{From: "T", Filter: Between{Column: Col("T", "n"), Low: 1}},
			want: "between on T.n needs both bounds",
		},
		{
			name: "exists without table",
			sel:  Select{From: "T", Filter: Exists{}},
			want: "exists without a table",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			result := Validate(tc.sel)
			assert.False(t, result.Valid)
			assert.Contains(t, result.Problems, tc.want)
		})
	}
}

func TestColumns_DedupedInOrder(t *testing.T) {
	p := Any(
		Compare{Column: Col("T", "a"), Op: OpEq, Value: 1},
		All(
			Compare{Column: Col("T", "b"), Op: OpLt, Value: 2},
			Compare{Column: Col("T", "a"), Op: OpGt, Value: 0},
		),
	)

	assert.Equal(t, []Column{Col("T", "a"), Col("T", "b")}, Columns(p))
	assert.Empty(t, Columns(nil))
}
