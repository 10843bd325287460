package livequery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplain(t *testing.T) {
	db := openTasks(t)

	where := D{{Key: "rank", Value: D{{Key: "$gte", Value: 2}}}}
	ex, err := db.Explain("Task", Query{
		Where:   where,
		Fields:  []string{"title"},
		OrderBy: []Order{{Column: "rank", Desc: true}},
		Limit:   5,
	})
	require.NoError(t, err)

	assert.Equal(t, "Task", ex.Table)
	assert.Equal(t, `{"rank":{"$gte":2}}`, ex.Description)
	assert.NotEmpty(t, ex.Key)
	assert.Contains(t, ex.SQL, `SELECT "_id", "title" FROM "Task" WHERE`)
	assert.Contains(t, ex.SQL, `ORDER BY "rank" DESC, "Task".rowid ASC LIMIT ? OFFSET ?`)
	assert.Len(t, ex.Params, 3)
	assert.Empty(t, ex.Pending)
	assert.Equal(t, []string{"Task"}, ex.Tables)
}

func TestExplainKeyIgnoresProjection(t *testing.T) {
	db := openTasks(t)
	where := D{{Key: "done", Value: false}}

	a, err := db.Explain("Task", Query{Where: where})
	require.NoError(t, err)
	b, err := db.Explain("Task", Query{Where: where, Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, a.Key, b.Key)
	assert.NotEqual(t, a.SQL, b.SQL)
}

func TestExplainMatchAll(t *testing.T) {
	db := openTasks(t)

	ex, err := db.Explain("Task", Query{})
	require.NoError(t, err)
	assert.Equal(t, "", ex.Description)
	assert.Equal(t, `SELECT * FROM "Task" ORDER BY "Task".rowid ASC`, ex.SQL)
	assert.Equal(t, []any{}, ex.Params)
}

func TestExplainUnknownTable(t *testing.T) {
	db := openDB(t)

	_, err := db.Explain("Nope", Query{})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestExplainTablesFollowAssociations(t *testing.T) {
	db := openDB(t)
	defineProjectsAndPosts(t, db)

	ex, err := db.Explain("Post", Query{
		Where:   D{{Key: "project", Value: D{{Key: "name", Value: "X"}}}},
		Include: []Include{{Association: "project"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Post", "Project"}, ex.Tables)
	assert.Contains(t, ex.SQL, `EXISTS (SELECT 1 FROM "Project" WHERE`)

	ex, err = db.Explain("Project", Query{Include: []Include{{Association: "posts", Include: []Include{{Association: "project"}}}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Project", "Post"}, ex.Tables)
}
