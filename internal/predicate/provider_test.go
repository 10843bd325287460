package predicate

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/schema"
	"github.com/roach88/livequery/internal/testutil"
)

func fixtureRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Define(testutil.FixtureSchema()))
	return reg
}

func TestProvider_String(t *testing.T) {
	reg := fixtureRegistry(t)
	str := func(d D) string { return NewProvider(reg, testutil.FixtureTable, d).String() }

	assert.Equal(t, "", str(D{}))
	assert.Equal(t, "", str(D{{"notExist", 20}}))
	assert.Equal(t, `{"time1":20}`, str(D{{"time1", 20}}))
	assert.Equal(t,
		`{"$or":{"time1":{"$gte":0,"$lt":50},"time2":{"$gt":0,"$lte":50}}}`,
		str(D{{"$or", D{
			{"time1", D{{"$gte", 0}, {"$lt", 50}}},
			{"time2", D{{"$gt", 0}, {"$lte", 50}}},
		}}}))
	assert.Equal(t,
		`{"name":{"$match":"\\:(\\d{0,1}1$)"}}`,
		str(D{{"name", D{{"$match", regexp.MustCompile(`\:(\d{0,1}1$)`)}}}}))
}

func TestProvider_Equal(t *testing.T) {
	reg := fixtureRegistry(t)

	a := NewProvider(reg, testutil.FixtureTable, D{{"time1", 20}})
	b := NewProvider(reg, testutil.FixtureTable, D{{"time1", 20}})
	c := NewProvider(reg, testutil.FixtureTable, D{{"time1", 21}})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestProvider_Accessors(t *testing.T) {
	reg := fixtureRegistry(t)
	d := D{{"time1", 20}}

	p := NewProvider(reg, testutil.FixtureTable, d)
	assert.Equal(t, testutil.FixtureTable, p.Table())
	assert.Equal(t, d, p.Description())
	assert.NotNil(t, p.Predicate())
}

func TestPendingTables_UnknownTable(t *testing.T) {
	assert.Nil(t, PendingTables(schema.NewRegistry(), "Nope", D{{"a", D{}}}))
}

func TestPendingTables_NestedJunctions(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.Define(schema.MustTable("Task",
		&schema.Column{Name: "_id", Type: schema.String, PrimaryKey: true},
		&schema.Column{Name: "project", Virtual: &schema.Virtual{Name: "Project", Where: schema.On("Task", "_projectId", "_id")}},
		&schema.Column{Name: "owner", Virtual: &schema.Virtual{Name: "Member", Where: schema.On("Task", "_ownerId", "_id")}},
	)))

	d := D{
		{"$or", []any{
			D{{"project", D{{"name", "x"}}}},
			D{{"$not", D{{"owner", D{{"name", "y"}}}}}},
		}},
		{"project", D{{"name", "z"}}},
	}
	assert.Equal(t, []string{"Member", "Project"}, PendingTables(reg, "Task", d))
}
