package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/livequery/internal/schema"
	"github.com/roach88/livequery/internal/store"
)

// FixtureTable is the name of the seeded predicate fixture table.
const FixtureTable = "TestPredicateProvider"

// FixtureRows is the number of rows SeedFixture inserts.
const FixtureRows = 1000

// FixtureSchema returns the fixture table:
//
//	_id       "_id:<i>"
//	name      "name:<i>"
//	time1     i
//	time2     1000 - i
//	times     "times: <i-1>|times: <i>|times: <i+1>"
//	nullable  false for i < 300, NULL otherwise
func FixtureSchema() *schema.Table {
	return schema.MustTable(FixtureTable,
		&schema.Column{Name: "_id", Type: schema.String, PrimaryKey: true},
		&schema.Column{Name: "name", Type: schema.String},
		&schema.Column{Name: "time1", Type: schema.Integer},
		&schema.Column{Name: "time2", Type: schema.Integer},
		&schema.Column{Name: "times", Type: schema.String},
		&schema.Column{Name: "nullable", Type: schema.Boolean, Nullable: true},
	)
}

// FixtureRow returns row i of the fixture.
func FixtureRow(i int) store.Row {
	var nullable any
	if i < 300 {
		nullable = false
	}
	return store.Row{
		"_id":      fmt.Sprintf("_id:%d", i),
		"name":     fmt.Sprintf("name:%d", i),
		"time1":    i,
		"time2":    FixtureRows - i,
		"times":    fmt.Sprintf("times: %d|times: %d|times: %d", i-1, i, i+1),
		"nullable": nullable,
	}
}

// OpenStore opens a file-backed store in a test temp dir, closed on cleanup.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedFixture defines the fixture table in s and reg and inserts every row
// in one transaction.
func SeedFixture(t testing.TB, s *store.Store, reg *schema.Registry) *schema.Table {
	t.Helper()
	ctx := context.Background()

	tbl := FixtureSchema()
	if err := s.Define(ctx, tbl); err != nil {
		t.Fatalf("Define() failed: %v", err)
	}
	if reg != nil {
		if err := reg.Define(tbl); err != nil {
			t.Fatalf("Registry.Define() failed: %v", err)
		}
	}

	rows := make([]store.Row, FixtureRows)
	for i := range rows {
		rows[i] = FixtureRow(i)
	}
	if _, err := s.Insert(ctx, FixtureTable, rows...); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	return tbl
}
