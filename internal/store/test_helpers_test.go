package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/livequery/internal/schema"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// taskTable is a small table covering every storage type.
func taskTable() *schema.Table {
	return schema.MustTable("Task",
		&schema.Column{Name: "_id", Type: schema.String, PrimaryKey: true},
		&schema.Column{Name: "title", Type: schema.String},
		&schema.Column{Name: "priority", Type: schema.Integer, Index: true},
		&schema.Column{Name: "score", Type: schema.Number, Nullable: true},
		&schema.Column{Name: "done", Type: schema.Boolean},
		&schema.Column{Name: "meta", Type: schema.Object, Nullable: true},
	)
}

// defineTaskTable creates a store with the Task table defined.
func defineTaskTable(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	if err := s.Define(context.Background(), taskTable()); err != nil {
		t.Fatalf("Define() failed: %v", err)
	}
	return s
}

func task(id, title string, priority int, done bool) Row {
	return Row{"_id": id, "title": title, "priority": priority, "done": done}
}
