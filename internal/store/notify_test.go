package store

import (
	"context"
	"testing"

	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/schema"
)

func TestSubscribe_NotifiedOncePerCommit(t *testing.T) {
	s := defineTaskTable(t)
	ctx := context.Background()

	var calls int
	cancel := s.Subscribe("Task", func() { calls++ })
	defer cancel()

	if _, err := s.Insert(ctx, "Task", task("t1", "a", 1, false), task("t2", "b", 2, false)); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d after one batch, want 1", calls)
	}

	if _, err := s.Update(ctx, "Task", nil, Row{"title": "x"}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d after update, want 2", calls)
	}
}

func TestSubscribe_NoNotificationWithoutChanges(t *testing.T) {
	s := defineTaskTable(t)
	ctx := context.Background()

	var calls int
	defer s.Subscribe("Task", func() { calls++ })()

	// Matches nothing: no row changes, no notification.
	if _, err := s.Delete(ctx, "Task", queryir.Compare{Column: queryir.Col("Task", "_id"), Op: queryir.OpEq, Value: "missing"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(ctx, queryir.Select{From: "Task"}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestSubscribe_AbortDoesNotNotify(t *testing.T) {
	s := defineTaskTable(t)
	ctx := context.Background()

	var calls int
	defer s.Subscribe("Task", func() { calls++ })()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Insert(ctx, "Task", task("t1", "a", 1, false)); err != nil {
		t.Fatal(err)
	}
	if err := tx.Abort(); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("calls = %d after abort, want 0", calls)
	}

	// The next commit must not carry the aborted transaction's tables.
	other := schema.MustTable("Other", &schema.Column{Name: "_id", Type: schema.String, PrimaryKey: true})
	if err := s.Define(ctx, other); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, "Other", Row{"_id": "o1"}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("calls = %d after unrelated commit, want 0", calls)
	}
}

func TestSubscribe_OnlyMatchingTable(t *testing.T) {
	s := defineTaskTable(t)
	ctx := context.Background()
	other := schema.MustTable("Other", &schema.Column{Name: "_id", Type: schema.String, PrimaryKey: true})
	if err := s.Define(ctx, other); err != nil {
		t.Fatal(err)
	}

	var tasks, others int
	defer s.Subscribe("Task", func() { tasks++ })()
	defer s.Subscribe("Other", func() { others++ })()

	if _, err := s.Insert(ctx, "Other", Row{"_id": "o1"}); err != nil {
		t.Fatal(err)
	}
	if tasks != 0 || others != 1 {
		t.Errorf("task=%d other=%d, want 0 and 1", tasks, others)
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	s := defineTaskTable(t)
	ctx := context.Background()

	var calls int
	cancel := s.Subscribe("Task", func() { calls++ })
	cancel()
	cancel()

	if _, err := s.Insert(ctx, "Task", task("t1", "a", 1, false)); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("calls = %d after cancel, want 0", calls)
	}
}
