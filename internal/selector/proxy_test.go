package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/stream"
)

func recorderFunc(fn func()) stream.Observer[[]Row] {
	return stream.Observer[[]Row]{Next: func([]Row) { fn() }}
}

func metaObserver(fn func(Meta)) stream.Observer[Meta] {
	return stream.Observer[Meta]{Next: fn}
}

func TestProxyQueuesUntilResolved(t *testing.T) {
	f := newFixture(t)
	f.insert(t, item("a", 1))

	p := NewProxy("Item", "_id")
	var values, changes recorder[[]Row]
	var ops recorder[Snapshot]
	p.Values(values.observer())
	p.Changes(changes.observer())
	p.ChangesWithOps("", ops.observer())

	assert.Empty(t, values.values)
	assert.Empty(t, changes.values)
	assert.Empty(t, ops.values)
	assert.Nil(t, p.Resolved())
	assert.Equal(t, "", p.String())

	sel := f.selector(nil)
	p.Resolve(sel)

	assert.Equal(t, [][]Row{{item("a", 1)}}, values.values)
	assert.True(t, values.completed)
	assert.Len(t, changes.values, 1)
	require.Len(t, ops.values, 1)
	assert.Len(t, ops.values[0].Ops, 1)
	assert.Same(t, sel, p.Resolved())
	assert.Equal(t, sel.String(), p.String())

	f.insert(t, item("b", 2))
	assert.Len(t, changes.values, 2, "forwarded subscription stays live")
}

func TestProxyPreservesCallOrder(t *testing.T) {
	f := newFixture(t)
	f.insert(t, item("a", 1))

	var order []string
	p := NewProxy("Item", "_id")
	for _, name := range []string{"first", "second", "third"} {
		name := name
		p.Values(recorderFunc(func() { order = append(order, name) }))
	}
	p.Resolve(f.selector(nil))

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestProxyCancelBeforeResolve(t *testing.T) {
	f := newFixture(t)
	storage := &countingStorage{Storage: f.store}
	env := NewEnv(storage, f.loop)

	p := NewProxy("Item", "_id")
	var rec recorder[[]Row]
	cancel := p.Changes(rec.observer())
	cancel()
	p.Resolve(New(env, queryir.Select{From: "Item", Fields: []string{"_id", "rank"}}, "_id", ""))

	assert.Empty(t, rec.values)
	assert.Equal(t, 0, storage.subscribes)
}

func TestProxyCancelAfterResolve(t *testing.T) {
	f := newFixture(t)

	p := NewProxy("Item", "_id")
	var rec recorder[[]Row]
	cancel := p.Changes(rec.observer())
	p.Resolve(f.selector(nil))
	cancel()

	f.insert(t, item("a", 1))
	assert.Len(t, rec.values, 1)
}

func TestProxyAfterResolveRunsImmediately(t *testing.T) {
	f := newFixture(t)
	p := NewProxy("Item", "_id")
	p.Resolve(f.selector(nil))

	var rec recorder[[]Row]
	p.Values(rec.observer())
	assert.Len(t, rec.values, 1)
}

func TestProxyResolveTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	first := f.selector(nil)
	p := NewProxy("Item", "_id")
	p.Resolve(first)
	p.Resolve(f.selector(nil))

	assert.Same(t, first, p.Resolved())
}

func TestProxyMapResolvesDerived(t *testing.T) {
	f := newFixture(t)
	f.insert(t, item("a", 1))

	p := NewProxy("Item", "_id")
	mapped := p.Map(func(rows []Row) []Row { return append([]Row{{"_id": "head"}}, rows...) })

	var rec recorder[[]Row]
	mapped.Values(rec.observer())
	assert.Nil(t, mapped.Resolved())

	p.Resolve(f.selector(nil))

	require.NotNil(t, mapped.Resolved())
	assert.Equal(t, [][]Row{{{"_id": "head"}, item("a", 1)}}, rec.values)
}

func TestProxyConcatAndCombine(t *testing.T) {
	f := newFixture(t)
	f.insert(t, item("a", 1), item("b", 9))

	p := NewProxy("Item", "_id")
	concat := p.Concat(f.rankFrom(5))
	combine := p.Combine(f.rankFrom(5))
	p.Resolve(f.rankBelow(5))

	var c1, c2 recorder[[]Row]
	concat.Values(c1.observer())
	combine.Values(c2.observer())

	assert.Equal(t, []Row{item("a", 1), item("b", 9)}, c1.values[0])
	assert.Equal(t, []Row{item("a", 1), item("b", 9)}, c2.values[0])
}

func TestProxyMetasEmitsPendingThenReady(t *testing.T) {
	f := newFixture(t)
	p := NewProxy("Item", "_id")

	var rec recorder[Meta]
	p.Metas().Subscribe(rec.observer())

	require.Len(t, rec.values, 1)
	assert.True(t, rec.values[0].IsPending())
	assert.Same(t, p, rec.values[0].Proxy())

	sel := f.selector(nil)
	p.Resolve(sel)

	require.Len(t, rec.values, 2)
	assert.False(t, rec.values[1].IsPending())
	assert.Same(t, sel, rec.values[1].Selector())
	assert.True(t, rec.completed)

	var late recorder[Meta]
	p.Metas().Subscribe(late.observer())
	require.Len(t, late.values, 1)
	assert.Same(t, sel, late.values[0].Selector())
}

func TestProxyMetasNotifiedBeforeQueuedCalls(t *testing.T) {
	f := newFixture(t)
	p := NewProxy("Item", "_id")

	var events []string
	p.Metas().Subscribe(metaObserver(func(m Meta) {
		if !m.IsPending() {
			events = append(events, "meta")
		}
	}))
	p.Values(recorderFunc(func() { events = append(events, "values") }))
	p.Resolve(f.selector(nil))

	assert.Equal(t, []string{"meta", "values"}, events)
}

func TestProxyMetasCancel(t *testing.T) {
	f := newFixture(t)
	p := NewProxy("Item", "_id")

	var rec recorder[Meta]
	cancel := p.Metas().Subscribe(rec.observer())
	cancel()
	p.Resolve(f.selector(nil))

	assert.Len(t, rec.values, 1)
	assert.False(t, rec.completed)
}

func TestMetaVariants(t *testing.T) {
	f := newFixture(t)
	sel := f.selector(nil)
	p := NewProxy("Item", "_id")

	ready := Ready(sel)
	assert.False(t, ready.IsPending())
	assert.Same(t, sel, ready.Querier())
	assert.Nil(t, ready.Proxy())

	pending := Pending(p)
	assert.True(t, pending.IsPending())
	assert.Same(t, p, pending.Querier())
	assert.Nil(t, pending.Selector())

	identity := func(rows []Row) []Row { return rows }
	assert.False(t, ready.Map(identity).IsPending())
	mapped := pending.Map(identity)
	assert.True(t, mapped.IsPending())
	assert.NotSame(t, p, mapped.Proxy())
}
