// Package token provides the single-use handle applications hold for a
// query.
//
// A Token wraps a shared stream of selector metas (a ready Selector, or a
// Proxy standing in for one). Exactly one terminal call (Values, Changes
// or ChangesWithOps) is allowed per token; composition (Map, Concat,
// Combine) and Describe never consume. Map rewrites the token in place,
// so a mapped token and its receiver share one terminal call.
//
// Tokens are safe for use from any goroutine. All stream work is posted to
// the owning loop; terminal calls block on queues fed by it.
package token

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/roach88/livequery/internal/engine"
	"github.com/roach88/livequery/internal/selector"
	"github.com/roach88/livequery/internal/stream"
)

// Row is one result row.
type Row = selector.Row

const (
	stateActive int32 = iota
	stateConsumed
)

// Token is a single-use query handle.
type Token struct {
	loop  engine.Scheduler
	life  context.Context
	state atomic.Int32

	mu    sync.Mutex
	metas stream.Source[selector.Meta]
}

// New wraps metas. life bounds every iterator the token opens: once it is
// done, blocked calls return a stopped error.
func New(loop engine.Scheduler, life context.Context, metas stream.Source[selector.Meta]) *Token {
	return &Token{
		loop:  loop,
		life:  life,
		metas: stream.NewReplay(metas),
	}
}

// FromSelector returns a token over a ready selector.
func FromSelector(loop engine.Scheduler, life context.Context, s *selector.Selector) *Token {
	return New(loop, life, stream.Just(selector.Ready(s)))
}

// FromProxy returns a token that waits for p to resolve.
func FromProxy(loop engine.Scheduler, life context.Context, p *selector.Proxy) *Token {
	return New(loop, life, p.Metas())
}

func (t *Token) source() stream.Source[selector.Meta] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metas
}

func (t *Token) consume() error {
	if !t.state.CompareAndSwap(stateActive, stateConsumed) {
		return consumedError()
	}
	return nil
}

// Consumed reports whether a terminal call has been made.
func (t *Token) Consumed() bool {
	return t.state.Load() == stateConsumed
}

// Values returns the current result once. It waits for a pending proxy to
// resolve, bounded by ctx.
func (t *Token) Values(ctx context.Context) ([]Row, error) {
	if err := t.consume(); err != nil {
		return nil, err
	}

	src := stream.Take(stream.SwitchMap(t.source(), func(m selector.Meta) stream.Source[[]Row] {
		return stream.Func[[]Row](m.Querier().Values)
	}), 1)

	sub, err := open(ctx, t.life, t.loop, src)
	if err != nil {
		return nil, err
	}
	defer sub.Stop()

	rows, err := sub.next()
	if errors.Is(err, io.EOF) {
		return []Row{}, nil
	}
	return rows, err
}

// Changes starts a live query. The iterator yields the current result and
// then a new result after every commit on the queried table.
func (t *Token) Changes(ctx context.Context) (*Iterator, error) {
	if err := t.consume(); err != nil {
		return nil, err
	}

	src := stream.SwitchMap(t.source(), func(m selector.Meta) stream.Source[[]Row] {
		return stream.Func[[]Row](m.Querier().Changes)
	})

	sub, err := open(ctx, t.life, t.loop, src)
	if err != nil {
		return nil, err
	}
	return &Iterator{sub: sub}, nil
}

// ChangesWithOps is Changes plus the ops from the previous result. The ops
// are keyed on pk, or on the table's primary key when pk is omitted.
func (t *Token) ChangesWithOps(ctx context.Context, pk ...string) (*OpsIterator, error) {
	if err := t.consume(); err != nil {
		return nil, err
	}

	var key string
	if len(pk) > 0 {
		key = pk[0]
	}
	src := stream.SwitchMap(t.source(), func(m selector.Meta) stream.Source[selector.Snapshot] {
		q := m.Querier()
		return stream.Func[selector.Snapshot](func(obs stream.Observer[selector.Snapshot]) stream.Cancel {
			return q.ChangesWithOps(key, obs)
		})
	})

	sub, err := open(ctx, t.life, t.loop, src)
	if err != nil {
		return nil, err
	}
	return &OpsIterator{sub: sub}, nil
}

// Map makes every later result of t pass through fn and returns t. It does
// not consume t, but t and the returned token are the same handle.
func (t *Token) Map(fn func([]Row) []Row) *Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metas = stream.NewReplay(stream.Map(t.metas, func(m selector.Meta) selector.Meta {
		return m.Map(fn)
	}))
	return t
}

// Concat returns a token over the results of t followed by those of
// others. No emission happens until every member's proxy has resolved.
func (t *Token) Concat(others ...*Token) *Token {
	return t.compose(others, func(first *selector.Selector, rest []*selector.Selector) *selector.Selector {
		return first.Concat(rest...)
	})
}

// Combine is Concat with identity reconciliation; see Selector.Combine.
func (t *Token) Combine(others ...*Token) *Token {
	return t.compose(others, func(first *selector.Selector, rest []*selector.Selector) *selector.Selector {
		return first.Combine(rest...)
	})
}

func (t *Token) compose(others []*Token, merge func(*selector.Selector, []*selector.Selector) *selector.Selector) *Token {
	srcs := make([]stream.Source[selector.Meta], 0, len(others)+1)
	for _, tok := range append([]*Token{t}, others...) {
		srcs = append(srcs, stream.SkipWhile(tok.source(), selector.Meta.IsPending))
	}

	combined := stream.Map(stream.CombineLatest(srcs...), func(metas []selector.Meta) selector.Meta {
		sels := make([]*selector.Selector, len(metas))
		for i, m := range metas {
			sels[i] = m.Selector()
		}
		return selector.Ready(merge(sels[0], sels[1:]))
	})
	return New(t.loop, t.life, combined)
}

// Describe returns the canonical description of the token's first ready
// selector, waiting for a pending proxy bounded by ctx. It does not
// consume the token.
func (t *Token) Describe(ctx context.Context) (string, error) {
	src := stream.Take(stream.Map(stream.SkipWhile(t.source(), selector.Meta.IsPending), func(m selector.Meta) string {
		return m.Selector().String()
	}), 1)

	sub, err := open(ctx, t.life, t.loop, src)
	if err != nil {
		return "", err
	}
	defer sub.Stop()

	desc, err := sub.next()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return desc, err
}
