package selector

import (
	"github.com/roach88/livequery/internal/stream"
)

// Proxy stands in for a Selector that cannot be built yet, typically
// because an association target table is still undefined.
//
// Every call is queued and replayed, in call order, against the Selector
// passed to Resolve. A Proxy that is never resolved keeps its calls
// pending forever; callers bound the wait by cancelling.
type Proxy struct {
	table string
	pk    string

	selector *Selector
	pending  []*deferred
	watchers []*watcher
}

type deferred struct {
	run       func(*Selector) stream.Cancel
	cancelled bool
	cancel    stream.Cancel
}

type watcher struct {
	fn      func(*Selector)
	removed bool
}

// NewProxy creates an unresolved proxy for table.
func NewProxy(table, pk string) *Proxy {
	return &Proxy{table: table, pk: pk}
}

// Table returns the table the eventual selector reads.
func (p *Proxy) Table() string {
	return p.table
}

// PrimaryKey returns the identity column of table.
func (p *Proxy) PrimaryKey() string {
	return p.pk
}

// Resolved returns the selector, or nil while pending.
func (p *Proxy) Resolved() *Selector {
	return p.selector
}

// String is empty until resolved.
func (p *Proxy) String() string {
	if p.selector == nil {
		return ""
	}
	return p.selector.String()
}

// Resolve binds the proxy to s. Watchers registered through Metas hear
// about s first; queued calls are replayed afterwards, in order.
// Resolving twice is a no-op.
func (p *Proxy) Resolve(s *Selector) {
	if p.selector != nil {
		return
	}
	p.selector = s

	watchers := p.watchers
	p.watchers = nil
	for _, w := range watchers {
		if !w.removed {
			w.removed = true
			w.fn(s)
		}
	}

	pending := p.pending
	p.pending = nil
	for _, d := range pending {
		if d.cancelled {
			continue
		}
		cancel := d.run(s)
		if d.cancelled {
			if cancel != nil {
				cancel()
			}
			continue
		}
		d.cancel = cancel
	}
}

// enqueue runs fn now if resolved, otherwise at Resolve.
func (p *Proxy) enqueue(fn func(*Selector) stream.Cancel) stream.Cancel {
	if p.selector != nil {
		return fn(p.selector)
	}
	d := &deferred{run: fn}
	p.pending = append(p.pending, d)
	return func() {
		if d.cancelled {
			return
		}
		d.cancelled = true
		if d.cancel != nil {
			d.cancel()
		}
	}
}

// Values is Selector.Values, deferred until Resolve.
func (p *Proxy) Values(obs stream.Observer[[]Row]) stream.Cancel {
	return p.enqueue(func(s *Selector) stream.Cancel { return s.Values(obs) })
}

// Changes is Selector.Changes, deferred until Resolve.
func (p *Proxy) Changes(obs stream.Observer[[]Row]) stream.Cancel {
	return p.enqueue(func(s *Selector) stream.Cancel { return s.Changes(obs) })
}

// ChangesWithOps is Selector.ChangesWithOps, deferred until Resolve.
func (p *Proxy) ChangesWithOps(pk string, obs stream.Observer[Snapshot]) stream.Cancel {
	return p.enqueue(func(s *Selector) stream.Cancel { return s.ChangesWithOps(pk, obs) })
}

// Map returns a proxy that resolves to the mapped selector.
func (p *Proxy) Map(fn func([]Row) []Row) *Proxy {
	return p.then(func(s *Selector) *Selector { return s.Map(fn) })
}

// Concat returns a proxy that resolves to s.Concat(others...).
func (p *Proxy) Concat(others ...*Selector) *Proxy {
	return p.then(func(s *Selector) *Selector { return s.Concat(others...) })
}

// Combine returns a proxy that resolves to s.Combine(others...).
func (p *Proxy) Combine(others ...*Selector) *Proxy {
	return p.then(func(s *Selector) *Selector { return s.Combine(others...) })
}

func (p *Proxy) then(fn func(*Selector) *Selector) *Proxy {
	child := NewProxy(p.table, p.pk)
	p.enqueue(func(s *Selector) stream.Cancel {
		child.Resolve(fn(s))
		return nil
	})
	return child
}

// Metas emits the pending proxy and then, once resolved, the real
// selector, and completes. A resolved proxy emits only the selector.
func (p *Proxy) Metas() stream.Source[Meta] {
	return stream.Func[Meta](func(obs stream.Observer[Meta]) stream.Cancel {
		if p.selector != nil {
			obs.OnNext(Ready(p.selector))
			obs.OnComplete()
			return func() {}
		}

		obs.OnNext(Pending(p))
		w := &watcher{fn: func(s *Selector) {
			obs.OnNext(Ready(s))
			obs.OnComplete()
		}}
		p.watchers = append(p.watchers, w)
		return func() {
			if w.removed {
				return
			}
			w.removed = true
			for i, x := range p.watchers {
				if x == w {
					p.watchers = append(p.watchers[:i], p.watchers[i+1:]...)
					break
				}
			}
		}
	})
}
