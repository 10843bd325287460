package selector

import "github.com/roach88/livequery/internal/stream"

// Querier is the operation surface shared by Selector and Proxy.
type Querier interface {
	Values(obs stream.Observer[[]Row]) stream.Cancel
	Changes(obs stream.Observer[[]Row]) stream.Cancel
	ChangesWithOps(pk string, obs stream.Observer[Snapshot]) stream.Cancel
	Table() string
	PrimaryKey() string
	String() string
}

// Meta is either a ready Selector or a pending Proxy.
type Meta struct {
	selector *Selector
	proxy    *Proxy
}

// Ready wraps a selector.
func Ready(s *Selector) Meta {
	return Meta{selector: s}
}

// Pending wraps an unresolved proxy.
func Pending(p *Proxy) Meta {
	return Meta{proxy: p}
}

// IsPending reports whether m still waits on a proxy.
func (m Meta) IsPending() bool {
	return m.selector == nil
}

// Selector returns the ready selector, or nil if pending.
func (m Meta) Selector() *Selector {
	return m.selector
}

// Proxy returns the pending proxy, or nil if ready.
func (m Meta) Proxy() *Proxy {
	return m.proxy
}

// Querier returns whichever variant m holds.
func (m Meta) Querier() Querier {
	if m.selector != nil {
		return m.selector
	}
	return m.proxy
}

// Map applies fn to whichever variant m holds.
func (m Meta) Map(fn func([]Row) []Row) Meta {
	if m.selector != nil {
		return Ready(m.selector.Map(fn))
	}
	return Pending(m.proxy.Map(fn))
}
