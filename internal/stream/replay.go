package stream

// Replay is a hot, reference-counted source that remembers its latest value.
//
// The first subscriber connects the upstream; later subscribers share that
// connection and immediately receive the latest value. When the last
// subscriber leaves, the upstream is cancelled and the remembered value is
// dropped, so a later subscriber starts a fresh connection.
//
// Once the upstream terminates the Replay stays terminated: late
// subscribers receive the latest value (if any) and the terminal event.
type Replay[T any] struct {
	upstream Source[T]

	subs []*replaySub[T]

	last    T
	hasLast bool

	connected bool
	gen       uint64
	cancel    Cancel

	terminated bool
	err        error
}

type replaySub[T any] struct {
	obs     Observer[T]
	removed bool
}

// NewReplay wraps upstream.
func NewReplay[T any](upstream Source[T]) *Replay[T] {
	return &Replay[T]{upstream: upstream}
}

// Subscribe joins the shared connection, connecting it if needed.
func (r *Replay[T]) Subscribe(obs Observer[T]) Cancel {
	if r.terminated {
		if r.hasLast {
			obs.OnNext(r.last)
		}
		if r.err != nil {
			obs.OnError(r.err)
		} else {
			obs.OnComplete()
		}
		return noop
	}

	sub := &replaySub[T]{obs: obs}
	r.subs = append(r.subs, sub)
	cancel := func() { r.remove(sub) }

	if r.hasLast {
		obs.OnNext(r.last)
	}
	if sub.removed || r.connected {
		return cancel
	}

	r.connect()
	return cancel
}

// Subscribers returns the number of live subscribers.
func (r *Replay[T]) Subscribers() int {
	return len(r.subs)
}

func (r *Replay[T]) connect() {
	r.gen++
	gen := r.gen
	r.connected = true

	cancel := r.upstream.Subscribe(Observer[T]{
		Next: func(v T) {
			if r.gen == gen && r.connected {
				r.next(v)
			}
		},
		Error: func(err error) {
			if r.gen == gen && r.connected {
				r.terminate(err)
			}
		},
		Complete: func() {
			if r.gen == gen && r.connected {
				r.terminate(nil)
			}
		},
	})

	// The connection may already be gone if every subscriber left, or the
	// upstream terminated, while the upstream was still subscribing.
	if r.gen == gen && r.connected {
		r.cancel = cancel
	} else {
		cancel()
	}
}

func (r *Replay[T]) next(v T) {
	r.last, r.hasLast = v, true
	for _, sub := range append([]*replaySub[T](nil), r.subs...) {
		if !sub.removed {
			sub.obs.OnNext(v)
		}
	}
}

func (r *Replay[T]) terminate(err error) {
	r.terminated = true
	r.err = err
	r.connected = false
	r.cancel = nil

	subs := r.subs
	r.subs = nil
	for _, sub := range subs {
		if sub.removed {
			continue
		}
		sub.removed = true
		if err != nil {
			sub.obs.OnError(err)
		} else {
			sub.obs.OnComplete()
		}
	}
}

func (r *Replay[T]) remove(sub *replaySub[T]) {
	if sub.removed {
		return
	}
	sub.removed = true
	for i, s := range r.subs {
		if s == sub {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			break
		}
	}
	if len(r.subs) == 0 && r.connected {
		r.disconnect()
	}
}

func (r *Replay[T]) disconnect() {
	cancel := r.cancel
	r.connected = false
	r.cancel = nil
	r.gen++

	var zero T
	r.last, r.hasLast = zero, false

	if cancel != nil {
		cancel()
	}
}
