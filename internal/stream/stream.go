// Package stream provides the push streams live queries are built from.
//
// Streams are loop-confined: every Subscribe, emission and Cancel happens on
// the goroutine of the owning engine.Loop, so nothing here locks. Sources
// may emit synchronously from inside Subscribe; every operator copes with
// that by deferring its own teardown until Subscribe returns.
//
// After Error or Complete an observer receives nothing further, and
// calling a Cancel more than once, or after a terminal event, is a no-op.
package stream

// Cancel tears a subscription down.
type Cancel func()

// Observer receives a stream's events. Nil callbacks are ignored.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// OnNext delivers a value.
func (o Observer[T]) OnNext(v T) {
	if o.Next != nil {
		o.Next(v)
	}
}

// OnError delivers a terminal error.
func (o Observer[T]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

// OnComplete delivers normal termination.
func (o Observer[T]) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

// Source is anything that can be subscribed to.
type Source[T any] interface {
	Subscribe(obs Observer[T]) Cancel
}

// Func adapts a plain function to a Source.
type Func[T any] func(obs Observer[T]) Cancel

// Subscribe calls f.
func (f Func[T]) Subscribe(obs Observer[T]) Cancel {
	return f(obs)
}

func noop() {}

// Just emits v and completes.
func Just[T any](v T) Source[T] {
	return Func[T](func(obs Observer[T]) Cancel {
		obs.OnNext(v)
		obs.OnComplete()
		return noop
	})
}

// Fail terminates immediately with err.
func Fail[T any](err error) Source[T] {
	return Func[T](func(obs Observer[T]) Cancel {
		obs.OnError(err)
		return noop
	})
}

// guard wraps obs so that nothing is delivered after a terminal event or
// after stop. It is the shared bookkeeping of the operators below.
type guard[T any] struct {
	obs    Observer[T]
	closed bool
}

func (g *guard[T]) next(v T) {
	if !g.closed {
		g.obs.OnNext(v)
	}
}

func (g *guard[T]) error(err error) bool {
	if g.closed {
		return false
	}
	g.closed = true
	g.obs.OnError(err)
	return true
}

func (g *guard[T]) complete() bool {
	if g.closed {
		return false
	}
	g.closed = true
	g.obs.OnComplete()
	return true
}
