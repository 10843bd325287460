package token

import (
	"context"
	"io"
	"sync"

	"github.com/roach88/livequery/internal/engine"
	"github.com/roach88/livequery/internal/selector"
	"github.com/roach88/livequery/internal/stream"
)

type event[T any] struct {
	value T
	err   error
	done  bool
}

// subscription bridges a loop-confined stream to a consumer goroutine.
//
// Emissions are pushed into an unbounded queue on the loop and popped by
// the consumer, so a slow consumer never blocks the loop and never misses
// an emission.
type subscription[T any] struct {
	loop   engine.Scheduler
	ctx    context.Context
	life   context.Context
	events *engine.Queue[event[T]]

	// cancel is loop-confined.
	cancel stream.Cancel

	mu       sync.Mutex
	stopped  bool
	finished error
	release  []func() bool
}

// open subscribes to src on the loop. The subscription stops when ctx is
// done, when life is done (the owning database closed) or on Stop.
func open[T any](ctx, life context.Context, loop engine.Scheduler, src stream.Source[T]) (*subscription[T], error) {
	s := &subscription[T]{
		loop:   loop,
		ctx:    ctx,
		life:   life,
		events: engine.NewQueue[event[T]](),
	}

	ok := loop.Post(func() {
		s.cancel = src.Subscribe(stream.Observer[T]{
			Next: func(v T) {
				s.events.Push(event[T]{value: v})
			},
			Error: func(err error) {
				s.events.Push(event[T]{err: err})
				s.events.Close()
			},
			Complete: func() {
				s.events.Push(event[T]{done: true})
				s.events.Close()
			},
		})
	})
	if !ok {
		return nil, engine.NewStoppedError()
	}

	release := []func() bool{
		context.AfterFunc(ctx, s.Stop),
		context.AfterFunc(life, s.Stop),
	}
	s.mu.Lock()
	s.release = release
	stopped := s.stopped
	s.mu.Unlock()

	// A ctx that was already done ran Stop before release was stored.
	if stopped {
		for _, fn := range release {
			fn()
		}
	}
	return s, nil
}

// next blocks for the next emission.
//
// It returns io.EOF after the stream completes, the stream's error after it
// fails, the context's error if ctx ended, and ErrIteratorStopped after Stop.
func (s *subscription[T]) next() (T, error) {
	var zero T

	s.mu.Lock()
	if s.finished != nil {
		err := s.finished
		s.mu.Unlock()
		return zero, err
	}
	s.mu.Unlock()

	ev, ok := s.events.Pop()
	if !ok || s.isStopped() {
		return zero, s.finish(s.stopReason())
	}
	if ev.err != nil {
		return zero, s.finish(ev.err)
	}
	if ev.done {
		return zero, s.finish(io.EOF)
	}
	return ev.value, nil
}

func (s *subscription[T]) finish(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished == nil {
		s.finished = err
	}
	return s.finished
}

func (s *subscription[T]) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *subscription[T]) stopReason() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if s.life.Err() != nil {
		return engine.NewStoppedError()
	}
	return ErrIteratorStopped
}

// Stop tears the subscription down. Safe to call more than once and from
// any goroutine.
func (s *subscription[T]) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	release := s.release
	s.mu.Unlock()

	for _, fn := range release {
		fn()
	}
	s.events.Close()

	// Posted after the subscribing task, so cancel is set by the time this
	// runs.
	s.loop.Post(func() {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	})
}

// Iterator yields successive results of a live query.
type Iterator struct {
	sub *subscription[[]selector.Row]
}

// Next blocks until the next result.
//
// Errors: the storage error that ended the stream, the context's error
// once the context passed to Changes is done, or ErrIteratorStopped after
// Stop.
func (it *Iterator) Next() ([]selector.Row, error) {
	return it.sub.next()
}

// Stop ends the live query.
func (it *Iterator) Stop() {
	it.sub.Stop()
}

// OpsIterator yields successive results with the ops that produce them.
type OpsIterator struct {
	sub *subscription[selector.Snapshot]
}

// Next blocks until the next result. Errors are as for Iterator.Next.
func (it *OpsIterator) Next() (selector.Snapshot, error) {
	return it.sub.next()
}

// Stop ends the live query.
func (it *OpsIterator) Stop() {
	it.sub.Stop()
}
