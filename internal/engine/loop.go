package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// Scheduler accepts tasks for a loop. *Loop implements it.
type Scheduler interface {
	Post(fn func()) bool
}

// Loop is the single-goroutine task loop that owns all live query state.
//
// Thread-safety model:
//   - Post(), Do(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Tasks run one at a time in FIFO order. Code running inside a task may
// touch loop-confined state (selectors, streams) without locking; code
// outside the loop must Post instead.
type Loop struct {
	queue  *Queue[func()]
	logger *slog.Logger
	clock  *Clock
	done   chan struct{}
}

// LoopOption allows configuration of loop parameters.
type LoopOption func(*Loop)

// WithLogger sets the loop's structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		queue:  NewQueue[func()](),
		logger: slog.Default(),
		clock:  NewClock(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post submits fn for execution on the loop goroutine.
// Thread-safe: may be called from any goroutine, including from a task.
//
// Returns false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	return l.queue.Push(fn)
}

// Do runs fn on the loop and waits for it to finish.
//
// Must not be called from inside a task: the loop would wait on itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return NewStoppedError()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The loop may have run the task just before exiting.
		select {
		case <-finished:
			return nil
		default:
			return NewStoppedError()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the loop.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A panicking task is logged and the loop continues with
// the next task.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("loop starting")
	defer close(l.done)

	for {
		// Try non-blocking dequeue first
		if task, ok := l.queue.TryPop(); ok {
			l.runTask(task)
			continue
		}

		// No task ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			l.logger.Info("loop stopping: context cancelled", "tasks", l.clock.Current())
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel closes when the queue is closed, so this
			// case fires immediately once stopped.
			if l.queue.Closed() && l.queue.Len() == 0 {
				l.logger.Info("loop stopping: queue closed", "tasks", l.clock.Current())
				return nil
			}
		}
	}
}

func (l *Loop) runTask(task func()) {
	seq := l.clock.Next()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "seq", seq, "panic", fmt.Sprint(r))
		}
	}()
	task()
}

// Stop gracefully shuts down the loop.
// Tasks already posted still run; Run returns once they are drained.
func (l *Loop) Stop() {
	l.queue.Close()
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Processed returns the number of tasks run so far.
func (l *Loop) Processed() int64 {
	return l.clock.Current()
}
