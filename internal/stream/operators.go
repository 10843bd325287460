package stream

// Map transforms every value of src with fn.
func Map[T, U any](src Source[T], fn func(T) U) Source[U] {
	return Func[U](func(obs Observer[U]) Cancel {
		return src.Subscribe(Observer[T]{
			Next:     func(v T) { obs.OnNext(fn(v)) },
			Error:    obs.OnError,
			Complete: obs.OnComplete,
		})
	})
}

// SkipWhile drops values while pred holds, then passes everything through.
func SkipWhile[T any](src Source[T], pred func(T) bool) Source[T] {
	return Func[T](func(obs Observer[T]) Cancel {
		skipping := true
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				if skipping && pred(v) {
					return
				}
				skipping = false
				obs.OnNext(v)
			},
			Error:    obs.OnError,
			Complete: obs.OnComplete,
		})
	})
}

// Take passes the first n values through, then completes and cancels src.
func Take[T any](src Source[T], n int) Source[T] {
	return Func[T](func(obs Observer[T]) Cancel {
		g := &guard[T]{obs: obs}
		if n <= 0 {
			g.complete()
			return noop
		}

		seen := 0
		var upstream Cancel
		cancel := src.Subscribe(Observer[T]{
			Next: func(v T) {
				if g.closed {
					return
				}
				seen++
				g.next(v)
				if seen >= n {
					g.complete()
					if upstream != nil {
						upstream()
					}
				}
			},
			Error:    func(err error) { g.error(err) },
			Complete: func() { g.complete() },
		})
		if g.closed {
			cancel()
			return noop
		}
		upstream = cancel
		return func() {
			g.closed = true
			cancel()
		}
	})
}

// SwitchMap maps every value of src to an inner source and mirrors the
// latest inner source only. A new outer value cancels the previous inner
// subscription. The result completes once src and the current inner source
// have both completed; an error from either side ends everything.
func SwitchMap[T, U any](src Source[T], project func(T) Source[U]) Source[U] {
	return Func[U](func(obs Observer[U]) Cancel {
		s := &switchState[T, U]{out: guard[U]{obs: obs}, project: project}
		outer := src.Subscribe(Observer[T]{
			Next:     s.outerNext,
			Error:    s.outerError,
			Complete: s.outerComplete,
		})
		if s.out.closed {
			outer()
			s.cancelInner()
			return noop
		}
		s.outer = outer
		return s.stop
	})
}

type switchState[T, U any] struct {
	out     guard[U]
	project func(T) Source[U]

	outer     Cancel
	outerDone bool

	inner       Cancel
	innerGen    uint64
	innerActive bool
}

func (s *switchState[T, U]) outerNext(v T) {
	if s.out.closed {
		return
	}
	s.cancelInner()

	s.innerGen++
	gen := s.innerGen
	s.innerActive = true

	current := func() bool { return !s.out.closed && s.innerGen == gen }
	cancel := s.project(v).Subscribe(Observer[U]{
		Next: func(u U) {
			if current() {
				s.out.next(u)
			}
		},
		Error: func(err error) {
			if current() {
				s.innerActive = false
				s.out.error(err)
				s.cancelOuter()
			}
		},
		Complete: func() {
			if current() {
				s.innerActive = false
				s.inner = nil
				if s.outerDone {
					s.out.complete()
				}
			}
		},
	})

	if current() && s.innerActive {
		s.inner = cancel
	} else {
		cancel()
	}
}

func (s *switchState[T, U]) outerError(err error) {
	if s.out.error(err) {
		s.cancelInner()
	}
}

func (s *switchState[T, U]) outerComplete() {
	s.outerDone = true
	if !s.innerActive {
		s.out.complete()
	}
}

func (s *switchState[T, U]) cancelInner() {
	s.innerGen++
	s.innerActive = false
	if inner := s.inner; inner != nil {
		s.inner = nil
		inner()
	}
}

func (s *switchState[T, U]) cancelOuter() {
	if outer := s.outer; outer != nil {
		s.outer = nil
		outer()
	}
}

func (s *switchState[T, U]) stop() {
	s.out.closed = true
	s.cancelInner()
	s.cancelOuter()
}

// CombineLatest emits a slice of the latest value of every source, in
// source order, each time any source emits once all of them have emitted
// at least once. It completes when every source has completed and fails
// as soon as any source fails.
func CombineLatest[T any](srcs ...Source[T]) Source[[]T] {
	return Func[[]T](func(obs Observer[[]T]) Cancel {
		g := &guard[[]T]{obs: obs}
		if len(srcs) == 0 {
			g.complete()
			return noop
		}

		values := make([]T, len(srcs))
		has := make([]bool, len(srcs))
		missing := len(srcs)
		remaining := len(srcs)
		cancels := make([]Cancel, 0, len(srcs))

		stopAll := func() {
			for _, c := range cancels {
				c()
			}
			cancels = nil
		}

		for i, src := range srcs {
			i, src := i, src
			if g.closed {
				break
			}
			c := src.Subscribe(Observer[T]{
				Next: func(v T) {
					if g.closed {
						return
					}
					values[i] = v
					if !has[i] {
						has[i] = true
						missing--
					}
					if missing == 0 {
						g.next(append([]T(nil), values...))
					}
				},
				Error: func(err error) {
					if g.error(err) {
						stopAll()
					}
				},
				Complete: func() {
					remaining--
					if remaining == 0 {
						g.complete()
					}
				},
			})
			cancels = append(cancels, c)
		}

		if g.closed {
			stopAll()
			return noop
		}
		return func() {
			g.closed = true
			stopAll()
		}
	})
}
