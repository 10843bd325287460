package selector

import (
	"reflect"

	"github.com/roach88/livequery/internal/stream"
)

// Concat returns a selector emitting the results of s followed by the
// results of others, in argument order. It emits once every member has a
// result and again whenever any member changes.
func (s *Selector) Concat(others ...*Selector) *Selector {
	return s.compose(others, func(results [][]Row) []Row {
		var out []Row
		for _, rows := range results {
			out = append(out, rows...)
		}
		if out == nil {
			out = []Row{}
		}
		return out
	})
}

// Combine is Concat with identity reconciliation: a row whose primary key
// was already seen replaces the earlier row in place, so later members win.
// Rows without a primary key value are always appended.
func (s *Selector) Combine(others ...*Selector) *Selector {
	pk := s.pk
	return s.compose(others, func(results [][]Row) []Row {
		out := []Row{}
		index := make(map[any]int)
		for _, rows := range results {
			for _, row := range rows {
				key, ok := identity(row, pk)
				if !ok {
					out = append(out, row)
					continue
				}
				if i, seen := index[key]; seen {
					out[i] = row
					continue
				}
				index[key] = len(out)
				out = append(out, row)
			}
		}
		return out
	})
}

func (s *Selector) compose(others []*Selector, merge func([][]Row) []Row) *Selector {
	srcs := make([]stream.Source[[]Row], 0, len(others)+1)
	srcs = append(srcs, s.source)
	for _, o := range others {
		srcs = append(srcs, o.source)
	}
	combined := stream.Map(stream.CombineLatest(srcs...), merge)
	return s.derive(stream.NewReplay(combined))
}

// identity returns the row's primary key value if it can key a map.
func identity(row Row, pk string) (any, bool) {
	v, ok := row[pk]
	if !ok || v == nil {
		return nil, false
	}
	if !reflect.TypeOf(v).Comparable() {
		return nil, false
	}
	return v, true
}
