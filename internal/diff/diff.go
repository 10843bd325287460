// Package diff computes identity-matched edit scripts between two ordered
// result sets.
//
// Ops are replayable: applying them in order to the previous result set
// reproduces the next one exactly. Indices are only meaningful under that
// sequential application.
package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Row is one result row: column name to value.
type Row = map[string]any

// Kind is the type of an edit.
type Kind int

const (
	Insert Kind = iota + 1
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Op is one edit.
//
//   - Insert: Value is the full row inserted at Index.
//   - Update: Value holds only the fields whose value changed; Removed lists
//     fields the row no longer has. Index is the row's position.
//   - Delete: Value is the row removed from Index.
type Op struct {
	Kind    Kind
	Index   int
	Value   Row
	Removed []string
}

// Ops is an ordered edit script.
type Ops []Op

// Diff returns the edits that turn prev into next, matching rows by the
// value of their pk field.
//
// Deletes come first, highest index first, followed by a single forward
// pass over next emitting inserts and updates. A row whose identity moved
// is expressed as a delete plus an insert. Rows without an identity value
// never match anything.
//
// Diff is a pure function; the result is never nil.
func Diff(prev, next []Row, pk string) Ops {
	ops := Ops{}

	prevKeys := keys(prev, pk, "prev")
	nextKeys := keys(next, pk, "next")

	inNext := make(map[string]struct{}, len(nextKeys))
	for _, k := range nextKeys {
		inNext[k] = struct{}{}
	}

	// Deletes, descending so earlier indices stay valid.
	deleted := make([]bool, len(prev))
	for i := len(prev) - 1; i >= 0; i-- {
		if _, ok := inNext[prevKeys[i]]; !ok {
			ops = append(ops, Op{Kind: Delete, Index: i, Value: prev[i]})
			deleted[i] = true
		}
	}

	type entry struct {
		key string
		row Row
	}
	work := make([]entry, 0, len(prev))
	for i, row := range prev {
		if !deleted[i] {
			work = append(work, entry{key: prevKeys[i], row: row})
		}
	}

	for j, row := range next {
		key := nextKeys[j]

		if j < len(work) && work[j].key == key {
			changed, removed := changes(work[j].row, row)
			if len(changed) > 0 || len(removed) > 0 {
				ops = append(ops, Op{Kind: Update, Index: j, Value: changed, Removed: removed})
			}
			work[j].row = row
			continue
		}

		// Moved from a later position: remove it there first.
		for k := j + 1; k < len(work); k++ {
			if work[k].key == key {
				ops = append(ops, Op{Kind: Delete, Index: k, Value: work[k].row})
				work = append(work[:k], work[k+1:]...)
				break
			}
		}

		ops = append(ops, Op{Kind: Insert, Index: j, Value: row})
		work = append(work, entry{})
		copy(work[j+1:], work[j:])
		work[j] = entry{key: key, row: row}
	}

	// Leftovers only exist when next repeats an identity.
	for i := len(work) - 1; i >= len(next); i-- {
		ops = append(ops, Op{Kind: Delete, Index: i, Value: work[i].row})
	}

	return ops
}

// keys returns an identity string per row. Rows without an identity get a
// positional key unique to their side so they never match.
func keys(rows []Row, pk, side string) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		v, ok := row[pk]
		if !ok || v == nil {
			out[i] = fmt.Sprintf("\x00%s:%d", side, i)
			continue
		}
		out[i] = rowKey(v)
	}
	return out
}

// rowKey encodes an identity value; JSON keeps "1" and 1 distinct.
func rowKey(v any) string {
	keyJSON, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(keyJSON)
}

// changes returns the fields of next that differ from prev and the fields
// of prev missing from next, sorted.
func changes(prev, next Row) (Row, []string) {
	var changed Row
	for k, v := range next {
		old, ok := prev[k]
		if ok && reflect.DeepEqual(old, v) {
			continue
		}
		if changed == nil {
			changed = Row{}
		}
		changed[k] = v
	}

	var removed []string
	for k := range prev {
		if _, ok := next[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(removed)
	return changed, removed
}
