package diff

import "fmt"

// Apply replays ops against prev and returns the resulting rows. prev is
// not modified; updated rows are fresh maps.
func Apply(prev []Row, ops Ops) ([]Row, error) {
	out := make([]Row, len(prev))
	copy(out, prev)

	for i, op := range ops {
		switch op.Kind {
		case Insert:
			if op.Index < 0 || op.Index > len(out) {
				return nil, fmt.Errorf("op %d: insert index %d out of range [0,%d]", i, op.Index, len(out))
			}
			out = append(out, nil)
			copy(out[op.Index+1:], out[op.Index:])
			out[op.Index] = op.Value

		case Update:
			if op.Index < 0 || op.Index >= len(out) {
				return nil, fmt.Errorf("op %d: update index %d out of range [0,%d)", i, op.Index, len(out))
			}
			merged := make(Row, len(out[op.Index])+len(op.Value))
			for k, v := range out[op.Index] {
				merged[k] = v
			}
			for k, v := range op.Value {
				merged[k] = v
			}
			for _, k := range op.Removed {
				delete(merged, k)
			}
			out[op.Index] = merged

		case Delete:
			if op.Index < 0 || op.Index >= len(out) {
				return nil, fmt.Errorf("op %d: delete index %d out of range [0,%d)", i, op.Index, len(out))
			}
			out = append(out[:op.Index], out[op.Index+1:]...)

		default:
			return nil, fmt.Errorf("op %d: unknown kind %s", i, op.Kind)
		}
	}
	return out, nil
}
