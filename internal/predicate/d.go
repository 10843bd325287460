package predicate

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/livequery/internal/ir"
)

// E is one key/value member of a description.
type E struct {
	Key   string
	Value any
}

// D is an ordered query description.
//
// Keys are either column names or operators ("$lt", "$or", ...). Values are
// literals, nested D, slices ([]any or []D), *regexp.Regexp, or nil. Member
// order is preserved through parsing and serialization.
type D []E

// Members implements ir.Ordered.
func (d D) Members() []ir.Member {
	out := make([]ir.Member, len(d))
	for i, e := range d {
		out[i] = ir.Member{Key: e.Key, Value: e.Value}
	}
	return out
}

// Get returns the value of the first member named key.
func (d D) Get(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Parse decodes a JSON or YAML document into a D, keeping key order.
// An empty document yields an empty D.
func Parse(data []byte) (D, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	if node.Kind == 0 {
		return D{}, nil
	}
	v, err := FromNode(&node)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case nil:
		return D{}, nil
	case D:
		return val, nil
	default:
		return nil, fmt.Errorf("parse description: expected a mapping, got %T", v)
	}
}

// FromNode converts a decoded YAML node into description values: mappings
// become D, sequences []any, scalars their natural Go type.
func FromNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return FromNode(node.Content[0])

	case yaml.MappingNode:
		d := make(D, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", key.Line)
			}
			val, err := FromNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			d = append(d, E{Key: key.Value, Value: val})
		}
		return d, nil

	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			val, err := FromNode(child)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil

	case yaml.AliasNode:
		return FromNode(node.Alias)

	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", node.Line, node.Kind)
}
