// Package predicate compiles declarative query descriptions into predicate
// trees.
//
// Compilation is lenient: unknown columns, unknown operators, nil operands
// and malformed operands are skipped rather than reported. A description
// that compiles to nothing yields a nil predicate, which matches every row.
package predicate

import (
	"reflect"
	"regexp"
	"time"

	"github.com/roach88/livequery/internal/queryir"
	"github.com/roach88/livequery/internal/schema"
)

// Operator keys.
const (
	OpEq        = "$eq"
	OpNe        = "$ne"
	OpLt        = "$lt"
	OpLte       = "$lte"
	OpGt        = "$gt"
	OpGte       = "$gte"
	OpBetween   = "$between"
	OpIn        = "$in"
	OpMatch     = "$match"
	OpNotMatch  = "$notMatch"
	OpHas       = "$has"
	OpIsNull    = "$isNull"
	OpIsNotNull = "$isNotNull"
	OpAnd       = "$and"
	OpOr        = "$or"
	OpNot       = "$not"
)

var compareOps = map[string]queryir.CompareOp{
	OpEq:  queryir.OpEq,
	OpNe:  queryir.OpNe,
	OpLt:  queryir.OpLt,
	OpLte: queryir.OpLte,
	OpGt:  queryir.OpGt,
	OpGte: queryir.OpGte,
}

// Compile builds the predicate tree for d against table.
//
// reg resolves association targets; it may be nil, in which case
// association keys are skipped. Returns nil when table is nil or nothing in
// d compiles.
func Compile(table *schema.Table, reg *schema.Registry, d D) queryir.Predicate {
	if table == nil || len(d) == 0 {
		return nil
	}
	c := &compiler{reg: reg}
	return c.document(table, d)
}

type compiler struct {
	reg *schema.Registry
}

// document compiles a top-level description. Members are conjoined.
func (c *compiler) document(t *schema.Table, d D) queryir.Predicate {
	preds := make([]queryir.Predicate, 0, len(d))
	for _, e := range d {
		if e.Value == nil {
			continue
		}
		switch e.Key {
		case OpAnd:
			preds = append(preds, queryir.All(c.junction(t, e.Value)...))
		case OpOr:
			preds = append(preds, queryir.Any(c.junction(t, e.Value)...))
		case OpNot:
			if sub, ok := e.Value.(D); ok {
				preds = append(preds, negate(c.document(t, sub)))
			}
		default:
			preds = append(preds, c.field(t, e.Key, e.Value))
		}
	}
	return queryir.All(preds...)
}

// junction compiles the operand of a top-level $and/$or. A mapping makes
// each member its own child; a list makes each element a sub-query.
func (c *compiler) junction(t *schema.Table, v any) []queryir.Predicate {
	var out []queryir.Predicate
	switch val := v.(type) {
	case D:
		for _, e := range val {
			out = append(out, c.document(t, D{e}))
		}
	default:
		for _, item := range sliceOf(v) {
			if sub, ok := item.(D); ok {
				out = append(out, c.document(t, sub))
			}
		}
	}
	return out
}

// field compiles the value attached to a column name.
func (c *compiler) field(t *schema.Table, name string, v any) queryir.Predicate {
	col, ok := t.Column(name)
	if !ok {
		return nil
	}
	if col.IsVirtual() {
		return c.association(t, col, v)
	}

	ref := t.Col(name)
	switch val := v.(type) {
	case D:
		return c.operators(col, ref, val)
	case *regexp.Regexp:
		return matchOf(col, ref, val, false)
	}
	if isLiteral(v) {
		return queryir.Compare{Column: ref, Op: queryir.OpEq, Value: v}
	}
	return nil
}

// association compiles a nested description against the target table of a
// virtual column. Targets that are not registered yet are skipped.
func (c *compiler) association(t *schema.Table, col *schema.Column, v any) queryir.Predicate {
	sub, ok := v.(D)
	if !ok {
		return nil
	}
	target, ok := c.reg.Lookup(col.Virtual.Name)
	if !ok {
		return nil
	}
	nested := c.document(target, sub)
	if nested == nil {
		return nil
	}
	var join queryir.Predicate
	if col.Virtual.Where != nil {
		join = col.Virtual.Where(target)
	}
	return queryir.Exists{Table: target.Name, Filter: queryir.All(join, nested)}
}

// operators compiles an operator mapping applied to one column. Members are
// conjoined.
func (c *compiler) operators(col *schema.Column, ref queryir.Column, d D) queryir.Predicate {
	preds := make([]queryir.Predicate, 0, len(d))
	for _, e := range d {
		if e.Value == nil {
			continue
		}
		preds = append(preds, c.operator(col, ref, e.Key, e.Value))
	}
	return queryir.All(preds...)
}

func (c *compiler) operator(col *schema.Column, ref queryir.Column, op string, v any) queryir.Predicate {
	if cmp, ok := compareOps[op]; ok {
		if !isLiteral(v) {
			return nil
		}
		return queryir.Compare{Column: ref, Op: cmp, Value: v}
	}

	switch op {
	case OpAnd:
		return queryir.All(c.fieldJunction(col, ref, v)...)

	case OpOr:
		return queryir.Any(c.fieldJunction(col, ref, v)...)

	case OpNot:
		if sub, ok := v.(D); ok {
			return negate(c.operators(col, ref, sub))
		}
		if isLiteral(v) {
			return queryir.Not{Predicate: queryir.Compare{Column: ref, Op: queryir.OpEq, Value: v}}
		}
		return nil

	case OpBetween:
		bounds := sliceOf(v)
		if len(bounds) != 2 || !isOrderable(bounds[0]) || !isOrderable(bounds[1]) {
			return nil
		}
		return queryir.Between{Column: ref, Low: bounds[0], High: bounds[1]}

	case OpIn:
		values := sliceOf(v)
		if values == nil {
			return nil
		}
		return queryir.In{Column: ref, Values: values}

	case OpMatch, OpNotMatch:
		return matchOf(col, ref, v, op == OpNotMatch)

	case OpHas:
		s, ok := v.(string)
		if !ok || col.Type != schema.String {
			return nil
		}
		return queryir.Match{Column: ref, Pattern: regexp.QuoteMeta(s) + `\b`}

	case OpIsNull, OpIsNotNull:
		b, ok := v.(bool)
		if !ok {
			return nil
		}
		isNull := b == (op == OpIsNull)
		return queryir.Null{Column: ref, Negate: !isNull}
	}
	return nil
}

// fieldJunction compiles the operand of a field-level $and/$or: either an
// operator mapping (each operator its own child) or a list of mappings.
func (c *compiler) fieldJunction(col *schema.Column, ref queryir.Column, v any) []queryir.Predicate {
	var out []queryir.Predicate
	switch val := v.(type) {
	case D:
		for _, e := range val {
			if e.Value == nil {
				continue
			}
			out = append(out, c.operator(col, ref, e.Key, e.Value))
		}
	default:
		for _, item := range sliceOf(v) {
			if sub, ok := item.(D); ok {
				out = append(out, c.operators(col, ref, sub))
			}
		}
	}
	return out
}

// matchOf builds a regular expression test. Only string columns can match;
// the pattern may be a compiled *regexp.Regexp or its source text.
func matchOf(col *schema.Column, ref queryir.Column, v any, negate bool) queryir.Predicate {
	if col.Type != schema.String {
		return nil
	}
	var pattern string
	switch p := v.(type) {
	case *regexp.Regexp:
		if p == nil {
			return nil
		}
		pattern = p.String()
	case string:
		if _, err := regexp.Compile(p); err != nil {
			return nil
		}
		pattern = p
	default:
		return nil
	}
	return queryir.Match{Column: ref, Pattern: pattern, Negate: negate}
}

func negate(p queryir.Predicate) queryir.Predicate {
	if p == nil {
		return nil
	}
	return queryir.Not{Predicate: p}
}

// isLiteral reports whether v can be bound as a single SQL parameter.
func isLiteral(v any) bool {
	switch v.(type) {
	case nil, D, *regexp.Regexp:
		return false
	case string, bool, time.Time, []byte:
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return isNumberKind(k)
}

// isOrderable reports whether v is a valid range bound.
func isOrderable(v any) bool {
	switch v.(type) {
	case time.Time, string:
		return true
	}
	if v == nil {
		return false
	}
	return isNumberKind(reflect.ValueOf(v).Kind())
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// sliceOf converts any slice or array (other than strings and bytes) to
// []any. Returns nil for anything else.
func sliceOf(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case D, []byte, string, nil:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
