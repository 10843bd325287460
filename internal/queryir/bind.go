package queryir

// Bind replaces every column of table referenced by p with the matching
// value of row. A ColumnCompare with one side on table becomes a Compare
// of the other side against the value; a missing value binds as nil, which
// SQL never matches. Predicates without such references are returned as is.
func Bind(p Predicate, table string, row map[string]any) Predicate {
	switch pred := p.(type) {
	case ColumnCompare:
		switch {
		case pred.Right.Table == table && pred.Left.Table != table:
			return Compare{Column: pred.Left, Op: pred.Op, Value: row[pred.Right.Name]}
		case pred.Left.Table == table && pred.Right.Table != table:
			return Compare{Column: pred.Right, Op: pred.Op.Flip(), Value: row[pred.Left.Name]}
		}
		return pred
	case Exists:
		if pred.Filter == nil {
			return pred
		}
		return Exists{Table: pred.Table, Filter: Bind(pred.Filter, table, row)}
	case And:
		out := make([]Predicate, len(pred.Predicates))
		for i, c := range pred.Predicates {
			out[i] = Bind(c, table, row)
		}
		return And{Predicates: out}
	case Or:
		out := make([]Predicate, len(pred.Predicates))
		for i, c := range pred.Predicates {
			out[i] = Bind(c, table, row)
		}
		return Or{Predicates: out}
	case Not:
		return Not{Predicate: Bind(pred.Predicate, table, row)}
	}
	return p
}

// Flip returns the operator with its operands swapped: a < b is b > a.
func (op CompareOp) Flip() CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLte:
		return OpGte
	case OpGt:
		return OpLt
	case OpGte:
		return OpLte
	default:
		return op
	}
}

// OuterColumns lists the columns of table that p reads, by name.
func OuterColumns(p Predicate, table string) []string {
	var out []string
	for _, c := range Columns(p) {
		if c.Table == table {
			out = append(out, c.Name)
		}
	}
	return out
}
