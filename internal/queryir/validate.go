package queryir

import "fmt"

// ValidationResult lists structural problems found in a Select.
//
// Problems are things no backend can execute: unnamed columns, empty
// combinators hidden inside Not, Exists without a table. Leniency about
// unknown fields happens earlier, in the predicate compiler; by the time a
// tree reaches Validate it is expected to be well formed.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each defect in traversal order.
	Problems []string
}

// Validate checks a Select for structural defects.
//
// Validate is a pure function with no side effects.
func Validate(sel Select) ValidationResult {
	v := &validator{problems: []string{}}
	if sel.From == "" {
		v.addProblem("select has no source table")
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	if sel.Skip < 0 {
		v.addProblem("negative skip %d", sel.Skip)
	}
	for i, o := range sel.OrderBy {
		if o.Column == "" {
			v.addProblem("order term %d has no column", i)
		}
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
	v.validateIncludes(sel.Include)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateColumn(c Column) {
	if c.Name == "" {
		v.addProblem("column reference without a name (table %q)", c.Table)
	}
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Compare:
		v.validateColumn(pred.Column)
		if pred.Op < OpEq || pred.Op > OpGte {
			v.addProblem("invalid operator %s on %s", pred.Op, pred.Column)
		}
	case Between:
		v.validateColumn(pred.Column)
		if pred.Low == nil || pred.High == nil {
			v.addProblem("between on %s needs both bounds", pred.Column)
		}
	case In:
		v.validateColumn(pred.Column)
	case Match:
		v.validateColumn(pred.Column)
	case Null:
		v.validateColumn(pred.Column)
	case ColumnCompare:
		v.validateColumn(pred.Left)
		v.validateColumn(pred.Right)
	case Exists:
		if pred.Table == "" {
			v.addProblem("exists without a table")
		}
		if pred.Filter != nil {
			v.validatePredicate(pred.Filter)
		}
	case And:
		for _, child := range pred.Predicates {
			v.validateChild("and", child)
		}
	case Or:
		for _, child := range pred.Predicates {
			v.validateChild("or", child)
		}
	case Not:
		v.validateChild("not", pred.Predicate)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateIncludes(incs []Include) {
	for i, inc := range incs {
		if inc.Table == "" {
			v.addProblem("include %d has no table", i)
		}
		if inc.As == "" {
			v.addProblem("include %d has no name", i)
		}
		if inc.Join != nil {
			v.validatePredicate(inc.Join)
		}
		v.validateIncludes(inc.Include)
	}
}

func (v *validator) validateChild(parent string, child Predicate) {
	if child == nil {
		v.addProblem("nil operand inside %s", parent)
		return
	}
	v.validatePredicate(child)
}

// Columns returns every column referenced by p, in traversal order,
// without duplicates.
func Columns(p Predicate) []Column {
	seen := make(map[Column]bool)
	var out []Column
	var walk func(Predicate)
	add := func(c Column) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case Compare:
			add(pred.Column)
		case Between:
			add(pred.Column)
		case In:
			add(pred.Column)
		case Match:
			add(pred.Column)
		case Null:
			add(pred.Column)
		case ColumnCompare:
			add(pred.Left)
			add(pred.Right)
		case Exists:
			walk(pred.Filter)
		case And:
			for _, c := range pred.Predicates {
				walk(c)
			}
		case Or:
			for _, c := range pred.Predicates {
				walk(c)
			}
		case Not:
			walk(pred.Predicate)
		}
	}
	walk(p)
	return out
}
