package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/livequery"
	"github.com/roach88/livequery/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case EventWrite:
				fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Op, event.Table)
			case EventEmission:
				fmt.Fprintf(&buf, "  [%d] %s: %d rows, %d ops\n", event.Seq, event.Watch, len(event.Rows), len(event.Ops))
			}
		}
	}

	return buf.String()
}

// AssertionContext provides database access for final_state assertions.
type AssertionContext struct {
	DB  *livequery.Database
	Ctx context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalRows:
			err = assertFinalRows(result, assertion)
		case AssertEmissionCount:
			err = assertEmissionCount(result, assertion)
		case AssertOpsCount:
			err = assertOpsCount(result, assertion)
		case AssertFinalState:
			if actx == nil || actx.DB == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.DB, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertFinalRows checks the watch's last result.
func assertFinalRows(result *Result, a Assertion) error {
	rows, ok := result.Final[a.Watch]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalRows,
			Expected: fmt.Sprintf("watch %q to have emitted", a.Watch),
			Actual:   "no result",
			Trace:    result.Trace,
		}
	}
	if msg := matchRows(rows, a); msg != "" {
		return &AssertionError{
			Type:     AssertFinalRows,
			Expected: fmt.Sprintf("watch %q: %s", a.Watch, formatRows(a.Rows)),
			Actual:   msg,
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEmissionCount checks how many times the watch emitted.
func assertEmissionCount(result *Result, a Assertion) error {
	got := len(result.Emissions(a.Watch))
	if got != *a.Count {
		return &AssertionError{
			Type:     AssertEmissionCount,
			Expected: fmt.Sprintf("watch %q to emit %d time(s)", a.Watch, *a.Count),
			Actual:   fmt.Sprintf("emitted %d time(s)", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertOpsCount totals the watch's ops of one kind across every emission.
func assertOpsCount(result *Result, a Assertion) error {
	got := 0
	for _, ev := range result.Emissions(a.Watch) {
		for _, op := range ev.Ops {
			if op.Kind == a.Kind {
				got++
			}
		}
	}
	if got != *a.Count {
		return &AssertionError{
			Type:     AssertOpsCount,
			Expected: fmt.Sprintf("watch %q to produce %d %s op(s)", a.Watch, *a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d %s op(s)", got, a.Kind),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState runs a one-shot query and checks its rows.
func assertFinalState(ctx context.Context, db *livequery.Database, a Assertion) error {
	where, err := parseWhere(&a.Where)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", a.Table, err)
	}

	rows, err := db.Get(a.Table, livequery.Query{Where: where}).Values(ctx)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", a.Table, err)
	}

	plain := make([]map[string]any, len(rows))
	for i, r := range rows {
		plain[i] = r
	}
	if msg := matchRows(plain, a); msg != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("table %s: %s", a.Table, formatRows(a.Rows)),
			Actual:   msg,
		}
	}
	return nil
}

// matchRows applies the Count and Rows checks of a. Returns "" on match.
func matchRows(rows []map[string]any, a Assertion) string {
	if a.Count != nil && len(rows) != *a.Count {
		return fmt.Sprintf("%d row(s), want %d", len(rows), *a.Count)
	}
	if a.Rows == nil {
		return ""
	}
	if len(rows) != len(a.Rows) {
		return fmt.Sprintf("%d row(s): %s", len(rows), formatRows(rows))
	}
	for i, want := range a.Rows {
		if !matchRow(rows[i], want) {
			return fmt.Sprintf("row %d is %s", i, formatRows(rows[i:i+1]))
		}
	}
	return ""
}

// matchRow checks that actual contains every expected field (subset match).
func matchRow(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists && want != nil {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values by their canonical encoding, so an int
// from a scenario file equals the int64 SQLite returns and nested objects
// compare regardless of key order.
func valuesEqual(actual, expected any) bool {
	a, err := ir.MarshalOrdered(actual)
	if err != nil {
		return false
	}
	e, err := ir.MarshalOrdered(expected)
	if err != nil {
		return false
	}
	return bytes.Equal(a, e)
}

// rowsEqual compares two results row by row.
func rowsEqual(a, b []map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func formatRows(rows []map[string]any) string {
	list := make([]any, len(rows))
	for i, r := range rows {
		list[i] = r
	}
	data, err := ir.MarshalOrdered(list)
	if err != nil {
		return fmt.Sprintf("%v", rows)
	}
	return string(data)
}
