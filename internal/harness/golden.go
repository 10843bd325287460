package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/livequery/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// Members implements ir.Ordered.
func (s TraceSnapshot) Members() []ir.Member {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = ev
	}
	return []ir.Member{
		{Key: "scenario_name", Value: s.ScenarioName},
		{Key: "trace", Value: trace},
	}
}

// Snapshot renders the result's trace as the canonical bytes stored in
// golden files.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalOrdered(TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	})
}

// AssertGolden compares the given result's trace against the golden file
// name in dir. Run the tests with -update to regenerate it.
func AssertGolden(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
