package harness

import (
	"github.com/roach88/livequery/internal/ir"
)

// Trace event types.
const (
	EventWrite    = "write"
	EventEmission = "emission"
)

// TraceEvent is one write or one live-query emission.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// Write fields.
	Op     string  `json:"op,omitempty"`
	Table  string  `json:"table,omitempty"`
	Counts *Counts `json:"counts,omitempty"`
	Error  string  `json:"error,omitempty"`

	// Emission fields.
	Watch string           `json:"watch,omitempty"`
	Rows  []map[string]any `json:"rows,omitempty"`
	Ops   []OpEvent        `json:"ops,omitempty"`
}

// Members renders the event in a fixed key order for golden files.
func (e TraceEvent) Members() []ir.Member {
	members := []ir.Member{
		{Key: "seq", Value: e.Seq},
		{Key: "type", Value: e.Type},
	}
	switch e.Type {
	case EventWrite:
		members = append(members,
			ir.Member{Key: "op", Value: e.Op},
			ir.Member{Key: "table", Value: e.Table},
		)
		if e.Counts != nil {
			members = append(members, ir.Member{Key: "counts", Value: *e.Counts})
		}
		if e.Error != "" {
			members = append(members, ir.Member{Key: "error", Value: e.Error})
		}
	case EventEmission:
		rows := make([]any, len(e.Rows))
		for i, r := range e.Rows {
			rows[i] = r
		}
		ops := make([]any, len(e.Ops))
		for i, op := range e.Ops {
			ops[i] = op
		}
		members = append(members,
			ir.Member{Key: "watch", Value: e.Watch},
			ir.Member{Key: "rows", Value: rows},
			ir.Member{Key: "ops", Value: ops},
		)
		if e.Error != "" {
			members = append(members, ir.Member{Key: "error", Value: e.Error})
		}
	}
	return members
}

// Counts is the row count of a write.
type Counts struct {
	Insert int `json:"insert"`
	Update int `json:"update"`
	Delete int `json:"delete"`
}

// Members implements ir.Ordered.
func (c Counts) Members() []ir.Member {
	return []ir.Member{
		{Key: "insert", Value: c.Insert},
		{Key: "update", Value: c.Update},
		{Key: "delete", Value: c.Delete},
	}
}

// OpEvent is one op of an emission.
type OpEvent struct {
	Kind    string         `json:"kind"`
	Index   int            `json:"index"`
	Value   map[string]any `json:"value"`
	Removed []string       `json:"removed,omitempty"`
}

// Members implements ir.Ordered.
func (o OpEvent) Members() []ir.Member {
	members := []ir.Member{
		{Key: "kind", Value: o.Kind},
		{Key: "index", Value: o.Index},
		{Key: "value", Value: o.Value},
	}
	if len(o.Removed) > 0 {
		removed := make([]any, len(o.Removed))
		for i, r := range o.Removed {
			removed[i] = r
		}
		members = append(members, ir.Member{Key: "removed", Value: removed})
	}
	return members
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every write matched its expect clause and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every traced write and emission in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final holds each watch's last result, by watch name.
	Final map[string][]map[string]any `json:"final,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  make(map[string][]map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddWriteTrace adds a write to the trace.
func (r *Result) AddWriteTrace(seq int64, step Step, counts *Counts, err error) {
	ev := TraceEvent{
		Seq:    seq,
		Type:   EventWrite,
		Op:     step.Op,
		Table:  step.Table,
		Counts: counts,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.Trace = append(r.Trace, ev)
}

// AddEmissionTrace adds a live-query emission to the trace.
func (r *Result) AddEmissionTrace(seq int64, watch string, rows []map[string]any, ops []OpEvent, err error) {
	ev := TraceEvent{
		Seq:   seq,
		Type:  EventEmission,
		Watch: watch,
		Rows:  rows,
		Ops:   ops,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.Trace = append(r.Trace, ev)
}

// Emissions returns the watch's emissions in order.
func (r *Result) Emissions(watch string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventEmission && ev.Watch == watch {
			out = append(out, ev)
		}
	}
	return out
}
