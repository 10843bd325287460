// Package harness runs live-query scenarios against a real database.
//
// A scenario defines tables from CUE schema files, seeds them, opens live
// queries ("watches") and then performs a flow of writes. Every write and
// every emission it causes is recorded in a trace, which can be compared
// against a golden file.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema:
//	  - schema.cue
//	setup:
//	  - op: insert
//	    table: Task
//	    rows: [{_id: a, rank: 1}]
//	watch:
//	  - name: open
//	    table: Task
//	    where: {done: false}
//	    order_by: [{column: rank}]
//	flow:
//	  - op: update
//	    table: Task
//	    where: {_id: a}
//	    set: {done: true}
//	    expect: {update: 1}
//	assertions:
//	  - type: final_rows
//	    watch: open
//	    rows: []
//	  - type: ops_count
//	    watch: open
//	    kind: delete
//	    count: 1
//
// Where clauses are decoded with their key order intact, so they mean
// exactly what Database.Get would make of the same description.
//
// # Assertion Types
//
//   - final_rows: the watch's last result, subset-matched row by row
//   - emission_count: how many times the watch emitted
//   - ops_count: how many ops of one kind the watch produced
//   - final_state: a one-shot query after the flow
//
// Every emission is also checked against its predecessor: applying the
// emitted ops to the previous result must reproduce the new result.
//
// # Deterministic Traces
//
// Writes run one at a time and each is followed by reading exactly one
// emission from every watch on the written table, so the trace order does
// not depend on scheduling. Sequence numbers come from a resettable
// logical clock.
package harness
