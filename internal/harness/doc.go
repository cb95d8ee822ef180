// Package harness runs form scenarios against a docstore.Service.
//
// Each scenario runs against a fresh in-memory SQLite store with a step
// clock and sequential ids, so the same scenario always produces the same
// documents, trace and summary.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	form:
//	  title: Poll
//	  template: feedback          # optional built-in or directory template
//	  settings: { allow_multiple: true }
//	  questions:
//	    - { id: q1, type: choice, text: Pick, options: [{value: a}, {value: b}] }
//	steps:
//	  - op: append
//	    as: r1
//	    respondent: { type: anonymous, fingerprint: fp-1 }
//	    answers: { q1: a }
//	  - op: append
//	    respondent: { type: anonymous, fingerprint: fp-1 }
//	    answers: { q1: b }
//	    expect: DUPLICATE_SUBMISSION
//	  - op: advance
//	    by: 24h
//	  - op: delete_response
//	    ref: r1
//	assertions:
//	  - type: response_count
//	    count: 0
//	  - type: index_valid
//
// Step ops: append, delete_response, delete_all, rebuild, advance.
// A step's expect is "ok" (the default) or a docstore error code.
//
// Assertion types: response_count, answer_counts, index_valid, by_date,
// score.
//
// # Golden Files
//
// RunWithGolden compares the trace and summary against
// testdata/golden/{name}.golden. To regenerate:
//
//	go test ./internal/harness -update
package harness
