package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/formdoc/internal/canonical"
	"github.com/roach88/formdoc/internal/docstore"
)

// Snapshot is what a golden file records for a scenario run.
type Snapshot struct {
	Scenario string            `json:"scenario"`
	Trace    []TraceEvent      `json:"trace"`
	Summary  *docstore.Summary `json:"summary"`
}

// SnapshotJSON returns the canonical JSON snapshot of a result.
func SnapshotJSON(name string, result *Result) ([]byte, error) {
	return canonical.Marshal(Snapshot{
		Scenario: name,
		Trace:    result.Trace,
		Summary:  result.Summary,
	})
}

// RunWithGolden executes a scenario and compares its trace and summary
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
