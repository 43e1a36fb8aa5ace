package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden-file form of a scenario run.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Rounds   int          `json:"rounds"`
	Dirty    []string     `json:"dirty,omitempty"` // still dirty on non-convergence
	Trace    []TraceEvent `json:"trace"`
	Reports  []string     `json:"reports"`
}

// RunWithGolden executes the scenario and compares its trace against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	res, err := Run(s)
	if err != nil {
		t.Fatalf("run scenario %s: %v", s.Name, err)
	}

	snap := Snapshot{
		Scenario: s.Name,
		Rounds:   res.Rounds,
		Trace:    res.Trace,
		Reports:  res.Reports,
	}
	if res.NonConvergence != nil {
		snap.Dirty = res.NonConvergence.Dirty
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("encode snapshot: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)
	return res
}
