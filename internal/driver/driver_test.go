package driver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/contract"
	"github.com/proofdex/proofdex/internal/proof"
)

func manifest(bound int, files ...string) *contract.Manifest {
	return &contract.Manifest{Project: "demo", Files: files, RoundBound: bound}
}

// delegateChain discharges obligations in main and delegates everything
// else upward, the way a checker behaves when only the outermost caller
// has enough context.
func delegateChain(t *testing.T) Checker {
	t.Helper()
	return CheckerFunc(func(ctx context.Context, req CheckRequest) (Verdict, error) {
		if req.Fn == "main" {
			return Verdict{
				Status:      proof.StatusDischarged,
				Deps:        proof.Dependencies{Invariants: []int{1}},
				Explanation: "argument is a checked literal",
			}, nil
		}
		return Verdict{Delegate: true, Explanation: "parameter unknown locally"}, nil
	})
}

// registerChain builds main -> f -> g where g dereferences its parameter.
func registerChain(t *testing.T, d *Driver) {
	t.Helper()
	_, err := d.AddFunction("main.c", "main", Body{Instrs: []Instr{Call{Line: 5, Callee: "f", Args: []string{"buf"}}}})
	require.NoError(t, err)
	_, err = d.AddFunction("lib.c", "f", Body{
		Params: []string{"p"},
		Instrs: []Instr{Call{Line: 12, Callee: "g", Args: []string{"p"}}},
	})
	require.NoError(t, err)
	_, err = d.AddFunction("lib.c", "g", Body{
		Params: []string{"p"},
		Instrs: []Instr{Deref{Line: 21, Ptr: "p"}},
	})
	require.NoError(t, err)
}

func TestRunConvergesAlongCallChain(t *testing.T) {
	d, err := New(Config{Manifest: manifest(12, "main.c", "lib.c"), Checker: delegateChain(t)})
	require.NoError(t, err)
	registerChain(t, d)

	res, err := d.Run(context.Background())
	require.NoError(t, err)

	// One round per delegation hop: g publishes, f relays, main discharges.
	assert.Equal(t, 3, res.Rounds)
	assert.Equal(t, 6, res.Discharged)
	assert.Zero(t, res.Open)
	assert.Zero(t, res.Violated)

	g, ok := d.Lookup("g")
	require.True(t, ok)
	assert.Equal(t, Converged, g.State)
	assert.Len(t, g.Proofs.InterfaceView().APIIDs, 2, "not-null and valid-mem delegated")

	f, ok := d.Lookup("f")
	require.True(t, ok)
	spos := f.Proofs.Callsites()[0].Obligations()
	require.Len(t, spos, 2)
	for _, o := range spos {
		assert.Equal(t, proof.StatusDischarged, o.Status)
		require.Len(t, o.Deps.Assumptions, 1)
		assert.True(t, strings.HasPrefix(o.Deps.Assumptions[0], "api:"))
	}
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	run := func() (*Driver, *Result) {
		d, err := New(Config{Manifest: manifest(12, "main.c", "lib.c"), Checker: delegateChain(t)})
		require.NoError(t, err)
		registerChain(t, d)
		res, err := d.Run(context.Background())
		require.NoError(t, err)
		return d, res
	}
	d1, r1 := run()
	d2, r2 := run()
	assert.Equal(t, r1, r2)

	for _, fn := range []string{"main", "f", "g"} {
		rep1, err := d1.Report(fn)
		require.NoError(t, err)
		rep2, err := d2.Report(fn)
		require.NoError(t, err)
		assert.Equal(t, rep1, rep2)
	}
}

func TestRunHitsRoundBound(t *testing.T) {
	d, err := New(Config{Manifest: manifest(2, "main.c", "lib.c"), Checker: delegateChain(t)})
	require.NoError(t, err)
	registerChain(t, d)

	_, err = d.Run(context.Background())
	require.Error(t, err)
	require.True(t, artifact.IsNonConvergence(err))
	var nc *artifact.NonConvergenceError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, 2, nc.Rounds)
	assert.Equal(t, []string{"main"}, nc.Dirty)

	// Converged callees keep their results.
	g, ok := d.Lookup("g")
	require.True(t, ok)
	for _, o := range g.Proofs.PPOs() {
		assert.Equal(t, proof.StatusDischarged, o.Status)
	}
}

func TestRunMutualRecursionConverges(t *testing.T) {
	d, err := New(Config{Manifest: manifest(12, "lib.c"), Checker: CheckerFunc(
		func(ctx context.Context, req CheckRequest) (Verdict, error) {
			if req.Obligation.APIID() >= 0 {
				return Verdict{Status: proof.StatusDischarged, Explanation: "recursive hypothesis"}, nil
			}
			return Verdict{Delegate: true}, nil
		})})
	require.NoError(t, err)

	_, err = d.AddFunction("lib.c", "even", Body{
		Params: []string{"n"},
		Instrs: []Instr{Deref{Line: 3, Ptr: "n"}, Call{Line: 4, Callee: "odd", Args: []string{"n"}}},
	})
	require.NoError(t, err)
	_, err = d.AddFunction("lib.c", "odd", Body{
		Params: []string{"n"},
		Instrs: []Instr{Call{Line: 9, Callee: "even", Args: []string{"n"}}},
	})
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Open)
	assert.LessOrEqual(t, res.Rounds, 4, "delegation is idempotent so the cycle settles")
}

func TestRunViolationIsRecorded(t *testing.T) {
	d, err := New(Config{Manifest: manifest(12, "main.c"), Checker: CheckerFunc(
		func(ctx context.Context, req CheckRequest) (Verdict, error) {
			if strings.Contains(req.Rendered, "not-zero") {
				return Verdict{Status: proof.StatusViolated, Explanation: "divisor may be zero"}, nil
			}
			return Verdict{Status: proof.StatusDischarged}, nil
		})})
	require.NoError(t, err)

	_, err = d.AddFunction("main.c", "main", Body{Instrs: []Instr{
		Divide{Line: 7, Divisor: "n"},
		IndexAccess{Line: 8, Base: "buf", Index: "i"},
	}})
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Violated)
	assert.Equal(t, 1, res.Discharged)

	rep, err := d.Report("main")
	require.NoError(t, err)
	assert.Contains(t, rep, "not-zero(n) (violated)")
	assert.Contains(t, rep, "in-bounds(buf[i]) (discharged)")
}

func TestRunUsesContractSummaries(t *testing.T) {
	m := manifest(12, "main.c", "string.c")
	m.Contracts = []contract.FileContract{{
		File: "string.c",
		Summaries: []contract.FunctionSummary{{
			Fn:      "memcpy_s",
			Assumes: []contract.AssumedPredicate{{Tag: "not-null", Arg: "dst"}},
		}},
	}}
	d, err := New(Config{Manifest: m, Checker: CheckerFunc(
		func(ctx context.Context, req CheckRequest) (Verdict, error) {
			return Verdict{Status: proof.StatusDischarged}, nil
		})})
	require.NoError(t, err)

	_, err = d.AddFunction("main.c", "main", Body{Instrs: []Instr{
		Call{Line: 14, Callee: "memcpy_s", Args: []string{"out", "in"}},
	}})
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discharged)

	main, ok := d.Lookup("main")
	require.True(t, ok)
	spos := main.Proofs.Callsites()[0].Obligations()
	require.Len(t, spos, 1)
	assert.Equal(t, 0, spos[0].APIID())
	assert.Equal(t, "memcpy_s", spos[0].Kind.(proof.CallsiteSupporting).Callee)
}

func TestRunHonorsCancellation(t *testing.T) {
	d, err := New(Config{Manifest: manifest(12, "main.c"), Checker: delegateChain(t)})
	require.NoError(t, err)
	_, err = d.AddFunction("main.c", "main", Body{Instrs: []Instr{Deref{Line: 2, Ptr: "p"}}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenObligationAccumulatesDiagnostics(t *testing.T) {
	d, err := New(Config{Manifest: manifest(12, "main.c"), Checker: CheckerFunc(
		func(ctx context.Context, req CheckRequest) (Verdict, error) {
			return Open(proof.Diagnostic{Msgs: []string{"no invariant for p"}}), nil
		})})
	require.NoError(t, err)
	_, err = d.AddFunction("main.c", "main", Body{Instrs: []Instr{Divide{Line: 2, Divisor: "p"}}})
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Open)

	main, _ := d.Lookup("main")
	o := main.Proofs.PPOs()[0]
	assert.True(t, o.IsOpen())
	assert.Equal(t, []string{"no invariant for p"}, o.Diagnostic.Msgs)
}

func TestAddFunctionRejectsUnknownFileAndDuplicates(t *testing.T) {
	d, err := New(Config{Manifest: manifest(12, "main.c"), Checker: delegateChain(t)})
	require.NoError(t, err)

	_, err = d.AddFunction("ghost.c", "f", Body{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the manifest")

	_, err = d.AddFunction("main.c", "main", Body{})
	require.NoError(t, err)
	_, err = d.AddFunction("main.c", "main", Body{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestSaveArtifactsWritesDocuments(t *testing.T) {
	l := artifact.NewLayout(t.TempDir())
	d, err := New(Config{Manifest: manifest(12, "main.c", "lib.c"), Checker: delegateChain(t)})
	require.NoError(t, err)
	registerChain(t, d)

	_, err = d.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.SaveArtifacts(l))

	var api artifact.InterfaceDocument
	require.NoError(t, artifact.ReadJSON(l.APIPath("lib.c", "g"), &api))
	assert.Len(t, api.APIIDs, 2)
	assert.NotEmpty(t, api.Digest)

	li, err := artifact.LoadLinkInfo(l, "demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, li.CallersOf("g"))
	home, ok := li.HomeOf("g")
	require.True(t, ok)
	assert.Equal(t, "lib.c", home)
}

func TestInvariantCheckerDischargesFromDocuments(t *testing.T) {
	layout := artifact.NewLayout(t.TempDir())
	require.NoError(t, artifact.SaveInvariants(layout, artifact.InvariantsDocument{
		File: "main.c",
		Fn:   "main",
		Invariants: []artifact.InvariantFact{
			{Index: 1, Predicate: "not-null(p)", Fact: "p derived from &buf[0]"},
		},
	}))

	d, err := New(Config{Manifest: manifest(12, "main.c"), Checker: NewInvariantChecker(layout)})
	require.NoError(t, err)
	_, err = d.AddFunction("main.c", "main", Body{Instrs: []Instr{Deref{Line: 4, Ptr: "p"}}})
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discharged, "not-null is backed by a fact")
	assert.Equal(t, 1, res.Open, "valid-mem has no fact")

	u, ok := d.Lookup("main")
	require.True(t, ok)
	for _, o := range u.Proofs.AllObligations() {
		if o.Status == proof.StatusDischarged {
			assert.Equal(t, []int{1}, o.Deps.Invariants)
			assert.Equal(t, "p derived from &buf[0]", o.Explanation)
		}
	}
}
