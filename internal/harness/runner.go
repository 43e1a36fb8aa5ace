package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/driver"
	"github.com/proofdex/proofdex/internal/ir"
	"github.com/proofdex/proofdex/internal/ledger"
	"github.com/proofdex/proofdex/internal/proof"
)

// TraceEvent records one checker consultation.
type TraceEvent struct {
	Round   int    `json:"round"`
	Fn      string `json:"fn"`
	PO      string `json:"po"`
	Verdict string `json:"verdict"`
}

// Result is a completed scenario run: the checks in the order they
// happened plus the final per-function reports and status tallies.
type Result struct {
	Rounds  int
	Trace   []TraceEvent
	Reports []string

	Open       int
	Discharged int
	Violated   int
	Dead       int

	// NonConvergence is set when the round bound was hit; the trace and
	// reports up to that point are still populated.
	NonConvergence *artifact.NonConvergenceError
}

// Options attach optional collaborators to a scenario run.
type Options struct {
	// Ledger, when set, records every round's statuses.
	Ledger *ledger.Ledger
	// SaveTo, when set, writes the run's artifacts under the layout.
	SaveTo *artifact.Layout
}

// Run executes the scenario to convergence.
func Run(s *Scenario) (*Result, error) {
	return RunWithOptions(s, Options{})
}

// RunWithOptions executes the scenario with attached collaborators.
func RunWithOptions(s *Scenario, opts Options) (*Result, error) {
	res := &Result{}

	checker := driver.CheckerFunc(func(ctx context.Context, req driver.CheckRequest) (driver.Verdict, error) {
		rule, matched := matchRule(s.Verdicts, req)
		action := "open"
		if matched {
			action = rule.Action
		}
		res.Trace = append(res.Trace, TraceEvent{
			Round:   req.Round,
			Fn:      req.Fn,
			PO:      req.Rendered,
			Verdict: action,
		})
		return verdictFor(action, rule.Explanation), nil
	})

	d, err := driver.New(driver.Config{Manifest: s.manifest(), Checker: checker, Ledger: opts.Ledger})
	if err != nil {
		return nil, err
	}
	for _, f := range s.Functions {
		body, err := buildBody(f)
		if err != nil {
			return nil, err
		}
		u, err := d.AddFunction(f.File, f.Fn, body)
		if err != nil {
			return nil, err
		}
		for _, p := range f.Interface {
			ex, err := u.Proofs.Dictionary().Intern("expressions", []string{ir.TagVar, p.Arg}, nil)
			if err != nil {
				return nil, err
			}
			if _, err := u.Proofs.AddInterfacePredicate([]string{p.Tag}, ir.AppendRef(nil, ir.Local(ex))); err != nil {
				return nil, err
			}
		}
	}

	runRes, err := d.Run(context.Background())
	var nc *artifact.NonConvergenceError
	switch {
	case err == nil:
		res.Rounds = runRes.Rounds
	case errors.As(err, &nc):
		res.NonConvergence = nc
		res.Rounds = nc.Rounds
	default:
		return nil, err
	}

	for _, f := range s.Functions {
		rep, err := d.Report(f.Fn)
		if err != nil {
			return nil, err
		}
		res.Reports = append(res.Reports, rep)
	}
	for _, u := range d.Units() {
		for _, o := range u.Proofs.AllObligations() {
			switch o.Status {
			case proof.StatusOpen:
				res.Open++
			case proof.StatusDischarged:
				res.Discharged++
			case proof.StatusViolated:
				res.Violated++
			case proof.StatusDead:
				res.Dead++
			}
		}
	}
	if opts.SaveTo != nil {
		if err := d.SaveArtifacts(*opts.SaveTo); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func matchRule(rules []VerdictRule, req driver.CheckRequest) (VerdictRule, bool) {
	kind := proof.KindLabel(req.Obligation.Kind)
	for _, r := range rules {
		if r.Fn != "" && r.Fn != req.Fn {
			continue
		}
		if r.Kind != "" && r.Kind != kind {
			continue
		}
		if r.Round != 0 && r.Round != req.Round {
			continue
		}
		if r.Predicate != "" && !strings.Contains(req.Rendered, r.Predicate) {
			continue
		}
		return r, true
	}
	return VerdictRule{}, false
}

func verdictFor(action, explanation string) driver.Verdict {
	switch action {
	case "delegate":
		return driver.Verdict{Delegate: true, Explanation: explanation}
	case "discharge":
		return driver.Verdict{Status: proof.StatusDischarged, Explanation: explanation}
	case "violate":
		return driver.Verdict{Status: proof.StatusViolated, Explanation: explanation}
	case "dead":
		return driver.Verdict{Status: proof.StatusDead, Explanation: explanation}
	default:
		return driver.Open(proof.Diagnostic{})
	}
}

func buildBody(f FunctionDecl) (driver.Body, error) {
	body := driver.Body{Params: f.Params}
	for _, step := range f.Body {
		switch {
		case step.Deref != "":
			body.Instrs = append(body.Instrs, driver.Deref{Line: step.Line, Ptr: step.Deref})
		case step.Divide != "":
			body.Instrs = append(body.Instrs, driver.Divide{Line: step.Line, Divisor: step.Divide})
		case step.Call != "":
			body.Instrs = append(body.Instrs, driver.Call{Line: step.Line, Callee: step.Call})
		case step.Index != nil:
			body.Instrs = append(body.Instrs, driver.IndexAccess{
				Line: step.Line, Base: step.Index.Base, Index: step.Index.Index,
			})
		default:
			return driver.Body{}, fmt.Errorf("%s: empty body step", f.Fn)
		}
	}
	return body, nil
}
