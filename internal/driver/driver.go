package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/contract"
	"github.com/proofdex/proofdex/internal/dict"
	"github.com/proofdex/proofdex/internal/ir"
	"github.com/proofdex/proofdex/internal/ledger"
	"github.com/proofdex/proofdex/internal/proof"
)

// FnUnit is the driver's per-function state: the function's obligations,
// its progress through the round, and the interface digest last seen by
// its callers.
type FnUnit struct {
	File   string
	Fn     string
	State  FnState
	Proofs *proof.FunctionProofs
	Body   Body

	summary bool // contract stub: interface only, never checked
	digest  string
}

// Config wires the driver's collaborators. Manifest and Checker are
// required; Globals defaults to an empty namespace, Ledger and Link are
// optional.
type Config struct {
	Manifest *contract.Manifest
	Checker  Checker
	Globals  *dict.GlobalDeclarations
	Ledger   *ledger.Ledger
	Link     artifact.LinkInfo
	Logger   *slog.Logger
}

// Driver owns the generation/convergence loop. Not safe for concurrent
// use: all methods must be called from one goroutine.
type Driver struct {
	manifest *contract.Manifest
	checker  Checker
	globals  *dict.GlobalDeclarations
	ledger   *ledger.Ledger
	log      *slog.Logger

	dicts   map[string]*dict.Dictionary
	units   []*FnUnit // registration order = file order, declaration order
	byName  map[string]*FnUnit
	callers map[string][]string
}

// New creates a driver and registers stub units for every contract
// summary so callsites of summarized functions get supporting obligations
// without a parsed body.
func New(cfg Config) (*Driver, error) {
	if cfg.Manifest == nil {
		return nil, fmt.Errorf("driver: manifest is required")
	}
	if cfg.Checker == nil {
		return nil, fmt.Errorf("driver: checker is required")
	}
	globals := cfg.Globals
	if globals == nil {
		globals = dict.NewGlobalDeclarations()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	d := &Driver{
		manifest: cfg.Manifest,
		checker:  cfg.Checker,
		globals:  globals,
		ledger:   cfg.Ledger,
		log:      log,
		dicts:    make(map[string]*dict.Dictionary),
		byName:   make(map[string]*FnUnit),
		callers:  make(map[string][]string),
	}
	for _, e := range cfg.Link.Edges {
		d.addCaller(e.Callee, e.Caller)
	}
	for _, c := range cfg.Manifest.Contracts {
		for _, s := range c.Summaries {
			if err := d.addSummary(c.File, s); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

func (d *Driver) addCaller(callee, caller string) {
	for _, c := range d.callers[callee] {
		if c == caller {
			return
		}
	}
	d.callers[callee] = append(d.callers[callee], caller)
}

func (d *Driver) fileDict(file string) (*dict.Dictionary, error) {
	if fd, ok := d.dicts[file]; ok {
		return fd, nil
	}
	known := false
	for _, f := range d.manifest.Files {
		if f == file {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("file %q is not in the manifest", file)
	}
	fd := dict.NewDictionary(file, d.globals.ResolveFunc())
	d.dicts[file] = fd
	return fd, nil
}

func (d *Driver) addSummary(file string, s contract.FunctionSummary) error {
	if _, exists := d.byName[s.Fn]; exists {
		return fmt.Errorf("duplicate function %q", s.Fn)
	}
	fd, err := d.fileDict(file)
	if err != nil {
		return err
	}
	fp := proof.NewFunctionProofs(file, s.Fn, fd)
	for _, a := range s.Assumes {
		ex, err := fd.Intern("expressions", []string{ir.TagVar, a.Arg}, nil)
		if err != nil {
			return err
		}
		if _, err := fp.AddInterfacePredicate([]string{a.Tag}, ir.AppendRef(nil, ir.Local(ex))); err != nil {
			return err
		}
	}
	u := &FnUnit{File: file, Fn: s.Fn, State: Converged, Proofs: fp, summary: true}
	d.units = append(d.units, u)
	d.byName[s.Fn] = u
	return nil
}

// AddFunction registers a parsed function. Registration order within a
// file is declaration order; the manifest fixes the file order the run
// walks. Primary obligations are generated immediately; supporting ones
// wait for the first round.
func (d *Driver) AddFunction(file, fn string, body Body) (*FnUnit, error) {
	if _, exists := d.byName[fn]; exists {
		return nil, fmt.Errorf("duplicate function %q", fn)
	}
	fd, err := d.fileDict(file)
	if err != nil {
		return nil, err
	}
	fp := proof.NewFunctionProofs(file, fn, fd)
	if err := generatePPOs(fp, file, body); err != nil {
		return nil, fmt.Errorf("generate obligations for %s: %w", fn, err)
	}
	u := &FnUnit{File: file, Fn: fn, State: PPOsGenerated, Proofs: fp, Body: body}
	d.units = append(d.units, u)
	d.byName[fn] = u
	for _, in := range body.Instrs {
		if c, ok := in.(Call); ok {
			d.addCaller(c.Callee, fn)
		}
	}
	return u, nil
}

// Units returns the registered units in processing order.
func (d *Driver) Units() []*FnUnit {
	out := make([]*FnUnit, len(d.units))
	copy(out, d.units)
	return out
}

// Lookup returns the unit for fn.
func (d *Driver) Lookup(fn string) (*FnUnit, bool) {
	u, ok := d.byName[fn]
	return u, ok
}

// Result summarizes a completed run.
type Result struct {
	Run        ledger.Run
	Rounds     int
	Open       int
	Discharged int
	Violated   int
	Dead       int
}

// Run drives rounds until the dirty set drains or the round bound is hit.
// Cancellation is honored between rounds; a cancelled or failed round
// commits nothing to the ledger.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	digest, err := d.manifest.Digest()
	if err != nil {
		return nil, err
	}
	var run ledger.Run
	if d.ledger != nil {
		run, err = d.ledger.BeginRun(ctx, d.manifest.Project, digest)
		if err != nil {
			return nil, err
		}
	}

	for _, u := range d.units {
		if u.digest, err = u.Proofs.InterfaceDigest(); err != nil {
			return nil, err
		}
	}

	dirty := make(map[string]bool)
	for _, u := range d.units {
		if !u.summary {
			dirty[u.Fn] = true
		}
	}

	rounds := 0
	for round := 1; len(dirty) > 0; round++ {
		if round > d.manifest.RoundBound {
			return nil, &artifact.NonConvergenceError{
				Rounds: d.manifest.RoundBound,
				Dirty:  sortedKeys(dirty),
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, changed, err := d.runRound(ctx, round, dirty)
		if err != nil {
			return nil, err
		}
		if d.ledger != nil {
			if err := d.ledger.CommitRound(ctx, run, round, len(dirty), records); err != nil {
				return nil, err
			}
		}
		rounds = round

		next := make(map[string]bool)
		for _, fn := range changed {
			for _, caller := range d.callers[fn] {
				if u, ok := d.byName[caller]; ok && !u.summary {
					next[caller] = true
					u.State = SPOsGenerated
				}
			}
		}
		d.log.Debug("round complete",
			"round", round, "processed", len(dirty), "interface_changes", len(changed), "next_dirty", len(next))
		dirty = next
	}

	res := &Result{Run: run, Rounds: rounds}
	for _, u := range d.units {
		if u.summary {
			continue
		}
		u.State = Converged
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
	d.log.Info("run converged",
		"rounds", res.Rounds, "discharged", res.Discharged, "violated", res.Violated,
		"open", res.Open, "dead", res.Dead)
	return res, nil
}

// runRound processes every dirty unit in registration order and returns
// the ledger records plus the functions whose interface digest changed.
func (d *Driver) runRound(ctx context.Context, round int, dirty map[string]bool) ([]ledger.StatusRecord, []string, error) {
	var records []ledger.StatusRecord
	var changed []string

	for _, u := range d.units {
		if !dirty[u.Fn] {
			continue
		}
		if err := d.refreshUnit(u); err != nil {
			return nil, nil, err
		}
		if err := d.checkUnit(ctx, round, u); err != nil {
			return nil, nil, err
		}
		for _, o := range u.Proofs.AllObligations() {
			records = append(records, ledger.RecordFor(u.File, u.Fn, o))
		}

		digest, err := u.Proofs.InterfaceDigest()
		if err != nil {
			return nil, nil, err
		}
		if digest != u.digest {
			u.digest = digest
			changed = append(changed, u.Fn)
			d.log.Debug("interface changed", "fn", u.Fn, "round", round)
		}
	}
	return records, changed, nil
}

func (d *Driver) refreshUnit(u *FnUnit) error {
	for _, cs := range u.Proofs.Callsites() {
		callee, ok := d.byName[cs.Callee]
		if !ok {
			// No body and no contract: nothing to require at this callsite.
			continue
		}
		if err := u.Proofs.RefreshSPOs(cs, callee.Proofs); err != nil {
			return err
		}
	}
	u.State = SPOsGenerated
	return nil
}

func (d *Driver) checkUnit(ctx context.Context, round int, u *FnUnit) error {
	resolve := u.Proofs.Dictionary().ResolveFunc()
	global := d.globals.ResolveFunc()
	for _, o := range u.Proofs.AllObligations() {
		if !o.IsOpen() {
			continue
		}
		req := CheckRequest{
			File:       u.File,
			Fn:         u.Fn,
			Round:      round,
			Obligation: o,
			Rendered:   o.Render(resolve, global),
		}
		verdict, err := d.checker.Check(ctx, req)
		if err != nil {
			return fmt.Errorf("check %s po %d: %w", u.Fn, o.Index, err)
		}
		if err := d.applyVerdict(u, o, verdict); err != nil {
			return err
		}
	}
	u.State = Checked
	return nil
}

// applyVerdict folds a checker decision into the obligation. Delegation
// lifts the obligation's predicate into the function's interface and
// discharges against the resulting api assumption.
func (d *Driver) applyVerdict(u *FnUnit, o *proof.Obligation, v Verdict) error {
	if v.Delegate {
		apiid, err := u.Proofs.LiftPredicate(o.Predicate)
		if err != nil {
			return fmt.Errorf("delegate %s po %d: %w", u.Fn, o.Index, err)
		}
		deps := v.Deps
		deps.Assumptions = append(deps.Assumptions, "api:"+strconv.Itoa(apiid))
		return o.SetStatus(proof.StatusDischarged, deps, v.Explanation)
	}
	if v.Status == proof.StatusOpen {
		o.AddDiagnostic(v.Diagnostic)
		return nil
	}
	if err := o.SetStatus(v.Status, v.Deps, v.Explanation); err != nil {
		return err
	}
	o.AddDiagnostic(v.Diagnostic)
	return nil
}

// SaveArtifacts writes the run's documents under the layout: the global
// declarations, every file dictionary, every function's obligations and
// interface, and the derived cross-reference document.
func (d *Driver) SaveArtifacts(l artifact.Layout) error {
	if err := artifact.SaveGlobalDeclarations(l, d.globals); err != nil {
		return err
	}
	for _, file := range d.manifest.Files {
		fd, ok := d.dicts[file]
		if !ok {
			continue
		}
		if err := artifact.SaveDictionary(l, fd); err != nil {
			return err
		}
	}
	for _, u := range d.units {
		if u.summary {
			continue
		}
		if err := artifact.SaveProofs(l, u.Proofs); err != nil {
			return err
		}
		if err := artifact.SaveInterface(l, u.Proofs); err != nil {
			return err
		}
	}
	return artifact.SaveLinkInfo(l, d.manifest.Project, d.linkInfo())
}

// linkInfo derives the cross-reference document from registered callsites.
func (d *Driver) linkInfo() artifact.LinkInfo {
	li := artifact.EmptyLinkInfo()
	for _, u := range d.units {
		for _, cs := range u.Proofs.Callsites() {
			edge := artifact.CallEdge{
				CallerFile: u.File,
				Caller:     u.Fn,
				Callee:     cs.Callee,
			}
			if callee, ok := d.byName[cs.Callee]; ok {
				edge.CalleeFile = callee.File
			}
			li.Edges = append(li.Edges, edge)
		}
	}
	return li
}

// Report renders the obligation listing for one function.
func (d *Driver) Report(fn string) (string, error) {
	u, ok := d.byName[fn]
	if !ok {
		return "", fmt.Errorf("unknown function %q", fn)
	}
	return proof.RenderReport(fn, u.Proofs.AllObligations(),
		u.Proofs.Dictionary().ResolveFunc(), d.globals.ResolveFunc()), nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
