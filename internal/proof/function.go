package proof

import (
	"fmt"
	"sort"

	"github.com/proofdex/proofdex/internal/dict"
	"github.com/proofdex/proofdex/internal/ir"
)

// Interface is the published contract of a function: the ordered predicate
// records other units may rely on at its callsites. APIIDs index the
// function's interface-predicates table; positions are append-only, so an
// apiid never changes meaning within a run.
type Interface struct {
	Fn     string
	APIIDs []int
}

// Digest hashes the interface's predicate records through the caller's
// dictionary. Any change in the set or content of interface predicates
// changes the digest, which is what marks callers dirty.
func (i Interface) Digest(d *dict.Dictionary) (string, error) {
	entries := make([]ir.TableValue, 0, len(i.APIIDs))
	for _, id := range i.APIIDs {
		v, err := d.Resolve("interface-predicates", id)
		if err != nil {
			return "", err
		}
		entries = append(entries, v)
	}
	return ir.InterfaceDigest(i.Fn, entries)
}

// Callsite groups the supporting obligations generated for one call. The
// spos map is keyed by apiid so regeneration after an interface revision
// can match the old obligation for its po index.
type Callsite struct {
	Callee   string
	Location ir.Location

	spos  map[int]*Obligation
	order []int
}

// Obligations returns the callsite's supporting obligations in apiid order.
func (c *Callsite) Obligations() []*Obligation {
	out := make([]*Obligation, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.spos[id])
	}
	return out
}

// Lookup returns the supporting obligation for apiid, if present.
func (c *Callsite) Lookup(apiid int) (*Obligation, bool) {
	o, ok := c.spos[apiid]
	return o, ok
}

// FunctionProofs owns the obligations of a single function: its primary
// obligations and its callsites with their supporting obligations. Index
// counters run separately per kind and are never reused.
type FunctionProofs struct {
	Fn   string
	File string

	dict *dict.Dictionary

	ppos      []*Obligation
	callsites []*Callsite

	nextPPO int
	nextSPO int

	iface Interface
}

// NewFunctionProofs creates an empty proof set backed by the file's
// dictionary.
func NewFunctionProofs(file, fn string, d *dict.Dictionary) *FunctionProofs {
	return &FunctionProofs{
		Fn:      fn,
		File:    file,
		dict:    d,
		nextPPO: 1,
		nextSPO: 1,
		iface:   Interface{Fn: fn},
	}
}

// Dictionary returns the file dictionary the proof set interns into.
func (f *FunctionProofs) Dictionary() *dict.Dictionary { return f.dict }

// CreatePPO interns predicate tags/args into the file dictionary and
// attaches a fresh open primary obligation at loc.
func (f *FunctionProofs) CreatePPO(tags []string, args []int, loc ir.Location) (*Obligation, error) {
	ix, err := f.dict.Intern("predicates", tags, args)
	if err != nil {
		return nil, err
	}
	o := New(f.nextPPO, Primary{}, ir.Local(ix), loc)
	f.nextPPO++
	f.ppos = append(f.ppos, o)
	return o, nil
}

// PPOs returns the primary obligations in creation order.
func (f *FunctionProofs) PPOs() []*Obligation {
	out := make([]*Obligation, len(f.ppos))
	copy(out, f.ppos)
	return out
}

// Callsites returns the callsites in creation order.
func (f *FunctionProofs) Callsites() []*Callsite {
	out := make([]*Callsite, len(f.callsites))
	copy(out, f.callsites)
	return out
}

// EnsureCallsite returns the callsite for callee at loc, creating it on
// first use. A function may call the same callee at several locations;
// each location is its own callsite.
func (f *FunctionProofs) EnsureCallsite(callee string, loc ir.Location) *Callsite {
	for _, c := range f.callsites {
		if c.Callee == callee && c.Location == loc {
			return c
		}
	}
	c := &Callsite{Callee: callee, Location: loc, spos: make(map[int]*Obligation)}
	f.callsites = append(f.callsites, c)
	return c
}

// RefreshSPOs reconciles a callsite against the callee's current interface.
// Each interface predicate is imported into this function's file dictionary
// and compared against the existing supporting obligation for its apiid:
//
//   - no obligation yet: a new one is created under a fresh index;
//   - same predicate: the obligation is kept, status and evidence intact;
//   - changed predicate: the obligation is replaced by a fresh open one
//     that keeps the old index, so reports and the ledger correlate the
//     revision with its predecessor.
//
// Interface predicates removed by the callee leave their obligations in
// place; the checker marks them dead when the guarding assumption is gone.
func (f *FunctionProofs) RefreshSPOs(c *Callsite, callee *FunctionProofs) error {
	iface := callee.InterfaceView()
	for _, apiid := range iface.APIIDs {
		ix, err := dict.ImportPredicate(f.dict, callee.dict, "interface-predicates", apiid)
		if err != nil {
			return fmt.Errorf("refresh spos for call to %s: %w", c.Callee, err)
		}
		ref := ir.Local(ix)
		old, ok := c.spos[apiid]
		if ok && old.Predicate == ref {
			continue
		}
		var index int
		if ok {
			index = old.Index
		} else {
			index = f.nextSPO
			f.nextSPO++
			c.order = append(c.order, apiid)
		}
		kind := CallsiteSupporting{APIID: apiid, Callee: c.Callee}
		c.spos[apiid] = New(index, kind, ref, c.Location)
	}
	return nil
}

// AddInterfacePredicate publishes a predicate into the function's interface
// and returns its apiid. Lifting an obligation's predicate here is how a
// function delegates a proof to its callers.
func (f *FunctionProofs) AddInterfacePredicate(tags []string, args []int) (int, error) {
	apiid, err := f.dict.Intern("interface-predicates", tags, args)
	if err != nil {
		return 0, err
	}
	for _, id := range f.iface.APIIDs {
		if id == apiid {
			return apiid, nil
		}
	}
	f.iface.APIIDs = append(f.iface.APIIDs, apiid)
	return apiid, nil
}

// LiftPredicate copies a local predicate reference into the interface.
func (f *FunctionProofs) LiftPredicate(r ir.Ref) (int, error) {
	if r.Kind != ir.RefLocal {
		return 0, fmt.Errorf("lift predicate: global reference %d cannot be lifted", r.Index)
	}
	v, err := f.dict.Resolve("predicates", r.Index)
	if err != nil {
		return 0, err
	}
	return f.AddInterfacePredicate(v.Tags, v.Args)
}

// InterfaceView returns a copy of the function's current interface.
func (f *FunctionProofs) InterfaceView() Interface {
	ids := make([]int, len(f.iface.APIIDs))
	copy(ids, f.iface.APIIDs)
	return Interface{Fn: f.Fn, APIIDs: ids}
}

// InterfaceDigest hashes the function's current interface.
func (f *FunctionProofs) InterfaceDigest() (string, error) {
	return f.iface.Digest(f.dict)
}

// AllObligations returns primary obligations followed by supporting ones
// across all callsites, each group in index order.
func (f *FunctionProofs) AllObligations() []*Obligation {
	out := make([]*Obligation, 0, len(f.ppos))
	out = append(out, f.ppos...)
	var spos []*Obligation
	for _, c := range f.callsites {
		spos = append(spos, c.Obligations()...)
	}
	sort.SliceStable(spos, func(i, j int) bool { return spos[i].Index < spos[j].Index })
	out = append(out, spos...)
	return out
}

// OpenCount reports how many obligations still await a decision.
func (f *FunctionProofs) OpenCount() int {
	n := 0
	for _, o := range f.AllObligations() {
		if o.IsOpen() {
			n++
		}
	}
	return n
}
