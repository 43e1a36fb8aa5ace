package proof

import (
	"fmt"
	"sort"
	"strings"

	"github.com/proofdex/proofdex/internal/ir"
)

// Kind distinguishes primary obligations, generated from a function body,
// from supporting obligations, generated at a callsite from the callee's
// interface. The kind of an obligation is fixed at creation.
type Kind interface {
	kindLabel() string
}

// Primary marks an obligation generated directly from the function body.
type Primary struct{}

func (Primary) kindLabel() string { return "ppo" }

// CallsiteSupporting marks an obligation generated at a callsite from one
// predicate of the callee's interface. APIID is the predicate's index in the
// callee's interface-predicates table; it survives regeneration and is the
// stable correlation key across interface revisions.
type CallsiteSupporting struct {
	APIID  int
	Callee string
}

func (CallsiteSupporting) kindLabel() string { return "spo" }

// KindLabel returns the short persisted label for k.
func KindLabel(k Kind) string { return k.kindLabel() }

// Dependencies is the evidence recorded when an obligation is discharged:
// which invariants were used, which other obligations the discharge leans
// on, and which api assumptions were taken on faith.
type Dependencies struct {
	Invariants  []int    `json:"invariants,omitempty"`
	POs         []int    `json:"pos,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
}

// IsEmpty reports whether no evidence was recorded.
func (d Dependencies) IsEmpty() bool {
	return len(d.Invariants) == 0 && len(d.POs) == 0 && len(d.Assumptions) == 0
}

// Diagnostic carries checker output for an obligation that was not
// discharged: per-argument invariant candidates and free-form messages.
// Diagnostics accumulate across rounds rather than replacing each other.
type Diagnostic struct {
	Invariants map[int][]string `json:"invariants,omitempty"`
	Msgs       []string         `json:"msgs,omitempty"`
}

// Merge folds other into d, deduplicating messages per slot.
func (d *Diagnostic) Merge(other Diagnostic) {
	for arg, msgs := range other.Invariants {
		if d.Invariants == nil {
			d.Invariants = make(map[int][]string)
		}
		d.Invariants[arg] = appendUnique(d.Invariants[arg], msgs)
	}
	d.Msgs = appendUnique(d.Msgs, other.Msgs)
}

func appendUnique(dst []string, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}

// Obligation is one proof obligation attached to a function. Predicate is a
// reference into the owning file's dictionary ("predicates" for primary,
// imported from the callee's interface for supporting). Index is unique per
// function and kind, assigned at creation, and never reused; a regenerated
// supporting obligation keeps its index.
type Obligation struct {
	Index       int
	Kind        Kind
	Predicate   ir.Ref
	Location    ir.Location
	Status      Status
	Deps        Dependencies
	Diagnostic  Diagnostic
	Explanation string
}

// New creates an open obligation.
func New(index int, kind Kind, predicate ir.Ref, loc ir.Location) *Obligation {
	return &Obligation{
		Index:     index,
		Kind:      kind,
		Predicate: predicate,
		Location:  loc,
		Status:    StatusOpen,
	}
}

// SetStatus is the sole mutator of Status. Discharging requires evidence;
// other statuses record the explanation. Illegal transitions return
// InvalidTransitionError.
func (o *Obligation) SetStatus(to Status, deps Dependencies, explanation string) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}
	o.Status = to
	o.Deps = deps
	o.Explanation = explanation
	return nil
}

// AddDiagnostic accumulates checker feedback without changing status.
func (o *Obligation) AddDiagnostic(d Diagnostic) {
	o.Diagnostic.Merge(d)
}

// IsOpen reports whether the obligation still awaits a decision.
func (o *Obligation) IsOpen() bool { return o.Status == StatusOpen }

// APIID returns the interface predicate index for supporting obligations
// and -1 for primary ones.
func (o *Obligation) APIID() int {
	if cs, ok := o.Kind.(CallsiteSupporting); ok {
		return cs.APIID
	}
	return -1
}

// Render produces the fixed-width report line for the obligation. Primary:
// index, line, predicate, status. Supporting adds the apiid column between
// index and line.
func (o *Obligation) Render(resolve, global ir.ResolveFunc) string {
	pred := renderRef(resolve, global, o.Predicate)
	if cs, ok := o.Kind.(CallsiteSupporting); ok {
		return fmt.Sprintf("%4d %4d %4d   %s (%s)", o.Index, cs.APIID, o.Location.Line, pred, o.Status)
	}
	return fmt.Sprintf("%4d %4d   %s (%s)", o.Index, o.Location.Line, pred, o.Status)
}

func renderRef(resolve, global ir.ResolveFunc, r ir.Ref) string {
	if r.Kind == ir.RefGlobal && global != nil {
		return ir.RenderPredicate(global, global, r.Index)
	}
	return ir.RenderPredicate(resolve, global, r.Index)
}

// RenderReport formats a status-ordered obligation listing for one
// function, open obligations first, then by index.
func RenderReport(fn string, obs []*Obligation, resolve, global ir.ResolveFunc) string {
	sorted := make([]*Obligation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, oj := sorted[i].IsOpen(), sorted[j].IsOpen()
		if oi != oj {
			return oi
		}
		return sorted[i].Index < sorted[j].Index
	})
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", fn)
	for _, o := range sorted {
		b.WriteString(o.Render(resolve, global))
		b.WriteByte('\n')
	}
	return b.String()
}
