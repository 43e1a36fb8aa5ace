package proof

import (
	"fmt"

	"github.com/proofdex/proofdex/internal/dict"
	"github.com/proofdex/proofdex/internal/ir"
)

// ProofsKind tags the combined in-memory proofs form.
const ProofsKind = "function-proofs"

// PPOsKind tags the persisted primary obligations document.
const PPOsKind = "function-ppos"

// SPOsKind tags the persisted callsite obligations document.
const SPOsKind = "function-spos"

// ObligationRecord is the persisted form of one obligation. Predicate is
// the (kind, index) reference pair into the file dictionary.
type ObligationRecord struct {
	Index       int          `json:"index"`
	APIID       int          `json:"apiid,omitempty"`
	Callee      string       `json:"callee,omitempty"`
	Predicate   [2]int       `json:"predicate"`
	Location    ir.Location  `json:"location"`
	Status      string       `json:"status"`
	Deps        Dependencies `json:"deps,omitempty"`
	Diagnostic  Diagnostic   `json:"diagnostic,omitempty"`
	Explanation string       `json:"explanation,omitempty"`
}

// CallsiteRecord is the persisted form of one callsite with its supporting
// obligations in apiid order.
type CallsiteRecord struct {
	Callee   string             `json:"callee"`
	Location ir.Location        `json:"location"`
	SPOs     []ObligationRecord `json:"spos"`
}

// ProofsDocument is the JSON artifact for one function's obligations. The
// file dictionary is persisted separately; records reference it by index.
type ProofsDocument struct {
	Kind      string             `json:"kind"`
	Schema    string             `json:"schema"`
	File      string             `json:"file"`
	Fn        string             `json:"fn"`
	Interface []int              `json:"interface"`
	PPOs      []ObligationRecord `json:"ppos"`
	Callsites []CallsiteRecord   `json:"callsites"`
}

// PPOsDocument is the persisted primary obligations artifact. The function
// interface rides along since apiids index into the same dictionary.
type PPOsDocument struct {
	Kind      string             `json:"kind"`
	Schema    string             `json:"schema"`
	File      string             `json:"file"`
	Fn        string             `json:"fn"`
	Interface []int              `json:"interface"`
	PPOs      []ObligationRecord `json:"ppos"`
}

// SPOsDocument is the persisted callsite obligations artifact.
type SPOsDocument struct {
	Kind      string           `json:"kind"`
	Schema    string           `json:"schema"`
	File      string           `json:"file"`
	Fn        string           `json:"fn"`
	Callsites []CallsiteRecord `json:"callsites"`
}

// Split separates the combined form into the two persisted documents.
func (doc ProofsDocument) Split() (PPOsDocument, SPOsDocument) {
	return PPOsDocument{
			Kind:      PPOsKind,
			Schema:    doc.Schema,
			File:      doc.File,
			Fn:        doc.Fn,
			Interface: doc.Interface,
			PPOs:      doc.PPOs,
		}, SPOsDocument{
			Kind:      SPOsKind,
			Schema:    doc.Schema,
			File:      doc.File,
			Fn:        doc.Fn,
			Callsites: doc.Callsites,
		}
}

// Merge recombines the persisted documents. A zero-value SPOs document
// stands in for a function whose callsite artifact was never written.
func Merge(p PPOsDocument, s SPOsDocument) (ProofsDocument, error) {
	if p.Kind != PPOsKind {
		return ProofsDocument{}, fmt.Errorf("unexpected document kind %q, want %q", p.Kind, PPOsKind)
	}
	if s.Kind != "" || len(s.Callsites) > 0 {
		if s.Kind != SPOsKind {
			return ProofsDocument{}, fmt.Errorf("unexpected document kind %q, want %q", s.Kind, SPOsKind)
		}
		if s.File != p.File || s.Fn != p.Fn {
			return ProofsDocument{}, fmt.Errorf("callsite document is for %s/%s, want %s/%s", s.File, s.Fn, p.File, p.Fn)
		}
	}
	return ProofsDocument{
		Kind:      ProofsKind,
		Schema:    p.Schema,
		File:      p.File,
		Fn:        p.Fn,
		Interface: p.Interface,
		PPOs:      p.PPOs,
		Callsites: s.Callsites,
	}, nil
}

func recordObligation(o *Obligation) ObligationRecord {
	rec := ObligationRecord{
		Index:       o.Index,
		Predicate:   [2]int{int(o.Predicate.Kind), o.Predicate.Index},
		Location:    o.Location,
		Status:      string(o.Status),
		Deps:        o.Deps,
		Diagnostic:  o.Diagnostic,
		Explanation: o.Explanation,
	}
	if cs, ok := o.Kind.(CallsiteSupporting); ok {
		rec.APIID = cs.APIID
		rec.Callee = cs.Callee
	}
	return rec
}

func restoreObligation(rec ObligationRecord, kind Kind) (*Obligation, error) {
	st, err := ParseStatus(rec.Status)
	if err != nil {
		return nil, err
	}
	return &Obligation{
		Index:       rec.Index,
		Kind:        kind,
		Predicate:   ir.Ref{Kind: ir.RefKind(rec.Predicate[0]), Index: rec.Predicate[1]},
		Location:    rec.Location,
		Status:      st,
		Deps:        rec.Deps,
		Diagnostic:  rec.Diagnostic,
		Explanation: rec.Explanation,
	}, nil
}

// MarshalDocument produces the persisted form of f.
func (f *FunctionProofs) MarshalDocument() ProofsDocument {
	doc := ProofsDocument{
		Kind:      ProofsKind,
		Schema:    ir.SchemaVersion,
		File:      f.File,
		Fn:        f.Fn,
		Interface: f.InterfaceView().APIIDs,
	}
	for _, o := range f.ppos {
		doc.PPOs = append(doc.PPOs, recordObligation(o))
	}
	for _, c := range f.callsites {
		cr := CallsiteRecord{Callee: c.Callee, Location: c.Location}
		for _, o := range c.Obligations() {
			cr.SPOs = append(cr.SPOs, recordObligation(o))
		}
		doc.Callsites = append(doc.Callsites, cr)
	}
	return doc
}

// UnmarshalProofs rebuilds a FunctionProofs from its persisted form over an
// already-loaded file dictionary. Index counters resume past the highest
// persisted index of each kind.
func UnmarshalProofs(doc ProofsDocument, d *dict.Dictionary) (*FunctionProofs, error) {
	if doc.Kind != ProofsKind {
		return nil, fmt.Errorf("unexpected document kind %q, want %q", doc.Kind, ProofsKind)
	}
	if doc.Schema != ir.SchemaVersion {
		return nil, fmt.Errorf("unsupported proofs schema %q", doc.Schema)
	}
	f := NewFunctionProofs(doc.File, doc.Fn, d)
	f.iface.APIIDs = append(f.iface.APIIDs, doc.Interface...)
	for _, rec := range doc.PPOs {
		o, err := restoreObligation(rec, Primary{})
		if err != nil {
			return nil, fmt.Errorf("%s ppo %d: %w", doc.Fn, rec.Index, err)
		}
		f.ppos = append(f.ppos, o)
		if o.Index >= f.nextPPO {
			f.nextPPO = o.Index + 1
		}
	}
	for _, cr := range doc.Callsites {
		c := f.EnsureCallsite(cr.Callee, cr.Location)
		for _, rec := range cr.SPOs {
			kind := CallsiteSupporting{APIID: rec.APIID, Callee: cr.Callee}
			o, err := restoreObligation(rec, kind)
			if err != nil {
				return nil, fmt.Errorf("%s spo %d: %w", doc.Fn, rec.Index, err)
			}
			c.spos[rec.APIID] = o
			c.order = append(c.order, rec.APIID)
			if o.Index >= f.nextSPO {
				f.nextSPO = o.Index + 1
			}
		}
	}
	return f, nil
}
