package artifact

import (
	"fmt"

	"github.com/proofdex/proofdex/internal/dict"
	"github.com/proofdex/proofdex/internal/ir"
	"github.com/proofdex/proofdex/internal/proof"
)

// LinkInfoKind tags the cross-reference document produced by the linker.
const LinkInfoKind = "link-info"

// InterfaceKind tags a function interface document.
const InterfaceKind = "function-interface"

// CallEdge records one static call: caller function in its file, callee
// function in the file that defines it.
type CallEdge struct {
	CallerFile string `json:"caller_file"`
	Caller     string `json:"caller"`
	CalleeFile string `json:"callee_file"`
	Callee     string `json:"callee"`
}

// LinkInfo is the cross-reference document: the call edges of the linked
// program. It is optional; a missing document means no cross-unit calls.
type LinkInfo struct {
	Kind   string     `json:"kind"`
	Schema string     `json:"schema"`
	Edges  []CallEdge `json:"edges"`
}

// EmptyLinkInfo returns the default for a missing cross-reference document.
func EmptyLinkInfo() LinkInfo {
	return LinkInfo{Kind: LinkInfoKind, Schema: ir.SchemaVersion}
}

// CallersOf returns the callers of fn in edge order, deduplicated.
func (li LinkInfo) CallersOf(fn string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range li.Edges {
		if e.Callee == fn && !seen[e.Caller] {
			seen[e.Caller] = true
			out = append(out, e.Caller)
		}
	}
	return out
}

// HomeOf returns the file that defines fn, per the link edges.
func (li LinkInfo) HomeOf(fn string) (string, bool) {
	for _, e := range li.Edges {
		if e.Callee == fn {
			return e.CalleeFile, true
		}
		if e.Caller == fn {
			return e.CallerFile, true
		}
	}
	return "", false
}

// LoadLinkInfo reads the cross-reference document for target, substituting
// the empty default when none was produced.
func LoadLinkInfo(l Layout, target string) (LinkInfo, error) {
	var li LinkInfo
	err := ReadJSON(l.LinkInfoPath(target), &li)
	if IsNotFound(err) {
		return EmptyLinkInfo(), nil
	}
	if err != nil {
		return LinkInfo{}, err
	}
	if li.Kind != LinkInfoKind {
		return LinkInfo{}, &MalformedError{
			Path: l.LinkInfoPath(target),
			Err:  fmt.Errorf("unexpected document kind %q", li.Kind),
		}
	}
	return li, nil
}

// SaveLinkInfo writes the cross-reference document for target.
func SaveLinkInfo(l Layout, target string, li LinkInfo) error {
	li.Kind = LinkInfoKind
	li.Schema = ir.SchemaVersion
	return WriteJSON(l.LinkInfoPath(target), li)
}

// DeclsKind tags a per-file declarations document.
const DeclsKind = "file-declarations"

// FileDeclarations is the parser's per-file declaration output: typedefs,
// struct definitions, and global variables, all with file-local indices.
// The linker maps them into the global namespace.
type FileDeclarations struct {
	Kind      string        `json:"kind"`
	Schema    string        `json:"schema"`
	File      string        `json:"file"`
	Typedefs  []ir.TypeDef  `json:"typedefs"`
	Compinfos []ir.CompDecl `json:"compinfos"`
	Varinfos  []ir.VarDecl  `json:"varinfos"`
}

// SaveFileDeclarations writes the per-file declarations document.
func SaveFileDeclarations(l Layout, d FileDeclarations) error {
	d.Kind = DeclsKind
	d.Schema = ir.SchemaVersion
	return WriteJSON(l.DeclsPath(d.File), d)
}

// LoadFileDeclarations reads the per-file declarations document.
func LoadFileDeclarations(l Layout, file string) (FileDeclarations, error) {
	var d FileDeclarations
	if err := ReadJSON(l.DeclsPath(file), &d); err != nil {
		return FileDeclarations{}, err
	}
	if d.Kind != DeclsKind {
		return FileDeclarations{}, &MalformedError{
			Path: l.DeclsPath(file),
			Err:  fmt.Errorf("unexpected document kind %q", d.Kind),
		}
	}
	return d, nil
}

// InterfaceDocument is the published contract of one function: its apiids
// and the digest callers compare to detect revisions.
type InterfaceDocument struct {
	Kind   string `json:"kind"`
	Schema string `json:"schema"`
	File   string `json:"file"`
	Fn     string `json:"fn"`
	APIIDs []int  `json:"apiids"`
	Digest string `json:"digest"`
}

// SaveInterface writes fn's interface document.
func SaveInterface(l Layout, f *proof.FunctionProofs) error {
	digest, err := f.InterfaceDigest()
	if err != nil {
		return fmt.Errorf("interface digest for %s: %w", f.Fn, err)
	}
	doc := InterfaceDocument{
		Kind:   InterfaceKind,
		Schema: ir.SchemaVersion,
		File:   f.File,
		Fn:     f.Fn,
		APIIDs: f.InterfaceView().APIIDs,
		Digest: digest,
	}
	return WriteJSON(l.APIPath(f.File, f.Fn), doc)
}

// SaveDictionary writes the per-file dictionary document.
func SaveDictionary(l Layout, d *dict.Dictionary) error {
	return WriteJSON(l.DictionaryPath(d.Scope()), d.MarshalDocument())
}

// LoadDictionary reads the per-file dictionary document for file, replaying
// it over the given global resolver.
func LoadDictionary(l Layout, file string, global ir.ResolveFunc) (*dict.Dictionary, error) {
	var doc dict.Document
	if err := ReadJSON(l.DictionaryPath(file), &doc); err != nil {
		return nil, err
	}
	d, err := dict.UnmarshalDocument(doc, global)
	if err != nil {
		return nil, &MalformedError{Path: l.DictionaryPath(file), Err: err}
	}
	return d, nil
}

// SaveGlobalDeclarations writes the linked global declarations document.
func SaveGlobalDeclarations(l Layout, g *dict.GlobalDeclarations) error {
	return WriteJSON(l.GlobalDefinitionsPath(), g.MarshalDocument())
}

// LoadGlobalDeclarations reads the linked global declarations document.
func LoadGlobalDeclarations(l Layout) (*dict.GlobalDeclarations, error) {
	var doc dict.DeclarationsDocument
	if err := ReadJSON(l.GlobalDefinitionsPath(), &doc); err != nil {
		return nil, err
	}
	g, err := dict.UnmarshalDeclarations(doc)
	if err != nil {
		return nil, &MalformedError{Path: l.GlobalDefinitionsPath(), Err: err}
	}
	return g, nil
}

// InvariantsKind tags a per-function invariants document.
const InvariantsKind = "function-invariants"

// InvariantFact is one fact the invariant collaborator established.
// Predicate is the rendered predicate text the fact discharges.
type InvariantFact struct {
	Index     int    `json:"index"`
	Predicate string `json:"predicate"`
	Fact      string `json:"fact"`
}

// InvariantsDocument carries the facts available for one function's
// obligations. Produced by the invariant collaborator between rounds; a
// missing document means no facts yet.
type InvariantsDocument struct {
	Kind       string          `json:"kind"`
	Schema     string          `json:"schema"`
	File       string          `json:"file"`
	Fn         string          `json:"fn"`
	Invariants []InvariantFact `json:"invariants"`
}

// SaveInvariants writes the invariants document for doc's function.
func SaveInvariants(l Layout, doc InvariantsDocument) error {
	doc.Kind = InvariantsKind
	doc.Schema = ir.SchemaVersion
	return WriteJSON(l.InvariantsPath(doc.File, doc.Fn), doc)
}

// LoadInvariants reads fn's invariants document, substituting the empty
// default when the collaborator has not produced one.
func LoadInvariants(l Layout, file, fn string) (InvariantsDocument, error) {
	path := l.InvariantsPath(file, fn)
	var doc InvariantsDocument
	err := ReadJSON(path, &doc)
	if IsNotFound(err) {
		return InvariantsDocument{Kind: InvariantsKind, Schema: ir.SchemaVersion, File: file, Fn: fn}, nil
	}
	if err != nil {
		return InvariantsDocument{}, err
	}
	if doc.Kind != InvariantsKind {
		return InvariantsDocument{}, &MalformedError{
			Path: path,
			Err:  fmt.Errorf("unexpected document kind %q", doc.Kind),
		}
	}
	return doc, nil
}

// SaveProofs writes fn's obligations as the primary and callsite documents.
func SaveProofs(l Layout, f *proof.FunctionProofs) error {
	ppos, spos := f.MarshalDocument().Split()
	if err := WriteJSON(l.PPOPath(f.File, f.Fn), ppos); err != nil {
		return err
	}
	return WriteJSON(l.SPOPath(f.File, f.Fn), spos)
}

// LoadProofs reads fn's obligation documents over its loaded dictionary.
// A missing callsite document means the function has no callsites.
func LoadProofs(l Layout, file, fn string, d *dict.Dictionary) (*proof.FunctionProofs, error) {
	path := l.PPOPath(file, fn)
	var ppos proof.PPOsDocument
	if err := ReadJSON(path, &ppos); err != nil {
		return nil, err
	}
	var spos proof.SPOsDocument
	if err := ReadJSON(l.SPOPath(file, fn), &spos); err != nil && !IsNotFound(err) {
		return nil, err
	}
	doc, err := proof.Merge(ppos, spos)
	if err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}
	f, err := proof.UnmarshalProofs(doc, d)
	if err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}
	return f, nil
}
