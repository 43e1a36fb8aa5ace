package dict

import (
	"fmt"
	"sort"

	"github.com/proofdex/proofdex/internal/ir"
)

// DeclarationsDocument is the persisted global declarations artifact: the
// global dictionary plus the declaration tables and compinfo name sets.
type DeclarationsDocument struct {
	Kind          string              `json:"kind"`
	Schema        string              `json:"schema"`
	Dictionary    Document            `json:"dictionary"`
	Typedefs      []ir.TableValue     `json:"typedefs"`
	Fieldinfos    []ir.TableValue     `json:"fieldinfos"`
	Compinfos     []ir.TableValue     `json:"compinfos"`
	Varinfos      []ir.TableValue     `json:"varinfos"`
	CompinfoNames []CompinfoNameEntry `json:"compinfo_names"`
}

// CompinfoNameEntry records the names seen for one global struct key.
type CompinfoNameEntry struct {
	GCKey int      `json:"gckey"`
	Names []string `json:"names"`
}

// DeclarationsKind identifies a global declarations document.
const DeclarationsKind = "global-declarations"

// MarshalDocument captures the global namespace for persistence.
func (g *GlobalDeclarations) MarshalDocument() DeclarationsDocument {
	doc := DeclarationsDocument{
		Kind:       DeclarationsKind,
		Schema:     ir.SchemaVersion,
		Dictionary: g.dict.MarshalDocument(),
		Typedefs:   g.typedefs.Values(),
		Fieldinfos: g.fieldinfos.Values(),
		Compinfos:  g.compinfos.Values(),
		Varinfos:   g.varinfos.Values(),
	}
	keys := make([]int, 0, len(g.compinfoNames))
	for k := range g.compinfoNames {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		names := make([]string, 0, len(g.compinfoNames[k]))
		for n := range g.compinfoNames[k] {
			names = append(names, n)
		}
		sort.Strings(names)
		doc.CompinfoNames = append(doc.CompinfoNames, CompinfoNameEntry{GCKey: k, Names: names})
	}
	return doc
}

// UnmarshalDeclarations replays a declarations document into a fresh global
// namespace. Table entries are replayed in order so every index matches its
// persisted position.
func UnmarshalDeclarations(doc DeclarationsDocument) (*GlobalDeclarations, error) {
	if doc.Kind != DeclarationsKind {
		return nil, fmt.Errorf("document kind %q, want %q", doc.Kind, DeclarationsKind)
	}
	g := NewGlobalDeclarations()
	d, err := UnmarshalDocument(doc.Dictionary, nil)
	if err != nil {
		return nil, err
	}
	if d.Scope() != GlobalScope {
		return nil, fmt.Errorf("declarations dictionary has scope %q, want %q", d.Scope(), GlobalScope)
	}
	g.dict = d
	for _, pair := range []struct {
		table   *Table
		entries []ir.TableValue
	}{
		{g.typedefs, doc.Typedefs},
		{g.fieldinfos, doc.Fieldinfos},
		{g.compinfos, doc.Compinfos},
		{g.varinfos, doc.Varinfos},
	} {
		if err := pair.table.load(pair.entries); err != nil {
			return nil, err
		}
	}
	for _, e := range doc.CompinfoNames {
		g.compinfoNames[e.GCKey] = make(map[string]bool, len(e.Names))
		for _, n := range e.Names {
			g.compinfoNames[e.GCKey][n] = true
		}
	}
	return g, nil
}
