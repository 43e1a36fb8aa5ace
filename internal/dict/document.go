package dict

import (
	"fmt"

	"github.com/proofdex/proofdex/internal/ir"
)

// Document is the persisted form of a dictionary: per category, the ordered
// entry list. Order is the contract: consumers persist indices externally
// and rely on positional stability, so deserialize(serialize(d)) must
// reproduce identical entries in identical order.
type Document struct {
	Kind   string       `json:"kind"`
	Schema string       `json:"schema"`
	Scope  string       `json:"scope"`
	Tables []TableBlock `json:"tables"`
}

// TableBlock is one category's ordered entries.
type TableBlock struct {
	Category string          `json:"category"`
	Entries  []ir.TableValue `json:"entries"`
}

// DocumentKind identifies a dictionary document.
const DocumentKind = "dictionary"

// MarshalDocument captures every recognized category in fixed order. Absent
// tables serialize as empty so the document shape is stable.
func (d *Dictionary) MarshalDocument() Document {
	doc := Document{
		Kind:   DocumentKind,
		Schema: ir.SchemaVersion,
		Scope:  d.scope,
	}
	for _, cat := range Categories {
		block := TableBlock{Category: cat, Entries: []ir.TableValue{}}
		if t, ok := d.table(cat); ok {
			block.Entries = t.Values()
		}
		doc.Tables = append(doc.Tables, block)
	}
	return doc
}

// UnmarshalDocument replays a document into a fresh file-scoped dictionary.
// Entries are replayed in insertion order, which is exactly what makes
// restart reproduce the same indices for the same content.
func UnmarshalDocument(doc Document, global ir.ResolveFunc) (*Dictionary, error) {
	if doc.Kind != DocumentKind {
		return nil, fmt.Errorf("document kind %q, want %q", doc.Kind, DocumentKind)
	}
	var d *Dictionary
	if doc.Scope == GlobalScope {
		d = newGlobalDictionary()
	} else {
		d = NewDictionary(doc.Scope, global)
	}
	for _, block := range doc.Tables {
		t, err := d.GetTable(block.Category)
		if err != nil {
			return nil, err
		}
		if err := t.load(block.Entries); err != nil {
			return nil, err
		}
	}
	return d, nil
}
