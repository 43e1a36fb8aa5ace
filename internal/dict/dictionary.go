package dict

import (
	"fmt"
	"strings"
	"sync"

	"github.com/proofdex/proofdex/internal/ir"
)

// GlobalScope is the owner name of the global (cross-file) dictionary.
const GlobalScope = "global"

// Categories is the fixed set of recognized record categories, in
// serialization order. The set is closed: asking for anything else is an
// UnknownCategoryError, never a silent new table.
var Categories = []string{
	"types",
	"expressions",
	"predicates",
	"interface-predicates",
}

// Dictionary is a named collection of interning tables, scoped either to one
// compilation unit or to the global namespace.
//
// A file-scoped dictionary holds a resolver into the global dictionary so
// that GlobalRef arguments can be validated at intern time. The global
// dictionary has no outward references.
type Dictionary struct {
	scope  string
	global ir.ResolveFunc // nil for the global dictionary

	mu     sync.Mutex // guards tables map creation
	tables map[string]*Table
}

// NewDictionary creates a file-scoped dictionary. global resolves references
// into the global dictionary and must not be nil; validating GlobalRef args
// against it is what keeps the local/global asymmetry honest.
func NewDictionary(scope string, global ir.ResolveFunc) *Dictionary {
	return &Dictionary{
		scope:  scope,
		global: global,
		tables: make(map[string]*Table),
	}
}

// newGlobalDictionary creates the dictionary underlying GlobalDeclarations.
func newGlobalDictionary() *Dictionary {
	return &Dictionary{
		scope:  GlobalScope,
		tables: make(map[string]*Table),
	}
}

// Scope returns the owner name: a file name, or GlobalScope.
func (d *Dictionary) Scope() string { return d.scope }

// IsGlobal reports whether this is the global dictionary.
func (d *Dictionary) IsGlobal() bool { return d.global == nil }

// GetTable returns the table for a recognized category, creating it on
// first use.
func (d *Dictionary) GetTable(category string) (*Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tables[category]; ok {
		return t, nil
	}
	if !recognized(category) {
		return nil, &UnknownCategoryError{Scope: d.scope, Category: category}
	}
	t := NewTable(category, d.validatorFor(category))
	d.tables[category] = t
	return t, nil
}

func recognized(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Intern interns a record in the named category table.
func (d *Dictionary) Intern(category string, tags []string, args []int) (int, error) {
	t, err := d.GetTable(category)
	if err != nil {
		return 0, err
	}
	return t.Intern(tags, args)
}

// Resolve resolves an index in the named category table.
func (d *Dictionary) Resolve(category string, ix int) (ir.TableValue, error) {
	t, err := d.GetTable(category)
	if err != nil {
		return ir.TableValue{}, err
	}
	return t.Resolve(ix)
}

// ResolveFunc adapts the dictionary to the renderer resolver shape.
func (d *Dictionary) ResolveFunc() ir.ResolveFunc {
	return func(category string, ix int) (ir.TableValue, error) {
		return d.Resolve(category, ix)
	}
}

// resolveRef resolves a decoded reference against this dictionary or the
// global one, per its kind.
func (d *Dictionary) resolveRef(category string, r ir.Ref) (ir.TableValue, error) {
	if r.Kind == ir.RefGlobal {
		if d.global == nil {
			// Self-reference: the global dictionary is its own namespace.
			return d.Resolve(category, r.Index)
		}
		return d.global(category, r.Index)
	}
	return d.Resolve(category, r.Index)
}

// checkRef validates one reference slot pair at intern time. A reference
// into the interning table itself is bounded by next (acyclicity) rather
// than resolved, since Intern already holds that table's mutex. For the
// global dictionary a GlobalRef is such a self-reference: it names its own
// namespace. Anything else must already resolve.
func (d *Dictionary) checkRef(category, targetCategory string, args []int, at, next int) error {
	r, err := ir.DecodeRef(args, at)
	if err != nil {
		return &DanglingReferenceError{Table: d.scope + "/" + category, Index: at}
	}
	selfTable := targetCategory == category &&
		(r.Kind == ir.RefLocal || (r.Kind == ir.RefGlobal && d.global == nil))
	if selfTable {
		if r.Index < 0 || r.Index >= next {
			return &DanglingReferenceError{Table: d.scope + "/" + category, Index: r.Index}
		}
		return nil
	}
	if _, err := d.resolveRef(targetCategory, r); err != nil {
		return &DanglingReferenceError{Table: refScope(d, r) + "/" + targetCategory, Index: r.Index}
	}
	return nil
}

func refScope(d *Dictionary, r ir.Ref) string {
	if r.Kind == ir.RefGlobal {
		return GlobalScope
	}
	return d.scope
}

// validatorFor wires the per-category argument domains:
//
//	types:       tptr/tarray/tfun carry a ref pair into types; tcomp a
//	             global ref pair (compinfo key, checked by the linker)
//	expressions: plain same-table indices
//	predicates,
//	interface-predicates: ref pairs into expressions
func (d *Dictionary) validatorFor(category string) Validator {
	switch category {
	case "types":
		return func(v ir.TableValue, next int) error {
			switch v.Tag() {
			case ir.TagPointer, ir.TagArray, ir.TagFun:
				return d.checkRef(category, "types", v.Args, 0, next)
			case ir.TagComp:
				// Compinfo keys live in the declarations tables; bounds are
				// the linker's responsibility. Require the slot shape only.
				if _, err := ir.DecodeRef(v.Args, 0); err != nil {
					return &DanglingReferenceError{Table: d.scope + "/" + category, Index: 0}
				}
				return nil
			default:
				return nil
			}
		}
	case "expressions":
		return nil // default same-table bound
	case "predicates", "interface-predicates":
		return func(v ir.TableValue, next int) error {
			for at := 0; at+1 < len(v.Args); at += 2 {
				if err := d.checkRef(category, "expressions", v.Args, at, next); err != nil {
					return err
				}
			}
			return nil
		}
	default:
		return nil
	}
}

// table returns an existing table without creating one.
func (d *Dictionary) table(category string) (*Table, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[category]
	return t, ok
}

// TableStat is one table's size, for reporting.
type TableStat struct {
	Category string `json:"category"`
	Size     int    `json:"size"`
}

// Stats returns per-category sizes in serialization order, omitting tables
// that were never created.
func (d *Dictionary) Stats() []TableStat {
	var out []TableStat
	for _, cat := range Categories {
		if t, ok := d.table(cat); ok {
			out = append(out, TableStat{Category: cat, Size: t.Len()})
		}
	}
	return out
}

// Digest fingerprints the full ordered dictionary contents.
func (d *Dictionary) Digest() (string, error) {
	entries := make([][]ir.TableValue, len(Categories))
	for i, cat := range Categories {
		if t, ok := d.table(cat); ok {
			entries[i] = t.Values()
		}
	}
	return ir.DictionaryDigest(d.scope, Categories, entries)
}

func (d *Dictionary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dictionary %s\n", d.scope)
	for _, cat := range Categories {
		if t, ok := d.table(cat); ok && t.Len() > 0 {
			b.WriteString(t.String())
		}
	}
	return b.String()
}
