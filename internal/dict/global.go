package dict

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/proofdex/proofdex/internal/ir"
)

// GlobalDeclarations indexes type definitions, struct definitions, and
// global variables from all files into one cross-file namespace.
//
// Struct linking may involve backtracking. When a struct is being indexed
// its key is pending; a request for the same key before it completes (a
// recursive or mutually recursive struct) gets a conjectured global key:
// either an existing global struct with the same field shape, or a freshly
// reserved index. If the finished struct lands on a different key than the
// conjecture, the (key, conjecture) pair is recorded as incompatible, the
// table is reset to the file checkpoint, and the whole file is re-indexed.
//
// Linking is single-threaded: the linker runs before per-file analysis
// fans out, which is what makes global indices assignable before any
// file-local record that uses them.
type GlobalDeclarations struct {
	dict *Dictionary

	typedefs   *Table // tags: [name]          args: [type ix]
	fieldinfos *Table // tags: [field name]    args: [type ix]
	compinfos  *Table // tags: ["?"]           args: [struct flag] + fieldinfo ixs
	varinfos   *Table // tags: [linked name]   args: [type ix]

	compinfoNames map[int]map[string]bool // gckey -> names seen for it
	fieldstrings  map[string][]int        // field shape -> candidate gckeys

	ckey2gckey map[string]map[int]int // file -> ckey -> gckey
	vid2gvid   map[string]map[int]int // file -> vid -> gvid

	// per-file backtracking state
	current       map[int]ir.CompDecl
	pending       []int
	conjectured   map[int]int
	reserved      map[int]int
	incompatibles map[int]map[int]bool
}

// NewGlobalDeclarations creates an empty global namespace.
func NewGlobalDeclarations() *GlobalDeclarations {
	g := &GlobalDeclarations{
		dict:          newGlobalDictionary(),
		compinfoNames: make(map[int]map[string]bool),
		fieldstrings:  make(map[string][]int),
		ckey2gckey:    make(map[string]map[int]int),
		vid2gvid:      make(map[string]map[int]int),
		conjectured:   make(map[int]int),
		reserved:      make(map[int]int),
		incompatibles: make(map[int]map[int]bool),
	}
	g.typedefs = NewTable("typedefs", g.typeArgValidator())
	g.fieldinfos = NewTable("fieldinfos", g.typeArgValidator())
	g.varinfos = NewTable("varinfos", g.typeArgValidator())
	g.compinfos = NewTable("compinfos", func(v ir.TableValue, next int) error {
		if len(v.Args) < 1 || v.Args[0] < 0 || v.Args[0] > 1 {
			return fmt.Errorf("compinfo record needs a leading struct flag")
		}
		bound := g.fieldinfos.Len()
		for _, a := range v.Args[1:] {
			if a < 0 || a >= bound {
				return &DanglingReferenceError{Table: "fieldinfos", Index: a}
			}
		}
		return nil
	})
	return g
}

// typeArgValidator checks that the leading arg is an assigned global type
// index.
func (g *GlobalDeclarations) typeArgValidator() Validator {
	return func(v ir.TableValue, next int) error {
		if len(v.Args) < 1 {
			return fmt.Errorf("record needs a type index argument")
		}
		if _, err := g.dict.Resolve("types", v.Args[0]); err != nil {
			return &DanglingReferenceError{Table: GlobalScope + "/types", Index: v.Args[0]}
		}
		return nil
	}
}

// Dictionary returns the global basic-types dictionary.
func (g *GlobalDeclarations) Dictionary() *Dictionary { return g.dict }

// ResolveFunc is handed to file-local dictionaries so their GlobalRef
// arguments validate against this namespace.
func (g *GlobalDeclarations) ResolveFunc() ir.ResolveFunc {
	return g.dict.ResolveFunc()
}

// ---------------------------------------------------------------- typedefs

// AddTypeDef interns a named type definition bound to a global type index.
func (g *GlobalDeclarations) AddTypeDef(name string, typeIx int) (int, error) {
	return g.typedefs.Intern([]string{name}, []int{typeIx})
}

// TypeDefs lists all named type definitions in index order.
func (g *GlobalDeclarations) TypeDefs() []ir.TypeDef {
	var out []ir.TypeDef
	for _, v := range g.typedefs.Values() {
		out = append(out, ir.TypeDef{Name: v.Tag(), TypeIx: v.Args[0]})
	}
	return out
}

// LookupTypeDef finds a type definition by name.
func (g *GlobalDeclarations) LookupTypeDef(name string) (ir.TypeDef, bool) {
	for _, v := range g.typedefs.Values() {
		if v.Tag() == name {
			return ir.TypeDef{Name: name, TypeIx: v.Args[0]}, true
		}
	}
	return ir.TypeDef{}, false
}

// ------------------------------------------------------------ linker maps

// GCKey returns the global compinfo key for a file-local key.
func (g *GlobalDeclarations) GCKey(file string, ckey int) (int, bool) {
	m, ok := g.ckey2gckey[file]
	if !ok {
		return 0, false
	}
	gckey, ok := m[ckey]
	return gckey, ok
}

// GVID returns the global variable id for a file-local vid.
func (g *GlobalDeclarations) GVID(file string, vid int) (int, bool) {
	m, ok := g.vid2gvid[file]
	if !ok {
		return 0, false
	}
	gvid, ok := m[vid]
	return gvid, ok
}

// CompinfoName returns one recorded name for a global struct key.
func (g *GlobalDeclarations) CompinfoName(gckey int) string {
	names := g.compinfoNames[gckey]
	if len(names) == 0 {
		return "?"
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	return sorted[0]
}

// Compinfo resolves a global struct record.
func (g *GlobalDeclarations) Compinfo(gckey int) (ir.TableValue, error) {
	return g.compinfos.Resolve(gckey)
}

// Varinfo resolves a global variable record.
func (g *GlobalDeclarations) Varinfo(gvid int) (ir.TableValue, error) {
	return g.varinfos.Resolve(gvid)
}

// VarinfoByName finds a linked global variable by name.
func (g *GlobalDeclarations) VarinfoByName(name string) (int, bool) {
	for i, v := range g.varinfos.Values() {
		if v.Tag() == name {
			return i, true
		}
	}
	return 0, false
}

// --------------------------------------------------------- type transfer

// ImportType copies a file-local type into the global types table,
// rewriting references: local type references are imported recursively,
// local compinfo keys are mapped (or conjectured) into global keys, and
// already-global references are kept after validation.
func (g *GlobalDeclarations) ImportType(file string, local *Dictionary, ix int) (int, error) {
	v, err := local.Resolve("types", ix)
	if err != nil {
		return 0, err
	}
	switch v.Tag() {
	case ir.TagPointer, ir.TagArray, ir.TagFun:
		r, err := ir.DecodeRef(v.Args, 0)
		if err != nil {
			return 0, err
		}
		var gix int
		if r.Kind == ir.RefGlobal {
			gix = r.Index
			if _, err := g.dict.Resolve("types", gix); err != nil {
				return 0, &DanglingReferenceError{Table: GlobalScope + "/types", Index: gix}
			}
		} else {
			gix, err = g.ImportType(file, local, r.Index)
			if err != nil {
				return 0, err
			}
		}
		args := ir.AppendRef(nil, ir.Global(gix))
		args = append(args, v.Args[2:]...)
		return g.dict.Intern("types", v.Tags, args)
	case ir.TagComp:
		r, err := ir.DecodeRef(v.Args, 0)
		if err != nil {
			return 0, err
		}
		gckey := r.Index
		if r.Kind == ir.RefLocal {
			gckey, err = g.indexCompinfoKey(file, local, r.Index)
			if err != nil {
				return 0, err
			}
		}
		return g.dict.Intern("types", v.Tags, ir.AppendRef(nil, ir.Global(gckey)))
	default:
		return g.dict.Intern("types", v.Tags, v.Args)
	}
}

// ------------------------------------------------------ compinfo linking

// shapeOf joins field names and rendered field types into the equivalence
// key used to conjecture that two files declare the same struct. The shape
// is computed from the file's declaration, so the pending and committed
// paths agree on it.
func (g *GlobalDeclarations) shapeOf(local *Dictionary, c ir.CompDecl) string {
	localResolve := local.ResolveFunc()
	globalResolve := g.dict.ResolveFunc()
	parts := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		parts = append(parts, f.Name+":"+ir.RenderType(localResolve, globalResolve, f.TypeIx))
	}
	return strings.Join(parts, ";")
}

// indexFieldInfo interns one field of a struct being linked.
func (g *GlobalDeclarations) indexFieldInfo(file string, local *Dictionary, f ir.FieldDecl) (int, error) {
	gtype, err := g.ImportType(file, local, f.TypeIx)
	if err != nil {
		return 0, err
	}
	return g.fieldinfos.Intern([]string{f.Name}, []int{gtype})
}

// conjectureKey picks a global key for a struct that is referenced while
// still pending: a shape-compatible existing key if one is not already known
// incompatible, otherwise a freshly reserved index.
func (g *GlobalDeclarations) conjectureKey(c ir.CompDecl, shape string) int {
	for _, gckey := range g.fieldstrings[shape] {
		if !g.incompatibles[c.Key][gckey] {
			g.conjectured[c.Key] = gckey
			g.removePending(c.Key)
			return gckey
		}
	}
	reservedKey := g.compinfos.Reserve()
	g.reserved[c.Key] = reservedKey
	g.removePending(c.Key)
	return reservedKey
}

func (g *GlobalDeclarations) removePending(ckey int) {
	for i, p := range g.pending {
		if p == ckey {
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			return
		}
	}
}

func (g *GlobalDeclarations) isPending(ckey int) bool {
	for _, p := range g.pending {
		if p == ckey {
			return true
		}
	}
	return false
}

// indexCompinfoKey converts a file-local compinfo key to its global key,
// conjecturing one if the struct is still being indexed.
func (g *GlobalDeclarations) indexCompinfoKey(file string, local *Dictionary, ckey int) (int, error) {
	if gckey, ok := g.GCKey(file, ckey); ok {
		return gckey, nil
	}
	if gckey, ok := g.conjectured[ckey]; ok {
		return gckey, nil
	}
	if gckey, ok := g.reserved[ckey]; ok {
		return gckey, nil
	}
	c, ok := g.current[ckey]
	if !ok {
		return 0, &DanglingReferenceError{Table: file + "/compinfos", Index: ckey}
	}
	if g.isPending(ckey) {
		return g.conjectureKey(c, g.shapeOf(local, c)), nil
	}
	return g.indexCompinfo(file, local, c)
}

// indexCompinfo links one struct definition into the global table.
func (g *GlobalDeclarations) indexCompinfo(file string, local *Dictionary, c ir.CompDecl) (int, error) {
	if gckey, ok := g.GCKey(file, c.Key); ok {
		return gckey, nil
	}
	g.pending = append(g.pending, c.Key)

	structFlag := 0
	if c.Struct {
		structFlag = 1
	}
	fieldIxs := make([]int, 0, len(c.Fields))
	for _, f := range c.Fields {
		fx, err := g.indexFieldInfo(file, local, f)
		if err != nil {
			return 0, err
		}
		fieldIxs = append(fieldIxs, fx)
	}
	args := append([]int{structFlag}, fieldIxs...)
	shape := g.shapeOf(local, c)

	if reservedKey, ok := g.reserved[c.Key]; ok {
		// The commit collapses to an earlier key when the finished struct
		// duplicates one linked in the meantime.
		gckey, err := g.compinfos.CommitReserved(reservedKey, []string{"?"}, args)
		if err != nil {
			return 0, err
		}
		delete(g.reserved, c.Key)
		g.recordCompinfo(file, c, gckey, shape)
		return gckey, nil
	}

	gckey, err := g.compinfos.Intern([]string{"?"}, args)
	if err != nil {
		return 0, err
	}
	if conjecturedKey, ok := g.conjectured[c.Key]; ok {
		if conjecturedKey != gckey {
			return 0, &ConjectureError{Key: c.Key, ConjecturedAt: conjecturedKey, CommittedAt: gckey}
		}
		delete(g.conjectured, c.Key)
	}
	g.removePending(c.Key)
	g.recordCompinfo(file, c, gckey, shape)
	return gckey, nil
}

func (g *GlobalDeclarations) recordCompinfo(file string, c ir.CompDecl, gckey int, shape string) {
	if g.compinfoNames[gckey] == nil {
		g.compinfoNames[gckey] = make(map[string]bool)
	}
	g.compinfoNames[gckey][c.Name] = true
	found := false
	for _, k := range g.fieldstrings[shape] {
		if k == gckey {
			found = true
			break
		}
	}
	if !found {
		g.fieldstrings[shape] = append(g.fieldstrings[shape], gckey)
	}
	if g.ckey2gckey[file] == nil {
		g.ckey2gckey[file] = make(map[int]int)
	}
	g.ckey2gckey[file][c.Key] = gckey
}

// cleanup records an incompatibility and drops all state past the
// checkpoint before a retry.
func (g *GlobalDeclarations) cleanup(checkpoint, ckey, gckey int) {
	if g.incompatibles[ckey] == nil {
		g.incompatibles[ckey] = make(map[int]bool)
	}
	g.incompatibles[ckey][gckey] = true
	g.pending = nil
	g.conjectured = make(map[int]int)
	g.reserved = make(map[int]int)
	for k := range g.compinfoNames {
		if k >= checkpoint {
			delete(g.compinfoNames, k)
		}
	}
	for shape, keys := range g.fieldstrings {
		kept := keys[:0]
		for _, k := range keys {
			if k < checkpoint {
				kept = append(kept, k)
			}
		}
		if len(kept) == 0 {
			delete(g.fieldstrings, shape)
		} else {
			g.fieldstrings[shape] = kept
		}
	}
}

// IndexFileCompinfos links all struct definitions of one file, retrying
// from a table checkpoint whenever a conjecture fails. Each failure adds an
// incompatible (key, conjecture) pair, so the retry loop terminates.
func (g *GlobalDeclarations) IndexFileCompinfos(file string, local *Dictionary, cs []ir.CompDecl) error {
	if len(cs) == 0 {
		return nil
	}
	g.current = make(map[int]ir.CompDecl, len(cs))
	for _, c := range cs {
		g.current[c.Key] = c
	}
	defer func() { g.current = nil }()

	for {
		g.compinfos.SetCheckpoint()
		g.ckey2gckey[file] = make(map[int]int)
		err := func() error {
			for _, c := range cs {
				if _, err := g.indexCompinfo(file, local, c); err != nil {
					return err
				}
			}
			return nil
		}()
		if err == nil {
			g.compinfos.RemoveCheckpoint()
			g.incompatibles = make(map[int]map[int]bool)
			return nil
		}
		var ce *ConjectureError
		if errors.As(err, &ce) {
			checkpoint := g.compinfos.ResetToCheckpoint()
			g.cleanup(checkpoint, ce.Key, ce.ConjecturedAt)
			continue
		}
		return err
	}
}

// -------------------------------------------------------- varinfo linking

// IndexVarinfo links one global variable or function declaration. Static
// variables are mangled with their file name so distinct statics of the
// same name never collapse.
func (g *GlobalDeclarations) IndexVarinfo(file string, local *Dictionary, v ir.VarDecl) (int, error) {
	name := v.Name
	if v.Storage == "s" {
		name = v.Name + "__file__" + file + "__"
	}
	gtype, err := g.ImportType(file, local, v.TypeIx)
	if err != nil {
		return 0, err
	}
	gvid, err := g.varinfos.Intern([]string{name}, []int{gtype})
	if err != nil {
		return 0, err
	}
	if g.vid2gvid[file] == nil {
		g.vid2gvid[file] = make(map[int]int)
	}
	g.vid2gvid[file][v.VID] = gvid
	return gvid, nil
}

// IndexFileVarinfos links all global variables of one file in order.
func (g *GlobalDeclarations) IndexFileVarinfos(file string, local *Dictionary, vs []ir.VarDecl) error {
	for _, v := range vs {
		if _, err := g.IndexVarinfo(file, local, v); err != nil {
			return err
		}
	}
	return nil
}

// Stats renders table sizes for reporting.
func (g *GlobalDeclarations) Stats() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 40) + "\n")
	b.WriteString("global declarations\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	for _, t := range []*Table{g.typedefs, g.compinfos, g.fieldinfos, g.varinfos} {
		if t.Len() > 0 {
			fmt.Fprintf(&b, "%-25s%4d\n", t.Name(), t.Len())
		}
	}
	for _, s := range g.dict.Stats() {
		fmt.Fprintf(&b, "%-25s%4d\n", s.Category, s.Size)
	}
	return b.String()
}
