package dict

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofdex/proofdex/internal/ir"
)

// fileWithTypes builds a file dictionary holding int, int*, and a pointer to
// the struct with the given local compinfo key.
func fileWithTypes(t *testing.T, g *GlobalDeclarations, name string, ckey int) *Dictionary {
	t.Helper()
	d := NewDictionary(name, g.ResolveFunc())
	tint, err := d.Intern("types", []string{"tint", "int"}, nil)
	require.NoError(t, err)
	_, err = d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Local(tint)))
	require.NoError(t, err)
	tcomp, err := d.Intern("types", []string{"tcomp"}, ir.AppendRef(nil, ir.Local(ckey)))
	require.NoError(t, err)
	_, err = d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Local(tcomp)))
	require.NoError(t, err)
	return d
}

func TestImportTypeRewritesToGlobal(t *testing.T) {
	g := NewGlobalDeclarations()
	d := NewDictionary("a.c", g.ResolveFunc())

	tint, err := d.Intern("types", []string{"tint", "int"}, nil)
	require.NoError(t, err)
	tptr, err := d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Local(tint)))
	require.NoError(t, err)

	gix, err := g.ImportType("a.c", d, tptr)
	require.NoError(t, err)

	v, err := g.Dictionary().Resolve("types", gix)
	require.NoError(t, err)
	assert.Equal(t, "tptr", v.Tag())
	r, err := ir.DecodeRef(v.Args, 0)
	require.NoError(t, err)
	assert.Equal(t, ir.RefGlobal, r.Kind, "imported references live in the global namespace")

	// Importing the same local type twice dedups in the global table.
	gixAgain, err := g.ImportType("a.c", d, tptr)
	require.NoError(t, err)
	assert.Equal(t, gix, gixAgain)
}

func TestTypeDefs(t *testing.T) {
	g := NewGlobalDeclarations()
	tint, err := g.Dictionary().Intern("types", []string{"tint", "int"}, nil)
	require.NoError(t, err)

	ix, err := g.AddTypeDef("size_t", tint)
	require.NoError(t, err)
	again, err := g.AddTypeDef("size_t", tint)
	require.NoError(t, err)
	assert.Equal(t, ix, again)

	td, ok := g.LookupTypeDef("size_t")
	require.True(t, ok)
	assert.Equal(t, tint, td.TypeIx)

	_, err = g.AddTypeDef("bad", 99)
	require.Error(t, err)
	assert.True(t, IsDanglingReference(err))
}

func TestLinkSelfRecursiveStruct(t *testing.T) {
	g := NewGlobalDeclarations()
	d := fileWithTypes(t, g, "list.c", 1)

	// struct node { int v; struct node *next; }
	node := ir.CompDecl{
		Key:    1,
		Name:   "node",
		Struct: true,
		Fields: []ir.FieldDecl{
			{Name: "v", TypeIx: 0},
			{Name: "next", TypeIx: 3},
		},
	}
	require.NoError(t, g.IndexFileCompinfos("list.c", d, []ir.CompDecl{node}))

	gckey, ok := g.GCKey("list.c", 1)
	require.True(t, ok)
	ci, err := g.Compinfo(gckey)
	require.NoError(t, err)
	assert.Equal(t, 1, ci.Args[0], "struct flag")
	assert.Len(t, ci.Args, 3, "flag plus two fields")
	assert.Equal(t, "node", g.CompinfoName(gckey))
}

func TestLinkMergesStructAcrossFiles(t *testing.T) {
	g := NewGlobalDeclarations()

	decl := func(key int) ir.CompDecl {
		return ir.CompDecl{
			Key:    key,
			Name:   "point",
			Struct: true,
			Fields: []ir.FieldDecl{
				{Name: "x", TypeIx: 0},
				{Name: "y", TypeIx: 0},
			},
		}
	}
	d1 := fileWithTypes(t, g, "a.c", 5)
	d2 := fileWithTypes(t, g, "b.c", 9)

	require.NoError(t, g.IndexFileCompinfos("a.c", d1, []ir.CompDecl{decl(5)}))
	require.NoError(t, g.IndexFileCompinfos("b.c", d2, []ir.CompDecl{decl(9)}))

	ga, ok := g.GCKey("a.c", 5)
	require.True(t, ok)
	gb, ok := g.GCKey("b.c", 9)
	require.True(t, ok)
	assert.Equal(t, ga, gb, "structurally identical structs share one global key")
}

func TestLinkReservedStructCollapsesToExisting(t *testing.T) {
	g := NewGlobalDeclarations()

	point := func(key int) ir.CompDecl {
		return ir.CompDecl{
			Key:    key,
			Name:   "point",
			Struct: true,
			Fields: []ir.FieldDecl{{Name: "x", TypeIx: 0}},
		}
	}
	d1 := fileWithTypes(t, g, "a.c", 2)
	require.NoError(t, g.IndexFileCompinfos("a.c", d1, []ir.CompDecl{point(2)}))
	existing, ok := g.GCKey("a.c", 2)
	require.True(t, ok)

	// A conjecture reserved a fresh key for b.c's copy before the matching
	// shape was known. Committing the finished struct must collapse to the
	// existing key instead of failing the file's link.
	d2 := fileWithTypes(t, g, "b.c", 1)
	reservedKey := g.compinfos.Reserve()
	g.reserved[1] = reservedKey

	gckey, err := g.indexCompinfo("b.c", d2, point(1))
	require.NoError(t, err)
	assert.Equal(t, existing, gckey, "duplicate content links to the first key")

	mapped, ok := g.GCKey("b.c", 1)
	require.True(t, ok)
	assert.Equal(t, existing, mapped)

	// The reserved index stays resolvable for references assigned while the
	// conjecture was live.
	v, err := g.Compinfo(reservedKey)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Args[0])
}

func TestIndexVarinfoStaticMangling(t *testing.T) {
	g := NewGlobalDeclarations()
	d := fileWithTypes(t, g, "a.c", 1)

	gvid, err := g.IndexVarinfo("a.c", d, ir.VarDecl{VID: 7, Name: "counter", Storage: "s", TypeIx: 0})
	require.NoError(t, err)
	v, err := g.Varinfo(gvid)
	require.NoError(t, err)
	assert.Equal(t, "counter__file__a.c__", v.Tag())

	mapped, ok := g.GVID("a.c", 7)
	require.True(t, ok)
	assert.Equal(t, gvid, mapped)

	// A static of the same name in another file stays distinct.
	d2 := fileWithTypes(t, g, "b.c", 1)
	gvid2, err := g.IndexVarinfo("b.c", d2, ir.VarDecl{VID: 3, Name: "counter", Storage: "s", TypeIx: 0})
	require.NoError(t, err)
	assert.NotEqual(t, gvid, gvid2)

	// Non-static declarations of one name link to one global variable.
	e1, err := g.IndexVarinfo("a.c", d, ir.VarDecl{VID: 8, Name: "shared", Storage: "n", TypeIx: 0})
	require.NoError(t, err)
	e2, err := g.IndexVarinfo("b.c", d2, ir.VarDecl{VID: 4, Name: "shared", Storage: "e", TypeIx: 0})
	require.NoError(t, err)
	assert.Equal(t, e1, e2)
}

func TestDeclarationsDocumentRoundTrip(t *testing.T) {
	g := NewGlobalDeclarations()
	d := fileWithTypes(t, g, "list.c", 1)
	node := ir.CompDecl{
		Key:    1,
		Name:   "node",
		Struct: true,
		Fields: []ir.FieldDecl{{Name: "next", TypeIx: 3}},
	}
	require.NoError(t, g.IndexFileCompinfos("list.c", d, []ir.CompDecl{node}))
	tint, err := g.Dictionary().Intern("types", []string{"tint", "int"}, nil)
	require.NoError(t, err)
	_, err = g.AddTypeDef("myint", tint)
	require.NoError(t, err)

	doc := g.MarshalDocument()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	var decoded DeclarationsDocument
	require.NoError(t, json.Unmarshal(data, &decoded))

	g2, err := UnmarshalDeclarations(decoded)
	require.NoError(t, err)

	assert.Equal(t, g.TypeDefs(), g2.TypeDefs())
	require.Equal(t, g.compinfos.Len(), g2.compinfos.Len())
	for i, v := range g.compinfos.Values() {
		assert.True(t, v.Equal(g2.compinfos.Values()[i]))
	}
	assert.Equal(t, g.CompinfoName(0), g2.CompinfoName(0))

	dig1, err := g.Dictionary().Digest()
	require.NoError(t, err)
	dig2, err := g2.Dictionary().Digest()
	require.NoError(t, err)
	assert.Equal(t, dig1, dig2)
}
