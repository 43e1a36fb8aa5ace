package dict

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofdex/proofdex/internal/ir"
)

func emptyGlobal() ir.ResolveFunc {
	g := NewGlobalDeclarations()
	return g.ResolveFunc()
}

func TestGetTableFixedCategories(t *testing.T) {
	d := NewDictionary("file.c", emptyGlobal())

	tbl, err := d.GetTable("types")
	require.NoError(t, err)
	again, err := d.GetTable("types")
	require.NoError(t, err)
	assert.Same(t, tbl, again, "tables are created once")

	_, err = d.GetTable("widgets")
	require.Error(t, err)
	var uc *UnknownCategoryError
	assert.ErrorAs(t, err, &uc)
}

func TestGlobalReferenceValidation(t *testing.T) {
	g := NewGlobalDeclarations()
	// Global dictionary assigns: 0 = "int", ..., 3 = the target type.
	for _, tags := range [][]string{{"tvoid"}, {"tint", "char"}, {"tfloat", "float"}, {"tint", "int"}} {
		_, err := g.Dictionary().Intern("types", tags, nil)
		require.NoError(t, err)
	}

	d := NewDictionary("file.c", g.ResolveFunc())
	ix, err := d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Global(3)))
	require.NoError(t, err, "reference to an assigned global index is valid")
	assert.Equal(t, 0, ix)

	// The same record against a different, empty global dictionary dangles.
	d2 := NewDictionary("file.c", emptyGlobal())
	_, err = d2.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Global(3)))
	require.Error(t, err)
	assert.True(t, IsDanglingReference(err))
}

func TestGlobalDictionarySelfReference(t *testing.T) {
	g := NewGlobalDeclarations()
	d := g.Dictionary()

	tint, err := d.Intern("types", []string{"tint", "int"}, nil)
	require.NoError(t, err)

	// A global dictionary resolves global references against its own
	// tables, so interning a pointer to an already-assigned global type
	// must return instead of blocking on the types table.
	type result struct {
		ix  int
		err error
	}
	done := make(chan result, 1)
	go func() {
		ix, err := d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Global(tint)))
		done <- result{ix, err}
	}()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, tint+1, r.ix)
	case <-time.After(2 * time.Second):
		t.Fatal("interning a global self-reference did not return")
	}

	// Forward references stay rejected.
	_, err = d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Global(99)))
	require.Error(t, err)
	assert.True(t, IsDanglingReference(err))
}

func TestLocalTypeReferencesBounded(t *testing.T) {
	d := NewDictionary("file.c", emptyGlobal())

	base, err := d.Intern("types", []string{"tint", "int"}, nil)
	require.NoError(t, err)
	_, err = d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Local(base)))
	require.NoError(t, err)

	_, err = d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Local(7)))
	require.Error(t, err)
	assert.True(t, IsDanglingReference(err))
}

func TestPredicateArgsValidated(t *testing.T) {
	d := NewDictionary("file.c", emptyGlobal())

	x, err := d.Intern("expressions", []string{"evar", "x"}, nil)
	require.NoError(t, err)

	_, err = d.Intern("predicates", []string{ir.PredNotNull}, ir.AppendRef(nil, ir.Local(x)))
	require.NoError(t, err)

	_, err = d.Intern("predicates", []string{ir.PredNotNull}, ir.AppendRef(nil, ir.Local(5)))
	require.Error(t, err)
	assert.True(t, IsDanglingReference(err))
}

func TestDocumentRoundTrip(t *testing.T) {
	g := NewGlobalDeclarations()
	d := NewDictionary("file.c", g.ResolveFunc())

	tint, err := d.Intern("types", []string{"tint", "int"}, nil)
	require.NoError(t, err)
	_, err = d.Intern("types", []string{"tptr"}, ir.AppendRef(nil, ir.Local(tint)))
	require.NoError(t, err)
	x, err := d.Intern("expressions", []string{"evar", "x"}, nil)
	require.NoError(t, err)
	_, err = d.Intern("predicates", []string{ir.PredNotNull}, ir.AppendRef(nil, ir.Local(x)))
	require.NoError(t, err)

	doc := d.MarshalDocument()

	// Through JSON and back, entry order per category must be identical.
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))

	d2, err := UnmarshalDocument(decoded, g.ResolveFunc())
	require.NoError(t, err)

	for _, cat := range Categories {
		t1, err := d.GetTable(cat)
		require.NoError(t, err)
		t2, err := d2.GetTable(cat)
		require.NoError(t, err)
		require.Equal(t, t1.Len(), t2.Len(), cat)
		v1 := t1.Values()
		v2 := t2.Values()
		for i := range v1 {
			assert.True(t, v1[i].Equal(v2[i]), "%s[%d]", cat, i)
		}
	}

	dig1, err := d.Digest()
	require.NoError(t, err)
	dig2, err := d2.Digest()
	require.NoError(t, err)
	assert.Equal(t, dig1, dig2)
}

func TestRoundTripEmptyDictionary(t *testing.T) {
	g := NewGlobalDeclarations()
	d := NewDictionary("empty.c", g.ResolveFunc())
	doc := d.MarshalDocument()
	d2, err := UnmarshalDocument(doc, g.ResolveFunc())
	require.NoError(t, err)
	assert.Equal(t, "empty.c", d2.Scope())
	for _, block := range doc.Tables {
		assert.Empty(t, block.Entries)
	}
}

func TestImportPredicateCopiesStructure(t *testing.T) {
	g := NewGlobalDeclarations()
	callee := NewDictionary("callee.c", g.ResolveFunc())
	caller := NewDictionary("caller.c", g.ResolveFunc())

	buf, err := callee.Intern("expressions", []string{"evar", "buf"}, nil)
	require.NoError(t, err)
	n, err := callee.Intern("expressions", []string{"evar", "n"}, nil)
	require.NoError(t, err)
	args := ir.AppendRef(nil, ir.Local(buf))
	args = ir.AppendRef(args, ir.Local(n))
	pred, err := callee.Intern("interface-predicates", []string{ir.PredInitRange}, args)
	require.NoError(t, err)

	copied, err := ImportPredicate(caller, callee, "interface-predicates", pred)
	require.NoError(t, err)

	rendered := ir.RenderPredicate(caller.ResolveFunc(), g.ResolveFunc(), copied)
	assert.Equal(t, "initialized-range(buf, len:n)", rendered)

	// Importing again is idempotent in the caller's tables.
	copiedAgain, err := ImportPredicate(caller, callee, "interface-predicates", pred)
	require.NoError(t, err)
	assert.Equal(t, copied, copiedAgain)

	// A non-predicate record is refused.
	_, err = ImportPredicate(caller, callee, "expressions", buf)
	assert.Error(t, err)
}
