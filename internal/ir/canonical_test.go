package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeysUTF16(t *testing.T) {
	obj := FactObject{
		"b": FactInt(2),
		"a": FactInt(1),
	}
	data, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(data))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(FactString("a < b && c > d"))
	require.NoError(t, err)
	assert.Equal(t, `"a < b && c > d"`, string(data))
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	obj := FactObject{
		"predicates": FactArray{
			TableValueFact(NewTableValue([]string{"not-null"}, []int{0, 2})),
		},
		"fn": FactString("main"),
	}
	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestMarshalCanonicalLineSeparatorsLiteral(t *testing.T) {
	data, err := MarshalCanonical(FactString("a b c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(data))
}

func TestMarshalCanonicalPreservesEscapedBackslash(t *testing.T) {
	// A literal backslash followed by the text "u2028" must survive as an
	// escaped backslash, not collapse into a line separator.
	data, err := MarshalCanonical(FactString("\\u2028"))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(data))

	// An odd backslash run in front of an actual separator: the backslash
	// stays escaped and the separator stays literal.
	data, err = MarshalCanonical(FactString("\\ "))
	require.NoError(t, err)
	assert.Equal(t, "\"\\\\ \"", string(data))
}

func TestInterfaceDigestTracksContent(t *testing.T) {
	p1 := NewTableValue([]string{"not-null"}, []int{0, 2})
	p2 := NewTableValue([]string{"not-zero"}, []int{0, 2})

	d1 := MustInterfaceDigest("f", []TableValue{p1})
	d1again := MustInterfaceDigest("f", []TableValue{p1})
	d2 := MustInterfaceDigest("f", []TableValue{p2})
	dOther := MustInterfaceDigest("g", []TableValue{p1})

	assert.Equal(t, d1, d1again, "digest is a pure function of content")
	assert.NotEqual(t, d1, d2, "different predicates yield different digests")
	assert.NotEqual(t, d1, dOther, "function name participates in the digest")
	assert.Len(t, d1, 64, "hex-encoded SHA-256")
}

func TestDictionaryDigestOrderSensitive(t *testing.T) {
	a := NewTableValue([]string{"tint", "int"}, nil)
	b := NewTableValue([]string{"tvoid"}, nil)

	d1, err := DictionaryDigest("file.c", []string{"types"}, [][]TableValue{{a, b}})
	require.NoError(t, err)
	d2, err := DictionaryDigest("file.c", []string{"types"}, [][]TableValue{{b, a}})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2, "entry order is part of dictionary identity")

	_, err = DictionaryDigest("file.c", []string{"types", "expressions"}, [][]TableValue{{a}})
	assert.Error(t, err, "category/entries length mismatch must be rejected")
}

func TestManifestDigest(t *testing.T) {
	d1, err := ManifestDigest("proj", []string{"a.c", "b.c"})
	require.NoError(t, err)
	d2, err := ManifestDigest("proj", []string{"b.c", "a.c"})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2, "file order is part of manifest identity")
}
