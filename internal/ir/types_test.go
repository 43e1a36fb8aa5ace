package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableValueKeyDistinguishesStructure(t *testing.T) {
	tests := []struct {
		name string
		a, b TableValue
		same bool
	}{
		{
			name: "identical records",
			a:    NewTableValue([]string{"tint", "int"}, nil),
			b:    NewTableValue([]string{"tint", "int"}, nil),
			same: true,
		},
		{
			name: "different tags",
			a:    NewTableValue([]string{"tint", "int"}, nil),
			b:    NewTableValue([]string{"tint", "char"}, nil),
			same: false,
		},
		{
			name: "different args",
			a:    NewTableValue([]string{"tptr"}, []int{0, 3}),
			b:    NewTableValue([]string{"tptr"}, []int{0, 4}),
			same: false,
		},
		{
			name: "tag and arg boundary not confusable",
			a:    NewTableValue([]string{"a", "b"}, []int{1}),
			b:    NewTableValue([]string{"a"}, []int{1}),
			same: false,
		},
		{
			name: "separator inside a tag",
			a:    NewTableValue([]string{"a,b"}, nil),
			b:    NewTableValue([]string{"a", "b"}, nil),
			same: false,
		},
		{
			name: "pipe inside a tag",
			a:    NewTableValue([]string{"a|1"}, nil),
			b:    NewTableValue([]string{"a"}, []int{1}),
			same: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, tt.a.Key() == tt.b.Key())
			assert.Equal(t, tt.same, tt.a.Equal(tt.b))
		})
	}
}

func TestNewTableValueCopiesSlices(t *testing.T) {
	tags := []string{"tptr"}
	args := []int{0, 3}
	v := NewTableValue(tags, args)
	tags[0] = "mutated"
	args[1] = 99
	assert.Equal(t, "tptr", v.Tags[0])
	assert.Equal(t, 3, v.Args[1])
}

func TestRefEncodeDecode(t *testing.T) {
	args := AppendRef(nil, Global(3))
	args = AppendRef(args, Local(7))
	require.Len(t, args, 4)

	g, err := DecodeRef(args, 0)
	require.NoError(t, err)
	assert.Equal(t, Global(3), g)

	l, err := DecodeRef(args, 2)
	require.NoError(t, err)
	assert.Equal(t, Local(7), l)

	_, err = DecodeRef(args, 3)
	assert.Error(t, err, "slot pair must not run off the end")

	_, err = DecodeRef([]int{42, 0}, 0)
	assert.Error(t, err, "invalid kind must be rejected")
}

func TestLocationString(t *testing.T) {
	loc := Location{File: "main.c", Line: 42}
	assert.Equal(t, "main.c:42", loc.String())
}
