package ir

import (
	"slices"
	"unicode/utf16"
)

// FactValue is a sealed interface for the constrained value domain used in
// digests and artifact documents. Only FactString, FactInt, FactArray, and
// FactObject implement it. There is no float and no null: neither has a
// stable canonical form and neither occurs in analysis facts.
type FactValue interface {
	factValue()
}

// FactString is a string fact.
type FactString string

func (FactString) factValue() {}

// FactInt is an integer fact. Always int64, never float64.
type FactInt int64

func (FactInt) factValue() {}

// FactArray is an ordered sequence of facts.
type FactArray []FactValue

func (FactArray) factValue() {}

// FactObject is a string-keyed map of facts.
// Use SortedKeys for deterministic iteration.
type FactObject map[string]FactValue

func (FactObject) factValue() {}

// TableValueFact converts an interned record to its fact form for digesting.
func TableValueFact(v TableValue) FactObject {
	tags := make(FactArray, len(v.Tags))
	for i, t := range v.Tags {
		tags[i] = FactString(t)
	}
	args := make(FactArray, len(v.Args))
	for i, a := range v.Args {
		args[i] = FactInt(a)
	}
	return FactObject{"t": tags, "a": args}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs above the BMP.
func (obj FactObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785. utf16.Encode handles surrogate pairs correctly.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
