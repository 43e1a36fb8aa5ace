package ir

import (
	"strconv"
	"strings"
)

// TableValue is one interned record: an ordered tag sequence plus an ordered
// sequence of argument indices. Args reference previously assigned indices of
// sub-records; assignment order is a topological order, so tables are acyclic
// by construction.
//
// TableValue is immutable once interned. "Editing" a conceptual record means
// interning a new one and repointing the referencing record's args.
type TableValue struct {
	Tags []string `json:"t"`
	Args []int    `json:"a"`
}

// NewTableValue copies tags and args so the interned record cannot be
// mutated through the caller's slices.
func NewTableValue(tags []string, args []int) TableValue {
	v := TableValue{
		Tags: make([]string, len(tags)),
		Args: make([]int, len(args)),
	}
	copy(v.Tags, tags)
	copy(v.Args, args)
	return v
}

// Tag returns the leading tag, or "" for an untagged record.
func (v TableValue) Tag() string {
	if len(v.Tags) == 0 {
		return ""
	}
	return v.Tags[0]
}

// Key returns the structural lookup key for this record. Two records are
// equal iff their keys are equal. Tags are quoted so tag content containing
// the separators cannot collide with the tag boundaries. The key is only a
// map key; persisted form is the ordered entry list, never the key.
func (v TableValue) Key() string {
	var b strings.Builder
	for i, t := range v.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(t))
	}
	b.WriteByte('|')
	for i, a := range v.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(a))
	}
	return b.String()
}

// Equal reports element-wise equality of tags and args.
func (v TableValue) Equal(o TableValue) bool {
	if len(v.Tags) != len(o.Tags) || len(v.Args) != len(o.Args) {
		return false
	}
	for i := range v.Tags {
		if v.Tags[i] != o.Tags[i] {
			return false
		}
	}
	for i := range v.Args {
		if v.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

func (v TableValue) String() string {
	return v.Key()
}

// Location identifies a source position in the analyzed C program.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Byte int    `json:"byte,omitempty"`
}

func (l Location) String() string {
	return l.File + ":" + strconv.Itoa(l.Line)
}

// TypeDef is a named global type definition: a name bound to a type index in
// the global dictionary's types table.
type TypeDef struct {
	Name   string `json:"name"`
	TypeIx int    `json:"type_ix"`
}
