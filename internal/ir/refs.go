package ir

import (
	"fmt"
	"strconv"
)

// RefKind distinguishes file-local from global dictionary references.
//
// The kind is explicit in the record shape (a dedicated argument slot in
// front of the index), never inferred from index magnitude. Reference
// confusion between the two namespaces is exactly the bug class this
// encoding exists to eliminate.
type RefKind int

const (
	RefLocal RefKind = iota
	RefGlobal
)

func (k RefKind) String() string {
	switch k {
	case RefLocal:
		return "local"
	case RefGlobal:
		return "global"
	default:
		return "refkind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Ref is a disambiguated reference into a dictionary table: which namespace
// (local or global) plus the index within it.
type Ref struct {
	Kind  RefKind `json:"kind"`
	Index int     `json:"ix"`
}

// Local returns a file-local reference.
func Local(ix int) Ref { return Ref{Kind: RefLocal, Index: ix} }

// Global returns a reference into the global dictionary.
func Global(ix int) Ref { return Ref{Kind: RefGlobal, Index: ix} }

func (r Ref) String() string {
	return r.Kind.String() + ":" + strconv.Itoa(r.Index)
}

// AppendRef encodes a reference into an args sequence as a (kind, index)
// slot pair.
func AppendRef(args []int, r Ref) []int {
	return append(args, int(r.Kind), r.Index)
}

// DecodeRef reads the slot pair starting at position i of args.
func DecodeRef(args []int, i int) (Ref, error) {
	if i < 0 || i+1 >= len(args) {
		return Ref{}, fmt.Errorf("reference slot pair out of range at %d (len %d)", i, len(args))
	}
	kind := RefKind(args[i])
	if kind != RefLocal && kind != RefGlobal {
		return Ref{}, fmt.Errorf("invalid reference kind %d at arg %d", args[i], i)
	}
	return Ref{Kind: kind, Index: args[i+1]}, nil
}
