package ir

import (
	"fmt"
	"strconv"
)

// Type record tags. Shapes (tags / args):
//
//	tvoid  []                     / []
//	tint   ["tint", ikind]        / []
//	tfloat ["tfloat", fkind]      / []
//	tptr   ["tptr"]               / [ref pair: pointee type]
//	tarray ["tarray"]             / [ref pair: element type, length (-1 unknown)]
//	tfun   ["tfun"]               / [ref pair: return type]
//	tcomp  ["tcomp"]              / [ref pair: compinfo key, global]
//	tnamed ["tnamed", name]       / []
const (
	TagVoid    = "tvoid"
	TagInt     = "tint"
	TagFloat   = "tfloat"
	TagPointer = "tptr"
	TagArray   = "tarray"
	TagFun     = "tfun"
	TagComp    = "tcomp"
	TagNamed   = "tnamed"
)

// Expression record tags. Expression args reference the same expressions
// table with plain local indices.
//
//	evar   ["evar", name]         / []
//	econst ["econst", literal]    / []
//	eunop  ["eunop", op]          / [operand]
//	ebinop ["ebinop", op]         / [lhs, rhs]
//	eindex ["eindex"]             / [base, index]
const (
	TagVar   = "evar"
	TagConst = "econst"
	TagUnop  = "eunop"
	TagBinop = "ebinop"
	TagIndex = "eindex"
)

// Predicate record tags. The first arg slot pair of every predicate is a
// reference to the subject expression.
//
//	not-null, null, not-zero, non-negative, initialized, null-terminated,
//	valid-mem, in-bounds, lower-bound, upper-bound, allocation-base,
//	preserves-memory                 / [ref pair: exp]
//	initialized-range                / [ref pair: exp, ref pair: length exp]
//	no-overlap                       / [ref pair: exp1, ref pair: exp2]
const (
	PredNotNull        = "not-null"
	PredNull           = "null"
	PredNotZero        = "not-zero"
	PredNonNegative    = "non-negative"
	PredInitialized    = "initialized"
	PredInitRange      = "initialized-range"
	PredNullTerminated = "null-terminated"
	PredValidMem       = "valid-mem"
	PredInBounds       = "in-bounds"
	PredLowerBound     = "lower-bound"
	PredUpperBound     = "upper-bound"
	PredAllocBase      = "allocation-base"
	PredNoOverlap      = "no-overlap"
	PredPreservesMem   = "preserves-memory"
)

// KnownPredicateTags is the closed predicate vocabulary.
var KnownPredicateTags = map[string]bool{
	PredNotNull:        true,
	PredNull:           true,
	PredNotZero:        true,
	PredNonNegative:    true,
	PredInitialized:    true,
	PredInitRange:      true,
	PredNullTerminated: true,
	PredValidMem:       true,
	PredInBounds:       true,
	PredLowerBound:     true,
	PredUpperBound:     true,
	PredAllocBase:      true,
	PredNoOverlap:      true,
	PredPreservesMem:   true,
}

// ResolveFunc resolves an index in a named category to its record. The
// renderers take one per dictionary namespace so callers decide how local
// and global references are satisfied.
type ResolveFunc func(category string, ix int) (TableValue, error)

// RenderExp renders an expression index from the expressions table.
func RenderExp(resolve ResolveFunc, ix int) string {
	v, err := resolve("expressions", ix)
	if err != nil {
		return "exp:" + strconv.Itoa(ix) + "?"
	}
	switch v.Tag() {
	case TagVar:
		if len(v.Tags) > 1 {
			return v.Tags[1]
		}
	case TagConst:
		if len(v.Tags) > 1 {
			return v.Tags[1]
		}
	case TagUnop:
		if len(v.Tags) > 1 && len(v.Args) == 1 {
			return v.Tags[1] + "(" + RenderExp(resolve, v.Args[0]) + ")"
		}
	case TagBinop:
		if len(v.Tags) > 1 && len(v.Args) == 2 {
			return "(" + RenderExp(resolve, v.Args[0]) + " " + v.Tags[1] + " " + RenderExp(resolve, v.Args[1]) + ")"
		}
	case TagIndex:
		if len(v.Args) == 2 {
			return RenderExp(resolve, v.Args[0]) + "[" + RenderExp(resolve, v.Args[1]) + "]"
		}
	}
	return v.Key()
}

// RenderType renders a type index from the types table.
func RenderType(resolve ResolveFunc, global ResolveFunc, ix int) string {
	v, err := resolve("types", ix)
	if err != nil {
		return "typ:" + strconv.Itoa(ix) + "?"
	}
	next := func(r Ref) string {
		switch r.Kind {
		case RefGlobal:
			return RenderType(global, global, r.Index)
		default:
			return RenderType(resolve, global, r.Index)
		}
	}
	switch v.Tag() {
	case TagVoid:
		return "void"
	case TagInt, TagFloat:
		if len(v.Tags) > 1 {
			return v.Tags[1]
		}
		return "int"
	case TagNamed:
		if len(v.Tags) > 1 {
			return v.Tags[1]
		}
	case TagPointer:
		if r, err := DecodeRef(v.Args, 0); err == nil {
			return "(" + next(r) + " *)"
		}
	case TagArray:
		if r, err := DecodeRef(v.Args, 0); err == nil {
			length := "?"
			if len(v.Args) > 2 && v.Args[2] >= 0 {
				length = strconv.Itoa(v.Args[2])
			}
			return next(r) + "[" + length + "]"
		}
	case TagFun:
		if r, err := DecodeRef(v.Args, 0); err == nil {
			return "(() -> " + next(r) + ")"
		}
	case TagComp:
		if r, err := DecodeRef(v.Args, 0); err == nil {
			return "struct(" + strconv.Itoa(r.Index) + ")"
		}
	}
	return v.Key()
}

// RenderPredicate renders a predicate index from the predicates table of the
// given namespace. Predicate subject expressions are resolved through the
// same resolver; embedded references choose local or global per their kind.
func RenderPredicate(resolve ResolveFunc, global ResolveFunc, ix int) string {
	v, err := resolve("predicates", ix)
	if err != nil {
		return "pred:" + strconv.Itoa(ix) + "?"
	}
	expAt := func(i int) string {
		r, err := DecodeRef(v.Args, i)
		if err != nil {
			return "?"
		}
		if r.Kind == RefGlobal {
			return RenderExp(global, r.Index)
		}
		return RenderExp(resolve, r.Index)
	}
	switch v.Tag() {
	case PredInitRange:
		return fmt.Sprintf("initialized-range(%s, len:%s)", expAt(0), expAt(2))
	case PredNoOverlap:
		return fmt.Sprintf("no-overlap(%s, %s)", expAt(0), expAt(2))
	default:
		if KnownPredicateTags[v.Tag()] {
			return v.Tag() + "(" + expAt(0) + ")"
		}
	}
	return v.Key()
}
