package dict

import (
	"fmt"

	"github.com/proofdex/proofdex/internal/ir"
)

// ImportExp copies an expression from src into dst's expressions table,
// importing sub-expressions first so every argument index is assigned
// before its parent.
func ImportExp(dst, src *Dictionary, ix int) (int, error) {
	v, err := src.Resolve("expressions", ix)
	if err != nil {
		return 0, err
	}
	args := make([]int, 0, len(v.Args))
	for _, a := range v.Args {
		imported, err := ImportExp(dst, src, a)
		if err != nil {
			return 0, err
		}
		args = append(args, imported)
	}
	return dst.Intern("expressions", v.Tags, args)
}

// ImportPredicate copies a predicate from src's srcCategory into dst's
// predicates table. Local expression references are imported into dst;
// global references are carried over unchanged, since both namespaces
// resolve them against the same global dictionary.
//
// This is how an SPO's predicate is derived from the callee's interface
// predicate: a copy into the caller's dictionary, never a shared mutable
// record.
func ImportPredicate(dst, src *Dictionary, srcCategory string, ix int) (int, error) {
	v, err := src.Resolve(srcCategory, ix)
	if err != nil {
		return 0, err
	}
	if !ir.KnownPredicateTags[v.Tag()] {
		return 0, fmt.Errorf("record %q at %s/%d is not a predicate", v.Tag(), srcCategory, ix)
	}
	args := make([]int, 0, len(v.Args))
	for at := 0; at+1 < len(v.Args); at += 2 {
		r, err := ir.DecodeRef(v.Args, at)
		if err != nil {
			return 0, err
		}
		if r.Kind == ir.RefGlobal {
			args = ir.AppendRef(args, r)
			continue
		}
		imported, err := ImportExp(dst, src, r.Index)
		if err != nil {
			return 0, err
		}
		args = ir.AppendRef(args, ir.Local(imported))
	}
	return dst.Intern("predicates", v.Tags, args)
}
