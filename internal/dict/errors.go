package dict

import (
	"errors"
	"fmt"
)

// DanglingReferenceError reports an argument index used before it was
// assigned in the table it targets. In well-formed producer output this
// cannot occur (sub-records are always interned before parents), so it
// signals a producer bug and is fatal to the owning unit.
type DanglingReferenceError struct {
	Table string
	Index int
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling reference: index %d not assigned in table %q", e.Index, e.Table)
}

// UnknownIndexError reports a resolve of an index that is out of range.
type UnknownIndexError struct {
	Table string
	Index int
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("unknown index %d in table %q", e.Index, e.Table)
}

// UnknownCategoryError reports a request for a category outside the fixed
// recognized set of a dictionary.
type UnknownCategoryError struct {
	Scope    string
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q in dictionary %q", e.Category, e.Scope)
}

// ConjectureError reports that a conjectured global key for a recursive
// struct was contradicted by the committed key. The caller resets the table
// to the file checkpoint, records the incompatibility, and retries.
type ConjectureError struct {
	Key           int
	ConjecturedAt int
	CommittedAt   int
}

func (e *ConjectureError) Error() string {
	return fmt.Sprintf("compinfo %d: conjectured global key %d is not compatible with committed key %d",
		e.Key, e.ConjecturedAt, e.CommittedAt)
}

// IsDanglingReference reports whether err is a DanglingReferenceError.
// Uses errors.As to handle wrapped errors.
func IsDanglingReference(err error) bool {
	var de *DanglingReferenceError
	return errors.As(err, &de)
}

// IsUnknownIndex reports whether err is an UnknownIndexError.
func IsUnknownIndex(err error) bool {
	var ue *UnknownIndexError
	return errors.As(err, &ue)
}
