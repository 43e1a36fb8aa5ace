package driver

import (
	"context"

	"github.com/proofdex/proofdex/internal/proof"
)

// CheckRequest hands one open obligation to the checking collaborator.
// Rendered is the human-readable predicate for checkers that script on
// text rather than on dictionary indices.
type CheckRequest struct {
	File       string
	Fn         string
	Round      int
	Obligation *proof.Obligation
	Rendered   string
}

// Verdict is the checker's decision on one obligation. The checker never
// invents predicates: Delegate asks the driver to lift the obligation's
// own predicate into the function's interface, pushing the proof to the
// callers.
type Verdict struct {
	Status      proof.Status
	Deps        proof.Dependencies
	Diagnostic  proof.Diagnostic
	Explanation string
	Delegate    bool
}

// Open returns the verdict that leaves an obligation undecided, carrying
// only diagnostics.
func Open(diag proof.Diagnostic) Verdict {
	return Verdict{Status: proof.StatusOpen, Diagnostic: diag}
}

// Checker decides open obligations. Implementations must be deterministic
// for a given request; the driver consults them one obligation at a time.
type Checker interface {
	Check(ctx context.Context, req CheckRequest) (Verdict, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, req CheckRequest) (Verdict, error)

func (f CheckerFunc) Check(ctx context.Context, req CheckRequest) (Verdict, error) {
	return f(ctx, req)
}
