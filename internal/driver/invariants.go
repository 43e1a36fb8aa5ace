package driver

import (
	"context"
	"strings"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/proof"
)

// NewInvariantChecker builds a checker backed by the invariants documents
// the invariant collaborator writes under the layout. An obligation is
// discharged by the first fact whose predicate text matches; with no
// matching fact it stays open, so later rounds can pick up new documents.
func NewInvariantChecker(l artifact.Layout) Checker {
	return CheckerFunc(func(ctx context.Context, req CheckRequest) (Verdict, error) {
		doc, err := artifact.LoadInvariants(l, req.File, req.Fn)
		if err != nil {
			return Verdict{}, err
		}
		for _, fact := range doc.Invariants {
			if fact.Predicate == "" || !strings.Contains(req.Rendered, fact.Predicate) {
				continue
			}
			return Verdict{
				Status:      proof.StatusDischarged,
				Deps:        proof.Dependencies{Invariants: []int{fact.Index}},
				Diagnostic:  proof.Diagnostic{Invariants: map[int][]string{fact.Index: {fact.Fact}}},
				Explanation: fact.Fact,
			}, nil
		}
		return Open(proof.Diagnostic{}), nil
	})
}
