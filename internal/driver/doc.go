// Package driver runs the generation and convergence loop over the linked
// program: generate primary obligations once per function, regenerate
// supporting obligations whenever a callee interface changes, hand open
// obligations to the checking collaborator, and repeat until the dirty set
// drains or the round bound is hit.
//
// All mutation happens on the calling goroutine. Determinism comes from
// processing files in manifest order and functions in declaration order;
// two runs over the same inputs and the same checker produce identical
// artifacts and ledger rows.
package driver
