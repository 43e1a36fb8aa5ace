// Package proof implements the proof obligation model.
//
// A proof obligation asserts one safety condition or one callee
// precondition at one source location. Primary proof obligations (PPOs) are
// generated from a function's own code; supporting proof obligations (SPOs)
// are generated at call sites to discharge the callee's preconditions, one
// per (call site, apiid) pair.
//
// Obligations are append-only audit records: once created they are
// re-evaluated, never deleted, and their status never regresses to open.
// An SPO whose callee interface changed is regenerated under its original
// po index, with a fresh predicate and a fresh open status.
package proof
