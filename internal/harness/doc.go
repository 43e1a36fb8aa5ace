// Package harness runs scripted convergence scenarios against the driver.
// A scenario declares a manifest, parsed function bodies, and per-round
// checker verdicts in YAML; the runner drives the loop to a fixpoint and
// records a trace of every check. Traces are compared against golden files
// so a change in generation order, rendering, or convergence behavior
// shows up as a diff.
package harness
