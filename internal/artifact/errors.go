package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports a missing artifact. For optional artifacts callers
// substitute an empty default; for required ones this is fatal to the unit.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact not found: %s", e.Path)
}

// MalformedError reports an artifact that exists but cannot be decoded.
// Line is 1-based when the decoder reported a position, 0 otherwise.
type MalformedError struct {
	Path string
	Line int
	Err  error
}

func (e *MalformedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed artifact %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("malformed artifact %s: %v", e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// NonConvergenceError reports a run that exhausted its round bound with
// functions still dirty. Results for converged functions remain usable.
type NonConvergenceError struct {
	Rounds int
	Dirty  []string
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("no fixpoint after %d rounds; still dirty: %s",
		e.Rounds, strings.Join(e.Dirty, ", "))
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsMalformed reports whether err is a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// IsNonConvergence reports whether err is a NonConvergenceError.
func IsNonConvergence(err error) bool {
	var nc *NonConvergenceError
	return errors.As(err, &nc)
}
