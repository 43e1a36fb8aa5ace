package proof

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a proof obligation.
type Status string

const (
	// StatusOpen is the creation state: no decision yet.
	StatusOpen Status = "open"

	// StatusDischarged means the checking collaborator proved the
	// obligation, with evidence recorded in its dependencies.
	StatusDischarged Status = "discharged"

	// StatusViolated means the checking collaborator found a violation.
	StatusViolated Status = "violated"

	// StatusDead means the guarded code path is unreachable under the
	// refined invariants. Terminal.
	StatusDead Status = "dead"
)

// ParseStatus validates a persisted status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOpen, StatusDischarged, StatusViolated, StatusDead:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown proof obligation status %q", s)
	}
}

// CanTransition reports whether from → to is a legal status change.
//
// Obligations never regress to open: a round that cannot confirm a prior
// discharge records a fresh diagnostic instead, keeping the last confirmed
// status, which is what prevents oscillation. Dead is terminal. Discharged
// and violated may revise each other when new invariants arrive, provided a
// fresh dependency set accompanies the revision.
func CanTransition(from, to Status) bool {
	if to == StatusOpen {
		return false
	}
	if from == StatusDead {
		return false
	}
	return true
}

// InvalidTransitionError reports an illegal status change. It signals a
// driver logic error and is fatal to the owning unit.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid proof obligation transition: %s -> %s", e.From, e.To)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ie *InvalidTransitionError
	return errors.As(err, &ie)
}
