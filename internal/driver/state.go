package driver

// FnState tracks how far a function's unit has progressed. States only
// move forward within a round; an interface change in a callee moves a
// Checked unit back to SPOsGenerated for the next round.
type FnState int

const (
	Uninitialized FnState = iota
	PPOsGenerated
	SPOsGenerated
	Checked
	Converged
)

func (s FnState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case PPOsGenerated:
		return "ppos-generated"
	case SPOsGenerated:
		return "spos-generated"
	case Checked:
		return "checked"
	case Converged:
		return "converged"
	default:
		return "unknown"
	}
}
