package failpoint

import "fmt"

// Mode is the activation policy of a fail point.
type Mode int

const (
	// Off never fires.
	Off Mode = iota
	// AlwaysOn fires on every evaluation.
	AlwaysOn
	// Random fires when a pseudo-random draw is below the configured threshold.
	Random
	// NTimes fires a fixed number of times, then turns itself off.
	NTimes
	// Skip passes a fixed number of evaluations, then fires on every one after.
	Skip
)

var modeNames = [...]string{
	Off:      "off",
	AlwaysOn: "alwaysOn",
	Random:   "random",
	NTimes:   "nTimes",
	Skip:     "skip",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Outcome is the result of a single hot-path evaluation.
type Outcome int

const (
	// Inactive means the fail point was off when evaluated.
	Inactive Outcome = iota
	// Ignored means the caller-supplied predicate rejected the payload.
	Ignored
	// Passed means the fail point was active but its mode decided not to fire.
	Passed
	// Fired means the fail point fired.
	Fired
)

var outcomeNames = [...]string{
	Inactive: "inactive",
	Ignored:  "ignored",
	Passed:   "passed",
	Fired:    "fired",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}
