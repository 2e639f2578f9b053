package sync

import "time"

// DefaultWaitInterval bounds a single wait iteration of a rendezvous. An
// expired iteration re-checks the active set and keeps waiting.
const DefaultWaitInterval = 60 * time.Second

// Request represents a rendezvous request: emit Signals, then block until every
// name in WaitFor is active.
type Request struct {
	// Signals are inserted into the active set before waiting.
	Signals []string `json:"signals,omitempty"`

	// WaitFor are the signals that must all be active for the wait to return.
	WaitFor []string `json:"wait_for,omitempty"`

	// Interval bounds each wait iteration. Zero selects the registry default.
	Interval time.Duration `json:"interval,omitempty"`

	// ClearSignal removes the WaitFor signals from the active set once they
	// have been observed.
	ClearSignal bool `json:"clear_signal,omitempty"`
}
