package api

// ~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~
// ~~~~~~ Request payloads ~~~~~~
// ~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~

// ConfigureRequest is the request body of the `configure` function: a
// configuration request whose `configureFailPoint` field names the target fail
// point. The name "now" runs the `sync` field inline.
type ConfigureRequest map[string]interface{}

// Name returns the target fail point.
func (r ConfigureRequest) Name() string {
	name, _ := r["configureFailPoint"].(string)
	return name
}

// DescribeRequest is the request struct for the `describe` function.
type DescribeRequest struct {
	Name string `json:"name"`
}

// EvaluateRequest is the request struct for the `evaluate` function. Seed, when
// set, seeds the random generator used by this evaluation.
type EvaluateRequest struct {
	Name string `json:"name"`
	Seed *int32 `json:"seed,omitempty"`
}

// SignalsRequest is the request struct for the `signals` function. Clear
// names signals to remove, Reset empties the set; both are applied before the
// active set is returned.
type SignalsRequest struct {
	Clear []string `json:"clear,omitempty"`
	Reset bool     `json:"reset,omitempty"`
}

// ~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~
// ~~~~~~ Response payloads ~~~~~~
// ~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~

// FailPointInfo is the diagnostic view of one fail point.
type FailPointInfo struct {
	Name         string                 `json:"name" mapstructure:"name"`
	Mode         string                 `json:"mode" mapstructure:"mode"`
	Value        int32                  `json:"value" mapstructure:"value"`
	Active       bool                   `json:"active" mapstructure:"active"`
	TimesEntered int64                  `json:"timesEntered" mapstructure:"timesEntered"`
	Data         map[string]interface{} `json:"data" mapstructure:"data"`
	Sync         *SyncInfo              `json:"sync,omitempty" mapstructure:"sync"`
}

// SyncInfo is the synchronization settings of a fail point, as configured.
type SyncInfo struct {
	Signals     []string `json:"signals" mapstructure:"signals"`
	WaitFor     []string `json:"waitFor" mapstructure:"waitFor"`
	Timeout     float64  `json:"timeout,omitempty" mapstructure:"timeout"`
	ClearSignal bool     `json:"clearSignal,omitempty" mapstructure:"clearSignal"`
}

// ConfigureResponse is the fail point as configured; it is empty for "now".
type ConfigureResponse = FailPointInfo

type ListResponse = []FailPointInfo

type DescribeResponse = FailPointInfo

// EvaluateResponse is the outcome of one remote evaluation.
type EvaluateResponse struct {
	Fired   bool                   `json:"fired" mapstructure:"fired"`
	Outcome string                 `json:"outcome" mapstructure:"outcome"`
	Data    map[string]interface{} `json:"data,omitempty" mapstructure:"data"`
	// Error is set when the rendezvous that followed the fire was interrupted.
	Error string `json:"error,omitempty" mapstructure:"error"`
}

// SignalsResponse is the active signal set, sorted.
type SignalsResponse struct {
	Active []string `json:"active" mapstructure:"active"`
}
