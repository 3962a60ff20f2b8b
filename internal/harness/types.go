package harness

// Trace event types.
const (
	EventCall    = "call"
	EventOutcome = "outcome"
)

// TraceEvent is one wallet call, or the final outcome of the attempt.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// Call is the wallet method (call events).
	Call string `json:"call,omitempty"`

	// Args are the decoded mintNFT arguments (SendTransaction only).
	Args map[string]any `json:"args,omitempty"`

	// Outcome is "confirmed" or the failure category (outcome events).
	Outcome string `json:"outcome,omitempty"`

	// Token holds the MintedToken fields on success.
	Token map[string]any `json:"token,omitempty"`

	// Notice is the user-facing message on failure.
	Notice string `json:"notice,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the expectation and all assertions hold.
	Pass bool `json:"pass"`

	// Trace lists wallet calls in order, then the outcome.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Notices are the messages sent to the notifier.
	Notices []string `json:"notices,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns the wallet calls in the trace, in order.
func (r *Result) Calls() []string {
	var calls []string
	for _, e := range r.Trace {
		if e.Type == EventCall {
			calls = append(calls, e.Call)
		}
	}
	return calls
}

// Outcome returns the final outcome event, if present.
func (r *Result) Outcome() (TraceEvent, bool) {
	if n := len(r.Trace); n > 0 && r.Trace[n-1].Type == EventOutcome {
		return r.Trace[n-1], true
	}
	return TraceEvent{}, false
}
