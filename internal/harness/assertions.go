package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		switch event.Type {
		case EventCall:
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Call)
		case EventOutcome:
			fmt.Fprintf(&buf, "  [%d] => %s\n", event.Seq, event.Outcome)
		}
	}
	return buf.String()
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertNotice:
		return assertNotice(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks that the wallet call appears in the trace.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == EventCall && event.Call == a.Call {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("wallet call %s", a.Call),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that calls appear in the specified relative order.
// Intervening calls are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventCall {
			continue
		}
		if _, seen := positions[event.Call]; !seen {
			positions[event.Call] = i + 1
		}
	}

	for _, call := range a.Calls {
		if positions[call] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all calls present: %v", a.Calls),
				Actual:   fmt.Sprintf("missing call: %s", call),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Calls); i++ {
		prev, curr := a.Calls[i-1], a.Calls[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the call appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventCall && event.Call == a.Call {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Call),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertNotice checks the single user-facing notice.
func assertNotice(result *Result, a Assertion) error {
	if len(result.Notices) == 1 && result.Notices[0] == a.Message {
		return nil
	}
	return &AssertionError{
		Type:     AssertNotice,
		Expected: fmt.Sprintf("one notice %q", a.Message),
		Actual:   fmt.Sprintf("%q", result.Notices),
		Trace:    result.Trace,
	}
}
