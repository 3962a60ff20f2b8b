package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden-file form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Notices      []string
}

// toCanonicalMap converts the snapshot for MarshalCanonical, which only
// handles primitives, []any and map[string]any.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"seq":  event.Seq,
			"type": event.Type,
		}
		if event.Call != "" {
			m["call"] = event.Call
		}
		if event.Args != nil {
			m["args"] = event.Args
		}
		if event.Outcome != "" {
			m["outcome"] = event.Outcome
		}
		if event.Token != nil {
			m["token"] = event.Token
		}
		if event.Notice != "" {
			m["notice"] = event.Notice
		}
		trace[i] = m
	}

	notices := make([]any, len(s.Notices))
	for i, n := range s.Notices {
		notices[i] = n
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"notices":       notices,
	}
}

// Snapshot renders a result as the canonical JSON stored in golden files.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Notices:      result.Notices,
	}
	return MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, nil)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
