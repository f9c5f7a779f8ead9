package bench

import (
	"context"
	"fmt"

	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/sequence"
)

// State tracks how far a tester context has been validated.
type State int

const (
	Unvalidated State = iota
	// BottomValidated means names and anchors are consistent. No encoder
	// binaries are needed for this level.
	BottomValidated
	// TopValidated means every parameter set has been accepted by a dummy
	// invocation of its built encoder.
	TopValidated
	Running
	Done
)

func (s State) String() string {
	switch s {
	case BottomValidated:
		return "bottom-validated"
	case TopValidated:
		return "top-validated"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return "unvalidated"
	}
}

// ValidationError reports an inconsistent test configuration. Validation
// failures abort the whole session: a misconfigured sweep invalidates the
// entire comparison set, so no partial recovery is attempted.
type ValidationError struct {
	Test   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: test %q: %s", e.Test, e.Reason)
}

// TesterContext holds the full set of tests and input sequences for one
// session and gates execution behind staged validation.
type TesterContext struct {
	tests     []*Test
	byName    map[string]*Test
	sequences []*sequence.Sequence
	state     State
}

// NewContext creates an unvalidated context.
func NewContext(tests []*Test, sequences []*sequence.Sequence) *TesterContext {
	byName := make(map[string]*Test, len(tests))
	for _, t := range tests {
		byName[t.Name] = t
	}
	return &TesterContext{tests: tests, byName: byName, sequences: sequences}
}

func (tc *TesterContext) State() State { return tc.state }

func (tc *TesterContext) Tests() []*Test { return tc.tests }

func (tc *TesterContext) Sequences() []*sequence.Sequence { return tc.sequences }

// TestByName resolves a test, nil when absent.
func (tc *TesterContext) TestByName(name string) *Test { return tc.byName[name] }

// ValidateBottom checks name and anchor consistency: unique test names, no
// structurally duplicate tests under different names, every anchor present.
func (tc *TesterContext) ValidateBottom() error {
	if tc.state != Unvalidated {
		return fmt.Errorf("validate bottom: context already %s", tc.state)
	}
	seen := map[string]bool{}
	for _, t := range tc.tests {
		if seen[t.Name] {
			return &ValidationError{Test: t.Name, Reason: "duplicate test name"}
		}
		seen[t.Name] = true
	}
	for i, a := range tc.tests {
		for _, b := range tc.tests[i+1:] {
			if a.EquivalentTo(b) {
				return &ValidationError{
					Test:   b.Name,
					Reason: fmt.Sprintf("structurally identical to test %q", a.Name),
				}
			}
		}
	}
	for _, t := range tc.tests {
		for _, anchor := range t.Anchors {
			if _, ok := tc.byName[anchor]; !ok {
				return &ValidationError{
					Test:   t.Name,
					Reason: fmt.Sprintf("anchor %q not present in context", anchor),
				}
			}
		}
	}
	tc.state = BottomValidated
	logger.Debug("context bottom-validated", "tests", len(tc.tests), "sequences", len(tc.sequences))
	return nil
}

// ValidateTop confirms every sub-test's parameter set is runnable by
// encoding one synthetic frame with the built binary. Requires built
// binaries under binDir and a bottom-validated context.
func (tc *TesterContext) ValidateTop(ctx context.Context, binDir string) error {
	if tc.state != BottomValidated {
		return fmt.Errorf("validate top: context is %s, want bottom-validated", tc.state)
	}
	for _, t := range tc.tests {
		exe := t.Binding.ExePath(binDir)
		for _, st := range t.SubTests {
			flag, err := t.Binding.Family.QualityFlag(st.Params.Quality)
			if err != nil {
				return &ValidationError{Test: t.Name, Reason: err.Error()}
			}
			args, err := st.Params.Canonical(t.Binding.Family.PositionalArgs(), flag, true)
			if err != nil {
				return &ValidationError{Test: t.Name, Reason: err.Error()}
			}
			if err := t.Binding.DummyRun(ctx, exe, args); err != nil {
				return &ValidationError{
					Test:   t.Name,
					Reason: fmt.Sprintf("sub-test %s: %v", st.Name(), err),
				}
			}
		}
	}
	tc.state = TopValidated
	logger.Debug("context top-validated")
	return nil
}

// Runs expands the context into the full run matrix:
// sequence x test x sweep point x round.
func (tc *TesterContext) Runs() ([]*EncodingRun, error) {
	var runs []*EncodingRun
	for _, seq := range tc.sequences {
		for _, t := range tc.tests {
			for _, st := range t.SubTests {
				for round := 1; round <= t.Rounds; round++ {
					r, err := NewRun(st, seq, round)
					if err != nil {
						return nil, err
					}
					runs = append(runs, r)
				}
			}
		}
	}
	return runs, nil
}

func (tc *TesterContext) setRunning() error {
	if tc.state != TopValidated {
		return fmt.Errorf("run: context is %s, want top-validated", tc.state)
	}
	tc.state = Running
	return nil
}

func (tc *TesterContext) setDone() {
	tc.state = Done
}
