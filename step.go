package openpmd

import (
	"context"
	"errors"

	"openpmd/ioengine"
)

// StepStatus is the per-iteration (or per-Series, in group/variable
// encoding) position in the streaming state machine of §4.6.
type StepStatus int

const (
	StepStatusNoStep StepStatus = iota
	StepStatusDuringStep
	StepStatusOutOfStep
	StepStatusStreamOver
)

func (s StepStatus) String() string {
	switch s {
	case StepStatusDuringStep:
		return "DuringStep"
	case StepStatusOutOfStep:
		return "OutOfStep"
	case StepStatusStreamOver:
		return "StreamOver"
	default:
		return "NoStep"
	}
}

// ErrStreamOver is returned by any step transition attempted after the
// stream has been reported over by the backend.
var ErrStreamOver = errors.New("stream is over")

// stepMachine mediates BEGIN/END transitions for one Writable rooted
// at a handler, and the implicit-begin rule for tasks issued while out
// of step (§4.6, and the Open Question resolution in SPEC_FULL.md: no
// silent access-mode mutation, an explicit state machine instead).
type stepMachine struct {
	status StepStatus
	target *Writable
}

// newStepMachine resolves the Undecided initial state at construction
// time: a handler that requires explicit steps starts OutOfStep, so
// the first BeginStep (or implicit begin, EnsureStepFor) really
// advances the engine; anything else is NoStream, where BEGIN/END are
// no-ops.
func newStepMachine(target *Writable) *stepMachine {
	status := StepStatusNoStep
	if h := target.Handler(); h != nil && h.RequiresExplicitSteps() {
		status = StepStatusOutOfStep
	}
	return &stepMachine{status: status, target: target}
}

// BeginStep transitions OutOfStep -> DuringStep, issuing an ADVANCE
// task to the backend. NoStream and already-DuringStep calls are
// no-ops returning AdvanceOK. StreamOver fails with ErrStreamOver.
func (m *stepMachine) BeginStep(ctx context.Context) (ioengine.AdvanceStatus, error) {
	switch m.status {
	case StepStatusStreamOver:
		return ioengine.AdvanceOver, ErrStreamOver
	case StepStatusDuringStep:
		return ioengine.AdvanceOK, nil
	case StepStatusNoStep:
		return ioengine.AdvanceOK, nil
	}

	status, err := m.advance(ctx, ioengine.AdvanceModeBegin)
	if err != nil {
		return status, err
	}
	switch status {
	case ioengine.AdvanceOver:
		m.status = StepStatusStreamOver
	case ioengine.AdvanceRandomAccess:
		m.status = StepStatusNoStep
	default:
		m.status = StepStatusDuringStep
	}
	return status, nil
}

// EndStep transitions DuringStep -> OutOfStep. Calling it while
// already OutOfStep is a no-op returning AdvanceOK (step idempotence,
// §8); calling it during StreamOver fails with ErrStreamOver.
func (m *stepMachine) EndStep(ctx context.Context) (ioengine.AdvanceStatus, error) {
	switch m.status {
	case StepStatusStreamOver:
		return ioengine.AdvanceOver, ErrStreamOver
	case StepStatusOutOfStep, StepStatusNoStep:
		return ioengine.AdvanceOK, nil
	}

	status, err := m.advance(ctx, ioengine.AdvanceModeEnd)
	if err != nil {
		return status, err
	}
	if status == ioengine.AdvanceOver {
		m.status = StepStatusStreamOver
	} else {
		m.status = StepStatusOutOfStep
	}
	return status, nil
}

// EnsureStepFor implicitly begins a step while OutOfStep (callers run it
// before flushing or reading), if the bound handler requires explicit steps; it is
// a no-op otherwise (NoStep or DuringStep), and fails with
// ErrStreamOver if the stream has ended.
func (m *stepMachine) EnsureStepFor(ctx context.Context) error {
	if m.status == StepStatusStreamOver {
		return ErrStreamOver
	}
	if m.status != StepStatusOutOfStep {
		return nil
	}
	handler := m.target.Handler()
	if handler == nil || !handler.RequiresExplicitSteps() {
		return nil
	}
	_, err := m.BeginStep(ctx)
	return err
}

func (m *stepMachine) Status() StepStatus { return m.status }

func (m *stepMachine) advance(ctx context.Context, mode ioengine.AdvanceMode) (ioengine.AdvanceStatus, error) {
	var status ioengine.AdvanceStatus
	if err := m.target.Enqueue(ioengine.OpAdvance, ioengine.AdvanceParameters{Mode: mode, Status: &status}); err != nil {
		return ioengine.AdvanceOK, err
	}
	if err := m.target.Handler().Flush(ctx); err != nil {
		return ioengine.AdvanceOK, err
	}
	return status, nil
}
