package openpmd

import (
	"context"
	"errors"
	"testing"

	"openpmd/ioengine"
)

func TestStepMachineBeginEndCycle(t *testing.T) {
	root, _ := newTestRoot()
	m := newStepMachine(root)

	if m.Status() != StepStatusNoStep {
		t.Fatalf("initial status = %v, want NoStep", m.Status())
	}
	status, err := m.BeginStep(context.Background())
	if err != nil || status != ioengine.AdvanceOK {
		t.Fatalf("BeginStep in NoStep: (%v, %v), want (OK, nil)", status, err)
	}
	if m.Status() != StepStatusNoStep {
		t.Fatalf("BeginStep in NoStep should stay NoStep, got %v", m.Status())
	}
}

func TestStepMachineStreamingTransitions(t *testing.T) {
	root, h := newTestRoot()
	h.advanceSequence = []ioengine.AdvanceStatus{ioengine.AdvanceOK, ioengine.AdvanceOK, ioengine.AdvanceOver}
	m := newStepMachine(root)
	m.status = StepStatusOutOfStep

	if status, err := m.BeginStep(context.Background()); err != nil || status != ioengine.AdvanceOK {
		t.Fatalf("BeginStep: (%v, %v)", status, err)
	}
	if m.Status() != StepStatusDuringStep {
		t.Fatalf("status after BeginStep = %v, want DuringStep", m.Status())
	}

	if status, err := m.EndStep(context.Background()); err != nil || status != ioengine.AdvanceOK {
		t.Fatalf("EndStep: (%v, %v)", status, err)
	}
	if m.Status() != StepStatusOutOfStep {
		t.Fatalf("status after EndStep = %v, want OutOfStep", m.Status())
	}

	// EndStep while already out of step is idempotent.
	if status, err := m.EndStep(context.Background()); err != nil || status != ioengine.AdvanceOK {
		t.Fatalf("idempotent EndStep: (%v, %v)", status, err)
	}

	if status, err := m.BeginStep(context.Background()); err != nil || status != ioengine.AdvanceOver {
		t.Fatalf("BeginStep reporting stream end: (%v, %v)", status, err)
	}
	if m.Status() != StepStatusStreamOver {
		t.Fatalf("status after stream-over BeginStep = %v, want StreamOver", m.Status())
	}

	if _, err := m.BeginStep(context.Background()); !errors.Is(err, ErrStreamOver) {
		t.Fatalf("BeginStep after StreamOver: err = %v, want ErrStreamOver", err)
	}
}

func TestStepMachineEnsureStepForImplicitBegin(t *testing.T) {
	root, h := newTestRoot()
	h.requiresExplicitSteps = true
	m := newStepMachine(root)

	// A handler requiring explicit steps resolves the Undecided initial
	// state to OutOfStep at construction.
	if m.Status() != StepStatusOutOfStep {
		t.Fatalf("initial status = %v, want OutOfStep for a step-requiring handler", m.Status())
	}
	if err := m.EnsureStepFor(context.Background()); err != nil {
		t.Fatalf("EnsureStepFor: %v", err)
	}
	if m.Status() != StepStatusDuringStep {
		t.Fatalf("expected an implicit BeginStep, status = %v", m.Status())
	}
}

func TestStepMachineEnsureStepForSkipsWhenNotRequired(t *testing.T) {
	root, h := newTestRoot()
	h.requiresExplicitSteps = false
	m := newStepMachine(root)
	m.status = StepStatusOutOfStep

	if err := m.EnsureStepFor(context.Background()); err != nil {
		t.Fatalf("EnsureStepFor: %v", err)
	}
	if m.Status() != StepStatusOutOfStep {
		t.Fatalf("expected no implicit BeginStep, status = %v", m.Status())
	}
}

func TestWriteIterationBeginsRealStepOnStepRequiringHandler(t *testing.T) {
	h := &fakeHandler{requiresExplicitSteps: true}
	s, err := OpenSeries(context.Background(), "data%T.json", AccessCreate, EncodingGroupBased, h, nil)
	if err != nil {
		t.Fatalf("OpenSeries: %v", err)
	}
	ctx := context.Background()

	it, err := s.WriteIteration(ctx, 100)
	if err != nil {
		t.Fatalf("WriteIteration: %v", err)
	}
	if it.StepStatus() != StepStatusDuringStep {
		t.Fatalf("StepStatus after WriteIteration = %v, want DuringStep", it.StepStatus())
	}
	if countAdvances(h) != 1 {
		t.Fatalf("expected one ADVANCE(BEGIN) to reach the handler, got %d", countAdvances(h))
	}
}

func TestFlushImplicitlyReopensStepAfterEndStep(t *testing.T) {
	h := &fakeHandler{requiresExplicitSteps: true}
	s, err := OpenSeries(context.Background(), "data%T.json", AccessCreate, EncodingGroupBased, h, nil)
	if err != nil {
		t.Fatalf("OpenSeries: %v", err)
	}
	ctx := context.Background()

	it, err := s.WriteIteration(ctx, 100)
	if err != nil {
		t.Fatalf("WriteIteration: %v", err)
	}
	if _, err := it.EndStep(ctx); err != nil {
		t.Fatalf("EndStep: %v", err)
	}
	advancesAfterEnd := countAdvances(h)

	// Writing after an explicit EndStep leaves the machine OutOfStep;
	// the next flush implicitly begins a step before the backend
	// observes the write.
	if err := it.SetTime(1.0); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if it.StepStatus() != StepStatusDuringStep {
		t.Fatalf("StepStatus after flush = %v, want DuringStep (implicit begin)", it.StepStatus())
	}
	if countAdvances(h) != advancesAfterEnd+1 {
		t.Fatalf("expected exactly one implicit ADVANCE during flush, got %d new", countAdvances(h)-advancesAfterEnd)
	}
}

func countAdvances(h *fakeHandler) int {
	n := 0
	for _, task := range h.tasks {
		if _, ok := task.Params.(ioengine.AdvanceParameters); ok {
			n++
		}
	}
	return n
}
