package openpmd

import (
	"context"

	"openpmd/ioengine"
)

// fakeHandler is a minimal ioengine.Handler recording every enqueued
// task, for exercising the frontend's node types without a real
// backend driver.
type fakeHandler struct {
	tasks []ioengine.IOTask

	// advanceSequence supplies successive ADVANCE results; once
	// exhausted, the last entry repeats.
	advanceSequence []ioengine.AdvanceStatus
	advanceCalls    int

	requiresExplicitSteps bool
}

func (h *fakeHandler) Enqueue(task ioengine.IOTask) error {
	h.tasks = append(h.tasks, task)
	if p, ok := task.Params.(ioengine.AdvanceParameters); ok {
		*p.Status = h.nextAdvanceStatus()
	}
	return nil
}

func (h *fakeHandler) nextAdvanceStatus() ioengine.AdvanceStatus {
	if len(h.advanceSequence) == 0 {
		return ioengine.AdvanceOK
	}
	idx := h.advanceCalls
	if idx >= len(h.advanceSequence) {
		idx = len(h.advanceSequence) - 1
	}
	h.advanceCalls++
	return h.advanceSequence[idx]
}

func (h *fakeHandler) Flush(ctx context.Context) error { return nil }

func (h *fakeHandler) AvailableChunksSupported(dataset ioengine.NodeID) bool { return true }

func (h *fakeHandler) BackendName() string { return "fake" }

func (h *fakeHandler) RequiresExplicitSteps() bool { return h.requiresExplicitSteps }

func newTestRoot() (*Writable, *fakeHandler) {
	h := &fakeHandler{}
	state := NewFileState("test://root", h)
	return NewRootWritable(state), h
}
