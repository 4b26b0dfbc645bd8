package openpmd

import (
	"context"
	"testing"

	"openpmd/ioengine"
)

func TestSetAttributeThenGet(t *testing.T) {
	root, h := newTestRoot()
	a := NewAttributable(root, nil)

	if err := a.SetAttribute("dt", ioengine.DoubleAttr(0.1)); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	got, ok := a.GetAttribute("dt")
	if !ok {
		t.Fatalf("expected dt to be present")
	}
	if v, _ := got.AsFloat64(); v != 0.1 {
		t.Fatalf("GetAttribute(dt) = %v, want 0.1", v)
	}
	if len(h.tasks) != 1 || h.tasks[0].Op != ioengine.OpWriteAttribute {
		t.Fatalf("expected exactly one WriteAttribute task, got %+v", h.tasks)
	}
	if !root.IsDirty() {
		t.Fatalf("expected SetAttribute to mark the node dirty")
	}
}

func TestSetAttributeIdenticalValueIsNoop(t *testing.T) {
	root, h := newTestRoot()
	a := NewAttributable(root, nil)
	a.SetAttribute("dt", ioengine.DoubleAttr(0.1))
	root.dirty = false
	h.tasks = nil

	if err := a.SetAttribute("dt", ioengine.DoubleAttr(0.1)); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	if len(h.tasks) != 0 {
		t.Fatalf("expected no task for an identical overwrite, got %+v", h.tasks)
	}
	if root.IsDirty() {
		t.Fatalf("expected no-op overwrite to leave dirty flag untouched")
	}
}

func TestSetAttributeDifferentValueOutsideActiveStepFails(t *testing.T) {
	root, _ := newTestRoot()
	stepOpen := false
	a := NewAttributable(root, func() bool { return stepOpen })
	if err := a.SetAttribute("dt", ioengine.DoubleAttr(0.1)); err != nil {
		t.Fatalf("initial SetAttribute: %v", err)
	}
	if err := a.SetAttribute("dt", ioengine.DoubleAttr(0.2)); err == nil {
		t.Fatalf("expected an error overwriting outside the active step")
	}

	stepOpen = true
	if err := a.SetAttribute("dt", ioengine.DoubleAttr(0.2)); err != nil {
		t.Fatalf("expected overwrite during the active step to succeed: %v", err)
	}
}

func TestDeleteAttributeRemovesFromOrderAndMap(t *testing.T) {
	root, _ := newTestRoot()
	a := NewAttributable(root, nil)
	a.SetAttribute("one", ioengine.Int64Attr(1))
	a.SetAttribute("two", ioengine.Int64Attr(2))
	a.SetAttribute("three", ioengine.Int64Attr(3))

	if err := a.DeleteAttribute("two"); err != nil {
		t.Fatalf("DeleteAttribute: %v", err)
	}
	if _, ok := a.GetAttribute("two"); ok {
		t.Fatalf("expected two to be gone")
	}
	want := []string{"one", "three"}
	got := a.AttributeKeys()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("AttributeKeys() = %v, want %v", got, want)
	}
}

func TestAttributesPreservesInsertionOrder(t *testing.T) {
	root, _ := newTestRoot()
	a := NewAttributable(root, nil)
	a.SetAttribute("z", ioengine.Int64Attr(1))
	a.SetAttribute("a", ioengine.Int64Attr(2))
	a.SetAttribute("m", ioengine.Int64Attr(3))

	keys := a.AttributeKeys()
	want := []string{"z", "a", "m"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("AttributeKeys()[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestReadAttributesPopulatesFromBackend(t *testing.T) {
	backend := map[string]ioengine.Attribute{"dt": ioengine.DoubleAttr(0.5)}
	stub := &listingHandler{backend: backend}
	root := NewRootWritable(NewFileState("test://root", stub))
	a := NewAttributable(root, nil)

	if err := a.ReadAttributes(context.Background()); err != nil {
		t.Fatalf("ReadAttributes: %v", err)
	}
	got, ok := a.GetAttribute("dt")
	if !ok {
		t.Fatalf("expected dt to have been read")
	}
	if v, _ := got.AsFloat64(); v != 0.5 {
		t.Fatalf("GetAttribute(dt) = %v, want 0.5", v)
	}
	if root.IsDirty() {
		t.Fatalf("expected ReadAttributes to leave the node clean")
	}
}

// listingHandler answers ListAttributes/ReadAttribute tasks from a
// fixed backend map, ignoring every other operation.
type listingHandler struct {
	backend map[string]ioengine.Attribute
}

func (h *listingHandler) Enqueue(task ioengine.IOTask) error {
	switch p := task.Params.(type) {
	case ioengine.ListAttributesParameters:
		names := make([]string, 0, len(h.backend))
		for k := range h.backend {
			names = append(names, k)
		}
		*p.Names = names
	case ioengine.ReadAttributeParameters:
		*p.Result = h.backend[p.Name]
	}
	return nil
}

func (h *listingHandler) Flush(ctx context.Context) error { return nil }

func (h *listingHandler) AvailableChunksSupported(dataset ioengine.NodeID) bool { return false }

func (h *listingHandler) BackendName() string { return "listing-stub" }

func (h *listingHandler) RequiresExplicitSteps() bool { return false }
