package openpmd

import "testing"

func TestRecordScalarComponent(t *testing.T) {
	root, _ := newTestRoot()
	r := NewRecord(root, nil)

	if r.IsScalar() {
		t.Fatalf("expected a fresh Record to not be scalar")
	}
	comp, ok := r.Components.Get(scalarRecordComponentKey)
	if !ok {
		t.Fatalf("expected auto-creation of the scalar component")
	}
	if !r.IsScalar() {
		t.Fatalf("expected IsScalar() after populating the scalar component")
	}
	got, ok := r.ScalarComponent()
	if !ok || got != comp {
		t.Fatalf("ScalarComponent() = (%v, %v), want (%v, true)", got, ok, comp)
	}
}

func TestRecordVectorComponents(t *testing.T) {
	root, _ := newTestRoot()
	r := NewRecord(root, nil)
	r.Components.Get("x")
	r.Components.Get("y")
	r.Components.Get("z")

	if r.IsScalar() {
		t.Fatalf("expected a 3-component Record to not report IsScalar")
	}
	if got, want := r.Components.Len(), 3; got != want {
		t.Fatalf("Components.Len() = %d, want %d", got, want)
	}
}
