package openpmd

import "testing"

func TestMeshSetGeometryAndGridAttributes(t *testing.T) {
	root, h := newTestRoot()
	m := NewMesh(root, nil)

	if err := m.SetGeometry(GeometryCylindrical); err != nil {
		t.Fatalf("SetGeometry: %v", err)
	}
	if got, want := m.Geometry(), GeometryCylindrical; got != want {
		t.Fatalf("Geometry() = %v, want %v", got, want)
	}
	geomAttr, ok := m.GetAttribute("geometry")
	if !ok {
		t.Fatalf("expected a geometry attribute")
	}
	if s, _ := geomAttr.AsString(); s != "cylindrical" {
		t.Fatalf("geometry attribute = %q, want %q", s, "cylindrical")
	}

	if err := m.SetGridSpacing([]float64{0.1, 0.2}); err != nil {
		t.Fatalf("SetGridSpacing: %v", err)
	}
	if err := m.SetGridGlobalOffset([]float64{0, 0}); err != nil {
		t.Fatalf("SetGridGlobalOffset: %v", err)
	}
	if err := m.SetGridUnitSI(1.0); err != nil {
		t.Fatalf("SetGridUnitSI: %v", err)
	}
	if err := m.SetAxisLabels([]string{"r", "z"}); err != nil {
		t.Fatalf("SetAxisLabels: %v", err)
	}
	if len(h.tasks) != 5 {
		t.Fatalf("expected 5 enqueued attribute writes, got %d", len(h.tasks))
	}
}

func TestMeshComponentsSharesRecordBehavior(t *testing.T) {
	root, _ := newTestRoot()
	m := NewMesh(root, nil)
	m.Components.Get(scalarRecordComponentKey)

	if !m.IsScalar() {
		t.Fatalf("expected a single-component mesh to report IsScalar")
	}
}

func TestGeometryString(t *testing.T) {
	cases := map[geometry]string{
		GeometryCartesian:   "cartesian",
		GeometryThetaMode:   "thetaMode",
		GeometryCylindrical: "cylindrical",
		GeometrySpherical:   "spherical",
	}
	for g, want := range cases {
		if got := g.String(); got != want {
			t.Fatalf("geometry(%d).String() = %q, want %q", g, got, want)
		}
	}
}
