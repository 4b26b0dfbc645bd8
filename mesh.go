package openpmd

import "openpmd/ioengine"

// geometry is the closed set of mesh geometries openPMD recognises.
type geometry int

const (
	GeometryCartesian geometry = iota
	GeometryThetaMode
	GeometryCylindrical
	GeometrySpherical
)

func (g geometry) String() string {
	switch g {
	case GeometryThetaMode:
		return "thetaMode"
	case GeometryCylindrical:
		return "cylindrical"
	case GeometrySpherical:
		return "spherical"
	default:
		return "cartesian"
	}
}

// Mesh is a Record under an Iteration's "meshes" container, augmented
// with the grid-geometry attributes the openPMD standard mandates
// (gridSpacing, gridGlobalOffset, gridUnitSI, axisLabels, geometry).
type Mesh struct {
	Record
	geometry geometry
}

func NewMesh(w *Writable, stepActive func() bool) *Mesh {
	return &Mesh{Record: *NewRecord(w, stepActive)}
}

func (m *Mesh) node() *Writable { return m.Writable }

// SetGeometry records the mesh's geometry attribute.
func (m *Mesh) SetGeometry(g geometry) error {
	m.geometry = g
	return m.SetAttribute("geometry", ioengine.StringAttr(g.String()))
}

func (m *Mesh) Geometry() geometry { return m.geometry }

// SetGridSpacing records the per-axis physical spacing between grid
// points.
func (m *Mesh) SetGridSpacing(spacing []float64) error {
	return m.SetAttribute("gridSpacing", ioengine.VecDoubleAttr(spacing))
}

// SetGridGlobalOffset records the physical-space offset of this mesh's
// origin.
func (m *Mesh) SetGridGlobalOffset(offset []float64) error {
	return m.SetAttribute("gridGlobalOffset", ioengine.VecDoubleAttr(offset))
}

func (m *Mesh) SetGridUnitSI(unitSI float64) error {
	return m.SetAttribute("gridUnitSI", ioengine.DoubleAttr(unitSI))
}

func (m *Mesh) SetAxisLabels(labels []string) error {
	return m.SetAttribute("axisLabels", ioengine.VecStringAttr(labels))
}
