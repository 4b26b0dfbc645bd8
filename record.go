package openpmd

import "context"

// Record is a named n-dimensional quantity decomposed into one or more
// RecordComponents: either a single scalar component (stored under
// scalarRecordComponentKey) or one component per vector axis (e.g.
// "x"/"y"/"z" for a position record). Shared by Mesh (one Record per
// field) and particle species (one Record per property: position,
// momentum, weighting, ...).
type Record struct {
	Attributable
	Components Container[*RecordComponent]
}

func NewRecord(w *Writable, stepActive func() bool) *Record {
	r := &Record{Attributable: NewAttributable(w, stepActive)}
	r.Components = NewContainer(w, true, func() *RecordComponent {
		return NewRecordComponent(&Writable{}, stepActive)
	})
	return r
}

func (r *Record) node() *Writable { return r.Writable }

// IsScalar reports whether this record has a single, unnamed component
// rather than one component per vector axis.
func (r *Record) IsScalar() bool {
	return r.Components.Len() == 1 && r.Components.Has(scalarRecordComponentKey)
}

// ScalarComponent returns the single component of a scalar record.
func (r *Record) ScalarComponent() (*RecordComponent, bool) {
	return r.Components.Get(scalarRecordComponentKey)
}

// scalarRecordComponentKey is the reserved component name a scalar
// record (mesh or particle property) stores its single
// RecordComponent under.
const scalarRecordComponentKey = "\x00scalar"

// Refresh re-reads this record's own attributes and discovers any
// components not yet known, recovering each newly-discovered
// component's dataset shape (§9 deferred-parse, recursing below the
// iteration level).
func (r *Record) Refresh(ctx context.Context) error {
	if err := r.ReadAttributes(ctx); err != nil {
		return err
	}
	names, err := r.Components.DiscoverChildren(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		component, _ := r.Components.Get(name)
		if err := component.adoptDataset(ctx); err != nil {
			return err
		}
	}
	return nil
}
