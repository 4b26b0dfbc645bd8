package openpmd

import (
	"context"

	"openpmd/ioengine"
)

// attributeEntry preserves insertion order alongside the value, so
// serialisation order matches the order attributes were first set
// (the "insertion-order preserved" requirement of §4.2).
type attributeEntry struct {
	key   string
	value ioengine.Attribute
}

// Attributable is embedded by every node that carries an openPMD
// attribute map: Iteration, Mesh, RecordComponent, and Series itself.
// It owns the Writable for that node and mediates every attribute
// read/write through the IOTask queue.
type Attributable struct {
	Writable *Writable

	order   []string
	entries map[string]int // key -> index into order
	values  map[string]ioengine.Attribute

	// stepActive reports whether the enclosing iteration currently has
	// an open step; overwriting a committed attribute with a different
	// value is only legal while true. Nodes with no step semantics
	// (e.g. the Series root) wire a function that always returns true.
	stepActive func() bool
}

func NewAttributable(w *Writable, stepActive func() bool) Attributable {
	if stepActive == nil {
		stepActive = func() bool { return true }
	}
	return Attributable{
		Writable:   w,
		entries:    make(map[string]int),
		values:     make(map[string]ioengine.Attribute),
		stepActive: stepActive,
	}
}

// SetAttribute stages value under key. Writing an identical (dtype,
// value) pair is a no-op; overwriting with a different value outside
// the active step is a WrongAPIUsage error, per §4.2.
func (a *Attributable) SetAttribute(key string, value ioengine.Attribute) error {
	if existing, ok := a.values[key]; ok {
		if existing.Equal(value) {
			return nil
		}
		if !a.stepActive() {
			return ioengine.NewWrongAPIUsage(
				"cannot overwrite attribute %q outside the currently active step (previous step already closed)", key)
		}
	} else {
		a.entries[key] = len(a.order)
		a.order = append(a.order, key)
	}
	a.values[key] = value

	if err := a.Writable.Enqueue(ioengine.OpWriteAttribute, ioengine.WriteAttributeParameters{
		Name: key, Datatype: value.Datatype(), Value: value,
	}); err != nil {
		return err
	}
	a.Writable.MarkDirty()
	return nil
}

// GetAttribute returns the in-memory value for key.
func (a *Attributable) GetAttribute(key string) (ioengine.Attribute, bool) {
	v, ok := a.values[key]
	return v, ok
}

// DeleteAttribute removes key, enqueuing a DELETE_ATT task. Backends
// that cannot delete attributes (common for append-only streaming
// engines) report OperationUnsupportedInBackend, surfaced unchanged to
// the caller.
func (a *Attributable) DeleteAttribute(key string) error {
	if _, ok := a.values[key]; !ok {
		return nil
	}
	if err := a.Writable.Enqueue(ioengine.OpDeleteAttribute, ioengine.DeleteAttributeParameters{Name: key}); err != nil {
		return err
	}
	idx := a.entries[key]
	delete(a.values, key)
	delete(a.entries, key)
	a.order = append(a.order[:idx], a.order[idx+1:]...)
	for k, i := range a.entries {
		if i > idx {
			a.entries[k] = i - 1
		}
	}
	a.Writable.MarkDirty()
	return nil
}

// Attributes returns every (key, value) pair in insertion order.
func (a *Attributable) Attributes() []ioengine.Attribute {
	out := make([]ioengine.Attribute, len(a.order))
	for i, k := range a.order {
		out[i] = a.values[k]
	}
	return out
}

// AttributeKeys returns every key in insertion order.
func (a *Attributable) AttributeKeys() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// ReadAttributes populates the map from the backend via a READ_ATT
// task per reported key, then clears dirty — the freshly-read state
// matches what is on disk.
func (a *Attributable) ReadAttributes(ctx context.Context) error {
	var names []string
	if err := a.Writable.Enqueue(ioengine.OpListAttributes, ioengine.ListAttributesParameters{Names: &names}); err != nil {
		return err
	}
	if err := a.Writable.Handler().Flush(ctx); err != nil {
		return err
	}
	for _, name := range names {
		var result ioengine.Attribute
		if err := a.Writable.Enqueue(ioengine.OpReadAttribute, ioengine.ReadAttributeParameters{Name: name, Result: &result}); err != nil {
			return err
		}
		if err := a.Writable.Handler().Flush(ctx); err != nil {
			return err
		}
		if _, exists := a.entries[name]; !exists {
			a.entries[name] = len(a.order)
			a.order = append(a.order, name)
		}
		a.values[name] = result
	}
	a.Writable.dirty = false
	return nil
}
