package openpmd

import (
	"context"
	"reflect"

	"openpmd/ioengine"
)

// RecordComponent is a typed, n-dimensional array handle: a leaf of
// the openPMD hierarchy that owns a Dataset description and mediates
// all chunked I/O for it through the task queue. Per §4.4.
type RecordComponent struct {
	Attributable

	dataset  Dataset
	written  bool // true once resetDataset has been committed to the backend
	empty    bool
	constant bool
	value    ioengine.Attribute // valid iff constant
}

func NewRecordComponent(w *Writable, stepActive func() bool) *RecordComponent {
	return &RecordComponent{Attributable: NewAttributable(w, stepActive)}
}

func (rc *RecordComponent) node() *Writable { return rc.Writable }

// Dataset returns the component's current shape description.
func (rc *RecordComponent) Dataset() Dataset { return rc.dataset }

// ResetDataset defines or redefines this component's shape. Once the
// component has been written to, changing rank or Datatype is a
// WrongAPIUsage error; changing only the extent is extendDataset's
// job, not ResetDataset's.
func (rc *RecordComponent) ResetDataset(d Dataset) error {
	if rc.written {
		if d.Datatype != rc.dataset.Datatype || d.Rank() != rc.dataset.Rank() {
			return ioengine.NewWrongAPIUsage(
				"cannot reset dataset at %q: rank/dtype change after data has been written", rc.Writable.FilePosition())
		}
	}
	if d.Operators == nil {
		d.Operators = rc.Writable.FileState().DefaultOperators()
	}
	if err := rc.Writable.Enqueue(ioengine.OpCreateDataset, ioengine.CreateDatasetParameters{
		Name:       rc.Writable.OwnKey(),
		Datatype:   d.Datatype,
		Extent:     d.Extent,
		ChunkShape: d.ChunkShape,
		Operators:  d.Operators,
	}); err != nil {
		return err
	}
	rc.dataset = d
	rc.written = true
	rc.constant = false
	rc.empty = false
	rc.Writable.MarkDirty()
	return nil
}

// ExtendDataset grows the component along its declared dimensions. The
// new extent must be elementwise ≥ the current one.
func (rc *RecordComponent) ExtendDataset(newExtent ioengine.Extent) error {
	if len(newExtent) != rc.dataset.Rank() {
		return ioengine.NewWrongAPIUsage("extendDataset: rank mismatch between %v and %v", rc.dataset.Extent, newExtent)
	}
	if !newExtent.GreaterOrEqual(rc.dataset.Extent) {
		return ioengine.NewWrongAPIUsage("extendDataset: new extent %v must be >= current extent %v elementwise", newExtent, rc.dataset.Extent)
	}
	if err := rc.Writable.Enqueue(ioengine.OpExtendDataset, ioengine.ExtendDatasetParameters{
		Name: rc.Writable.OwnKey(), NewExtent: newExtent,
	}); err != nil {
		return err
	}
	rc.dataset.Extent = newExtent
	rc.Writable.MarkDirty()
	return nil
}

// StoreChunk enqueues a deferred write of data at (offset, extent).
// The caller must not modify data.Data until the next successful flush
// completes.
func (rc *RecordComponent) StoreChunk(data ioengine.DataBuffer, offset ioengine.Offset, extent ioengine.Extent) error {
	if rc.constant {
		return ioengine.NewWrongAPIUsage("cannot storeChunk into a constant record component")
	}
	if !ioengine.WithinBounds(offset, extent, rc.dataset.Extent) {
		return ioengine.NewWrongAPIUsage("storeChunk: (offset=%v, extent=%v) out of bounds of %v", offset, extent, rc.dataset.Extent)
	}
	if err := rc.Writable.Enqueue(ioengine.OpWriteDataset, ioengine.WriteDatasetParameters{
		Offset: offset, Extent: extent, Datatype: rc.dataset.Datatype, Data: data,
	}); err != nil {
		return err
	}
	rc.Writable.MarkDirty()
	return nil
}

// LoadChunk enqueues a deferred read of (offset, extent) into buffer.
// For a constant component the read is synthesised by fill instead of
// going through the handler.
func (rc *RecordComponent) LoadChunk(buffer ioengine.DataBuffer, offset ioengine.Offset, extent ioengine.Extent) error {
	if !ioengine.WithinBounds(offset, extent, rc.dataset.Extent) {
		return ioengine.NewWrongAPIUsage("loadChunk: (offset=%v, extent=%v) out of bounds of %v", offset, extent, rc.dataset.Extent)
	}
	if rc.constant {
		return fillConstant(buffer, rc.value.Value())
	}
	return rc.Writable.Enqueue(ioengine.OpReadDataset, ioengine.ReadDatasetParameters{
		Offset: offset, Extent: extent, Datatype: rc.dataset.Datatype, Data: buffer,
	})
}

// GetBufferView requests span-based access to the backend buffer
// underlying this component. The core decides whether to offer it at
// all before asking the handler (§4.4): never under SpanPolicyNo, and
// under SpanPolicyAuto never for a dataset with a compression operator
// attached. Under SpanPolicyYes a handler that cannot serve the view
// is an OperationUnsupportedInBackend error rather than a silent
// fallback.
func (rc *RecordComponent) GetBufferView(offset ioengine.Offset, extent ioengine.Extent) (ioengine.UpdateBufferView, bool, error) {
	policy := rc.Writable.FileState().SpanPolicy()
	if policy == SpanPolicyNo {
		return nil, false, nil
	}
	if policy == SpanPolicyAuto && len(rc.dataset.Operators) > 0 {
		return nil, false, nil
	}
	var update ioengine.UpdateBufferView
	supported := false
	params := ioengine.GetBufferViewParameters{
		Offset: offset, Extent: extent, Datatype: rc.dataset.Datatype,
		Supported: &supported, Update: &update,
	}
	if err := rc.Writable.Enqueue(ioengine.OpGetBufferView, params); err != nil {
		return nil, false, err
	}
	if err := rc.Writable.Handler().Flush(context.Background()); err != nil {
		return nil, false, err
	}
	if policy == SpanPolicyYes && !supported {
		return nil, false, ioengine.NewOperationUnsupported(rc.Writable.Handler().BackendName(),
			"span-based put requested (use_span_based_put=yes) but not offered for %q", rc.Writable.FilePosition())
	}
	return update, supported, nil
}

// MakeConstant turns this component into a constant: instead of a
// backend dataset, a single Attribute value is persisted and every
// read is synthesised by fill.
func (rc *RecordComponent) MakeConstant(value ioengine.Attribute, extent ioengine.Extent) error {
	if rc.written && !rc.constant {
		return ioengine.NewWrongAPIUsage("cannot make an already-written non-constant record component constant")
	}
	if err := rc.Writable.Enqueue(ioengine.OpWriteAttribute, ioengine.WriteAttributeParameters{
		Name: "value", Datatype: value.Datatype(), Value: value,
	}); err != nil {
		return err
	}
	rc.dataset = Dataset{Datatype: value.Datatype(), Extent: extent}
	rc.value = value
	rc.constant = true
	rc.written = true
	rc.Writable.MarkDirty()
	return nil
}

// MakeEmpty declares a zero-size record component of the given rank
// and dtype — used for particle species with zero particles on this
// writer.
func (rc *RecordComponent) MakeEmpty(dtype ioengine.Datatype, rank int) error {
	extent := make(ioengine.Extent, rank)
	if err := rc.ResetDataset(Dataset{Datatype: dtype, Extent: extent}); err != nil {
		return err
	}
	rc.empty = true
	return nil
}

func (rc *RecordComponent) IsConstant() bool { return rc.constant }
func (rc *RecordComponent) IsEmpty() bool    { return rc.empty }

// adoptDataset recovers this component's Dataset description from the
// backend via OPEN_DATASET — the read-side counterpart to
// ResetDataset, used once Container.DiscoverChildren has linked a
// component whose shape has not yet been read back. Once this returns,
// LoadChunk works exactly as it would for a component written in this
// same process.
func (rc *RecordComponent) adoptDataset(ctx context.Context) error {
	var dtype ioengine.Datatype
	var extent ioengine.Extent
	if err := rc.Writable.Enqueue(ioengine.OpOpenDataset, ioengine.OpenDatasetParameters{
		Name: rc.Writable.OwnKey(), Datatype: &dtype, Extent: &extent,
	}); err != nil {
		return err
	}
	if err := rc.Writable.Handler().Flush(ctx); err != nil {
		return err
	}
	rc.dataset = Dataset{Datatype: dtype, Extent: extent}
	rc.written = true
	return nil
}

// AvailableChunks reports which regions of the dataset physically
// exist. A constant component always reports one chunk covering its
// full extent.
func (rc *RecordComponent) AvailableChunks() (ioengine.ChunkTable, error) {
	if rc.constant {
		return ioengine.ChunkTable{{
			Offset: make(ioengine.Offset, rc.dataset.Rank()),
			Extent: rc.dataset.Extent.Clone(),
		}}, nil
	}
	if h := rc.Writable.Handler(); h != nil && !h.AvailableChunksSupported(rc.Writable.NodeID()) {
		return ioengine.ChunkTable{{
			Offset: make(ioengine.Offset, rc.dataset.Rank()),
			Extent: rc.dataset.Extent.Clone(),
		}}, nil
	}
	var table ioengine.ChunkTable
	if err := rc.Writable.Enqueue(ioengine.OpAvailableChunks, ioengine.AvailableChunksParameters{Chunks: &table}); err != nil {
		return nil, err
	}
	if err := rc.Writable.Handler().Flush(context.Background()); err != nil {
		return nil, err
	}
	return table, nil
}

// fillConstant writes value into every element of buffer.Data, which
// must be a slice whose element type matches value's Go type.
func fillConstant(buffer ioengine.DataBuffer, value any) error {
	dst := reflect.ValueOf(buffer.Data)
	if dst.Kind() != reflect.Slice {
		return ioengine.NewInternalError("fillConstant: destination buffer is not a slice (got %T)", buffer.Data)
	}
	fillValue := reflect.ValueOf(value)
	for i := 0; i < dst.Len(); i++ {
		dst.Index(i).Set(fillValue)
	}
	return nil
}
