// Package memdriver is an in-memory reference ioengine.Handler: every
// dataset and attribute lives in process memory, nothing touches a
// filesystem. It exists to exercise every task code and the testable
// properties of §8 without the fixturing cost of a real filesystem
// backend.
package memdriver

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"openpmd/internal/flatarray"
	"openpmd/internal/logging"
	"openpmd/ioengine"
)

type Config struct {
	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// Driver is the in-memory Handler. Tasks are queued on Enqueue and
// executed in order during Flush; a failing task aborts the remaining
// queue without reverting tasks already applied, per §4.3's partial-
// flush contract.
type Driver struct {
	mu      sync.Mutex
	nodes   map[ioengine.NodeID]*node
	pending []ioengine.IOTask
	spans   []spanRecord
	open    bool
	logger  *slog.Logger
}

// spanRecord is one outstanding GET_BUFFER_VIEW: a staging buffer
// handed to the caller, committed into its dataset at the start of the
// next Flush (the caller fills it between the two).
type spanRecord struct {
	target ioengine.NodeID
	offset ioengine.Offset
	extent ioengine.Extent
	buf    any
}

type node struct {
	attrOrder  []string
	attributes map[string]ioengine.Attribute
	paths      map[string]bool
	datasets   map[string]bool
	deleted    bool

	dataset *datasetState
}

type datasetState struct {
	dtype      ioengine.Datatype
	extent     ioengine.Extent
	chunkShape ioengine.Extent
	data       any // a flat Go slice of length extent.Volume(), row-major
	chunks     []ioengine.WrittenChunkInfo
}

func New(cfg Config) *Driver {
	return &Driver{
		nodes:  make(map[ioengine.NodeID]*node),
		open:   true,
		logger: logging.Scoped(cfg.Logger, "memdriver"),
	}
}

func (d *Driver) nodeFor(id ioengine.NodeID) *node {
	n, ok := d.nodes[id]
	if !ok {
		n = &node{
			attributes: make(map[string]ioengine.Attribute),
			paths:      make(map[string]bool),
			datasets:   make(map[string]bool),
		}
		d.nodes[id] = n
	}
	return n
}

func (d *Driver) Enqueue(task ioengine.IOTask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, task)
	return nil
}

func (d *Driver) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Commit spans handed out by the previous flush round before
	// executing new tasks, so reads queued this round observe them.
	for _, s := range d.spans {
		if err := d.commitSpan(s); err != nil {
			d.spans = nil
			d.pending = nil
			return err
		}
	}
	d.spans = nil

	for len(d.pending) > 0 {
		task := d.pending[0]
		d.pending = d.pending[1:]
		if err := d.execute(task); err != nil {
			d.pending = nil
			return err
		}
	}
	return nil
}

func (d *Driver) commitSpan(s spanRecord) error {
	n, ok := d.nodes[s.target]
	if !ok || n.dataset == nil {
		return ioengine.NewInternalError("memdriver: span commit against a vanished dataset")
	}
	if err := flatarray.CopyChunk(n.dataset.data, n.dataset.extent, s.offset, s.extent, s.buf, true); err != nil {
		return err
	}
	n.dataset.chunks = flatarray.AppendChunk(n.dataset.chunks, s.offset, s.extent)
	return nil
}

func (d *Driver) execute(task ioengine.IOTask) error {
	n := d.nodeFor(task.Target)

	switch p := task.Params.(type) {
	case ioengine.CreateFileParameters:
		d.logger.Info("create file", "path", p.Path, "encoding", p.Encoding)
	case ioengine.CheckFileParameters:
		*p.Exists = true
	case ioengine.OpenFileParameters:
		d.logger.Info("open file", "path", p.Path)
	case ioengine.CloseFileParameters:
		d.open = false
		d.logger.Info("close file")

	case ioengine.CreatePathParameters:
		n.paths[p.Path] = true
	case ioengine.OpenPathParameters:
		if n.deleted {
			return ioengine.NewReadError(ioengine.AffectedGroup, ioengine.ReasonNotFound, "memdriver", "path deleted: "+p.Path)
		}
	case ioengine.ClosePathParameters:
		// no-op: no per-step attribute purge in this reference driver

	case ioengine.CreateDatasetParameters:
		if n.dataset != nil && (n.dataset.dtype != p.Datatype || len(n.dataset.extent) != len(p.Extent)) {
			return ioengine.NewWrongAPIUsage("memdriver: dataset %q already exists with a different dtype/rank", p.Name)
		}
		n.dataset = &datasetState{
			dtype:      p.Datatype,
			extent:     p.Extent.Clone(),
			chunkShape: p.ChunkShape,
			data:       flatarray.NewZeroed(p.Datatype, int(p.Extent.Volume())),
		}
		n.datasets[p.Name] = true
	case ioengine.ExtendDatasetParameters:
		if n.dataset == nil {
			return ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonNotFound, "memdriver", "extend of unknown dataset")
		}
		if !p.NewExtent.GreaterOrEqual(n.dataset.extent) {
			return ioengine.NewWrongAPIUsage("memdriver: extendDataset %v < current extent %v", p.NewExtent, n.dataset.extent)
		}
		n.dataset.extent = p.NewExtent.Clone()
		n.dataset.data = flatarray.Grow(n.dataset.data, int(p.NewExtent.Volume()))
	case ioengine.OpenDatasetParameters:
		if n.dataset == nil {
			return ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonNotFound, "memdriver", "open of unknown dataset: "+p.Name)
		}
		*p.Datatype = n.dataset.dtype
		*p.Extent = n.dataset.extent.Clone()

	case ioengine.DeleteFileParameters:
		n.deleted = true
	case ioengine.DeletePathParameters:
		delete(n.paths, p.Path)
	case ioengine.DeleteDatasetParameters:
		n.dataset = nil
		delete(n.datasets, p.Name)
	case ioengine.DeleteAttributeParameters:
		d.deleteAttribute(n, p.Name)

	case ioengine.WriteDatasetParameters:
		if n.dataset == nil {
			return ioengine.NewWrongAPIUsage("memdriver: write to a dataset that was never created")
		}
		if p.Datatype != n.dataset.dtype {
			return ioengine.NewWrongAPIUsage("memdriver: write dtype %v does not match dataset dtype %v", p.Datatype, n.dataset.dtype)
		}
		if !ioengine.WithinBounds(p.Offset, p.Extent, n.dataset.extent) {
			return ioengine.NewWrongAPIUsage("memdriver: write (offset=%v, extent=%v) out of bounds of %v", p.Offset, p.Extent, n.dataset.extent)
		}
		if err := flatarray.CopyChunk(n.dataset.data, n.dataset.extent, p.Offset, p.Extent, p.Data.Data, true); err != nil {
			return err
		}
		n.dataset.chunks = flatarray.AppendChunk(n.dataset.chunks, p.Offset, p.Extent)
	case ioengine.ReadDatasetParameters:
		if n.dataset == nil {
			return ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonNotFound, "memdriver", "read of unknown dataset")
		}
		if !ioengine.WithinBounds(p.Offset, p.Extent, n.dataset.extent) {
			return ioengine.NewWrongAPIUsage("memdriver: read (offset=%v, extent=%v) out of bounds of %v", p.Offset, p.Extent, n.dataset.extent)
		}
		if err := flatarray.CopyChunk(n.dataset.data, n.dataset.extent, p.Offset, p.Extent, p.Data.Data, false); err != nil {
			return err
		}
	case ioengine.GetBufferViewParameters:
		if n.dataset == nil {
			return ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonNotFound, "memdriver", "buffer view of unknown dataset")
		}
		if !ioengine.WithinBounds(p.Offset, p.Extent, n.dataset.extent) {
			return ioengine.NewWrongAPIUsage("memdriver: buffer view (offset=%v, extent=%v) out of bounds of %v", p.Offset, p.Extent, n.dataset.extent)
		}
		buf := flatarray.NewZeroed(n.dataset.dtype, int(p.Extent.Volume()))
		d.spans = append(d.spans, spanRecord{
			target: task.Target,
			offset: p.Offset.Clone(),
			extent: p.Extent.Clone(),
			buf:    buf,
		})
		*p.Supported = true
		*p.Update = func() (ioengine.DataBuffer, bool) {
			return ioengine.DataBuffer{Data: buf}, true
		}

	case ioengine.WriteAttributeParameters:
		if _, exists := n.attributes[p.Name]; !exists {
			n.attrOrder = append(n.attrOrder, p.Name)
		}
		n.attributes[p.Name] = p.Value
	case ioengine.ReadAttributeParameters:
		v, ok := n.attributes[p.Name]
		if !ok {
			return ioengine.NewReadError(ioengine.AffectedAttribute, ioengine.ReasonNotFound, "memdriver", "no such attribute: "+p.Name)
		}
		*p.Result = v

	case ioengine.ListPathsParameters:
		*p.Paths = sortedKeys(n.paths)
	case ioengine.ListDatasetsParameters:
		*p.Names = sortedKeys(n.datasets)
	case ioengine.ListAttributesParameters:
		out := make([]string, len(n.attrOrder))
		copy(out, n.attrOrder)
		*p.Names = out

	case ioengine.AvailableChunksParameters:
		if n.dataset == nil {
			*p.Chunks = nil
		} else {
			*p.Chunks = append(ioengine.ChunkTable(nil), n.dataset.chunks...)
		}

	case ioengine.AdvanceParameters:
		*p.Status = ioengine.AdvanceRandomAccess

	case ioengine.TouchParameters, ioengine.DeregisterParameters:
		// no backend-side effect in this reference driver

	default:
		return ioengine.NewInternalError("memdriver: unhandled operation %s", task.Op)
	}
	return nil
}

func (d *Driver) deleteAttribute(n *node, name string) {
	if _, ok := n.attributes[name]; !ok {
		return
	}
	delete(n.attributes, name)
	for i, k := range n.attrOrder {
		if k == name {
			n.attrOrder = append(n.attrOrder[:i], n.attrOrder[i+1:]...)
			break
		}
	}
}

func (d *Driver) AvailableChunksSupported(dataset ioengine.NodeID) bool { return true }

func (d *Driver) BackendName() string { return "memdriver" }

func (d *Driver) RequiresExplicitSteps() bool { return false }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
