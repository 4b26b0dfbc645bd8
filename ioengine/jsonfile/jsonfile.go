// Package jsonfile is a minimal, real-filesystem reference Handler: one
// directory per opened file, a single msgpack-encoded metadata document
// describing the node tree (attributes, paths, dataset descriptions,
// chunk tables) plus one binary payload file per dataset, optionally
// run through a zstd or brotli compression stage. It exists to exercise
// the same task set and §8 properties as memdriver, but against real
// files, compression and directory discovery instead of an in-process
// map.
package jsonfile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"openpmd/internal/flatarray"
	"openpmd/internal/logging"
	"openpmd/ioengine"
)

type Config struct {
	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// Driver is the filesystem Handler. Tasks are queued on Enqueue and
// executed in order during Flush, exactly like memdriver; the
// difference is that Flush also persists the node-metadata document
// and every touched dataset's payload file to disk.
type Driver struct {
	mu       sync.Mutex
	dir      string
	pattern  string // the raw path/pattern passed to CREATE_FILE/OPEN_FILE
	instance uuid.UUID
	nodes    map[ioengine.NodeID]*node
	dirty    map[ioengine.NodeID]bool
	pending  []ioengine.IOTask
	logger   *slog.Logger

	engineType   string
	engineParams map[string]any
	flushTarget  ioengine.FlushTarget
	closed       bool
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
	operators  []ioengine.DatasetOperator
	data       any // a flat Go slice of length extent.Volume(), row-major
	chunks     []ioengine.WrittenChunkInfo
	loaded     bool // true once data has been populated from disk or created fresh
}

// New creates a Driver rooted at dir. dir is created on CREATE_FILE and
// must already exist for OPEN_FILE. Each Driver gets its own instance
// ID, logged on every record so that log lines from concurrently open
// Series (e.g. in a test suite) can be told apart, the way the
// teacher's ingester factories scope each instance's logger by the
// uuid.UUID identity they are constructed with.
func New(dir string, cfg Config) *Driver {
	instance := uuid.New()
	return &Driver{
		dir:         dir,
		instance:    instance,
		nodes:       make(map[ioengine.NodeID]*node),
		dirty:       make(map[ioengine.NodeID]bool),
		flushTarget: ioengine.FlushTargetDisk,
		logger:      logging.Scoped(cfg.Logger, "jsonfile", "instance", instance.String()),
	}
}

// ConfigureEngine applies the user's engine keys. The driver has no
// step semantics, so usesteps=true cannot be honored; flush_target
// "buffer" keeps all state in memory between Flushes and only persists
// on CLOSE_FILE.
func (d *Driver) ConfigureEngine(cfg ioengine.EngineConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.Type != "" && cfg.Type != "jsonfile" {
		return ioengine.NewOperationUnsupported("jsonfile", "unknown engine type %q", cfg.Type)
	}
	if cfg.UseSteps != nil && *cfg.UseSteps {
		return ioengine.NewOperationUnsupported("jsonfile", "engine has no step semantics, cannot honor usesteps=true")
	}
	if cfg.FlushTarget != nil {
		d.flushTarget = *cfg.FlushTarget
	}
	d.engineType = cfg.Type
	d.engineParams = cfg.Parameters
	if len(cfg.Parameters) > 0 {
		d.logger.Debug("engine parameters accepted", "count", len(cfg.Parameters))
	}
	return nil
}

// AdjustFileSuffix canonicalizes the resource suffix to "json"; any
// other user suffix is accepted with a warning.
func (d *Driver) AdjustFileSuffix(engineType, userSuffix string) (string, string) {
	if userSuffix == "json" {
		return "json", ""
	}
	return "json", "suffix ." + userSuffix + " is not canonical for the jsonfile backend, using .json"
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

	for len(d.pending) > 0 {
		task := d.pending[0]
		d.pending = d.pending[1:]
		if err := d.execute(task); err != nil {
			d.pending = nil
			return err
		}
	}
	if d.dir == "" {
		return nil
	}
	if d.flushTarget == ioengine.FlushTargetBuffer && !d.closed {
		return nil
	}
	if err := d.persistMeta(); err != nil {
		return err
	}
	for id := range d.dirty {
		if err := d.persistDataset(id); err != nil {
			return err
		}
	}
	d.dirty = make(map[ioengine.NodeID]bool)
	return nil
}

func (d *Driver) execute(task ioengine.IOTask) error {
	n := d.nodeFor(task.Target)

	switch p := task.Params.(type) {
	case ioengine.CreateFileParameters:
		d.pattern = p.Path
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return ioengine.NewWrongAPIUsage("jsonfile: create file %q: %v", p.Path, err)
		}
		d.logger.Info("create file", "path", p.Path, "dir", d.dir, "encoding", p.Encoding)

	case ioengine.CheckFileParameters:
		*p.Exists = d.fileExists(p.Path)

	case ioengine.OpenFileParameters:
		d.pattern = p.Path
		if !d.fileExists(p.Path) {
			return ioengine.NewReadError(ioengine.AffectedFile, ioengine.ReasonNotFound, "jsonfile", "no such file: "+p.Path)
		}
		if err := d.loadMeta(); err != nil {
			return err
		}
		d.logger.Info("open file", "path", p.Path, "dir", d.dir)

	case ioengine.CloseFileParameters:
		d.closed = true
		d.logger.Info("close file", "dir", d.dir)

	case ioengine.CreatePathParameters:
		n.paths[p.Path] = true
	case ioengine.OpenPathParameters:
		if n.deleted {
			return ioengine.NewReadError(ioengine.AffectedGroup, ioengine.ReasonNotFound, "jsonfile", "path deleted: "+p.Path)
		}
	case ioengine.ClosePathParameters:
		// no-op: nothing to release for a filesystem-backed group

	case ioengine.CreateDatasetParameters:
		if n.dataset != nil && (n.dataset.dtype != p.Datatype || len(n.dataset.extent) != len(p.Extent)) {
			return ioengine.NewWrongAPIUsage("jsonfile: dataset %q already exists with a different dtype/rank", p.Name)
		}
		n.dataset = &datasetState{
			dtype:      p.Datatype,
			extent:     p.Extent.Clone(),
			chunkShape: p.ChunkShape,
			operators:  p.Operators,
			data:       flatarray.NewZeroed(p.Datatype, int(p.Extent.Volume())),
			loaded:     true,
		}
		n.datasets[p.Name] = true
		d.dirty[task.Target] = true
	case ioengine.ExtendDatasetParameters:
		if err := d.ensureLoaded(task.Target, n); err != nil {
			return err
		}
		if n.dataset == nil {
			return ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonNotFound, "jsonfile", "extend of unknown dataset")
		}
		if !p.NewExtent.GreaterOrEqual(n.dataset.extent) {
			return ioengine.NewWrongAPIUsage("jsonfile: extendDataset %v < current extent %v", p.NewExtent, n.dataset.extent)
		}
		n.dataset.extent = p.NewExtent.Clone()
		n.dataset.data = flatarray.Grow(n.dataset.data, int(p.NewExtent.Volume()))
		d.dirty[task.Target] = true
	case ioengine.OpenDatasetParameters:
		if n.dataset == nil {
			return ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonNotFound, "jsonfile", "open of unknown dataset: "+p.Name)
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
		delete(d.dirty, task.Target)
		_ = os.Remove(d.datasetPath(task.Target))
	case ioengine.DeleteAttributeParameters:
		d.deleteAttribute(n, p.Name)

	case ioengine.WriteDatasetParameters:
		if err := d.ensureLoaded(task.Target, n); err != nil {
			return err
		}
		if n.dataset == nil {
			return ioengine.NewWrongAPIUsage("jsonfile: write to a dataset that was never created")
		}
		if p.Datatype != n.dataset.dtype {
			return ioengine.NewWrongAPIUsage("jsonfile: write dtype %v does not match dataset dtype %v", p.Datatype, n.dataset.dtype)
		}
		if !ioengine.WithinBounds(p.Offset, p.Extent, n.dataset.extent) {
			return ioengine.NewWrongAPIUsage("jsonfile: write (offset=%v, extent=%v) out of bounds of %v", p.Offset, p.Extent, n.dataset.extent)
		}
		if err := flatarray.CopyChunk(n.dataset.data, n.dataset.extent, p.Offset, p.Extent, p.Data.Data, true); err != nil {
			return err
		}
		n.dataset.chunks = flatarray.AppendChunk(n.dataset.chunks, p.Offset, p.Extent)
		d.dirty[task.Target] = true
	case ioengine.ReadDatasetParameters:
		if err := d.ensureLoaded(task.Target, n); err != nil {
			return err
		}
		if n.dataset == nil {
			return ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonNotFound, "jsonfile", "read of unknown dataset")
		}
		if !ioengine.WithinBounds(p.Offset, p.Extent, n.dataset.extent) {
			return ioengine.NewWrongAPIUsage("jsonfile: read (offset=%v, extent=%v) out of bounds of %v", p.Offset, p.Extent, n.dataset.extent)
		}
		if err := flatarray.CopyChunk(n.dataset.data, n.dataset.extent, p.Offset, p.Extent, p.Data.Data, false); err != nil {
			return err
		}
	case ioengine.GetBufferViewParameters:
		// A compressed, on-disk dataset never offers a stable in-memory
		// span: every access round-trips through the codec.
		*p.Supported = false

	case ioengine.WriteAttributeParameters:
		if _, exists := n.attributes[p.Name]; !exists {
			n.attrOrder = append(n.attrOrder, p.Name)
		}
		n.attributes[p.Name] = p.Value
	case ioengine.ReadAttributeParameters:
		v, ok := n.attributes[p.Name]
		if !ok {
			return ioengine.NewReadError(ioengine.AffectedAttribute, ioengine.ReasonNotFound, "jsonfile", "no such attribute: "+p.Name)
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
		// A plain directory tree has no stream boundary: every access is
		// immediately visible, so every advance is reported as random access.
		*p.Status = ioengine.AdvanceRandomAccess

	case ioengine.TouchParameters, ioengine.DeregisterParameters:
		// no backend-side effect in this reference driver

	default:
		return ioengine.NewInternalError("jsonfile: unhandled operation %s", task.Op)
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

func (d *Driver) BackendName() string { return "jsonfile" }

func (d *Driver) RequiresExplicitSteps() bool { return false }

// fileExists reports whether the pattern designates an existing
// resource on disk: either the root directory itself, or (for a
// file-based %T pattern) at least one file matching the glob
// translation of the pattern.
func (d *Driver) fileExists(pattern string) bool {
	if info, err := os.Stat(d.dir); err == nil && info.IsDir() {
		return true
	}
	glob := toGlob(pattern)
	matches, err := doublestar.FilepathGlob(glob)
	if err != nil {
		return false
	}
	return len(matches) > 0
}

// toGlob turns a "%0NT"/"%T" placeholder into a doublestar "*" so the
// existing-file discovery in fileExists and DiscoverIterations can
// reuse a single real glob matcher instead of hand-rolled scanning,
// grounded on the teacher's discoverFiles helper.
func toGlob(pattern string) string {
	out := make([]rune, 0, len(pattern))
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '%' {
			j := i + 1
			for j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
				j++
			}
			if j < len(runes) && runes[j] == 'T' {
				out = append(out, '*')
				i = j
				continue
			}
		}
		out = append(out, runes[i])
	}
	return string(out)
}

// DiscoverIterations globs the directory for files matching the
// driver's filename pattern, returning their paths sorted
// lexicographically. Used by streaming/read-mode callers that need to
// bootstrap their iteration index from an existing on-disk series.
func (d *Driver) DiscoverIterations() ([]string, error) {
	glob := toGlob(filepath.Join(d.dir, filepath.Base(d.pattern)))
	matches, err := doublestar.FilepathGlob(glob)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// WatchIterations watches the driver's directory for iteration files
// that appear after DiscoverIterations has already run, so a reader
// opened in streaming mode against a file-based encoding can observe
// iterations the writer produces after the read-side has started.
// Matching paths are sent on the returned channel in the order
// fsnotify reports them; the channel is closed once ctx is done or the
// watcher itself fails. Grounded on the teacher's fsnotify-based
// directory watch in internal/ingester/tail (watch the static
// directory prefix, filter Create events against the glob pattern).
func (d *Driver) WatchIterations(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(d.dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	glob := toGlob(filepath.Join(d.dir, filepath.Base(d.pattern)))
	out := make(chan string)
	go func() {
		defer close(out)
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) {
					continue
				}
				if matched, err := doublestar.Match(glob, event.Name); err != nil || !matched {
					continue
				}
				select {
				case out <- event.Name:
				case <-ctx.Done():
					return
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("fsnotify error watching for new iterations", "dir", d.dir, "error", watchErr)
			}
		}
	}()
	return out, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// --- persistence ---

// wireNode is the on-disk shape of one node, msgpack-encoded.
type wireNode struct {
	AttrOrder  []string
	Attributes map[string]wireAttribute
	Paths      []string
	Datasets   []string
	Dataset    *wireDataset
}

// wireAttribute stores the Datatype tag alongside the value's own
// msgpack encoding rather than a generic `any`, so that decoding can
// target the concrete Go type the Datatype implies (a generic decode
// into `any` would hand back []interface{} for a VecDouble attribute
// instead of []float64, breaking Attribute.AsVecFloat64 and friends).
type wireAttribute struct {
	Datatype ioengine.Datatype
	Raw      msgpack.RawMessage
}

// attributeGoType returns the concrete Go type an Attribute of dtype is
// represented by, or nil for dtypes this driver stores generically.
func attributeGoType(dtype ioengine.Datatype) reflect.Type {
	switch dtype {
	case ioengine.Bool:
		return reflect.TypeOf(false)
	case ioengine.UInt8:
		return reflect.TypeOf(uint8(0))
	case ioengine.String:
		return reflect.TypeOf("")
	case ioengine.Int64:
		return reflect.TypeOf(int64(0))
	case ioengine.UInt64:
		return reflect.TypeOf(uint64(0))
	case ioengine.Double:
		return reflect.TypeOf(float64(0))
	case ioengine.Float:
		return reflect.TypeOf(float32(0))
	case ioengine.VecString:
		return reflect.TypeOf([]string(nil))
	case ioengine.VecDouble:
		return reflect.TypeOf([]float64(nil))
	case ioengine.VecUInt64:
		return reflect.TypeOf([]uint64(nil))
	case ioengine.UnitDimension:
		return reflect.TypeOf([7]float64{})
	default:
		return nil
	}
}

// decodeAttributeValue unmarshals wa.Raw into the concrete Go type
// wa.Datatype implies, falling back to a generic decode for Datatypes
// this driver has no specific mapping for.
func decodeAttributeValue(wa wireAttribute) (any, error) {
	t := attributeGoType(wa.Datatype)
	if t == nil {
		var v any
		if err := msgpack.Unmarshal(wa.Raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	ptr := reflect.New(t)
	if err := msgpack.Unmarshal(wa.Raw, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

type wireDataset struct {
	Datatype   ioengine.Datatype
	Extent     ioengine.Extent
	ChunkShape ioengine.Extent
	Operators  []ioengine.DatasetOperator
	Chunks     []ioengine.WrittenChunkInfo
}

type metaDocument struct {
	Nodes map[uint64]wireNode
}

// boolMarkerSuffix tags the sibling attribute that distinguishes a
// persisted boolean (stored as an unsigned 8-bit value) from a plain
// integer.
const boolMarkerSuffix = "__is_boolean__"

func (d *Driver) metaPath() string { return filepath.Join(d.dir, "meta.msgpack") }

func (d *Driver) datasetPath(id ioengine.NodeID) string {
	return filepath.Join(d.dir, "data", fmtNodeID(id)+".bin")
}

func fmtNodeID(id ioengine.NodeID) string {
	const hex = "0123456789abcdef"
	if id == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = hex[id%16]
		id /= 16
	}
	return string(buf[i:])
}

// persistMeta atomically writes the full node-metadata document,
// grounded on the teacher's temp-file-then-rename config Store.flush.
func (d *Driver) persistMeta() error {
	doc := metaDocument{Nodes: make(map[uint64]wireNode, len(d.nodes))}
	for id, n := range d.nodes {
		wn := wireNode{
			AttrOrder:  n.attrOrder,
			Attributes: make(map[string]wireAttribute, len(n.attributes)),
			Paths:      sortedKeys(n.paths),
			Datasets:   sortedKeys(n.datasets),
		}
		for name, attr := range n.attributes {
			value := attr.Value()
			dtype := attr.Datatype()
			// Booleans persist as an unsigned 8-bit value plus a sibling
			// marker attribute (§6's persisted-state layout); the marker
			// never enters the attribute order, so listings stay clean.
			if b, isBool := value.(bool); isBool && dtype == ioengine.Bool {
				var u uint8
				if b {
					u = 1
				}
				value, dtype = u, ioengine.UInt8
				markerRaw, err := msgpack.Marshal(uint8(1))
				if err != nil {
					return ioengine.NewInternalError("jsonfile: marshal boolean marker for %q: %v", name, err)
				}
				wn.Attributes[name+boolMarkerSuffix] = wireAttribute{Datatype: ioengine.UInt8, Raw: markerRaw}
			}
			raw, err := msgpack.Marshal(value)
			if err != nil {
				return ioengine.NewInternalError("jsonfile: marshal attribute %q: %v", name, err)
			}
			wn.Attributes[name] = wireAttribute{Datatype: dtype, Raw: raw}
		}
		if n.dataset != nil {
			wn.Dataset = &wireDataset{
				Datatype:   n.dataset.dtype,
				Extent:     n.dataset.extent,
				ChunkShape: n.dataset.chunkShape,
				Operators:  n.dataset.operators,
				Chunks:     n.dataset.chunks,
			}
		}
		doc.Nodes[uint64(id)] = wn
	}

	data, err := msgpack.Marshal(doc)
	if err != nil {
		return ioengine.NewInternalError("jsonfile: marshal metadata: %v", err)
	}
	return atomicWriteFile(d.metaPath(), data, 0o644)
}

// loadMeta reads the metadata document (if present) and repopulates the
// in-memory node registry. Dataset payloads are loaded lazily via
// ensureLoaded, not eagerly here.
func (d *Driver) loadMeta() error {
	data, err := os.ReadFile(d.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ioengine.NewReadError(ioengine.AffectedFile, ioengine.ReasonCannotRead, "jsonfile", err.Error())
	}
	var doc metaDocument
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return ioengine.NewParseError("jsonfile: corrupt metadata document: %v", err)
	}

	for id, wn := range doc.Nodes {
		n := &node{
			attrOrder:  wn.AttrOrder,
			attributes: make(map[string]ioengine.Attribute, len(wn.Attributes)),
			paths:      make(map[string]bool, len(wn.Paths)),
			datasets:   make(map[string]bool, len(wn.Datasets)),
		}
		for name, wa := range wn.Attributes {
			if strings.HasSuffix(name, boolMarkerSuffix) {
				continue
			}
			value, err := decodeAttributeValue(wa)
			if err != nil {
				return ioengine.NewParseError("jsonfile: corrupt attribute %q: %v", name, err)
			}
			if _, marked := wn.Attributes[name+boolMarkerSuffix]; marked {
				if u, isUInt := value.(uint8); isUInt {
					n.attributes[name] = ioengine.BoolAttr(u != 0)
					continue
				}
			}
			n.attributes[name] = ioengine.NewAttribute(wa.Datatype, value)
		}
		for _, p := range wn.Paths {
			n.paths[p] = true
		}
		for _, ds := range wn.Datasets {
			n.datasets[ds] = true
		}
		if wn.Dataset != nil {
			n.dataset = &datasetState{
				dtype:      wn.Dataset.Datatype,
				extent:     wn.Dataset.Extent,
				chunkShape: wn.Dataset.ChunkShape,
				operators:  wn.Dataset.Operators,
				chunks:     wn.Dataset.Chunks,
			}
		}
		d.nodes[ioengine.NodeID(id)] = n
	}
	return nil
}

// ensureLoaded makes sure a previously-persisted dataset's payload is
// resident in memory before it is read or written to.
func (d *Driver) ensureLoaded(id ioengine.NodeID, n *node) error {
	if n.dataset == nil || n.dataset.loaded {
		return nil
	}
	raw, err := os.ReadFile(d.datasetPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			n.dataset.data = flatarray.NewZeroed(n.dataset.dtype, int(n.dataset.extent.Volume()))
			n.dataset.loaded = true
			return nil
		}
		return ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonCannotRead, "jsonfile", err.Error())
	}
	decoded, err := decompress(raw, n.dataset.operators)
	if err != nil {
		return err
	}
	sliceType := reflect.SliceOf(reflect.TypeOf(flatarray.ZeroValueFor(n.dataset.dtype)))
	ptr := reflect.New(sliceType)
	if err := msgpack.Unmarshal(decoded, ptr.Interface()); err != nil {
		return ioengine.NewParseError("jsonfile: corrupt dataset payload (%s): %v", sliceType, err)
	}
	n.dataset.data = ptr.Elem().Interface()
	n.dataset.loaded = true
	return nil
}

// persistDataset writes one dataset's payload to disk, msgpack-encoded
// and then run through whichever compression operators were attached
// at CREATE_DATASET time.
func (d *Driver) persistDataset(id ioengine.NodeID) error {
	n, ok := d.nodes[id]
	if !ok || n.dataset == nil {
		return nil
	}
	encoded, err := msgpack.Marshal(n.dataset.data)
	if err != nil {
		return ioengine.NewInternalError("jsonfile: marshal dataset payload: %v", err)
	}
	compressed, err := compress(encoded, n.dataset.operators)
	if err != nil {
		return err
	}
	path := d.datasetPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ioengine.NewWrongAPIUsage("jsonfile: create data directory: %v", err)
	}
	return atomicWriteFile(path, compressed, 0o644)
}

// compress runs data through the named codec in operators, in order. An
// unrecognized operator type is a config-schema error: the caller asked
// for a compression stage this driver cannot provide.
func compress(data []byte, operators []ioengine.DatasetOperator) ([]byte, error) {
	for _, op := range operators {
		switch op.Type {
		case "zstd":
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				return nil, ioengine.NewInternalError("jsonfile: zstd encoder: %v", err)
			}
			data = enc.EncodeAll(data, nil)
			_ = enc.Close()
		case "brotli":
			var buf bytes.Buffer
			w := brotli.NewWriter(&buf)
			if _, err := w.Write(data); err != nil {
				return nil, ioengine.NewInternalError("jsonfile: brotli write: %v", err)
			}
			if err := w.Close(); err != nil {
				return nil, ioengine.NewInternalError("jsonfile: brotli close: %v", err)
			}
			data = buf.Bytes()
		default:
			return nil, ioengine.NewBackendConfigSchema([]string{"operators"}, "jsonfile: unsupported compression operator %q", op.Type)
		}
	}
	return data, nil
}

// decompress reverses compress, applying codecs in the opposite order
// they were applied in.
func decompress(data []byte, operators []ioengine.DatasetOperator) ([]byte, error) {
	for i := len(operators) - 1; i >= 0; i-- {
		switch operators[i].Type {
		case "zstd":
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return nil, ioengine.NewInternalError("jsonfile: zstd decoder: %v", err)
			}
			out, err := dec.DecodeAll(data, nil)
			dec.Close()
			if err != nil {
				return nil, ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonUnexpectedContent, "jsonfile", "zstd: "+err.Error())
			}
			data = out
		case "brotli":
			out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
			if err != nil {
				return nil, ioengine.NewReadError(ioengine.AffectedDataset, ioengine.ReasonUnexpectedContent, "jsonfile", "brotli: "+err.Error())
			}
			data = out
		default:
			return nil, ioengine.NewBackendConfigSchema([]string{"operators"}, "jsonfile: unsupported compression operator %q", operators[i].Type)
		}
	}
	return data, nil
}

// atomicWriteFile writes data to a temp file in the same directory as
// path and renames it into place, grounded on the teacher's config
// Store.flush pattern.
func atomicWriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioengine.NewWrongAPIUsage("jsonfile: create directory %q: %v", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".jsonfile-*")
	if err != nil {
		return ioengine.NewWrongAPIUsage("jsonfile: create temp file: %v", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ioengine.NewWrongAPIUsage("jsonfile: write temp file: %v", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ioengine.NewWrongAPIUsage("jsonfile: chmod temp file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ioengine.NewWrongAPIUsage("jsonfile: close temp file: %v", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return ioengine.NewWrongAPIUsage("jsonfile: rename into place: %v", err)
	}
	return nil
}
