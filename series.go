package openpmd

import (
	"context"
	"log/slog"
	"sort"

	"openpmd/internal/logging"
	"openpmd/ioengine"
)

// AccessType is the mode a Series was opened with.
type AccessType int

const (
	AccessReadOnly AccessType = iota
	AccessReadWrite
	AccessCreate
)

// schemaVersion is the openPMD standard version string this engine
// writes to the root "openPMD" attribute, per §6's persisted-state
// layout.
const schemaVersion = "2.0.0"

// Series is the root of the hierarchy: it owns the encoding, filename
// pattern, the map of iterations, MeshesPath/ParticlesPath, and the
// handler (§3).
type Series struct {
	root  *Writable
	state *FileState

	access   AccessType
	encoding IterationEncoding
	pattern  filenamePattern

	meshesPath    string
	particlesPath string

	iterations map[int]*Iteration
	order      []int

	openIndex   *int // currently open write-iteration, or nil
	writeAccess bool

	// seriesAttrs is the root node's own attribute map (time-independent
	// metadata: openPMD version, basePath, meshesPath, particlesPath).
	seriesAttrs *Attributable

	cfg    *seriesConfig
	logger *slog.Logger
}

// OpenSeries parses the given name[%0NT][.ext] pattern and opens (or
// creates) the backend resource it designates, per §4.5. handler must
// already be constructed for the resolved backend; Series does not
// perform backend selection. For AccessReadOnly/AccessReadWrite it also
// performs the open-time parse (§9): the existing iterations are
// discovered and, unless options requests deferred parsing, eagerly
// read back.
func OpenSeries(ctx context.Context, pattern string, access AccessType, encoding IterationEncoding, handler ioengine.Handler, options *SeriesOptions) (*Series, error) {
	fp, err := parseFilenamePattern(pattern)
	if err != nil {
		return nil, err
	}

	var rawConfig string
	var optLogger *slog.Logger
	if options != nil {
		rawConfig = options.Configuration
		optLogger = options.Logger
	}
	logger := logging.Scoped(optLogger, "series", "pattern", pattern)

	cfg, err := parseSeriesConfig(rawConfig, handler.BackendName())
	if err != nil {
		return nil, err
	}
	if cfg.encoding != nil {
		encoding = *cfg.encoding
	}
	if adjuster, ok := handler.(ioengine.SuffixAdjuster); ok && fp.Extension != "" {
		canonical, warning := adjuster.AdjustFileSuffix(cfg.engine.Type, fp.Extension)
		if warning != "" {
			logger.Warn("file suffix adjusted", "from", fp.Extension, "to", canonical, "detail", warning)
		}
		fp.Extension = canonical
	}
	if err := cfg.configure(handler); err != nil {
		return nil, err
	}
	resolved := fp.patternString()

	state := NewFileState(resolved, handler)
	state.spanPolicy = cfg.spanPolicy
	state.defaultOperators = cfg.operators
	root := NewRootWritable(state)

	s := &Series{
		root:          root,
		state:         state,
		access:        access,
		encoding:      encoding,
		pattern:       fp,
		meshesPath:    "meshes/",
		particlesPath: "particles/",
		iterations:    make(map[int]*Iteration),
		writeAccess:   access != AccessReadOnly,
		cfg:           cfg,
		logger:        logger,
	}

	rootAttrs := NewAttributable(root, func() bool { return true })
	s.seriesAttrs = &rootAttrs

	if access == AccessCreate {
		if err := root.Enqueue(ioengine.OpCreateFile, ioengine.CreateFileParameters{Path: resolved, Encoding: encoding.String()}); err != nil {
			return nil, err
		}
		if err := s.writeRootAttributes(); err != nil {
			return nil, err
		}
		logger.Info("series created", "encoding", encoding.String(), "backend", handler.BackendName())
		return s, nil
	}

	if err := root.Enqueue(ioengine.OpOpenFile, ioengine.OpenFileParameters{Path: resolved}); err != nil {
		return nil, err
	}
	deferParsing := false
	if cfg.deferParsing != nil {
		deferParsing = *cfg.deferParsing
	}
	if options != nil && options.DeferIterationParsing != nil {
		deferParsing = *options.DeferIterationParsing
	}
	if err := s.discoverIterations(ctx, deferParsing); err != nil {
		return nil, err
	}
	logger.Info("series opened", "encoding", encoding.String(), "backend", handler.BackendName(), "iterations", len(s.order))
	return s, nil
}

func (s *Series) writeRootAttributes() error {
	if err := s.seriesAttrs.SetAttribute("openPMD", ioengine.StringAttr(schemaVersion)); err != nil {
		return err
	}
	if err := s.seriesAttrs.SetAttribute("basePath", ioengine.StringAttr("/data/%T/")); err != nil {
		return err
	}
	if err := s.seriesAttrs.SetAttribute("meshesPath", ioengine.StringAttr(s.meshesPath)); err != nil {
		return err
	}
	return s.seriesAttrs.SetAttribute("particlesPath", ioengine.StringAttr(s.particlesPath))
}

func (s *Series) Encoding() IterationEncoding { return s.encoding }
func (s *Series) MeshesPath() string          { return s.meshesPath }
func (s *Series) ParticlesPath() string       { return s.particlesPath }

func (s *Series) SetMeshesPath(p string) error {
	s.meshesPath = p
	return s.seriesAttrs.SetAttribute("meshesPath", ioengine.StringAttr(p))
}

func (s *Series) SetParticlesPath(p string) error {
	s.particlesPath = p
	return s.seriesAttrs.SetAttribute("particlesPath", ioengine.StringAttr(p))
}

// WriteIteration returns a handle to iteration index for writing,
// closing the previously-open write-iteration first if it differs
// from index, and eagerly performing BeginStep when the encoding uses
// steps (file-based: one stream per file; group/variable-based: one
// stream for the whole Series), per §4.6.
func (s *Series) WriteIteration(ctx context.Context, index int) (*Iteration, error) {
	if !s.writeAccess {
		return nil, ioengine.NewWrongAPIUsage("cannot write an iteration in a read-only Series")
	}
	if s.openIndex != nil && *s.openIndex != index {
		if prev, ok := s.iterations[*s.openIndex]; ok {
			if err := prev.Close(ctx, true); err != nil {
				return nil, err
			}
		}
	}

	it, existed := s.iterations[index]
	if !existed {
		w := &Writable{}
		itPath := s.iterationLinkKey(index)
		if err := w.LinkHierarchy(s.root, itPath); err != nil {
			return nil, err
		}
		if err := s.root.Enqueue(ioengine.OpCreatePath, ioengine.CreatePathParameters{Path: itPath}); err != nil {
			return nil, err
		}
		it = newIteration(w, index, true)
		s.iterations[index] = it
		s.order = append(s.order, index)
		sort.Ints(s.order)
	}

	idx := index
	s.openIndex = &idx
	if _, err := it.BeginStep(ctx); err != nil {
		return nil, err
	}
	return it, nil
}

// iterationLinkKey is the key under which an iteration is linked into
// the tree: its own file (file-based) or a group at basePath/<T>
// (group/variable-based) — represented identically in this in-process
// tree, since the distinction is entirely the handler's concern (the
// CREATE_FILE parameter already carries the encoding).
func (s *Series) iterationLinkKey(index int) string {
	return s.pattern.iterationFilename(index, s.pattern.Padding)
}

// EraseIteration removes iteration index from the Series and from the
// backend: its own file in file-based encoding, its group otherwise.
// The iteration's node is deregistered and unlinked. Erasing an
// unknown index is a no-op; backends that cannot delete report
// OperationUnsupportedInBackend at the next flush.
func (s *Series) EraseIteration(index int) error {
	if !s.writeAccess {
		return ioengine.NewWrongAPIUsage("cannot erase an iteration in a read-only Series")
	}
	it, ok := s.iterations[index]
	if !ok {
		return nil
	}
	key := s.iterationLinkKey(index)
	if s.encoding == EncodingFileBased {
		if err := it.Writable.Enqueue(ioengine.OpDeleteFile, ioengine.DeleteFileParameters{Path: key}); err != nil {
			return err
		}
	} else {
		if err := s.root.Enqueue(ioengine.OpDeletePath, ioengine.DeletePathParameters{Path: key}); err != nil {
			return err
		}
	}
	if err := it.Writable.Enqueue(ioengine.OpDeregister, ioengine.DeregisterParameters{}); err != nil {
		return err
	}
	it.Writable.Unlink()
	delete(s.iterations, index)
	for i, idx := range s.order {
		if idx == index {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.openIndex != nil && *s.openIndex == index {
		s.openIndex = nil
	}
	s.root.MarkDirty()
	return nil
}

// Iterations returns every iteration index currently known, in
// ascending order.
func (s *Series) Iterations() []int {
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

// Iteration returns the iteration at index, if known.
func (s *Series) Iteration(index int) (*Iteration, bool) {
	it, ok := s.iterations[index]
	return it, ok
}

// ReadIterations returns a StatefulIterator over the Series' discovered
// iterations, yielding them in ascending index order unless a
// "snapshot" attribute orders them otherwise (§4.6).
func (s *Series) ReadIterations() *StatefulIterator {
	return newStatefulIterator(s)
}

// Flush flushes every dirty iteration's pending tasks through the
// bound handler, then clears the dirty flag across the whole tree — a
// successful flush leaves dirtyRecursive() false for every node not
// mutated since, per §8.
func (s *Series) Flush(ctx context.Context) error {
	// Tasks enqueued while out of step (after an explicit EndStep)
	// implicitly begin one at the flush boundary, where the backend
	// observes them (§4.6).
	if s.openIndex != nil {
		if it, ok := s.iterations[*s.openIndex]; ok && it.CloseStatus() == CloseStatusOpen {
			if err := it.steps.EnsureStepFor(ctx); err != nil {
				return err
			}
		}
	}
	if err := s.state.handler.Flush(ctx); err != nil {
		return err
	}
	s.root.ClearDirtyRecursive()
	s.cfg.warnUnused(s.logger)
	return nil
}

// Close flushes and closes every open iteration, then closes the file.
func (s *Series) Close(ctx context.Context) error {
	for _, idx := range s.order {
		it := s.iterations[idx]
		if it.CloseStatus() == CloseStatusOpen {
			if err := it.Close(ctx, true); err != nil {
				return err
			}
		}
	}
	if err := s.root.Enqueue(ioengine.OpCloseFile, ioengine.CloseFileParameters{}); err != nil {
		return err
	}
	if err := s.state.handler.Flush(ctx); err != nil {
		return err
	}
	s.cfg.warnUnused(s.logger)
	s.state.Close()
	s.logger.Info("series closed")
	return nil
}
