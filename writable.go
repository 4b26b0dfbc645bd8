// Package openpmd implements the backend-agnostic I/O engine of the
// openPMD-api: a hierarchical, dirty-tracked object model over a
// deferred IOTask queue (package ioengine), a step/iteration state
// machine reconciling streaming and random-access backends, and the
// Series entry point tying encoding, handler, and chunk distribution
// together.
package openpmd

import "openpmd/ioengine"

// Writable is the tree node every part of the hierarchy (Iteration,
// Mesh, RecordComponent, ...) embeds. It tracks dirty state, the
// node's position relative to its parent, and the opaque handle a
// Handler uses to address it.
//
// Ownership: a node holds only a non-owning back-reference to its
// parent; the parent owns its children (through the Container mixin
// that wires adoptChild). The tree is acyclic by construction — a
// child is adopted exactly once, at link time.
type Writable struct {
	parent       *Writable
	ownKey       string
	filePosition string
	dirty        bool
	fileState    *FileState
	nodeID       ioengine.NodeID
	linked       bool
	children     []*Writable
}

// NewRootWritable creates the Writable for a Series' root node, bound
// to state. It is its own file-position root ("/") and has no parent.
func NewRootWritable(state *FileState) *Writable {
	w := &Writable{filePosition: "/", fileState: state}
	w.nodeID = state.allocNodeID()
	w.linked = true
	return w
}

// LinkHierarchy wires w as a child of parent under ownKey: it inherits
// parent's FileState, computes its file-position as a prefix-extension
// of parent's, and is assigned a fresh NodeID. Calling it twice on the
// same node is a bug (InternalError), since the tree is meant to be
// acyclic and each node linked exactly once.
func (w *Writable) LinkHierarchy(parent *Writable, ownKey string) error {
	if w.linked {
		return ioengine.NewInternalError("Writable %q already linked to a parent", ownKey)
	}
	w.parent = parent
	w.ownKey = ownKey
	w.fileState = parent.fileState
	w.nodeID = parent.fileState.allocNodeID()
	if parent.filePosition == "/" {
		w.filePosition = "/" + ownKey
	} else {
		w.filePosition = parent.filePosition + "/" + ownKey
	}
	w.linked = true
	parent.adoptChild(w)
	return nil
}

func (w *Writable) adoptChild(child *Writable) {
	w.children = append(w.children, child)
}

func (w *Writable) Parent() *Writable         { return w.parent }
func (w *Writable) OwnKey() string            { return w.ownKey }
func (w *Writable) FilePosition() string      { return w.filePosition }
func (w *Writable) IsDirty() bool             { return w.dirty }
func (w *Writable) NodeID() ioengine.NodeID   { return w.nodeID }
func (w *Writable) FileState() *FileState     { return w.fileState }
func (w *Writable) Handler() ioengine.Handler { return w.fileState.handler }

// MarkDirty sets this node dirty and propagates the flag to every
// ancestor, per the upward-propagation invariant of §4.1.
func (w *Writable) MarkDirty() {
	w.dirty = true
	for p := w.parent; p != nil; p = p.parent {
		p.dirty = true
	}
}

// DirtyRecursive reports whether w or any descendant is dirty.
func (w *Writable) DirtyRecursive() bool {
	if w.dirty {
		return true
	}
	for _, c := range w.children {
		if c.DirtyRecursive() {
			return true
		}
	}
	return false
}

// ClearDirtyRecursive clears the dirty flag on w and every descendant.
// Called after a successful flush of the subtree.
func (w *Writable) ClearDirtyRecursive() {
	w.dirty = false
	for _, c := range w.children {
		c.ClearDirtyRecursive()
	}
}

// Touch marks the node dirty in frontend and backend both: the TOUCH
// task lets a handler re-serialize a node whose in-memory state
// changed without any other task naming it.
func (w *Writable) Touch() error {
	if err := w.Enqueue(ioengine.OpTouch, ioengine.TouchParameters{}); err != nil {
		return err
	}
	w.MarkDirty()
	return nil
}

// Unlink cuts the node's tree link after a DEREGISTER: it is removed
// from its parent's children and no longer reachable from the root.
// The node keeps its FileState reference so a straggling Enqueue fails
// against the handler rather than panicking.
func (w *Writable) Unlink() {
	if w.parent == nil {
		return
	}
	siblings := w.parent.children
	for i, c := range siblings {
		if c == w {
			w.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	w.parent = nil
}

// Enqueue submits an IOTask targeting this node to its bound handler.
func (w *Writable) Enqueue(op ioengine.Operation, params ioengine.Parameters) error {
	if w.fileState.handler == nil {
		return ioengine.NewWrongAPIUsage("cannot enqueue %s: file is closed", op)
	}
	return w.fileState.handler.Enqueue(ioengine.IOTask{Target: w.nodeID, Op: op, Params: params})
}

// FileState holds the state shared by every Writable rooted at the
// same backend resource: the path, the handler, and the open
// iterations/dirty tracking needed to coordinate a flush. Wrapped as a
// pointer (rather than by value) so the tree can outlive the backend
// resource after Close, at which point handler is nil and further
// Enqueue calls fail.
type FileState struct {
	path    string
	handler ioengine.Handler

	nextNodeID ioengine.NodeID

	openIterations map[uint64]*Iteration

	// spanPolicy and defaultOperators carry the resource-wide dataset
	// policy from the user configuration (§6: use_span_based_put,
	// <backend>.dataset.operators) to every RecordComponent in the
	// tree without threading Series through each constructor.
	spanPolicy       SpanPolicy
	defaultOperators []ioengine.DatasetOperator
}

// NewFileState creates file state bound to handler, addressing path on
// the backend.
func NewFileState(path string, handler ioengine.Handler) *FileState {
	return &FileState{
		path:           path,
		handler:        handler,
		openIterations: make(map[uint64]*Iteration),
	}
}

func (fs *FileState) allocNodeID() ioengine.NodeID {
	fs.nextNodeID++
	return fs.nextNodeID
}

func (fs *FileState) Path() string              { return fs.path }
func (fs *FileState) Handler() ioengine.Handler { return fs.handler }

// SpanPolicy is the resource-wide use_span_based_put policy.
func (fs *FileState) SpanPolicy() SpanPolicy { return fs.spanPolicy }

// DefaultOperators is the default compression pipeline applied to
// every dataset whose own description does not name one.
func (fs *FileState) DefaultOperators() []ioengine.DatasetOperator { return fs.defaultOperators }

// Close releases the handler reference; the Writable tree attached to
// fs remains walkable afterward but Enqueue will fail.
func (fs *FileState) Close() {
	fs.handler = nil
}
