package openpmd

import (
	"context"

	"openpmd/ioengine"
)

// Node is implemented by every type that can live inside a Container:
// it exposes the embedded Writable so the container can link it into
// the tree.
type Node interface {
	node() *Writable
}

// Container is an ordered name→child mapping: insertion order is
// preserved for deterministic iteration and serialisation, mirroring
// openPMD-api's use of an insertion-ordered map for every child
// collection (meshes, particles, record components, the custom
// hierarchy, the Series' iterations).
//
// Unlike the original's compile-time template explosion, one generic
// type now serves every child kind; factory is supplied by the owner
// so Container never needs to know how to construct a T.
type Container[T Node] struct {
	parent  *Writable
	order   []string
	entries map[string]T
	factory func() T

	// writeAccess gates auto-creation on Get of a name that doesn't yet
	// exist. Read-only series never auto-create.
	writeAccess bool
}

// NewContainer creates a container of children linked under parent,
// using factory to construct new elements on demand.
func NewContainer[T Node](parent *Writable, writeAccess bool, factory func() T) Container[T] {
	return Container[T]{
		parent:      parent,
		entries:     make(map[string]T),
		factory:     factory,
		writeAccess: writeAccess,
	}
}

// Get returns the child named key, auto-creating and linking it (under
// write access) if absent. ok is false if absent under read-only
// access.
func (c *Container[T]) Get(key string) (T, bool) {
	if existing, ok := c.entries[key]; ok {
		return existing, true
	}
	var zero T
	if !c.writeAccess {
		return zero, false
	}
	child := c.factory()
	if err := child.node().LinkHierarchy(c.parent, key); err != nil {
		return zero, false
	}
	if err := c.parent.Enqueue(ioengine.OpCreatePath, ioengine.CreatePathParameters{Path: key}); err != nil {
		return zero, false
	}
	c.entries[key] = child
	c.order = append(c.order, key)
	return child, true
}

// DiscoverChildren lists c.parent's backend paths and adopts any not
// already known into c via the container's own factory — the read-mode
// counterpart to Get's write-mode auto-creation, and the mechanism by
// which a reopened Series repopulates its iterations' meshes,
// particles, custom records and record components. Returns the keys
// newly adopted, in the order the backend reported them.
func (c *Container[T]) DiscoverChildren(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.parent.Enqueue(ioengine.OpListPaths, ioengine.ListPathsParameters{Paths: &names}); err != nil {
		return nil, err
	}
	if err := c.parent.Handler().Flush(ctx); err != nil {
		return nil, err
	}
	var adopted []string
	for _, name := range names {
		if c.Has(name) {
			continue
		}
		child := c.factory()
		if err := child.node().LinkHierarchy(c.parent, name); err != nil {
			return nil, err
		}
		c.Adopt(name, child)
		adopted = append(adopted, name)
	}
	return adopted, nil
}

// Has reports whether key exists without creating it.
func (c *Container[T]) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}

// Adopt registers an already-constructed, already-linked child under
// key — used by the parser when populating a container from a backend
// listing, where the child's Writable was linked explicitly rather
// than through Get's lazy auto-creation.
func (c *Container[T]) Adopt(key string, child T) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = child
}

// Erase removes key from the container and from the backend: a
// DELETE_PATH is issued against the parent and the child's node is
// deregistered and unlinked from the tree. Backends that cannot delete
// (append-only streaming engines) report
// OperationUnsupportedInBackend, surfaced unchanged at the next flush.
// Erasing an absent key is a no-op.
func (c *Container[T]) Erase(key string) error {
	child, ok := c.entries[key]
	if !ok {
		return nil
	}
	if err := c.parent.Enqueue(ioengine.OpDeletePath, ioengine.DeletePathParameters{Path: key}); err != nil {
		return err
	}
	if err := child.node().Enqueue(ioengine.OpDeregister, ioengine.DeregisterParameters{}); err != nil {
		return err
	}
	child.node().Unlink()
	c.Delete(key)
	c.parent.MarkDirty()
	return nil
}

// Delete removes key. The caller is responsible for issuing the
// corresponding DELETE_* task; Container only maintains the in-memory
// index.
func (c *Container[T]) Delete(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Keys returns every key in insertion order.
func (c *Container[T]) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of children.
func (c *Container[T]) Len() int { return len(c.order) }

// Each calls fn for every (key, child) pair in insertion order.
func (c *Container[T]) Each(fn func(key string, child T)) {
	for _, k := range c.order {
		fn(k, c.entries[k])
	}
}
