package openpmd

import (
	"testing"

	"openpmd/ioengine"
)

func TestLinkHierarchyComputesFilePosition(t *testing.T) {
	root, _ := newTestRoot()
	child := &Writable{}
	if err := child.LinkHierarchy(root, "meshes"); err != nil {
		t.Fatalf("LinkHierarchy: %v", err)
	}
	if got, want := child.FilePosition(), "/meshes"; got != want {
		t.Fatalf("FilePosition() = %q, want %q", got, want)
	}
	grandchild := &Writable{}
	if err := grandchild.LinkHierarchy(child, "E"); err != nil {
		t.Fatalf("LinkHierarchy: %v", err)
	}
	if got, want := grandchild.FilePosition(), "/meshes/E"; got != want {
		t.Fatalf("FilePosition() = %q, want %q", got, want)
	}
	if grandchild.Parent() != child {
		t.Fatalf("Parent() did not return the linked parent")
	}
}

func TestLinkHierarchyTwiceFails(t *testing.T) {
	root, _ := newTestRoot()
	child := &Writable{}
	if err := child.LinkHierarchy(root, "a"); err != nil {
		t.Fatalf("first LinkHierarchy: %v", err)
	}
	if err := child.LinkHierarchy(root, "a"); err == nil {
		t.Fatalf("expected an error re-linking an already-linked node")
	}
}

func TestMarkDirtyPropagatesUpward(t *testing.T) {
	root, _ := newTestRoot()
	child := &Writable{}
	child.LinkHierarchy(root, "a")
	grandchild := &Writable{}
	grandchild.LinkHierarchy(child, "b")

	grandchild.MarkDirty()

	if !grandchild.IsDirty() || !child.IsDirty() || !root.IsDirty() {
		t.Fatalf("expected dirty flag to propagate to every ancestor")
	}
}

func TestDirtyRecursiveAndClear(t *testing.T) {
	root, _ := newTestRoot()
	child := &Writable{}
	child.LinkHierarchy(root, "a")

	if root.DirtyRecursive() {
		t.Fatalf("fresh tree should not be dirty")
	}
	child.MarkDirty()
	if !root.DirtyRecursive() {
		t.Fatalf("expected DirtyRecursive to see the dirty descendant")
	}
	root.ClearDirtyRecursive()
	if root.DirtyRecursive() {
		t.Fatalf("expected ClearDirtyRecursive to clear every descendant")
	}
}

func TestEnqueueFailsAfterClose(t *testing.T) {
	root, _ := newTestRoot()
	root.FileState().Close()
	if err := root.Enqueue(0, nil); err == nil {
		t.Fatalf("expected Enqueue to fail once the file is closed")
	}
}

func TestTouchMarksDirtyAndEnqueues(t *testing.T) {
	root, h := newTestRoot()
	child := &Writable{}
	if err := child.LinkHierarchy(root, "it"); err != nil {
		t.Fatalf("LinkHierarchy: %v", err)
	}

	if err := child.Touch(); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !child.IsDirty() || !root.IsDirty() {
		t.Fatalf("Touch should dirty the node and its ancestors")
	}
	var touched bool
	for _, task := range h.tasks {
		if _, ok := task.Params.(ioengine.TouchParameters); ok {
			touched = true
		}
	}
	if !touched {
		t.Fatalf("expected a TOUCH task to reach the handler")
	}
}
