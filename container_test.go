package openpmd

import (
	"testing"

	"openpmd/ioengine"
)

func TestContainerGetAutoCreatesUnderWriteAccess(t *testing.T) {
	root, _ := newTestRoot()
	c := NewContainer(root, true, func() *RecordComponent {
		return NewRecordComponent(&Writable{}, nil)
	})

	child, ok := c.Get("x")
	if !ok {
		t.Fatalf("expected auto-creation under write access")
	}
	if child.node().FilePosition() != "/x" {
		t.Fatalf("FilePosition() = %q, want /x", child.node().FilePosition())
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	again, _ := c.Get("x")
	if again != child {
		t.Fatalf("expected a second Get of the same key to return the same instance")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() after repeated Get = %d, want 1", c.Len())
	}
}

func TestContainerGetReadOnlyDoesNotCreate(t *testing.T) {
	root, _ := newTestRoot()
	c := NewContainer(root, false, func() *RecordComponent {
		return NewRecordComponent(&Writable{}, nil)
	})
	if _, ok := c.Get("x"); ok {
		t.Fatalf("expected no auto-creation under read-only access")
	}
}

func TestContainerAdoptPreservesInsertionOrder(t *testing.T) {
	root, _ := newTestRoot()
	c := NewContainer(root, false, func() *RecordComponent { return nil })

	for _, key := range []string{"z", "a", "m"} {
		child := NewRecordComponent(&Writable{}, nil)
		child.node().LinkHierarchy(root, key)
		c.Adopt(key, child)
	}
	want := []string{"z", "a", "m"}
	got := c.Keys()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestContainerDeleteRemovesKeyAndOrder(t *testing.T) {
	root, _ := newTestRoot()
	c := NewContainer(root, true, func() *RecordComponent {
		return NewRecordComponent(&Writable{}, nil)
	})
	c.Get("a")
	c.Get("b")
	c.Delete("a")

	if c.Has("a") {
		t.Fatalf("expected a to be deleted")
	}
	if got := c.Keys(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("Keys() = %v, want [b]", got)
	}
}

func TestContainerEachVisitsInOrder(t *testing.T) {
	root, _ := newTestRoot()
	c := NewContainer(root, true, func() *RecordComponent {
		return NewRecordComponent(&Writable{}, nil)
	})
	c.Get("first")
	c.Get("second")

	var seen []string
	c.Each(func(key string, child *RecordComponent) {
		seen = append(seen, key)
	})
	if len(seen) != 2 || seen[0] != "first" || seen[1] != "second" {
		t.Fatalf("Each visited %v, want [first second]", seen)
	}
}

func TestContainerEraseDeletesBackendPathAndUnlinks(t *testing.T) {
	root, h := newTestRoot()
	c := NewContainer(root, true, func() *RecordComponent {
		return NewRecordComponent(&Writable{}, nil)
	})
	child, _ := c.Get("x")

	if err := c.Erase("x"); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if c.Has("x") {
		t.Fatalf("erased key still present")
	}
	if child.node().Parent() != nil {
		t.Fatalf("erased child should be unlinked from its parent")
	}

	var deleted, deregistered bool
	for _, task := range h.tasks {
		switch p := task.Params.(type) {
		case ioengine.DeletePathParameters:
			deleted = p.Path == "x"
		case ioengine.DeregisterParameters:
			deregistered = true
		}
	}
	if !deleted || !deregistered {
		t.Fatalf("expected DELETE_PATH(x) and DEREGISTER, got deleted=%v deregistered=%v", deleted, deregistered)
	}

	if err := c.Erase("x"); err != nil {
		t.Fatalf("erasing an absent key should be a no-op, got %v", err)
	}
}
