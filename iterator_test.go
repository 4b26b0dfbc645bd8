package openpmd

import (
	"context"
	"testing"

	"openpmd/ioengine"
)

func TestStatefulIteratorAscendingOrder(t *testing.T) {
	h := &fakeHandler{advanceSequence: []ioengine.AdvanceStatus{ioengine.AdvanceOver}}
	s, err := OpenSeries(context.Background(), "data%T.json", AccessCreate, EncodingFileBased, h, nil)
	if err != nil {
		t.Fatalf("OpenSeries: %v", err)
	}
	ctx := context.Background()
	s.WriteIteration(ctx, 200)
	s.WriteIteration(ctx, 100)
	s.WriteIteration(ctx, 300)

	it := s.ReadIterations()
	var seen []int
	for {
		iteration, ok, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		seen = append(seen, iteration.Index())
	}
	want := []int{100, 200, 300}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

func TestStatefulIteratorHonorsSnapshotAttribute(t *testing.T) {
	h := &fakeHandler{advanceSequence: []ioengine.AdvanceStatus{ioengine.AdvanceOver}}
	s, err := OpenSeries(context.Background(), "data%T.json", AccessCreate, EncodingVariableBased, h, nil)
	if err != nil {
		t.Fatalf("OpenSeries: %v", err)
	}
	ctx := context.Background()
	s.WriteIteration(ctx, 1)
	s.WriteIteration(ctx, 2)
	s.seriesAttrs.SetAttribute("snapshot", ioengine.VecDoubleAttr([]float64{2, 1}))

	it := s.ReadIterations()
	first, ok, err := it.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("Next: (%v, %v, %v)", first, ok, err)
	}
	if first.Index() != 2 {
		t.Fatalf("first iteration = %d, want 2 (snapshot order)", first.Index())
	}
}

func TestRandomAccessIteratorAt(t *testing.T) {
	h := &fakeHandler{}
	s, err := OpenSeries(context.Background(), "data%T.json", AccessCreate, EncodingFileBased, h, nil)
	if err != nil {
		t.Fatalf("OpenSeries: %v", err)
	}
	s.WriteIteration(context.Background(), 42)

	ra := NewRandomAccessIterator(s)
	it, ok := ra.At(42)
	if !ok || it.Index() != 42 {
		t.Fatalf("At(42) = (%v, %v), want the iteration at 42", it, ok)
	}
	if _, ok := ra.At(7); ok {
		t.Fatalf("expected no iteration at an unused index")
	}
}
