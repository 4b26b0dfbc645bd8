package openpmd

import (
	"context"
	"sort"

	"openpmd/ioengine"
)

// StatefulIterator walks a Series' iterations in the order required by
// §4.6's readIterations(): each Next call advances the underlying
// stream's step if the current one is exhausted, parses any newly
// visible iterations, and yields them in ascending index order, or in
// the order given by a "snapshot" attribute when the Series carries
// one (variable-based encoding).
type StatefulIterator struct {
	series  *Series
	emitted map[int]bool
	pending []int
}

func newStatefulIterator(s *Series) *StatefulIterator {
	return &StatefulIterator{series: s, emitted: make(map[int]bool)}
}

// Next returns the next not-yet-emitted iteration. ok is false once no
// further iterations are available (the stream reported StreamOver and
// every known iteration has been emitted).
func (it *StatefulIterator) Next(ctx context.Context) (*Iteration, bool, error) {
	for {
		if idx, ok := it.popPending(); ok {
			iteration := it.series.iterations[idx]
			if iteration.ParseState() == ParseStateDeferred {
				if err := iteration.Refresh(ctx); err != nil {
					return nil, false, err
				}
			}
			it.emitted[idx] = true
			return iteration, true, nil
		}

		order := it.orderedIndices()
		found := false
		for _, idx := range order {
			if !it.emitted[idx] {
				it.pending = append(it.pending, idx)
				found = true
			}
		}
		if found {
			continue
		}

		status, err := it.advanceStream(ctx)
		if err != nil {
			return nil, false, err
		}
		if status == ioengine.AdvanceOver {
			return nil, false, nil
		}
		// A step advanced with nothing new queued — no more iterations
		// will ever appear than already known (random-access backend).
		if status == ioengine.AdvanceRandomAccess {
			return nil, false, nil
		}
		// The step advanced: pick up iterations that became visible with
		// it. Parsing stays deferred; the next loop round resolves the
		// one actually yielded.
		if err := it.series.discoverIterations(ctx, true); err != nil {
			return nil, false, err
		}
	}
}

func (it *StatefulIterator) popPending() (int, bool) {
	if len(it.pending) == 0 {
		return 0, false
	}
	idx := it.pending[0]
	it.pending = it.pending[1:]
	return idx, true
}

// orderedIndices returns the Series' known iteration indices, ordered
// by its "snapshot" attribute if one is present, else ascending.
func (it *StatefulIterator) orderedIndices() []int {
	if attr, ok := it.series.seriesAttrs.GetAttribute("snapshot"); ok {
		if indices, ok := attr.AsVecFloat64(); ok {
			out := make([]int, 0, len(indices))
			for _, f := range indices {
				out = append(out, int(f))
			}
			return out
		}
	}
	out := make([]int, len(it.series.order))
	copy(out, it.series.order)
	sort.Ints(out)
	return out
}

func (it *StatefulIterator) advanceStream(ctx context.Context) (ioengine.AdvanceStatus, error) {
	var status ioengine.AdvanceStatus
	if err := it.series.root.Enqueue(ioengine.OpAdvance, ioengine.AdvanceParameters{Mode: ioengine.AdvanceModeBegin, Status: &status}); err != nil {
		return ioengine.AdvanceOK, err
	}
	if err := it.series.state.handler.Flush(ctx); err != nil {
		return ioengine.AdvanceOK, err
	}
	return status, nil
}

// RandomAccessIterator exposes direct index access into a file-based
// Series' already-discovered iterations, with no step-advance
// behavior — appropriate for a fully-written, closed Series re-opened
// for random-access reads (§8 scenario 1).
type RandomAccessIterator struct {
	series *Series
}

func NewRandomAccessIterator(s *Series) *RandomAccessIterator {
	return &RandomAccessIterator{series: s}
}

// At returns the iteration at index. It does not itself resolve a
// ParseStateDeferred iteration (no ctx to issue the read with) — callers
// opening with DeferIterationParsing should use StatefulIterator, whose
// Next does, or call Iteration.Refresh directly.
func (it *RandomAccessIterator) At(index int) (*Iteration, bool) {
	return it.series.Iteration(index)
}

func (it *RandomAccessIterator) Indices() []int {
	return it.series.Iterations()
}
