package mpi

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestAllGatherStringsOrdersByRank(t *testing.T) {
	ranks := NewInProcessGroup(4)
	results := make([][]string, len(ranks))

	g, ctx := errgroup.WithContext(context.Background())
	for i, comm := range ranks {
		i, comm := i, comm
		g.Go(func() error {
			res, err := comm.AllGatherStrings(ctx, fmt.Sprintf("host-%d", i))
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("AllGatherStrings: %v", err)
	}

	want := []string{"host-0", "host-1", "host-2", "host-3"}
	for rank, got := range results {
		if len(got) != len(want) {
			t.Fatalf("rank %d: got %v, want %v", rank, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("rank %d: entry %d = %q, want %q", rank, i, got[i], want[i])
			}
		}
	}
}

func TestGatherStringsOnlyDestRankSeesResult(t *testing.T) {
	ranks := NewInProcessGroup(3)
	results := make([][]string, len(ranks))
	const dest = 1

	g, ctx := errgroup.WithContext(context.Background())
	for i, comm := range ranks {
		i, comm := i, comm
		g.Go(func() error {
			res, err := comm.GatherStrings(ctx, dest, fmt.Sprintf("r%d", i))
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("GatherStrings: %v", err)
	}

	if results[dest] == nil {
		t.Fatalf("dest rank %d should have received a result", dest)
	}
	if len(results[dest]) != 3 {
		t.Errorf("dest rank result = %v, want 3 entries", results[dest])
	}
	for i := range ranks {
		if i == dest {
			continue
		}
		if results[i] != nil {
			t.Errorf("non-dest rank %d should see a nil result, got %v", i, results[i])
		}
	}
}

func TestCollectiveRoundsAreIndependent(t *testing.T) {
	ranks := NewInProcessGroup(2)

	g1, ctx := errgroup.WithContext(context.Background())
	for i, comm := range ranks {
		i, comm := i, comm
		g1.Go(func() error {
			_, err := comm.AllGatherStrings(ctx, fmt.Sprintf("first-%d", i))
			return err
		})
	}
	if err := g1.Wait(); err != nil {
		t.Fatalf("first round: %v", err)
	}

	results := make([][]string, len(ranks))
	g2, ctx2 := errgroup.WithContext(context.Background())
	for i, comm := range ranks {
		i, comm := i, comm
		g2.Go(func() error {
			res, err := comm.AllGatherStrings(ctx2, fmt.Sprintf("second-%d", i))
			results[i] = res
			return err
		})
	}
	if err := g2.Wait(); err != nil {
		t.Fatalf("second round: %v", err)
	}
	if results[0][0] != "second-0" || results[0][1] != "second-1" {
		t.Errorf("second round leaked first round's values: %v", results[0])
	}
}
