package mpi

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InProcessGroup simulates a group of MPI ranks as goroutines sharing
// memory instead of processes sharing a wire. NewInProcessGroup returns
// one Communicator per rank; every collective call blocks until all
// ranks have made the matching call, exactly as a real MPI collective
// would.
type InProcessGroup struct {
	size int

	mu      sync.Mutex
	arrived int
	values  map[int]string
	result  []string
	done    chan struct{}
}

func NewInProcessGroup(size int) []Communicator {
	if size <= 0 {
		panic("mpi: group size must be positive")
	}
	g := &InProcessGroup{
		size:   size,
		values: make(map[int]string, size),
		done:   make(chan struct{}),
	}
	ranks := make([]Communicator, size)
	for r := 0; r < size; r++ {
		ranks[r] = &inProcessRank{rank: r, group: g}
	}
	return ranks
}

type inProcessRank struct {
	rank  int
	group *InProcessGroup
}

func (r *inProcessRank) Rank() int { return r.rank }
func (r *inProcessRank) Size() int { return r.group.size }

func (r *inProcessRank) GatherStrings(ctx context.Context, destRank int, s string) ([]string, error) {
	all, err := r.group.collective(ctx, r.rank, s)
	if err != nil {
		return nil, err
	}
	if r.rank != destRank {
		return nil, nil
	}
	return all, nil
}

func (r *inProcessRank) AllGatherStrings(ctx context.Context, s string) ([]string, error) {
	return r.group.collective(ctx, r.rank, s)
}

func (r *inProcessRank) BroadcastBytes(ctx context.Context, rootRank int, data []byte) ([]byte, error) {
	contribution := ""
	if r.rank == rootRank {
		contribution = string(data)
	}
	all, err := r.group.collective(ctx, r.rank, contribution)
	if err != nil {
		return nil, err
	}
	if rootRank < 0 || rootRank >= len(all) {
		return nil, fmt.Errorf("mpi: broadcast root rank %d out of range [0,%d)", rootRank, len(all))
	}
	return []byte(all[rootRank]), nil
}

// collective implements one barrier round: every rank contributes its
// string; the last arrival computes the rank-ordered result, stores it,
// and releases every waiter by closing done. The round's result is read
// by every caller, including the one that computed it, after the
// barrier opens, so all ranks observe an identical slice.
func (g *InProcessGroup) collective(ctx context.Context, rank int, s string) ([]string, error) {
	g.mu.Lock()
	g.values[rank] = s
	g.arrived++

	if g.arrived == g.size {
		g.result = g.orderedValues()
		g.values = make(map[int]string, g.size)
		g.arrived = 0
		done := g.done
		g.done = make(chan struct{})
		result := g.result
		g.mu.Unlock()
		close(done)
		return result, nil
	}
	done := g.done
	g.mu.Unlock()

	select {
	case <-done:
		g.mu.Lock()
		result := g.result
		g.mu.Unlock()
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *InProcessGroup) orderedValues() []string {
	ranks := make([]int, 0, len(g.values))
	for r := range g.values {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = g.values[r]
	}
	return out
}
