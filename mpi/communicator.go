// Package mpi provides the collective operations the core and
// chunkassignment need to agree on cross-rank information: gathering a
// string (e.g. a hostname) to one rank, and gathering a string to all
// ranks. Ported from openPMD-api's auxiliary::collectStringsTo and
// auxiliary::distributeStringsToAllRanks (src/auxiliary/MPI.cpp).
//
// A real MPI binding is out of scope (no cgo/concrete-backend
// dependency is wired here); Communicator is the seam a process-group
// transport plugs into, and InProcessGroup is a reference
// implementation used by single-binary tests and by callers who run
// multiple ranks as goroutines rather than OS processes.
package mpi

import "context"

// Communicator is the minimal collective surface the core needs.
type Communicator interface {
	Rank() int
	Size() int

	// GatherStrings sends s to destRank and, on destRank only, returns
	// the per-rank strings ordered by rank. On any other rank it
	// returns a nil slice.
	GatherStrings(ctx context.Context, destRank int, s string) ([]string, error)

	// AllGatherStrings sends s to every rank and returns the per-rank
	// strings ordered by rank, identically on every rank.
	AllGatherStrings(ctx context.Context, s string) ([]string, error)

	// BroadcastBytes distributes rootRank's data to every rank; the
	// data argument is ignored on every other rank.
	BroadcastBytes(ctx context.Context, rootRank int, data []byte) ([]byte, error)
}
