// Package chunkassignment implements chunk distribution strategies: the
// algorithms that take a ChunkTable as reported by a dataset's
// AVAILABLE_CHUNKS and compute, for a set of reading processes, which
// reader should load which piece. Ported from openPMD-api's
// chunk_assignment namespace (ChunkInfo.hpp/.cpp).
package chunkassignment

import "openpmd/ioengine"

// RankMeta maps a rank number to a locality tag, typically a hostname.
type RankMeta map[uint]string

// PartialAssignment carries a ChunkTable still needing distribution
// alongside one already assigned by an earlier pass.
type PartialAssignment struct {
	NotAssigned ioengine.ChunkTable
	Assigned    ioengine.ChunkTable
}

// Strategy assigns every chunk in a PartialAssignment to some reader,
// tagging the result's SourceID with the reader rank that should load
// it. in and out describe writer and reader rank locality respectively.
type Strategy interface {
	Assign(assignment PartialAssignment, in, out RankMeta) ioengine.ChunkTable
}

// PartialStrategy assigns what it can and returns the rest unassigned,
// for use as the first pass of a FromPartialStrategy.
type PartialStrategy interface {
	Assign(assignment PartialAssignment, in, out RankMeta) PartialAssignment
}

// AssignChunks wraps a bare ChunkTable into a PartialAssignment and runs
// strategy over it; a convenience entry point mirroring the C++
// overload of the same name.
func AssignChunks(table ioengine.ChunkTable, in, out RankMeta, strategy Strategy) ioengine.ChunkTable {
	if len(out) == 0 {
		panic("chunkassignment: no output ranks defined")
	}
	return strategy.Assign(PartialAssignment{NotAssigned: table}, in, out)
}

func ranksPerHost(meta RankMeta) map[string][]uint {
	res := make(map[string][]uint)
	for rank, host := range meta {
		res[host] = append(res[host], rank)
	}
	return res
}
