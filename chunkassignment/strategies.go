package chunkassignment

import (
	"sort"

	"openpmd/ioengine"
)

func sortedRanks(meta RankMeta) []uint {
	ranks := make([]uint, 0, len(meta))
	for r := range meta {
		ranks = append(ranks, r)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	return ranks
}

// RoundRobin assigns chunks to reading ranks in rotating order,
// deterministic given the numeric ordering of out.
type RoundRobin struct{}

func (RoundRobin) Assign(assignment PartialAssignment, _ RankMeta, out RankMeta) ioengine.ChunkTable {
	ranks := sortedRanks(out)
	if len(ranks) == 0 {
		panic("chunkassignment: RoundRobin cannot assign to zero ranks")
	}
	next := 0
	nextRank := func() uint {
		r := ranks[next]
		next = (next + 1) % len(ranks)
		return r
	}

	sink := assignment.Assigned
	for _, chunk := range assignment.NotAssigned {
		chunk.SourceID = nextRank()
		sink = append(sink, chunk)
	}
	return sink
}

// ByHostname groups unassigned chunks by the hostname of the writer
// that produced them and, for every group with at least one reader on
// the same host, delegates distribution within that group to
// withinNode restricted to those readers. Chunks whose writer hostname
// is unknown, or for which no reader shares the hostname, are returned
// unassigned for a later pass.
type ByHostname struct {
	WithinNode Strategy
}

func (h ByHostname) Assign(res PartialAssignment, in, out RankMeta) PartialAssignment {
	chunkGroups := make(map[string]ioengine.ChunkTable)
	var leftover ioengine.ChunkTable
	for _, chunk := range res.NotAssigned {
		hostname, ok := in[chunk.SourceID]
		if !ok {
			leftover = append(leftover, chunk)
			continue
		}
		chunkGroups[hostname] = append(chunkGroups[hostname], chunk)
	}
	res.NotAssigned = leftover

	ranksPerHostSink := ranksPerHost(out)

	hostnames := make([]string, 0, len(chunkGroups))
	for hostname := range chunkGroups {
		hostnames = append(hostnames, hostname)
	}
	sort.Strings(hostnames)

	sink := res.Assigned
	for _, hostname := range hostnames {
		group := chunkGroups[hostname]
		ranksOnHost, ok := ranksPerHostSink[hostname]
		if !ok || len(ranksOnHost) == 0 {
			res.NotAssigned = append(res.NotAssigned, group...)
			continue
		}
		targetNode := make(RankMeta, len(ranksOnHost))
		for _, rank := range ranksOnHost {
			targetNode[rank] = hostname
		}
		sink = h.WithinNode.Assign(PartialAssignment{NotAssigned: group, Assigned: sink}, in, targetNode)
	}
	res.Assigned = sink
	return res
}

// FromPartialStrategy runs FirstPass to assign what it heuristically
// can, then SecondPass on the residue to guarantee completeness.
type FromPartialStrategy struct {
	FirstPass  PartialStrategy
	SecondPass Strategy
}

func (f FromPartialStrategy) Assign(assignment PartialAssignment, in, out RankMeta) ioengine.ChunkTable {
	partial := f.FirstPass.Assign(assignment, in, out)
	return f.SecondPass.Assign(partial, in, out)
}

// BlockSlicer computes the hyperslab a given rank is responsible for
// out of a dataset of totalExtent, given numRanks participating.
type BlockSlicer interface {
	SliceBlock(totalExtent ioengine.Extent, numRanks, rank uint) (ioengine.Offset, ioengine.Extent)
}

// OneDimensionalBlockSlicer splits totalExtent into numRanks
// contiguous slabs along Dimension, distributing any remainder to the
// lowest-numbered ranks one row at a time.
type OneDimensionalBlockSlicer struct {
	Dimension int
}

func (s OneDimensionalBlockSlicer) SliceBlock(totalExtent ioengine.Extent, numRanks, rank uint) (ioengine.Offset, ioengine.Extent) {
	dim := s.Dimension
	if dim < 0 || dim >= len(totalExtent) {
		dim = 0
	}
	total := totalExtent[dim]
	base := total / uint64(numRanks)
	remainder := total % uint64(numRanks)

	var myOffset uint64
	var myCount uint64
	for r := uint(0); r <= rank; r++ {
		count := base
		if uint64(r) < remainder {
			count++
		}
		if r == rank {
			myCount = count
			break
		}
		myOffset += count
	}

	offset := make(ioengine.Offset, len(totalExtent))
	extent := totalExtent.Clone()
	offset[dim] = myOffset
	extent[dim] = myCount
	return offset, extent
}

// ByCuboidSlice slices the dataset into per-rank hyperslabs via
// BlockSlicer and, for the calling rank only, intersects every input
// chunk with its own slab. The result is local: each rank's Assign
// call only ever returns chunks tagged with its own rank.
type ByCuboidSlice struct {
	BlockSlicer BlockSlicer
	TotalExtent ioengine.Extent
	Rank        uint
	Size        uint
}

func (b ByCuboidSlice) Assign(res PartialAssignment, _, _ RankMeta) ioengine.ChunkTable {
	myOffset, myExtent := b.BlockSlicer.SliceBlock(b.TotalExtent, b.Size, b.Rank)

	sink := res.Assigned
	for _, chunk := range res.NotAssigned {
		offset, extent, ok := Intersect(chunk.Offset, chunk.Extent, myOffset, myExtent)
		if !ok {
			continue
		}
		chunk.Offset = offset
		chunk.Extent = extent
		chunk.SourceID = b.Rank
		sink = append(sink, chunk)
	}
	return sink
}

// BinPacking splits chunks along SplitAlongDimension into pieces no
// larger than the per-reader ideal size (total volume / reader count),
// then greedily bin-packs them across readers in two passes. The
// double pass is required for the factor-2 approximation guarantee: a
// single pass can leave a reader well under its ideal share whenever
// the largest remaining chunk does not fit what is left of the current
// bin, and running the loop a second time sweeps up exactly that
// slack.
type BinPacking struct {
	SplitAlongDimension int
}

type sizedChunk struct {
	chunk    ioengine.WrittenChunkInfo
	dataSize uint64
}

func splitToSizeSorted(table ioengine.ChunkTable, maxSize uint64, dimension int) []sizedChunk {
	var res []sizedChunk
	for _, chunk := range table {
		extent := chunk.Extent
		dim := dimension
		if dim < 0 || dim >= len(extent) {
			dim = 0
		}
		sliceSize := uint64(1)
		for i, e := range extent {
			if i == dim {
				continue
			}
			sliceSize *= e
		}
		if sliceSize == 0 {
			continue
		}

		streakLength := maxSize / sliceSize
		if streakLength == 0 {
			streakLength = 1
		}
		slicedDimExtent := extent[dim]

		for currentPosition := uint64(0); ; currentPosition += streakLength {
			newChunk := ioengine.WrittenChunkInfo{
				Offset:   chunk.Offset.Clone(),
				Extent:   chunk.Extent.Clone(),
				SourceID: chunk.SourceID,
			}
			newChunk.Offset[dim] += currentPosition
			if currentPosition+streakLength >= slicedDimExtent {
				newChunk.Extent[dim] = slicedDimExtent - currentPosition
				res = append(res, sizedChunk{newChunk, newChunk.Extent[dim] * sliceSize})
				break
			}
			newChunk.Extent[dim] = streakLength
			res = append(res, sizedChunk{newChunk, streakLength * sliceSize})
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].dataSize > res[j].dataSize })
	return res
}

func (b BinPacking) Assign(res PartialAssignment, _, out RankMeta) ioengine.ChunkTable {
	var totalExtent uint64
	for _, chunk := range res.NotAssigned {
		totalExtent += chunk.Extent.Volume()
	}
	idealSize := totalExtent / uint64(len(out))

	digestible := splitToSizeSorted(res.NotAssigned, idealSize, b.SplitAlongDimension)
	sink := res.Assigned
	ranks := sortedRanks(out)

	worker := func() {
		for _, destRank := range ranks {
			leftover := idealSize
			i := 0
			for i < len(digestible) {
				sc := digestible[i]
				switch {
				case sc.dataSize >= idealSize:
					sc.chunk.SourceID = destRank
					sink = append(sink, sc.chunk)
					digestible = append(digestible[:i], digestible[i+1:]...)
					i = len(digestible) // break the inner loop, mirroring the C++ goto-less break
				case sc.dataSize <= leftover:
					sc.chunk.SourceID = destRank
					sink = append(sink, sc.chunk)
					leftover -= sc.dataSize
					digestible = append(digestible[:i], digestible[i+1:]...)
				default:
					i++
				}
			}
		}
	}
	// Run twice: the first pass fills every reader to at least half its
	// ideal share (greedy largest-first); the second mops up what the
	// first left behind. Together they guarantee the factor-2
	// approximation of the underlying bin-packing problem.
	worker()
	worker()
	return sink
}
