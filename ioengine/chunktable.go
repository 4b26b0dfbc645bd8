package ioengine

// WrittenChunkInfo is a chunk of a dataset tagged with the ID of the
// writer (rank or subfile) that produced it. SourceID 0 means unknown.
// Grounded on openPMD-api's WrittenChunkInfo (ChunkInfo.hpp).
type WrittenChunkInfo struct {
	Offset   Offset
	Extent   Extent
	SourceID uint
}

// ChunkTable is a sequence of chunks describing pieces of a logical
// dataset that physically exist. Chunks of one table do not overlap.
type ChunkTable []WrittenChunkInfo

// Clone returns a deep copy; chunk-assignment strategies are pure
// functions over their inputs and must not alias the caller's slices.
func (t ChunkTable) Clone() ChunkTable {
	out := make(ChunkTable, len(t))
	for i, c := range t {
		out[i] = WrittenChunkInfo{
			Offset:   c.Offset.Clone(),
			Extent:   c.Extent.Clone(),
			SourceID: c.SourceID,
		}
	}
	return out
}
