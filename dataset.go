package openpmd

import "openpmd/ioengine"

// Dataset describes the shape and storage policy of a RecordComponent:
// its element type, current extent, optional chunk shape, and
// compression pipeline. Rank is fixed at the first resetDataset call;
// resetting with a different rank or dtype once the dataset has been
// declared (by an earlier ResetDataset, MakeConstant, or read-back of
// its shape) is a WrongAPIUsage error.
type Dataset struct {
	Datatype   ioengine.Datatype
	Extent     ioengine.Extent
	ChunkShape ioengine.Extent
	Operators  []ioengine.DatasetOperator
}

// Rank is the dataset's dimensionality.
func (d Dataset) Rank() int { return len(d.Extent) }
