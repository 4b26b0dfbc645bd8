package chunkassignment

import "openpmd/ioengine"

// Intersect clips (offset, extent) to the region described by
// (withinOffset, withinExtent) along every axis independently. ok is
// false if the intersection is empty along any axis. Ported from
// chunk_assignment's restrictToSelection.
func Intersect(offset ioengine.Offset, extent ioengine.Extent, withinOffset ioengine.Offset, withinExtent ioengine.Extent) (ioengine.Offset, ioengine.Extent, bool) {
	offset = offset.Clone()
	extent = extent.Clone()

	for i := range offset {
		if offset[i] < withinOffset[i] {
			delta := withinOffset[i] - offset[i]
			offset[i] = withinOffset[i]
			if delta > extent[i] {
				extent[i] = 0
			} else {
				extent[i] -= delta
			}
		}
		total := extent[i] + offset[i]
		totalWithin := withinExtent[i] + withinOffset[i]
		if total > totalWithin {
			delta := total - totalWithin
			if delta > extent[i] {
				extent[i] = 0
			} else {
				extent[i] -= delta
			}
		}
	}

	for _, e := range extent {
		if e == 0 {
			return offset, extent, false
		}
	}
	return offset, extent, true
}
