// Package flatarray holds the reflect-based row-major array helpers
// shared by the in-memory and filesystem reference drivers: a dataset
// is represented as a single flat Go slice of length extent.Volume(),
// addressed the same way regardless of which driver owns it.
package flatarray

import (
	"reflect"

	"openpmd/ioengine"
)

// ZeroValueFor returns a representative zero value of the Go type a
// Datatype is represented by, used only to pick a reflect.Type.
func ZeroValueFor(dtype ioengine.Datatype) any {
	switch dtype {
	case ioengine.Bool:
		return false
	case ioengine.String:
		return ""
	case ioengine.Int8:
		return int8(0)
	case ioengine.Int16:
		return int16(0)
	case ioengine.Int32:
		return int32(0)
	case ioengine.Int64:
		return int64(0)
	case ioengine.UInt8, ioengine.Char:
		return uint8(0)
	case ioengine.UInt16:
		return uint16(0)
	case ioengine.UInt32:
		return uint32(0)
	case ioengine.UInt64:
		return uint64(0)
	case ioengine.Float:
		return float32(0)
	default:
		return float64(0)
	}
}

// NewZeroed allocates a flat slice of n zero elements of dtype's Go type.
func NewZeroed(dtype ioengine.Datatype, n int) any {
	sample := ZeroValueFor(dtype)
	return reflect.MakeSlice(reflect.SliceOf(reflect.TypeOf(sample)), n, n).Interface()
}

// Grow returns a new flat slice of newLen elements with existing's
// contents copied into the prefix; the new tail is zero-valued.
func Grow(existing any, newLen int) any {
	old := reflect.ValueOf(existing)
	grown := reflect.MakeSlice(old.Type(), newLen, newLen)
	reflect.Copy(grown, old)
	return grown.Interface()
}

// CopyChunk copies between a flat row-major dataset backing slice and a
// chunk-shaped user buffer, in either direction depending on toDataset.
func CopyChunk(dataset any, datasetExtent ioengine.Extent, offset ioengine.Offset, extent ioengine.Extent, buffer any, toDataset bool) error {
	ds := reflect.ValueOf(dataset)
	buf := reflect.ValueOf(buffer)
	if ds.Type() != buf.Type() {
		return ioengine.NewWrongAPIUsage("buffer type %T does not match dataset type %s", buffer, ds.Type())
	}

	strides := rowMajorStrides(datasetExtent)
	total := int(extent.Volume())
	for linear := 0; linear < total; linear++ {
		idx := unflatten(linear, extent)
		dsOffset := 0
		for axis := range idx {
			dsOffset += int(offset[axis]+idx[axis]) * strides[axis]
		}
		if toDataset {
			ds.Index(dsOffset).Set(buf.Index(linear))
		} else {
			buf.Index(linear).Set(ds.Index(dsOffset))
		}
	}
	return nil
}

func rowMajorStrides(extent ioengine.Extent) []int {
	strides := make([]int, len(extent))
	acc := 1
	for axis := len(extent) - 1; axis >= 0; axis-- {
		strides[axis] = acc
		acc *= int(extent[axis])
	}
	return strides
}

func unflatten(linear int, extent ioengine.Extent) []uint64 {
	idx := make([]uint64, len(extent))
	for axis := len(extent) - 1; axis >= 0; axis-- {
		dim := int(extent[axis])
		if dim == 0 {
			continue
		}
		idx[axis] = uint64(linear % dim)
		linear /= dim
	}
	return idx
}

// AppendChunk records a newly-written region in a chunk table.
func AppendChunk(chunks []ioengine.WrittenChunkInfo, offset ioengine.Offset, extent ioengine.Extent) []ioengine.WrittenChunkInfo {
	return append(chunks, ioengine.WrittenChunkInfo{Offset: offset.Clone(), Extent: extent.Clone()})
}
