// Package ioengine defines the backend-agnostic contract between the
// openpmd object model and a concrete storage driver: the datatype and
// attribute value representation, the deferred task queue and its
// parameter records, and the Handler interface a driver implements.
//
// Nothing in this package depends on the object-model tree (package
// openpmd) — drivers address nodes through an opaque NodeID rather than
// a concrete tree type, so a driver package never needs to import the
// tree it is serving.
package ioengine

import "fmt"

// Datatype is the closed set of value kinds an Attribute or dataset
// element may carry. The wire semantics of every variant must be
// preserved exactly by a conforming driver.
type Datatype int

const (
	UndefinedDatatype Datatype = iota

	Char
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64

	Float
	Double
	LongDouble

	ComplexFloat
	ComplexDouble
	ComplexLongDouble

	Bool

	String

	// UnitDimension is the fixed array<double,7> used for unit dimensions.
	UnitDimension

	// Vector variants: homogeneous arrays of a scalar Datatype.
	VecChar
	VecInt8
	VecInt16
	VecInt32
	VecInt64
	VecUInt8
	VecUInt16
	VecUInt32
	VecUInt64
	VecFloat
	VecDouble
	VecLongDouble
	VecString
)

// unsupportedInBackend reports whether a Datatype is recognized by the
// core but may legitimately be rejected by a driver that cannot
// represent it (long-double variants are platform-dependent extended
// precision types that most storage libraries do not model exactly).
func (d Datatype) unsupportedInBackend() bool {
	return d == LongDouble || d == ComplexLongDouble
}

// UnsupportedInBackend reports whether d is a recognized-but-optional
// datatype a driver may raise OperationUnsupportedInBackend for.
func (d Datatype) UnsupportedInBackend() bool {
	return d.unsupportedInBackend()
}

func (d Datatype) IsVector() bool {
	switch d {
	case VecChar, VecInt8, VecInt16, VecInt32, VecInt64,
		VecUInt8, VecUInt16, VecUInt32, VecUInt64,
		VecFloat, VecDouble, VecLongDouble, VecString:
		return true
	}
	return false
}

// Scalar returns the scalar Datatype underlying a vector variant, and ok
// is false if d is not a vector variant.
func (d Datatype) Scalar() (Datatype, bool) {
	switch d {
	case VecChar:
		return Char, true
	case VecInt8:
		return Int8, true
	case VecInt16:
		return Int16, true
	case VecInt32:
		return Int32, true
	case VecInt64:
		return Int64, true
	case VecUInt8:
		return UInt8, true
	case VecUInt16:
		return UInt16, true
	case VecUInt32:
		return UInt32, true
	case VecUInt64:
		return UInt64, true
	case VecFloat:
		return Float, true
	case VecDouble:
		return Double, true
	case VecLongDouble:
		return LongDouble, true
	case VecString:
		return String, true
	}
	return UndefinedDatatype, false
}

func (d Datatype) String() string {
	switch d {
	case UndefinedDatatype:
		return "UNDEFINED"
	case Char:
		return "CHAR"
	case Int8:
		return "INT8"
	case Int16:
		return "INT16"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case UInt8:
		return "UINT8"
	case UInt16:
		return "UINT16"
	case UInt32:
		return "UINT32"
	case UInt64:
		return "UINT64"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case LongDouble:
		return "LONG_DOUBLE"
	case ComplexFloat:
		return "CFLOAT"
	case ComplexDouble:
		return "CDOUBLE"
	case ComplexLongDouble:
		return "CLONG_DOUBLE"
	case Bool:
		return "BOOL"
	case String:
		return "STRING"
	case UnitDimension:
		return "ARRAY_DOUBLE_7"
	case VecChar:
		return "VEC_CHAR"
	case VecInt8:
		return "VEC_INT8"
	case VecInt16:
		return "VEC_INT16"
	case VecInt32:
		return "VEC_INT32"
	case VecInt64:
		return "VEC_INT64"
	case VecUInt8:
		return "VEC_UINT8"
	case VecUInt16:
		return "VEC_UINT16"
	case VecUInt32:
		return "VEC_UINT32"
	case VecUInt64:
		return "VEC_UINT64"
	case VecFloat:
		return "VEC_FLOAT"
	case VecDouble:
		return "VEC_DOUBLE"
	case VecLongDouble:
		return "VEC_LONG_DOUBLE"
	case VecString:
		return "VEC_STRING"
	default:
		return fmt.Sprintf("Datatype(%d)", int(d))
	}
}
