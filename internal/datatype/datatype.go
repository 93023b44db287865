// Package datatype implements the fixed predefined-datatype descriptor
// table: a small dense table of {id, byte size} entries indexed by a
// compact id, with BYTE matching any other type.
package datatype

// ID is a predefined datatype identifier. Values are dense small
// integers, narrow enough for the wire frame's 16-bit field.
type ID int32

const (
	Null ID = -1

	Char ID = iota
	Byte
	Packed
	Int
	Unsigned
	Long
	UnsignedLong
	Float
	Double
	LongLong
	Aint
	Offset
	Count
)

type descriptor struct {
	name     string
	byteSize int
}

var table = map[ID]descriptor{
	Null:         {"MPI_DATATYPE_NULL", 0},
	Char:         {"MPI_CHAR", 1},
	Byte:         {"MPI_BYTE", 1},
	Packed:       {"MPI_PACKED", 1},
	Int:          {"MPI_INT", 4},
	Unsigned:     {"MPI_UNSIGNED", 4},
	Long:         {"MPI_LONG", 8},
	UnsignedLong: {"MPI_UNSIGNED_LONG", 8},
	Float:        {"MPI_FLOAT", 4},
	Double:       {"MPI_DOUBLE", 8},
	LongLong:     {"MPI_LONG_LONG", 8},
	Aint:         {"MPI_AINT", 8},
	Offset:       {"MPI_OFFSET", 8},
	Count:        {"MPI_COUNT", 8},
}

// Size returns the byte size of id, or 0 if id is unknown or Null.
func Size(id ID) int {
	d, ok := table[id]
	if !ok {
		return 0
	}
	return d.byteSize
}

// Name returns the symbolic name of id, for log messages.
func Name(id ID) string {
	d, ok := table[id]
	if !ok {
		return "MPI_DATATYPE_UNKNOWN"
	}
	return d.name
}

// Valid reports whether id names a predefined descriptor (Null is
// considered a valid sentinel, distinct from "unknown").
func Valid(id ID) bool {
	_, ok := table[id]
	return ok
}

// Compatible implements the datatype-matching rule: two datatypes are
// compatible for a send/recv pair iff they are equal, or either one is
// BYTE (the wildcard that matches any other type).
func Compatible(a, b ID) bool {
	if a == b {
		return true
	}
	return a == Byte || b == Byte
}
