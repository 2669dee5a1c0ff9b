// Package tensor provides the batch data containers exchanged between
// pipeline operators: typed N-dimensional samples, ordered batches with a
// device placement, and the simulated accelerator stream they synchronize on.
package tensor

// DType identifies the element type of a Sample. It is fixed for every
// sample within one batch.
type DType int

// Supported element types.
const (
	Uint8 DType = iota
	Int32
	Int64
	Float32
	Float64
)

// Size returns the byte size of one element of the data type.
func (dt DType) Size() int {
	switch dt {
	case Uint8:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		panic("tensor: unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DType) String() string {
	switch dt {
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// alloc returns a zeroed flat slice of n elements of the given type.
func alloc(dt DType, n int) any {
	switch dt {
	case Uint8:
		return make([]uint8, n)
	case Int32:
		return make([]int32, n)
	case Int64:
		return make([]int64, n)
	case Float32:
		return make([]float32, n)
	case Float64:
		return make([]float64, n)
	default:
		panic("tensor: unknown data type")
	}
}

// cloneData deep-copies a flat storage slice.
func cloneData(data any) any {
	switch s := data.(type) {
	case []uint8:
		out := make([]uint8, len(s))
		copy(out, s)
		return out
	case []int32:
		out := make([]int32, len(s))
		copy(out, s)
		return out
	case []int64:
		out := make([]int64, len(s))
		copy(out, s)
		return out
	case []float32:
		out := make([]float32, len(s))
		copy(out, s)
		return out
	case []float64:
		out := make([]float64, len(s))
		copy(out, s)
		return out
	default:
		panic("tensor: unknown storage type")
	}
}
