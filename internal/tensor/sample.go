package tensor

import (
	"fmt"
	"reflect"

	"github.com/vk/gridfeed/internal/faults"
)

// Sample is one N-dimensional array: a flat typed storage slice, a shape,
// and an optional layout string describing axis semantics (e.g. "HWC").
type Sample struct {
	dtype  DType
	shape  []int
	layout string
	data   any
}

// newSample wraps pre-validated storage. The slice is owned by the sample.
func newSample(dt DType, data any, shape []int, layout string) *Sample {
	return &Sample{dtype: dt, shape: append([]int(nil), shape...), layout: layout, data: data}
}

// FromUint8 builds a sample from a flat uint8 slice. The data is copied.
func FromUint8(data []uint8, shape ...int) (*Sample, error) {
	return fromFlat(Uint8, append([]uint8(nil), data...), len(data), shape)
}

// FromInt32 builds a sample from a flat int32 slice. The data is copied.
func FromInt32(data []int32, shape ...int) (*Sample, error) {
	return fromFlat(Int32, append([]int32(nil), data...), len(data), shape)
}

// FromInt64 builds a sample from a flat int64 slice. The data is copied.
func FromInt64(data []int64, shape ...int) (*Sample, error) {
	return fromFlat(Int64, append([]int64(nil), data...), len(data), shape)
}

// FromFloat32 builds a sample from a flat float32 slice. The data is copied.
func FromFloat32(data []float32, shape ...int) (*Sample, error) {
	return fromFlat(Float32, append([]float32(nil), data...), len(data), shape)
}

// FromFloat64 builds a sample from a flat float64 slice. The data is copied.
func FromFloat64(data []float64, shape ...int) (*Sample, error) {
	return fromFlat(Float64, append([]float64(nil), data...), len(data), shape)
}

func fromFlat(dt DType, data any, n int, shape []int) (*Sample, error) {
	if want := numElements(shape); want != n {
		return nil, faults.ShapeMismatchf("shape %v requires %d elements, storage has %d", shape, want, n)
	}
	return newSample(dt, data, shape, ""), nil
}

// DType returns the element type.
func (s *Sample) DType() DType { return s.dtype }

// Shape returns a copy of the per-axis extents.
func (s *Sample) Shape() []int { return append([]int(nil), s.shape...) }

// Rank returns the number of axes.
func (s *Sample) Rank() int { return len(s.shape) }

// Layout returns the axis-semantics string, or "" if none was set.
func (s *Sample) Layout() string { return s.layout }

// SetLayout tags the sample with an axis-semantics string.
func (s *Sample) SetLayout(layout string) { s.layout = layout }

// NumElements returns the total element count.
func (s *Sample) NumElements() int { return numElements(s.shape) }

// Data returns the flat storage slice ([]uint8, []int32, []int64, []float32
// or []float64). Callers must treat it as read-only once the sample has been
// handed to a consumer.
func (s *Sample) Data() any { return s.data }

// Clone returns a deep copy of the sample.
func (s *Sample) Clone() *Sample {
	return newSample(s.dtype, cloneData(s.data), s.shape, s.layout)
}

// Equal reports whether two samples have the same dtype, shape and contents.
// Layout is metadata and does not participate.
func (s *Sample) Equal(o *Sample) bool {
	if s.dtype != o.dtype || len(s.shape) != len(o.shape) {
		return false
	}
	for i := range s.shape {
		if s.shape[i] != o.shape[i] {
			return false
		}
	}
	return reflect.DeepEqual(s.data, o.data)
}

// Take gathers elements of the sample by flat index, producing a sample of
// the given shape with the same element type. It is the primitive every
// spatial permutation operator (rotate, flip, transpose) is built on.
func (s *Sample) Take(indices []int, shape []int) (*Sample, error) {
	if want := numElements(shape); want != len(indices) {
		return nil, faults.ShapeMismatchf("shape %v requires %d indices, got %d", shape, want, len(indices))
	}
	n := s.NumElements()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("take index %d out of range [0, %d)", idx, n)
		}
	}
	out := alloc(s.dtype, len(indices))
	switch src := s.data.(type) {
	case []uint8:
		dst := out.([]uint8)
		for i, idx := range indices {
			dst[i] = src[idx]
		}
	case []int32:
		dst := out.([]int32)
		for i, idx := range indices {
			dst[i] = src[idx]
		}
	case []int64:
		dst := out.([]int64)
		for i, idx := range indices {
			dst[i] = src[idx]
		}
	case []float32:
		dst := out.([]float32)
		for i, idx := range indices {
			dst[i] = src[idx]
		}
	case []float64:
		dst := out.([]float64)
		for i, idx := range indices {
			dst[i] = src[idx]
		}
	}
	return newSample(s.dtype, out, shape, s.layout), nil
}

// Apply maps every element through f, keeping shape and element type. The
// result is truncated back into the sample's dtype, so integer samples stay
// integer.
func (s *Sample) Apply(f func(float64) float64) *Sample {
	out := alloc(s.dtype, s.NumElements())
	switch src := s.data.(type) {
	case []uint8:
		dst := out.([]uint8)
		for i, v := range src {
			dst[i] = uint8(int64(f(float64(v))))
		}
	case []int32:
		dst := out.([]int32)
		for i, v := range src {
			dst[i] = int32(f(float64(v)))
		}
	case []int64:
		dst := out.([]int64)
		for i, v := range src {
			dst[i] = int64(f(float64(v)))
		}
	case []float32:
		dst := out.([]float32)
		for i, v := range src {
			dst[i] = float32(f(float64(v)))
		}
	case []float64:
		dst := out.([]float64)
		for i, v := range src {
			dst[i] = f(v)
		}
	}
	return newSample(s.dtype, out, s.shape, s.layout)
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// FromAny eagerly coerces a host value into a Sample: a *Sample passes
// through as a deep copy, numeric scalars become rank-0 samples, flat
// numeric slices become 1-D samples, and nested slices become N-D samples.
// The coercion happens once, at call time.
func FromAny(v any) (*Sample, error) {
	if s, ok := v.(*Sample); ok {
		return s.Clone(), nil
	}
	rv := reflect.ValueOf(v)
	shape, leaf, err := probeShape(rv)
	if err != nil {
		return nil, err
	}
	dt, err := dtypeForKind(leaf)
	if err != nil {
		return nil, err
	}
	out := alloc(dt, numElements(shape))
	idx := 0
	var walk func(x reflect.Value, depth int) error
	walk = func(x reflect.Value, depth int) error {
		if depth < len(shape) {
			if x.Len() != shape[depth] {
				return faults.ShapeMismatchf("ragged nested value: axis %d has extents %d and %d", depth, shape[depth], x.Len())
			}
			for i := 0; i < x.Len(); i++ {
				if err := walk(x.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		storeElement(out, idx, x)
		idx++
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, err
	}
	return newSample(dt, out, shape, ""), nil
}

// probeShape walks the first element of every nesting level to determine the
// shape and the leaf element kind.
func probeShape(rv reflect.Value) ([]int, reflect.Kind, error) {
	var shape []int
	for rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return nil, reflect.Invalid, faults.Valuef("cannot convert an empty sequence to a constant sample")
		}
		shape = append(shape, rv.Len())
		rv = rv.Index(0)
	}
	if rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return shape, rv.Kind(), nil
}

func dtypeForKind(k reflect.Kind) (DType, error) {
	switch k {
	case reflect.Uint8:
		return Uint8, nil
	case reflect.Int32:
		return Int32, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int64:
		return Int64, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	default:
		return 0, faults.Valuef("cannot convert value of kind %s to a constant sample", k)
	}
}

func storeElement(out any, idx int, x reflect.Value) {
	if x.Kind() == reflect.Interface {
		x = x.Elem()
	}
	switch dst := out.(type) {
	case []uint8:
		dst[idx] = uint8(intOf(x))
	case []int32:
		dst[idx] = int32(intOf(x))
	case []int64:
		dst[idx] = intOf(x)
	case []float32:
		dst[idx] = float32(floatOf(x))
	case []float64:
		dst[idx] = floatOf(x)
	}
}

func intOf(x reflect.Value) int64 {
	switch x.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(x.Uint())
	case reflect.Float32, reflect.Float64:
		return int64(x.Float())
	default:
		return x.Int()
	}
}

func floatOf(x reflect.Value) float64 {
	switch x.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(x.Uint())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(x.Int())
	default:
		return x.Float()
	}
}
