package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFlat(t *testing.T) {
	t.Run("shape must match storage", func(t *testing.T) {
		_, err := FromUint8([]uint8{1, 2, 3}, 2, 2)
		assert.ErrorContains(t, err, "requires 4 elements")
	})

	t.Run("valid sample", func(t *testing.T) {
		s, err := FromUint8([]uint8{1, 2, 3, 4, 5, 6}, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, Uint8, s.DType())
		assert.Equal(t, []int{2, 3}, s.Shape())
		assert.Equal(t, 2, s.Rank())
		assert.Equal(t, 6, s.NumElements())
	})

	t.Run("data is copied", func(t *testing.T) {
		raw := []int64{1, 2}
		s, err := FromInt64(raw, 2)
		require.NoError(t, err)
		raw[0] = 99
		assert.Equal(t, []int64{1, 2}, s.Data())
	})
}

func TestFromAny(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		s, err := FromAny(90)
		require.NoError(t, err)
		assert.Equal(t, Int64, s.DType())
		assert.Empty(t, s.Shape())
		assert.Equal(t, []int64{90}, s.Data())
	})

	t.Run("1d slice", func(t *testing.T) {
		s, err := FromAny([]float64{1.5, 2.5})
		require.NoError(t, err)
		assert.Equal(t, Float64, s.DType())
		assert.Equal(t, []int{2}, s.Shape())
		assert.Equal(t, []float64{1.5, 2.5}, s.Data())
	})

	t.Run("nested nd slice", func(t *testing.T) {
		s, err := FromAny([][]uint8{{1, 2, 3}, {4, 5, 6}})
		require.NoError(t, err)
		assert.Equal(t, Uint8, s.DType())
		assert.Equal(t, []int{2, 3}, s.Shape())
		assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6}, s.Data())
	})

	t.Run("ragged nesting is rejected", func(t *testing.T) {
		_, err := FromAny([][]int{{1, 2}, {3}})
		assert.ErrorContains(t, err, "ragged nested value")
	})

	t.Run("unsupported type is rejected", func(t *testing.T) {
		_, err := FromAny("test")
		assert.ErrorContains(t, err, "cannot convert")
	})

	t.Run("sample passes through as a deep copy", func(t *testing.T) {
		orig, err := FromUint8([]uint8{1, 2}, 2)
		require.NoError(t, err)
		got, err := FromAny(orig)
		require.NoError(t, err)
		assert.True(t, got.Equal(orig))
		got.Data().([]uint8)[0] = 7
		assert.Equal(t, []uint8{1, 2}, orig.Data())
	})
}

func TestTake(t *testing.T) {
	s, err := FromUint8([]uint8{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	t.Run("transpose via permutation", func(t *testing.T) {
		out, err := s.Take([]int{0, 2, 1, 3}, []int{2, 2})
		require.NoError(t, err)
		assert.Equal(t, []uint8{1, 3, 2, 4}, out.Data())
	})

	t.Run("index count must match shape", func(t *testing.T) {
		_, err := s.Take([]int{0, 1}, []int{2, 2})
		assert.ErrorContains(t, err, "requires 4 indices")
	})

	t.Run("out of range index", func(t *testing.T) {
		_, err := s.Take([]int{0, 1, 2, 9}, []int{2, 2})
		assert.ErrorContains(t, err, "out of range")
	})
}

func TestApply(t *testing.T) {
	s, err := FromInt64([]int64{1, 2, 3}, 3)
	require.NoError(t, err)
	out := s.Apply(func(v float64) float64 { return v + 1 })
	assert.Equal(t, []int64{2, 3, 4}, out.Data())
	assert.Equal(t, []int64{1, 2, 3}, s.Data(), "apply must not mutate the source")
}

func TestSampleEqual(t *testing.T) {
	a, _ := FromUint8([]uint8{1, 2}, 2)
	b, _ := FromUint8([]uint8{1, 2}, 2)
	c, _ := FromUint8([]uint8{1, 2}, 1, 2)
	d, _ := FromInt32([]int32{1, 2}, 2)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "same data, different shape")
	assert.False(t, a.Equal(d), "same data, different dtype")
}
