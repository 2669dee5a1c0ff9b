package resize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
)

func run(t *testing.T, args map[string]any, in *tensor.Sample) *tensor.Sample {
	t.Helper()
	r := registry.New()
	(&Module{}).Register(r)
	desc, err := r.Lookup("resize")
	require.NoError(t, err)
	validated, err := desc.ValidateArgs(args)
	require.NoError(t, err)

	opctx := &registry.OpContext{Ctx: context.Background(), BatchSize: 1}
	outs, err := desc.Transform(opctx, []*tensor.Batch{tensor.NewBatch(in)}, validated)
	require.NoError(t, err)
	s, err := outs[0].At(0)
	require.NoError(t, err)
	return s
}

func TestResize(t *testing.T) {
	t.Run("downscale by two picks every other pixel", func(t *testing.T) {
		in, err := tensor.FromUint8([]uint8{
			1, 2, 3, 4,
			5, 6, 7, 8,
			9, 10, 11, 12,
			13, 14, 15, 16,
		}, 4, 4)
		require.NoError(t, err)

		out := run(t, map[string]any{"resize_x": 2, "resize_y": 2}, in)
		assert.Equal(t, []int{2, 2}, out.Shape())
		assert.Equal(t, []uint8{6, 8, 14, 16}, out.Data())
	})

	t.Run("upscale duplicates pixels", func(t *testing.T) {
		in, err := tensor.FromUint8([]uint8{1, 2, 3, 4}, 2, 2)
		require.NoError(t, err)

		out := run(t, map[string]any{"resize_x": 4, "resize_y": 2}, in)
		assert.Equal(t, []int{2, 4}, out.Shape())
		assert.Equal(t, []uint8{1, 1, 2, 2, 3, 3, 4, 4}, out.Data())
	})

	t.Run("identity extents copy through", func(t *testing.T) {
		in, err := tensor.FromUint8([]uint8{1, 2, 3, 4, 5, 6}, 2, 3)
		require.NoError(t, err)

		out := run(t, map[string]any{"resize_x": 3, "resize_y": 2}, in)
		assert.True(t, out.Equal(in))
	})

	t.Run("channel axis is preserved", func(t *testing.T) {
		in, err := tensor.FromUint8([]uint8{
			1, 10, 2, 20,
			3, 30, 4, 40,
		}, 2, 2, 2)
		require.NoError(t, err)

		out := run(t, map[string]any{"resize_x": 1, "resize_y": 1}, in)
		assert.Equal(t, []int{1, 1, 2}, out.Shape())
		assert.Equal(t, []uint8{4, 40}, out.Data())
	})

	t.Run("extents must be positive", func(t *testing.T) {
		r := registry.New()
		(&Module{}).Register(r)
		desc, err := r.Lookup("resize")
		require.NoError(t, err)
		_, err = desc.ValidateArgs(map[string]any{"resize_x": 0, "resize_y": 2})
		assert.ErrorContains(t, err, "resize_x must be at least 1")
	})
}
