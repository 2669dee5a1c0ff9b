package flip

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
	desc, err := r.Lookup("flip")
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

func TestFlip(t *testing.T) {
	in, err := tensor.FromInt32([]int32{
		1, 2, 3,
		4, 5, 6,
	}, 2, 3)
	require.NoError(t, err)

	t.Run("horizontal is the default", func(t *testing.T) {
		out := run(t, nil, in)
		assert.Equal(t, []int32{3, 2, 1, 6, 5, 4}, out.Data())
	})

	t.Run("vertical only", func(t *testing.T) {
		out := run(t, map[string]any{"horizontal": false, "vertical": true}, in)
		assert.Equal(t, []int32{4, 5, 6, 1, 2, 3}, out.Data())
	})

	t.Run("both axes equal 180 rotation", func(t *testing.T) {
		out := run(t, map[string]any{"horizontal": true, "vertical": true}, in)
		assert.Equal(t, []int32{6, 5, 4, 3, 2, 1}, out.Data())
	})

	t.Run("no axis copies through", func(t *testing.T) {
		out := run(t, map[string]any{"horizontal": false}, in)
		assert.True(t, out.Equal(in))
	})
}
