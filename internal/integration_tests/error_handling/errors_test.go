package error_handling_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/pipeline"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/source"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/vk/gridfeed/modules"
	"github.com/vk/gridfeed/modules/callback"
)

func testRegistry() *registry.Registry {
	r := registry.New()
	modules.RegisterAll(r)
	return r
}

func newPipe(t *testing.T, cfg pipeline.Config) *pipeline.Pipeline {
	t.Helper()
	cfg.Registry = testRegistry()
	p, err := pipeline.New(cfg)
	require.NoError(t, err)
	return p
}

func singleFeed(t *testing.T, values ...int64) source.Provider {
	t.Helper()
	rounds := make([]source.Round, len(values))
	for i, v := range values {
		b, err := source.BatchOf([]int64{v})
		require.NoError(t, err)
		rounds[i] = source.Round{b}
	}
	return source.FromBatches(rounds...)
}

func TestOutputTypeMessages(t *testing.T) {
	t.Run("nested DataNode", func(t *testing.T) {
		p := newPipe(t, pipeline.Config{BatchSize: 1, NumThreads: 1})
		src, err := p.ExternalSource(singleFeed(t, 1))
		require.NoError(t, err)

		err = p.SetOutputs(src)
		var typeErr *faults.OutputTypeError
		require.ErrorAs(t, err, &typeErr)
		assert.Equal(t,
			"Illegal pipeline output type. The output 0 contains a nested `DataNode`. "+
				"Missing list/tuple expansion (*) is the likely cause.",
			err.Error())
	})

	t.Run("unsupported type", func(t *testing.T) {
		p := newPipe(t, pipeline.Config{BatchSize: 1, NumThreads: 1})
		err := p.SetOutputs(struct{}{})
		var typeErr *faults.OutputTypeError
		require.ErrorAs(t, err, &typeErr)
		assert.Equal(t,
			"Illegal output type. The output 0 is a `struct {}`. "+
				"Allowed types are ``DataNode`` and types convertible to a constant "+
				"(numerical constants, 1D lists/tuple of numbers and ND arrays).",
			err.Error())
	})
}

func TestSourceExhaustion(t *testing.T) {
	t.Run("quiet cycle wraps on the third pull", func(t *testing.T) {
		p := newPipe(t, pipeline.Config{BatchSize: 1, NumThreads: 1})
		defer p.Release()

		src, err := p.ExternalSource(singleFeed(t, 10, 20), source.WithCycle(source.CycleQuiet))
		require.NoError(t, err)
		require.NoError(t, p.SetOutputs(src[0]))
		require.NoError(t, p.Build())

		for _, want := range []int64{10, 20, 10} {
			res, err := p.Run()
			require.NoError(t, err)
			s, err := res[0].At(0)
			require.NoError(t, err)
			assert.Equal(t, []int64{want}, s.Data())
		}
	})

	t.Run("raise cycle surfaces the sentinel and restarts", func(t *testing.T) {
		p := newPipe(t, pipeline.Config{BatchSize: 1, NumThreads: 1})
		defer p.Release()

		src, err := p.ExternalSource(singleFeed(t, 10, 20), source.WithCycle(source.CycleRaise))
		require.NoError(t, err)
		require.NoError(t, p.SetOutputs(src[0]))
		require.NoError(t, p.Build())

		_, err = p.Run()
		require.NoError(t, err)
		_, err = p.Run()
		require.NoError(t, err)

		_, err = p.Run()
		require.Error(t, err)
		assert.ErrorIs(t, err, faults.ErrStopIteration)
		var execErr *faults.ExecutionError
		assert.ErrorAs(t, err, &execErr)

		res, err := p.Run()
		require.NoError(t, err)
		s, err := res[0].At(0)
		require.NoError(t, err)
		assert.Equal(t, []int64{10}, s.Data(), "the epoch restarts after the sentinel")
	})
}

func TestDeviceErrors(t *testing.T) {
	t.Run("accelerator graph requires a device id", func(t *testing.T) {
		p := newPipe(t, pipeline.Config{BatchSize: 1, NumThreads: 1})
		src, err := p.ExternalSource(singleFeed(t, 1))
		require.NoError(t, err)
		require.NoError(t, p.SetOutputs(src[0].GPU()))

		err = p.Build()
		var cfgErr *faults.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.ErrorContains(t, err, "no device id")
	})

	t.Run("host-only operator rejects accelerator inputs", func(t *testing.T) {
		p := newPipe(t, pipeline.Config{BatchSize: 1, NumThreads: 1, DeviceID: pipeline.Device(0)})
		src, err := p.ExternalSource(singleFeed(t, 1))
		require.NoError(t, err)

		noop := callback.Func(func(ctx context.Context, input *tensor.Batch) (*tensor.Batch, error) {
			return input, nil
		})
		_, err = p.Add("callback", "cb", pipeline.Args{"fn": callback.Value(noop)}, src[0].GPU())
		var devErr *faults.DeviceMismatchError
		require.ErrorAs(t, err, &devErr)
		assert.ErrorContains(t, err, "gpu:0-resident")
	})
}

func TestUnknownOperator(t *testing.T) {
	p := newPipe(t, pipeline.Config{BatchSize: 1, NumThreads: 1})
	_, err := p.Add("decode", "", nil)
	var cfgErr *faults.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorContains(t, err, "unknown operator type 'decode'")
}
