package ordered_execution_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// addOne returns a callback incrementing every int64 element and recording
// its invocation in calls.
func addOne(calls *[]string, name string) callback.Func {
	return func(ctx context.Context, input *tensor.Batch) (*tensor.Batch, error) {
		*calls = append(*calls, name)
		out := input.Clone()
		for _, s := range out.Samples() {
			data := s.Data().([]int64)
			for i := range data {
				data[i]++
			}
		}
		return out, nil
	}
}

func TestOrderedCallbacks(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{BatchSize: 1, NumThreads: 4, Registry: testRegistry()})
	require.NoError(t, err)
	defer p.Release()

	s, err := tensor.FromInt64([]int64{1, 2, 3}, 3)
	require.NoError(t, err)
	feed := source.FromBatches(source.Round{tensor.NewBatch(s)})

	var calls []string
	sess := p.BeginOrdered()
	src, err := p.ExternalSource(feed, source.WithCycle(source.CycleQuiet))
	require.NoError(t, err)
	first, err := p.Add("callback", "inc1", pipeline.Args{"fn": callback.Value(addOne(&calls, "inc1"))}, src[0])
	require.NoError(t, err)
	second, err := p.Add("callback", "inc2", pipeline.Args{"fn": callback.Value(addOne(&calls, "inc2"))}, first[0])
	require.NoError(t, err)
	sess.End()

	require.NoError(t, p.SetOutputs(second[0]))
	require.NoError(t, p.Build())

	for run := 0; run < 2; run++ {
		res, err := p.Run()
		require.NoError(t, err)
		sample, err := res[0].At(0)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 4, 5}, sample.Data())
	}

	// Side effects happened in declaration order, once per run, despite the
	// multi-threaded configuration.
	assert.Equal(t, []string{"inc1", "inc2", "inc1", "inc2"}, calls)
}

func TestSideEffectsRejectPipelinedMode(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{
		BatchSize: 1, NumThreads: 1, ExecPipelined: true, Registry: testRegistry(),
	})
	require.NoError(t, err)

	s, err := tensor.FromInt64([]int64{1}, 1)
	require.NoError(t, err)
	src, err := p.ExternalSource(source.FromBatches(source.Round{tensor.NewBatch(s)}),
		source.WithCycle(source.CycleQuiet))
	require.NoError(t, err)

	noop := callback.Func(func(ctx context.Context, input *tensor.Batch) (*tensor.Batch, error) {
		return input, nil
	})
	out, err := p.Add("callback", "cb", pipeline.Args{"fn": callback.Value(noop)}, src[0])
	require.NoError(t, err)
	require.NoError(t, p.SetOutputs(out[0]))

	err = p.Build()
	assert.ErrorContains(t, err, "requires synchronous, non-pipelined execution")
}
