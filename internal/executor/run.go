package executor

import (
	"context"
	"math/rand"

	"github.com/vk/gridfeed/internal/ctxlog"
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/graph"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
)

// runOnce drives one full pass over the graph and gathers the declared
// output batches.
func (e *Executor) runOnce(ctx context.Context, runIdx int64) ([]*tensor.Batch, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting pipeline run.", "run", runIdx, "nodes", len(e.nodes))

	slots := make([][]*tensor.Batch, len(e.nodes))
	var err error
	if e.cfg.NumThreads > 1 && !e.forceSerial {
		err = e.runParallel(ctx, slots, runIdx)
	} else {
		err = e.runSerial(ctx, slots, runIdx)
	}
	if err != nil {
		logger.Debug("Pipeline run failed.", "run", runIdx, "error", err)
		return nil, err
	}

	outs := make([]*tensor.Batch, len(e.outputs))
	for i, out := range e.outputs {
		outs[i] = slots[out.Node().Index()][out.Output()]
	}
	logger.Debug("Pipeline run complete.", "run", runIdx)
	return outs, nil
}

// runSerial executes every node on the calling goroutine in topological
// order. It is the strictly deterministic path used for zero or one worker
// threads and for graphs with side-effecting operators, which must only
// ever run from the driving goroutine.
func (e *Executor) runSerial(ctx context.Context, slots [][]*tensor.Batch, runIdx int64) error {
	pending := make([]int, len(e.nodes))
	copy(pending, e.consumers)
	for i, n := range e.nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.execNode(ctx, n, slots, runIdx); err != nil {
			return faults.Execution(n.ID, err)
		}
		for _, depIdx := range e.deps[i] {
			if pending[depIdx] > 0 {
				pending[depIdx]--
				if pending[depIdx] == 0 {
					// Last consumer finished; drop the batch now.
					slots[depIdx] = nil
				}
			}
		}
	}
	return nil
}

// execNode materializes one node's output batches into its slot.
func (e *Executor) execNode(ctx context.Context, n *graph.Node, slots [][]*tensor.Batch, runIdx int64) error {
	idx := n.Index()
	inputs := make([]*tensor.Batch, len(n.Inputs))
	for i, in := range n.Inputs {
		inputs[i] = slots[in.Node().Index()][in.Output()]
	}

	var outs []*tensor.Batch
	var err error
	switch n.Kind {
	case graph.KindSource:
		outs, err = n.Source.Pull(ctx)
		if err != nil {
			return err
		}
		if len(outs) != n.NumOutputs {
			return faults.Valuef("external source '%s' produced %d output(s) per round, expected %d",
				n.ID, len(outs), n.NumOutputs)
		}
		if n.Layout != "" {
			for _, b := range outs {
				if b.Layout() == "" {
					b.SetLayout(n.Layout)
				}
			}
		}
	case graph.KindConstant:
		samples := make([]*tensor.Sample, e.cfg.BatchSize)
		for i := range samples {
			samples[i] = n.Const.Clone()
		}
		outs = []*tensor.Batch{tensor.NewBatch(samples...)}
	case graph.KindTransfer:
		outs = []*tensor.Batch{inputs[0].CopyToDevice(e.placement(n), e.stream)}
	case graph.KindOperator:
		opctx := &registry.OpContext{
			Ctx:       ctx,
			Logger:    ctxlog.FromContext(ctx).With("node", n.ID),
			RNG:       rand.New(rand.NewSource(e.seedFor(idx, runIdx))),
			BatchSize: e.cfg.BatchSize,
			Device:    e.placement(n),
			Stream:    e.stream,
			State:     e.states[idx],
		}
		run := func() { outs, err = n.Desc.Transform(opctx, inputs, n.Args) }
		if n.Device.IsAccelerator() && e.stream != nil {
			// Device-bound work is serialized on the stream and joined
			// before the output is visible to any host-side consumer.
			e.stream.Do(run)
		} else {
			run()
		}
		if err != nil {
			return err
		}
		if len(outs) != n.NumOutputs {
			return faults.Valuef("operator '%s' produced %d output(s), expected %d", n.ID, len(outs), n.NumOutputs)
		}
		for _, b := range outs {
			b.WithPlacement(e.placement(n), e.streamFor(n))
		}
	}

	slots[idx] = outs
	return nil
}

// placement resolves a node's declared device against the configured
// accelerator ordinal.
func (e *Executor) placement(n *graph.Node) tensor.Device {
	if n.Device.IsAccelerator() {
		return e.device
	}
	return tensor.Host()
}

func (e *Executor) streamFor(n *graph.Node) *tensor.Stream {
	if n.Device.IsAccelerator() {
		return e.stream
	}
	return nil
}

// seedFor derives the deterministic per-node, per-run RNG seed. Two
// pipelines with the same seed and graph shape draw identical streams.
func (e *Executor) seedFor(nodeIdx int, runIdx int64) int64 {
	return e.cfg.Seed + int64(nodeIdx)*1000003 + runIdx*7919
}
