// Package executor schedules a validated operator graph: it topologically
// resolves dependencies, runs node transforms across a worker pool and an
// optional device context, and delivers one tuple of output batches per run.
// In pipelined mode a background pump overlaps the next run with delivery of
// the current one through a bounded prefetch queue.
package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/graph"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
)

// DefaultPrefetchDepth bounds the pipelined-mode queue when the caller does
// not configure one.
const DefaultPrefetchDepth = 2

// Config carries the execution-time knobs resolved by the pipeline layer.
type Config struct {
	BatchSize  int
	NumThreads int
	// Device is the accelerator ordinal, nil when the pipeline is host-only.
	Device *int
	Seed   int64
	// Pipelined overlaps successive runs through the prefetch queue.
	Pipelined bool
	// Async allows the pump to run ahead of the caller; it requires
	// Pipelined and is rejected for graphs with side-effecting operators.
	Async         bool
	PrefetchDepth int
	Logger        *slog.Logger
}

// runResult is one delivered run: the output batches in declaration order,
// or the error that aborted the run.
type runResult struct {
	outs []*tensor.Batch
	err  error
}

// Executor owns the run-time resources of one built pipeline.
type Executor struct {
	cfg     Config
	nodes   []*graph.Node
	outputs []graph.DataNode

	deps       [][]int // producer node indices per node
	dependents [][]int // consumer node indices per node
	consumers  []int   // initial consumer count per node, -1 marks outputs
	states     []*registry.NodeState

	device      tensor.Device
	stream      *tensor.Stream
	forceSerial bool
	prefetch    int
	runCount    atomic.Int64

	mu       sync.Mutex
	released bool

	// tasks feeds the fixed worker pool; nil when the executor runs
	// strictly serially.
	tasks  chan task
	poolWG sync.WaitGroup

	results chan runResult
	stop    chan struct{}
	pumpWG  sync.WaitGroup
}

// New validates the frozen graph against the configuration and allocates
// executor resources. It corresponds to the pipeline's Build step.
func New(b *graph.Builder, cfg Config) (*Executor, error) {
	outputs, frozen := b.Outputs()
	if !frozen {
		return nil, faults.TypeErrorf("pipeline outputs were never set; call SetOutputs before Build")
	}
	if cfg.BatchSize < 1 {
		return nil, faults.Configf("batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.NumThreads < 0 {
		return nil, faults.Configf("thread count must not be negative, got %d", cfg.NumThreads)
	}
	if cfg.Async && !cfg.Pipelined {
		return nil, faults.Configf("asynchronous execution requires pipelined mode")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	nodes := b.Nodes()
	e := &Executor{
		cfg:        cfg,
		nodes:      nodes,
		outputs:    outputs,
		deps:       make([][]int, len(nodes)),
		dependents: make([][]int, len(nodes)),
		consumers:  make([]int, len(nodes)),
		states:     make([]*registry.NodeState, len(nodes)),
		device:     tensor.Host(),
		prefetch:   cfg.PrefetchDepth,
	}
	if e.prefetch < 1 {
		e.prefetch = DefaultPrefetchDepth
	}

	needsDevice := false
	for i, n := range nodes {
		e.states[i] = &registry.NodeState{}
		for _, dep := range n.Deps() {
			e.deps[i] = append(e.deps[i], dep.Index())
			e.dependents[dep.Index()] = append(e.dependents[dep.Index()], i)
			e.consumers[dep.Index()]++
		}
		if n.Device.IsAccelerator() {
			needsDevice = true
		}
		if n.Desc != nil && n.Desc.Serialized {
			e.forceSerial = true
			if cfg.Pipelined || cfg.Async {
				return nil, faults.Configf(
					"operator '%s' has side effects and requires synchronous, non-pipelined execution", n.ID)
			}
		}
	}
	for _, out := range outputs {
		// Output slots are handed to the caller and never released early.
		e.consumers[out.Node().Index()] = -1
	}

	if needsDevice {
		if cfg.Device == nil {
			return nil, faults.Configf("graph contains accelerator-resident nodes but the pipeline has no device id")
		}
		e.device = tensor.Accelerator(*cfg.Device)
		e.stream = tensor.NewStream()
	}

	if cfg.NumThreads > 1 && !e.forceSerial {
		e.startPool()
	}
	if cfg.Pipelined {
		e.startPump()
	}
	return e, nil
}

// Run produces one batch of outputs per declared slot, in declaration
// order. In synchronous mode the whole graph executes inline; in pipelined
// mode the next in-order prefetched result is delivered.
func (e *Executor) Run(ctx context.Context) ([]*tensor.Batch, error) {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil, faults.Graphf("pipeline has been released")
	}
	e.mu.Unlock()

	if !e.cfg.Pipelined {
		return e.runOnce(ctx, e.runCount.Add(1)-1)
	}

	select {
	case r := <-e.results:
		if r.err != nil {
			// Discard whatever the pump prefetched past the failure and
			// bring it back up so the pipeline stays runnable.
			e.restartPump()
			return nil, r.err
		}
		return r.outs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release tears the executor down: the pump and workers are joined, the
// device stream is drained, and in-flight batches are discarded. It is
// idempotent and terminal.
func (e *Executor) Release() {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	e.released = true
	e.mu.Unlock()

	if e.cfg.Pipelined {
		e.stopPump()
	}
	e.stopPool()
	if e.stream != nil {
		e.stream.Synchronize()
	}
}
