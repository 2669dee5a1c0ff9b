package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/graph"
	"github.com/vk/gridfeed/internal/tensor"
)

// task is one node ready to execute, bound to the run it belongs to.
type task struct {
	n  *graph.Node
	rs *runState
}

// runState is the per-run scheduling scratch shared by the pool: dependency
// counters, consumer counters for early batch release, and the first-failure
// latch. Workers outlive it; a new one is allocated per run.
type runState struct {
	ctx    context.Context
	cancel context.CancelFunc
	slots  [][]*tensor.Batch
	slotMu sync.Mutex
	runIdx int64

	depCounts []atomic.Int32
	pending   []atomic.Int32
	wg        sync.WaitGroup

	errOnce sync.Once
	err     error
}

// failWith records the first failure and cancels the rest of the run.
func (rs *runState) failWith(err error) {
	rs.errOnce.Do(func() {
		rs.err = err
		rs.cancel()
	})
}

// startPool brings up the fixed worker pool. Workers live for the executor's
// whole lifetime and are joined by Release; each run feeds them tasks through
// the shared queue. The queue is sized to the node count so a run can never
// block a worker on its own submissions.
func (e *Executor) startPool() {
	e.tasks = make(chan task, len(e.nodes))
	e.poolWG.Add(e.cfg.NumThreads)
	for w := 0; w < e.cfg.NumThreads; w++ {
		go e.worker(w)
	}
}

// stopPool closes the queue and joins the workers. Callers must guarantee no
// run is in flight.
func (e *Executor) stopPool() {
	if e.tasks == nil {
		return
	}
	close(e.tasks)
	e.poolWG.Wait()
}

// runParallel executes one run across the pool. Nodes whose dependencies are
// satisfied are fed through the task queue; each edge is enforced by a
// per-node dependency counter decremented as producers finish. The first
// failure cancels the run and remaining nodes drain without executing.
func (e *Executor) runParallel(ctx context.Context, slots [][]*tensor.Batch, runIdx int64) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rs := &runState{
		ctx:       runCtx,
		cancel:    cancel,
		slots:     slots,
		runIdx:    runIdx,
		depCounts: make([]atomic.Int32, len(e.nodes)),
		pending:   make([]atomic.Int32, len(e.nodes)),
	}
	for i := range e.nodes {
		rs.depCounts[i].Store(int32(len(e.deps[i])))
		rs.pending[i].Store(int32(e.consumers[i]))
	}

	rs.wg.Add(len(e.nodes))
	for i, n := range e.nodes {
		if len(e.deps[i]) == 0 {
			e.tasks <- task{n: n, rs: rs}
		}
	}

	rs.wg.Wait()
	return rs.err
}

// worker is the processing loop for a single pool member.
func (e *Executor) worker(workerID int) {
	defer e.poolWG.Done()
	logger := e.cfg.Logger.With("workerID", workerID)
	logger.Debug("Worker started.")
	for t := range e.tasks {
		e.process(t)
	}
	logger.Debug("Worker finished.")
}

// process executes one task and updates the run's readiness bookkeeping.
func (e *Executor) process(t task) {
	rs := t.rs
	idx := t.n.Index()
	if rs.ctx.Err() == nil {
		if err := e.execNode(rs.ctx, t.n, rs.slots, rs.runIdx); err != nil {
			rs.failWith(faults.Execution(t.n.ID, err))
		}
	}

	// Even after a failure the readiness bookkeeping must complete, so every
	// node passes through the queue exactly once and the wait group drains.
	for _, depIdx := range e.deps[idx] {
		if e.consumers[depIdx] > 0 && rs.pending[depIdx].Add(-1) == 0 {
			rs.slotMu.Lock()
			rs.slots[depIdx] = nil
			rs.slotMu.Unlock()
		}
	}
	for _, depIdx := range e.dependents[idx] {
		if rs.depCounts[depIdx].Add(-1) == 0 {
			e.tasks <- task{n: e.nodes[depIdx], rs: rs}
		}
	}
	rs.wg.Done()
}
