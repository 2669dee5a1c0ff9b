package executor

import (
	"context"

	"github.com/vk/gridfeed/internal/ctxlog"
)

// pumpCapacity sizes the result queue. Asynchronous pipelines run up to the
// configured prefetch depth ahead of the caller; plain pipelined mode only
// overlaps one run with delivery of the previous one.
func (e *Executor) pumpCapacity() int {
	if e.cfg.Async {
		return e.prefetch
	}
	return 1
}

// startPump launches the background goroutine that keeps the result queue
// full. Each call allocates a fresh queue and stop channel so the pump can be
// brought back up after an error was delivered.
func (e *Executor) startPump() {
	e.results = make(chan runResult, e.pumpCapacity())
	e.stop = make(chan struct{})
	e.pumpWG.Add(1)
	go e.pump(e.stop, e.results)
}

// pump produces runs in order until stopped. After delivering an error it
// exits; the next Run call restarts it.
func (e *Executor) pump(stop chan struct{}, results chan runResult) {
	defer e.pumpWG.Done()
	ctx := ctxlog.WithLogger(context.Background(), e.cfg.Logger.With("component", "prefetch"))

	for {
		select {
		case <-stop:
			return
		default:
		}

		outs, err := e.runOnce(ctx, e.runCount.Add(1)-1)
		select {
		case results <- runResult{outs: outs, err: err}:
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// stopPump signals the pump and drains the queue until the goroutine joins.
func (e *Executor) stopPump() {
	close(e.stop)
	done := make(chan struct{})
	go func() {
		e.pumpWG.Wait()
		close(done)
	}()
	for {
		select {
		case <-e.results:
		case <-done:
			return
		}
	}
}

// restartPump discards anything prefetched past a delivered failure and
// brings the pump back up so the pipeline stays runnable.
func (e *Executor) restartPump() {
	e.pumpWG.Wait()
	for {
		select {
		case <-e.results:
		default:
			e.startPump()
			return
		}
	}
}
