// Package pipeline is the caller-facing surface of the engine. A Pipeline
// owns one graph builder and, once built, one executor; it moves through
// the states unbuilt, built and released, and produces one tuple of output
// batches per Run call.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/vk/gridfeed/internal/ctxlog"
	"github.com/vk/gridfeed/internal/executor"
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/graph"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/source"
	"github.com/vk/gridfeed/internal/tensor"
)

// Args carries raw operator arguments; they are validated against the
// operator's parameter schema when the node is added.
type Args = map[string]any

// Config fixes a pipeline's execution parameters at construction.
type Config struct {
	BatchSize  int
	NumThreads int
	// DeviceID selects the accelerator ordinal; nil keeps the pipeline
	// host-only.
	DeviceID *int
	Seed     int64
	// ExecPipelined overlaps successive runs through a prefetch queue.
	ExecPipelined bool
	// ExecAsync lets the prefetcher run ahead of the caller; requires
	// ExecPipelined.
	ExecAsync bool
	// PrefetchDepth bounds the prefetch queue; 0 means the default depth.
	PrefetchDepth int
	// Registry resolves operator types; nil falls back to the process-wide
	// registry.
	Registry *registry.Registry
	Logger   *slog.Logger
}

// Device is a convenience for Config.DeviceID literals.
func Device(n int) *int { return &n }

// Expand widens a DataNode group for SetOutputs, which takes individually
// declared outputs rather than groups.
func Expand(group []graph.DataNode) []any {
	out := make([]any, len(group))
	for i, dn := range group {
		out[i] = dn
	}
	return out
}

type state int

const (
	stateUnbuilt state = iota
	stateBuilt
	stateReleased
)

// Pipeline assembles and runs one operator graph.
type Pipeline struct {
	cfg     Config
	builder *graph.Builder
	exec    *executor.Executor
	state   state
}

// New validates the configuration and creates an empty, unbuilt pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.BatchSize < 1 {
		return nil, faults.Configf("batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.NumThreads < 0 {
		return nil, faults.Configf("thread count must not be negative, got %d", cfg.NumThreads)
	}
	if cfg.ExecAsync && !cfg.ExecPipelined {
		return nil, faults.Configf("asynchronous execution requires pipelined mode")
	}
	if cfg.PrefetchDepth < 0 {
		return nil, faults.Configf("prefetch depth must not be negative, got %d", cfg.PrefetchDepth)
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.Global()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, builder: graph.New(cfg.Registry)}, nil
}

// Add appends one operator node (or one replica per input set) and returns
// the produced DataNodes in set-major order. An empty name is
// auto-generated.
func (p *Pipeline) Add(opType, name string, args Args, inputs ...any) ([]graph.DataNode, error) {
	if err := p.mutable("add an operator"); err != nil {
		return nil, err
	}
	return p.builder.Add(opType, name, args, inputs...)
}

// ExternalSource appends a source node fed by the given provider and
// returns one DataNode per declared output. Outputs are host-resident;
// promote with GPU() on the returned references.
func (p *Pipeline) ExternalSource(prov source.Provider, opts ...source.Option) ([]graph.DataNode, error) {
	if err := p.mutable("add an external source"); err != nil {
		return nil, err
	}
	adapter, err := source.New(prov, opts...)
	if err != nil {
		return nil, err
	}
	return p.builder.AddSource("", adapter, adapter.NumOutputs(), adapter.Layout())
}

// SetOutputs declares the pipeline's outputs and freezes the graph.
// DataNodes, scalars and numeric arrays are legal; anything else fails
// with the output-type errors of the graph layer.
func (p *Pipeline) SetOutputs(outs ...any) error {
	if err := p.mutable("set outputs"); err != nil {
		return err
	}
	return p.builder.SetOutputs(outs...)
}

// BeginOrdered opens a session during which appended side-effecting nodes
// keep their declaration order at run time. Close it with End.
func (p *Pipeline) BeginOrdered() *graph.Session {
	return p.builder.BeginOrdered()
}

// Build validates the frozen graph and allocates run-time resources. The
// pipeline transitions to built; its structure can no longer change.
func (p *Pipeline) Build() error {
	if err := p.mutable("build"); err != nil {
		return err
	}
	exec, err := executor.New(p.builder, executor.Config{
		BatchSize:     p.cfg.BatchSize,
		NumThreads:    p.cfg.NumThreads,
		Device:        p.cfg.DeviceID,
		Seed:          p.cfg.Seed,
		Pipelined:     p.cfg.ExecPipelined,
		Async:         p.cfg.ExecAsync,
		PrefetchDepth: p.cfg.PrefetchDepth,
		Logger:        p.cfg.Logger,
	})
	if err != nil {
		return err
	}
	p.exec = exec
	p.state = stateBuilt
	return nil
}

// Run produces one batch per declared output, in declaration order.
func (p *Pipeline) Run() ([]*tensor.Batch, error) {
	return p.RunCtx(context.Background())
}

// RunCtx is Run with caller-controlled cancellation.
func (p *Pipeline) RunCtx(ctx context.Context) ([]*tensor.Batch, error) {
	switch p.state {
	case stateUnbuilt:
		return nil, faults.Graphf("pipeline is not built; call Build before Run")
	case stateReleased:
		return nil, faults.Graphf("pipeline has been released")
	}
	return p.exec.Run(ctxlog.WithLogger(ctx, p.cfg.Logger))
}

// Release frees the pipeline's run-time resources. It is idempotent and
// terminal; a released pipeline cannot be rebuilt.
func (p *Pipeline) Release() {
	if p.state == stateBuilt {
		p.exec.Release()
	}
	p.state = stateReleased
}

// mutable guards the structure-changing calls.
func (p *Pipeline) mutable(action string) error {
	switch p.state {
	case stateBuilt:
		return faults.Graphf("cannot %s: pipeline is already built", action)
	case stateReleased:
		return faults.Graphf("cannot %s: pipeline has been released", action)
	}
	return nil
}
