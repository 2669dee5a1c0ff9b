package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/gridfeed/internal/ctxlog"
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/hclspec"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/vk/gridfeed/modules"
)

// App loads one pipeline definition, builds it and drives the requested
// number of iterations.
type App struct {
	out    io.Writer
	cfg    *Config
	logger *slog.Logger
	reg    *registry.Registry
}

// NewApp wires an App with its own logger and an operator registry holding
// the built-in module library.
func NewApp(outW io.Writer, cfg *Config) *App {
	reg := registry.New()
	modules.RegisterAll(reg)
	return &App{
		out:    outW,
		cfg:    cfg,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		reg:    reg,
	}
}

// Logger exposes the app's configured logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Run builds the pipeline and executes it Iterations times, logging a
// per-output shape summary each round. An exhausted source ends the run
// early without error.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Info("Loading pipeline definition.", "path", a.cfg.PipelinePath)

	p, err := hclspec.LoadWith(a.cfg.PipelinePath, a.reg)
	if err != nil {
		return fmt.Errorf("failed to load pipeline from %s: %w", a.cfg.PipelinePath, err)
	}
	defer p.Release()
	a.logger.Info("Pipeline built.", "iterations", a.cfg.Iterations)

	for i := 0; i < a.cfg.Iterations; i++ {
		outs, err := p.RunCtx(ctx)
		if err != nil {
			if errors.Is(err, faults.ErrStopIteration) {
				a.logger.Info("Source exhausted, stopping early.", "iteration", i)
				return nil
			}
			return fmt.Errorf("iteration %d failed: %w", i, err)
		}
		a.logger.Info("Iteration complete.", "iteration", i, "outputs", summarize(outs))
	}
	a.logger.Info("All iterations complete.")
	return nil
}

// summarize renders one log-friendly line per output batch.
func summarize(outs []*tensor.Batch) []string {
	s := make([]string, len(outs))
	for i, b := range outs {
		shape := "[]"
		if b.Len() > 0 {
			if first, err := b.At(0); err == nil {
				shape = fmt.Sprintf("%v", first.Shape())
			}
		}
		s[i] = fmt.Sprintf("batch(%d samples, shape %s, %s)", b.Len(), shape, b.Device())
	}
	return s
}
