// Package source adapts user-supplied data feeds to the graph's pull
// protocol. A feed is a Provider yielding one round of host batches per
// call; the Adapter layers cycle policies, output-arity validation and
// default layouts on top.
package source

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/tensor"
)

// CyclePolicy governs what happens when a finite feed runs out of rounds.
type CyclePolicy string

const (
	// CycleNone ends the feed permanently; every further pull fails with
	// ErrStopIteration.
	CycleNone CyclePolicy = "no"
	// CycleQuiet wraps around to the first round without surfacing an error.
	CycleQuiet CyclePolicy = "quiet"
	// CycleRaise surfaces ErrStopIteration once per epoch, then rewinds so
	// the next pull starts the feed over.
	CycleRaise CyclePolicy = "raise"
)

// ParseCycle maps the textual policy names used in pipeline definition
// files onto CyclePolicy values.
func ParseCycle(s string) (CyclePolicy, error) {
	switch CyclePolicy(s) {
	case CycleNone, CycleQuiet, CycleRaise:
		return CyclePolicy(s), nil
	case "":
		return CycleNone, nil
	}
	return "", faults.Configf("unknown cycle policy '%s', want one of 'no', 'quiet', 'raise'", s)
}

// Provider yields one round of host batches per call and reports
// ErrStopIteration when the feed is exhausted.
type Provider interface {
	Next(ctx context.Context) ([]*tensor.Batch, error)
}

// rewindable providers can be restarted for the cycling policies.
type rewindable interface {
	Rewind()
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCycle selects the exhaustion policy. Defaults to CycleNone.
func WithCycle(p CyclePolicy) Option {
	return func(a *Adapter) { a.cycle = p }
}

// WithNumOutputs declares how many batches every round must carry.
// Defaults to 1.
func WithNumOutputs(n int) Option {
	return func(a *Adapter) { a.numOutputs = n }
}

// WithLayout stamps the layout onto pulled batches that carry none.
func WithLayout(layout string) Option {
	return func(a *Adapter) { a.layout = layout }
}

// Adapter is the concrete puller behind an external-source graph node.
// Pull is serialized, so one adapter can back exactly one node.
type Adapter struct {
	mu         sync.Mutex
	provider   Provider
	cycle      CyclePolicy
	numOutputs int
	layout     string
}

// New validates the option set against the provider's capabilities.
func New(p Provider, opts ...Option) (*Adapter, error) {
	if p == nil {
		return nil, faults.Configf("external source requires a provider")
	}
	a := &Adapter{provider: p, cycle: CycleNone, numOutputs: 1}
	for _, opt := range opts {
		opt(a)
	}
	switch a.cycle {
	case CycleNone, CycleQuiet, CycleRaise:
	default:
		return nil, faults.Configf("unknown cycle policy '%s', want one of 'no', 'quiet', 'raise'", a.cycle)
	}
	if a.cycle != CycleNone {
		if _, ok := p.(rewindable); !ok {
			return nil, faults.Configf("cycle policy '%s' requires a rewindable source", a.cycle)
		}
	}
	if a.numOutputs < 1 {
		return nil, faults.Configf("external source must declare at least 1 output, got %d", a.numOutputs)
	}
	return a, nil
}

// NumOutputs reports the declared per-round batch count.
func (a *Adapter) NumOutputs() int { return a.numOutputs }

// Layout reports the default layout stamped onto untagged batches.
func (a *Adapter) Layout() string { return a.layout }

// Pull produces the next round. Exhaustion is resolved through the cycle
// policy before arity and layout are applied.
func (a *Adapter) Pull(ctx context.Context) ([]*tensor.Batch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	outs, err := a.provider.Next(ctx)
	if errors.Is(err, faults.ErrStopIteration) {
		switch a.cycle {
		case CycleQuiet:
			a.provider.(rewindable).Rewind()
			outs, err = a.provider.Next(ctx)
		case CycleRaise:
			a.provider.(rewindable).Rewind()
			return nil, err
		default:
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	if len(outs) != a.numOutputs {
		return nil, faults.Valuef("external source produced %d output(s) per round, expected %d",
			len(outs), a.numOutputs)
	}
	if a.layout != "" {
		for _, b := range outs {
			if b.Layout() == "" {
				b.SetLayout(a.layout)
			}
		}
	}
	return outs, nil
}
