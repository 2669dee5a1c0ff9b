package source

import (
	"context"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/tensor"
)

// Round is the unit of exchange: one batch per declared output slot.
type Round []*tensor.Batch

// BatchOf coerces raw Go values into a host batch, one sample per value.
// Scalars, 1-D numeric slices and nested N-D slices are accepted.
func BatchOf(values ...any) (*tensor.Batch, error) {
	samples := make([]*tensor.Sample, len(values))
	for i, v := range values {
		s, err := tensor.FromAny(v)
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	return tensor.NewBatch(samples...), nil
}

// listProvider replays a fixed slice of rounds. Pulled batches are cloned
// so downstream mutation cannot corrupt later epochs.
type listProvider struct {
	rounds []Round
	cursor int
}

// FromBatches builds a rewindable feed over a fixed list of rounds.
func FromBatches(rounds ...Round) Provider {
	return &listProvider{rounds: rounds}
}

func (l *listProvider) Next(ctx context.Context) ([]*tensor.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.cursor >= len(l.rounds) {
		return nil, faults.ErrStopIteration
	}
	round := l.rounds[l.cursor]
	l.cursor++
	outs := make([]*tensor.Batch, len(round))
	for i, b := range round {
		outs[i] = b.Clone()
	}
	return outs, nil
}

func (l *listProvider) Rewind() { l.cursor = 0 }

// callableProvider defers to a user function each round.
type callableProvider struct {
	fn func(ctx context.Context) (Round, error)
}

// Callable builds a feed around a function invoked once per round. The
// function reports exhaustion by returning ErrStopIteration; cycling is
// the function's own concern, so the adapter rejects cycle policies on it.
func Callable(fn func(ctx context.Context) (Round, error)) Provider {
	return &callableProvider{fn: fn}
}

func (c *callableProvider) Next(ctx context.Context) ([]*tensor.Batch, error) {
	round, err := c.fn(ctx)
	if err != nil {
		return nil, err
	}
	return round, nil
}

// channelProvider drains a channel of rounds, ending when it closes.
type channelProvider struct {
	ch <-chan Round
}

// FromChannel builds a feed over a channel. A closed channel ends the
// feed with ErrStopIteration; cycling does not apply.
func FromChannel(ch <-chan Round) Provider {
	return &channelProvider{ch: ch}
}

func (c *channelProvider) Next(ctx context.Context) ([]*tensor.Batch, error) {
	select {
	case round, ok := <-c.ch:
		if !ok {
			return nil, faults.ErrStopIteration
		}
		return round, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
