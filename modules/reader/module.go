// Package reader is a source operator producing seeded synthetic frame
// sequences. It stands in for file-backed readers: a fixed dataset of
// `count` items is walked in order, one batch per run, wrapping at the end
// of the epoch.
package reader

import (
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func atLeast(name string, min int64) func(cty.Value) error {
	return func(v cty.Value) error {
		n, _ := v.AsBigFloat().Int64()
		if n < min {
			return faults.Valuef("%s must be at least %d, got %d", name, min, n)
		}
		return nil
	}
}

// Register registers the 'reader' operator.
func (m *Module) Register(r *registry.Registry) {
	one := cty.NumberIntVal(1)
	eight := cty.NumberIntVal(8)
	r.Register(&registry.Descriptor{
		Type:        "reader",
		Description: "Produces deterministic synthetic frame sequences from a fixed-size dataset.",
		Params: map[string]registry.ParamSpec{
			"count": {
				Type:        cty.Number,
				Required:    true,
				Check:       atLeast("count", 1),
				Description: "Number of items in the dataset.",
			},
			"sequence_length": {
				Type:        cty.Number,
				Default:     &one,
				Check:       atLeast("sequence_length", 1),
				Description: "Frames per item; 1 produces single images.",
			},
			"height": {
				Type:    cty.Number,
				Default: &eight,
				Check:   atLeast("height", 1),
			},
			"width": {
				Type:    cty.Number,
				Default: &eight,
				Check:   atLeast("width", 1),
			},
			"channels": {
				Type:    cty.Number,
				Default: &one,
				Check:   atLeast("channels", 1),
			},
		},
		NumInputs:  0,
		NumOutputs: 1,
		Devices:    registry.HostOnly,
		Transform:  transform,
	})
}

// cursor is the reader's position in the dataset, kept across runs.
type cursor struct {
	next int
}

func transform(opctx *registry.OpContext, inputs []*tensor.Batch, args registry.Args) ([]*tensor.Batch, error) {
	count := int(args.Int("count"))
	frames := int(args.Int("sequence_length"))
	height := int(args.Int("height"))
	width := int(args.Int("width"))
	channels := int(args.Int("channels"))

	cur, _ := opctx.State.Get().(*cursor)
	if cur == nil {
		cur = &cursor{}
	}

	samples := make([]*tensor.Sample, opctx.BatchSize)
	for i := range samples {
		item := cur.next
		cur.next = (cur.next + 1) % count
		s, err := synthesize(item, frames, height, width, channels)
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	opctx.State.Set(cur)

	batch := tensor.NewBatch(samples...)
	if frames > 1 {
		batch.SetLayout("FHWC")
	} else {
		batch.SetLayout("HWC")
	}
	return []*tensor.Batch{batch}, nil
}

// synthesize renders one item. The pattern is a pure function of the item
// index, so epochs repeat exactly.
func synthesize(item, frames, height, width, channels int) (*tensor.Sample, error) {
	n := frames * height * width * channels
	data := make([]uint8, n)
	for k := range data {
		data[k] = uint8((item*31 + k*7) % 256)
	}
	if frames > 1 {
		return tensor.FromUint8(data, frames, height, width, channels)
	}
	return tensor.FromUint8(data, height, width, channels)
}
