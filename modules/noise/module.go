// Package noise implements additive gaussian noise drawn from the node's
// deterministic per-run stream.
package noise

import (
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the 'noise' operator.
func (m *Module) Register(r *registry.Registry) {
	one := cty.NumberFloatVal(1)
	zero := cty.NumberFloatVal(0)
	r.Register(&registry.Descriptor{
		Type:        "noise",
		Description: "Adds gaussian noise to every element, seeded from the pipeline seed.",
		Params: map[string]registry.ParamSpec{
			"stddev": {
				Type:        cty.Number,
				Default:     &one,
				Description: "Standard deviation of the noise.",
				Check: func(v cty.Value) error {
					f, _ := v.AsBigFloat().Float64()
					if f < 0 {
						return faults.Valuef("stddev must not be negative, got %v", f)
					}
					return nil
				},
			},
			"mean": {
				Type:        cty.Number,
				Default:     &zero,
				Description: "Mean of the noise.",
			},
		},
		NumInputs:  1,
		NumOutputs: 1,
		Devices:    registry.AnyDevice,
		Transform:  transform,
	})
}

func transform(opctx *registry.OpContext, inputs []*tensor.Batch, args registry.Args) ([]*tensor.Batch, error) {
	stddev := args.Float("stddev")
	mean := args.Float("mean")

	out := make([]*tensor.Sample, inputs[0].Len())
	for i, s := range inputs[0].Samples() {
		out[i] = s.Apply(func(v float64) float64 {
			return v + opctx.RNG.NormFloat64()*stddev + mean
		})
	}
	return []*tensor.Batch{tensor.NewBatch(out...)}, nil
}
