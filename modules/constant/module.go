// Package constant is a source operator producing the same scalar in every
// sample of every run. It exists for declarative pipeline files, where raw
// Go values cannot be spliced into the graph directly.
package constant

import (
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the 'constant' operator.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Descriptor{
		Type:        "constant",
		Description: "Produces a batch of identical scalar samples.",
		Params: map[string]registry.ParamSpec{
			"value": {
				Type:        cty.Number,
				Required:    true,
				Description: "The scalar value.",
			},
		},
		NumInputs:  0,
		NumOutputs: 1,
		Devices:    registry.HostOnly,
		Transform:  transform,
	})
}

func transform(opctx *registry.OpContext, inputs []*tensor.Batch, args registry.Args) ([]*tensor.Batch, error) {
	v := args["value"]
	var raw any
	if bf := v.AsBigFloat(); bf.IsInt() {
		raw, _ = bf.Int64()
	} else {
		raw, _ = bf.Float64()
	}

	proto, err := tensor.FromAny(raw)
	if err != nil {
		return nil, err
	}
	samples := make([]*tensor.Sample, opctx.BatchSize)
	for i := range samples {
		samples[i] = proto.Clone()
	}
	return []*tensor.Batch{tensor.NewBatch(samples...)}, nil
}
