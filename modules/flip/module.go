// Package flip implements horizontal and vertical mirroring of image-like
// samples.
package flip

import (
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/vk/gridfeed/modules/internal/geometry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the 'flip' operator.
func (m *Module) Register(r *registry.Registry) {
	truthy := cty.True
	falsy := cty.False
	r.Register(&registry.Descriptor{
		Type:        "flip",
		Description: "Mirrors each sample along the horizontal and/or vertical axis.",
		Params: map[string]registry.ParamSpec{
			"horizontal": {
				Type:        cty.Bool,
				Default:     &truthy,
				Description: "Mirror left-right.",
			},
			"vertical": {
				Type:        cty.Bool,
				Default:     &falsy,
				Description: "Mirror top-bottom.",
			},
		},
		NumInputs:  1,
		NumOutputs: 1,
		Devices:    registry.AnyDevice,
		Transform:  transform,
	})
}

func transform(opctx *registry.OpContext, inputs []*tensor.Batch, args registry.Args) ([]*tensor.Batch, error) {
	horizontal := args.Bool("horizontal")
	vertical := args.Bool("vertical")

	out := make([]*tensor.Sample, inputs[0].Len())
	for i, s := range inputs[0].Samples() {
		if !horizontal && !vertical {
			out[i] = s.Clone()
			continue
		}
		flipped, err := flipSample(s, horizontal, vertical)
		if err != nil {
			return nil, err
		}
		out[i] = flipped
	}
	return []*tensor.Batch{tensor.NewBatch(out...)}, nil
}

func flipSample(s *tensor.Sample, horizontal, vertical bool) (*tensor.Sample, error) {
	d, err := geometry.SampleDims(s)
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, s.NumElements())
	for i := 0; i < d.H; i++ {
		row := i
		if vertical {
			row = d.H - 1 - i
		}
		for j := 0; j < d.W; j++ {
			col := j
			if horizontal {
				col = d.W - 1 - j
			}
			for c := 0; c < d.C; c++ {
				indices = append(indices, d.Index(row, col, c))
			}
		}
	}
	return s.Take(indices, s.Shape())
}
