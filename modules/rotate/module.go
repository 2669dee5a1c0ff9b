// Package rotate implements whole-quadrant counter-clockwise rotation of
// image-like samples.
package rotate

import (
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/vk/gridfeed/modules/internal/geometry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the 'rotate' operator.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Descriptor{
		Type:        "rotate",
		Description: "Rotates each sample counter-clockwise by a multiple of 90 degrees.",
		Params: map[string]registry.ParamSpec{
			"angle": {
				Type:        cty.Number,
				Required:    true,
				Description: "Rotation angle in degrees, a multiple of 90.",
				Check: func(v cty.Value) error {
					a, _ := v.AsBigFloat().Int64()
					f, _ := v.AsBigFloat().Float64()
					if float64(a) != f || a%90 != 0 {
						return faults.Valuef("angle must be a multiple of 90 degrees, got %v", v.AsBigFloat())
					}
					return nil
				},
			},
		},
		NumInputs:  1,
		NumOutputs: 1,
		Devices:    registry.AnyDevice,
		Transform:  transform,
	})
}

func transform(opctx *registry.OpContext, inputs []*tensor.Batch, args registry.Args) ([]*tensor.Batch, error) {
	angle := args.Int("angle")
	quarters := int(((angle/90)%4 + 4) % 4)

	out := make([]*tensor.Sample, inputs[0].Len())
	for i, s := range inputs[0].Samples() {
		rotated, err := rotateSample(s, quarters)
		if err != nil {
			return nil, err
		}
		out[i] = rotated
	}
	return []*tensor.Batch{tensor.NewBatch(out...)}, nil
}

// rotateSample gathers the source elements in destination order. One
// quarter turn maps destination (i, j) to source (j, W-1-i).
func rotateSample(s *tensor.Sample, quarters int) (*tensor.Sample, error) {
	if quarters == 0 {
		return s.Clone(), nil
	}
	d, err := geometry.SampleDims(s)
	if err != nil {
		return nil, err
	}

	outH, outW := d.H, d.W
	if quarters%2 == 1 {
		outH, outW = d.W, d.H
	}

	indices := make([]int, 0, s.NumElements())
	for i := 0; i < outH; i++ {
		for j := 0; j < outW; j++ {
			var row, col int
			switch quarters {
			case 1:
				row, col = j, d.W-1-i
			case 2:
				row, col = d.H-1-i, d.W-1-j
			case 3:
				row, col = d.H-1-j, i
			}
			for c := 0; c < d.C; c++ {
				indices = append(indices, d.Index(row, col, c))
			}
		}
	}
	return s.Take(indices, d.Shape(s.Rank(), outH, outW))
}
