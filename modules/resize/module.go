// Package resize implements nearest-neighbor resizing of image-like
// samples.
package resize

import (
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/vk/gridfeed/modules/internal/geometry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func positive(name string) func(cty.Value) error {
	return func(v cty.Value) error {
		n, _ := v.AsBigFloat().Int64()
		if n < 1 {
			return faults.Valuef("%s must be at least 1, got %d", name, n)
		}
		return nil
	}
}

// Register registers the 'resize' operator.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Descriptor{
		Type:        "resize",
		Description: "Resizes each sample to the target extents with nearest-neighbor sampling.",
		Params: map[string]registry.ParamSpec{
			"resize_x": {
				Type:        cty.Number,
				Required:    true,
				Check:       positive("resize_x"),
				Description: "Target width in pixels.",
			},
			"resize_y": {
				Type:        cty.Number,
				Required:    true,
				Check:       positive("resize_y"),
				Description: "Target height in pixels.",
			},
		},
		NumInputs:  1,
		NumOutputs: 1,
		Devices:    registry.AnyDevice,
		Transform:  transform,
	})
}

func transform(opctx *registry.OpContext, inputs []*tensor.Batch, args registry.Args) ([]*tensor.Batch, error) {
	outW := int(args.Int("resize_x"))
	outH := int(args.Int("resize_y"))

	out := make([]*tensor.Sample, inputs[0].Len())
	for i, s := range inputs[0].Samples() {
		resized, err := resizeSample(s, outH, outW)
		if err != nil {
			return nil, err
		}
		out[i] = resized
	}
	return []*tensor.Batch{tensor.NewBatch(out...)}, nil
}

// resizeSample picks, for every destination pixel, the source pixel whose
// center is nearest under the uniform scale mapping.
func resizeSample(s *tensor.Sample, outH, outW int) (*tensor.Sample, error) {
	d, err := geometry.SampleDims(s)
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, outH*outW*d.C)
	for i := 0; i < outH; i++ {
		row := nearest(i, outH, d.H)
		for j := 0; j < outW; j++ {
			col := nearest(j, outW, d.W)
			for c := 0; c < d.C; c++ {
				indices = append(indices, d.Index(row, col, c))
			}
		}
	}
	return s.Take(indices, d.Shape(s.Rank(), outH, outW))
}

func nearest(dst, dstExtent, srcExtent int) int {
	src := int((float64(dst) + 0.5) * float64(srcExtent) / float64(dstExtent))
	if src >= srcExtent {
		src = srcExtent - 1
	}
	return src
}
