// Package geometry holds the shared shape arithmetic of the image-like
// spatial operators.
package geometry

import (
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/tensor"
)

// Dims is the spatial interpretation of one sample: rows, columns and
// interleaved channels.
type Dims struct {
	H, W, C int
}

// SampleDims interprets a 2-D sample as single-channel and a 3-D sample as
// row-major interleaved channels (HWC).
func SampleDims(s *tensor.Sample) (Dims, error) {
	shape := s.Shape()
	switch len(shape) {
	case 2:
		return Dims{H: shape[0], W: shape[1], C: 1}, nil
	case 3:
		return Dims{H: shape[0], W: shape[1], C: shape[2]}, nil
	}
	return Dims{}, faults.Valuef("expected a 2-D or 3-D image sample, got rank %d", len(shape))
}

// Index returns the flat storage index of (row, col, channel).
func (d Dims) Index(row, col, c int) int {
	return (row*d.W+col)*d.C + c
}

// Shape rebuilds a sample shape with new spatial extents, keeping the
// channel axis only if the source had one.
func (d Dims) Shape(rank, h, w int) []int {
	if rank == 2 {
		return []int{h, w}
	}
	return []int{h, w, d.C}
}
