package tensor

import (
	"fmt"

	"github.com/vk/gridfeed/internal/faults"
)

// Batch is an ordered sequence of samples processed together, annotated with
// a device placement and an optional shared layout. Sample i of an output
// batch corresponds to sample i of its inputs for every non-shuffling
// operator.
//
// A batch is owned exclusively by the node that produced it until consumed;
// downstream consumers read it without mutation.
type Batch struct {
	samples []*Sample
	device  Device
	layout  string
	stream  *Stream
}

// NewBatch builds a host-resident batch from the given samples. The slice is
// owned by the batch.
func NewBatch(samples ...*Sample) *Batch {
	return &Batch{samples: samples, device: Host()}
}

// Len returns the number of samples.
func (b *Batch) Len() int { return len(b.samples) }

// At returns the sample at the given index.
func (b *Batch) At(i int) (*Sample, error) {
	if i < 0 || i >= len(b.samples) {
		return nil, fmt.Errorf("sample index %d out of range [0, %d)", i, len(b.samples))
	}
	return b.samples[i], nil
}

// Samples returns the underlying sample slice, read-only by convention.
func (b *Batch) Samples() []*Sample { return b.samples }

// Device returns the batch's placement.
func (b *Batch) Device() Device { return b.device }

// Layout returns the shared layout, or "" if none was set.
func (b *Batch) Layout() string { return b.layout }

// SetLayout tags the batch and every sample that does not already carry a
// layout of its own.
func (b *Batch) SetLayout(layout string) {
	b.layout = layout
	for _, s := range b.samples {
		if s.Layout() == "" {
			s.SetLayout(layout)
		}
	}
}

// Clone deep-copies the batch, keeping placement and layout.
func (b *Batch) Clone() *Batch {
	samples := make([]*Sample, len(b.samples))
	for i, s := range b.samples {
		samples[i] = s.Clone()
	}
	return &Batch{samples: samples, device: b.device, layout: b.layout, stream: b.stream}
}

// AsCPU returns a host-resident deep copy of an accelerator batch. The copy
// is independent of the source batch's subsequent mutation, and the transfer
// joins the device stream first, so it is synchronous from the caller's
// perspective. A batch that already lives on the host is returned unchanged.
func (b *Batch) AsCPU() *Batch {
	if !b.device.IsAccelerator() {
		return b
	}
	var out *Batch
	transfer := func() {
		samples := make([]*Sample, len(b.samples))
		for i, s := range b.samples {
			samples[i] = s.Clone()
		}
		out = &Batch{samples: samples, device: Host(), layout: b.layout}
	}
	if b.stream != nil {
		b.stream.Do(transfer)
	} else {
		transfer()
	}
	return out
}

// CopyToDevice returns a deep copy of the batch placed on the given device,
// transferred through its stream.
func (b *Batch) CopyToDevice(d Device, stream *Stream) *Batch {
	var out *Batch
	transfer := func() {
		samples := make([]*Sample, len(b.samples))
		for i, s := range b.samples {
			samples[i] = s.Clone()
		}
		out = &Batch{samples: samples, device: d, layout: b.layout, stream: stream}
	}
	if stream != nil {
		stream.Do(transfer)
	} else {
		transfer()
	}
	return out
}

// WithPlacement re-tags the batch with a device placement and stream without
// copying. It is used by the executor to stamp freshly produced batches.
func (b *Batch) WithPlacement(d Device, stream *Stream) *Batch {
	b.device = d
	b.stream = stream
	return b
}

// AsArray returns the batch as one dense sample of shape [len, extents...].
// It fails with a shape mismatch when the batch is ragged or mixes element
// types.
func (b *Batch) AsArray() (*Sample, error) {
	if len(b.samples) == 0 {
		return nil, faults.ShapeMismatchf("cannot build a dense view of an empty batch")
	}
	first := b.samples[0]
	for i, s := range b.samples[1:] {
		if s.DType() != first.DType() {
			return nil, faults.ShapeMismatchf("dense view requires a uniform element type: sample 0 is %s, sample %d is %s",
				first.DType(), i+1, s.DType())
		}
		if !shapeEqual(s.shape, first.shape) {
			return nil, faults.ShapeMismatchf("dense view requires uniform shapes: sample 0 has %v, sample %d has %v",
				first.shape, i+1, s.shape)
		}
	}
	per := first.NumElements()
	out := alloc(first.dtype, per*len(b.samples))
	for i, s := range b.samples {
		copyInto(out, s.data, i*per)
	}
	shape := append([]int{len(b.samples)}, first.shape...)
	dense := newSample(first.dtype, out, shape, "")
	return dense, nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func copyInto(dst, src any, offset int) {
	switch d := dst.(type) {
	case []uint8:
		copy(d[offset:], src.([]uint8))
	case []int32:
		copy(d[offset:], src.([]int32))
	case []int64:
		copy(d[offset:], src.([]int64))
	case []float32:
		copy(d[offset:], src.([]float32))
	case []float64:
		copy(d[offset:], src.([]float64))
	}
}
