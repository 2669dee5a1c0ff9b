package tensor

import (
	"fmt"
	"sync"
)

// Device is a placement tag for a batch: either the host, or one accelerator
// identified by its ordinal. The core carries no real accelerator runtime;
// accelerator-resident batches live in separate storage reached only through
// the owning Stream, which preserves the observable transfer semantics.
type Device struct {
	accel   bool
	ordinal int
}

// Host returns the host placement.
func Host() Device { return Device{} }

// Accelerator returns the placement for the accelerator with the given ordinal.
func Accelerator(ordinal int) Device {
	return Device{accel: true, ordinal: ordinal}
}

// IsAccelerator reports whether the placement is an accelerator.
func (d Device) IsAccelerator() bool { return d.accel }

// Ordinal returns the accelerator ordinal. It is 0 for the host.
func (d Device) Ordinal() int { return d.ordinal }

// String returns "cpu" for the host and "gpu:<ordinal>" for an accelerator.
func (d Device) String() string {
	if d.accel {
		return fmt.Sprintf("gpu:%d", d.ordinal)
	}
	return "cpu"
}

// Stream serializes all work against one accelerator. Device-bound operator
// transforms and device-to-host transfers run under it, so a transfer never
// observes a half-written batch. Synchronize returns once previously
// submitted work has drained, which makes transfers synchronous from the
// caller's perspective.
type Stream struct {
	mu sync.Mutex
}

// NewStream returns a stream for one device context.
func NewStream() *Stream { return &Stream{} }

// Do runs f as one unit of device work, ordered after all previously
// submitted work.
func (s *Stream) Do(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
}

// Synchronize blocks until all previously submitted work has completed.
func (s *Stream) Synchronize() {
	s.mu.Lock()
	defer s.mu.Unlock()
}
