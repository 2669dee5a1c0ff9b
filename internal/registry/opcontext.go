package registry

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/vk/gridfeed/internal/tensor"
)

// OpContext is handed to every transform invocation. It carries the run
// context, the logger, a per-node RNG deterministically seeded from the
// pipeline seed, the batch size, and the device context the node executes
// against.
type OpContext struct {
	Ctx       context.Context
	Logger    *slog.Logger
	RNG       *rand.Rand
	BatchSize int
	Device    tensor.Device
	Stream    *tensor.Stream
	// State is per-node storage that survives across runs, for stateful
	// source operators such as readers tracking their cursor.
	State *NodeState
}

// NodeState is a small mutex-guarded slot for per-node state that must
// persist between runs. Node configuration itself stays immutable; this is
// only for execution-side bookkeeping (reader cursors, open handles).
type NodeState struct {
	mu sync.Mutex
	v  any
}

// Get returns the stored value, or nil.
func (s *NodeState) Get() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

// Set replaces the stored value.
func (s *NodeState) Set(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
}
