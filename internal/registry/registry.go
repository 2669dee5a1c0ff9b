// Package registry holds the static operator registry: a mapping from
// operator type name to a Descriptor carrying the parameter schema, the
// arity and device affinity, and the transform function. It is populated at
// process-wide initialization, before any pipeline is built; the graph
// builder looks operators up by name.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vk/gridfeed/internal/faults"
)

// Module is the interface operator packages implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry is one immutable-after-init set of operator descriptors.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// New creates an empty Registry instance.
func New() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry used by pipelines that are not
// handed an explicit one. Operator packages register into it once at
// startup.
func Global() *Registry {
	globalOnce.Do(func() { global = New() })
	return global
}

// Register adds a descriptor. Registering a duplicate or malformed
// descriptor is a programmer error and panics.
func (r *Registry) Register(d *Descriptor) {
	if d.Type == "" {
		panic("registry: descriptor with empty type name")
	}
	if d.NumOutputs < 1 {
		panic(fmt.Sprintf("registry: operator '%s' must declare at least one output", d.Type))
	}
	if d.Transform == nil {
		panic(fmt.Sprintf("registry: operator '%s' has no transform", d.Type))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.Type]; exists {
		panic(fmt.Sprintf("registry: operator '%s' already registered", d.Type))
	}
	r.descriptors[d.Type] = d
}

// Lookup resolves an operator type name to its descriptor.
func (r *Registry) Lookup(opType string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[opType]
	if !ok {
		return nil, faults.Configf("unknown operator type '%s'", opType)
	}
	return d, nil
}

// Types returns the sorted list of registered operator type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
