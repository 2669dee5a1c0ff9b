// Package modules bundles the built-in operator library.
package modules

import (
	"sync"

	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/modules/callback"
	"github.com/vk/gridfeed/modules/constant"
	"github.com/vk/gridfeed/modules/flip"
	"github.com/vk/gridfeed/modules/noise"
	"github.com/vk/gridfeed/modules/reader"
	"github.com/vk/gridfeed/modules/resize"
	"github.com/vk/gridfeed/modules/rotate"
)

// All returns one instance of every built-in operator module.
func All() []registry.Module {
	return []registry.Module{
		&callback.Module{},
		&constant.Module{},
		&flip.Module{},
		&noise.Module{},
		&reader.Module{},
		&resize.Module{},
		&rotate.Module{},
	}
}

// RegisterAll registers every built-in operator into the given registry.
func RegisterAll(r *registry.Registry) {
	for _, m := range All() {
		m.Register(r)
	}
}

var installOnce sync.Once

// Install registers the built-in operators into the process-wide registry,
// once, and returns it. Pipelines constructed without an explicit registry
// resolve against it.
func Install() *registry.Registry {
	installOnce.Do(func() { RegisterAll(registry.Global()) })
	return registry.Global()
}
