// Package callback runs an arbitrary host function as a pipeline operator.
// The function is passed as an encapsulated argument value; because it may
// close over external state, the operator is marked side-effecting and only
// runs in synchronous mode, from the run's driving goroutine.
package callback

import (
	"context"
	"reflect"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/zclconf/go-cty/cty"
)

// Func is the host function signature: one input batch in, one batch out.
type Func func(ctx context.Context, input *tensor.Batch) (*tensor.Batch, error)

// FuncType is the capsule type carrying a Func through the argument schema.
var FuncType = cty.Capsule("host function", reflect.TypeOf(Func(nil)))

// Value wraps a host function for use as the 'fn' argument.
func Value(f Func) cty.Value {
	return cty.CapsuleVal(FuncType, &f)
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the 'callback' operator.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Descriptor{
		Type:        "callback",
		Description: "Applies a host function to the input batch.",
		Params: map[string]registry.ParamSpec{
			"fn": {
				Type:        FuncType,
				Required:    true,
				Description: "Host function applied to each input batch.",
			},
		},
		NumInputs:  1,
		NumOutputs: 1,
		Devices:    registry.HostOnly,
		Serialized: true,
		Transform:  transform,
	})
}

func transform(opctx *registry.OpContext, inputs []*tensor.Batch, args registry.Args) ([]*tensor.Batch, error) {
	fp, ok := args.Capsule("fn").(*Func)
	if !ok || fp == nil || *fp == nil {
		return nil, faults.Configf("callback operator has no function bound")
	}
	out, err := (*fp)(opctx.Ctx, inputs[0])
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, faults.Valuef("callback function returned no batch")
	}
	return []*tensor.Batch{out}, nil
}
