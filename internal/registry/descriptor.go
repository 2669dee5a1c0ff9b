package registry

import (
	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/tensor"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// DeviceSupport declares which input/output placements an operator accepts.
type DeviceSupport int

const (
	// AnyDevice operators run wherever their inputs live.
	AnyDevice DeviceSupport = iota
	// HostOnly operators reject accelerator-resident inputs.
	HostOnly
	// AcceleratorOnly operators reject host-resident inputs.
	AcceleratorOnly
)

// Supports reports whether the given placement is acceptable.
func (ds DeviceSupport) Supports(d tensor.Device) bool {
	switch ds {
	case HostOnly:
		return !d.IsAccelerator()
	case AcceleratorOnly:
		return d.IsAccelerator()
	default:
		return true
	}
}

// String returns the placement constraint as user-facing text.
func (ds DeviceSupport) String() string {
	switch ds {
	case HostOnly:
		return "cpu"
	case AcceleratorOnly:
		return "gpu"
	default:
		return "any"
	}
}

// ParamSpec declares one configuration parameter of an operator.
type ParamSpec struct {
	// Type is the cty type the supplied value must convert to. Capsule
	// types carry opaque Go values (e.g. host callback functions) and are
	// matched exactly instead of converted.
	Type cty.Type
	// Required parameters must be supplied at construction time.
	Required bool
	// Default is applied when an optional parameter is absent.
	Default *cty.Value
	// Check optionally validates the converted value's range.
	Check func(cty.Value) error
	// Description is used in user-facing schema errors and docs.
	Description string
}

// Transform is one operator's execution function: resolved input batches in,
// output batches out, invoked once per dependency-satisfied run.
type Transform func(opctx *OpContext, inputs []*tensor.Batch, args Args) ([]*tensor.Batch, error)

// Descriptor is the full construction-and-execution contract of one
// operator kind.
type Descriptor struct {
	// Type is the operator's registry name, e.g. "rotate".
	Type        string
	Description string
	// Params maps parameter name to its schema.
	Params map[string]ParamSpec
	// NumInputs is the declared input arity. Zero marks a source operator.
	NumInputs int
	// NumOutputs is the declared output arity, at least one.
	NumOutputs int
	// Devices constrains the placement of inputs and outputs.
	Devices DeviceSupport
	// Serialized marks side-effecting operators: at most one invocation in
	// flight, always from the run's driving goroutine, never prefetched.
	Serialized bool
	// CheckArgs optionally validates cross-parameter constraints after all
	// individual parameters passed.
	CheckArgs func(Args) error
	// Transform executes the operator.
	Transform Transform
}

// ValidateArgs converts raw construction-time values against the parameter
// schema: unknown names, missing required parameters, inconvertible types
// and range violations all fail with a ConfigError. Defaults are filled in.
// Coercion happens once, eagerly, at call time.
func (d *Descriptor) ValidateArgs(raw map[string]any) (Args, error) {
	out := make(Args, len(d.Params))
	for name, v := range raw {
		spec, ok := d.Params[name]
		if !ok {
			return nil, faults.Configf("operator '%s' has no parameter '%s'", d.Type, name)
		}
		val, err := coerce(v, spec.Type)
		if err != nil {
			return nil, faults.Configf("operator '%s', parameter '%s': %v", d.Type, name, err)
		}
		if spec.Check != nil {
			if err := spec.Check(val); err != nil {
				return nil, faults.Configf("operator '%s', parameter '%s': %v", d.Type, name, err)
			}
		}
		out[name] = val
	}
	for name, spec := range d.Params {
		if _, ok := out[name]; ok {
			continue
		}
		if spec.Required {
			return nil, faults.Configf("operator '%s' is missing required parameter '%s'", d.Type, name)
		}
		if spec.Default != nil {
			out[name] = *spec.Default
		}
	}
	if d.CheckArgs != nil {
		if err := d.CheckArgs(out); err != nil {
			return nil, faults.Configf("operator '%s': %v", d.Type, err)
		}
	}
	return out, nil
}

// coerce turns a raw Go value (or an already-typed cty.Value, as produced by
// the HCL front end) into a value of the wanted type.
func coerce(v any, want cty.Type) (cty.Value, error) {
	if cv, ok := v.(cty.Value); ok {
		if want.IsCapsuleType() {
			if !cv.Type().Equals(want) {
				return cty.NilVal, faults.Configf("expected %s, got %s", want.FriendlyName(), cv.Type().FriendlyName())
			}
			return cv, nil
		}
		return convert.Convert(cv, want)
	}
	if want.IsCapsuleType() {
		return cty.NilVal, faults.Configf("expected %s, got %T", want.FriendlyName(), v)
	}
	implied, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, err
	}
	cv, err := gocty.ToCtyValue(v, implied)
	if err != nil {
		return cty.NilVal, err
	}
	return convert.Convert(cv, want)
}
