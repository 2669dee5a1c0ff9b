package registry

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/tensor"
)

func noopTransform(*OpContext, []*tensor.Batch, Args) ([]*tensor.Batch, error) {
	return []*tensor.Batch{tensor.NewBatch()}, nil
}

func newTestDescriptor(name string) *Descriptor {
	return &Descriptor{
		Type:       name,
		NumInputs:  1,
		NumOutputs: 1,
		Transform:  noopTransform,
	}
}

func TestRegister(t *testing.T) {
	t.Run("lookup after register", func(t *testing.T) {
		r := New()
		r.Register(newTestDescriptor("noop"))
		d, err := r.Lookup("noop")
		require.NoError(t, err)
		assert.Equal(t, "noop", d.Type)
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		r := New()
		r.Register(newTestDescriptor("noop"))
		assert.Panics(t, func() { r.Register(newTestDescriptor("noop")) })
	})

	t.Run("descriptor without transform panics", func(t *testing.T) {
		r := New()
		assert.Panics(t, func() {
			r.Register(&Descriptor{Type: "broken", NumOutputs: 1})
		})
	})

	t.Run("unknown type is a config error", func(t *testing.T) {
		r := New()
		_, err := r.Lookup("nope")
		var cfgErr *faults.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.ErrorContains(t, err, "unknown operator type 'nope'")
	})

	t.Run("types are sorted", func(t *testing.T) {
		r := New()
		r.Register(newTestDescriptor("b"))
		r.Register(newTestDescriptor("a"))
		assert.Equal(t, []string{"a", "b"}, r.Types())
	})
}

func TestValidateArgs(t *testing.T) {
	def := cty.NumberIntVal(7)
	d := &Descriptor{
		Type:       "crop",
		NumInputs:  1,
		NumOutputs: 1,
		Transform:  noopTransform,
		Params: map[string]ParamSpec{
			"width": {Type: cty.Number, Required: true, Check: func(v cty.Value) error {
				i, _ := v.AsBigFloat().Int64()
				if i <= 0 {
					return faults.Configf("must be positive, got %d", i)
				}
				return nil
			}},
			"pad":    {Type: cty.Number, Default: &def},
			"layout": {Type: cty.String},
		},
	}

	t.Run("valid args with default fill", func(t *testing.T) {
		args, err := d.ValidateArgs(map[string]any{"width": 3})
		require.NoError(t, err)
		assert.Equal(t, int64(3), args.Int("width"))
		assert.Equal(t, int64(7), args.Int("pad"))
		assert.False(t, args.Has("layout"))
	})

	t.Run("missing required parameter", func(t *testing.T) {
		_, err := d.ValidateArgs(map[string]any{})
		var cfgErr *faults.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.ErrorContains(t, err, "missing required parameter 'width'")
	})

	t.Run("unknown parameter", func(t *testing.T) {
		_, err := d.ValidateArgs(map[string]any{"width": 3, "depth": 1})
		assert.ErrorContains(t, err, "has no parameter 'depth'")
	})

	t.Run("inconvertible type", func(t *testing.T) {
		_, err := d.ValidateArgs(map[string]any{"width": "wide"})
		var cfgErr *faults.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("range check failure", func(t *testing.T) {
		_, err := d.ValidateArgs(map[string]any{"width": -1})
		assert.ErrorContains(t, err, "must be positive")
	})

	t.Run("cty values pass through conversion", func(t *testing.T) {
		args, err := d.ValidateArgs(map[string]any{"width": cty.NumberIntVal(4)})
		require.NoError(t, err)
		assert.Equal(t, int64(4), args.Int("width"))
	})
}

func TestCapsuleParams(t *testing.T) {
	type hook func() error
	capType := cty.Capsule("hook", reflect.TypeOf((*hook)(nil)).Elem())
	d := &Descriptor{
		Type:       "cb",
		NumInputs:  1,
		NumOutputs: 1,
		Transform:  noopTransform,
		Params: map[string]ParamSpec{
			"fn": {Type: capType, Required: true},
		},
	}

	t.Run("capsule value accepted", func(t *testing.T) {
		var h hook = func() error { return nil }
		args, err := d.ValidateArgs(map[string]any{"fn": cty.CapsuleVal(capType, &h)})
		require.NoError(t, err)
		got := args.Capsule("fn").(*hook)
		require.NotNil(t, got)
		assert.NoError(t, (*got)())
	})

	t.Run("plain go value rejected for capsule param", func(t *testing.T) {
		_, err := d.ValidateArgs(map[string]any{"fn": 42})
		assert.ErrorContains(t, err, "expected hook")
	})
}
