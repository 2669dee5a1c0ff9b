package registry

import "github.com/zclconf/go-cty/cty"

// Args is a validated, immutable operator configuration: parameter name to
// converted cty value. Transforms read it through the typed getters, which
// assume ValidateArgs already ran; absent optional parameters yield zero
// values.
type Args map[string]cty.Value

// Has reports whether the parameter was supplied or defaulted.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && !v.IsNull()
}

// Int returns an integer parameter.
func (a Args) Int(name string) int64 {
	v, ok := a[name]
	if !ok || v.IsNull() {
		return 0
	}
	i, _ := v.AsBigFloat().Int64()
	return i
}

// Float returns a floating-point parameter.
func (a Args) Float(name string) float64 {
	v, ok := a[name]
	if !ok || v.IsNull() {
		return 0
	}
	f, _ := v.AsBigFloat().Float64()
	return f
}

// Str returns a string parameter.
func (a Args) Str(name string) string {
	v, ok := a[name]
	if !ok || v.IsNull() {
		return ""
	}
	return v.AsString()
}

// Bool returns a boolean parameter.
func (a Args) Bool(name string) bool {
	v, ok := a[name]
	if !ok || v.IsNull() {
		return false
	}
	return v.True()
}

// Capsule returns the Go value wrapped in a capsule-typed parameter, or nil
// when absent.
func (a Args) Capsule(name string) any {
	v, ok := a[name]
	if !ok || v.IsNull() || !v.Type().IsCapsuleType() {
		return nil
	}
	return v.EncapsulatedValue()
}
