package graph

import (
	"fmt"
	"reflect"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/tensor"
)

// SetOutputs validates and freezes the pipeline's declared outputs. Each
// argument must be a DataNode or a value convertible to a constant source
// (numerical scalar, 1-D numeric sequence, or N-D array). A slice that still
// contains DataNodes means the caller forgot to expand an operator's output
// group; that raises the dedicated nested-DataNode error. Any other type
// raises an error naming the concrete type.
//
// After per-argument validation the output list is frozen and the whole
// graph is checked for cycles and dangling or unreachable nodes.
func (b *Builder) SetOutputs(outs ...any) error {
	if b.frozen {
		return faults.Graphf("pipeline outputs are already set")
	}
	resolved := make([]DataNode, 0, len(outs))
	for i, raw := range outs {
		switch v := raw.(type) {
		case DataNode:
			if !v.valid() {
				return faults.Graphf("output %d references an uninitialized DataNode", i)
			}
			if v.b != b {
				return faults.Graphf("output %d references a node from a different pipeline", i)
			}
			resolved = append(resolved, v)
		default:
			if containsDataNode(reflect.ValueOf(raw)) {
				return faults.NestedOutput(i)
			}
			sample, err := tensor.FromAny(raw)
			if err != nil {
				return faults.IllegalOutput(i, fmt.Sprintf("%T", raw))
			}
			dn, err := b.addConstant(sample)
			if err != nil {
				return err
			}
			resolved = append(resolved, dn)
		}
	}
	if err := b.validate(resolved); err != nil {
		return err
	}
	b.outputs = resolved
	b.frozen = true
	return nil
}

// containsDataNode walks nested slices, arrays and interfaces looking for a
// DataNode at any depth.
func containsDataNode(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Interface:
		return containsDataNode(v.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if containsDataNode(v.Index(i)) {
				return true
			}
		}
		return false
	default:
		_, ok := v.Interface().(DataNode)
		return ok
	}
}
