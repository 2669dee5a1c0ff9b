package graph

import (
	"fmt"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
)

// Builder incrementally assembles operator nodes into a directed acyclic
// graph as user code chains operator-construction calls. It is not safe for
// concurrent use; one builder belongs to one pipeline.
type Builder struct {
	reg       *registry.Registry
	nodes     []*Node
	byID      map[string]*Node
	outputs   []DataNode
	frozen    bool
	ordered   bool
	lastOrder *Node
	autoNames map[string]int
}

// New creates an empty Builder resolving operators against the given
// registry.
func New(reg *registry.Registry) *Builder {
	return &Builder{
		reg:       reg,
		byID:      make(map[string]*Node),
		autoNames: make(map[string]int),
	}
}

// Nodes returns the graph's nodes in insertion order, which is a valid
// topological order: a node's inputs always precede it.
func (b *Builder) Nodes() []*Node { return b.nodes }

// Outputs returns the declared output list and whether SetOutputs ran.
func (b *Builder) Outputs() ([]DataNode, bool) { return b.outputs, b.frozen }

// Registry returns the registry operators are resolved against.
func (b *Builder) Registry() *registry.Registry { return b.reg }

// Add validates and appends one operator node, or one replica per input set
// when an input position carries a group of DataNodes. It returns the
// produced DataNodes: per input set, one reference per declared output, in
// set-major order.
func (b *Builder) Add(opType, name string, rawArgs map[string]any, inputs ...any) ([]DataNode, error) {
	if b.frozen {
		return nil, faults.Graphf("cannot add operator '%s': outputs are already set and the graph is frozen", opType)
	}
	desc, err := b.reg.Lookup(opType)
	if err != nil {
		return nil, err
	}
	args, err := desc.ValidateArgs(rawArgs)
	if err != nil {
		return nil, err
	}
	if len(inputs) != desc.NumInputs {
		return nil, faults.Configf("operator '%s' takes %d input(s), got %d", opType, desc.NumInputs, len(inputs))
	}

	groups, numSets, err := b.resolveInputs(desc, inputs)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = b.autoName(opType)
	}

	var out []DataNode
	for set := 0; set < numSets; set++ {
		resolved := make([]DataNode, len(groups))
		for pos, g := range groups {
			if len(g) == 1 {
				resolved[pos] = g[0]
			} else {
				resolved[pos] = g[set]
			}
		}
		node := &Node{
			Kind:       KindOperator,
			Type:       opType,
			Name:       name,
			Replica:    set,
			Desc:       desc,
			Args:       args,
			Inputs:     resolved,
			NumOutputs: desc.NumOutputs,
			Device:     outputDevice(resolved),
		}
		if err := b.append(node); err != nil {
			return nil, err
		}
		for i := 0; i < desc.NumOutputs; i++ {
			out = append(out, DataNode{b: b, node: node, output: i, device: node.Device})
		}
	}
	return out, nil
}

// AddSource appends an external-source node producing numOutputs
// host-resident slots per run.
func (b *Builder) AddSource(name string, src Puller, numOutputs int, layout string) ([]DataNode, error) {
	if b.frozen {
		return nil, faults.Graphf("cannot add an external source: outputs are already set and the graph is frozen")
	}
	if src == nil {
		return nil, faults.Configf("external source requires a data source")
	}
	if numOutputs < 1 {
		return nil, faults.Configf("external source num_outputs must be at least 1, got %d", numOutputs)
	}
	if name == "" {
		name = b.autoName("external_source")
	}
	node := &Node{
		Kind:       KindSource,
		Type:       "external_source",
		Name:       name,
		Source:     src,
		NumOutputs: numOutputs,
		Layout:     layout,
		Device:     tensor.Host(),
	}
	if err := b.append(node); err != nil {
		return nil, err
	}
	out := make([]DataNode, numOutputs)
	for i := range out {
		out[i] = DataNode{b: b, node: node, output: i, device: tensor.Host()}
	}
	return out, nil
}

// addConstant appends a constant-source node for an eagerly coerced sample.
func (b *Builder) addConstant(sample *tensor.Sample) (DataNode, error) {
	node := &Node{
		Kind:       KindConstant,
		Type:       "constant",
		Name:       b.autoName("constant"),
		Const:      sample,
		NumOutputs: 1,
		Device:     tensor.Host(),
	}
	if err := b.append(node); err != nil {
		return DataNode{}, err
	}
	return DataNode{b: b, node: node, output: 0, device: tensor.Host()}, nil
}

// addTransfer appends a device-transfer node moving one slot to dev.
func (b *Builder) addTransfer(in DataNode, dev tensor.Device) DataNode {
	node := &Node{
		Kind:       KindTransfer,
		Type:       "copy",
		Name:       b.autoName("copy"),
		Inputs:     []DataNode{in},
		NumOutputs: 1,
		Device:     dev,
	}
	// Transfer ids never collide: the name counter is builder-owned.
	_ = b.append(node)
	return DataNode{b: b, node: node, output: 0, device: dev}
}

// resolveInputs normalizes raw input arguments into per-position DataNode
// groups and determines the input-set count. Raw host values are wrapped as
// constant sources; every reference is checked against the operator's
// device affinity.
func (b *Builder) resolveInputs(desc *registry.Descriptor, inputs []any) ([][]DataNode, int, error) {
	groups := make([][]DataNode, len(inputs))
	numSets := 1
	for pos, raw := range inputs {
		switch v := raw.(type) {
		case DataNode:
			groups[pos] = []DataNode{v}
		case []DataNode:
			if len(v) == 0 {
				return nil, 0, faults.Configf("operator '%s' input %d is an empty DataNode group", desc.Type, pos)
			}
			groups[pos] = v
		default:
			sample, err := tensor.FromAny(raw)
			if err != nil {
				return nil, 0, faults.Configf("operator '%s' input %d: %v", desc.Type, pos, err)
			}
			dn, err := b.addConstant(sample)
			if err != nil {
				return nil, 0, err
			}
			groups[pos] = []DataNode{dn}
		}
		for _, dn := range groups[pos] {
			if !dn.valid() {
				return nil, 0, faults.Graphf("operator '%s' input %d references an uninitialized DataNode", desc.Type, pos)
			}
			if dn.b != b {
				return nil, 0, faults.Graphf("operator '%s' input %d references a node from a different pipeline", desc.Type, pos)
			}
			if !desc.Devices.Supports(dn.device) {
				return nil, 0, faults.DeviceMismatchf(
					"operator '%s' input %d is %s-resident, but the operator only supports %s inputs",
					desc.Type, pos, dn.device, desc.Devices)
			}
		}
		if n := len(groups[pos]); n > 1 {
			if numSets > 1 && n != numSets {
				return nil, 0, faults.Configf("operator '%s': mismatched input-set counts %d and %d", desc.Type, numSets, n)
			}
			numSets = n
		}
	}
	return groups, numSets, nil
}

// append registers the node in the graph, assigning its id and the ordered
// chain link.
func (b *Builder) append(node *Node) error {
	node.ID = fmt.Sprintf("op.%s.%s[%d]", node.Type, node.Name, node.Replica)
	if _, exists := b.byID[node.ID]; exists {
		return faults.Configf("duplicate operator instance '%s'", node.ID)
	}
	if b.ordered && (node.Kind == KindOperator || node.Kind == KindSource) {
		node.OrderedPrev = b.lastOrder
		b.lastOrder = node
	}
	node.index = len(b.nodes)
	b.nodes = append(b.nodes, node)
	b.byID[node.ID] = node
	return nil
}

// autoName generates a deterministic instance name per operator type.
func (b *Builder) autoName(opType string) string {
	n := b.autoNames[opType]
	b.autoNames[opType]++
	return fmt.Sprintf("%s_%d", opType, n)
}

// outputDevice derives a node's output placement from its inputs: any
// accelerator-resident input makes the outputs accelerator-resident.
func outputDevice(inputs []DataNode) tensor.Device {
	for _, in := range inputs {
		if in.device.IsAccelerator() {
			return in.device
		}
	}
	return tensor.Host()
}

// Session is the builder-session token bracketing operator appends whose
// side effects must stay in declaration order. While it is held, appended
// nodes are chained so the scheduler treats consecutive ones as if an
// explicit edge existed between them.
type Session struct {
	b      *Builder
	closed bool
}

// BeginOrdered opens an ordered session. Sessions do not nest.
func (b *Builder) BeginOrdered() *Session {
	b.ordered = true
	b.lastOrder = nil
	return &Session{b: b}
}

// End closes the session; later appends are unordered again.
func (s *Session) End() {
	if s.closed {
		return
	}
	s.closed = true
	s.b.ordered = false
	s.b.lastOrder = nil
}
