// Package graph implements the pipeline's operator graph: symbolic data
// nodes, operator nodes, and the incremental Builder user code drives
// through operator-construction calls. The graph is append-only; validation
// happens when outputs are finally declared.
package graph

import (
	"context"

	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/internal/tensor"
)

// Kind distinguishes the node variants the executor knows how to run.
type Kind int

const (
	// KindOperator nodes invoke a registered operator's transform.
	KindOperator Kind = iota
	// KindConstant nodes materialize a fixed sample, replicated to the
	// batch size, once per run.
	KindConstant
	// KindSource nodes pull one round of batches from an external source
	// adapter per run.
	KindSource
	// KindTransfer nodes copy their input batch to another device.
	KindTransfer
)

// Puller is the executor-facing contract of an external source: one call
// yields one round of per-output batches.
type Puller interface {
	Pull(ctx context.Context) ([]*tensor.Batch, error)
}

// Node is one vertex of the operator graph. Its configuration is immutable
// after construction; all execution-time state lives in the executor.
type Node struct {
	// ID is the unique structured identifier, e.g. "op.rotate.r0[1]".
	ID string
	// Kind selects how the executor runs this node.
	Kind Kind
	// Type is the operator type name ("rotate", "external_source", ...).
	Type string
	// Name is the instance name, auto-generated when not supplied.
	Name string
	// Replica is the input-set index this node serves.
	Replica int

	// Desc and Args are set for operator nodes.
	Desc *registry.Descriptor
	Args registry.Args

	// Inputs are the resolved input references, in declaration order.
	Inputs []DataNode

	// Const holds the sample of a constant node.
	Const *tensor.Sample
	// Source holds the adapter of an external-source node.
	Source Puller

	// NumOutputs is the node's output arity.
	NumOutputs int
	// Layout, when non-empty, is stamped onto produced batches that carry
	// no layout of their own.
	Layout string
	// Device is the placement of the node's outputs.
	Device tensor.Device

	// OrderedPrev links consecutive nodes appended inside one ordered
	// session; the scheduler treats the link as an edge even without a
	// data dependency. Nil outside ordered sessions.
	OrderedPrev *Node

	// index is the insertion position; because inputs must exist before a
	// node referencing them can be built, insertion order is already a
	// topological order.
	index int
}

// Index returns the node's insertion position within its builder.
func (n *Node) Index() int { return n.index }

// deps returns the distinct producer nodes this node depends on, including
// the ordered-session predecessor.
func (n *Node) deps() []*Node {
	seen := make(map[*Node]struct{}, len(n.Inputs)+1)
	var out []*Node
	for _, in := range n.Inputs {
		p := in.node
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	if n.OrderedPrev != nil {
		if _, ok := seen[n.OrderedPrev]; !ok {
			out = append(out, n.OrderedPrev)
		}
	}
	return out
}

// Deps exposes the dependency set to the executor.
func (n *Node) Deps() []*Node { return n.deps() }
