package graph

import (
	"fmt"

	"github.com/vk/gridfeed/internal/tensor"
)

// DataNode is a symbolic reference to one output slot of one graph node. It
// carries no data, only the producing node, the output index and the device
// placement of batches that will flow through the slot.
type DataNode struct {
	b      *Builder
	node   *Node
	output int
	device tensor.Device
}

// ID returns the producing node's identifier.
func (d DataNode) ID() string { return d.node.ID }

// Node returns the producing node.
func (d DataNode) Node() *Node { return d.node }

// Output returns the output slot index on the producing node.
func (d DataNode) Output() int { return d.output }

// Device returns the placement of batches flowing through the slot.
func (d DataNode) Device() tensor.Device { return d.device }

// String renders the reference for error messages.
func (d DataNode) String() string {
	if d.node == nil {
		return "DataNode(<nil>)"
	}
	return fmt.Sprintf("DataNode(%s:%d, %s)", d.node.ID, d.output, d.device)
}

// valid reports whether the reference was produced by a builder.
func (d DataNode) valid() bool { return d.b != nil && d.node != nil }

// GPU promotes the referenced slot to the accelerator by appending a
// device-transfer node, and returns the reference to the transferred slot.
// Promoting an already accelerator-resident slot is a no-op.
func (d DataNode) GPU() DataNode {
	if !d.valid() || d.device.IsAccelerator() {
		return d
	}
	return d.b.addTransfer(d, tensor.Accelerator(0))
}
