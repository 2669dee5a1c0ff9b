// Package faults defines the error taxonomy shared by every layer of the
// pipeline core. The consuming test suites assert exact message text, so
// all constructors here produce deterministic strings.
package faults

import (
	"errors"
	"fmt"
)

// ErrStopIteration signals that an external source has been exhausted. With
// cycle policy "raise" it surfaces through the Run error chain after the
// source has already wrapped around, so callers can errors.Is against it.
var ErrStopIteration = errors.New("end of external source data reached")

// ConfigError reports a bad or missing operator parameter, or an unknown
// operator type.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// DeviceMismatchError reports an operator given an input whose device
// placement it does not support.
type DeviceMismatchError struct {
	Msg string
}

func (e *DeviceMismatchError) Error() string { return e.Msg }

// DeviceMismatchf builds a DeviceMismatchError from a format string.
func DeviceMismatchf(format string, args ...any) *DeviceMismatchError {
	return &DeviceMismatchError{Msg: fmt.Sprintf(format, args...)}
}

// GraphError reports a structural problem with the operator graph: a cycle,
// a dangling node reference, or outputs that were never declared.
type GraphError struct {
	Msg string
}

func (e *GraphError) Error() string { return e.Msg }

// Graphf builds a GraphError from a format string.
func Graphf(format string, args ...any) *GraphError {
	return &GraphError{Msg: fmt.Sprintf(format, args...)}
}

// OutputTypeError is the TypeError class for illegal SetOutputs arguments.
// Index is the position of the offending output in the declared list.
type OutputTypeError struct {
	Index int
	Msg   string
}

func (e *OutputTypeError) Error() string { return e.Msg }

// NestedOutput reports a DataNode nested inside a list handed to SetOutputs
// without expansion. The message text is part of the public contract.
func NestedOutput(index int) *OutputTypeError {
	return &OutputTypeError{
		Index: index,
		Msg: fmt.Sprintf("Illegal pipeline output type. The output %d contains a nested `DataNode`. "+
			"Missing list/tuple expansion (*) is the likely cause.", index),
	}
}

// IllegalOutput reports a SetOutputs argument of a type that is neither a
// DataNode nor convertible to a constant source.
func IllegalOutput(index int, goType string) *OutputTypeError {
	return &OutputTypeError{
		Index: index,
		Msg: fmt.Sprintf("Illegal output type. The output %d is a `%s`. "+
			"Allowed types are ``DataNode`` and types convertible to a constant "+
			"(numerical constants, 1D lists/tuple of numbers and ND arrays).", index, goType),
	}
}

// TypeErrorf builds a generic OutputTypeError for output-resolution failures
// that are not tied to one argument, such as building before SetOutputs.
func TypeErrorf(format string, args ...any) *OutputTypeError {
	return &OutputTypeError{Index: -1, Msg: fmt.Sprintf(format, args...)}
}

// ValueError reports an external-source round whose shape does not match the
// declared contract.
type ValueError struct {
	Msg string
}

func (e *ValueError) Error() string { return e.Msg }

// Valuef builds a ValueError from a format string.
func Valuef(format string, args ...any) *ValueError {
	return &ValueError{Msg: fmt.Sprintf(format, args...)}
}

// ShapeMismatchError reports a dense-view request on a ragged batch, or an
// elementwise operation across incompatible shapes.
type ShapeMismatchError struct {
	Msg string
}

func (e *ShapeMismatchError) Error() string { return e.Msg }

// ShapeMismatchf builds a ShapeMismatchError from a format string.
func ShapeMismatchf(format string, args ...any) *ShapeMismatchError {
	return &ShapeMismatchError{Msg: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps an error raised inside an operator's transform during
// Run, attaching the originating node's identity.
type ExecutionError struct {
	NodeID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("error executing '%s': %v", e.NodeID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Execution wraps err with the identity of the node it originated from.
// Already-wrapped errors pass through unchanged so the innermost node wins.
func Execution(nodeID string, err error) error {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecutionError{NodeID: nodeID, Err: err}
}
