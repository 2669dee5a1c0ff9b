// Package hclspec builds pipelines from declarative HCL definition files.
// A file carries one pipeline block with the execution parameters, the
// operator instances and the declared outputs:
//
//	pipeline {
//	  batch_size  = 2
//	  num_threads = 4
//
//	  op "reader" "frames" {
//	    sequence_length = 8
//	    count           = 16
//	  }
//	  op "resize" "small" {
//	    inputs   = ["frames"]
//	    resize_x = 32
//	    resize_y = 24
//	  }
//	  outputs = ["small"]
//	}
//
// Operator arguments are handed to the schema layer as evaluated cty
// values; op order in the file is construction order, so inputs must name
// ops defined above them. An input or output reference is an op name,
// optionally with an output index ("decoder.1").
package hclspec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/gridfeed/internal/faults"
	"github.com/vk/gridfeed/internal/graph"
	"github.com/vk/gridfeed/internal/pipeline"
	"github.com/vk/gridfeed/internal/registry"
)

type fileRoot struct {
	Pipeline *pipelineBlock `hcl:"pipeline,block"`
}

type pipelineBlock struct {
	BatchSize     int      `hcl:"batch_size"`
	NumThreads    int      `hcl:"num_threads,optional"`
	DeviceID      *int     `hcl:"device_id,optional"`
	Seed          int64    `hcl:"seed,optional"`
	ExecPipelined bool     `hcl:"exec_pipelined,optional"`
	ExecAsync     bool     `hcl:"exec_async,optional"`
	PrefetchDepth int      `hcl:"prefetch_depth,optional"`
	Outputs       []string `hcl:"outputs"`

	Ops []*opBlock `hcl:"op,block"`
}

type opBlock struct {
	Type string   `hcl:"type,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// Load reads and builds a pipeline definition file, resolving operators
// against the process-wide registry.
func Load(path string) (*pipeline.Pipeline, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load with an explicit operator registry.
func LoadWith(path string, reg *registry.Registry) (*pipeline.Pipeline, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline file %s: %w", path, diags)
	}
	return build(file, reg)
}

// Parse builds a pipeline from in-memory HCL source.
func Parse(src []byte, filename string) (*pipeline.Pipeline, error) {
	return ParseWith(src, filename, nil)
}

// ParseWith is Parse with an explicit operator registry.
func ParseWith(src []byte, filename string, reg *registry.Registry) (*pipeline.Pipeline, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline source %s: %w", filename, diags)
	}
	return build(file, reg)
}

func build(file *hcl.File, reg *registry.Registry) (*pipeline.Pipeline, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline definition: %w", diags)
	}
	if root.Pipeline == nil {
		return nil, faults.Configf("pipeline definition file has no pipeline block")
	}
	def := root.Pipeline

	numThreads := def.NumThreads
	if numThreads == 0 {
		numThreads = 1
	}
	p, err := pipeline.New(pipeline.Config{
		BatchSize:     def.BatchSize,
		NumThreads:    numThreads,
		DeviceID:      def.DeviceID,
		Seed:          def.Seed,
		ExecPipelined: def.ExecPipelined,
		ExecAsync:     def.ExecAsync,
		PrefetchDepth: def.PrefetchDepth,
		Registry:      reg,
	})
	if err != nil {
		return nil, err
	}

	produced := make(map[string][]graph.DataNode, len(def.Ops))
	for _, op := range def.Ops {
		args, inputRefs, err := decodeOpBody(op)
		if err != nil {
			return nil, err
		}
		inputs := make([]any, len(inputRefs))
		for i, ref := range inputRefs {
			dn, err := resolveRef(produced, ref)
			if err != nil {
				return nil, faults.Configf("op '%s' input %d: %v", op.Name, i, err)
			}
			inputs[i] = dn
		}
		if _, exists := produced[op.Name]; exists {
			return nil, faults.Configf("duplicate op name '%s'", op.Name)
		}
		outs, err := p.Add(op.Type, op.Name, args, inputs...)
		if err != nil {
			return nil, err
		}
		produced[op.Name] = outs
	}

	outputs := make([]any, len(def.Outputs))
	for i, ref := range def.Outputs {
		dn, err := resolveRef(produced, ref)
		if err != nil {
			return nil, faults.Configf("output %d: %v", i, err)
		}
		outputs[i] = dn
	}
	if err := p.SetOutputs(outputs...); err != nil {
		return nil, err
	}
	if err := p.Build(); err != nil {
		return nil, err
	}
	return p, nil
}

// decodeOpBody evaluates every attribute of an op block. The reserved
// 'inputs' attribute is split off as references; everything else goes to
// the operator's argument schema as a cty value.
func decodeOpBody(op *opBlock) (pipeline.Args, []string, error) {
	attrs, diags := op.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to read arguments of op '%s': %w", op.Name, diags)
	}

	args := make(pipeline.Args, len(attrs))
	var inputRefs []string
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to evaluate '%s' of op '%s': %w", name, op.Name, diags)
		}
		if name == "inputs" {
			if !val.CanIterateElements() {
				return nil, nil, faults.Configf("op '%s': inputs must be a list of op names", op.Name)
			}
			for it := val.ElementIterator(); it.Next(); {
				_, ref := it.Element()
				if !ref.Type().Equals(cty.String) {
					return nil, nil, faults.Configf("op '%s': inputs must be a list of op names", op.Name)
				}
				inputRefs = append(inputRefs, ref.AsString())
			}
			continue
		}
		args[name] = val
	}
	return args, inputRefs, nil
}

// resolveRef maps "name" or "name.N" onto a produced DataNode.
func resolveRef(produced map[string][]graph.DataNode, ref string) (graph.DataNode, error) {
	name, idxStr, hasIdx := strings.Cut(ref, ".")
	outs, ok := produced[name]
	if !ok {
		return graph.DataNode{}, faults.Configf("unknown op '%s'", name)
	}
	idx := 0
	if hasIdx {
		var err error
		idx, err = strconv.Atoi(idxStr)
		if err != nil {
			return graph.DataNode{}, faults.Configf("bad output index in reference '%s'", ref)
		}
	}
	if idx < 0 || idx >= len(outs) {
		return graph.DataNode{}, faults.Configf("reference '%s' is out of range: op '%s' has %d output(s)", ref, name, len(outs))
	}
	return outs[idx], nil
}
