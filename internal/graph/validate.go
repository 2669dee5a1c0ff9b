package graph

import "github.com/vk/gridfeed/internal/faults"

// validate runs full-graph checks after the output list is known: cycle
// detection over data and ordered-session edges, and a reachability pass
// flagging nodes that can never contribute to any declared output.
func (b *Builder) validate(outputs []DataNode) error {
	if len(outputs) == 0 {
		return faults.Graphf("pipeline declares no outputs")
	}
	if err := b.detectCycles(); err != nil {
		return err
	}
	return b.checkReachable(outputs)
}

// detectCycles checks for circular dependencies using DFS. Insertion order
// normally guarantees acyclicity; this guards the invariant against future
// edge kinds.
func (b *Builder) detectCycles() error {
	visiting := make(map[*Node]bool)
	visited := make(map[*Node]bool)

	var visit func(node *Node) error
	visit = func(node *Node) error {
		visiting[node] = true
		for _, dep := range node.deps() {
			if visiting[dep] {
				return faults.Graphf("cycle detected involving '%s'", dep.ID)
			}
			if !visited[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, node)
		visited[node] = true
		return nil
	}

	for _, node := range b.nodes {
		if !visited[node] {
			if err := visit(node); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkReachable walks backwards from the declared outputs; any node the
// walk never reaches is dangling and the graph is rejected.
func (b *Builder) checkReachable(outputs []DataNode) error {
	reached := make(map[*Node]bool, len(b.nodes))
	var visit func(node *Node)
	visit = func(node *Node) {
		if reached[node] {
			return
		}
		reached[node] = true
		for _, dep := range node.deps() {
			visit(dep)
		}
	}
	for _, out := range outputs {
		visit(out.node)
	}
	for _, node := range b.nodes {
		if !reached[node] {
			return faults.Graphf("node '%s' does not contribute to any declared output", node.ID)
		}
	}
	return nil
}
