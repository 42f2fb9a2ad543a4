package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/ddddddO/gtree"
)

// Edge styles used by ToDOT.
const (
	styleLink      = "solid"
	styleReference = "dashed"
	styleComponent = "dotted"
)

// ToDOT renders the graph in Graphviz DOT format. Source to target edges
// are solid and labelled with their action, reference edges are dashed and
// component-only edges are dotted. Labels are produced by label, which may
// be nil to use logical locations.
func (g *Graph) ToDOT(label func(*Node) string) string {
	if label == nil {
		label = (*Node).Logical
	}

	var sb strings.Builder
	sb.WriteString("digraph BuildGraph {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	ids := make(map[*Node]string, len(g.nodes))
	for i, n := range g.nodes {
		id := fmt.Sprintf("n%d", i)
		ids[n] = id
		shape := ""
		if n.Target() {
			shape = ", style=\"filled,rounded\", fillcolor=\"lightblue\""
		}
		sb.WriteString(fmt.Sprintf("  %s [label=%q%s];\n", id, label(n), shape))
	}
	sb.WriteString("\n")

	for _, n := range g.nodes {
		for _, ref := range n.references {
			sb.WriteString(fmt.Sprintf("  %s -> %s [style=%s];\n", ids[n], ids[ref], styleReference))
		}
		if n.ext == nil {
			continue
		}
		for _, t := range n.ext.order {
			sb.WriteString(fmt.Sprintf("  %s -> %s [style=%s, label=%q];\n",
				ids[n], ids[t], styleLink, n.ext.targets[t]))
		}
		for _, c := range n.ext.components {
			if contains(n.ext.sources, c) {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %s -> %s [style=%s];\n", ids[c], ids[n], styleComponent))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// WriteTree writes the dependency closure of root as an indented tree:
// references first, then components. A node already shown on the current
// branch is marked and not expanded again.
func WriteTree(w io.Writer, root *Node, label func(*Node) string) error {
	if label == nil {
		label = (*Node).Logical
	}
	top := gtree.NewRoot(label(root))
	addBranches(top, root, label, map[*Node]bool{root: true})
	return gtree.OutputFromRoot(w, top)
}

func addBranches(parent *gtree.Node, n *Node, label func(*Node) string, path map[*Node]bool) {
	children := append([]*Node{}, n.references...)
	if n.ext != nil {
		for _, c := range n.ext.components {
			if !contains(children, c) {
				children = append(children, c)
			}
		}
	}
	for _, c := range children {
		if path[c] {
			parent.Add(label(c) + " (cycle)")
			continue
		}
		branch := parent.Add(label(c))
		path[c] = true
		addBranches(branch, c, label, path)
		delete(path, c)
	}
}
