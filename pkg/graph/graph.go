// Package graph holds the dependency graph of a build session.
//
// Every file the build knows about is a Node, indexed by its absolute
// logical location. Nodes gain source, target and component bookkeeping the
// first time they take part in a production link. Edges are added with
// query-before-insert semantics: each add reports whether it changed
// anything, so callers can tell new work from repeated declarations.
package graph

import (
	"github.com/rs/zerolog"

	"github.com/tapestry/tapestry/pkg/fault"
)

// Owner is the zone a node belongs to, as far as the graph needs to know.
type Owner interface {
	// Home returns the owner's home directory.
	Home() string

	// ActualTarget maps a logical target location to the physical path
	// the owner writes it to.
	ActualTarget(logical string) string
}

// Observer receives notifications when a node gains sources or targets.
type Observer interface {
	NotifyAddSource(n *Node, sources, targets int, action string)
	NotifyAddTarget(n *Node, sources, targets int, action string)
}

// Resolver finds the owner of a location, or returns nil.
type Resolver func(location string) Owner

// Graph indexes every node of a session by logical location.
type Graph struct {
	nodes    []*Node
	index    map[string]*Node
	locked   bool
	resolver Resolver
	logger   zerolog.Logger
}

// New creates an empty graph. resolver may be nil, in which case nodes are
// never owned.
func New(resolver Resolver, logger zerolog.Logger) *Graph {
	if resolver == nil {
		resolver = func(string) Owner { return nil }
	}
	return &Graph{
		index:    make(map[string]*Node),
		resolver: resolver,
		logger:   logger.With().Str("component", "graph").Logger(),
	}
}

// Find returns the node at location. When insist is set a missing node is
// a location error.
func (g *Graph) Find(location string, insist bool) (*Node, error) {
	n, ok := g.index[location]
	if !ok && insist {
		return nil, fault.New(fault.KindLocation, "unable to find named target in build graph").
			With("location", location)
	}
	return n, nil
}

// Exists reports whether a node is indexed at location.
func (g *Graph) Exists(location string) bool {
	_, ok := g.index[location]
	return ok
}

// Produce returns the node at location, creating it when missing.
func (g *Graph) Produce(location string) *Node {
	if n, ok := g.index[location]; ok {
		return n
	}
	n, _ := g.create(location)
	return n
}

func (g *Graph) create(location string) (*Node, error) {
	n := newNode(g, location)
	if err := g.add(n); err != nil {
		return nil, err
	}
	g.nodes = append(g.nodes, n)
	g.logger.Trace().Str("location", location).Msg("node created")
	if g.locked {
		n.Lockdown()
	}
	return n, nil
}

func (g *Graph) add(n *Node) error {
	if _, ok := g.index[n.logical]; ok {
		return fault.New(fault.KindLocation, "unresolvable name collision when adding node to graph index").
			With("location", n.logical)
	}
	g.index[n.logical] = n
	return nil
}

// Nodes returns every node in creation order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Locked reports whether Lockdown has run.
func (g *Graph) Locked() bool {
	return g.locked
}

// Reference records that from depends on to. It reports whether a new edge
// was added. A non-empty analyzer name that already ran on from adds
// nothing.
func (g *Graph) Reference(from, to, analyzer string) bool {
	return g.Produce(from).addReference(g.Produce(to), analyzer)
}

// ReferenceMany records the references an analyzer found for from. It
// reports false when the analyzer already ran on from.
func (g *Graph) ReferenceMany(from string, tos []string, analyzer string) bool {
	n := g.Produce(from)
	targets := make([]*Node, len(tos))
	for i, to := range tos {
		targets[i] = g.Produce(to)
	}
	return n.addReferences(targets, analyzer)
}

// Component records that component takes part in building of.
func (g *Graph) Component(component, of string) bool {
	return g.Produce(of).extension().addComponent(g.Produce(component))
}

// Link records that target is built from source by action. Both directions
// are updated together; a mismatch means the target already has sources
// built by another action.
func (g *Graph) Link(source, target, action string) (bool, error) {
	s, t := g.Produce(source), g.Produce(target)
	down := s.addTarget(t, action)
	up := t.addSource(s, action)
	if down != up {
		return down, fault.New(fault.KindRuntime, "source-target link out of sync").
			With("source", source).
			With("target", target).
			With("action", action).
			WithOrder("source", "target", "action")
	}
	return down, nil
}

// Untouch clears the named flag on every node.
func (g *Graph) Untouch(name string) {
	for _, n := range g.nodes {
		n.Untouch(name)
	}
}

// Lockdown fixes the owner and physical path of every node. Nodes created
// afterwards are locked down as they are created.
func (g *Graph) Lockdown() {
	for _, n := range g.nodes {
		n.Lockdown()
	}
	g.locked = true
}
