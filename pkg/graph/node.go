package graph

import (
	"os"
	"path/filepath"
	"time"
)

// Node is one file known to the build.
type Node struct {
	graph    *Graph
	logical  string
	actual   string
	filename string

	touched    map[string]bool
	references []*Node
	referenced map[*Node]bool
	attributes map[string]interface{}
	analyzers  []string
	interested []Observer
	owner      Owner

	ext *Extension
}

func newNode(g *Graph, location string) *Node {
	return &Node{
		graph:      g,
		logical:    location,
		actual:     location,
		filename:   filepath.Base(location),
		touched:    make(map[string]bool),
		referenced: make(map[*Node]bool),
		attributes: make(map[string]interface{}),
	}
}

// Logical returns the location the node is indexed by.
func (n *Node) Logical() string { return n.logical }

// Actual returns the physical path used for file operations.
func (n *Node) Actual() string { return n.actual }

// Filename returns the base name of the logical location.
func (n *Node) Filename() string { return n.filename }

// String implements fmt.Stringer.
func (n *Node) String() string { return n.logical }

// Exists reports whether the physical file exists.
func (n *Node) Exists() bool {
	_, err := os.Stat(n.actual)
	return err == nil
}

// Modified returns the physical file's modification time, or the zero time
// when the file is missing.
func (n *Node) Modified() time.Time {
	info, err := os.Stat(n.actual)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Newer reports whether the node was modified after base. With references
// set, the node's references are checked too, transitively; a reference
// already on the current path is skipped so cycles terminate.
func (n *Node) Newer(base time.Time, references bool) bool {
	return n.newer(base, references, map[*Node]bool{n: true})
}

func (n *Node) newer(base time.Time, references bool, path map[*Node]bool) bool {
	if n.Modified().After(base) {
		return true
	}
	if !references {
		return false
	}
	for _, ref := range n.references {
		if path[ref] {
			continue
		}
		path[ref] = true
		newer := ref.newer(base, true, path)
		delete(path, ref)
		if newer {
			return true
		}
	}
	return false
}

// Owner returns the zone that owns the node. Before lockdown the owner is
// looked up on demand; fallback is returned when no owner is known.
func (n *Node) Owner(fallback Owner) Owner {
	owner := n.owner
	if owner == nil && !n.graph.locked {
		owner = n.graph.resolver(n.logical)
	}
	if owner == nil {
		return fallback
	}
	return owner
}

// Extended reports whether the node has production bookkeeping.
func (n *Node) Extended() bool {
	return n.ext != nil
}

// Extension returns the node's production bookkeeping, or nil.
func (n *Node) Extension() *Extension {
	return n.ext
}

// Target reports whether the node is built from sources.
func (n *Node) Target() bool {
	return n.ext != nil && n.ext.Target()
}

// Analyzed reports whether the named analyzer already ran on the node.
// With no name it reports whether any analyzer ran.
func (n *Node) Analyzed(analyzer string) bool {
	if analyzer == "" {
		return len(n.analyzers) > 0
	}
	for _, a := range n.analyzers {
		if a == analyzer {
			return true
		}
	}
	return false
}

// References returns the nodes this node refers to, in discovery order.
func (n *Node) References() []*Node {
	return n.references
}

// Touched reports whether the named flag is set.
func (n *Node) Touched(name string) bool {
	return n.touched[name]
}

// Touch sets the named flag.
func (n *Node) Touch(name string) {
	n.touched[name] = true
}

// Untouch clears the named flag.
func (n *Node) Untouch(name string) {
	delete(n.touched, name)
}

// Built reports whether a build of the node has started.
func (n *Node) Built() bool {
	return n.Touched("build")
}

// Notify registers an observer for source and target changes.
func (n *Node) Notify(o Observer) {
	for _, existing := range n.interested {
		if existing == o {
			return
		}
	}
	n.interested = append(n.interested, o)
}

// Lockdown fixes the node's owner, and the physical path of a target.
func (n *Node) Lockdown() {
	n.owner = n.graph.resolver(n.logical)
	if n.owner != nil && n.Target() {
		n.actual = n.owner.ActualTarget(n.logical)
	}
}

// Attribute returns a named attribute, or "" when unset.
func (n *Node) Attribute(name string) interface{} {
	v, ok := n.attributes[name]
	if !ok {
		return ""
	}
	return v
}

// SetAttribute stores a named attribute.
func (n *Node) SetAttribute(name string, value interface{}) {
	n.attributes[name] = value
}

// HasAttribute reports whether a named attribute is set.
func (n *Node) HasAttribute(name string) bool {
	_, ok := n.attributes[name]
	return ok
}

func (n *Node) extension() *Extension {
	if n.ext == nil {
		n.ext = &Extension{node: n, targets: make(map[*Node]string)}
	}
	return n.ext
}

func (n *Node) addReferences(nodes []*Node, analyzer string) bool {
	if n.Analyzed(analyzer) {
		return false
	}
	n.analyzers = append(n.analyzers, analyzer)
	for _, ref := range nodes {
		n.addReference(ref, "")
	}
	return true
}

func (n *Node) addReference(ref *Node, analyzer string) bool {
	if analyzer != "" {
		if n.Analyzed(analyzer) {
			return false
		}
		n.analyzers = append(n.analyzers, analyzer)
	}
	if ref == n || n.referenced[ref] {
		return false
	}
	n.referenced[ref] = true
	n.references = append(n.references, ref)
	return true
}

func (n *Node) addSource(source *Node, action string) bool {
	return n.extension().addSource(source, action)
}

func (n *Node) addTarget(target *Node, action string) bool {
	return n.extension().addTarget(target, action)
}
