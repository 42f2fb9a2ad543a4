package graph

// Extension is the production bookkeeping of a node that has taken part in
// a source-target link. Components are a superset of sources.
type Extension struct {
	node       *Node
	components []*Node
	sources    []*Node
	targets    map[*Node]string
	order      []*Node
	action     string
	built      bool
}

// Target reports whether the node has sources.
func (e *Extension) Target() bool {
	return len(e.sources) > 0
}

// Action returns the action that builds the node from its sources.
func (e *Extension) Action() string {
	return e.action
}

// ActionFor returns the action that builds target from this node, or "".
func (e *Extension) ActionFor(target *Node) string {
	return e.targets[target]
}

// TargetsBy returns the targets built from this node by action.
func (e *Extension) TargetsBy(action string) []*Node {
	out := []*Node{}
	for _, t := range e.order {
		if e.targets[t] == action {
			out = append(out, t)
		}
	}
	return out
}

// Sources returns the nodes this node is built from.
func (e *Extension) Sources() []*Node {
	return e.sources
}

// Components returns every node involved in building this node.
func (e *Extension) Components() []*Node {
	return e.components
}

// Targets returns the nodes built from this node, in link order.
func (e *Extension) Targets() []*Node {
	return e.order
}

// Succeeded reports whether an action built the node in this session.
func (e *Extension) Succeeded() bool {
	return e.built
}

// SetBuilt records the outcome of the node's action.
func (e *Extension) SetBuilt(flag bool) {
	e.built = flag
}

func (e *Extension) addSource(source *Node, action string) bool {
	if e.action == "" {
		e.action = action
	}
	if e.action != action {
		return false
	}
	added := false
	if !contains(e.sources, source) {
		e.sources = append(e.sources, source)
		added = true
		for _, o := range e.node.interested {
			o.NotifyAddSource(e.node, len(e.sources), len(e.order), action)
		}
	}
	e.addComponent(source)
	return added
}

func (e *Extension) addTarget(target *Node, action string) bool {
	if _, ok := e.targets[target]; ok {
		return false
	}
	e.targets[target] = action
	e.order = append(e.order, target)
	for _, o := range e.node.interested {
		o.NotifyAddTarget(e.node, len(e.sources), len(e.order), action)
	}
	return true
}

func (e *Extension) addComponent(component *Node) bool {
	if contains(e.components, component) {
		return false
	}
	e.components = append(e.components, component)
	return true
}

func contains(nodes []*Node, n *Node) bool {
	for _, existing := range nodes {
		if existing == n {
			return true
		}
	}
	return false
}
