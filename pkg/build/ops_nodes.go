package build

import (
	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/graph"
	"github.com/tapestry/tapestry/pkg/interp"
)

// nodeHandler implements a function on the node named by its first
// parameter, which is resolved against the zone home.
type nodeHandler func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error)

func bindNode(z *Zone, h nodeHandler) interp.Handler {
	return bind(z, func(z *Zone, c *interp.Call) (interp.Value, error) {
		name, err := c.Text(1, interp.AllowLiteralExpression)
		if err != nil {
			return nil, err
		}
		return h(z, c, z.session.graph.Produce(z.loc.OffsetHome(name)))
	})
}

func registerNodes(r interp.Registry, z *Zone) {
	r.Add("target?", 1, 1, `(target? <literal-expression:node-path>)
Returns true if the node is a build target.`, bindNode(z, func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error) {
		return interp.Scalarize(n.Target()), nil
	}))

	r.Add("targets-by", 2, 2, `(targets-by <literal-expression:node-path> <literal-expression:action>)
Returns the targets built from the node by the action.`, bindNode(z, func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error) {
		action, err := c.Text(2, interp.AllowLiteralExpression)
		if err != nil {
			return nil, err
		}
		if !n.Extended() {
			return interp.List{}, nil
		}
		return logicals(n.Extension().TargetsBy(action)), nil
	}))

	r.Add("targets-of", 1, 1, `(targets-of <literal-expression:node-path>)
Returns every target built from the node.`, bindNode(z, extensionList((*graph.Extension).Targets)))

	r.Add("sources-of", 1, 1, `(sources-of <literal-expression:node-path>)
Returns the sources the node is built from.`, bindNode(z, extensionList((*graph.Extension).Sources)))

	r.Add("components-of", 1, 1, `(components-of <literal-expression:node-path>)
Returns the node's components. Its sources are among them.`, bindNode(z, extensionList((*graph.Extension).Components)))

	r.Add("add-component", 2, 2, `(add-component <literal-expression:node-path> <literal-expression:component-path>)
Adds a component to the node. A target is rebuilt when a component is
newer. Returns true if the component was new.`, bindNode(z, func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error) {
		component, err := c.Text(2, interp.AllowLiteralExpression)
		if err != nil {
			return nil, err
		}
		added := z.session.graph.Component(z.loc.OffsetHome(component), n.Logical())
		return interp.Scalarize(added), nil
	}))

	r.Add("attribute?", 2, 2, `(attribute? <literal-expression:node-path> <literal-expression:name>)
Returns true if the node has the attribute.`, bindNode(z, func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error) {
		name, err := c.Text(2, interp.AllowLiteralExpression)
		if err != nil {
			return nil, err
		}
		return interp.Scalarize(n.HasAttribute(name)), nil
	}))

	r.Add("get-attribute", 2, 2, `(get-attribute <literal-expression:node-path> <literal-expression:name>)
Returns the attribute's value, or "" when it is not set.`, bindNode(z, func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error) {
		name, err := c.Text(2, interp.AllowLiteralExpression)
		if err != nil {
			return nil, err
		}
		return n.Attribute(name), nil
	}))

	r.Add("set-attribute", 3, 3, `(set-attribute <literal-expression:node-path> <literal-expression:name> <any-expression:value>)
Sets an attribute on the node.`, bindNode(z, func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error) {
		name, err := c.Text(2, interp.AllowLiteralExpression)
		if err != nil {
			return nil, err
		}
		v, err := c.Param(3, interp.AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		n.SetAttribute(name, v)
		return "", nil
	}))

	r.Add("build-target", 1, 1, `(build-target <literal-expression:node-path>)
Builds the node immediately, with the engine of the zone that owns it.
Normally every zone loads before anything builds; this builds during
loading, for targets the Buildfile itself needs.`, bindNode(z, func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error) {
		engine := z.builder
		if owner, ok := n.Owner(z).(*Zone); ok {
			engine = owner.builder
		}
		if _, err := engine.Build(c.Context(), n, fault.NewSet(1), nil); err != nil {
			return nil, err
		}
		return "", nil
	}))
}

func extensionList(get func(*graph.Extension) []*graph.Node) nodeHandler {
	return func(z *Zone, c *interp.Call, n *graph.Node) (interp.Value, error) {
		if !n.Extended() {
			return interp.List{}, nil
		}
		return logicals(get(n.Extension())), nil
	}
}

func logicals(nodes []*graph.Node) interp.List {
	out := make(interp.List, len(nodes))
	for i, n := range nodes {
		out[i] = n.Logical()
	}
	return out
}
