package interp

func registerVariables(r Registry) {
	r.Add("set", 2, 2, `(set <variable-name> <any-expression:value>)
Assigns the value in the local scope and returns it.`, func(c *Call) (Value, error) {
		return assign(c, c.Scope)
	})
	r.Add("set-global", 2, 2, `(set-global <variable-name> <any-expression:value>)
Assigns the value in the global scope and returns it.`, func(c *Call) (Value, error) {
		return assign(c, c.Interp.globals)
	})
	r.Add("def", 1, 1, `(def <variable-name>)
Defines the variable in the local scope, holding (nil).`, func(c *Call) (Value, error) {
		return define(c, c.Scope)
	})
	r.Add("def-global", 1, 1, `(def-global <variable-name>)
Defines the variable in the global scope, holding (nil).`, func(c *Call) (Value, error) {
		return define(c, c.Interp.globals)
	})

	r.Add("expand", 1, 1, `(expand <any-expression>)
Expands variable references held in the value. Vectors are expanded
element by element.`, builtinExpand)

	r.Add("option", 1, 2, `(option <any-expression:name> [<any-expression:value>])
Returns an interpreter option, after setting it when a value is supplied.
Options: def-before-set, print-separator, print-terminator, report,
report-def-production, report-def-analyzer, report-def-action.`, builtinOption)
}

func assign(c *Call, scope *Scope) (Value, error) {
	name, err := c.Text(1, AllowVariableName)
	if err != nil {
		return nil, err
	}
	v, err := c.Param(2, AllowAnyExpression)
	if err != nil {
		return nil, err
	}
	if err := scope.Set(name, v, c.Interp.DefBeforeSet()); err != nil {
		return nil, err
	}
	return v, nil
}

func define(c *Call, scope *Scope) (Value, error) {
	name, err := c.Text(1, AllowVariableName)
	if err != nil {
		return nil, err
	}
	if err := scope.Define(name, "", c.Interp.DefBeforeSet()); err != nil {
		return nil, err
	}
	return "", nil
}

func builtinExpand(c *Call) (Value, error) {
	v, err := c.Param(1, AllowAnyExpression)
	if err != nil {
		return nil, err
	}
	l, ok := v.(List)
	if !ok {
		return c.Interp.Expand(String(v), c.Scope), nil
	}
	out := make(List, len(l))
	for i, e := range l {
		if _, nested := e.(List); nested {
			out[i] = e
			continue
		}
		out[i] = c.Interp.Expand(String(e), c.Scope)
	}
	return out, nil
}

func builtinOption(c *Call) (Value, error) {
	name, err := c.Scalar(1)
	if err != nil {
		return nil, err
	}
	if c.Arity() == 2 {
		v, err := c.Param(2, AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		if err := c.Interp.SetOption(name, v); err != nil {
			return nil, err
		}
	}
	v, ok := c.Interp.Option(name)
	if !ok {
		return nil, c.ParamError(1, "unknown option: "+name)
	}
	return Scalarize(v), nil
}
