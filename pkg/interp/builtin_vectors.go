package interp

func registerVectors(r Registry) {
	r.Add("at", 2, 2, `(at <vector-expression:list> <any-expression:position>)
Returns the element at the position, counting from 0; negative positions
count from the end. A vector of positions returns a vector of elements.
Positions outside the list yield (nil).`, builtinAt)

	r.Add("join", 2, 2, `(join <vector-expression:list> <scalar-expression:glue>)
Returns the flattened elements joined by the glue.`, func(c *Call) (Value, error) {
		list, err := c.Param(1, AllowVectorExpression)
		if err != nil {
			return nil, err
		}
		glue, err := c.Text(2, AllowScalarExpression)
		if err != nil {
			return nil, err
		}
		return joinStrings(Strings(list), glue), nil
	})

	r.Add("diff", 2, 2, `(diff <vector-expression> <vector-expression>)
Returns the elements of the first vector not present in the second.`, func(c *Call) (Value, error) {
		a, b, err := twoVectors(c)
		if err != nil {
			return nil, err
		}
		out := List{}
		for _, x := range a {
			if !contains(b, x) {
				out = append(out, x)
			}
		}
		return out, nil
	})

	r.Add("flatten", 1, 1, `(flatten <vector-expression>)
Returns the vector with nested vectors spliced in place.`, func(c *Call) (Value, error) {
		l, err := c.Param(1, AllowVectorExpression)
		if err != nil {
			return nil, err
		}
		return Flatten(l), nil
	})

	r.Add("merge", 2, 2, `(merge <any-expression> <any-expression>)
Converts both values to vectors and returns their concatenation.`, func(c *Call) (Value, error) {
		a, err := c.Vector(1)
		if err != nil {
			return nil, err
		}
		b, err := c.Vector(2)
		if err != nil {
			return nil, err
		}
		out := make(List, 0, len(a)+len(b))
		return append(append(out, a...), b...), nil
	})

	r.Add("reverse", 1, 1, `(reverse <vector-expression>)
Returns the vector in reverse order.`, func(c *Call) (Value, error) {
		v, err := c.Param(1, AllowVectorExpression)
		if err != nil {
			return nil, err
		}
		l := v.(List)
		out := make(List, len(l))
		for i, e := range l {
			out[len(l)-1-i] = e
		}
		return out, nil
	})

	r.Add("member?", 2, 2, `(member? <vector-expression:list> <any-expression:value>)
Returns true if the value is an element of the list.`, func(c *Call) (Value, error) {
		l, err := c.Param(1, AllowVectorExpression)
		if err != nil {
			return nil, err
		}
		v, err := c.Param(2, AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		return Scalarize(contains(l.(List), v)), nil
	})
}

func builtinAt(c *Call) (Value, error) {
	v, err := c.Param(1, AllowVectorExpression)
	if err != nil {
		return nil, err
	}
	list := v.(List)
	positions, err := c.Param(2, AllowAnyExpression)
	if err != nil {
		return nil, err
	}

	index := func(p Value) Value {
		i := Integerize(p)
		if i < 0 {
			i += len(list)
		}
		if i < 0 || i >= len(list) {
			return ""
		}
		return list[i]
	}

	if ps, ok := positions.(List); ok {
		out := make(List, len(ps))
		for i, p := range ps {
			out[i] = index(p)
		}
		return out, nil
	}
	return index(positions), nil
}

func twoVectors(c *Call) (List, List, error) {
	a, err := c.Param(1, AllowVectorExpression)
	if err != nil {
		return nil, nil, err
	}
	b, err := c.Param(2, AllowVectorExpression)
	if err != nil {
		return nil, nil, err
	}
	return a.(List), b.(List), nil
}

func contains(l List, v Value) bool {
	for _, e := range l {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

func joinStrings(parts []string, glue string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += glue
		}
		out += p
	}
	return out
}
