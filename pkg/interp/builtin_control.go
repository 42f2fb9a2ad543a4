package interp

func registerControl(r Registry) {
	r.Add("if", 2, 3, `(if <any-expression:condition> <any-expression:if-true> [<any-expression:if-false>])
Evaluates the condition as a boolean and returns the result of the taken
clause, or (nil). Only the taken clause is evaluated.`, builtinIf)

	r.Add("each", 3, 3, `(each <variable-name> <any-expression:data> <any-expression:body>)
Interprets the body once per element of the data, with the element in the
named variable. Returns the last body result.`, loop(func(acc List, _ Value, v Value) (List, Value) {
		return acc, v
	}))
	r.Add("map", 3, 3, `(map <variable-name> <any-expression:data> <any-expression:body>)
Interprets the body once per element of the data, with the element in the
named variable. Returns the vector of body results.`, loop(func(acc List, _ Value, v Value) (List, Value) {
		acc = append(acc, v)
		return acc, acc
	}))
	r.Add("select", 3, 3, `(select <variable-name> <any-expression:data> <any-expression:body>)
Returns the elements of the data for which the body, interpreted with the
element in the named variable, is true.`, loop(func(acc List, element Value, v Value) (List, Value) {
		if Booleanize(v) {
			acc = append(acc, element)
		}
		return acc, acc
	}))
}

func builtinIf(c *Call) (Value, error) {
	cond, err := c.Boolean(1)
	if err != nil {
		return nil, err
	}
	if cond {
		return c.Param(2, AllowAnyExpression)
	}
	if c.Arity() == 3 {
		return c.Param(3, AllowAnyExpression)
	}
	return "", nil
}

// loop builds an iteration function. step folds each body result into the
// accumulator and returns the running result.
func loop(step func(acc List, element, v Value) (List, Value)) Handler {
	return func(c *Call) (Value, error) {
		variable, err := c.Text(1, AllowVariableName)
		if err != nil {
			return nil, err
		}
		data, err := c.Vector(2)
		if err != nil {
			return nil, err
		}

		acc := List{}
		var result Value = acc
		for _, element := range data {
			if err := c.Scope.Set(variable, element, c.Interp.DefBeforeSet()); err != nil {
				return nil, err
			}
			v, err := c.Param(3, AllowAnyExpression)
			if err != nil {
				return nil, err
			}
			acc, result = step(acc, element, v)
		}
		return result, nil
	}
}
