package interp

func registerLogic(r Registry) {
	booleans := []struct {
		name  string
		arity int
		fn    func(a, b bool) bool
		doc   string
	}{
		{"not", 1, func(a, _ bool) bool { return !a }, "logical inverse"},
		{"or", 2, func(a, b bool) bool { return a || b }, "logical or"},
		{"and", 2, func(a, b bool) bool { return a && b }, "logical and"},
		{"xor", 2, func(a, b bool) bool { return a != b }, "logical exclusive or"},
	}
	for _, b := range booleans {
		b := b
		usage := "(" + b.name + " <any-expression>)"
		if b.arity == 2 {
			usage = "(" + b.name + " <any-expression> <any-expression>)"
		}
		usage += "\nConverts the operands to booleans and returns the " + b.doc + ".\n" +
			"(nil), the empty vector, 0 and false are false."
		r.Add(b.name, b.arity, b.arity, usage, func(c *Call) (Value, error) {
			first, err := c.Boolean(1)
			if err != nil {
				return nil, err
			}
			second := false
			if c.Arity() == 2 {
				if second, err = c.Boolean(2); err != nil {
					return nil, err
				}
			}
			return Scalarize(b.fn(first, second)), nil
		})
	}

	r.Add("scalar?", 1, 1, "(scalar? <any-expression>)\nReturns true if the value is a scalar.", typeTest(func(v Value) bool {
		_, ok := v.(string)
		return ok
	}))
	r.Add("vector?", 1, 1, "(vector? <any-expression>)\nReturns true if the value is a vector.", typeTest(func(v Value) bool {
		_, ok := v.(List)
		return ok
	}))

	r.Add("eq?", 2, 2, "(eq? <any-expression> <any-expression>)\nReturns true if the values are identical.", compare(Equal))
	r.Add("gt?", 2, 2, "(gt? <any-expression> <any-expression>)\nCompares the values as integers.", compare(func(a, b Value) bool {
		return Integerize(a) > Integerize(b)
	}))
	r.Add("lt?", 2, 2, "(lt? <any-expression> <any-expression>)\nCompares the values as integers.", compare(func(a, b Value) bool {
		return Integerize(a) < Integerize(b)
	}))

	r.Add("scalar", 1, 1, "(scalar <any-expression>)\nReturns the scalar form of the value; vectors become their length.", convert(func(v Value) Value { return Scalarize(v) }))
	r.Add("vector", 1, 1, "(vector <any-expression>)\nReturns the vector form of the value.", convert(func(v Value) Value { return Vectorize(v) }))
	r.Add("boolean", 1, 1, "(boolean <any-expression>)\nReturns the boolean form of the value.", convert(func(v Value) Value { return Booleanize(v) }))
	r.Add("integer", 1, 1, "(integer <any-expression>)\nReturns the integer form of the value; vectors become their length.", convert(func(v Value) Value { return Integerize(v) }))

	constants := []struct {
		name  string
		value func() Value
		doc   string
	}{
		{"newline", func() Value { return "\n" }, "Returns the newline character."},
		{"space", func() Value { return " " }, "Returns the space character."},
		{"tab", func() Value { return "\t" }, "Returns the tab character."},
		{"nil", func() Value { return "" }, "Returns the empty string."},
		{"empty", func() Value { return List{} }, "Returns the empty vector."},
		{"true", func() Value { return "true" }, "Returns true."},
		{"false", func() Value { return "false" }, "Returns false."},
	}
	for _, k := range constants {
		k := k
		r.Add(k.name, 0, 0, "("+k.name+")\n"+k.doc, func(*Call) (Value, error) {
			return k.value(), nil
		})
	}
}

func typeTest(test func(Value) bool) Handler {
	return func(c *Call) (Value, error) {
		v, err := c.Param(1, AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		return Scalarize(test(v)), nil
	}
}

func compare(test func(a, b Value) bool) Handler {
	return func(c *Call) (Value, error) {
		a, err := c.Param(1, AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		b, err := c.Param(2, AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		return Scalarize(test(a, b)), nil
	}
}

func convert(fn func(Value) Value) Handler {
	return func(c *Call) (Value, error) {
		v, err := c.Param(1, AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		return fn(v), nil
	}
}
