package formula

func logicalFunctions() []FunctionSpec {
	return []FunctionSpec{
		fn("TRUE", CategoryLogical, 0, 0, func(c *Call) Value { return Bool(true) }),
		fn("FALSE", CategoryLogical, 0, 0, func(c *Call) Value { return Bool(false) }),
		lazy("IF", CategoryLogical, 1, 3, fnIf),
		fn("NOT", CategoryLogical, 1, 1, func(c *Call) Value {
			return mapValues(c.Arg(0), func(v Value) Value {
				b, code := ToBool(v)
				if code != noError {
					return Err(code)
				}
				return Bool(!b)
			})
		}),
		arrayFn("AND", CategoryLogical, 1, Variadic, func(c *Call) Value {
			return foldBools(c, true, func(acc, b bool) bool { return acc && b })
		}),
		arrayFn("OR", CategoryLogical, 1, Variadic, func(c *Call) Value {
			return foldBools(c, false, func(acc, b bool) bool { return acc || b })
		}),
		arrayFn("XOR", CategoryLogical, 1, Variadic, func(c *Call) Value {
			return foldBools(c, false, func(acc, b bool) bool { return acc != b })
		}),
		lazy("IFERROR", CategoryLogical, 2, 2, func(c *Call) Value {
			return replaceErrors(c, func(Value) bool { return true })
		}),
		lazy("IFNA", CategoryLogical, 2, 2, func(c *Call) Value {
			return replaceErrors(c, func(v Value) bool { return v.Err == ErrorCodeNA })
		}),
		lazy("IFS", CategoryLogical, 2, Variadic, fnIfs),
		lazy("SWITCH", CategoryLogical, 3, Variadic, fnSwitch),
	}
}

// branch evaluates argument i as the result of a conditional. an empty
// slot is 0 and an absent one FALSE.
func branch(c *Call, i int) Value {
	if i >= c.Len() {
		return Bool(false)
	}
	if c.IsMissing(i) {
		return Number(0)
	}
	v := c.Arg(i)
	if v.Type == ValueTypeBlank {
		return Number(0)
	}
	return v
}

func fnIf(c *Call) Value {
	cond := c.Arg(0)
	if cond.Type == ValueTypeError {
		return cond
	}
	if cond.Type != ValueTypeArray {
		b, code := ToBool(cond)
		if code != noError {
			return Err(code)
		}
		if b {
			return branch(c, 1)
		}
		return branch(c, 2)
	}
	yes, no := branch(c, 1), branch(c, 2)
	rows, cols := cond.Dims()
	for _, v := range []Value{yes, no} {
		r, k := v.Dims()
		rows, cols = max(rows, r), max(cols, k)
	}
	out := make([][]Value, rows)
	for i := range out {
		out[i] = make([]Value, cols)
		for j := range out[i] {
			cell := cond.At(i, j)
			if cell.Type == ValueTypeError {
				out[i][j] = cell
				continue
			}
			b, code := ToBool(cell)
			switch {
			case code != noError:
				out[i][j] = Err(code)
			case b:
				out[i][j] = yes.At(i, j)
			default:
				out[i][j] = no.At(i, j)
			}
		}
	}
	return Array(out)
}

// foldBools combines every logical value in the arguments. text inside
// references is ignored; no logical values at all is #VALUE!.
func foldBools(c *Call, init bool, op func(acc, b bool) bool) Value {
	acc, seen := init, false
	for i := 0; i < c.Len(); i++ {
		v := c.Arg(i)
		if c.IsRef(i) || v.Type == ValueTypeArray {
			for _, cell := range v.Flatten() {
				switch cell.Type {
				case ValueTypeError:
					return cell
				case ValueTypeNumber, ValueTypeBool:
					b, _ := ToBool(cell)
					acc, seen = op(acc, b), true
				}
			}
			continue
		}
		if v.Type == ValueTypeBlank {
			continue
		}
		b, code := ToBool(v)
		if code != noError {
			return Err(code)
		}
		acc, seen = op(acc, b), true
	}
	if !seen {
		return Err(ErrorCodeValue)
	}
	return Bool(acc)
}

// replaceErrors returns argument 0 with every error matching swap replaced
// by argument 1, which is only evaluated when needed.
func replaceErrors(c *Call, swap func(Value) bool) Value {
	v := c.Arg(0)
	fallback := func() Value { return branch(c, 1) }
	switch v.Type {
	case ValueTypeError:
		if swap(v) {
			return fallback()
		}
		return v
	case ValueTypeArray:
		return mapValues(v, func(cell Value) Value {
			if cell.Type == ValueTypeError && swap(cell) {
				return fallback().Scalar()
			}
			return cell
		})
	case ValueTypeBlank:
		return Number(0)
	}
	return v
}

func fnIfs(c *Call) Value {
	if c.Len()%2 != 0 {
		return Err(ErrorCodeValue)
	}
	for i := 0; i < c.Len(); i += 2 {
		cond := c.Arg(i).Scalar()
		if cond.Type == ValueTypeError {
			return cond
		}
		b, code := ToBool(cond)
		if code != noError {
			return Err(code)
		}
		if b {
			return branch(c, i+1)
		}
	}
	return Err(ErrorCodeNA)
}

func fnSwitch(c *Call) Value {
	target := c.Arg(0).Scalar()
	if target.Type == ValueTypeError {
		return target
	}
	i := 1
	for ; i+1 < c.Len(); i += 2 {
		candidate := c.Arg(i).Scalar()
		if candidate.Type == ValueTypeError {
			return candidate
		}
		if valuesEqual(target, candidate) {
			return branch(c, i+1)
		}
	}
	if i < c.Len() {
		return branch(c, i)
	}
	return Err(ErrorCodeNA)
}
