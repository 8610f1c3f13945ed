package formula

import (
	"math"
)

// Call is one function invocation. helpers such as Num and Str record the
// first coercion failure; after that they return zero values and Failure
// reports the error, so implementations read all arguments first and check
// once.
type Call struct {
	Name  string
	Args  []Value
	ctx   *EvalContext
	nodes []ASTNode
	spec  FunctionSpec
	lazy  []*Value
	err   ErrorCode
}

// Len returns the number of argument slots, including empty ones.
func (c *Call) Len() int { return len(c.nodes) }

// Context returns the evaluation context of the call.
func (c *Call) Context() *EvalContext { return c.ctx }

// Engine returns the engine running the call.
func (c *Call) Engine() *Engine { return c.ctx.engine }

// Node returns the unevaluated argument expression.
func (c *Call) Node(i int) ASTNode {
	if i < 0 || i >= len(c.nodes) {
		return nil
	}
	return c.nodes[i]
}

// IsMissing reports whether argument i was omitted, either past the end of
// the list or as an empty slot.
func (c *Call) IsMissing(i int) bool {
	if i < 0 || i >= len(c.nodes) {
		return true
	}
	_, missing := c.nodes[i].(*MissingArgNode)
	return missing
}

// Has reports whether argument i was supplied.
func (c *Call) Has(i int) bool { return !c.IsMissing(i) }

// Arg returns the value of argument i, evaluating it on first use for lazy
// functions. absent arguments are Blank.
func (c *Call) Arg(i int) Value {
	if i < 0 || i >= len(c.nodes) {
		return Blank()
	}
	if c.Args != nil {
		return c.Args[i]
	}
	if c.lazy == nil {
		c.lazy = make([]*Value, len(c.nodes))
	}
	if c.lazy[i] == nil {
		v := c.ctx.Eval(c.nodes[i])
		c.lazy[i] = &v
	}
	return *c.lazy[i]
}

// Eval evaluates argument i afresh, bypassing any cached value.
func (c *Call) Eval(i int) Value {
	if i < 0 || i >= len(c.nodes) {
		return Blank()
	}
	return c.ctx.Eval(c.nodes[i])
}

// IsRef reports whether argument i is written as a reference.
func (c *Call) IsRef(i int) bool {
	if i < 0 || i >= len(c.nodes) {
		return false
	}
	return c.ctx.isReference(c.nodes[i])
}

// Ref returns the range argument i refers to. ok is false when the argument
// is not a reference.
func (c *Call) Ref(i int) (RangeAddress, ErrorCode, bool) {
	if i < 0 || i >= len(c.nodes) {
		return RangeAddress{}, noError, false
	}
	return c.ctx.referenceOf(c.nodes[i])
}

func (c *Call) fail(code ErrorCode) {
	if c.err == noError {
		c.err = code
	}
}

// Fail records code as the call's failure unless one is already recorded.
func (c *Call) Fail(code ErrorCode) { c.fail(code) }

// Failed reports whether a helper recorded an error.
func (c *Call) Failed() bool { return c.err != noError }

// Failure returns the recorded error as a Value.
func (c *Call) Failure() Value { return Err(c.err) }

// Scalar returns argument i as a single value, recording #VALUE! for
// multi-cell arrays and the error for error values.
func (c *Call) Scalar(i int) Value {
	v := c.Arg(i).Scalar()
	if v.Type == ValueTypeError {
		c.fail(v.Err)
	}
	return v
}

// Num returns argument i as a number.
func (c *Call) Num(i int) float64 {
	n, code := ToNumber(c.Arg(i))
	if code != noError {
		c.fail(code)
		return 0
	}
	return n
}

// NumOr returns argument i as a number, or def when it was omitted.
func (c *Call) NumOr(i int, def float64) float64 {
	if c.IsMissing(i) {
		return def
	}
	return c.Num(i)
}

// Int returns argument i truncated toward zero.
func (c *Call) Int(i int) int {
	return truncInt(c.Num(i))
}

// IntOr returns argument i truncated toward zero, or def when omitted.
func (c *Call) IntOr(i int, def int) int {
	if c.IsMissing(i) {
		return def
	}
	return c.Int(i)
}

// Str returns argument i as text.
func (c *Call) Str(i int) string {
	s, code := ToText(c.Arg(i))
	if code != noError {
		c.fail(code)
		return ""
	}
	return s
}

// StrOr returns argument i as text, or def when omitted.
func (c *Call) StrOr(i int, def string) string {
	if c.IsMissing(i) {
		return def
	}
	return c.Str(i)
}

// Bool returns argument i as a boolean.
func (c *Call) Bool(i int) bool {
	b, code := ToBool(c.Arg(i))
	if code != noError {
		c.fail(code)
		return false
	}
	return b
}

// BoolOr returns argument i as a boolean, or def when omitted.
func (c *Call) BoolOr(i int, def bool) bool {
	if c.IsMissing(i) {
		return def
	}
	return c.Bool(i)
}

// Array returns argument i as an array value; scalars become 1x1 arrays.
func (c *Call) Array(i int) Value {
	v := c.Arg(i)
	if v.Type == ValueTypeError {
		c.fail(v.Err)
		return Array([][]Value{{v}})
	}
	if v.Type != ValueTypeArray {
		return Array([][]Value{{v}})
	}
	return v
}

func truncInt(f float64) int {
	const limit = 1 << 53
	switch {
	case f > limit:
		return limit
	case f < -limit:
		return -limit
	}
	return int(math.Trunc(f))
}

// mapNumber applies fn to argument i element-wise, so single-argument math
// functions work on arrays as well as scalars.
func mapNumber(c *Call, i int, fn func(x float64) Value) Value {
	return mapValues(c.Arg(i), func(v Value) Value {
		n, code := ToNumber(v)
		if code != noError {
			return Err(code)
		}
		return fn(n)
	})
}

// map2Number applies fn element-wise over arguments i and j.
func map2Number(c *Call, i, j int, def float64, fn func(x, y float64) Value) Value {
	a := c.Arg(i)
	var b Value
	if c.IsMissing(j) {
		b = Number(def)
	} else {
		b = c.Arg(j)
	}
	f := func(x, y Value) Value {
		xn, code := ToNumber(x)
		if code != noError {
			return Err(code)
		}
		yn, code := ToNumber(y)
		if code != noError {
			return Err(code)
		}
		return fn(xn, yn)
	}
	if a.Type != ValueTypeArray && b.Type != ValueTypeArray {
		return f(a, b)
	}
	return broadcast2(a, b, f)
}

// collectOptions controls how aggregate functions read their arguments
type collectOptions struct {
	// textAndBools counts text in references as 0 and booleans as 1 or 0,
	// as the A-suffixed functions do
	textAndBools bool
	// skipErrors ignores error values instead of failing
	skipErrors bool
}

// collectNumbers flattens the arguments of an aggregate. values inside
// references and arrays count only when numeric; direct arguments coerce
// booleans and numeric text, and other text is #VALUE!.
func collectNumbers(c *Call, from int, opts collectOptions) ([]float64, ErrorCode) {
	var nums []float64
	for i := from; i < c.Len(); i++ {
		if _, missing := c.nodes[i].(*MissingArgNode); missing {
			nums = append(nums, 0)
			continue
		}
		v := c.Arg(i)
		if c.IsRef(i) || v.Type == ValueTypeArray {
			for _, cell := range v.Flatten() {
				switch cell.Type {
				case ValueTypeNumber:
					nums = append(nums, cell.Num)
				case ValueTypeError:
					if !opts.skipErrors {
						return nil, cell.Err
					}
				case ValueTypeText:
					if opts.textAndBools {
						nums = append(nums, 0)
					}
				case ValueTypeBool:
					if opts.textAndBools {
						nums = append(nums, boolToFloat(cell.Bool))
					}
				}
			}
			continue
		}
		switch v.Type {
		case ValueTypeError:
			if !opts.skipErrors {
				return nil, v.Err
			}
		case ValueTypeBlank:
			nums = append(nums, 0)
		default:
			n, code := ToNumber(v)
			if code != noError {
				if opts.skipErrors {
					continue
				}
				return nil, code
			}
			nums = append(nums, n)
		}
	}
	return nums, noError
}

// flattenValues flattens every argument from index from onward, keeping
// value kinds.
func flattenValues(c *Call, from int) []Value {
	var out []Value
	for i := from; i < c.Len(); i++ {
		out = append(out, c.Arg(i).Flatten()...)
	}
	return out
}

// numbersOf returns the numeric elements of v, failing on the first error
// element.
func numbersOf(v Value) ([]float64, ErrorCode) {
	var nums []float64
	for _, cell := range v.Flatten() {
		switch cell.Type {
		case ValueTypeNumber:
			nums = append(nums, cell.Num)
		case ValueTypeError:
			return nil, cell.Err
		}
	}
	return nums, noError
}

// pairedNumbers reads two equally sized arrays and keeps positions where
// both are numeric, as CORREL and SLOPE do.
func pairedNumbers(c *Call, i, j int) ([]float64, []float64, ErrorCode) {
	a, b := c.Array(i), c.Array(j)
	if c.Failed() {
		return nil, nil, c.err
	}
	fa, fb := a.Flatten(), b.Flatten()
	if len(fa) != len(fb) {
		return nil, nil, ErrorCodeNA
	}
	var xs, ys []float64
	for k := range fa {
		if fa[k].Type == ValueTypeError {
			return nil, nil, fa[k].Err
		}
		if fb[k].Type == ValueTypeError {
			return nil, nil, fb[k].Err
		}
		if fa[k].Type == ValueTypeNumber && fb[k].Type == ValueTypeNumber {
			xs = append(xs, fa[k].Num)
			ys = append(ys, fb[k].Num)
		}
	}
	return xs, ys, noError
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
