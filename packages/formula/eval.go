package formula

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Resolver supplies cell values to the evaluator. ctx is scoped to the cell
// being resolved, so a resolver that stores formulas evaluates them with
// ctx.EvalFormula or ctx.EvalString and cycle detection follows the chain.
// a resolver that calls Engine.Eval or Engine.Evaluate instead must pass
// Within(ctx); a fresh top-level call starts an empty resolving set and
// depth counter, so a cycle through it recurses until the stack runs out.
// the bool result is false when the cell holds no value.
type Resolver interface {
	Resolve(ctx *EvalContext, addr CellAddress) (Value, bool)
}

// ResolverFunc adapts a plain function to Resolver
type ResolverFunc func(ctx *EvalContext, addr CellAddress) (Value, bool)

func (f ResolverFunc) Resolve(ctx *EvalContext, addr CellAddress) (Value, bool) {
	return f(ctx, addr)
}

// NameResolver is implemented by resolvers that know defined names. the
// returned text is a formula, usually a reference such as "Sheet1!$A$1:$B$4".
type NameResolver interface {
	ResolveName(sheet, name string) (string, bool)
}

// SheetLister is implemented by resolvers that can enumerate sheets, which
// SHEET and SHEETS need.
type SheetLister interface {
	Sheets() []string
}

type evalState struct {
	resolving map[CellKey]struct{}
	depth     int
	maxDepth  int
}

// EvalContext carries everything one evaluation needs. contexts for nested
// cells share the same resolving set and depth counter.
type EvalContext struct {
	engine    *Engine
	resolver  Resolver
	sheet     string
	cell      CellAddress
	hasCell   bool
	arrayMode bool
	state     *evalState
	inherited bool
}

// Engine returns the engine running this evaluation.
func (ctx *EvalContext) Engine() *Engine { return ctx.engine }

// Resolver returns the resolver supplied by the caller.
func (ctx *EvalContext) Resolver() Resolver { return ctx.resolver }

// Sheet returns the sheet unqualified references resolve against.
func (ctx *EvalContext) Sheet() string { return ctx.sheet }

// Cell returns the cell that owns the formula being evaluated, if known.
func (ctx *EvalContext) Cell() (CellAddress, bool) { return ctx.cell, ctx.hasCell }

// Now returns the engine clock's time.
func (ctx *EvalContext) Now() time.Time { return ctx.engine.clock.Now() }

// Random returns a number in [0, 1) from the engine's generator.
func (ctx *EvalContext) Random() float64 { return ctx.engine.random.Float64() }

// Date1904 reports whether the 1904 date system is active.
func (ctx *EvalContext) Date1904() bool { return ctx.engine.date1904 }

// Eval evaluates a node, enforcing the depth ceiling.
func (ctx *EvalContext) Eval(node ASTNode) Value {
	ctx.state.depth++
	defer func() { ctx.state.depth-- }()
	if ctx.state.depth > ctx.state.maxDepth {
		ctx.engine.logger.Debug("evaluation depth limit reached",
			zap.Int("max_depth", ctx.state.maxDepth),
			zap.String("sheet", ctx.sheet))
		return Err(ErrorCodeCircular)
	}
	return node.Eval(ctx)
}

// EvalFormula evaluates a parsed formula within this context, typically
// from inside Resolver.Resolve.
func (ctx *EvalContext) EvalFormula(f *Formula) Value {
	return ctx.Eval(f.Root)
}

// EvalString parses and evaluates formula text within this context.
func (ctx *EvalContext) EvalString(src string) (Value, error) {
	f, err := ctx.engine.Parse(src)
	if err != nil {
		return Value{}, err
	}
	return ctx.EvalFormula(f), nil
}

// ResolveCell resolves one cell through the resolver with cycle detection.
// blank and missing cells yield Blank.
func (ctx *EvalContext) ResolveCell(addr CellAddress) Value {
	return ctx.resolveCell(addr)
}

// ResolveRange resolves every cell of r into a 2-D array.
func (ctx *EvalContext) ResolveRange(r RangeAddress) Value {
	return ctx.resolveRange(r)
}

func (ctx *EvalContext) resolveCell(addr CellAddress) Value {
	addr = addr.WithSheet(ctx.sheet)
	if !addr.Valid() {
		return Err(ErrorCodeRef)
	}
	if ctx.resolver == nil {
		return Blank()
	}

	key := addr.Key()
	if _, busy := ctx.state.resolving[key]; busy {
		ctx.engine.logger.Debug("circular reference detected", zap.String("cell", addr.String()))
		return Err(ErrorCodeCircular)
	}
	ctx.state.resolving[key] = struct{}{}
	defer delete(ctx.state.resolving, key)

	child := &EvalContext{
		engine:   ctx.engine,
		resolver: ctx.resolver,
		sheet:    addr.Sheet,
		cell:     addr,
		hasCell:  true,
		state:    ctx.state,
	}
	v, ok := ctx.resolver.Resolve(child, addr)
	if !ok {
		return Blank()
	}
	if v.Type == ValueTypeArray {
		if rows, cols := v.Dims(); rows == 0 || cols == 0 {
			return Blank()
		}
		return v.Rows[0][0]
	}
	return v
}

func (ctx *EvalContext) resolveRange(r RangeAddress) Value {
	if r.Sheet == "" {
		r.Sheet = ctx.sheet
		r.Start.Sheet, r.End.Sheet = ctx.sheet, ctx.sheet
	}
	if !r.Start.Valid() || !r.End.Valid() {
		return Err(ErrorCodeRef)
	}
	if r.Size() > ctx.engine.maxRangeCells {
		ctx.engine.logger.Debug("range exceeds cell limit",
			zap.String("range", r.String()),
			zap.Int("max_cells", ctx.engine.maxRangeCells))
		return Err(ErrorCodeRef)
	}
	rows := make([][]Value, r.Rows())
	for i := range rows {
		rows[i] = make([]Value, r.Cols())
		for j := range rows[i] {
			rows[i][j] = ctx.resolveCell(CellAddress{Sheet: r.Sheet, Row: r.Start.Row + i, Col: r.Start.Col + j})
		}
	}
	return Value{Type: ValueTypeArray, Rows: rows}
}

// expandName parses the formula a defined name refers to.
func (ctx *EvalContext) expandName(n *NameNode) (ASTNode, ErrorCode) {
	names, ok := ctx.resolver.(NameResolver)
	if !ok {
		return nil, ErrorCodeName
	}
	sheet := n.Sheet
	if sheet == "" {
		sheet = ctx.sheet
	}
	text, ok := names.ResolveName(sheet, n.Name)
	if !ok {
		return nil, ErrorCodeName
	}
	node, err := ParseFormula(strings.TrimPrefix(strings.TrimSpace(text), "="))
	if err != nil {
		ctx.engine.logger.Debug("defined name does not parse",
			zap.String("name", n.Name), zap.String("refers_to", text), zap.Error(err))
		return nil, ErrorCodeName
	}
	return node, noError
}

// referenceOf reports the range a node refers to without resolving any
// cells. ok is false for nodes that are not references.
func (ctx *EvalContext) referenceOf(node ASTNode) (r RangeAddress, code ErrorCode, ok bool) {
	switch n := node.(type) {
	case *CellRefNode:
		addr := n.Address.WithSheet(ctx.sheet)
		return NewRange(addr, addr), noError, true
	case *RangeNode:
		r := n.Range
		if r.Sheet == "" {
			r.Sheet = ctx.sheet
			r.Start.Sheet, r.End.Sheet = ctx.sheet, ctx.sheet
		}
		return r, noError, true
	case *NameNode:
		target, code := ctx.expandName(n)
		if code != noError {
			return RangeAddress{}, code, true
		}
		ctx.state.depth++
		defer func() { ctx.state.depth-- }()
		if ctx.state.depth > ctx.state.maxDepth {
			return RangeAddress{}, ErrorCodeCircular, true
		}
		return ctx.referenceOf(target)
	case *FunctionCallNode:
		spec, found := ctx.engine.registry.Lookup(n.Name)
		if !found || spec.RefFn == nil {
			return RangeAddress{}, noError, false
		}
		c, code := ctx.prepareCall(spec, n)
		if code != noError {
			return RangeAddress{}, code, true
		}
		r, code := spec.RefFn(c)
		return r, code, true
	}
	return RangeAddress{}, noError, false
}

// isReference reports whether node is syntactically a reference: a cell,
// range, defined name or reference-returning function.
func (ctx *EvalContext) isReference(node ASTNode) bool {
	switch n := node.(type) {
	case *CellRefNode, *RangeNode, *NameNode:
		return true
	case *FunctionCallNode:
		spec, found := ctx.engine.registry.Lookup(n.Name)
		return found && spec.RefFn != nil
	}
	return false
}

func (ctx *EvalContext) withArrayMode() *EvalContext {
	if ctx.arrayMode {
		return ctx
	}
	child := *ctx
	child.arrayMode = true
	return &child
}

// prepareCall checks arity and evaluates eager arguments.
func (ctx *EvalContext) prepareCall(spec FunctionSpec, n *FunctionCallNode) (*Call, ErrorCode) {
	argc := len(n.Args)
	if argc < spec.MinArgs || (spec.MaxArgs >= 0 && argc > spec.MaxArgs) {
		return nil, ErrorCodeValue
	}
	argCtx := ctx
	if spec.ArrayArgs {
		argCtx = ctx.withArrayMode()
	}
	c := &Call{
		Name:  spec.Name,
		ctx:   argCtx,
		nodes: n.Args,
		spec:  spec,
	}
	if !spec.Lazy {
		c.Args = make([]Value, argc)
		for i, arg := range n.Args {
			c.Args[i] = argCtx.Eval(arg)
		}
	}
	return c, noError
}

func (ctx *EvalContext) call(n *FunctionCallNode) Value {
	spec, found := ctx.engine.registry.Lookup(n.Name)
	if !found {
		ctx.engine.logger.Debug("unknown function", zap.String("name", n.Name))
		return Err(ErrorCodeName)
	}
	c, code := ctx.prepareCall(spec, n)
	if code != noError {
		return Err(code)
	}
	if spec.Fn == nil {
		r, code := spec.RefFn(c)
		if code != noError {
			return Err(code)
		}
		if r.Size() == 1 {
			return ctx.resolveCell(r.Start)
		}
		return ctx.resolveRange(r)
	}
	return spec.Fn(c)
}

// applyBinary applies an infix operator. outside array mode a multi-cell
// operand is #VALUE!; in array mode operators apply element by element.
func (ctx *EvalContext) applyBinary(op BinaryOp, left, right Value) Value {
	if left.Type == ValueTypeError {
		return left
	}
	if right.Type == ValueTypeError {
		return right
	}
	if left.Type == ValueTypeArray || right.Type == ValueTypeArray {
		if ctx.arrayMode {
			return broadcast2(left, right, func(a, b Value) Value { return binaryScalar(op, a, b) })
		}
		left, right = left.Scalar(), right.Scalar()
	}
	return binaryScalar(op, left, right)
}

func (ctx *EvalContext) applyUnary(op UnaryOp, v Value) Value {
	if v.Type == ValueTypeArray {
		if ctx.arrayMode {
			return mapValues(v, func(x Value) Value { return unaryScalar(op, x) })
		}
		v = v.Scalar()
	}
	return unaryScalar(op, v)
}

func binaryScalar(op BinaryOp, left, right Value) Value {
	if left.Type == ValueTypeError {
		return left
	}
	if right.Type == ValueTypeError {
		return right
	}

	switch op {
	case BinOpConcat:
		a, _ := ToText(left)
		b, _ := ToText(right)
		return Text(a + b)
	case BinOpEqual:
		return Bool(compareValues(left, right) == 0)
	case BinOpNotEqual:
		return Bool(compareValues(left, right) != 0)
	case BinOpLess:
		return Bool(compareValues(left, right) < 0)
	case BinOpLessEqual:
		return Bool(compareValues(left, right) <= 0)
	case BinOpGreater:
		return Bool(compareValues(left, right) > 0)
	case BinOpGreaterEqual:
		return Bool(compareValues(left, right) >= 0)
	}

	a, code := ToNumber(left)
	if code != noError {
		return Err(code)
	}
	b, code := ToNumber(right)
	if code != noError {
		return Err(code)
	}

	switch op {
	case BinOpAdd:
		return Number(a + b)
	case BinOpSubtract:
		return Number(a - b)
	case BinOpMultiply:
		return Number(a * b)
	case BinOpDivide:
		if b == 0 {
			return Err(ErrorCodeDiv0)
		}
		return Number(a / b)
	case BinOpPower:
		return power(a, b)
	}
	return Err(ErrorCodeValue)
}

func power(a, b float64) Value {
	if a == 0 && b == 0 {
		return Err(ErrorCodeNum)
	}
	if a == 0 && b < 0 {
		return Err(ErrorCodeDiv0)
	}
	return Number(math.Pow(a, b))
}

func unaryScalar(op UnaryOp, v Value) Value {
	if v.Type == ValueTypeError {
		return v
	}
	if op == UnaryOpPlus {
		return v
	}
	n, code := ToNumber(v)
	if code != noError {
		return Err(code)
	}
	if op == UnaryOpMinus {
		return Number(-n)
	}
	return Number(n / 100)
}

// broadcast2 combines two values element by element. single rows and
// columns stretch; positions outside a smaller array are #N/A.
func broadcast2(a, b Value, fn func(x, y Value) Value) Value {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	rows, cols := max(ar, br), max(ac, bc)
	out := make([][]Value, rows)
	for i := range out {
		out[i] = make([]Value, cols)
		for j := range out[i] {
			out[i][j] = fn(a.At(i, j), b.At(i, j))
		}
	}
	return Array(out)
}

// mapValues applies fn to every element of an array, or to a scalar.
func mapValues(v Value, fn func(Value) Value) Value {
	if v.Type != ValueTypeArray {
		return fn(v)
	}
	out := make([][]Value, len(v.Rows))
	for i, row := range v.Rows {
		out[i] = make([]Value, len(row))
		for j, cell := range row {
			out[i][j] = fn(cell)
		}
	}
	return Array(out)
}
