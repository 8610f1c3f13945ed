package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpSymbols = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (op BinaryOp) String() string {
	return binaryOpSymbols[op]
}

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is one node of a parsed formula. nodes are immutable after
// parsing and own their children.
type ASTNode interface {
	Eval(ctx *EvalContext) Value
	GetPosition() NodePosition
	ToString() string
}

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) Eval(ctx *EvalContext) Value {
	return Text(n.Value)
}

func (n *StringNode) GetPosition() NodePosition {
	return n.Position
}

func (n *StringNode) ToString() string {
	// escape quotes in string
	escaped := strings.ReplaceAll(n.Value, "\"", "\"\"")
	return fmt.Sprintf("\"%s\"", escaped)
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) Eval(ctx *EvalContext) Value {
	return Number(n.Value)
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) ToString() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) Eval(ctx *EvalContext) Value {
	return Bool(n.Value)
}

func (n *BooleanNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BooleanNode) ToString() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// ErrorNode represents an error literal such as #N/A written in the formula
type ErrorNode struct {
	Code     ErrorCode
	Position NodePosition
}

func (n *ErrorNode) Eval(ctx *EvalContext) Value {
	return Err(n.Code)
}

func (n *ErrorNode) GetPosition() NodePosition {
	return n.Position
}

func (n *ErrorNode) ToString() string {
	return n.Code.String()
}

// CellRefNode represents a single cell reference
type CellRefNode struct {
	Address  CellAddress
	Position NodePosition
}

func (n *CellRefNode) Eval(ctx *EvalContext) Value {
	return ctx.resolveCell(n.Address)
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	return n.Address.String()
}

// RangeNode represents a rectangular range of cells
type RangeNode struct {
	Range    RangeAddress
	Position NodePosition
}

func (n *RangeNode) Eval(ctx *EvalContext) Value {
	return ctx.resolveRange(n.Range)
}

func (n *RangeNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeNode) ToString() string {
	local := n.Range.Start.Local() + ":" + n.Range.End.Local()
	if n.Range.Sheet == "" {
		return local
	}
	return QuoteSheetName(n.Range.Sheet) + "!" + local
}

// NameNode represents a defined name, optionally sheet-scoped
type NameNode struct {
	Sheet    string
	Name     string
	Position NodePosition
}

func (n *NameNode) Eval(ctx *EvalContext) Value {
	target, code := ctx.expandName(n)
	if code != noError {
		return Err(code)
	}
	return ctx.Eval(target)
}

func (n *NameNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NameNode) ToString() string {
	if n.Sheet == "" {
		return n.Name
	}
	return QuoteSheetName(n.Sheet) + "!" + n.Name
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(ctx *EvalContext) Value {
	// a left-associative chain such as 1+2+3+... is folded in a loop so
	// operand count does not count against the depth ceiling. both sides of
	// each step are evaluated before any error check; the left error wins.
	spine := []*BinaryOpNode{n}
	for {
		left, ok := spine[len(spine)-1].Left.(*BinaryOpNode)
		if !ok {
			break
		}
		spine = append(spine, left)
	}
	acc := ctx.Eval(spine[len(spine)-1].Left)
	for i := len(spine) - 1; i >= 0; i-- {
		right := ctx.Eval(spine[i].Right)
		acc = ctx.applyBinary(spine[i].Op, acc, right)
	}
	return acc
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), n.Op.String(), n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ctx *EvalContext) Value {
	return ctx.applyUnary(n.Op, ctx.Eval(n.Operand))
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	switch n.Op {
	case UnaryOpPlus:
		return "+" + n.Operand.ToString()
	case UnaryOpMinus:
		return "-" + n.Operand.ToString()
	}
	return fmt.Sprintf("(%s%%)", n.Operand.ToString())
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) Eval(ctx *EvalContext) Value {
	return ctx.call(n)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// ArrayNode represents an array constant such as {1,2;3,4}
type ArrayNode struct {
	Rows     [][]ASTNode
	Position NodePosition
}

func (n *ArrayNode) Eval(ctx *EvalContext) Value {
	rows := make([][]Value, len(n.Rows))
	for i, row := range n.Rows {
		rows[i] = make([]Value, len(row))
		for j, elem := range row {
			rows[i][j] = ctx.Eval(elem)
		}
	}
	return Array(rows)
}

func (n *ArrayNode) GetPosition() NodePosition {
	return n.Position
}

func (n *ArrayNode) ToString() string {
	rows := make([]string, len(n.Rows))
	for i, row := range n.Rows {
		cols := make([]string, len(row))
		for j, elem := range row {
			cols[j] = elem.ToString()
		}
		rows[i] = strings.Join(cols, ",")
	}
	return "{" + strings.Join(rows, ";") + "}"
}

// MissingArgNode represents an omitted argument such as the middle of
// IF(A1,,1)
type MissingArgNode struct {
	Position NodePosition
}

func (n *MissingArgNode) Eval(ctx *EvalContext) Value {
	return Blank()
}

func (n *MissingArgNode) GetPosition() NodePosition {
	return n.Position
}

func (n *MissingArgNode) ToString() string {
	return ""
}

// Walk visits node and its descendants depth-first, stopping a branch when
// fn returns false.
func Walk(node ASTNode, fn func(ASTNode) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *BinaryOpNode:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryOpNode:
		Walk(n.Operand, fn)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	case *ArrayNode:
		for _, row := range n.Rows {
			for _, elem := range row {
				Walk(elem, fn)
			}
		}
	}
}
