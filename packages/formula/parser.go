package formula

import (
	"strconv"
	"strings"
)

// maxParseDepth bounds recursive descent so deeply nested input fails as a
// parse error instead of exhausting the stack.
const maxParseDepth = 512

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
	depth  int
}

// NewParser creates a new parser with the given tokens. the slice must end
// with TokenEOF, as produced by Lexer.Tokenize.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
	}
}

// ParseFormula tokenizes and parses a formula without its leading "=".
func ParseFormula(src string) (ASTNode, error) {
	tokens, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into a single expression tree
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 || p.peek().Type == TokenEOF {
		return nil, newSyntaxError(0, "empty formula")
	}

	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens except EOF
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, NewParseError(tok.Pos, "end of formula", describe(tok))
	}
	return node, nil
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return Token{}, NewParseError(tok.Pos, tt.String(), describe(tok))
	}
	p.pos++
	return tok, nil
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxParseDepth {
		return newSyntaxError(p.peek().Pos, "formula is nested too deeply")
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

func describe(tok Token) string {
	if tok.Type == TokenEOF {
		return tok.Type.String()
	}
	return strconv.Quote(tok.Value)
}

func span(a, b ASTNode) NodePosition {
	return NodePosition{Start: a.GetPosition().Start, End: b.GetPosition().End}
}

// parseExpression parses the loosest binding level
func (p *Parser) parseExpression() (ASTNode, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseConcatenation()
}

// parseConcatenation handles string concatenation operator (lowest precedence)
func (p *Parser) parseConcatenation() (ASTNode, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp || tok.Value != "&" {
			break
		}

		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{Op: BinOpConcat, Left: left, Right: right, Position: span(left, right)}
	}

	return left, nil
}

// parseComparison handles comparison operators
func (p *Parser) parseComparison() (ASTNode, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "=":
			op = BinOpEqual
		case "<>":
			op = BinOpNotEqual
		case "<":
			op = BinOpLess
		case "<=":
			op = BinOpLessEqual
		case ">":
			op = BinOpGreater
		case ">=":
			op = BinOpGreaterEqual
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}

	return left, nil
}

// parseAdditive handles addition and subtraction
func (p *Parser) parseAdditive() (ASTNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp || (tok.Value != "+" && tok.Value != "-") {
			break
		}

		op := BinOpAdd
		if tok.Value == "-" {
			op = BinOpSubtract
		}

		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}

	return left, nil
}

// parseMultiplicative handles multiplication and division
func (p *Parser) parseMultiplicative() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp || (tok.Value != "*" && tok.Value != "/") {
			break
		}

		op := BinOpMultiply
		if tok.Value == "/" {
			op = BinOpDivide
		}

		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}

	return left, nil
}

// parseUnary handles prefix + and -. they bind looser than ^, so -2^2 is
// -(2^2).
func (p *Parser) parseUnary() (ASTNode, error) {
	tok := p.peek()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePower()
	}

	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	op := UnaryOpMinus
	if tok.Value == "+" {
		op = UnaryOpPlus
	}
	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePower handles exponentiation, which is right-associative. the
// exponent may carry its own sign, as in 2^-1.
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	if tok.Type != TokenBinaryOp || tok.Value != "^" {
		return left, nil
	}

	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &BinaryOpNode{Op: BinOpPower, Left: left, Right: right, Position: span(left, right)}, nil
}

// parsePostfix handles postfix operators (percent)
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokenUnaryPostfixOp {
		tok := p.next()
		node = &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: tok.Pos + 1},
		}
	}

	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses, array constants)
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.peek()

	switch tok.Type {
	case TokenNumber:
		p.pos++
		return p.numberNode(tok, false)

	case TokenString:
		p.pos++
		return &StringNode{Value: tok.Value, Position: tokenSpan(tok)}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE", Position: tokenSpan(tok)}, nil

	case TokenErrorLiteral:
		p.pos++
		code, _ := ParseErrorCode(tok.Value)
		return &ErrorNode{Code: code, Position: tokenSpan(tok)}, nil

	case TokenCell, TokenSheet:
		return p.parseReference()

	case TokenIdentifier:
		p.pos++
		return &NameNode{Name: tok.Value, Position: tokenSpan(tok)}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		p.pos++
		node, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
		return node, nil

	case TokenLeftBrace:
		return p.parseArray()
	}

	return nil, NewParseError(tok.Pos, "expression", describe(tok))
}

func tokenSpan(tok Token) NodePosition {
	return NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))}
}

func (p *Parser) numberNode(tok Token, negate bool) (ASTNode, error) {
	v, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, newSyntaxError(tok.Pos, "malformed number: %s", tok.Value)
	}
	if negate {
		v = -v
	}
	return &NumberNode{Value: v, Position: tokenSpan(tok)}, nil
}

// parseReference parses [Sheet!]cell[:[Sheet!]cell] and sheet-scoped names.
// the sheet qualifier is hoisted to the range as a whole.
func (p *Parser) parseReference() (ASTNode, error) {
	first := p.peek()
	sheet := ""
	if first.Type == TokenSheet {
		p.pos++
		sheet = first.Value
		if tok := p.peek(); tok.Type == TokenIdentifier {
			p.pos++
			return &NameNode{Sheet: sheet, Name: tok.Value, Position: NodePosition{Start: first.Pos, End: tokenSpan(tok).End}}, nil
		}
	}

	cellTok, err := p.expect(TokenCell)
	if err != nil {
		return nil, err
	}
	start, _ := parseLocalCell(cellTok.Value)
	start.Sheet = sheet

	if p.peek().Type != TokenColon {
		return &CellRefNode{
			Address:  start,
			Position: NodePosition{Start: first.Pos, End: tokenSpan(cellTok).End},
		}, nil
	}
	p.pos++ // consume ':'

	if tok := p.peek(); tok.Type == TokenSheet {
		p.pos++
		if !strings.EqualFold(tok.Value, sheet) {
			return nil, newSyntaxError(tok.Pos, "range cannot span worksheets %q and %q", sheet, tok.Value)
		}
	}
	endTok, err := p.expect(TokenCell)
	if err != nil {
		return nil, err
	}
	end, _ := parseLocalCell(endTok.Value)
	end.Sheet = sheet

	return &RangeNode{
		Range:    NewRange(start, end),
		Position: NodePosition{Start: first.Pos, End: tokenSpan(endTok).End},
	}, nil
}

// parseFunctionCall parses NAME(arg, arg, ...). empty slots become
// MissingArgNode. arity is checked at evaluation time.
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	nameTok := p.next()
	if _, err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}

	call := &FunctionCallNode{Name: nameTok.Value, Args: []ASTNode{}}

	if tok := p.peek(); tok.Type == TokenRightParen {
		p.pos++
		call.Position = NodePosition{Start: nameTok.Pos, End: tok.Pos + 1}
		return call, nil
	}

	for {
		tok := p.peek()
		if tok.Type == TokenComma || tok.Type == TokenRightParen {
			call.Args = append(call.Args, &MissingArgNode{Position: NodePosition{Start: tok.Pos, End: tok.Pos}})
		} else {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}

		sep := p.next()
		switch sep.Type {
		case TokenComma:
			continue
		case TokenRightParen:
			call.Position = NodePosition{Start: nameTok.Pos, End: sep.Pos + 1}
			return call, nil
		default:
			return nil, NewParseError(sep.Pos, "',' or ')'", describe(sep))
		}
	}
}

// parseArray parses {1,2;3,4}. elements are literals only and every row
// must have the same width.
func (p *Parser) parseArray() (ASTNode, error) {
	open := p.next()
	node := &ArrayNode{}
	row := []ASTNode{}

	for {
		elem, err := p.parseArrayElement()
		if err != nil {
			return nil, err
		}
		row = append(row, elem)

		sep := p.next()
		switch sep.Type {
		case TokenComma:
			continue
		case TokenSemicolon:
			node.Rows = append(node.Rows, row)
			row = []ASTNode{}
			continue
		case TokenRightBrace:
			node.Rows = append(node.Rows, row)
			width := len(node.Rows[0])
			for _, r := range node.Rows {
				if len(r) != width {
					return nil, newSyntaxError(open.Pos, "array constant rows must have the same number of columns")
				}
			}
			node.Position = NodePosition{Start: open.Pos, End: sep.Pos + 1}
			return node, nil
		default:
			return nil, NewParseError(sep.Pos, "',', ';' or '}'", describe(sep))
		}
	}
}

func (p *Parser) parseArrayElement() (ASTNode, error) {
	tok := p.next()
	switch tok.Type {
	case TokenNumber:
		return p.numberNode(tok, false)
	case TokenUnaryPrefixOp:
		num, err := p.expect(TokenNumber)
		if err != nil {
			return nil, err
		}
		node, err := p.numberNode(num, tok.Value == "-")
		if err != nil {
			return nil, err
		}
		node.(*NumberNode).Position.Start = tok.Pos
		return node, nil
	case TokenString:
		return &StringNode{Value: tok.Value, Position: tokenSpan(tok)}, nil
	case TokenBoolean:
		return &BooleanNode{Value: tok.Value == "TRUE", Position: tokenSpan(tok)}, nil
	case TokenErrorLiteral:
		code, _ := ParseErrorCode(tok.Value)
		return &ErrorNode{Code: code, Position: tokenSpan(tok)}, nil
	}
	return nil, NewParseError(tok.Pos, "array constant element", describe(tok))
}
