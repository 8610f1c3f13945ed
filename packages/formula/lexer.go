package formula

import (
	"strings"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenCell
	TokenSheet
	TokenFunction
	TokenIdentifier
	TokenErrorLiteral
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenColon
	TokenSemicolon
	TokenLeftParen
	TokenRightParen
	TokenLeftBrace
	TokenRightBrace
)

var tokenTypeNames = map[TokenType]string{
	TokenEOF:            "end of formula",
	TokenNumber:         "number",
	TokenString:         "string",
	TokenBoolean:        "boolean",
	TokenCell:           "cell reference",
	TokenSheet:          "sheet name",
	TokenFunction:       "function",
	TokenIdentifier:     "name",
	TokenErrorLiteral:   "error literal",
	TokenUnaryPrefixOp:  "prefix operator",
	TokenUnaryPostfixOp: "postfix operator",
	TokenBinaryOp:       "operator",
	TokenComma:          "','",
	TokenColon:          "':'",
	TokenSemicolon:      "';'",
	TokenLeftParen:      "'('",
	TokenRightParen:     "')'",
	TokenLeftBrace:      "'{'",
	TokenRightBrace:     "'}'",
}

func (t TokenType) String() string {
	if s, ok := tokenTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charLBrace     = '{'
	charRBrace     = '}'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charSemicolon  = ';'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charHash       = '#'
	charDollar     = '$'
	charBackslash  = '\\'
)

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

// TokenState tracks what the previous token was, which decides whether
// + and - are prefix or infix operators.
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterColon
	StateAfterSheet
)

// Lexer tokenizes spreadsheet formula expressions
type Lexer struct {
	input      string
	runes      []rune // UTF-8 aware representation
	pos        int
	state      TokenState
	parenDepth int
	braceDepth int
	tokens     []Token
}

// NewLexer creates a new lexer for a formula without its leading "=".
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		runes:  []rune(input), // runes for UTF-8 support. could do without but a real pain
		pos:    0,
		state:  StateStart,
		tokens: []Token{},
	}
}

// Tokenize tokenizes the entire input. the token slice always ends with
// TokenEOF. lexical failures are returned as *ParseError.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.runes) {
			break
		}
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
		l.updateState(tok.Type)
	}

	// check for unbalanced parentheses and braces
	if l.parenDepth > 0 {
		return nil, newSyntaxError(l.pos, "unbalanced parentheses: missing closing parenthesis")
	}
	if l.braceDepth > 0 {
		return nil, newSyntaxError(l.pos, "unbalanced braces: missing closing brace")
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenNumber, TokenString, TokenBoolean, TokenCell, TokenIdentifier, TokenErrorLiteral:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators leave a value behind
		l.state = StateAfterValue
	case TokenLeftParen, TokenLeftBrace, TokenFunction:
		l.state = StateAfterLeftParen
	case TokenRightParen, TokenRightBrace:
		l.state = StateAfterRightParen
	case TokenComma, TokenSemicolon:
		l.state = StateAfterComma
	case TokenColon:
		l.state = StateAfterColon
	case TokenSheet:
		l.state = StateAfterSheet
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() (Token, error) {
	startPos := l.pos
	ch := l.current()

	// check for string literals
	if ch == charQuote {
		return l.scanString()
	}

	// check for single-quoted worksheet references
	if ch == charApostrophe {
		return l.scanQuotedSheet()
	}

	// check for numbers
	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	if ch == charHash {
		return l.scanErrorLiteral()
	}

	// check for operators and special characters
	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}, nil
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{}, newSyntaxError(startPos, "unbalanced parentheses: too many closing parentheses")
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}, nil
	case charLBrace:
		l.pos++
		l.braceDepth++
		return Token{Type: TokenLeftBrace, Value: "{", Pos: startPos}, nil
	case charRBrace:
		l.pos++
		l.braceDepth--
		if l.braceDepth < 0 {
			return Token{}, newSyntaxError(startPos, "unbalanced braces: unexpected closing brace")
		}
		return Token{Type: TokenRightBrace, Value: "}", Pos: startPos}, nil
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}, nil
	case charSemicolon:
		l.pos++
		return Token{Type: TokenSemicolon, Value: ";", Pos: startPos}, nil
	case charColon:
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: startPos}, nil
	case charPlus, charMinus:
		return l.scanUnaryPrefixOrBinaryOp(), nil
	case charAsterisk, charSlash, charCaret, charAmpersand, charEqual, charLess, charGreater:
		return l.scanBinaryOp(), nil
	case charPercent:
		l.pos++
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos}, nil
	}

	// check for identifiers, functions, cells, booleans
	if l.isAlpha(ch) || ch == charUnderscore || ch == charBackslash || ch == charDollar || ch > 127 {
		return l.scanIdentifierOrCell()
	}

	return Token{}, newSyntaxError(startPos, "unexpected character: %s", string(ch))
}

// helper methods for character navigation and classification

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isAlpha(ch rune) bool {
	return isASCIILetter(ch)
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() (Token, error) {
	startPos := l.pos

	// scan integer part
	for l.isDigit(l.current()) {
		l.pos++
	}

	// check for decimal part
	if l.current() == charPeriod {
		l.pos++ // consume '.'
		for l.isDigit(l.current()) {
			l.pos++
		}
	}

	// check for scientific notation (e or E)
	if l.current() == 'e' || l.current() == 'E' {
		l.pos++ // consume 'e' or 'E'

		// optional + or - sign
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}

		// must have at least one digit after e/E
		if !l.isDigit(l.current()) {
			return Token{}, newSyntaxError(startPos, "malformed number: %s", l.substring(startPos, l.pos))
		}
		for l.isDigit(l.current()) {
			l.pos++
		}
	}

	// a number may not run straight into another identifier or number
	if next := l.current(); next != charNull && isIdentChar(next) {
		for l.pos < len(l.runes) && isIdentChar(l.current()) {
			l.pos++
		}
		return Token{}, newSyntaxError(startPos, "malformed number: %s", l.substring(startPos, l.pos))
	}

	value := l.substring(startPos, l.pos)
	return Token{Type: TokenNumber, Value: value, Pos: startPos}, nil
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() (Token, error) {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune

	for l.pos < len(l.runes) {
		ch := l.current()

		if ch == charQuote {
			// check if it's an escape sequence (double quote)
			if l.peek(1) == charQuote {
				result = append(result, charQuote)
				l.pos += 2 // consume both quotes
			} else {
				// EOS
				l.pos++ // consume closing quote
				return Token{Type: TokenString, Value: string(result), Pos: startPos}, nil
			}
		} else {
			result = append(result, ch)
			l.pos++
		}
	}

	return Token{}, newSyntaxError(startPos, "unclosed string literal")
}

// scanQuotedSheet scans 'Sheet Name'! and yields a sheet token holding the
// unquoted name
func (l *Lexer) scanQuotedSheet() (Token, error) {
	startPos := l.pos
	l.pos++ // consume opening single quote

	var name []rune
	for {
		if l.pos >= len(l.runes) {
			return Token{}, newSyntaxError(startPos, "unclosed worksheet name")
		}
		ch := l.current()
		if ch == charApostrophe {
			if l.peek(1) == charApostrophe {
				name = append(name, charApostrophe)
				l.pos += 2
				continue
			}
			l.pos++ // consume closing single quote
			break
		}
		name = append(name, ch)
		l.pos++
	}

	// must be followed by !
	if l.current() != charExclaim {
		return Token{}, newSyntaxError(startPos, "expected ! after worksheet name")
	}
	l.pos++ // consume !

	if len(name) == 0 {
		return Token{}, newSyntaxError(startPos, "empty worksheet name")
	}
	return Token{Type: TokenSheet, Value: string(name), Pos: startPos}, nil
}

// scanErrorLiteral scans #DIV/0! style literals, matching the longest known
// error text case-insensitively
func (l *Lexer) scanErrorLiteral() (Token, error) {
	startPos := l.pos
	rest := strings.ToUpper(l.substring(l.pos, len(l.runes)))
	best := ""
	for _, text := range ErrorMapper {
		if strings.HasPrefix(rest, text) && len(text) > len(best) {
			best = text
		}
	}
	if best == "" {
		return Token{}, newSyntaxError(startPos, "unknown error literal")
	}
	l.pos += len([]rune(best))
	return Token{Type: TokenErrorLiteral, Value: best, Pos: startPos}, nil
}

// scanIdentifierOrCell scans identifiers, functions, cells, sheet names and
// booleans. the shape of the text decides, not a keyword list.
func (l *Lexer) scanIdentifierOrCell() (Token, error) {
	startPos := l.pos

	for l.pos < len(l.runes) && isIdentChar(l.current()) {
		l.pos++
	}
	if l.pos == startPos {
		// lone backslash
		l.pos++
		return Token{}, newSyntaxError(startPos, "unexpected character: %s", l.substring(startPos, l.pos))
	}

	value := l.substring(startPos, l.pos)
	upperValue := strings.ToUpper(value)

	// check if it's a function (followed by open paren)
	if l.current() == charLParen && !strings.Contains(value, "$") {
		return Token{Type: TokenFunction, Value: upperValue, Pos: startPos}, nil
	}

	// check if it's a worksheet reference (identifier followed by !)
	if l.current() == charExclaim {
		l.pos++ // consume !
		return Token{Type: TokenSheet, Value: value, Pos: startPos}, nil
	}

	// check for boolean literals
	if upperValue == "TRUE" || upperValue == "FALSE" {
		return Token{Type: TokenBoolean, Value: upperValue, Pos: startPos}, nil
	}

	// check if it's a cell reference
	if isCellReference(value) {
		return Token{Type: TokenCell, Value: upperValue, Pos: startPos}, nil
	}

	if strings.Contains(value, "$") {
		return Token{}, newSyntaxError(startPos, "invalid cell reference: %s", value)
	}

	// it's an identifier (possibly a named range)
	return Token{Type: TokenIdentifier, Value: value, Pos: startPos}, nil
}

// scanUnaryPrefixOrBinaryOp scans + and - which can be either unary
// prefix or binary
func (l *Lexer) scanUnaryPrefixOrBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	if l.isUnaryContext() {
		return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// scanBinaryOp scans binary operators
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	// check for two-character operators first
	switch ch {
	case charLess:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}
		} else if l.current() == charGreater {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<>", Pos: startPos}
		}
	case charGreater:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}
		}
	}

	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	// unary operators are allowed after:
	// - start of expression
	// - after another operator
	// - after left paren, brace or function name
	// - after comma or semicolon
	switch l.state {
	case StateStart, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
		return true
	default:
		return false
	}
}

// Tokenize is a convenience wrapper around NewLexer(input).Tokenize().
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}
