package formula

import (
	"errors"
	"testing"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func sameTypes(a, b []TokenType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLexerTokenKinds(t *testing.T) {
	cases := []struct {
		input string
		want  []TokenType
	}{
		{"1+2", []TokenType{TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"-1", []TokenType{TokenUnaryPrefixOp, TokenNumber, TokenEOF}},
		{"A1-1", []TokenType{TokenCell, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"(1)-1", []TokenType{TokenLeftParen, TokenNumber, TokenRightParen, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"1*-1", []TokenType{TokenNumber, TokenBinaryOp, TokenUnaryPrefixOp, TokenNumber, TokenEOF}},
		{"50%", []TokenType{TokenNumber, TokenUnaryPostfixOp, TokenEOF}},
		{`"a"&"b"`, []TokenType{TokenString, TokenBinaryOp, TokenString, TokenEOF}},
		{"TRUE", []TokenType{TokenBoolean, TokenEOF}},
		{"false", []TokenType{TokenBoolean, TokenEOF}},
		{"#N/A", []TokenType{TokenErrorLiteral, TokenEOF}},
		{"SUM(A1:B2)", []TokenType{TokenFunction, TokenLeftParen, TokenCell, TokenColon, TokenCell, TokenRightParen, TokenEOF}},
		{"Sheet2!A1", []TokenType{TokenSheet, TokenCell, TokenEOF}},
		{"'My Sheet'!$A$1", []TokenType{TokenSheet, TokenCell, TokenEOF}},
		{"TaxRate*2", []TokenType{TokenIdentifier, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"{1,2;3,4}", []TokenType{
			TokenLeftBrace, TokenNumber, TokenComma, TokenNumber, TokenSemicolon,
			TokenNumber, TokenComma, TokenNumber, TokenRightBrace, TokenEOF,
		}},
		{"A1<>B1", []TokenType{TokenCell, TokenBinaryOp, TokenCell, TokenEOF}},
		{"ERROR.TYPE(1)", []TokenType{TokenFunction, TokenLeftParen, TokenNumber, TokenRightParen, TokenEOF}},
		{"LOG10(100)", []TokenType{TokenFunction, TokenLeftParen, TokenNumber, TokenRightParen, TokenEOF}},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			tokens, err := Tokenize(tc.input)
			if err != nil {
				t.Fatalf("Tokenize(%q) failed: %v", tc.input, err)
			}
			if got := tokenTypes(tokens); !sameTypes(got, tc.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestLexerTokenValues(t *testing.T) {
	tokens, err := Tokenize(`sum("say ""hi""", 'it''s'!b$2, 1.5e3, #div/0!)`)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	want := []struct {
		typ   TokenType
		value string
	}{
		{TokenFunction, "SUM"},
		{TokenLeftParen, "("},
		{TokenString, `say "hi"`},
		{TokenComma, ","},
		{TokenSheet, "it's"},
		{TokenCell, "B$2"},
		{TokenComma, ","},
		{TokenNumber, "1.5e3"},
		{TokenComma, ","},
		{TokenErrorLiteral, "#DIV/0!"},
		{TokenRightParen, ")"},
		{TokenEOF, ""},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i].Type != w.typ || tokens[i].Value != w.value {
			t.Errorf("token %d = %v %q, want %v %q", i, tokens[i].Type, tokens[i].Value, w.typ, w.value)
		}
	}
}

func TestLexerPositionsAreRunes(t *testing.T) {
	tokens, err := Tokenize(`"世界"&A1`)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if tokens[1].Pos != 4 {
		t.Errorf("operator position = %d, want 4", tokens[1].Pos)
	}
	if tokens[2].Pos != 5 {
		t.Errorf("cell position = %d, want 5", tokens[2].Pos)
	}
}

func TestLexerErrors(t *testing.T) {
	invalid := []string{
		`"unterminated`,
		"SUM(1",
		"1)",
		"{1,2",
		"}",
		"'Sheet",
		"'Sheet'A1",
		"''!A1",
		"#BOGUS!",
		"1.5e",
		"12abc",
		"$A$",
		"?",
	}

	for _, input := range invalid {
		t.Run(input, func(t *testing.T) {
			_, err := Tokenize(input)
			if err == nil {
				t.Fatalf("Tokenize(%q) succeeded, want error", input)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("Tokenize(%q) error %T is not *ParseError", input, err)
			}
		})
	}
}
