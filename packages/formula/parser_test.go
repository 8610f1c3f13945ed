package formula

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/efp"
)

func parseFormula(formula string) (ASTNode, error) {
	return ParseFormula(strings.TrimPrefix(formula, "="))
}

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A1",
		"=SUM(A1:A10)",
		"=Sheet2!A1",
		"=Sheet2!A1:B2",
		"=SUM(Sheet2!A1:A10)",
		"=Sheet2!A1 + Sheet3!B1",
		"=SUM(B2:A1)",
		"=SUM(A1:A1)",
		"=SUM(A1:Z1000)",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
		"=IF(A1>0,,1)",
		"=NOW()",
		"={1,2;3,4}",
		"={-1,\"a\";TRUE,#N/A}",
		"='My Sheet'!A1*2",
		"=Sheet1!A1:Sheet1!B2",
		"=TaxRate*A1",
		"=Sheet2!TaxRate",
		"=$A$1+A$2+$A3",
		"=-+-1",
		"=10%",
		"=1e3+.5",
		"=XFD1048576",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := parseFormula(formula); err != nil {
				t.Errorf("Failed to parse valid formula %s: %v", formula, err)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"=",
		"=SUM(",
		"=A1:",
		`="hello`,
		"=1+",
		"=1 2",
		"=(1",
		"=SUM(1;2)",
		"={1,2;3}",
		"={A1}",
		"={1+1}",
		"=Sheet1!A1:Sheet2!B2",
		"=*1",
		"=A1:B",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			_, err := parseFormula(formula)
			if err == nil {
				t.Fatalf("Parsed invalid formula %s without error", formula)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("error for %s is %T, want *ParseError", formula, err)
			}
		})
	}
}

func TestParserPrecedence(t *testing.T) {
	cases := map[string]string{
		"1+2*3":                 "(1+(2*3))",
		"2^3^2":                 "(2^(3^2))",
		"-2^2":                  "-(2^2)",
		"1-2-3":                 "((1-2)-3)",
		"8/4/2":                 "((8/4)/2)",
		`"a"&1=1`:               `("a"&(1=1))`,
		"1+2>2":                 "((1+2)>2)",
		"2^-1":                  "(2^-1)",
		"50%*2":                 "((50%)*2)",
		"-A1%":                  "-(A1%)",
		"(1+2)*3":               "((1+2)*3)",
		"1<2=TRUE":              "((1<2)=TRUE)",
		"SUM(A1:B2,,3)":         "SUM(A1:B2,,3)",
		"b2:a1":                 "A1:B2",
		"'My Sheet'!A1":         "'My Sheet'!A1",
		"sheet1!A1:sheet1!$B$2": "sheet1!A1:$B$2",
		`{1,-2;"x",TRUE}`:       `{1,-2;"x",TRUE}`,
	}

	for formula, want := range cases {
		t.Run(formula, func(t *testing.T) {
			node, err := ParseFormula(formula)
			if err != nil {
				t.Fatalf("ParseFormula(%s) failed: %v", formula, err)
			}
			if got := node.ToString(); got != want {
				t.Errorf("ParseFormula(%s) = %s, want %s", formula, got, want)
			}
		})
	}
}

func TestParserCanonicalTextReparses(t *testing.T) {
	formulas := []string{
		"1+2*3-4/5^6",
		`IF(A1>=0,"pos","neg")&"!"`,
		"SUM(Sheet2!A1:B3)*-1",
		"'Q1 Data'!C3%",
		"VLOOKUP(A1,{1,\"one\";2,\"two\"},2,FALSE)",
		"IFERROR(1/0,#N/A)",
		"F(,)",
	}

	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			first, err := ParseFormula(formula)
			if err != nil {
				t.Fatalf("ParseFormula(%s) failed: %v", formula, err)
			}
			second, err := ParseFormula(first.ToString())
			if err != nil {
				t.Fatalf("reparse of %s failed: %v", first.ToString(), err)
			}
			if first.ToString() != second.ToString() {
				t.Errorf("canonical text changed: %s -> %s", first.ToString(), second.ToString())
			}
		})
	}
}

func TestParserMissingArguments(t *testing.T) {
	node, err := ParseFormula("IF(A1,,1)")
	if err != nil {
		t.Fatalf("ParseFormula failed: %v", err)
	}
	call, ok := node.(*FunctionCallNode)
	if !ok {
		t.Fatalf("root is %T, want *FunctionCallNode", node)
	}
	if len(call.Args) != 3 {
		t.Fatalf("got %d args, want 3", len(call.Args))
	}
	if _, ok := call.Args[1].(*MissingArgNode); !ok {
		t.Errorf("second arg is %T, want *MissingArgNode", call.Args[1])
	}

	node, err = ParseFormula("NOW()")
	if err != nil {
		t.Fatalf("ParseFormula failed: %v", err)
	}
	if n := len(node.(*FunctionCallNode).Args); n != 0 {
		t.Errorf("NOW() has %d args, want 0", n)
	}
}

func TestParserErrorPosition(t *testing.T) {
	_, err := ParseFormula("1+2 3")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not *ParseError", err)
	}
	if perr.Position != 4 {
		t.Errorf("error position = %d, want 4", perr.Position)
	}
}

func TestParserDepthLimit(t *testing.T) {
	deep := strings.Repeat("(", maxParseDepth+10) + "1" + strings.Repeat(")", maxParseDepth+10)
	if _, err := ParseFormula(deep); err == nil {
		t.Errorf("parsing %d nested parentheses succeeded, want error", maxParseDepth+10)
	}

	shallow := strings.Repeat("(", 50) + "1" + strings.Repeat(")", 50)
	if _, err := ParseFormula(shallow); err != nil {
		t.Errorf("parsing 50 nested parentheses failed: %v", err)
	}
}

func TestParserPositions(t *testing.T) {
	node, err := ParseFormula("SUM(A1, 20)")
	if err != nil {
		t.Fatalf("ParseFormula failed: %v", err)
	}
	if pos := node.GetPosition(); pos.Start != 0 || pos.End != 11 {
		t.Errorf("call position = %+v, want {0 11}", pos)
	}
	arg := node.(*FunctionCallNode).Args[1]
	if pos := arg.GetPosition(); pos.Start != 8 || pos.End != 10 {
		t.Errorf("arg position = %+v, want {8 10}", pos)
	}
}

func normalizeRef(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "$", ""))
}

// efp is an independent tokenizer; every range operand it reports must be a
// reference we extract, in the same order.
func TestReferencesAgreeWithEFP(t *testing.T) {
	formulas := []string{
		"SUM(A1:B2)+Sheet2!C3",
		"IF(A1>0,B1,C$1)*TaxRate",
		"VLOOKUP(D4,Sheet3!$A$1:$F$100,2,FALSE)",
		"AVERAGE(A1:A10,C1:C10)-MAX(E5)",
		`CONCATENATE("A1",B7)`,
		"INDEX(A1:C3,2,2)+XFD1",
	}

	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			node, err := ParseFormula(formula)
			if err != nil {
				t.Fatalf("ParseFormula(%s) failed: %v", formula, err)
			}
			var got []string
			for _, ref := range References(node) {
				got = append(got, normalizeRef(ref.String()))
			}

			parser := efp.ExcelParser()
			var want []string
			for _, tok := range parser.Parse("=" + formula) {
				if tok.TType == efp.TokenTypeOperand && tok.TSubType == efp.TokenSubTypeRange {
					want = append(want, normalizeRef(tok.TValue))
				}
			}

			if strings.Join(got, " ") != strings.Join(want, " ") {
				t.Errorf("References(%s) = %v, efp reports %v", formula, got, want)
			}
		})
	}
}
