package formula

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEvalOperators(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"2+3*4", 14},
		{"2^3^2", 512},
		{"-2^2", -4},
		{"(2+3)*4", 20},
		{"10-4-3", 3},
		{"7/2", 3.5},
		{"2^-1", 0.5},
		{"50%", 0.5},
		{"200%%", 0.02},
		{"+\"abc\"", "abc"},
		{"--\"3\"", 3},
		{`"a"&"b"&1`, "ab1"},
		{`1.5&""`, "1.5"},
		{`TRUE&""`, "TRUE"},
		{"1=1", true},
		{"1<>1", false},
		{`"abc"="ABC"`, true},
		{`"a"<"b"`, true},
		{`1<"a"`, true},
		{`"z"<TRUE`, true},
		{"FALSE<TRUE", true},
		{"2>=2", true},
		{"0^0", ErrorCodeNum},
		{"0^-1", ErrorCodeDiv0},
		{"(-8)^(1/3)", ErrorCodeNum},
		{"10^400", ErrorCodeNum},
	})
}

func TestEvalErrorPropagation(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"10/0", ErrorCodeDiv0},
		{"SUM(10,10/0,5)", ErrorCodeDiv0},
		{`IFERROR(1/0,"x")`, "x"},
		{"#N/A+1", ErrorCodeNA},
		{"1+#REF!", ErrorCodeRef},
		{"#VALUE!&\"a\"", ErrorCodeValue},
		{"-#NUM!", ErrorCodeNum},
		{"(1/0)=(1/0)", ErrorCodeDiv0},
		{"#DIV/0!+#N/A", ErrorCodeDiv0},
		{"NOTAREALFUNCTION()", ErrorCodeName},
		{"UndefinedName", ErrorCodeName},
		{"ABS()", ErrorCodeValue},
		{"ABS(1,2)", ErrorCodeValue},
	})
}

func TestEvalCoercion(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`"3"+2`, 5},
		{`"abc"+2`, ErrorCodeValue},
		{"TRUE+TRUE", 2},
		{`"1,000"*2`, 2000},
		{`"25%"*4`, 1},
		{`" 1e2 "+0`, 100},
		{`""+1`, ErrorCodeValue},
		{`IF("TRUE",1,2)`, 1},
		{`IF("yes",1,2)`, ErrorCodeValue},
		{"IF(0.5,1,2)", 1},
	})
}

func TestEvalReferences(t *testing.T) {
	book := newTestBook(merge(
		grid("A1", []any{1, 2}, []any{3, 4}),
		map[string]any{
			"C1":        "=A1+B1",
			"C2":        "=C1*10",
			"D1":        "text",
			"Sheet2!A1": 100,
			"Sheet2!B1": "=A1*2",
			"E1":        true,
		},
	))
	book.names["TAXRATE"] = "Sheet1!$B$1"
	book.names["BLOCK"] = "$A$1:$B$2"
	book.names["SHEET2!LOCAL"] = "5"

	checkFormulas(t, book, []formulaCase{
		{"SUM(A1:B2)", 10},
		{"AVERAGE(A1:B2)", 2.5},
		{"COUNT(A1:B2)", 4},
		{"Z99+5", 5},
		{"C2", 30},
		{"Sheet2!A1+A1", 101},
		{"Sheet2!B1", 200},
		{"sheet2!a1", 100},
		{"TaxRate*100", 200},
		{"SUM(Block)", 10},
		{"Sheet2!Local", 5},
		{"Local", ErrorCodeName},
		{"A1:B2+1", ErrorCodeValue},
		{"A1:A1+1", 2},
		{"SUM(A1:B2*2)", 20},
		{"SUMPRODUCT((A1:B2>1)*A1:B2)", 9},
		{"D1*1", ErrorCodeValue},
		{"E1+1", 2},
		{"COUNTA(A1:E1)", 5},
		{"ROWS(A1:B2)*COLUMNS(A1:E1)", 10},
	})
}

func TestEvalArrayConstants(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"SUM({1,2;3,4})", 10},
		{"SUM({1,2,3}*{4,5,6})", 32},
		{"SUM({1,2,3}*2)", 12},
		{"SUM({1;2}*{10,20})", 90},
		{"INDEX({1,2;3,4},2,1)", 3},
		{`{1,"a";TRUE,#N/A}`, [][]any{{1.0, "a"}, {true, ErrorCodeNA}}},
		{"ROWS({1;2;3})", 3},
	})
}

func TestEvalBlankCells(t *testing.T) {
	book := newTestBook(nil)
	checkFormulas(t, book, []formulaCase{
		{"A1+5", 5},
		{`A1&"x"`, "x"},
		{"A1=0", true},
		{`A1=""`, true},
		{"A1=FALSE", true},
		{"ISBLANK(A1)", true},
		{"LEN(A1)", 0},
	})
	v := evalIn(t, book, "A1")
	assert.Equal(t, ValueTypeBlank, v.Type)
}

func TestEvalCircularReferences(t *testing.T) {
	book := newTestBook(map[string]any{
		"A1": "=B1+1",
		"B1": "=A1",
		"C1": "=C1",
		"D1": "=SUM(D1:D3)",
		"E1": "=IFERROR(A1,0)",
	})

	checkFormulas(t, book, []formulaCase{
		{"A1", ErrorCodeCircular},
		{"C1", ErrorCodeCircular},
		{"D1", ErrorCodeCircular},
		{"ISERROR(A1)", true},
		{"E1", 0},
	})

	e := testEngine()
	v, err := e.Evaluate("A2+1", book, AtCell(MustParseCellAddress("Sheet1!A2")))
	require.NoError(t, err)
	assertValue(t, ErrorCodeCircular, v, "self reference")

	v, err = e.Evaluate("A3+1", book, AtCell(MustParseCellAddress("Sheet1!A2")))
	require.NoError(t, err)
	assertValue(t, 1, v, "neighbour reference")
}

func TestEvalReentrantResolver(t *testing.T) {
	e := testEngine()
	f, err := e.Parse("A1")
	require.NoError(t, err)

	resolver := ResolverFunc(func(ctx *EvalContext, addr CellAddress) (Value, bool) {
		return ctx.EvalFormula(f), true
	})
	v := e.Eval(f, resolver, OnSheet(testSheetName))
	assertValue(t, ErrorCodeCircular, v, "re-entrant resolver")
}

func TestEvalWithinParentContext(t *testing.T) {
	e := testEngine()
	formulas := map[string]string{
		"A1": "A2+1",
		"A2": "A3*2",
		"A3": "5",
		"B1": "B2+1",
		"B2": "B1+1",
		"C1": "IFERROR(C1,7)",
	}
	var resolver ResolverFunc
	resolver = func(ctx *EvalContext, addr CellAddress) (Value, bool) {
		src, ok := formulas[addr.Local()]
		if !ok {
			return Value{}, false
		}
		v, err := e.Evaluate(src, resolver, Within(ctx))
		require.NoError(t, err)
		return v, true
	}

	v, err := e.Evaluate("A1", resolver, OnSheet(testSheetName))
	require.NoError(t, err)
	assertValue(t, 11, v, "acyclic chain")

	v, err = e.Evaluate("B1", resolver, OnSheet(testSheetName))
	require.NoError(t, err)
	assertValue(t, ErrorCodeCircular, v, "cycle through Evaluate")

	v, err = e.Evaluate("C1", resolver, OnSheet(testSheetName))
	require.NoError(t, err)
	assertValue(t, 7, v, "self reference caught by IFERROR")

	v, err = e.Evaluate("A1+A1", resolver, OnSheet(testSheetName))
	require.NoError(t, err)
	assertValue(t, 22, v, "resolving set is released between reads")
}

func TestEvalWithinSharesDepth(t *testing.T) {
	e := testEngine(WithMaxDepth(64))
	var resolver ResolverFunc
	resolver = func(ctx *EvalContext, addr CellAddress) (Value, bool) {
		// every cell reads the one below it, so the chain never repeats
		next := CellAddress{Sheet: addr.Sheet, Row: addr.Row + 1, Col: addr.Col}
		return e.Eval(&Formula{Root: &CellRefNode{Address: next}}, resolver, Within(ctx)), true
	}
	v, err := e.Evaluate("A1", resolver, OnSheet(testSheetName))
	require.NoError(t, err)
	assertValue(t, ErrorCodeCircular, v, "unbounded chain")
}

func TestEvalWithinAtCell(t *testing.T) {
	e := testEngine()
	resolver := ResolverFunc(func(ctx *EvalContext, addr CellAddress) (Value, bool) {
		// evaluates on behalf of the cell already being resolved
		return e.Eval(&Formula{Root: &NumberNode{Value: 1}}, nil, Within(ctx), AtCell(addr)), true
	})
	v, err := e.Evaluate("A1", resolver, OnSheet(testSheetName))
	require.NoError(t, err)
	assertValue(t, ErrorCodeCircular, v, "cell evaluated inside its own resolution")
}

func TestEvalDepthLimit(t *testing.T) {
	e := testEngine(WithMaxDepth(16))
	v, err := e.Evaluate(strings.Repeat("ABS(", 40)+"1"+strings.Repeat(")", 40), nil)
	require.NoError(t, err)
	assertValue(t, ErrorCodeCircular, v, "deeply nested calls")

	v, err = e.Evaluate(strings.Repeat("1+(", 40)+"1"+strings.Repeat(")", 40), nil)
	require.NoError(t, err)
	assertValue(t, ErrorCodeCircular, v, "right nested sum")

	v, err = e.Evaluate("1+1+1", nil)
	require.NoError(t, err)
	assertValue(t, 3, v, "shallow formula")

	v, err = e.Evaluate(strings.Repeat("1+", 40)+"1", nil)
	require.NoError(t, err)
	assertValue(t, 41, v, "flat sum under a low ceiling")
}

func TestEvalLongFlatChains(t *testing.T) {
	e := testEngine()
	v, err := e.Evaluate(strings.Repeat("1+", 1999)+"1", nil)
	require.NoError(t, err)
	assertValue(t, 2000, v, "2000 term sum")

	v, err = e.Evaluate(strings.Repeat("2*", 10)+"1-"+strings.Repeat("1-", 999)+"0", nil)
	require.NoError(t, err)
	assertValue(t, 25, v, "mixed precedence chain")

	v, err = e.Evaluate(`"a"`+strings.Repeat(`&"b"`, 1500), nil)
	require.NoError(t, err)
	assertValue(t, "a"+strings.Repeat("b", 1500), v, "long concatenation")

	v, err = e.Evaluate("1/0+"+strings.Repeat("1+", 1500)+"1", nil)
	require.NoError(t, err)
	assertValue(t, ErrorCodeDiv0, v, "error at the head of a chain")
}

func TestEvalRangeLimit(t *testing.T) {
	e := testEngine(WithMaxRangeCells(100))
	book := newTestBook(nil)

	v, err := e.Evaluate("SUM(A1:J10)", book)
	require.NoError(t, err)
	assertValue(t, 0, v, "100 cells")

	v, err = e.Evaluate("SUM(A1:K10)", book)
	require.NoError(t, err)
	assertValue(t, ErrorCodeRef, v, "110 cells")
}

func TestEvalIsRepeatable(t *testing.T) {
	book := newTestBook(grid("A1", []any{1, 2, 3}))
	e := testEngine()
	f, err := e.Parse("=SUM(A1:C1)*2&\"!\"")
	require.NoError(t, err)

	first := e.Eval(f, book, OnSheet(testSheetName))
	second := e.Eval(f, book, OnSheet(testSheetName))
	assert.True(t, first.Equal(second), "%s != %s", first, second)
	assert.Equal(t, "12!", first.Str)
}

func TestEvalConcurrentUse(t *testing.T) {
	book := newTestBook(grid("A1", []any{1, 2, 3}, []any{4, 5, 6}))
	e := testEngine()
	f, err := e.Parse("SUMPRODUCT(A1:C1,A2:C2)")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Value, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.Eval(f, ResolverFunc(func(ctx *EvalContext, addr CellAddress) (Value, bool) {
				raw, ok := book.cells[bookKey(addr)]
				return FromAny(raw), ok
			}), OnSheet(testSheetName))
		}()
	}
	wg.Wait()
	for _, v := range results {
		assertValue(t, 32, v, "concurrent SUMPRODUCT")
	}
}

func TestEngineParse(t *testing.T) {
	e := testEngine()

	f, err := e.Parse("  =1+2 ")
	require.NoError(t, err)
	assert.Equal(t, "(1+2)", f.String())

	_, err = e.Parse("=1+")
	var perr *ParseError
	require.True(t, errors.As(err, &perr), "error %v", err)

	_, err = e.Evaluate("SUM(", nil)
	assert.Error(t, err)
}

func TestFormulaVolatile(t *testing.T) {
	e := testEngine()
	cases := map[string]bool{
		"NOW()+1":             true,
		"IF(A1,RAND(),0)":     true,
		"SUM(OFFSET(A1,1,1))": true,
		`INDIRECT("A1")`:      true,
		"SUM(A1:B2)":          false,
		"TODAY":               false,
	}
	for src, want := range cases {
		f, err := e.Parse(src)
		require.NoError(t, err, src)
		assert.Equal(t, want, f.Volatile(e.Registry()), src)
	}
}

func TestFormulaReferences(t *testing.T) {
	e := testEngine()
	f, err := e.Parse("SUM(A1:B2, Sheet2!$C$3) + TaxRate * 'My Sheet'!D4")
	require.NoError(t, err)

	var got []string
	for _, r := range f.References() {
		got = append(got, r.String())
	}
	assert.Equal(t, []string{"A1:B2", "Sheet2!$C$3", "TaxRate", "'My Sheet'!D4"}, got)

	refs := f.References()
	assert.True(t, refs[0].IsRange)
	assert.True(t, refs[2].IsName)
	assert.Equal(t, "My Sheet", refs[3].Sheet)
}

func TestEngineCustomFunctions(t *testing.T) {
	double := FunctionSpec{
		Name:     "double",
		Category: CategoryMath,
		MinArgs:  1,
		MaxArgs:  1,
		Fn: func(c *Call) Value {
			x := c.Num(0)
			if c.Failed() {
				return c.Failure()
			}
			return Number(x * 2)
		},
	}
	upper := FunctionSpec{
		Name:     "ABS",
		Category: CategoryMath,
		MinArgs:  1,
		MaxArgs:  1,
		Fn:       func(c *Call) Value { return Text("overridden") },
	}
	e := testEngine(WithFunctions(double, upper))

	v, err := e.Evaluate("DOUBLE(21)", nil)
	require.NoError(t, err)
	assertValue(t, 42, v, "DOUBLE")

	v, err = e.Evaluate(`DOUBLE("x")`, nil)
	require.NoError(t, err)
	assertValue(t, ErrorCodeValue, v, "DOUBLE text")

	v, err = e.Evaluate("ABS(-1)", nil)
	require.NoError(t, err)
	assertValue(t, "overridden", v, "override")

	_, isBuiltin := DefaultRegistry().Lookup("DOUBLE")
	assert.False(t, isBuiltin, "custom functions leak into the default registry")

	_, err = NewEngine(WithFunctions(FunctionSpec{Name: "BROKEN"}))
	assert.Error(t, err)
	assert.Panics(t, func() { MustNewEngine(WithFunctions(FunctionSpec{Name: ""})) })
}

func TestEngineCustomFunctionPrefixes(t *testing.T) {
	answer := func(name string) FunctionSpec {
		return FunctionSpec{
			Name:     name,
			Category: CategoryMath,
			Fn:       func(c *Call) Value { return Number(42) },
		}
	}
	e := testEngine(WithFunctions(answer("_xlfn.ANSWER"), answer(" _xlfn._xlws.deep ")))

	for _, src := range []string{"ANSWER()", "answer()", "_xlfn.ANSWER()", "DEEP()", "_xlfn._xlws.DEEP()"} {
		v, err := e.Evaluate(src, nil)
		require.NoError(t, err)
		assertValue(t, 42, v, src)
	}

	spec, ok := e.Registry().Lookup("_XLFN.ANSWER")
	require.True(t, ok)
	assert.Equal(t, "ANSWER", spec.Name)

	_, err := NewEngine(WithFunctions(answer("_xlfn.")))
	assert.Error(t, err, "a prefix alone is not a name")
}

func TestEngineLogsUnknownFunctions(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := testEngine(WithLogger(zap.New(core)))

	v, err := e.Evaluate("NOSUCHFN(1)", nil)
	require.NoError(t, err)
	assertValue(t, ErrorCodeName, v, "unknown function")

	entries := logs.FilterMessage("unknown function").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "NOSUCHFN", entries[0].ContextMap()["name"])
}

func TestEvalFutureFunctionPrefix(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"_xlfn.STDEV.S(1,2,3)", 1},
		{"_xlfn._xlws.SORT({3;1;2})", [][]any{{1.0}, {2.0}, {3.0}}},
	})
}

func TestEvalDate1904(t *testing.T) {
	v, err := testEngine(WithDate1904(true)).Evaluate("DATE(1904,1,2)", nil)
	require.NoError(t, err)
	assertValue(t, 1, v, "1904 system")

	v, err = testEngine().Evaluate("DATE(1900,1,1)", nil)
	require.NoError(t, err)
	assertValue(t, 1, v, "1900 system")
}
