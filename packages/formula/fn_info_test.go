package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInformationPredicates(t *testing.T) {
	book := newTestBook(map[string]any{"A1": 1, "A2": "x"})
	checkFormulas(t, book, []formulaCase{
		{"ISBLANK(Z9)", true},
		{`ISBLANK("")`, false},
		{"ISERR(NA())", false},
		{"ISERR(1/0)", true},
		{"ISERROR(NA())", true},
		{"ISNA(NA())", true},
		{"ISNUMBER(A1)", true},
		{`ISNUMBER("1")`, false},
		{"ISTEXT(A2)", true},
		{"ISNONTEXT(A1)", true},
		{"ISLOGICAL(TRUE)", true},
		{"ISEVEN(4)", true},
		{"ISODD(-3)", true},
		{"ISEVEN(2.9)", true},
		{"ISEVEN(TRUE)", ErrorCodeValue},
		{"ISREF(A1)", true},
		{"ISREF(A1:B2)", true},
		{"ISREF(1)", false},
		{"SUM(--ISNUMBER(A1:A2))", 1},
	})
}

func TestInformationValues(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"N(5)", 5},
		{"N(TRUE)", 1},
		{`N("x")`, 0},
		{"N(1/0)", ErrorCodeDiv0},
		{"TYPE(1)", 1},
		{`TYPE("a")`, 2},
		{"TYPE(TRUE)", 4},
		{"TYPE(1/0)", 16},
		{"TYPE({1,2})", 64},
		{"TYPE(Z9)", 1},
		{"ERROR.TYPE(1/0)", 2},
		{"ERROR.TYPE(NA())", 7},
		{"ERROR.TYPE(#NULL!)", 1},
		{"ERROR.TYPE(1)", ErrorCodeNA},
		{"NA()", ErrorCodeNA},
	})
}

func TestInformationSheets(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"SHEET()", 1},
		{"SHEET(Sheet2!A1)", 2},
		{`SHEET("Sheet3")`, 3},
		{`SHEET("Nope")`, ErrorCodeNA},
		{"SHEETS()", 3},
		{"SHEETS(A1:B2)", 1},
	})
}

// a resolver without a sheet list still answers SHEETS.
type cellsOnly struct{}

func (cellsOnly) Resolve(*EvalContext, CellAddress) (Value, bool) { return Value{}, false }

func TestInformationWithoutSheetList(t *testing.T) {
	engine := testEngine()
	v, err := engine.Evaluate("SHEETS()", cellsOnly{}, OnSheet(testSheetName))
	require.NoError(t, err)
	assertValue(t, 1, v, "SHEETS()")

	v, err = engine.Evaluate("SHEET()", cellsOnly{}, OnSheet(testSheetName))
	require.NoError(t, err)
	assertValue(t, ErrorCodeNA, v, "SHEET()")
}

func TestHostOnlyFunctions(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`CELL("type",A1)`, ErrorCodeNA},
		{`INFO("osversion")`, ErrorCodeNA},
		{"ISFORMULA(A1)", ErrorCodeNA},
		{`WEBSERVICE("http://example.com")`, ErrorCodeNA},
		{"NOSUCHFUNCTION(1)", ErrorCodeName},
	})
}

func TestCompatibilityAliases(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"STDEV(2,4,4,4,5,5,7,9)", 2.138089935299395},
		{"VARP(2,4,4,4,5,5,7,9)", 4},
		{"RANK(3,{1,3,5})", 2},
		{"PERCENTILE({1,2,3,4},0.5)", 2.5},
		{"QUARTILE({1,2,3,4},1)", 1.75},
		{"MODE(1,2,2,3)", 2},
		{"COVAR({1,2,3},{2,4,6})", 4.0 / 3},
		{"BINOMDIST(6,10,0.5,FALSE)", 0.205078125},
		{"TDIST(-1,10,2)", ErrorCodeNum},
		{"TDIST(1,10,3)", ErrorCodeNum},
	})

	loose := []struct {
		formula string
		want    float64
	}{
		{"NORMSDIST(1)", 0.841344746068543},
		{"NORMSINV(0.975)", 1.959963984540054},
		{"LOGNORMDIST(4,3.5,1.2)", 0.03908355570680049},
		{"HYPGEOMDIST(1,4,8,20)", 0.363261093911249},
		{"NEGBINOMDIST(10,5,0.25)", 0.0550486603751779},
		{"TDIST(1,10,2)", 0.3408931323020573},
	}
	for _, tc := range loose {
		t.Run(tc.formula, func(t *testing.T) {
			got := eval(t, tc.formula)
			require.Equal(t, ValueTypeNumber, got.Type, "%s = %s", tc.formula, got)
			assert.InDelta(t, tc.want, got.Num, 1e-6, tc.formula)
		})
	}
}
