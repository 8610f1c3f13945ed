package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupBook() *testBook {
	return newTestBook(merge(
		grid("A1",
			[]any{1, "apple", 0.5},
			[]any{2, "banana", 0.25},
			[]any{3, "cherry", 3},
			[]any{5, "date", 4},
		),
		grid("E1", []any{"b"}, []any{"a"}, []any{"c"}, []any{"a"}),
	))
}

func TestLookupTables(t *testing.T) {
	checkFormulas(t, lookupBook(), []formulaCase{
		{"VLOOKUP(2,A1:C4,2,FALSE)", "banana"},
		{"VLOOKUP(4,A1:C4,2)", "cherry"},
		{"VLOOKUP(6,A1:C4,3,TRUE)", 4},
		{"VLOOKUP(0,A1:C4,2)", ErrorCodeNA},
		{"VLOOKUP(4,A1:C4,2,FALSE)", ErrorCodeNA},
		{"VLOOKUP(2,A1:C4,4,FALSE)", ErrorCodeRef},
		{"VLOOKUP(2,A1:C4,0,FALSE)", ErrorCodeValue},
		{`VLOOKUP("ban*",B1:C4,2,FALSE)`, 0.25},
		{`VLOOKUP("CHERRY",B1:C4,2,FALSE)`, 3},
		{`HLOOKUP("b",{"a","b";1,2},2,FALSE)`, 2},
		{"LOOKUP(4,A1:A4,B1:B4)", "cherry"},
		{`LOOKUP(2,{1,2,3},{"x","y","z"})`, "y"},
		{"LOOKUP(9,A1:C4)", 4},
	})
}

func TestLookupMatch(t *testing.T) {
	checkFormulas(t, lookupBook(), []formulaCase{
		{"MATCH(3,A1:A4,0)", 3},
		{"MATCH(4,A1:A4)", 3},
		{"MATCH(4,A1:A4,0)", ErrorCodeNA},
		{`MATCH("CHERRY",B1:B4,0)`, 3},
		{`MATCH("d?te",B1:B4,0)`, 4},
		{"MATCH(4,{5,3,1},-1)", 1},
		{"MATCH(1,A1:C4,0)", ErrorCodeNA},
		{"XMATCH(5,A1:A4)", 4},
		{"XMATCH(4,A1:A4,1)", 4},
		{"XMATCH(4,A1:A4,-1)", 3},
		{"XMATCH(3,A1:A4,0,2)", 3},
		{"XMATCH(3,A1:A4,7)", ErrorCodeValue},
		{`XLOOKUP("cherry",B1:B4,A1:A4)`, 3},
		{`XLOOKUP("kiwi",B1:B4,A1:A4,"none")`, "none"},
		{`XLOOKUP("kiwi",B1:B4,A1:A4)`, ErrorCodeNA},
		{"XLOOKUP(4,A1:A4,B1:B4,,-1)", "cherry"},
		{"XLOOKUP(4,A1:A4,B1:B4,,1)", "date"},
		{`XLOOKUP("*rry",B1:B4,A1:A4,,2)`, 3},
		{"XLOOKUP(1,A1:A4,B1:B3)", ErrorCodeValue},
	})
}

func TestLookupReferences(t *testing.T) {
	checkFormulas(t, lookupBook(), []formulaCase{
		{"INDEX(A1:C4,2,2)", "banana"},
		{"SUM(INDEX(A1:C4,0,1))", 11},
		{"SUM(INDEX(A1:C4,3,0))", 6},
		{"INDEX({1,2,3},2)", 2},
		{"INDEX(A1:C4,5,1)", ErrorCodeRef},
		{"INDEX(A1:C4,1,1,2)", ErrorCodeRef},
		{"ROWS(A1:C4)", 4},
		{"COLUMNS(A1:C4)", 3},
		{"ROWS({1;2;3})", 3},
		{"ROW(C5)", 5},
		{"COLUMN(C5)", 3},
		{"SUM(ROW(A1:A3))", 6},
		{"ROW(1)", ErrorCodeValue},
		{`INDIRECT("A2")`, 2},
		{`INDIRECT("B"&3)`, "cherry"},
		{`SUM(INDIRECT("A1:A4"))`, 11},
		{`INDIRECT("nope!!")`, ErrorCodeRef},
		{`INDIRECT("R2C1",FALSE)`, 2},
		{"OFFSET(A1,1,1)", "banana"},
		{"SUM(OFFSET(A1,0,0,4,1))", 11},
		{"OFFSET(A1,-1,0)", ErrorCodeRef},
		{"OFFSET(A1,0,0,0,1)", ErrorCodeRef},
		{"ADDRESS(2,3)", "$C$2"},
		{"ADDRESS(2,3,4)", "C2"},
		{"ADDRESS(2,3,1,FALSE)", "R2C3"},
		{"ADDRESS(2,3,4,FALSE)", "R[2]C[3]"},
		{`ADDRESS(1,1,1,TRUE,"My Sheet")`, "'My Sheet'!$A$1"},
		{"ADDRESS(0,1)", ErrorCodeValue},
	})
}

func TestLookupRelativeToCell(t *testing.T) {
	engine := testEngine()
	book := lookupBook()
	at := AtCell(MustParseCellAddress("Sheet1!B3"))

	cases := []formulaCase{
		{"ROW()", 3},
		{"COLUMN()", 2},
		{`INDIRECT("R[-1]C",FALSE)`, "banana"},
		{`INDIRECT("RC[-1]",FALSE)`, 3},
	}
	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			got, err := engine.Evaluate(tc.formula, book, at)
			require.NoError(t, err)
			assertValue(t, tc.want, got, tc.formula)
		})
	}
}

func TestLookupDynamicArrays(t *testing.T) {
	book := lookupBook()
	cases := []struct {
		formula string
		want    [][]any
	}{
		{"TRANSPOSE({1,2,3})", [][]any{{1}, {2}, {3}}},
		{"FILTER(A1:A4,A1:A4>2)", [][]any{{3}, {5}}},
		{"FILTER(A1:B4,{1,0})", [][]any{{1}, {2}, {3}, {5}}},
		{"SORT({3;1;2})", [][]any{{1}, {2}, {3}}},
		{"SORT({3;1;2},1,-1)", [][]any{{3}, {2}, {1}}},
		{`SORT({2,"b";1,"a"},2)`, [][]any{{1, "a"}, {2, "b"}}},
		{"UNIQUE(E1:E4)", [][]any{{"b"}, {"a"}, {"c"}}},
		{"UNIQUE(E1:E4,FALSE,TRUE)", [][]any{{"b"}, {"c"}}},
		{"XLOOKUP(2,A1:A4,A1:C4)", [][]any{{2, "banana", 0.25}}},
	}

	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			got := evalIn(t, book, tc.formula)
			require.Equal(t, ValueTypeArray, got.Type, "%s = %s", tc.formula, got)
			assert.True(t, got.Equal(FromAny(tc.want)), "%s = %s, want %v", tc.formula, got, tc.want)
		})
	}

	checkFormulas(t, book, []formulaCase{
		{"FILTER(A1:A4,A1:A4>9)", ErrorCodeNA},
		{`FILTER(A1:A4,A1:A4>9,"none")`, "none"},
		{"FILTER(A1:A4,{TRUE,FALSE})", ErrorCodeValue},
		{"SORT({3;1;2},2)", ErrorCodeValue},
	})
}
