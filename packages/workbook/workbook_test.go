package workbook

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// WorkbookTestCase drives a workbook through a chain of operations. the
// first failing step is reported and the remaining steps are skipped.
type WorkbookTestCase struct {
	t        *testing.T
	name     string
	workbook *Workbook
	err      error
}

func NewWorkbookTestCase(t *testing.T, name string) *WorkbookTestCase {
	tc := &WorkbookTestCase{
		t:        t,
		name:     name,
		workbook: New(),
	}
	return tc.AddWorksheet("Sheet1")
}

func (tc *WorkbookTestCase) step(op string, fn func() error) *WorkbookTestCase {
	if tc.err != nil {
		return tc
	}
	if tc.err = fn(); tc.err != nil {
		tc.t.Errorf("%s: %s failed: %v", tc.name, op, tc.err)
	}
	return tc
}

func (tc *WorkbookTestCase) Set(address string, value any) *WorkbookTestCase {
	return tc.step(fmt.Sprintf("Set(%s)", address), func() error { return tc.workbook.Set(address, value) })
}

func (tc *WorkbookTestCase) Remove(address string) *WorkbookTestCase {
	return tc.step(fmt.Sprintf("Remove(%s)", address), func() error { return tc.workbook.Remove(address) })
}

func (tc *WorkbookTestCase) AddWorksheet(name string) *WorkbookTestCase {
	return tc.step("AddWorksheet("+name+")", func() error { return tc.workbook.AddWorksheet(name) })
}

func (tc *WorkbookTestCase) RemoveWorksheet(name string) *WorkbookTestCase {
	return tc.step("RemoveWorksheet("+name+")", func() error { return tc.workbook.RemoveWorksheet(name) })
}

func (tc *WorkbookTestCase) RenameWorksheet(oldName, newName string) *WorkbookTestCase {
	return tc.step("RenameWorksheet("+oldName+")", func() error { return tc.workbook.RenameWorksheet(oldName, newName) })
}

func (tc *WorkbookTestCase) AddNamedRange(name, refersTo string) *WorkbookTestCase {
	return tc.step("AddNamedRange("+name+")", func() error { return tc.workbook.AddNamedRange(name, refersTo) })
}

func (tc *WorkbookTestCase) RemoveNamedRange(name string) *WorkbookTestCase {
	return tc.step("RemoveNamedRange("+name+")", func() error { return tc.workbook.RemoveNamedRange(name) })
}

// AssertCellEq compares a cell against a Go value. numbers compare within
// 1e-10, ErrorCode compares the error code and nil expects a blank cell.
func (tc *WorkbookTestCase) AssertCellEq(address string, expected any) *WorkbookTestCase {
	if tc.err != nil {
		return tc
	}
	actual, err := tc.workbook.Get(address)
	if err != nil {
		tc.t.Errorf("%s: Get(%s) failed: %v", tc.name, address, err)
		return tc
	}
	switch exp := expected.(type) {
	case int:
		if assert.Equal(tc.t, formula.ValueTypeNumber, actual.Type, "%s: cell %s = %s", tc.name, address, actual) {
			assert.InDelta(tc.t, float64(exp), actual.Num, 1e-10, "%s: cell %s", tc.name, address)
		}
	case float64:
		if assert.Equal(tc.t, formula.ValueTypeNumber, actual.Type, "%s: cell %s = %s", tc.name, address, actual) {
			assert.InDelta(tc.t, exp, actual.Num, 1e-10, "%s: cell %s", tc.name, address)
		}
	case formula.ErrorCode:
		if assert.Equal(tc.t, formula.ValueTypeError, actual.Type, "%s: cell %s = %s", tc.name, address, actual) {
			assert.Equal(tc.t, exp, actual.Err, "%s: cell %s", tc.name, address)
		}
	case nil:
		assert.Equal(tc.t, formula.ValueTypeBlank, actual.Type, "%s: cell %s = %s", tc.name, address, actual)
	default:
		assert.True(tc.t, formula.FromAny(expected).Equal(actual), "%s: cell %s = %s, want %v", tc.name, address, actual, expected)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertFormula(address, expected string) *WorkbookTestCase {
	if tc.err != nil {
		return tc
	}
	text, ok, err := tc.workbook.Formula(address)
	if assert.NoError(tc.t, err) && assert.True(tc.t, ok, "%s: %s has no formula", tc.name, address) {
		assert.Equal(tc.t, expected, text, "%s: formula of %s", tc.name, address)
	}
	return tc
}

func TestWorkbookEvaluatesOnRead(t *testing.T) {
	NewWorkbookTestCase(t, "arithmetic").
		Set("A1", 1).
		Set("A2", 2).
		Set("A3", "=A1+A2").
		AssertCellEq("A3", 3).
		Set("A1", 10).
		AssertCellEq("A3", 12).
		AssertFormula("A3", "=(A1+A2)")

	NewWorkbookTestCase(t, "chains").
		Set("A1", 2).
		Set("B1", "=A1*2").
		Set("C1", "=B1*2").
		Set("D1", "=SUM(A1:C1)").
		AssertCellEq("D1", 14)

	NewWorkbookTestCase(t, "literals").
		Set("A1", "text").
		Set("A2", true).
		Set("A3", formula.ErrorCodeNA).
		Set("A4", nil).
		AssertCellEq("A1", "text").
		AssertCellEq("A2", true).
		AssertCellEq("A3", formula.ErrorCodeNA).
		AssertCellEq("A4", nil).
		AssertCellEq("Z99", nil)

	NewWorkbookTestCase(t, "position aware").
		Set("C5", "=ROW()*100+COLUMN()").
		AssertCellEq("C5", 503)

	NewWorkbookTestCase(t, "overwrite formula with value").
		Set("A1", "=1+1").
		Set("A1", 7).
		AssertCellEq("A1", 7)
}

func TestWorkbookCircularReferences(t *testing.T) {
	NewWorkbookTestCase(t, "self reference").
		Set("A1", "=A1+1").
		AssertCellEq("A1", formula.ErrorCodeCircular)

	NewWorkbookTestCase(t, "two cell cycle").
		Set("A1", "=B1").
		Set("B1", "=A1").
		AssertCellEq("A1", formula.ErrorCodeCircular).
		AssertCellEq("B1", formula.ErrorCodeCircular)

	NewWorkbookTestCase(t, "range containing itself").
		Set("A1", 1).
		Set("A3", "=SUM(A1:A3)").
		AssertCellEq("A3", formula.ErrorCodeCircular)

	NewWorkbookTestCase(t, "cycle caught by IFERROR").
		Set("A1", `=IFERROR(B1,"loop")`).
		Set("B1", "=A1").
		AssertCellEq("A1", "loop")
}

func TestWorkbookWorksheets(t *testing.T) {
	NewWorkbookTestCase(t, "cross sheet").
		AddWorksheet("Data").
		Set("Data!A1", 5).
		Set("Sheet1!A1", "=Data!A1*10").
		AssertCellEq("A1", 50).
		AssertCellEq("data!A1", 5)

	NewWorkbookTestCase(t, "quoted names").
		AddWorksheet("Q1 Sales").
		Set("'Q1 Sales'!B2", 3).
		Set("A1", "='Q1 Sales'!B2+1").
		AssertCellEq("A1", 4)

	NewWorkbookTestCase(t, "removed sheet").
		AddWorksheet("Data").
		Set("Data!A1", 5).
		Set("A1", "=Data!A1").
		RemoveWorksheet("Data").
		AssertCellEq("A1", formula.ErrorCodeRef)

	NewWorkbookTestCase(t, "rename rewrites formulas").
		AddWorksheet("Data").
		Set("Data!A1", 5).
		Set("Data!A2", "=Data!A1+1").
		Set("A1", "=SUM(Data!A1:A2)").
		RenameWorksheet("Data", "Input").
		AssertCellEq("A1", 11).
		AssertCellEq("Input!A2", 6).
		AssertFormula("A1", "=SUM(Input!A1:A2)").
		AssertFormula("Input!A2", "=(Input!A1+1)")

	NewWorkbookTestCase(t, "sheet functions").
		AddWorksheet("Second").
		Set("Second!A1", "=SHEET()").
		Set("A1", "=SHEETS()").
		AssertCellEq("Second!A1", 2).
		AssertCellEq("A1", 2)
}

func TestWorkbookRenameLeavesOldFormulasIntact(t *testing.T) {
	wb := New()
	require.NoError(t, wb.AddWorksheet("Sheet1"))
	require.NoError(t, wb.AddWorksheet("Data"))
	require.NoError(t, wb.Set("Data!A1", 4))
	require.NoError(t, wb.Set("A1", "=Data!A1*2+Sheet1!B1"))
	require.NoError(t, wb.Set("A2", "=B1"))

	ws, ok := wb.Worksheet("Sheet1")
	require.True(t, ok)
	before := map[string]string{}
	held := map[string]*formula.Formula{}
	for _, cell := range ws.Cells() {
		addr := formula.CellAddress{Row: cell.Row, Col: cell.Col}.String()
		held[addr] = cell.Formula
		before[addr] = cell.Formula.String()
	}
	require.Len(t, held, 2)

	require.NoError(t, wb.RenameWorksheet("Data", "Input"))

	for addr, f := range held {
		assert.Equal(t, before[addr], f.String(), "formula held for %s was edited", addr)
	}
	assert.Contains(t, before["A1"], "Data!A1")

	v, err := wb.Get("A1")
	require.NoError(t, err)
	assert.Equal(t, 8.0, v.Num)
	f, ok, err := wb.Formula("A1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, f, "Input!A1")
	assert.NotContains(t, f, "Data!")

	ws, _ = wb.Worksheet("Sheet1")
	for _, cell := range ws.Cells() {
		if cell.Row == 2 && cell.Col == 1 {
			assert.Same(t, held["A2"], cell.Formula, "formula without a reference to the renamed sheet was replaced")
		}
	}
}

func TestWorkbookWorksheetErrors(t *testing.T) {
	wb := New()
	require.NoError(t, wb.AddWorksheet("Sheet1"))

	assert.Equal(t, AlreadyExists, CodeOf(wb.AddWorksheet("sheet1")))
	assert.Equal(t, InvalidArgument, CodeOf(wb.AddWorksheet("")))
	assert.Equal(t, InvalidArgument, CodeOf(wb.AddWorksheet("a/b")))
	assert.Equal(t, NotFound, CodeOf(wb.RemoveWorksheet("Missing")))
	assert.Equal(t, NotFound, CodeOf(wb.RenameWorksheet("Missing", "Other")))

	require.NoError(t, wb.AddWorksheet("Other"))
	assert.Equal(t, AlreadyExists, CodeOf(wb.RenameWorksheet("Sheet1", "OTHER")))
	require.NoError(t, wb.RenameWorksheet("Sheet1", "SHEET1"))
	assert.Equal(t, []string{"SHEET1", "Other"}, wb.ListWorksheets())

	_, err := wb.Get("Missing!A1")
	assert.Equal(t, NotFound, CodeOf(err))
	_, err = wb.Get("not an address")
	assert.Equal(t, InvalidArgument, CodeOf(err))

	empty := New()
	_, err = empty.Get("A1")
	assert.Equal(t, FailedPrecondition, CodeOf(err))
}

func TestWorkbookRejectsBadInput(t *testing.T) {
	wb := New()
	require.NoError(t, wb.AddWorksheet("Sheet1"))
	require.NoError(t, wb.Set("A1", 1))

	err := wb.Set("A1", "=1+")
	require.Error(t, err)
	assert.Equal(t, InvalidArgument, CodeOf(err))
	var parseErr *formula.ParseError
	assert.True(t, errors.As(err, &parseErr), "error %v should wrap a ParseError", err)

	v, err := wb.Get("A1")
	require.NoError(t, err)
	assert.Equal(t, formula.Number(1), v, "a rejected formula leaves the cell as it was")

	assert.Equal(t, InvalidArgument, CodeOf(wb.Set("A2", struct{}{})))
	assert.Equal(t, InvalidArgument, CodeOf(wb.Set("A2", [][]any{{1, 2}})))
}

func TestWorkbookNamedRanges(t *testing.T) {
	NewWorkbookTestCase(t, "range name").
		Set("A1", 1).
		Set("A2", 2).
		Set("A3", 3).
		AddNamedRange("Prices", "=Sheet1!$A$1:$A$3").
		Set("B1", "=SUM(Prices)").
		AssertCellEq("B1", 6).
		Set("B2", "=AVERAGE(prices)").
		AssertCellEq("B2", 2)

	NewWorkbookTestCase(t, "constant name").
		AddNamedRange("Rate", "0.25").
		Set("A1", "=100*Rate").
		AssertCellEq("A1", 25)

	NewWorkbookTestCase(t, "undefined then defined").
		Set("A1", 4).
		Set("B1", "=Total*2").
		AssertCellEq("B1", formula.ErrorCodeName).
		AddNamedRange("Total", "Sheet1!A1").
		AssertCellEq("B1", 8).
		RemoveNamedRange("Total").
		AssertCellEq("B1", formula.ErrorCodeName)
}

func TestWorkbookNamedRangeBookkeeping(t *testing.T) {
	wb := New()
	require.NoError(t, wb.AddWorksheet("Sheet1"))

	assert.Equal(t, InvalidArgument, CodeOf(wb.AddNamedRange("A1", "1")))
	assert.Equal(t, InvalidArgument, CodeOf(wb.AddNamedRange("1st", "1")))
	assert.Equal(t, InvalidArgument, CodeOf(wb.AddNamedRange("TRUE", "1")))
	assert.Equal(t, InvalidArgument, CodeOf(wb.AddNamedRange("Bad", "=1+")))
	require.NoError(t, wb.AddNamedRange("Alpha", "1"))
	require.NoError(t, wb.AddNamedRange("Beta", "2"))
	assert.Equal(t, AlreadyExists, CodeOf(wb.AddNamedRange("ALPHA", "3")))
	assert.Equal(t, []string{"Alpha", "Beta"}, wb.ListNamedRanges())

	require.NoError(t, wb.RenameNamedRange("Alpha", "Gamma"))
	assert.False(t, wb.DoesNamedRangeExist("Alpha"))
	text, ok := wb.NamedRange("gamma")
	assert.True(t, ok)
	assert.Equal(t, "1", text)
	assert.Equal(t, NotFound, CodeOf(wb.RemoveNamedRange("Alpha")))

	require.NoError(t, wb.Set("A1", "=Missing+Other!A1"))
	assert.Equal(t, []string{"Missing"}, wb.ListReferencedNamedRanges())
	assert.Equal(t, []string{"Other"}, wb.ListReferencedWorksheets())

	require.NoError(t, wb.Remove("A1"))
	assert.Empty(t, wb.ListReferencedNamedRanges())
	assert.Empty(t, wb.ListReferencedWorksheets())
}

func TestWorkbookSnapshot(t *testing.T) {
	wb := New()
	require.NoError(t, wb.AddWorksheet("Sheet1"))
	require.NoError(t, wb.AddWorksheet("Sheet2"))
	require.NoError(t, wb.Set("Sheet2!A1", "=Sheet1!B1*2"))
	require.NoError(t, wb.Set("B1", 21))
	require.NoError(t, wb.Set("A2", "x"))

	snap := wb.Snapshot()
	require.Len(t, snap, 3)

	assert.Equal(t, "B1", snap[0].Address.Local())
	assert.Equal(t, "", snap[0].Formula)
	assert.Equal(t, formula.Number(21), snap[0].Value)

	assert.Equal(t, "A2", snap[1].Address.Local())
	assert.Equal(t, formula.Text("x"), snap[1].Value)

	assert.Equal(t, "Sheet2", snap[2].Address.Sheet)
	assert.Equal(t, "=(Sheet1!B1*2)", snap[2].Formula)
	assert.Equal(t, formula.Number(42), snap[2].Value)
}

func TestWorkbookEvaluate(t *testing.T) {
	wb := New()
	require.NoError(t, wb.AddWorksheet("Sheet1"))
	require.NoError(t, wb.Set("A1", 3))

	v, err := wb.Evaluate("=A1^2")
	require.NoError(t, err)
	assert.Equal(t, formula.Number(9), v)

	_, err = wb.Evaluate("=(")
	assert.Equal(t, InvalidArgument, CodeOf(err))
}

func TestWorkbookConcurrentReads(t *testing.T) {
	wb := New()
	require.NoError(t, wb.AddWorksheet("Sheet1"))
	for row := 1; row <= 100; row++ {
		require.NoError(t, wb.Set(fmt.Sprintf("A%d", row), row))
	}
	require.NoError(t, wb.Set("B1", "=SUM(A1:A100)"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if i%4 == 0 {
					assert.NoError(t, wb.Set(fmt.Sprintf("C%d", i+1), j))
					continue
				}
				v, err := wb.Get("B1")
				assert.NoError(t, err)
				assert.Equal(t, formula.Number(5050), v)
			}
		}(i)
	}
	wg.Wait()
}

func TestWorksheetStorage(t *testing.T) {
	strs := NewStringTable()
	ws := newWorksheet(strs)

	ws.setValue(1, 1, formula.Text("dup"))
	ws.setValue(2, 1, formula.Text("dup"))
	ws.setValue(300, 300, formula.Number(1))
	ws.setValue(1, 2, formula.Bool(false))
	assert.Equal(t, 4, ws.Len())
	assert.Equal(t, 1, strs.Len())
	assert.Len(t, ws.chunks, 2)

	cells := ws.Cells()
	require.Len(t, cells, 4)
	assert.Equal(t, [][2]int{{1, 1}, {1, 2}, {2, 1}, {300, 300}}, [][2]int{
		{cells[0].Row, cells[0].Col}, {cells[1].Row, cells[1].Col},
		{cells[2].Row, cells[2].Col}, {cells[3].Row, cells[3].Col},
	})
	assert.Equal(t, formula.Bool(false), cells[1].Value)

	ws.remove(300, 300)
	assert.Len(t, ws.chunks, 1, "an emptied chunk is dropped")

	ws.setValue(1, 1, formula.Number(5))
	assert.Equal(t, 1, strs.Len())
	ws.setValue(2, 1, formula.Blank())
	assert.Equal(t, 0, strs.Len())
	assert.Equal(t, 2, ws.Len())

	_, ok := ws.Get(2, 1)
	assert.False(t, ok)
	cell, ok := ws.Get(1, 1)
	require.True(t, ok)
	assert.Equal(t, formula.Number(5), cell.Value)
}
