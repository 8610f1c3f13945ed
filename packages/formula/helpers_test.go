package formula

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSheetName = "Sheet1"

// testBook is an in-memory resolver. cell text starting with "=" is a
// formula evaluated on demand.
type testBook struct {
	cells  map[string]any
	names  map[string]string
	sheets []string
	reads  int
}

func newTestBook(cells map[string]any) *testBook {
	b := &testBook{
		cells:  make(map[string]any),
		names:  make(map[string]string),
		sheets: []string{testSheetName, "Sheet2", "Sheet3"},
	}
	for ref, v := range cells {
		b.set(ref, v)
	}
	return b
}

func bookKey(addr CellAddress) string {
	sheet := addr.Sheet
	if sheet == "" {
		sheet = testSheetName
	}
	return strings.ToUpper(sheet) + "!" + ColumnName(addr.Col) + strconv.Itoa(addr.Row)
}

func (b *testBook) set(ref string, v any) {
	b.cells[bookKey(MustParseCellAddress(ref))] = v
}

func (b *testBook) Resolve(ctx *EvalContext, addr CellAddress) (Value, bool) {
	b.reads++
	raw, ok := b.cells[bookKey(addr)]
	if !ok {
		return Value{}, false
	}
	if s, isText := raw.(string); isText && strings.HasPrefix(s, "=") {
		v, err := ctx.EvalString(s)
		if err != nil {
			return Err(ErrorCodeName), true
		}
		return v, true
	}
	return FromAny(raw), true
}

func (b *testBook) ResolveName(sheet, name string) (string, bool) {
	if text, ok := b.names[strings.ToUpper(sheet+"!"+name)]; ok {
		return text, true
	}
	text, ok := b.names[strings.ToUpper(name)]
	return text, ok
}

func (b *testBook) Sheets() []string {
	return b.sheets
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixedRandom struct{ v float64 }

func (r fixedRandom) Float64() float64 { return r.v }

// testNow is the clock every evaluation helper runs with.
var testNow = time.Date(2024, time.March, 15, 13, 30, 0, 0, time.UTC)

func testEngine(opts ...Option) *Engine {
	base := []Option{
		WithClock(fixedClock{testNow}),
		WithRandom(fixedRandom{0.25}),
	}
	return MustNewEngine(append(base, opts...)...)
}

// evalIn evaluates src on Sheet1 of book.
func evalIn(t *testing.T, book *testBook, src string) Value {
	t.Helper()
	v, err := testEngine().Evaluate(src, book, OnSheet(testSheetName))
	require.NoError(t, err, "formula %s", src)
	return v
}

func eval(t *testing.T, src string) Value {
	t.Helper()
	return evalIn(t, newTestBook(nil), src)
}

type formulaCase struct {
	formula string
	want    any
}

// checkFormulas evaluates each case against book. float64 wants compare
// within 1e-9 relative tolerance, ErrorCode wants compare error codes and
// the rest compare through FromAny.
func checkFormulas(t *testing.T, book *testBook, cases []formulaCase) {
	t.Helper()
	if book == nil {
		book = newTestBook(nil)
	}
	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			got := evalIn(t, book, tc.formula)
			assertValue(t, tc.want, got, tc.formula)
		})
	}
}

func assertValue(t *testing.T, want any, got Value, msg string) {
	t.Helper()
	switch w := want.(type) {
	case float64:
		require.Equal(t, ValueTypeNumber, got.Type, "%s = %s", msg, got)
		assertClose(t, w, got.Num, msg)
	case int:
		require.Equal(t, ValueTypeNumber, got.Type, "%s = %s", msg, got)
		assertClose(t, float64(w), got.Num, msg)
	case ErrorCode:
		require.Equal(t, ValueTypeError, got.Type, "%s = %s", msg, got)
		assert.Equal(t, w, got.Err, msg)
	default:
		assert.True(t, FromAny(want).Equal(got), "%s = %s, want %v", msg, got, want)
	}
}

func assertClose(t *testing.T, want, got float64, msg string) {
	t.Helper()
	tol := 1e-9 * math.Max(1, math.Abs(want))
	assert.InDelta(t, want, got, tol, msg)
}

// grid builds a row-major block of cells starting at the top-left ref.
func grid(origin string, rows ...[]any) map[string]any {
	start := MustParseCellAddress(origin)
	cells := make(map[string]any)
	for i, row := range rows {
		for j, v := range row {
			if v == nil {
				continue
			}
			addr := start.Offset(i, j)
			cells[addr.String()] = v
		}
	}
	return cells
}

func merge(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
