package workbook

import (
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// CellSnapshot is one non-empty cell with its computed value. Formula is
// empty for literal cells.
type CellSnapshot struct {
	Address formula.CellAddress
	Formula string
	Value   formula.Value
}

// Snapshot evaluates every non-empty cell of every worksheet, in tab order
// and then row-major order. each formula cell is evaluated independently,
// so a value read by many formulas is computed many times.
func (wb *Workbook) Snapshot() []CellSnapshot {
	wb.mu.RLock()
	defer wb.mu.RUnlock()

	var out []CellSnapshot
	for _, sheet := range wb.sheets.definedNames() {
		ws, _ := wb.sheets.lookup(sheet)
		for _, cell := range ws.Cells() {
			addr := formula.CellAddress{Sheet: sheet, Row: cell.Row, Col: cell.Col}
			snap := CellSnapshot{Address: addr, Value: cell.Value}
			if cell.Formula != nil {
				snap.Formula = "=" + cell.Formula.String()
				snap.Value = wb.engine.Eval(cell.Formula, view{wb}, formula.AtCell(addr))
			}
			out = append(out, snap)
		}
	}
	return out
}

// Evaluate evaluates formula text against the workbook without storing it.
// unqualified references resolve against the first worksheet.
func (wb *Workbook) Evaluate(src string) (formula.Value, error) {
	wb.mu.RLock()
	defer wb.mu.RUnlock()

	var opts []formula.EvalOption
	if names := wb.sheets.definedNames(); len(names) > 0 {
		opts = append(opts, formula.OnSheet(names[0]))
	}
	v, err := wb.engine.Evaluate(src, view{wb}, opts...)
	if err != nil {
		return formula.Value{}, &AppError{Code: InvalidArgument, Message: "invalid formula", Err: err}
	}
	return v, nil
}
