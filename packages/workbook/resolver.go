package workbook

import (
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// view resolves cells and names for the engine. it reads the workbook
// without locking and is only handed to the engine while a workbook method
// holds the lock.
type view struct {
	wb *Workbook
}

var (
	_ formula.Resolver     = view{}
	_ formula.NameResolver = view{}
	_ formula.SheetLister  = view{}
)

func (v view) Resolve(ctx *formula.EvalContext, addr formula.CellAddress) (formula.Value, bool) {
	ws, ok := v.wb.sheets.lookup(addr.Sheet)
	if !ok {
		return formula.Err(formula.ErrorCodeRef), true
	}
	cell, ok := ws.Get(addr.Row, addr.Col)
	if !ok {
		return formula.Value{}, false
	}
	if cell.Formula != nil {
		return ctx.EvalFormula(cell.Formula), true
	}
	return cell.Value, true
}

func (v view) ResolveName(sheet, name string) (string, bool) {
	return v.wb.names.lookup(name)
}

func (v view) Sheets() []string {
	return v.wb.sheets.definedNames()
}
