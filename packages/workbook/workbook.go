// Package workbook is an in-memory workbook of worksheets, named ranges and
// formula cells. formula cells are evaluated through a formula.Engine each
// time they are read; nothing is cached and no dependency graph is kept.
package workbook

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// Workbook holds worksheets and defined names. it is safe for concurrent
// use: reads, including formula evaluation, share a read lock.
type Workbook struct {
	mu sync.RWMutex

	engine  *formula.Engine
	logger  *zap.Logger
	sheets  *symbolTable[*Worksheet]
	names   *symbolTable[string]
	strings *StringTable
}

// Option configures a Workbook.
type Option func(*Workbook)

// WithEngine evaluates formulas with engine instead of a default one.
func WithEngine(engine *formula.Engine) Option {
	return func(wb *Workbook) { wb.engine = engine }
}

// WithLogger sets the logger used for workbook events.
func WithLogger(logger *zap.Logger) Option {
	return func(wb *Workbook) { wb.logger = logger }
}

// New creates an empty workbook with no worksheets.
func New(opts ...Option) *Workbook {
	wb := &Workbook{
		sheets:  newSymbolTable[*Worksheet](),
		names:   newSymbolTable[string](),
		strings: NewStringTable(),
	}
	for _, opt := range opts {
		opt(wb)
	}
	if wb.logger == nil {
		wb.logger = zap.NewNop()
	}
	if wb.engine == nil {
		wb.engine = formula.MustNewEngine(formula.WithLogger(wb.logger))
	}
	return wb
}

// Engine returns the engine formulas are evaluated with.
func (wb *Workbook) Engine() *formula.Engine {
	return wb.engine
}

// resolveAddress parses an A1 address. unqualified addresses refer to the
// first worksheet.
func (wb *Workbook) resolveAddress(address string) (formula.CellAddress, *Worksheet, error) {
	addr, err := formula.ParseCellAddress(address)
	if err != nil {
		return formula.CellAddress{}, nil, &AppError{Code: InvalidArgument, Message: "invalid address " + address, Err: err}
	}
	if !addr.Valid() {
		return formula.CellAddress{}, nil, errorf(OutOfRange, "address %s is outside the sheet grid", address)
	}
	if addr.Sheet == "" {
		if wb.sheets.count() == 0 {
			return formula.CellAddress{}, nil, NewApplicationError(FailedPrecondition, "workbook has no worksheets")
		}
		addr.Sheet = wb.sheets.definedNames()[0]
	}
	ws, ok := wb.sheets.lookup(addr.Sheet)
	if !ok {
		return formula.CellAddress{}, nil, errorf(NotFound, "worksheet %s not found", addr.Sheet)
	}
	addr.Sheet = wb.canonicalSheet(addr.Sheet)
	addr.AbsRow, addr.AbsCol = false, false
	return addr, ws, nil
}

// canonicalSheet returns the defined spelling of a sheet name.
func (wb *Workbook) canonicalSheet(name string) string {
	if id, ok := wb.sheets.nameToID[fold(name)]; ok {
		return wb.sheets.name(id)
	}
	return name
}

// Get returns the value of a cell, evaluating it when it holds a formula.
// empty cells are Blank.
func (wb *Workbook) Get(address string) (formula.Value, error) {
	wb.mu.RLock()
	defer wb.mu.RUnlock()

	addr, ws, err := wb.resolveAddress(address)
	if err != nil {
		return formula.Value{}, err
	}
	cell, ok := ws.Get(addr.Row, addr.Col)
	if !ok {
		return formula.Blank(), nil
	}
	if cell.Formula == nil {
		return cell.Value, nil
	}
	return wb.engine.Eval(cell.Formula, view{wb}, formula.AtCell(addr)), nil
}

// Formula returns the formula text of a cell, with its leading "=", and
// whether the cell holds a formula.
func (wb *Workbook) Formula(address string) (string, bool, error) {
	wb.mu.RLock()
	defer wb.mu.RUnlock()

	addr, ws, err := wb.resolveAddress(address)
	if err != nil {
		return "", false, err
	}
	fc, ok := ws.formulaAt(addr.Row, addr.Col)
	if !ok {
		return "", false, nil
	}
	return "=" + fc.formula.String(), true, nil
}

// Set stores a value in a cell. text starting with "=" is a formula and is
// parsed immediately; a syntax error leaves the cell untouched and returns
// an InvalidArgument error wrapping the *formula.ParseError. other values
// go through formula.FromAny and nil clears the cell.
func (wb *Workbook) Set(address string, value any) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	addr, ws, err := wb.resolveAddress(address)
	if err != nil {
		return err
	}

	if text, ok := value.(string); ok && strings.HasPrefix(text, "=") {
		f, err := wb.engine.Parse(text)
		if err != nil {
			wb.logger.Debug("rejected formula", zap.String("cell", addr.String()), zap.Error(err))
			return &AppError{Code: InvalidArgument, Message: "invalid formula in " + addr.String(), Err: err}
		}
		wb.releaseFormula(ws.setFormula(addr.Row, addr.Col, wb.internFormula(f)))
		return nil
	}

	v := formula.FromAny(value)
	if v.Type == formula.ValueTypeArray {
		return errorf(InvalidArgument, "cannot store an array in %s", addr)
	}
	if v.Type == formula.ValueTypeError && !isErrorInput(value) {
		return errorf(InvalidArgument, "unsupported value type %T for %s", value, addr)
	}
	wb.releaseFormula(ws.setValue(addr.Row, addr.Col, v))
	return nil
}

func isErrorInput(value any) bool {
	switch t := value.(type) {
	case formula.ErrorCode:
		return true
	case formula.Value:
		return t.Type == formula.ValueTypeError
	}
	return false
}

// Remove clears a cell. removing an empty cell is not an error.
func (wb *Workbook) Remove(address string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	addr, ws, err := wb.resolveAddress(address)
	if err != nil {
		return err
	}
	wb.releaseFormula(ws.remove(addr.Row, addr.Col))
	return nil
}

// internFormula takes references on the sheets and names a formula uses,
// so referenced-but-undefined symbols can be listed.
func (wb *Workbook) internFormula(f *formula.Formula) *formulaCell {
	fc := &formulaCell{formula: f}
	for _, ref := range f.References() {
		if ref.Sheet != "" {
			fc.sheets = append(fc.sheets, wb.sheets.intern(ref.Sheet))
		}
		if ref.IsName {
			fc.names = append(fc.names, wb.names.intern(ref.Name))
		}
	}
	return fc
}

func (wb *Workbook) releaseFormula(fc *formulaCell) {
	if fc == nil {
		return
	}
	for _, id := range fc.sheets {
		wb.sheets.release(id)
	}
	for _, id := range fc.names {
		wb.names.release(id)
	}
}

// AddWorksheet adds an empty worksheet after the existing ones.
func (wb *Workbook) AddWorksheet(name string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if err := validSheetName(name); err != nil {
		return err
	}
	if _, ok := wb.sheets.define(name, newWorksheet(wb.strings)); !ok {
		return errorf(AlreadyExists, "worksheet %s already exists", name)
	}
	wb.logger.Debug("worksheet added", zap.String("sheet", name))
	return nil
}

func validSheetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewApplicationError(InvalidArgument, "worksheet name is empty")
	}
	if len([]rune(name)) > 31 || strings.ContainsAny(name, `[]:*?/\`) {
		return errorf(InvalidArgument, "invalid worksheet name %q", name)
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return errorf(InvalidArgument, "worksheet name %q starts or ends with a quote", name)
	}
	return nil
}

// RemoveWorksheet removes a worksheet and its cells. formulas elsewhere that
// still reference it evaluate to #REF!.
func (wb *Workbook) RemoveWorksheet(name string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	ws, ok := wb.sheets.undefine(name)
	if !ok {
		return errorf(NotFound, "worksheet %s not found", name)
	}
	for _, fc := range ws.formulaCells() {
		wb.releaseFormula(fc)
	}
	for _, cell := range ws.Cells() {
		ws.remove(cell.Row, cell.Col)
	}
	wb.logger.Debug("worksheet removed", zap.String("sheet", name))
	return nil
}

// RenameWorksheet renames a worksheet and rewrites formulas that reference
// it by name so they keep pointing at it.
func (wb *Workbook) RenameWorksheet(oldName, newName string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if !wb.sheets.contains(oldName) {
		return errorf(NotFound, "worksheet %s not found", oldName)
	}
	if err := validSheetName(newName); err != nil {
		return err
	}
	if fold(oldName) != fold(newName) && wb.sheets.contains(newName) {
		return errorf(AlreadyExists, "worksheet %s already exists", newName)
	}
	type rewrite struct {
		ws       *Worksheet
		row, col int
		formula  *formula.Formula
	}
	var pending []rewrite
	for _, sheetName := range wb.sheets.definedNames() {
		ws, _ := wb.sheets.lookup(sheetName)
		for _, cell := range ws.Cells() {
			if cell.Formula == nil || !referencesSheet(cell.Formula.Root, oldName) {
				continue
			}
			f, err := wb.renamedFormula(cell.Formula, oldName, newName)
			if err != nil {
				return &AppError{Code: Internal, Message: "rewrite formula after rename", Err: err}
			}
			pending = append(pending, rewrite{ws: ws, row: cell.Row, col: cell.Col, formula: f})
		}
	}

	if !wb.sheets.rename(oldName, newName) {
		return errorf(Internal, "rename of worksheet %s failed", oldName)
	}
	for _, p := range pending {
		wb.releaseFormula(p.ws.setFormula(p.row, p.col, wb.internFormula(p.formula)))
	}
	wb.logger.Debug("worksheet renamed",
		zap.String("from", oldName), zap.String("to", newName), zap.Int("formulas", len(pending)))
	return nil
}

func sheetMatcher(name string) func(string) bool {
	return func(sheet string) bool { return sheet != "" && fold(sheet) == fold(name) }
}

// referencesSheet reports whether any reference in root names sheet.
func referencesSheet(root formula.ASTNode, sheet string) bool {
	matches := sheetMatcher(sheet)
	found := false
	formula.Walk(root, func(n formula.ASTNode) bool {
		switch t := n.(type) {
		case *formula.CellRefNode:
			found = found || matches(t.Address.Sheet)
		case *formula.RangeNode:
			found = found || matches(t.Range.Sheet)
		case *formula.NameNode:
			found = found || matches(t.Sheet)
		}
		return !found
	})
	return found
}

// renamedFormula returns a new formula with references to oldName pointed
// at newName. f is shared with readers and left untouched; the edits go to
// a tree parsed from its printed text.
func (wb *Workbook) renamedFormula(f *formula.Formula, oldName, newName string) (*formula.Formula, error) {
	working, err := wb.engine.Parse(f.Root.ToString())
	if err != nil {
		return nil, err
	}
	matches := sheetMatcher(oldName)
	formula.Walk(working.Root, func(n formula.ASTNode) bool {
		switch t := n.(type) {
		case *formula.CellRefNode:
			if matches(t.Address.Sheet) {
				t.Address.Sheet = newName
			}
		case *formula.RangeNode:
			if matches(t.Range.Sheet) {
				t.Range.Sheet = newName
				t.Range.Start.Sheet, t.Range.End.Sheet = newName, newName
			}
		case *formula.NameNode:
			if matches(t.Sheet) {
				t.Sheet = newName
			}
		}
		return true
	})
	return wb.engine.Parse(working.Root.ToString())
}

// DoesWorksheetExist reports whether a worksheet is defined.
func (wb *Workbook) DoesWorksheetExist(name string) bool {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.sheets.contains(name)
}

// ListWorksheets returns worksheet names in tab order.
func (wb *Workbook) ListWorksheets() []string {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.sheets.definedNames()
}

// ListReferencedWorksheets returns sheet names that formulas reference but
// that are not defined.
func (wb *Workbook) ListReferencedWorksheets() []string {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.sheets.undefinedNames()
}

// Worksheet returns the storage of a worksheet. the result must not be used
// concurrently with writes to the workbook.
func (wb *Workbook) Worksheet(name string) (*Worksheet, bool) {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.sheets.lookup(name)
}

// AddNamedRange defines a workbook-scoped name. refersTo is formula text,
// usually a reference such as "Sheet1!$A$1:$B$4", and may start with "=".
func (wb *Workbook) AddNamedRange(name, refersTo string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if !validName(name) {
		return errorf(InvalidArgument, "invalid name %q", name)
	}
	text := strings.TrimPrefix(refersTo, "=")
	if _, err := wb.engine.Parse(text); err != nil {
		return &AppError{Code: InvalidArgument, Message: "invalid definition for " + name, Err: err}
	}
	if _, ok := wb.names.define(name, text); !ok {
		return errorf(AlreadyExists, "named range %s already exists", name)
	}
	return nil
}

// validName accepts letters, digits, "_", "." and "\", starting with a
// letter, "_" or "\", that cannot be read as a cell reference or boolean.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, ch := range name {
		letter := ch == '_' || ch == '\\' || (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || ch > 127
		if i == 0 && !letter {
			return false
		}
		if !letter && ch != '.' && (ch < '0' || ch > '9') {
			return false
		}
	}
	if strings.EqualFold(name, "TRUE") || strings.EqualFold(name, "FALSE") {
		return false
	}
	if addr, err := formula.ParseCellAddress(name); err == nil && addr.Valid() {
		return false
	}
	return true
}

// RemoveNamedRange deletes a defined name.
func (wb *Workbook) RemoveNamedRange(name string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if _, ok := wb.names.undefine(name); !ok {
		return errorf(NotFound, "named range %s not found", name)
	}
	return nil
}

// RenameNamedRange renames a defined name. formulas using the old name
// report #NAME? until it is defined again.
func (wb *Workbook) RenameNamedRange(oldName, newName string) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if !wb.names.contains(oldName) {
		return errorf(NotFound, "named range %s not found", oldName)
	}
	if !validName(newName) {
		return errorf(InvalidArgument, "invalid name %q", newName)
	}
	if fold(oldName) != fold(newName) && wb.names.contains(newName) {
		return errorf(AlreadyExists, "named range %s already exists", newName)
	}
	wb.names.rename(oldName, newName)
	return nil
}

// DoesNamedRangeExist reports whether a name is defined.
func (wb *Workbook) DoesNamedRangeExist(name string) bool {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.names.contains(name)
}

// NamedRange returns the definition text of a name.
func (wb *Workbook) NamedRange(name string) (string, bool) {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.names.lookup(name)
}

// ListNamedRanges returns defined names in definition order.
func (wb *Workbook) ListNamedRanges() []string {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.names.definedNames()
}

// ListReferencedNamedRanges returns names that formulas use but that are
// not defined.
func (wb *Workbook) ListReferencedNamedRanges() []string {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.names.undefinedNames()
}
