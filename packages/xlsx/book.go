// Package xlsx evaluates the formulas of an .xlsx workbook with a
// formula.Engine. cell values, defined names and the 1904 date setting come
// from the file through excelize; formula cells are evaluated from their
// formula text rather than their cached values.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// Book is an opened workbook. it is not safe for concurrent use.
type Book struct {
	file     *excelize.File
	engine   *formula.Engine
	logger   *zap.Logger
	date1904 bool

	// defined names keyed by lowercase name; scoped is keyed by lowercase
	// sheet name first.
	names  map[string]string
	scoped map[string]map[string]string
}

var (
	_ formula.Resolver     = (*Book)(nil)
	_ formula.NameResolver = (*Book)(nil)
	_ formula.SheetLister  = (*Book)(nil)
)

type settings struct {
	logger     *zap.Logger
	engineOpts []formula.Option
	date1904   bool
}

// Option configures a Book.
type Option func(*settings)

// WithLogger sets the logger used by the book and its engine.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithDefaultDate1904 picks the date system for files whose workbook
// properties do not record one. a file that does record it keeps its own.
func WithDefaultDate1904(enabled bool) Option {
	return func(s *settings) { s.date1904 = enabled }
}

// WithEngineOptions passes extra options to the engine the book builds.
// they are applied after the book's own, so they win.
func WithEngineOptions(opts ...formula.Option) Option {
	return func(s *settings) { s.engineOpts = append(s.engineOpts, opts...) }
}

// Open opens the workbook at path.
func Open(path string, opts ...Option) (*Book, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	b, err := Wrap(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

// OpenReader reads a workbook from r.
func OpenReader(r io.Reader, opts ...Option) (*Book, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	b, err := Wrap(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

// Wrap builds a Book around an already opened file.
func Wrap(f *excelize.File, opts ...Option) (*Book, error) {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}

	b := &Book{
		file:     f,
		logger:   s.logger,
		date1904: s.date1904,
		names:    make(map[string]string),
		scoped:   make(map[string]map[string]string),
	}
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, fmt.Errorf("read workbook properties: %w", err)
	}
	if props.Date1904 != nil {
		b.date1904 = *props.Date1904
	}
	b.loadDefinedNames()

	engineOpts := append([]formula.Option{
		formula.WithLogger(s.logger),
		formula.WithDate1904(b.date1904),
	}, s.engineOpts...)
	b.engine, err = formula.NewEngine(engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return b, nil
}

func (b *Book) loadDefinedNames() {
	for _, dn := range b.file.GetDefinedName() {
		refersTo := strings.TrimPrefix(dn.RefersTo, "=")
		name := strings.ToLower(dn.Name)
		if dn.Scope == "" || strings.EqualFold(dn.Scope, "Workbook") {
			b.names[name] = refersTo
			continue
		}
		scope := strings.ToLower(dn.Scope)
		if b.scoped[scope] == nil {
			b.scoped[scope] = make(map[string]string)
		}
		b.scoped[scope][name] = refersTo
	}
	b.logger.Debug("loaded defined names", zap.Int("workbook", len(b.names)), zap.Int("scoped", len(b.scoped)))
}

// Close releases the underlying file.
func (b *Book) Close() error {
	return b.file.Close()
}

// File returns the underlying excelize file.
func (b *Book) File() *excelize.File {
	return b.file
}

// Engine returns the engine formulas are evaluated with.
func (b *Book) Engine() *formula.Engine {
	return b.engine
}

// Date1904 reports whether the workbook uses the 1904 date system.
func (b *Book) Date1904() bool {
	return b.date1904
}

// Sheets returns the sheet names in tab order.
func (b *Book) Sheets() []string {
	return b.file.GetSheetList()
}

// sheetName maps a possibly differently cased sheet name to the one stored
// in the file. an empty name means the first sheet.
func (b *Book) sheetName(name string) (string, bool) {
	sheets := b.file.GetSheetList()
	if name == "" {
		if len(sheets) == 0 {
			return "", false
		}
		return sheets[0], true
	}
	for _, s := range sheets {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

// Resolve returns the value of a cell. formula cells are evaluated through
// ctx so cycles are detected across the whole workbook.
func (b *Book) Resolve(ctx *formula.EvalContext, addr formula.CellAddress) (formula.Value, bool) {
	sheet := addr.Sheet
	if sheet == "" {
		sheet = ctx.Sheet()
	}
	sheet, ok := b.sheetName(sheet)
	if !ok {
		return formula.Err(formula.ErrorCodeRef), true
	}
	cell, err := excelize.CoordinatesToCellName(addr.Col, addr.Row)
	if err != nil {
		return formula.Err(formula.ErrorCodeRef), true
	}
	if text, err := b.file.GetCellFormula(sheet, cell); err == nil && text != "" {
		f, err := b.parse(sheet, cell, text)
		if err != nil {
			return formula.Err(formula.ErrorCodeName), true
		}
		return ctx.EvalFormula(f), true
	}
	return b.storedValue(sheet, cell)
}

// ResolveName looks a defined name up in the sheet's scope, then the
// workbook's.
func (b *Book) ResolveName(sheet, name string) (string, bool) {
	key := strings.ToLower(name)
	if local, ok := b.scoped[strings.ToLower(sheet)]; ok {
		if refersTo, ok := local[key]; ok {
			return refersTo, true
		}
	}
	refersTo, ok := b.names[key]
	return refersTo, ok
}

func (b *Book) parse(sheet, cell, text string) (*formula.Formula, error) {
	f, err := b.engine.Parse(text)
	if err != nil {
		b.logger.Debug("unparseable formula",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.String("formula", text),
			zap.Error(err))
	}
	return f, err
}

func (b *Book) storedValue(sheet, cell string) (formula.Value, bool) {
	raw, err := b.file.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil || raw == "" {
		return formula.Value{}, false
	}
	typ, err := b.file.GetCellType(sheet, cell)
	if err != nil {
		typ = excelize.CellTypeUnset
	}
	return cellValue(typ, raw, b.date1904), true
}

// cellValue converts a raw stored cell value to a formula value.
func cellValue(typ excelize.CellType, raw string, date1904 bool) formula.Value {
	switch typ {
	case excelize.CellTypeBool:
		return formula.Bool(raw == "1" || strings.EqualFold(raw, "TRUE"))
	case excelize.CellTypeError:
		if code, ok := formula.ParseErrorCode(raw); ok {
			return formula.Err(code)
		}
		return formula.Text(raw)
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return formula.Text(raw)
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return formula.Number(formula.TimeToSerial(t, date1904))
			}
		}
		return formula.Text(raw)
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return formula.Number(n)
	}
	return formula.Text(raw)
}

// Value returns the value of one cell, evaluating it when it holds a
// formula.
func (b *Book) Value(sheet, cell string) (formula.Value, error) {
	name, ok := b.sheetName(sheet)
	if !ok {
		return formula.Value{}, fmt.Errorf("sheet %q not found", sheet)
	}
	col, row, err := excelize.CellNameToCoordinates(cell)
	if err != nil {
		return formula.Value{}, fmt.Errorf("cell %q: %w", cell, err)
	}
	addr := formula.CellAddress{Sheet: name, Row: row, Col: col}
	text, err := b.file.GetCellFormula(name, cell)
	if err != nil {
		return formula.Value{}, fmt.Errorf("read formula %s!%s: %w", name, cell, err)
	}
	if text == "" {
		v, ok := b.storedValue(name, cell)
		if !ok {
			return formula.Blank(), nil
		}
		return v, nil
	}
	f, err := b.parse(name, cell, text)
	if err != nil {
		return formula.Value{}, fmt.Errorf("%s!%s: %w", name, cell, err)
	}
	return b.engine.Eval(f, b, formula.AtCell(addr)), nil
}

// Evaluate evaluates formula text as if it were entered on sheet.
func (b *Book) Evaluate(sheet, src string) (formula.Value, error) {
	name, ok := b.sheetName(sheet)
	if !ok {
		return formula.Value{}, fmt.Errorf("sheet %q not found", sheet)
	}
	return b.engine.Evaluate(src, b, formula.OnSheet(name))
}

// Result is the outcome of evaluating one formula cell.
type Result struct {
	Cell    string
	Formula string
	Value   formula.Value
}

// Calculate evaluates every formula cell of sheet in row-major order. with
// writeBack the computed values are stored as the cells' cached values;
// error and blank results leave the cached value untouched.
func (b *Book) Calculate(sheet string, writeBack bool) ([]Result, error) {
	name, ok := b.sheetName(sheet)
	if !ok {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	cells, err := b.formulaCells(name)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(cells))
	for _, fc := range cells {
		v := formula.Err(formula.ErrorCodeName)
		if f, err := b.parse(name, fc.cell, fc.text); err == nil {
			v = b.engine.Eval(f, b, formula.AtCell(fc.addr))
		}
		if v.Type == formula.ValueTypeArray {
			v = v.At(0, 0)
		}
		results = append(results, Result{Cell: fc.cell, Formula: "=" + fc.text, Value: v})
		if writeBack {
			if err := b.writeValue(name, fc.cell, fc.text, v); err != nil {
				return nil, err
			}
		}
	}
	b.logger.Debug("calculated sheet", zap.String("sheet", name), zap.Int("formulas", len(results)))
	return results, nil
}

type formulaCell struct {
	addr formula.CellAddress
	cell string
	text string
}

func (b *Book) formulaCells(sheet string) ([]formulaCell, error) {
	rows, err := b.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", sheet, err)
	}
	maxRow, maxCol := len(rows), 0
	for _, r := range rows {
		maxCol = max(maxCol, len(r))
	}
	if dim, err := b.file.GetSheetDimension(sheet); err == nil && dim != "" {
		parts := strings.Split(dim, ":")
		if col, row, err := excelize.CellNameToCoordinates(parts[len(parts)-1]); err == nil {
			maxRow, maxCol = max(maxRow, row), max(maxCol, col)
		}
	}

	var cells []formulaCell
	for row := 1; row <= maxRow; row++ {
		for col := 1; col <= maxCol; col++ {
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return nil, err
			}
			text, err := b.file.GetCellFormula(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("read formula %s!%s: %w", sheet, cell, err)
			}
			if text == "" {
				continue
			}
			cells = append(cells, formulaCell{
				addr: formula.CellAddress{Sheet: sheet, Row: row, Col: col},
				cell: cell,
				text: text,
			})
		}
	}
	return cells, nil
}

// writeValue stores v as the cached value of a formula cell. setting a
// value drops the formula, so it is put back afterwards.
func (b *Book) writeValue(sheet, cell, text string, v formula.Value) error {
	var err error
	switch v.Type {
	case formula.ValueTypeNumber:
		err = b.file.SetCellFloat(sheet, cell, v.Num, -1, 64)
	case formula.ValueTypeText:
		err = b.file.SetCellStr(sheet, cell, v.Str)
	case formula.ValueTypeBool:
		err = b.file.SetCellBool(sheet, cell, v.Bool)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	if err := b.file.SetCellFormula(sheet, cell, text); err != nil {
		return fmt.Errorf("restore formula %s!%s: %w", sheet, cell, err)
	}
	return nil
}

// SaveAs writes the workbook to path.
func (b *Book) SaveAs(path string) error {
	if err := b.file.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// Write writes the workbook to w.
func (b *Book) Write(w io.Writer) error {
	return b.file.Write(w)
}
