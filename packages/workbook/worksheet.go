package workbook

import (
	"cmp"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

const (
	ChunkRows = 256                   // rows per chunk
	ChunkCols = 256                   // columns per chunk
	ChunkSize = ChunkRows * ChunkCols // cells per chunk
)

type cellKind uint8

const (
	kindEmpty cellKind = iota
	kindNumber
	kindText
	kindBool
	kindError
	kindFormula
)

type chunkKey struct {
	row, col int
}

// chunk is a ChunkRows x ChunkCols block of cells in structure-of-arrays
// layout. only kinds exists up front; the value arrays are allocated the
// first time a cell of that kind is stored.
type chunk struct {
	kinds     []cellKind
	numbers   []float64      // number, bool (0/1) and error code cells
	stringIDs []uint32       // text cells
	formulas  []*formulaCell // formula cells
	count     int
}

// formulaCell is a parsed formula plus the symbols it references, which the
// workbook releases when the cell changes.
type formulaCell struct {
	formula *formula.Formula
	sheets  []uint32
	names   []uint32
}

// Cell is a stored cell. formula cells have a Formula and a blank Value;
// their value is computed on read.
type Cell struct {
	Row     int
	Col     int
	Value   formula.Value
	Formula *formula.Formula
}

// Worksheet is sparse cell storage. cells are partitioned into 256x256
// chunks so clustered data shares allocations and empty regions cost
// nothing. rows and columns are 1-based as in formula.CellAddress.
type Worksheet struct {
	chunks  map[chunkKey]*chunk
	strings *StringTable
	cells   int
}

func newWorksheet(strings *StringTable) *Worksheet {
	return &Worksheet{
		chunks:  make(map[chunkKey]*chunk),
		strings: strings,
	}
}

// locate returns the chunk key and the column-major index inside the chunk.
func locate(row, col int) (chunkKey, int) {
	r, c := row-1, col-1
	key := chunkKey{row: r / ChunkRows, col: c / ChunkCols}
	return key, (c%ChunkCols)*ChunkRows + r%ChunkRows
}

func (w *Worksheet) chunkAt(key chunkKey) *chunk {
	ch, exists := w.chunks[key]
	if !exists {
		ch = &chunk{kinds: make([]cellKind, ChunkSize)}
		w.chunks[key] = ch
	}
	return ch
}

// Get returns the cell at row, col.
func (w *Worksheet) Get(row, col int) (Cell, bool) {
	key, idx := locate(row, col)
	ch, exists := w.chunks[key]
	if !exists || ch.kinds[idx] == kindEmpty {
		return Cell{}, false
	}
	cell := Cell{Row: row, Col: col}
	switch ch.kinds[idx] {
	case kindNumber:
		cell.Value = formula.Number(ch.numbers[idx])
	case kindBool:
		cell.Value = formula.Bool(ch.numbers[idx] != 0)
	case kindError:
		cell.Value = formula.Err(formula.ErrorCode(ch.numbers[idx]))
	case kindText:
		s, _ := w.strings.Get(ch.stringIDs[idx])
		cell.Value = formula.Text(s)
	case kindFormula:
		cell.Value = formula.Blank()
		cell.Formula = ch.formulas[idx].formula
	}
	return cell, true
}

func (w *Worksheet) formulaAt(row, col int) (*formulaCell, bool) {
	key, idx := locate(row, col)
	ch, exists := w.chunks[key]
	if !exists || ch.kinds[idx] != kindFormula {
		return nil, false
	}
	return ch.formulas[idx], true
}

// setValue stores a literal value. blank values clear the cell. the
// formula previously in the cell, if any, is returned for release.
func (w *Worksheet) setValue(row, col int, v formula.Value) *formulaCell {
	if v.Type == formula.ValueTypeBlank {
		return w.remove(row, col)
	}
	key, idx := locate(row, col)
	ch := w.chunkAt(key)
	old := w.clear(ch, idx)

	switch v.Type {
	case formula.ValueTypeNumber:
		ch.setNumber(idx, kindNumber, v.Num)
	case formula.ValueTypeBool:
		n := 0.0
		if v.Bool {
			n = 1
		}
		ch.setNumber(idx, kindBool, n)
	case formula.ValueTypeError:
		ch.setNumber(idx, kindError, float64(v.Err))
	case formula.ValueTypeText:
		if ch.stringIDs == nil {
			ch.stringIDs = make([]uint32, ChunkSize)
		}
		ch.kinds[idx] = kindText
		ch.stringIDs[idx] = w.strings.Intern(v.Str)
	}
	ch.count++
	w.cells++
	return old
}

func (ch *chunk) setNumber(idx int, kind cellKind, n float64) {
	if ch.numbers == nil {
		ch.numbers = make([]float64, ChunkSize)
	}
	ch.kinds[idx] = kind
	ch.numbers[idx] = n
}

// setFormula stores a formula cell and returns the replaced formula, if any.
func (w *Worksheet) setFormula(row, col int, fc *formulaCell) *formulaCell {
	key, idx := locate(row, col)
	ch := w.chunkAt(key)
	old := w.clear(ch, idx)
	if ch.formulas == nil {
		ch.formulas = make([]*formulaCell, ChunkSize)
	}
	ch.kinds[idx] = kindFormula
	ch.formulas[idx] = fc
	ch.count++
	w.cells++
	return old
}

// remove clears the cell and drops its chunk once the chunk is empty.
func (w *Worksheet) remove(row, col int) *formulaCell {
	key, idx := locate(row, col)
	ch, exists := w.chunks[key]
	if !exists {
		return nil
	}
	old := w.clear(ch, idx)
	if ch.count == 0 {
		delete(w.chunks, key)
	}
	return old
}

// clear empties one slot, releasing its string, and returns its formula.
func (w *Worksheet) clear(ch *chunk, idx int) *formulaCell {
	var old *formulaCell
	switch ch.kinds[idx] {
	case kindEmpty:
		return nil
	case kindText:
		w.strings.Release(ch.stringIDs[idx])
		ch.stringIDs[idx] = 0
	case kindFormula:
		old = ch.formulas[idx]
		ch.formulas[idx] = nil
	default:
		ch.numbers[idx] = 0
	}
	ch.kinds[idx] = kindEmpty
	ch.count--
	w.cells--
	return old
}

// Len returns the number of non-empty cells.
func (w *Worksheet) Len() int {
	return w.cells
}

// Cells returns every stored cell ordered by row, then column.
func (w *Worksheet) Cells() []Cell {
	cells := make([]Cell, 0, w.cells)
	for key, ch := range w.chunks {
		for idx, kind := range ch.kinds {
			if kind == kindEmpty {
				continue
			}
			row := key.row*ChunkRows + idx%ChunkRows + 1
			col := key.col*ChunkCols + idx/ChunkRows + 1
			cell, _ := w.Get(row, col)
			cells = append(cells, cell)
		}
	}
	slices.SortFunc(cells, func(a, b Cell) int {
		if c := cmp.Compare(a.Row, b.Row); c != 0 {
			return c
		}
		return cmp.Compare(a.Col, b.Col)
	})
	return cells
}

// formulaCells returns the formula records stored in the sheet.
func (w *Worksheet) formulaCells() []*formulaCell {
	var out []*formulaCell
	for _, ch := range w.chunks {
		for idx, kind := range ch.kinds {
			if kind == kindFormula {
				out = append(out, ch.formulas[idx])
			}
		}
	}
	return out
}
