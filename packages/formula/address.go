package formula

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// sheet limits, matching the xlsx grid
const (
	MaxColumns = 16384
	MaxRows    = 1048576
)

// CellAddress identifies a single cell. Row and Col are 1-based. an empty
// Sheet means "the sheet of the formula being evaluated".
type CellAddress struct {
	Sheet  string
	Row    int
	Col    int
	AbsRow bool
	AbsCol bool
}

// CellKey is the identity of a cell ignoring $ markers and sheet name case.
type CellKey struct {
	Sheet string
	Row   int
	Col   int
}

// Key returns the case-folded identity used by the resolving set.
func (a CellAddress) Key() CellKey {
	return CellKey{Sheet: strings.ToLower(a.Sheet), Row: a.Row, Col: a.Col}
}

// Valid reports whether the address lies inside the sheet grid.
func (a CellAddress) Valid() bool {
	return a.Row >= 1 && a.Row <= MaxRows && a.Col >= 1 && a.Col <= MaxColumns
}

// WithSheet returns a copy qualified with sheet when the address has none.
func (a CellAddress) WithSheet(sheet string) CellAddress {
	if a.Sheet == "" {
		a.Sheet = sheet
	}
	return a
}

// Offset moves the address by rows and cols, keeping sheet and flags.
func (a CellAddress) Offset(rows, cols int) CellAddress {
	a.Row += rows
	a.Col += cols
	return a
}

// Less orders addresses by sheet, then row, then column.
func (a CellAddress) Less(b CellAddress) bool {
	if sa, sb := strings.ToLower(a.Sheet), strings.ToLower(b.Sheet); sa != sb {
		return sa < sb
	}
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

// Local renders the address without its sheet qualifier, e.g. "$B$2".
func (a CellAddress) Local() string {
	var sb strings.Builder
	if a.AbsCol {
		sb.WriteByte('$')
	}
	sb.WriteString(ColumnName(a.Col))
	if a.AbsRow {
		sb.WriteByte('$')
	}
	sb.WriteString(strconv.Itoa(a.Row))
	return sb.String()
}

func (a CellAddress) String() string {
	if a.Sheet == "" {
		return a.Local()
	}
	return QuoteSheetName(a.Sheet) + "!" + a.Local()
}

// ColumnName converts a 1-based column index to letters (1 -> A, 27 -> AA).
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	for col > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// ColumnIndex converts column letters to a 1-based index. letters are
// case-insensitive.
func ColumnIndex(letters string) (int, bool) {
	if letters == "" || len(letters) > 3 {
		return 0, false
	}
	col := 0
	for _, ch := range letters {
		switch {
		case ch >= 'A' && ch <= 'Z':
			col = col*26 + int(ch-'A') + 1
		case ch >= 'a' && ch <= 'z':
			col = col*26 + int(ch-'a') + 1
		default:
			return 0, false
		}
	}
	if col > MaxColumns {
		return 0, false
	}
	return col, true
}

// parseLocalCell parses "A1", "$A1", "A$1" or "$A$1" with no sheet part.
func parseLocalCell(s string) (CellAddress, bool) {
	var addr CellAddress
	i := 0
	if i < len(s) && s[i] == '$' {
		addr.AbsCol = true
		i++
	}
	start := i
	for i < len(s) && isASCIILetter(rune(s[i])) {
		i++
	}
	col, ok := ColumnIndex(s[start:i])
	if !ok {
		return CellAddress{}, false
	}
	if i < len(s) && s[i] == '$' {
		addr.AbsRow = true
		i++
	}
	digits := s[i:]
	if digits == "" || len(digits) > 7 {
		return CellAddress{}, false
	}
	for _, ch := range digits {
		if ch < '0' || ch > '9' {
			return CellAddress{}, false
		}
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 || row > MaxRows {
		return CellAddress{}, false
	}
	addr.Row = row
	addr.Col = col
	return addr, true
}

// isCellReference reports whether s has the shape of a local cell reference
// within the sheet limits.
func isCellReference(s string) bool {
	_, ok := parseLocalCell(s)
	return ok
}

// splitSheet separates an optional "Sheet!" or "'My Sheet'!" prefix from a
// reference.
func splitSheet(ref string) (sheet, rest string, err error) {
	if strings.HasPrefix(ref, "'") {
		var sb strings.Builder
		for i := 1; i < len(ref); i++ {
			if ref[i] == '\'' {
				if i+1 < len(ref) && ref[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
					continue
				}
				if i+1 >= len(ref) || ref[i+1] != '!' {
					return "", "", fmt.Errorf("invalid reference %q: expected ! after sheet name", ref)
				}
				return sb.String(), ref[i+2:], nil
			}
			sb.WriteByte(ref[i])
		}
		return "", "", fmt.Errorf("invalid reference %q: unclosed sheet name", ref)
	}
	if idx := strings.LastIndex(ref, "!"); idx >= 0 {
		if idx == 0 {
			return "", "", fmt.Errorf("invalid reference %q: empty sheet name", ref)
		}
		return ref[:idx], ref[idx+1:], nil
	}
	return "", ref, nil
}

// ParseCellAddress parses an A1-style reference such as "B2", "$B$2",
// "Sheet2!B2" or "'My Sheet'!B2".
func ParseCellAddress(ref string) (CellAddress, error) {
	sheet, local, err := splitSheet(strings.TrimSpace(ref))
	if err != nil {
		return CellAddress{}, err
	}
	addr, ok := parseLocalCell(local)
	if !ok {
		return CellAddress{}, fmt.Errorf("invalid cell reference: %s", ref)
	}
	addr.Sheet = sheet
	return addr, nil
}

// MustParseCellAddress is ParseCellAddress for constant input. it panics on
// malformed references.
func MustParseCellAddress(ref string) CellAddress {
	addr, err := ParseCellAddress(ref)
	if err != nil {
		panic(err)
	}
	return addr
}

// QuoteSheetName quotes a sheet name when it would not lex as a bare
// identifier.
func QuoteSheetName(name string) string {
	if name == "" {
		return name
	}
	plain := isASCIILetter(rune(name[0])) || name[0] == '_'
	for _, ch := range name {
		if !(isIdentChar(ch) && ch != '$') {
			plain = false
			break
		}
	}
	if plain && isCellReference(name) {
		plain = false
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// RangeAddress is a rectangular block of cells on one sheet. Start is always
// the top-left corner and End the bottom-right.
type RangeAddress struct {
	Sheet string
	Start CellAddress
	End   CellAddress
}

// NewRange builds a normalized range from two corners. the sheet of the
// first corner wins.
func NewRange(a, b CellAddress) RangeAddress {
	sheet := a.Sheet
	if sheet == "" {
		sheet = b.Sheet
	}
	start, end := a, b
	if start.Row > end.Row {
		start.Row, end.Row = end.Row, start.Row
		start.AbsRow, end.AbsRow = end.AbsRow, start.AbsRow
	}
	if start.Col > end.Col {
		start.Col, end.Col = end.Col, start.Col
		start.AbsCol, end.AbsCol = end.AbsCol, start.AbsCol
	}
	start.Sheet, end.Sheet = sheet, sheet
	return RangeAddress{Sheet: sheet, Start: start, End: end}
}

// ParseRangeAddress parses "A1:B2", "Sheet1!A1:B2" or a single cell, which
// yields a 1x1 range.
func ParseRangeAddress(ref string) (RangeAddress, error) {
	sheet, local, err := splitSheet(strings.TrimSpace(ref))
	if err != nil {
		return RangeAddress{}, err
	}
	first, second, found := strings.Cut(local, ":")
	start, ok := parseLocalCell(first)
	if !ok {
		return RangeAddress{}, fmt.Errorf("invalid range reference: %s", ref)
	}
	end := start
	if found {
		if end, ok = parseLocalCell(second); !ok {
			return RangeAddress{}, fmt.Errorf("invalid range reference: %s", ref)
		}
	}
	start.Sheet, end.Sheet = sheet, sheet
	return NewRange(start, end), nil
}

// Rows returns the height of the range.
func (r RangeAddress) Rows() int { return r.End.Row - r.Start.Row + 1 }

// Cols returns the width of the range.
func (r RangeAddress) Cols() int { return r.End.Col - r.Start.Col + 1 }

// Size returns the number of cells in the range.
func (r RangeAddress) Size() int { return r.Rows() * r.Cols() }

// Contains reports whether addr lies inside the range. the sheet must match
// case-insensitively, with an empty sheet matching anything.
func (r RangeAddress) Contains(addr CellAddress) bool {
	if r.Sheet != "" && addr.Sheet != "" && !strings.EqualFold(r.Sheet, addr.Sheet) {
		return false
	}
	return addr.Row >= r.Start.Row && addr.Row <= r.End.Row &&
		addr.Col >= r.Start.Col && addr.Col <= r.End.Col
}

// Cells iterates over every address in the range in row-major order.
func (r RangeAddress) Cells() iter.Seq[CellAddress] {
	return func(yield func(CellAddress) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(CellAddress{Sheet: r.Sheet, Row: row, Col: col}) {
					return
				}
			}
		}
	}
}

func (r RangeAddress) String() string {
	local := r.Start.Local()
	if r.Start.Row != r.End.Row || r.Start.Col != r.End.Col {
		local += ":" + r.End.Local()
	}
	if r.Sheet == "" {
		return local
	}
	return QuoteSheetName(r.Sheet) + "!" + local
}

func isASCIILetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch rune) bool {
	return isASCIILetter(ch) || (ch >= '0' && ch <= '9') || ch == '_' || ch == '.' || ch == '$' || ch > 127
}
