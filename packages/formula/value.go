package formula

import (
	"math"
	"strings"
	"time"
)

// ValueType tags the kind of data a Value carries.
type ValueType uint8

const (
	ValueTypeBlank ValueType = iota
	ValueTypeNumber
	ValueTypeText
	ValueTypeBool
	ValueTypeError
	ValueTypeArray
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeBlank:
		return "blank"
	case ValueTypeNumber:
		return "number"
	case ValueTypeText:
		return "text"
	case ValueTypeBool:
		return "boolean"
	case ValueTypeError:
		return "error"
	case ValueTypeArray:
		return "array"
	}
	return "unknown"
}

// Value is the result of evaluating any expression. Only the field matching
// Type is meaningful. Arrays are rectangular and never nested.
type Value struct {
	Type ValueType
	Num  float64
	Str  string
	Bool bool
	Err  ErrorCode
	Rows [][]Value
}

// Number creates a numeric value. non-finite numbers become #NUM!.
func Number(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Err(ErrorCodeNum)
	}
	return Value{Type: ValueTypeNumber, Num: v}
}

func Text(s string) Value {
	return Value{Type: ValueTypeText, Str: s}
}

func Bool(b bool) Value {
	return Value{Type: ValueTypeBool, Bool: b}
}

func Err(code ErrorCode) Value {
	return Value{Type: ValueTypeError, Err: code}
}

func Blank() Value {
	return Value{}
}

// Array creates an array value from rows. ragged input is padded with #N/A so
// the result is always rectangular.
func Array(rows [][]Value) Value {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		for len(row) < width {
			row = append(row, Err(ErrorCodeNA))
		}
		rows[i] = row
	}
	return Value{Type: ValueTypeArray, Rows: rows}
}

// Column creates a single-column array.
func Column(values []Value) Value {
	rows := make([][]Value, len(values))
	for i, v := range values {
		rows[i] = []Value{v}
	}
	return Array(rows)
}

// Row creates a single-row array.
func Row(values []Value) Value {
	return Array([][]Value{values})
}

func (v Value) IsBlank() bool  { return v.Type == ValueTypeBlank }
func (v Value) IsNumber() bool { return v.Type == ValueTypeNumber }
func (v Value) IsText() bool   { return v.Type == ValueTypeText }
func (v Value) IsBool() bool   { return v.Type == ValueTypeBool }
func (v Value) IsError() bool  { return v.Type == ValueTypeError }
func (v Value) IsArray() bool  { return v.Type == ValueTypeArray }

// Dims returns the number of rows and columns. scalars are 1x1.
func (v Value) Dims() (rows, cols int) {
	if v.Type != ValueTypeArray {
		return 1, 1
	}
	if len(v.Rows) == 0 {
		return 0, 0
	}
	return len(v.Rows), len(v.Rows[0])
}

// At returns the element at the 0-based row and column. scalars repeat for
// any position, which is how single values broadcast against arrays.
func (v Value) At(r, c int) Value {
	if v.Type != ValueTypeArray {
		return v
	}
	rows, cols := v.Dims()
	if rows == 1 && r > 0 {
		r = 0
	}
	if cols == 1 && c > 0 {
		c = 0
	}
	if r < 0 || r >= rows || c < 0 || c >= cols {
		return Err(ErrorCodeNA)
	}
	return v.Rows[r][c]
}

// Scalar unwraps a 1x1 array to its element. larger arrays give #VALUE!.
func (v Value) Scalar() Value {
	if v.Type != ValueTypeArray {
		return v
	}
	rows, cols := v.Dims()
	if rows == 1 && cols == 1 {
		return v.Rows[0][0]
	}
	return Err(ErrorCodeValue)
}

// Flatten lists array elements in row-major order. scalars give a single
// element slice.
func (v Value) Flatten() []Value {
	if v.Type != ValueTypeArray {
		return []Value{v}
	}
	rows, cols := v.Dims()
	out := make([]Value, 0, rows*cols)
	for _, row := range v.Rows {
		out = append(out, row...)
	}
	return out
}

// String renders the value the way a cell would display it.
func (v Value) String() string {
	switch v.Type {
	case ValueTypeBlank:
		return ""
	case ValueTypeNumber:
		return FormatNumber(v.Num)
	case ValueTypeText:
		return v.Str
	case ValueTypeBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case ValueTypeError:
		return v.Err.String()
	case ValueTypeArray:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, row := range v.Rows {
			if i > 0 {
				sb.WriteByte(';')
			}
			for j, cell := range row {
				if j > 0 {
					sb.WriteByte(',')
				}
				if cell.Type == ValueTypeText {
					sb.WriteString(`"` + strings.ReplaceAll(cell.Str, `"`, `""`) + `"`)
				} else {
					sb.WriteString(cell.String())
				}
			}
		}
		sb.WriteByte('}')
		return sb.String()
	}
	return ""
}

// Equal reports structural equality. text is compared exactly.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case ValueTypeBlank:
		return true
	case ValueTypeNumber:
		return v.Num == o.Num
	case ValueTypeText:
		return v.Str == o.Str
	case ValueTypeBool:
		return v.Bool == o.Bool
	case ValueTypeError:
		return v.Err == o.Err
	case ValueTypeArray:
		if len(v.Rows) != len(o.Rows) {
			return false
		}
		for i := range v.Rows {
			if len(v.Rows[i]) != len(o.Rows[i]) {
				return false
			}
			for j := range v.Rows[i] {
				if !v.Rows[i][j].Equal(o.Rows[i][j]) {
					return false
				}
			}
		}
		return true
	}
	return false
}

// Any converts the value to a plain Go value: nil, float64, string, bool,
// ErrorCode or [][]any.
func (v Value) Any() any {
	switch v.Type {
	case ValueTypeNumber:
		return v.Num
	case ValueTypeText:
		return v.Str
	case ValueTypeBool:
		return v.Bool
	case ValueTypeError:
		return v.Err
	case ValueTypeArray:
		rows := make([][]any, len(v.Rows))
		for i, row := range v.Rows {
			rows[i] = make([]any, len(row))
			for j, cell := range row {
				rows[i][j] = cell.Any()
			}
		}
		return rows
	}
	return nil
}

// FromAny maps a collaborator's plain Go value into a Value. unknown types
// become #VALUE!.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Blank()
	case Value:
		return t
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case string:
		return Text(t)
	case bool:
		return Bool(t)
	case ErrorCode:
		return Err(t)
	case time.Time:
		return Number(TimeToSerial(t, false))
	case [][]any:
		rows := make([][]Value, len(t))
		for i, row := range t {
			rows[i] = make([]Value, len(row))
			for j, cell := range row {
				rows[i][j] = FromAny(cell)
			}
		}
		return Array(rows)
	}
	return Err(ErrorCodeValue)
}
