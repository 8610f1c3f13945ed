package formula

import (
	"strings"
)

func databaseFunctions() []FunctionSpec {
	return []FunctionSpec{
		database("DAVERAGE", func(vs []Value) Value { return meanOf(numericCells(vs)) }),
		database("DCOUNT", func(vs []Value) Value { return Number(float64(len(numericCells(vs)))) }),
		database("DCOUNTA", func(vs []Value) Value {
			n := 0
			for _, v := range vs {
				if v.Type != ValueTypeBlank {
					n++
				}
			}
			return Number(float64(n))
		}),
		database("DGET", func(vs []Value) Value {
			switch len(vs) {
			case 0:
				return Err(ErrorCodeValue)
			case 1:
				return vs[0]
			}
			return Err(ErrorCodeNum)
		}),
		database("DMAX", func(vs []Value) Value { return extremeOrZero(maxOf)(numericCells(vs)) }),
		database("DMIN", func(vs []Value) Value { return extremeOrZero(minOf)(numericCells(vs)) }),
		database("DPRODUCT", func(vs []Value) Value {
			p := 1.0
			for _, x := range numericCells(vs) {
				p *= x
			}
			return Number(p)
		}),
		database("DSUM", func(vs []Value) Value {
			s := 0.0
			for _, x := range numericCells(vs) {
				s += x
			}
			return Number(s)
		}),
		database("DSTDEV", func(vs []Value) Value { return stdevOf(numericCells(vs), true) }),
		database("DSTDEVP", func(vs []Value) Value { return stdevOf(numericCells(vs), false) }),
		database("DVAR", func(vs []Value) Value { return varianceOf(numericCells(vs), true) }),
		database("DVARP", func(vs []Value) Value { return varianceOf(numericCells(vs), false) }),
	}
}

// database builds a D-function: it selects the field column of every
// record matching the criteria table and hands those cells to agg. an
// empty field slot selects whole records, which only DCOUNT and DCOUNTA
// make use of.
func database(name string, agg func([]Value) Value) FunctionSpec {
	return fn(name, CategoryDatabase, 3, 3, func(c *Call) Value {
		db, crit := c.Array(0), c.Array(2)
		if c.Failed() {
			return c.Failure()
		}
		rows, _ := db.Dims()
		if rows < 1 {
			return Err(ErrorCodeValue)
		}
		headers := db.Rows[0]

		field := -1
		if !c.IsMissing(1) {
			var code ErrorCode
			if field, code = fieldIndex(c.Scalar(1), headers); code != noError {
				return Err(code)
			}
		}

		match, code := recordFilter(crit, headers, c.Context().Date1904())
		if code != noError {
			return Err(code)
		}
		var selected []Value
		for r := 1; r < rows; r++ {
			if !match(db.Rows[r]) {
				continue
			}
			if field < 0 {
				selected = append(selected, Number(1))
				continue
			}
			selected = append(selected, db.At(r, field))
		}
		return agg(selected)
	})
}

// fieldIndex resolves a field argument, either a header label or a 1-based
// column number, to a 0-based column.
func fieldIndex(v Value, headers []Value) (int, ErrorCode) {
	switch v.Type {
	case ValueTypeError:
		return 0, v.Err
	case ValueTypeText:
		for i, h := range headers {
			if s, code := ToText(h); code == noError && strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(v.Str)) {
				return i, noError
			}
		}
		return 0, ErrorCodeValue
	}
	n, code := ToNumber(v)
	if code != noError {
		return 0, code
	}
	i := truncInt(n)
	if i < 1 || i > len(headers) {
		return 0, ErrorCodeValue
	}
	return i - 1, noError
}

// recordFilter compiles a criteria table. each row below the header is an
// alternative and every non-blank cell in it must hold for its column.
func recordFilter(crit Value, headers []Value, date1904 bool) (func([]Value) bool, ErrorCode) {
	rows, cols := crit.Dims()
	if rows < 2 {
		return nil, ErrorCodeValue
	}
	type condition struct {
		col int
		cr  criterion
	}
	var alternatives [][]condition
	for r := 1; r < rows; r++ {
		var conds []condition
		for j := 0; j < cols; j++ {
			cell := crit.At(r, j)
			if cell.Type == ValueTypeBlank {
				continue
			}
			col, code := fieldIndex(crit.At(0, j), headers)
			if code != noError {
				return nil, code
			}
			conds = append(conds, condition{col: col, cr: parseCriterion(cell, date1904)})
		}
		alternatives = append(alternatives, conds)
	}
	return func(record []Value) bool {
		for _, conds := range alternatives {
			ok := true
			for _, cond := range conds {
				if cond.col >= len(record) || !cond.cr.matches(record[cond.col]) {
					ok = false
					break
				}
			}
			if ok {
				return true
			}
		}
		return false
	}, noError
}

func numericCells(vs []Value) []float64 {
	var out []float64
	for _, v := range vs {
		if v.Type == ValueTypeNumber {
			out = append(out, v.Num)
		}
	}
	return out
}
