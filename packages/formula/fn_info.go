package formula

import (
	"math"
	"strings"
)

func informationFunctions() []FunctionSpec {
	return []FunctionSpec{
		fn("ERROR.TYPE", CategoryInformation, 1, 1, func(c *Call) Value {
			v := c.Arg(0).Scalar()
			if v.Type != ValueTypeError {
				return Err(ErrorCodeNA)
			}
			return Number(float64(v.Err))
		}),
		is("ISBLANK", func(v Value) bool { return v.Type == ValueTypeBlank }),
		is("ISERR", func(v Value) bool { return v.Type == ValueTypeError && v.Err != ErrorCodeNA }),
		is("ISERROR", func(v Value) bool { return v.Type == ValueTypeError }),
		is("ISLOGICAL", func(v Value) bool { return v.Type == ValueTypeBool }),
		is("ISNA", func(v Value) bool { return v.Type == ValueTypeError && v.Err == ErrorCodeNA }),
		is("ISNONTEXT", func(v Value) bool { return v.Type != ValueTypeText }),
		is("ISNUMBER", func(v Value) bool { return v.Type == ValueTypeNumber }),
		is("ISTEXT", func(v Value) bool { return v.Type == ValueTypeText }),
		parity("ISEVEN", 0),
		parity("ISODD", 1),
		lazy("ISREF", CategoryInformation, 1, 1, func(c *Call) Value {
			_, code, ok := c.Ref(0)
			return Bool(ok && code == noError)
		}),
		fn("N", CategoryInformation, 1, 1, func(c *Call) Value {
			v := c.Arg(0)
			if v.Type == ValueTypeArray {
				if rows, cols := v.Dims(); rows == 0 || cols == 0 {
					return Number(0)
				}
				v = v.Rows[0][0]
			}
			switch v.Type {
			case ValueTypeNumber, ValueTypeError:
				return v
			case ValueTypeBool:
				return Number(boolToFloat(v.Bool))
			}
			return Number(0)
		}),
		fn("NA", CategoryInformation, 0, 0, func(c *Call) Value { return Err(ErrorCodeNA) }),
		fn("TYPE", CategoryInformation, 1, 1, func(c *Call) Value {
			switch c.Arg(0).Type {
			case ValueTypeText:
				return Number(2)
			case ValueTypeBool:
				return Number(4)
			case ValueTypeError:
				return Number(16)
			case ValueTypeArray:
				return Number(64)
			}
			return Number(1)
		}),
		lazy("SHEET", CategoryInformation, 0, 1, fnSheet),
		lazy("SHEETS", CategoryInformation, 0, 1, fnSheets),
	}
}

// is builds an IS* predicate. predicates never propagate errors and apply
// element-wise to arrays.
func is(name string, pred func(Value) bool) FunctionSpec {
	return fn(name, CategoryInformation, 1, 1, func(c *Call) Value {
		return mapValues(c.Arg(0), func(v Value) Value { return Bool(pred(v)) })
	})
}

func parity(name string, rem float64) FunctionSpec {
	return fn(name, CategoryInformation, 1, 1, func(c *Call) Value {
		return mapValues(c.Arg(0), func(v Value) Value {
			if v.Type == ValueTypeBool {
				return Err(ErrorCodeValue)
			}
			n, code := ToNumber(v)
			if code != noError {
				return Err(code)
			}
			return Bool(math.Abs(math.Mod(math.Trunc(n), 2)) == rem)
		})
	})
}

func sheetIndex(sheets []string, name string) int {
	for i, s := range sheets {
		if strings.EqualFold(s, name) {
			return i + 1
		}
	}
	return 0
}

func fnSheet(c *Call) Value {
	lister, ok := c.Context().Resolver().(SheetLister)
	if !ok {
		return Err(ErrorCodeNA)
	}
	sheets := lister.Sheets()
	name := c.Context().Sheet()
	if c.Has(0) {
		if r, code, isRef := c.Ref(0); isRef {
			if code != noError {
				return Err(code)
			}
			name = r.Sheet
		} else {
			v := c.Arg(0).Scalar()
			if v.Type == ValueTypeError {
				return v
			}
			if v.Type != ValueTypeText {
				return Err(ErrorCodeNA)
			}
			name = v.Str
		}
	}
	if i := sheetIndex(sheets, name); i > 0 {
		return Number(float64(i))
	}
	return Err(ErrorCodeNA)
}

func fnSheets(c *Call) Value {
	if c.Has(0) {
		if _, code, isRef := c.Ref(0); isRef {
			if code != noError {
				return Err(code)
			}
			return Number(1)
		}
		return Err(ErrorCodeNA)
	}
	lister, ok := c.Context().Resolver().(SheetLister)
	if !ok {
		return Number(1)
	}
	return Number(float64(len(lister.Sheets())))
}
