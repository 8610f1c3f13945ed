package formula

import (
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders a number as its shortest round-trip decimal. very
// large or very small magnitudes use the "1E+21" shape.
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-15 {
		return strconv.FormatFloat(v, 'E', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseNumberText parses text that is itself a numeric literal: optional
// sign, digits with optional grouping commas, fraction, exponent and a
// trailing percent sign. surrounding spaces are ignored.
func ParseNumberText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	scale := 1.0
	for strings.HasSuffix(s, "%") {
		scale /= 100
		s = strings.TrimSpace(s[:len(s)-1])
	}
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	var clean strings.Builder
	clean.WriteString(s[:i])
	// integer part, allowing 1,000 style grouping
	for i < len(s) {
		ch := s[i]
		if ch >= '0' && ch <= '9' {
			clean.WriteByte(ch)
			digits++
			i++
			continue
		}
		if ch == ',' && digits > 0 && isGroupOfThree(s[i+1:]) {
			i++
			continue
		}
		break
	}
	if i < len(s) && s[i] == '.' {
		clean.WriteByte('.')
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			clean.WriteByte(s[i])
			digits++
			i++
		}
	}
	if digits == 0 {
		return 0, false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		clean.WriteByte('e')
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			clean.WriteByte(s[i])
			i++
		}
		expDigits := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			clean.WriteByte(s[i])
			expDigits++
			i++
		}
		if expDigits == 0 {
			return 0, false
		}
	}
	if i != len(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean.String(), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v * scale, true
}

// isGroupOfThree reports whether s starts with exactly three digits followed
// by a non-digit or the end of input.
func isGroupOfThree(s string) bool {
	if len(s) < 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) == 3 || s[3] < '0' || s[3] > '9'
}

// ToNumber coerces a scalar to a number. the returned code is zero on
// success.
func ToNumber(v Value) (float64, ErrorCode) {
	switch v.Type {
	case ValueTypeBlank:
		return 0, noError
	case ValueTypeNumber:
		return v.Num, noError
	case ValueTypeBool:
		if v.Bool {
			return 1, noError
		}
		return 0, noError
	case ValueTypeText:
		if n, ok := ParseNumberText(v.Str); ok {
			return n, noError
		}
		return 0, ErrorCodeValue
	case ValueTypeError:
		return 0, v.Err
	case ValueTypeArray:
		s := v.Scalar()
		if s.Type == ValueTypeArray {
			return 0, ErrorCodeValue
		}
		return ToNumber(s)
	}
	return 0, ErrorCodeValue
}

// ToText coerces a scalar to text.
func ToText(v Value) (string, ErrorCode) {
	switch v.Type {
	case ValueTypeError:
		return "", v.Err
	case ValueTypeArray:
		s := v.Scalar()
		if s.Type == ValueTypeError {
			return "", s.Err
		}
		return ToText(s)
	}
	return v.String(), noError
}

// ToBool coerces a scalar to a boolean. only "TRUE" and "FALSE" text
// converts.
func ToBool(v Value) (bool, ErrorCode) {
	switch v.Type {
	case ValueTypeBlank:
		return false, noError
	case ValueTypeNumber:
		return v.Num != 0, noError
	case ValueTypeBool:
		return v.Bool, noError
	case ValueTypeText:
		switch strings.ToUpper(strings.TrimSpace(v.Str)) {
		case "TRUE":
			return true, noError
		case "FALSE":
			return false, noError
		}
		return false, ErrorCodeValue
	case ValueTypeError:
		return false, v.Err
	case ValueTypeArray:
		s := v.Scalar()
		if s.Type == ValueTypeArray {
			return false, ErrorCodeValue
		}
		return ToBool(s)
	}
	return false, ErrorCodeValue
}

// typeRank orders kinds for comparison: numbers < text < booleans.
func typeRank(v Value) int {
	switch v.Type {
	case ValueTypeText:
		return 1
	case ValueTypeBool:
		return 2
	}
	return 0
}

// compareValues compares two non-error scalars. returns -1, 0 or 1. a blank
// side takes the zero value of the other side's kind, and text compares
// case-insensitively.
func compareValues(a, b Value) int {
	if a.Type == ValueTypeBlank && b.Type == ValueTypeBlank {
		return 0
	}
	if a.Type == ValueTypeBlank {
		a = zeroOf(b)
	}
	if b.Type == ValueTypeBlank {
		b = zeroOf(a)
	}
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch a.Type {
	case ValueTypeNumber:
		return compareFloats(a.Num, b.Num)
	case ValueTypeText:
		return strings.Compare(strings.ToLower(a.Str), strings.ToLower(b.Str))
	case ValueTypeBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func zeroOf(v Value) Value {
	switch v.Type {
	case ValueTypeText:
		return Text("")
	case ValueTypeBool:
		return Bool(false)
	}
	return Number(0)
}

// valuesEqual is case-insensitive equality for lookups and the = operator.
func valuesEqual(a, b Value) bool {
	return compareValues(a, b) == 0
}
