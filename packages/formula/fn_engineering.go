package formula

import (
	"math"
	"math/cmplx"
	"strconv"
	"strings"
)

const (
	bitLimit   = 1 << 48
	radixWidth = 10
)

// radix describes one of the positional systems the base conversion
// functions work in. values are ten digits wide with two's complement
// negatives.
type radix struct {
	base int
}

var (
	radixBin = radix{base: 2}
	radixOct = radix{base: 8}
	radixHex = radix{base: 16}
)

// span is the size of the ten-digit space.
func (r radix) span() int64 {
	return int64(math.Pow(float64(r.base), radixWidth))
}

func (r radix) parse(s string) (int64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, true
	}
	if len(s) > radixWidth {
		return 0, false
	}
	n, err := strconv.ParseInt(s, r.base, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	if len(s) == radixWidth && n >= r.span()/2 {
		n -= r.span()
	}
	return n, true
}

func (r radix) format(n int64, places int, hasPlaces bool) Value {
	half := r.span() / 2
	if n < -half || n >= half {
		return Err(ErrorCodeNum)
	}
	if n < 0 {
		return Text(strings.ToUpper(strconv.FormatInt(n+r.span(), r.base)))
	}
	s := strings.ToUpper(strconv.FormatInt(n, r.base))
	if hasPlaces {
		if places < 0 || places > radixWidth || len(s) > places {
			return Err(ErrorCodeNum)
		}
		s = strings.Repeat("0", places-len(s)) + s
	}
	return Text(s)
}

// radixConvert builds BIN2HEX and friends. from nil means the input is
// decimal; to nil means the output is.
func radixConvert(name string, from, to *radix) FunctionSpec {
	maxArgs := 2
	if to == nil {
		maxArgs = 1
	}
	return fn(name, CategoryEngineering, 1, maxArgs, func(c *Call) Value {
		var n int64
		if from == nil {
			x := c.Num(0)
			if c.Failed() {
				return c.Failure()
			}
			n = int64(math.Trunc(x))
		} else {
			s := c.Str(0)
			if c.Failed() {
				return c.Failure()
			}
			var ok bool
			if n, ok = from.parse(s); !ok {
				return Err(ErrorCodeNum)
			}
		}
		if to == nil {
			return Number(float64(n))
		}
		places := c.IntOr(1, 0)
		if c.Failed() {
			return c.Failure()
		}
		return to.format(n, places, c.Has(1))
	})
}

func engineeringFunctions() []FunctionSpec {
	return []FunctionSpec{
		radixConvert("BIN2DEC", &radixBin, nil),
		radixConvert("BIN2HEX", &radixBin, &radixHex),
		radixConvert("BIN2OCT", &radixBin, &radixOct),
		radixConvert("DEC2BIN", nil, &radixBin),
		radixConvert("DEC2HEX", nil, &radixHex),
		radixConvert("DEC2OCT", nil, &radixOct),
		radixConvert("HEX2BIN", &radixHex, &radixBin),
		radixConvert("HEX2DEC", &radixHex, nil),
		radixConvert("HEX2OCT", &radixHex, &radixOct),
		radixConvert("OCT2BIN", &radixOct, &radixBin),
		radixConvert("OCT2DEC", &radixOct, nil),
		radixConvert("OCT2HEX", &radixOct, &radixHex),

		bitwise("BITAND", func(a, b uint64) uint64 { return a & b }),
		bitwise("BITOR", func(a, b uint64) uint64 { return a | b }),
		bitwise("BITXOR", func(a, b uint64) uint64 { return a ^ b }),
		fn("BITLSHIFT", CategoryEngineering, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(x, s float64) Value { return bitShift(x, s) })
		}),
		fn("BITRSHIFT", CategoryEngineering, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(x, s float64) Value { return bitShift(x, -s) })
		}),

		fn("DELTA", CategoryEngineering, 1, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(a, b float64) Value { return Number(boolToFloat(a == b)) })
		}),
		fn("GESTEP", CategoryEngineering, 1, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(a, b float64) Value { return Number(boolToFloat(a >= b)) })
		}),
		fn("ERF", CategoryEngineering, 1, 2, func(c *Call) Value {
			lower := c.Num(0)
			if c.Failed() {
				return c.Failure()
			}
			if !c.Has(1) {
				return Number(math.Erf(lower))
			}
			upper := c.Num(1)
			if c.Failed() {
				return c.Failure()
			}
			return Number(math.Erf(upper) - math.Erf(lower))
		}),
		fn("ERF.PRECISE", CategoryEngineering, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(x float64) Value { return Number(math.Erf(x)) })
		}),
		fn("ERFC", CategoryEngineering, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(x float64) Value { return Number(math.Erfc(x)) })
		}),
		fn("ERFC.PRECISE", CategoryEngineering, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(x float64) Value { return Number(math.Erfc(x)) })
		}),
		fn("CONVERT", CategoryEngineering, 3, 3, fnConvert),

		fn("COMPLEX", CategoryEngineering, 2, 3, func(c *Call) Value {
			re, im := c.Num(0), c.Num(1)
			suffix := c.StrOr(2, "i")
			if c.Failed() {
				return c.Failure()
			}
			if suffix == "" {
				suffix = "i"
			}
			if suffix != "i" && suffix != "j" {
				return Err(ErrorCodeValue)
			}
			return Text(formatComplex(complex(re, im), suffix))
		}),
		imReal("IMABS", func(z complex128) float64 { return cmplx.Abs(z) }),
		imReal("IMREAL", func(z complex128) float64 { return real(z) }),
		imReal("IMAGINARY", func(z complex128) float64 { return imag(z) }),
		fn("IMARGUMENT", CategoryEngineering, 1, 1, func(c *Call) Value {
			z, _, code := complexArg(c, 0)
			if code != noError {
				return Err(code)
			}
			if z == 0 {
				return Err(ErrorCodeDiv0)
			}
			return Number(cmplx.Phase(z))
		}),
		imUnary("IMCONJUGATE", cmplx.Conj),
		imUnary("IMCOS", cmplx.Cos),
		imUnary("IMCOSH", cmplx.Cosh),
		imUnary("IMCOT", cmplx.Cot),
		imUnary("IMEXP", cmplx.Exp),
		imUnary("IMSIN", cmplx.Sin),
		imUnary("IMSINH", cmplx.Sinh),
		imUnary("IMSQRT", cmplx.Sqrt),
		imUnary("IMTAN", cmplx.Tan),
		imLog("IMLN", 1),
		imLog("IMLOG10", math.Ln10),
		imLog("IMLOG2", math.Ln2),
		fn("IMPOWER", CategoryEngineering, 2, 2, func(c *Call) Value {
			z, suffix, code := complexArg(c, 0)
			n := c.Num(1)
			if code != noError {
				return Err(code)
			}
			if c.Failed() {
				return c.Failure()
			}
			if z == 0 && n <= 0 {
				return Err(ErrorCodeNum)
			}
			return complexResult(powComplex(z, n), suffix)
		}),
		fn("IMDIV", CategoryEngineering, 2, 2, func(c *Call) Value {
			return imBinary(c, func(a, b complex128) (complex128, ErrorCode) {
				if b == 0 {
					return 0, ErrorCodeNum
				}
				return a / b, noError
			})
		}),
		fn("IMSUB", CategoryEngineering, 2, 2, func(c *Call) Value {
			return imBinary(c, func(a, b complex128) (complex128, ErrorCode) { return a - b, noError })
		}),
		arrayFn("IMSUM", CategoryEngineering, 1, Variadic, func(c *Call) Value {
			return imFold(c, 0, func(acc, z complex128) complex128 { return acc + z })
		}),
		arrayFn("IMPRODUCT", CategoryEngineering, 1, Variadic, func(c *Call) Value {
			return imFold(c, 1, func(acc, z complex128) complex128 { return acc * z })
		}),
	}
}

func bitwise(name string, op func(a, b uint64) uint64) FunctionSpec {
	return fn(name, CategoryEngineering, 2, 2, func(c *Call) Value {
		return map2Number(c, 0, 1, 0, func(a, b float64) Value {
			if !isBitOperand(a) || !isBitOperand(b) {
				return Err(ErrorCodeNum)
			}
			return Number(float64(op(uint64(a), uint64(b))))
		})
	})
}

func isBitOperand(x float64) bool {
	return x >= 0 && x < bitLimit && x == math.Trunc(x)
}

func bitShift(x, shift float64) Value {
	shift = math.Trunc(shift)
	if !isBitOperand(x) || math.Abs(shift) > 53 {
		return Err(ErrorCodeNum)
	}
	n := uint64(x)
	if shift >= 0 {
		n <<= uint(shift)
		if n >= bitLimit {
			return Err(ErrorCodeNum)
		}
	} else {
		n >>= uint(-shift)
	}
	return Number(float64(n))
}

// parseComplex reads text such as "3+4i", "-2.5j", "i" or "7". the suffix
// is "" when the text has no imaginary part.
func parseComplex(s string) (complex128, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", true
	}
	suffix := ""
	if last := s[len(s)-1]; last == 'i' || last == 'j' {
		suffix = string(last)
		s = s[:len(s)-1]
	}
	if suffix == "" {
		re, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, "", false
		}
		return complex(re, 0), "", true
	}

	split := -1
	for i := len(s) - 1; i > 0; i-- {
		if (s[i] == '+' || s[i] == '-') && s[i-1] != 'e' && s[i-1] != 'E' {
			split = i
			break
		}
	}
	reText, imText := "", s
	if split > 0 {
		reText, imText = s[:split], s[split:]
	}
	var re float64
	if reText != "" {
		var err error
		if re, err = strconv.ParseFloat(reText, 64); err != nil {
			return 0, "", false
		}
	}
	var im float64
	switch imText {
	case "", "+":
		im = 1
	case "-":
		im = -1
	default:
		var err error
		if im, err = strconv.ParseFloat(imText, 64); err != nil {
			return 0, "", false
		}
	}
	return complex(re, im), suffix, true
}

func formatComplex(z complex128, suffix string) string {
	re, im := snap15(real(z)), snap15(imag(z))
	if im == 0 {
		return FormatNumber(re)
	}
	var imText string
	switch im {
	case 1:
		imText = ""
	case -1:
		imText = "-"
	default:
		imText = FormatNumber(im)
	}
	if re == 0 {
		return imText + suffix
	}
	if im > 0 {
		return FormatNumber(re) + "+" + imText + suffix
	}
	return FormatNumber(re) + imText + suffix
}

// complexOf reads a scalar as a complex number. numbers are real; text
// must be a complex literal.
func complexOf(v Value) (complex128, string, ErrorCode) {
	switch v.Type {
	case ValueTypeError:
		return 0, "", v.Err
	case ValueTypeNumber:
		return complex(v.Num, 0), "", noError
	case ValueTypeBlank:
		return 0, "", noError
	case ValueTypeText:
		z, suffix, ok := parseComplex(v.Str)
		if !ok {
			return 0, "", ErrorCodeNum
		}
		return z, suffix, noError
	}
	return 0, "", ErrorCodeValue
}

func complexArg(c *Call, i int) (complex128, string, ErrorCode) {
	v := c.Scalar(i)
	if c.Failed() {
		return 0, "", c.err
	}
	return complexOf(v)
}

func complexResult(z complex128, suffix string) Value {
	if cmplx.IsNaN(z) || cmplx.IsInf(z) {
		return Err(ErrorCodeNum)
	}
	if suffix == "" {
		suffix = "i"
	}
	return Text(formatComplex(z, suffix))
}

func imReal(name string, f func(complex128) float64) FunctionSpec {
	return fn(name, CategoryEngineering, 1, 1, func(c *Call) Value {
		z, _, code := complexArg(c, 0)
		if code != noError {
			return Err(code)
		}
		return Number(f(z))
	})
}

func imUnary(name string, f func(complex128) complex128) FunctionSpec {
	return fn(name, CategoryEngineering, 1, 1, func(c *Call) Value {
		z, suffix, code := complexArg(c, 0)
		if code != noError {
			return Err(code)
		}
		return complexResult(f(z), suffix)
	})
}

func imLog(name string, divisor float64) FunctionSpec {
	return fn(name, CategoryEngineering, 1, 1, func(c *Call) Value {
		z, suffix, code := complexArg(c, 0)
		if code != noError {
			return Err(code)
		}
		if z == 0 {
			return Err(ErrorCodeNum)
		}
		return complexResult(cmplx.Log(z)/complex(divisor, 0), suffix)
	})
}

// powComplex raises z to a real power in polar form, which keeps integer
// powers of real numbers exact enough to print cleanly.
func powComplex(z complex128, n float64) complex128 {
	r, theta := cmplx.Polar(z)
	return cmplx.Rect(math.Pow(r, n), theta*n)
}

func imBinary(c *Call, op func(a, b complex128) (complex128, ErrorCode)) Value {
	a, sa, code := complexArg(c, 0)
	if code != noError {
		return Err(code)
	}
	b, sb, code := complexArg(c, 1)
	if code != noError {
		return Err(code)
	}
	if sa != "" && sb != "" && sa != sb {
		return Err(ErrorCodeValue)
	}
	z, code := op(a, b)
	if code != noError {
		return Err(code)
	}
	if sa == "" {
		sa = sb
	}
	return complexResult(z, sa)
}

func imFold(c *Call, init complex128, op func(acc, z complex128) complex128) Value {
	acc, suffix := init, ""
	for _, v := range flattenValues(c, 0) {
		if v.Type == ValueTypeBlank {
			continue
		}
		z, s, code := complexOf(v)
		if code != noError {
			return Err(code)
		}
		if s != "" {
			if suffix != "" && suffix != s {
				return Err(ErrorCodeValue)
			}
			suffix = s
		}
		acc = op(acc, z)
	}
	return complexResult(acc, suffix)
}

func fnConvert(c *Call) Value {
	x := c.Num(0)
	from, to := c.Str(1), c.Str(2)
	if c.Failed() {
		return c.Failure()
	}
	fu, ok := lookupUnit(from)
	if !ok {
		return Err(ErrorCodeNA)
	}
	tu, ok := lookupUnit(to)
	if !ok || fu.kind != tu.kind {
		return Err(ErrorCodeNA)
	}
	return Number(convertUnits(x, from, to, fu, tu))
}
