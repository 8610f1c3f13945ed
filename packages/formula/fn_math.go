package formula

import (
	"math"
	"strconv"
	"strings"
)

func mathFunctions() []FunctionSpec {
	return []FunctionSpec{
		unaryMath("ABS", func(x float64) Value { return Number(math.Abs(x)) }),
		unaryMath("ACOS", func(x float64) Value {
			if x < -1 || x > 1 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Acos(x))
		}),
		unaryMath("ACOSH", func(x float64) Value {
			if x < 1 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Acosh(x))
		}),
		unaryMath("ACOT", func(x float64) Value { return Number(math.Pi/2 - math.Atan(x)) }),
		unaryMath("ACOTH", func(x float64) Value {
			if math.Abs(x) <= 1 {
				return Err(ErrorCodeNum)
			}
			return Number(0.5 * math.Log((x+1)/(x-1)))
		}),
		unaryMath("ASIN", func(x float64) Value {
			if x < -1 || x > 1 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Asin(x))
		}),
		unaryMath("ASINH", func(x float64) Value { return Number(math.Asinh(x)) }),
		unaryMath("ATAN", func(x float64) Value { return Number(math.Atan(x)) }),
		fn("ATAN2", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(x, y float64) Value {
				if x == 0 && y == 0 {
					return Err(ErrorCodeDiv0)
				}
				return Number(math.Atan2(y, x))
			})
		}),
		unaryMath("ATANH", func(x float64) Value {
			if x <= -1 || x >= 1 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Atanh(x))
		}),
		unaryMath("COS", func(x float64) Value { return Number(math.Cos(x)) }),
		unaryMath("COSH", func(x float64) Value { return Number(math.Cosh(x)) }),
		unaryMath("COT", func(x float64) Value {
			if x == 0 {
				return Err(ErrorCodeDiv0)
			}
			return Number(1 / math.Tan(x))
		}),
		unaryMath("COTH", func(x float64) Value {
			if x == 0 {
				return Err(ErrorCodeDiv0)
			}
			return Number(1 / math.Tanh(x))
		}),
		unaryMath("CSC", func(x float64) Value {
			if x == 0 {
				return Err(ErrorCodeDiv0)
			}
			return Number(1 / math.Sin(x))
		}),
		unaryMath("CSCH", func(x float64) Value {
			if x == 0 {
				return Err(ErrorCodeDiv0)
			}
			return Number(1 / math.Sinh(x))
		}),
		unaryMath("SEC", func(x float64) Value { return Number(1 / math.Cos(x)) }),
		unaryMath("SECH", func(x float64) Value { return Number(1 / math.Cosh(x)) }),
		unaryMath("SIN", func(x float64) Value { return Number(math.Sin(x)) }),
		unaryMath("SINH", func(x float64) Value { return Number(math.Sinh(x)) }),
		unaryMath("TAN", func(x float64) Value { return Number(math.Tan(x)) }),
		unaryMath("TANH", func(x float64) Value { return Number(math.Tanh(x)) }),
		unaryMath("DEGREES", func(x float64) Value { return Number(x * 180 / math.Pi) }),
		unaryMath("RADIANS", func(x float64) Value { return Number(x * math.Pi / 180) }),
		unaryMath("EXP", func(x float64) Value { return Number(math.Exp(x)) }),
		unaryMath("LN", func(x float64) Value {
			if x <= 0 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Log(x))
		}),
		unaryMath("LOG10", func(x float64) Value {
			if x <= 0 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Log10(x))
		}),
		fn("LOG", CategoryMath, 1, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 10, func(x, base float64) Value {
				if x <= 0 || base <= 0 {
					return Err(ErrorCodeNum)
				}
				if base == 1 {
					return Err(ErrorCodeDiv0)
				}
				return Number(math.Log(x) / math.Log(base))
			})
		}),
		unaryMath("INT", func(x float64) Value { return Number(math.Floor(x)) }),
		unaryMath("SIGN", func(x float64) Value {
			switch {
			case x > 0:
				return Number(1)
			case x < 0:
				return Number(-1)
			}
			return Number(0)
		}),
		unaryMath("SQRT", func(x float64) Value {
			if x < 0 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Sqrt(x))
		}),
		unaryMath("SQRTPI", func(x float64) Value {
			if x < 0 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Sqrt(x * math.Pi))
		}),
		unaryMath("EVEN", func(x float64) Value { return Number(roundAwayToParity(x, 0)) }),
		unaryMath("ODD", func(x float64) Value { return Number(roundAwayToParity(x, 1)) }),
		unaryMath("FACT", fact),
		unaryMath("FACTDOUBLE", func(x float64) Value {
			n := math.Trunc(x)
			if n < -1 {
				return Err(ErrorCodeNum)
			}
			res := 1.0
			for k := n; k > 1; k -= 2 {
				res *= k
			}
			return Number(res)
		}),
		fn("PI", CategoryMath, 0, 0, func(c *Call) Value { return Number(math.Pi) }),
		fn("POWER", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(a, b float64) Value { return power(a, b) })
		}),
		fn("MOD", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(n, d float64) Value {
				if d == 0 {
					return Err(ErrorCodeDiv0)
				}
				return Number(n - d*math.Floor(n/d))
			})
		}),
		fn("QUOTIENT", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(n, d float64) Value {
				if d == 0 {
					return Err(ErrorCodeDiv0)
				}
				return Number(math.Trunc(n / d))
			})
		}),
		fn("ROUND", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(x, d float64) Value {
				return Number(roundHalfAway(x, truncInt(d)))
			})
		}),
		fn("ROUNDDOWN", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(x, d float64) Value {
				return Number(roundToward(x, truncInt(d), math.Floor))
			})
		}),
		fn("ROUNDUP", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(x, d float64) Value {
				return Number(roundToward(x, truncInt(d), math.Ceil))
			})
		}),
		fn("TRUNC", CategoryMath, 1, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(x, d float64) Value {
				return Number(roundToward(x, truncInt(d), math.Floor))
			})
		}),
		fn("MROUND", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(x, m float64) Value {
				if m == 0 {
					return Number(0)
				}
				if (x > 0 && m < 0) || (x < 0 && m > 0) {
					return Err(ErrorCodeNum)
				}
				return Number(roundHalfAway(x/m, 0) * m)
			})
		}),
		fn("CEILING", CategoryMath, 1, 2, fnCeiling),
		fn("CEILING.MATH", CategoryMath, 1, 3, func(c *Call) Value { return roundToMultiple(c, true, true) }),
		fn("CEILING.PRECISE", CategoryMath, 1, 2, func(c *Call) Value { return roundToMultiple(c, true, false) }),
		fn("ISO.CEILING", CategoryMath, 1, 2, func(c *Call) Value { return roundToMultiple(c, true, false) }),
		fn("FLOOR", CategoryMath, 1, 2, fnFloor),
		fn("FLOOR.MATH", CategoryMath, 1, 3, func(c *Call) Value { return roundToMultiple(c, false, true) }),
		fn("FLOOR.PRECISE", CategoryMath, 1, 2, func(c *Call) Value { return roundToMultiple(c, false, false) }),
		fn("COMBIN", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(n, k float64) Value { return combin(math.Trunc(n), math.Trunc(k)) })
		}),
		fn("COMBINA", CategoryMath, 2, 2, func(c *Call) Value {
			return map2Number(c, 0, 1, 0, func(n, k float64) Value {
				n, k = math.Trunc(n), math.Trunc(k)
				if n < 0 || k < 0 {
					return Err(ErrorCodeNum)
				}
				if n == 0 && k == 0 {
					return Number(1)
				}
				return combin(n+k-1, k)
			})
		}),
		fn("GCD", CategoryMath, 1, Variadic, fnGCD),
		fn("LCM", CategoryMath, 1, Variadic, fnLCM),
		fn("MULTINOMIAL", CategoryMath, 1, Variadic, fnMultinomial),
		arrayFn("PRODUCT", CategoryMath, 1, Variadic, func(c *Call) Value {
			nums, code := collectNumbers(c, 0, collectOptions{})
			if code != noError {
				return Err(code)
			}
			if len(nums) == 0 {
				return Number(0)
			}
			p := 1.0
			for _, n := range nums {
				p *= n
			}
			return Number(p)
		}),
		arrayFn("SUM", CategoryMath, 1, Variadic, fnSum),
		arrayFn("SUMSQ", CategoryMath, 1, Variadic, func(c *Call) Value {
			nums, code := collectNumbers(c, 0, collectOptions{})
			if code != noError {
				return Err(code)
			}
			s := 0.0
			for _, n := range nums {
				s += n * n
			}
			return Number(s)
		}),
		arrayFn("SUMX2MY2", CategoryMath, 2, 2, func(c *Call) Value {
			return sumPairs(c, func(x, y float64) float64 { return x*x - y*y })
		}),
		arrayFn("SUMX2PY2", CategoryMath, 2, 2, func(c *Call) Value {
			return sumPairs(c, func(x, y float64) float64 { return x*x + y*y })
		}),
		arrayFn("SUMXMY2", CategoryMath, 2, 2, func(c *Call) Value {
			return sumPairs(c, func(x, y float64) float64 { return (x - y) * (x - y) })
		}),
		arrayFn("SUMPRODUCT", CategoryMath, 1, Variadic, fnSumProduct),
		fn("SUMIF", CategoryMath, 2, 3, fnSumIf),
		fn("SUMIFS", CategoryMath, 3, Variadic, fnSumIfs),
		fn("SERIESSUM", CategoryMath, 4, 4, fnSeriesSum),
		fn("SUBTOTAL", CategoryMath, 2, Variadic, fnSubtotal),
		fn("AGGREGATE", CategoryMath, 3, Variadic, fnAggregate),
		arrayFn("MMULT", CategoryMath, 2, 2, fnMMult),
		arrayFn("MINVERSE", CategoryMath, 1, 1, fnMInverse),
		arrayFn("MDETERM", CategoryMath, 1, 1, fnMDeterm),
		fn("MUNIT", CategoryMath, 1, 1, func(c *Call) Value {
			n := c.Int(0)
			if c.Failed() {
				return c.Failure()
			}
			if n < 1 {
				return Err(ErrorCodeValue)
			}
			if tooManyCells(c, n, n) {
				return Err(ErrorCodeNum)
			}
			return identity(n)
		}),
		fn("SEQUENCE", CategoryMath, 1, 4, fnSequence),
		volatile(fn("RAND", CategoryMath, 0, 0, func(c *Call) Value { return Number(c.Context().Random()) })),
		volatile(fn("RANDBETWEEN", CategoryMath, 2, 2, func(c *Call) Value {
			lo, hi := math.Ceil(c.Num(0)), math.Floor(c.Num(1))
			if c.Failed() {
				return c.Failure()
			}
			if lo > hi {
				return Err(ErrorCodeNum)
			}
			return Number(lo + math.Floor(c.Context().Random()*(hi-lo+1)))
		})),
		volatile(fn("RANDARRAY", CategoryMath, 0, 5, fnRandArray)),
		fn("ROMAN", CategoryMath, 1, 2, fnRoman),
		fn("ARABIC", CategoryMath, 1, 1, fnArabic),
		fn("BASE", CategoryMath, 2, 3, fnBase),
		fn("DECIMAL", CategoryMath, 2, 2, fnDecimal),
	}
}

func unaryMath(name string, f func(float64) Value) FunctionSpec {
	return fn(name, CategoryMath, 1, 1, func(c *Call) Value { return mapNumber(c, 0, f) })
}

// snap15 rounds x to 15 significant digits, hiding binary noise such as
// 0.30000000000000004 before ceiling and floor operations.
func snap15(x float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'g', 15, 64), 64)
	if err != nil {
		return x
	}
	return v
}

// roundToward rounds |x| with op at digits decimals, keeping the sign, so
// math.Floor truncates toward zero and math.Ceil rounds away from it.
func roundToward(x float64, digits int, op func(float64) float64) float64 {
	p := math.Pow10(digits)
	v := op(snap15(math.Abs(x) * p))
	if x < 0 {
		v = -v
	}
	return v / p
}

func roundAwayToParity(x float64, parity float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	v := math.Ceil(snap15(math.Abs(x)))
	if math.Mod(v, 2) != parity {
		v++
	}
	return sign * v
}

func fact(x float64) Value {
	n := math.Trunc(x)
	if n < 0 {
		return Err(ErrorCodeNum)
	}
	res := 1.0
	for k := 2.0; k <= n; k++ {
		res *= k
		if math.IsInf(res, 0) {
			return Err(ErrorCodeNum)
		}
	}
	return Number(res)
}

func combin(n, k float64) Value {
	if n < 0 || k < 0 || n < k {
		return Err(ErrorCodeNum)
	}
	if k > n-k {
		k = n - k
	}
	res := 1.0
	for i := 1.0; i <= k; i++ {
		res = res * (n - k + i) / i
	}
	return Number(math.Round(res))
}

func fnCeiling(c *Call) Value {
	return map2Number(c, 0, 1, 1, func(x, sig float64) Value {
		if sig == 0 {
			return Number(0)
		}
		if x > 0 && sig < 0 {
			return Err(ErrorCodeNum)
		}
		return Number(math.Ceil(snap15(x/sig)) * sig)
	})
}

func fnFloor(c *Call) Value {
	return map2Number(c, 0, 1, 1, func(x, sig float64) Value {
		if sig == 0 {
			if x == 0 {
				return Number(0)
			}
			return Err(ErrorCodeDiv0)
		}
		if x > 0 && sig < 0 {
			return Err(ErrorCodeNum)
		}
		return Number(math.Floor(snap15(x/sig)) * sig)
	})
}

// roundToMultiple implements the .MATH and .PRECISE variants, which ignore
// the sign of the significance. withMode enables the third argument that
// flips the direction for negative numbers.
func roundToMultiple(c *Call, up bool, withMode bool) Value {
	x := c.Num(0)
	sig := math.Abs(c.NumOr(1, 1))
	mode := 0.0
	if withMode {
		mode = c.NumOr(2, 0)
	}
	if c.Failed() {
		return c.Failure()
	}
	if sig == 0 {
		return Number(0)
	}
	q := snap15(x / sig)
	flip := x < 0 && mode != 0
	if up != flip {
		return Number(math.Ceil(q) * sig)
	}
	return Number(math.Floor(q) * sig)
}

func fnSum(c *Call) Value {
	nums, code := collectNumbers(c, 0, collectOptions{})
	if code != noError {
		return Err(code)
	}
	s := 0.0
	for _, n := range nums {
		s += n
	}
	return Number(s)
}

func integerArgs(c *Call) ([]float64, ErrorCode) {
	nums, code := collectNumbers(c, 0, collectOptions{})
	if code != noError {
		return nil, code
	}
	for i, n := range nums {
		if n < 0 {
			return nil, ErrorCodeNum
		}
		nums[i] = math.Trunc(n)
	}
	return nums, noError
}

func gcd(a, b float64) float64 {
	for b != 0 {
		a, b = b, math.Mod(a, b)
	}
	return a
}

func fnGCD(c *Call) Value {
	nums, code := integerArgs(c)
	if code != noError {
		return Err(code)
	}
	g := 0.0
	for _, n := range nums {
		g = gcd(g, n)
	}
	return Number(g)
}

func fnLCM(c *Call) Value {
	nums, code := integerArgs(c)
	if code != noError {
		return Err(code)
	}
	l := 1.0
	for _, n := range nums {
		if n == 0 {
			return Number(0)
		}
		l = l * n / gcd(l, n)
	}
	return Number(l)
}

func fnMultinomial(c *Call) Value {
	nums, code := integerArgs(c)
	if code != noError {
		return Err(code)
	}
	total := 0.0
	denom := 1.0
	for _, n := range nums {
		total += n
		f := fact(n)
		if f.IsError() {
			return f
		}
		denom *= f.Num
	}
	num := fact(total)
	if num.IsError() {
		return num
	}
	return Number(math.Round(num.Num / denom))
}

func sumPairs(c *Call, f func(x, y float64) float64) Value {
	xs, ys, code := pairedNumbers(c, 0, 1)
	if code != noError {
		return Err(code)
	}
	s := 0.0
	for i := range xs {
		s += f(xs[i], ys[i])
	}
	return Number(s)
}

func fnSumProduct(c *Call) Value {
	var arrays []Value
	rows, cols := -1, -1
	for i := 0; i < c.Len(); i++ {
		a := c.Array(i)
		if c.Failed() {
			return c.Failure()
		}
		r, cl := a.Dims()
		if rows >= 0 && (r != rows || cl != cols) {
			return Err(ErrorCodeValue)
		}
		rows, cols = r, cl
		arrays = append(arrays, a)
	}
	total := 0.0
	for r := 0; r < rows; r++ {
		for cl := 0; cl < cols; cl++ {
			p := 1.0
			for _, a := range arrays {
				v := a.Rows[r][cl]
				switch v.Type {
				case ValueTypeError:
					return v
				case ValueTypeNumber:
					p *= v.Num
				default:
					p = 0
				}
			}
			total += p
		}
	}
	return Number(total)
}

// conformingRange returns the cells of argument i resized to rows x cols from
// its top-left corner, the way SUMIF extends a short sum range.
func conformingRange(c *Call, i, rows, cols int) Value {
	if r, code, ok := c.Ref(i); ok {
		if code != noError {
			return Err(code)
		}
		end := r.Start.Offset(rows-1, cols-1)
		return c.Context().ResolveRange(NewRange(r.Start, end))
	}
	return c.Array(i)
}

func fnSumIf(c *Call) Value {
	rng := c.Array(0)
	crit := c.Scalar(1)
	if c.Failed() {
		return c.Failure()
	}
	cr := parseCriterion(crit, c.Context().Date1904())
	rows, cols := rng.Dims()
	sums := rng
	if c.Has(2) {
		sums = conformingRange(c, 2, rows, cols)
		if sums.IsError() {
			return sums
		}
	}
	total := 0.0
	for r := 0; r < rows; r++ {
		for cl := 0; cl < cols; cl++ {
			if !cr.matches(rng.Rows[r][cl]) {
				continue
			}
			v := sums.At(r, cl)
			switch v.Type {
			case ValueTypeError:
				return v
			case ValueTypeNumber:
				total += v.Num
			}
		}
	}
	return Number(total)
}

// criteriaMask evaluates range/criteria pairs starting at argument from. all
// ranges must share the same shape.
func criteriaMask(c *Call, from int, rows, cols int) ([][]bool, ErrorCode) {
	if (c.Len()-from)%2 != 0 {
		return nil, ErrorCodeValue
	}
	mask := make([][]bool, rows)
	for r := range mask {
		mask[r] = make([]bool, cols)
		for cl := range mask[r] {
			mask[r][cl] = true
		}
	}
	for i := from; i < c.Len(); i += 2 {
		rng := c.Array(i)
		crit := c.Scalar(i + 1)
		if c.Failed() {
			return nil, c.err
		}
		if r, cl := rng.Dims(); r != rows || cl != cols {
			return nil, ErrorCodeValue
		}
		cr := parseCriterion(crit, c.Context().Date1904())
		for r := 0; r < rows; r++ {
			for cl := 0; cl < cols; cl++ {
				if mask[r][cl] && !cr.matches(rng.Rows[r][cl]) {
					mask[r][cl] = false
				}
			}
		}
	}
	return mask, noError
}

// maskedNumbers returns the numeric cells of target selected by criteria
// pairs from argument from onward.
func maskedNumbers(c *Call, target int, from int) ([]float64, ErrorCode) {
	vals := c.Array(target)
	if c.Failed() {
		return nil, c.err
	}
	rows, cols := vals.Dims()
	mask, code := criteriaMask(c, from, rows, cols)
	if code != noError {
		return nil, code
	}
	var nums []float64
	for r := 0; r < rows; r++ {
		for cl := 0; cl < cols; cl++ {
			if !mask[r][cl] {
				continue
			}
			v := vals.Rows[r][cl]
			switch v.Type {
			case ValueTypeError:
				return nil, v.Err
			case ValueTypeNumber:
				nums = append(nums, v.Num)
			}
		}
	}
	return nums, noError
}

func fnSumIfs(c *Call) Value {
	nums, code := maskedNumbers(c, 0, 1)
	if code != noError {
		return Err(code)
	}
	s := 0.0
	for _, n := range nums {
		s += n
	}
	return Number(s)
}

func fnSeriesSum(c *Call) Value {
	x, n, m := c.Num(0), c.Num(1), c.Num(2)
	coeffs := c.Array(3)
	if c.Failed() {
		return c.Failure()
	}
	total := 0.0
	for i, v := range coeffs.Flatten() {
		a, code := ToNumber(v)
		if code != noError {
			return Err(ErrorCodeValue)
		}
		total += a * math.Pow(x, n+float64(i)*m)
	}
	return Number(total)
}

// aggregateNumbers reads the reference arguments of SUBTOTAL and AGGREGATE.
func aggregateNumbers(c *Call, from, to int, skipErrors bool) ([]float64, int, ErrorCode) {
	var nums []float64
	nonBlank := 0
	for i := from; i < to; i++ {
		for _, v := range c.Arg(i).Flatten() {
			switch v.Type {
			case ValueTypeNumber:
				nums = append(nums, v.Num)
				nonBlank++
			case ValueTypeError:
				if !skipErrors {
					return nil, 0, v.Err
				}
			case ValueTypeBlank:
			default:
				nonBlank++
			}
		}
	}
	return nums, nonBlank, noError
}

// aggregateBy runs one of the numbered SUBTOTAL/AGGREGATE functions.
func aggregateBy(code int, nums []float64, nonBlank int, k float64) Value {
	switch code {
	case 1:
		return meanOf(nums)
	case 2:
		return Number(float64(len(nums)))
	case 3:
		return Number(float64(nonBlank))
	case 4:
		if len(nums) == 0 {
			return Number(0)
		}
		return Number(maxOf(nums))
	case 5:
		if len(nums) == 0 {
			return Number(0)
		}
		return Number(minOf(nums))
	case 6:
		p := 1.0
		for _, n := range nums {
			p *= n
		}
		return Number(p)
	case 7:
		return stdevOf(nums, true)
	case 8:
		return stdevOf(nums, false)
	case 9:
		s := 0.0
		for _, n := range nums {
			s += n
		}
		return Number(s)
	case 10:
		return varianceOf(nums, true)
	case 11:
		return varianceOf(nums, false)
	case 12:
		return medianOf(nums)
	case 13:
		return modeOf(nums)
	case 14:
		return kthOf(nums, k, true)
	case 15:
		return kthOf(nums, k, false)
	case 16:
		return percentileInc(nums, k)
	case 17:
		return quartileBy(nums, k, percentileInc)
	case 18:
		return percentileExc(nums, k)
	case 19:
		return quartileBy(nums, k, percentileExc)
	}
	return Err(ErrorCodeValue)
}

func fnSubtotal(c *Call) Value {
	code := c.Int(0)
	if c.Failed() {
		return c.Failure()
	}
	if code > 100 {
		code -= 100
	}
	if code < 1 || code > 11 {
		return Err(ErrorCodeValue)
	}
	nums, nonBlank, errCode := aggregateNumbers(c, 1, c.Len(), false)
	if errCode != noError {
		return Err(errCode)
	}
	return aggregateBy(code, nums, nonBlank, 0)
}

func fnAggregate(c *Call) Value {
	code := c.Int(0)
	opts := c.IntOr(1, 0)
	if c.Failed() {
		return c.Failure()
	}
	if code < 1 || code > 19 || opts < 0 || opts > 7 {
		return Err(ErrorCodeValue)
	}
	skip := opts == 2 || opts == 3 || opts == 6 || opts == 7
	end, k := c.Len(), 0.0
	if code >= 14 {
		if c.Len() < 4 {
			return Err(ErrorCodeValue)
		}
		end = 3
		k = c.Num(3)
		if c.Failed() {
			return c.Failure()
		}
	}
	nums, nonBlank, errCode := aggregateNumbers(c, 2, end, skip)
	if errCode != noError {
		return Err(errCode)
	}
	return aggregateBy(code, nums, nonBlank, k)
}

// matrix reads argument i as a numeric matrix. any non-numeric cell is
// #VALUE!.
func matrix(c *Call, i int) ([][]float64, ErrorCode) {
	a := c.Array(i)
	if c.Failed() {
		return nil, c.err
	}
	rows, cols := a.Dims()
	m := make([][]float64, rows)
	for r := range m {
		m[r] = make([]float64, cols)
		for cl := range m[r] {
			v := a.Rows[r][cl]
			switch v.Type {
			case ValueTypeNumber:
				m[r][cl] = v.Num
			case ValueTypeError:
				return nil, v.Err
			default:
				return nil, ErrorCodeValue
			}
		}
	}
	return m, noError
}

func fromMatrix(m [][]float64) Value {
	rows := make([][]Value, len(m))
	for r := range m {
		rows[r] = make([]Value, len(m[r]))
		for cl := range m[r] {
			rows[r][cl] = Number(m[r][cl])
		}
	}
	return Array(rows)
}

func identity(n int) Value {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return fromMatrix(m)
}

func fnMMult(c *Call) Value {
	a, code := matrix(c, 0)
	if code != noError {
		return Err(code)
	}
	b, code := matrix(c, 1)
	if code != noError {
		return Err(code)
	}
	if len(a) == 0 || len(b) == 0 || len(a[0]) != len(b) {
		return Err(ErrorCodeValue)
	}
	out := make([][]float64, len(a))
	for i := range a {
		out[i] = make([]float64, len(b[0]))
		for j := range b[0] {
			for k := range b {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return fromMatrix(out)
}

func squareMatrix(c *Call) ([][]float64, ErrorCode) {
	m, code := matrix(c, 0)
	if code != noError {
		return nil, code
	}
	if len(m) == 0 || len(m) != len(m[0]) {
		return nil, ErrorCodeValue
	}
	return m, noError
}

// luDeterminant reduces m in place with partial pivoting and returns its
// determinant.
func luDeterminant(m [][]float64) float64 {
	n := len(m)
	det := 1.0
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if m[pivot][col] == 0 {
			return 0
		}
		if pivot != col {
			m[pivot], m[col] = m[col], m[pivot]
			det = -det
		}
		det *= m[col][col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for k := col; k < n; k++ {
				m[r][k] -= f * m[col][k]
			}
		}
	}
	return det
}

func fnMDeterm(c *Call) Value {
	m, code := squareMatrix(c)
	if code != noError {
		return Err(code)
	}
	return Number(snap15(luDeterminant(m)))
}

func fnMInverse(c *Call) Value {
	m, code := squareMatrix(c)
	if code != noError {
		return Err(code)
	}
	n := len(m)
	aug := make([][]float64, n)
	for i := range m {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-15 {
			return Err(ErrorCodeNum)
		}
		aug[pivot], aug[col] = aug[col], aug[pivot]
		p := aug[col][col]
		for k := range aug[col] {
			aug[col][k] /= p
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			for k := range aug[r] {
				aug[r][k] -= f * aug[col][k]
			}
		}
	}
	out := make([][]float64, n)
	for i := range aug {
		out[i] = aug[i][n:]
	}
	return fromMatrix(out)
}

func fnSequence(c *Call) Value {
	rows := c.Int(0)
	cols := c.IntOr(1, 1)
	start := c.NumOr(2, 1)
	step := c.NumOr(3, 1)
	if c.Failed() {
		return c.Failure()
	}
	if rows < 1 || cols < 1 {
		return Err(ErrorCodeValue)
	}
	if tooManyCells(c, rows, cols) {
		return Err(ErrorCodeNum)
	}
	out := make([][]Value, rows)
	v := start
	for r := range out {
		out[r] = make([]Value, cols)
		for cl := range out[r] {
			out[r][cl] = Number(v)
			v += step
		}
	}
	return Array(out)
}

// tooManyCells reports whether a generated rows x cols array would exceed
// the engine's range limit. rows and cols are positive.
func tooManyCells(c *Call, rows, cols int) bool {
	return rows > c.Engine().maxRangeCells/cols
}

func fnRandArray(c *Call) Value {
	rows := c.IntOr(0, 1)
	cols := c.IntOr(1, 1)
	lo := c.NumOr(2, 0)
	hi := c.NumOr(3, 1)
	whole := c.BoolOr(4, false)
	if c.Failed() {
		return c.Failure()
	}
	if rows < 1 || cols < 1 || lo > hi {
		return Err(ErrorCodeValue)
	}
	if tooManyCells(c, rows, cols) {
		return Err(ErrorCodeNum)
	}
	out := make([][]Value, rows)
	for r := range out {
		out[r] = make([]Value, cols)
		for cl := range out[r] {
			x := c.Context().Random()
			if whole {
				out[r][cl] = Number(math.Ceil(lo) + math.Floor(x*(math.Floor(hi)-math.Ceil(lo)+1)))
			} else {
				out[r][cl] = Number(lo + x*(hi-lo))
			}
		}
	}
	return Array(out)
}

var (
	romanChars  = []byte{'M', 'D', 'C', 'L', 'X', 'V', 'I'}
	romanValues = []int{1000, 500, 100, 50, 10, 5, 1}
)

// romanNumeral renders n in the given form, 0 being classic and 4 the most
// concise.
func romanNumeral(n, form int) string {
	var sb strings.Builder
	maxIndex := len(romanValues) - 1
	for i := 0; i <= maxIndex/2; i++ {
		idx := 2 * i
		digit := n / romanValues[idx]
		if digit%5 == 4 {
			idx2 := idx - 2
			if digit == 4 {
				idx2 = idx - 1
			}
			for steps := 0; steps < form && idx < maxIndex; steps++ {
				if romanValues[idx2]-romanValues[idx+1] > n {
					break
				}
				idx++
			}
			sb.WriteByte(romanChars[idx])
			sb.WriteByte(romanChars[idx2])
			n += romanValues[idx] - romanValues[idx2]
			continue
		}
		if digit > 4 {
			sb.WriteByte(romanChars[idx-1])
		}
		sb.WriteString(strings.Repeat(string(romanChars[idx]), digit%5))
		n %= romanValues[idx]
	}
	return sb.String()
}

func fnRoman(c *Call) Value {
	n := c.Int(0)
	form := 0
	if c.Has(1) {
		switch v := c.Arg(1); v.Type {
		case ValueTypeBool:
			if !v.Bool {
				form = 4
			}
		default:
			form = c.Int(1)
		}
	}
	if c.Failed() {
		return c.Failure()
	}
	if n < 0 || n > 3999 || form < 0 || form > 4 {
		return Err(ErrorCodeValue)
	}
	return Text(romanNumeral(n, form))
}

func fnArabic(c *Call) Value {
	s := strings.ToUpper(strings.TrimSpace(c.Str(0)))
	if c.Failed() {
		return c.Failure()
	}
	if len(s) > 255 {
		return Err(ErrorCodeValue)
	}
	sign := 1.0
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}
	total, prev := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		idx := strings.IndexByte(string(romanChars), s[i])
		if idx < 0 {
			return Err(ErrorCodeValue)
		}
		v := romanValues[idx]
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return Number(sign * float64(total))
}

func fnBase(c *Call) Value {
	n := c.Num(0)
	radix := c.Int(1)
	minLen := c.IntOr(2, 0)
	if c.Failed() {
		return c.Failure()
	}
	if n < 0 || n >= 1<<53 || radix < 2 || radix > 36 || minLen < 0 || minLen > 255 {
		return Err(ErrorCodeNum)
	}
	s := strings.ToUpper(strconv.FormatUint(uint64(n), radix))
	if len(s) < minLen {
		s = strings.Repeat("0", minLen-len(s)) + s
	}
	return Text(s)
}

func fnDecimal(c *Call) Value {
	s := strings.TrimSpace(c.Str(0))
	radix := c.Int(1)
	if c.Failed() {
		return c.Failure()
	}
	if radix < 2 || radix > 36 || len(s) > 255 {
		return Err(ErrorCodeNum)
	}
	if radix == 16 {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	}
	if s == "" {
		return Number(0)
	}
	n, err := strconv.ParseUint(strings.ToLower(s), radix, 64)
	if err != nil {
		return Err(ErrorCodeNum)
	}
	return Number(float64(n))
}
