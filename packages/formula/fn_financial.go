package formula

import (
	"math"
)

const (
	solverIterations = 100
	solverTolerance  = 1e-10
)

func financialFunctions() []FunctionSpec {
	return []FunctionSpec{
		fn("PMT", CategoryFinancial, 3, 5, func(c *Call) Value {
			rate, nper, pv := c.Num(0), c.Num(1), c.Num(2)
			fv, typ := c.NumOr(3, 0), paymentType(c, 4)
			if c.Failed() {
				return c.Failure()
			}
			if nper == 0 {
				return Err(ErrorCodeNum)
			}
			return Number(pmt(rate, nper, pv, fv, typ))
		}),
		fn("FV", CategoryFinancial, 3, 5, func(c *Call) Value {
			rate, nper, payment := c.Num(0), c.Num(1), c.Num(2)
			pv, typ := c.NumOr(3, 0), paymentType(c, 4)
			if c.Failed() {
				return c.Failure()
			}
			return Number(fv(rate, nper, payment, pv, typ))
		}),
		fn("PV", CategoryFinancial, 3, 5, func(c *Call) Value {
			rate, nper, payment := c.Num(0), c.Num(1), c.Num(2)
			fv, typ := c.NumOr(3, 0), paymentType(c, 4)
			if c.Failed() {
				return c.Failure()
			}
			return Number(pv(rate, nper, payment, fv, typ))
		}),
		fn("NPER", CategoryFinancial, 3, 5, fnNper),
		fn("RATE", CategoryFinancial, 3, 6, fnRate),
		fn("IPMT", CategoryFinancial, 4, 6, func(c *Call) Value { return periodPayment(c, true) }),
		fn("PPMT", CategoryFinancial, 4, 6, func(c *Call) Value { return periodPayment(c, false) }),
		fn("CUMIPMT", CategoryFinancial, 6, 6, func(c *Call) Value { return cumulative(c, true) }),
		fn("CUMPRINC", CategoryFinancial, 6, 6, func(c *Call) Value { return cumulative(c, false) }),
		fn("ISPMT", CategoryFinancial, 4, 4, func(c *Call) Value {
			rate, per, nper, pv := c.Num(0), c.Num(1), c.Num(2), c.Num(3)
			if c.Failed() {
				return c.Failure()
			}
			if nper == 0 {
				return Err(ErrorCodeDiv0)
			}
			return Number(pv * rate * (per/nper - 1))
		}),
		arrayFn("NPV", CategoryFinancial, 2, Variadic, func(c *Call) Value {
			rate := c.Num(0)
			if c.Failed() {
				return c.Failure()
			}
			if rate == -1 {
				return Err(ErrorCodeDiv0)
			}
			values, code := collectNumbers(c, 1, collectOptions{})
			if code != noError {
				return Err(code)
			}
			return Number(npv(rate, values))
		}),
		arrayFn("IRR", CategoryFinancial, 1, 2, fnIRR),
		arrayFn("MIRR", CategoryFinancial, 3, 3, fnMIRR),
		arrayFn("XNPV", CategoryFinancial, 3, 3, fnXNPV),
		arrayFn("XIRR", CategoryFinancial, 2, 3, fnXIRR),
		fn("EFFECT", CategoryFinancial, 2, 2, func(c *Call) Value {
			nominal, periods := c.Num(0), math.Trunc(c.Num(1))
			if c.Failed() {
				return c.Failure()
			}
			if nominal <= 0 || periods < 1 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Pow(1+nominal/periods, periods) - 1)
		}),
		fn("NOMINAL", CategoryFinancial, 2, 2, func(c *Call) Value {
			effect, periods := c.Num(0), math.Trunc(c.Num(1))
			if c.Failed() {
				return c.Failure()
			}
			if effect <= 0 || periods < 1 {
				return Err(ErrorCodeNum)
			}
			return Number(periods * (math.Pow(1+effect, 1/periods) - 1))
		}),
		arrayFn("FVSCHEDULE", CategoryFinancial, 2, 2, func(c *Call) Value {
			principal := c.Num(0)
			if c.Failed() {
				return c.Failure()
			}
			for _, v := range c.Arg(1).Flatten() {
				r, code := ToNumber(v)
				if code != noError {
					return Err(ErrorCodeValue)
				}
				principal *= 1 + r
			}
			return Number(principal)
		}),
		fn("PDURATION", CategoryFinancial, 3, 3, func(c *Call) Value {
			rate, pv, fv := c.Num(0), c.Num(1), c.Num(2)
			if c.Failed() {
				return c.Failure()
			}
			if rate <= 0 || pv <= 0 || fv <= 0 {
				return Err(ErrorCodeNum)
			}
			return Number((math.Log(fv) - math.Log(pv)) / math.Log1p(rate))
		}),
		fn("RRI", CategoryFinancial, 3, 3, func(c *Call) Value {
			nper, pv, fv := c.Num(0), c.Num(1), c.Num(2)
			if c.Failed() {
				return c.Failure()
			}
			if nper <= 0 || pv == 0 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Pow(fv/pv, 1/nper) - 1)
		}),
		fn("SLN", CategoryFinancial, 3, 3, func(c *Call) Value {
			cost, salvage, life := c.Num(0), c.Num(1), c.Num(2)
			if c.Failed() {
				return c.Failure()
			}
			if life == 0 {
				return Err(ErrorCodeDiv0)
			}
			return Number((cost - salvage) / life)
		}),
		fn("SYD", CategoryFinancial, 4, 4, func(c *Call) Value {
			cost, salvage, life, per := c.Num(0), c.Num(1), c.Num(2), c.Num(3)
			if c.Failed() {
				return c.Failure()
			}
			if life <= 0 || per <= 0 || per > life {
				return Err(ErrorCodeNum)
			}
			return Number((cost - salvage) * (life - per + 1) * 2 / (life * (life + 1)))
		}),
		fn("DDB", CategoryFinancial, 4, 5, func(c *Call) Value {
			cost, salvage, life, period := c.Num(0), c.Num(1), c.Num(2), c.Num(3)
			factor := c.NumOr(4, 2)
			if c.Failed() {
				return c.Failure()
			}
			if cost < 0 || salvage < 0 || life <= 0 || period <= 0 || period > life || factor <= 0 {
				return Err(ErrorCodeNum)
			}
			return Number(decliningBalance(cost, salvage, life, period, factor))
		}),
		fn("DB", CategoryFinancial, 4, 5, fnDB),
		fn("VDB", CategoryFinancial, 5, 7, fnVDB),
		fn("DISC", CategoryFinancial, 4, 5, func(c *Call) Value {
			return discountSecurity(c, func(a, b, yf float64) float64 { return (b - a) / b / yf })
		}),
		fn("INTRATE", CategoryFinancial, 4, 5, func(c *Call) Value {
			return discountSecurity(c, func(a, b, yf float64) float64 { return (b - a) / a / yf })
		}),
		fn("YIELDDISC", CategoryFinancial, 4, 5, func(c *Call) Value {
			return discountSecurity(c, func(a, b, yf float64) float64 { return (b - a) / a / yf })
		}),
		fn("RECEIVED", CategoryFinancial, 4, 5, func(c *Call) Value {
			return discountSecurity(c, func(a, b, yf float64) float64 { return a / (1 - b*yf) })
		}),
		fn("PRICEDISC", CategoryFinancial, 4, 5, func(c *Call) Value {
			return discountSecurity(c, func(a, b, yf float64) float64 { return b - a*b*yf })
		}),
		fn("TBILLPRICE", CategoryFinancial, 3, 3, func(c *Call) Value {
			return treasuryBill(c, func(dsm, x float64) Value {
				p := 100 * (1 - x*dsm/360)
				if p <= 0 {
					return Err(ErrorCodeNum)
				}
				return Number(p)
			})
		}),
		fn("TBILLYIELD", CategoryFinancial, 3, 3, func(c *Call) Value {
			return treasuryBill(c, func(dsm, price float64) Value {
				return Number((100 - price) / price * 360 / dsm)
			})
		}),
		fn("TBILLEQ", CategoryFinancial, 3, 3, func(c *Call) Value {
			return treasuryBill(c, func(dsm, discount float64) Value {
				if dsm <= 182 {
					return Number(365 * discount / (360 - discount*dsm))
				}
				price := 100 * (1 - discount*dsm/360)
				if price <= 0 {
					return Err(ErrorCodeNum)
				}
				t := dsm / 365
				return Number((-2*t + 2*math.Sqrt(t*t-(2*t-1)*(1-100/price))) / (2*t - 1))
			})
		}),
		fn("DOLLARDE", CategoryFinancial, 2, 2, func(c *Call) Value {
			return dollarFraction(c, func(whole, frac, f, scale float64) float64 { return whole + frac*scale/f })
		}),
		fn("DOLLARFR", CategoryFinancial, 2, 2, func(c *Call) Value {
			return dollarFraction(c, func(whole, frac, f, scale float64) float64 { return whole + frac*f/scale })
		}),
	}
}

// paymentType reads the optional 0/1 "payment at period start" argument.
func paymentType(c *Call, i int) float64 {
	if c.NumOr(i, 0) != 0 {
		return 1
	}
	return 0
}

func pmt(rate, nper, pv, fv, typ float64) float64 {
	if rate == 0 {
		return -(pv + fv) / nper
	}
	g := math.Pow(1+rate, nper)
	return -rate * (fv + pv*g) / ((1 + rate*typ) * (g - 1))
}

func fv(rate, nper, payment, pv, typ float64) float64 {
	if rate == 0 {
		return -(pv + payment*nper)
	}
	g := math.Pow(1+rate, nper)
	return -(pv*g + payment*(1+rate*typ)*(g-1)/rate)
}

func pv(rate, nper, payment, fv, typ float64) float64 {
	if rate == 0 {
		return -(fv + payment*nper)
	}
	g := math.Pow(1+rate, nper)
	return -(fv + payment*(1+rate*typ)*(g-1)/rate) / g
}

func fnNper(c *Call) Value {
	rate, payment, pv := c.Num(0), c.Num(1), c.Num(2)
	fv, typ := c.NumOr(3, 0), paymentType(c, 4)
	if c.Failed() {
		return c.Failure()
	}
	if rate == 0 {
		if payment == 0 {
			return Err(ErrorCodeDiv0)
		}
		return Number(-(pv + fv) / payment)
	}
	num := payment*(1+rate*typ) - fv*rate
	den := payment*(1+rate*typ) + pv*rate
	if den == 0 || num/den <= 0 {
		return Err(ErrorCodeNum)
	}
	return Number(math.Log(num/den) / math.Log1p(rate))
}

func fnRate(c *Call) Value {
	nper, payment, pv := c.Num(0), c.Num(1), c.Num(2)
	fv, typ := c.NumOr(3, 0), paymentType(c, 4)
	guess := c.NumOr(5, 0.1)
	if c.Failed() {
		return c.Failure()
	}
	if nper <= 0 {
		return Err(ErrorCodeNum)
	}
	f := func(r float64) float64 {
		if r == 0 {
			return pv + payment*nper + fv
		}
		g := math.Pow(1+r, nper)
		return pv*g + payment*(1+r*typ)*(g-1)/r + fv
	}
	r, ok := newton(f, guess)
	if !ok {
		return Err(ErrorCodeNum)
	}
	return Number(r)
}

// newton solves f(x) = 0 from guess with a numeric derivative.
func newton(f func(float64) float64, guess float64) (float64, bool) {
	x := guess
	for i := 0; i < solverIterations; i++ {
		y := f(x)
		if math.Abs(y) < solverTolerance {
			return x, true
		}
		h := 1e-7 * math.Max(1, math.Abs(x))
		d := (f(x+h) - f(x-h)) / (2 * h)
		if d == 0 || math.IsNaN(d) {
			return 0, false
		}
		next := x - y/d
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, false
		}
		if math.Abs(next-x) < solverTolerance {
			return next, true
		}
		x = next
	}
	return 0, false
}

func ipmt(rate, per, nper, pv, fvAmount, typ float64) float64 {
	p := pmt(rate, nper, pv, fvAmount, typ)
	var interest float64
	switch {
	case per == 1 && typ == 1:
		interest = 0
	case per == 1:
		interest = -pv
	case typ == 1:
		interest = fv(rate, per-2, p, pv, 1) - p
	default:
		interest = fv(rate, per-1, p, pv, 0)
	}
	return interest * rate
}

func periodPayment(c *Call, interest bool) Value {
	rate, per, nper, pv := c.Num(0), c.Num(1), c.Num(2), c.Num(3)
	fvAmount, typ := c.NumOr(4, 0), paymentType(c, 5)
	if c.Failed() {
		return c.Failure()
	}
	if per < 1 || per > nper {
		return Err(ErrorCodeNum)
	}
	i := ipmt(rate, per, nper, pv, fvAmount, typ)
	if interest {
		return Number(i)
	}
	return Number(pmt(rate, nper, pv, fvAmount, typ) - i)
}

func cumulative(c *Call, interest bool) Value {
	rate, nper, pv := c.Num(0), math.Trunc(c.Num(1)), c.Num(2)
	start, end := math.Trunc(c.Num(3)), math.Trunc(c.Num(4))
	typ := c.Num(5)
	if c.Failed() {
		return c.Failure()
	}
	if rate <= 0 || nper <= 0 || pv <= 0 || start < 1 || end < start || end > nper || (typ != 0 && typ != 1) {
		return Err(ErrorCodeNum)
	}
	p := pmt(rate, nper, pv, 0, typ)
	total := 0.0
	for per := start; per <= end; per++ {
		i := ipmt(rate, per, nper, pv, 0, typ)
		if interest {
			total += i
		} else {
			total += p - i
		}
	}
	return Number(total)
}

func npv(rate float64, values []float64) float64 {
	s := 0.0
	for i, v := range values {
		s += v / math.Pow(1+rate, float64(i+1))
	}
	return s
}

func fnIRR(c *Call) Value {
	values, code := numbersOf(c.Arg(0))
	guess := c.NumOr(1, 0.1)
	if code != noError {
		return Err(code)
	}
	if c.Failed() {
		return c.Failure()
	}
	if !hasSignChange(values) {
		return Err(ErrorCodeNum)
	}
	r, ok := newton(func(r float64) float64 {
		s := 0.0
		for i, v := range values {
			s += v / math.Pow(1+r, float64(i))
		}
		return s
	}, guess)
	if !ok {
		return Err(ErrorCodeNum)
	}
	return Number(r)
}

func hasSignChange(values []float64) bool {
	pos, neg := false, false
	for _, v := range values {
		pos = pos || v > 0
		neg = neg || v < 0
	}
	return pos && neg
}

func fnMIRR(c *Call) Value {
	values, code := numbersOf(c.Arg(0))
	finance, reinvest := c.Num(1), c.Num(2)
	if code != noError {
		return Err(code)
	}
	if c.Failed() {
		return c.Failure()
	}
	n := float64(len(values))
	if n < 2 || !hasSignChange(values) {
		return Err(ErrorCodeDiv0)
	}
	var pos, neg []float64
	for _, v := range values {
		if v > 0 {
			pos = append(pos, v)
			neg = append(neg, 0)
		} else {
			pos = append(pos, 0)
			neg = append(neg, v)
		}
	}
	fvPos := npv(reinvest, pos) * math.Pow(1+reinvest, n)
	pvNeg := npv(finance, neg) * (1 + finance)
	return Number(math.Pow(-fvPos/pvNeg, 1/(n-1)) - 1)
}

// cashFlows reads equally sized value and date arrays for XNPV and XIRR.
func cashFlows(c *Call, vi, di int) ([]float64, []float64, ErrorCode) {
	values, code := numbersOf(c.Arg(vi))
	if code != noError {
		return nil, nil, code
	}
	var dates []float64
	for _, v := range c.Arg(di).Flatten() {
		n, ok := valueToSerial(v, c.Context().Date1904())
		if !ok {
			return nil, nil, ErrorCodeValue
		}
		dates = append(dates, math.Floor(n))
	}
	if len(values) != len(dates) || len(values) == 0 {
		return nil, nil, ErrorCodeNum
	}
	for _, d := range dates[1:] {
		if d < dates[0] {
			return nil, nil, ErrorCodeNum
		}
	}
	return values, dates, noError
}

func xnpv(rate float64, values, dates []float64) float64 {
	s := 0.0
	for i, v := range values {
		s += v / math.Pow(1+rate, (dates[i]-dates[0])/365)
	}
	return s
}

func fnXNPV(c *Call) Value {
	rate := c.Num(0)
	if c.Failed() {
		return c.Failure()
	}
	values, dates, code := cashFlows(c, 1, 2)
	if code != noError {
		return Err(code)
	}
	if rate <= -1 {
		return Err(ErrorCodeNum)
	}
	return Number(xnpv(rate, values, dates))
}

func fnXIRR(c *Call) Value {
	values, dates, code := cashFlows(c, 0, 1)
	guess := c.NumOr(2, 0.1)
	if code != noError {
		return Err(code)
	}
	if c.Failed() {
		return c.Failure()
	}
	if !hasSignChange(values) {
		return Err(ErrorCodeNum)
	}
	r, ok := newton(func(r float64) float64 { return xnpv(r, values, dates) }, guess)
	if !ok || r <= -1 {
		return Err(ErrorCodeNum)
	}
	return Number(r)
}

// decliningBalance is the depreciation of one period under the declining
// balance method with the given factor.
func decliningBalance(cost, salvage, life, period, factor float64) float64 {
	rate := factor / life
	var prior float64
	if rate >= 1 {
		rate = 1
		if period == 1 {
			prior = cost
		}
	} else {
		prior = cost * math.Pow(1-rate, period-1)
	}
	next := cost * math.Pow(1-rate, period)
	var dep float64
	if next < salvage {
		dep = prior - salvage
	} else {
		dep = prior - next
	}
	return math.Max(dep, 0)
}

func fnDB(c *Call) Value {
	cost, salvage, life, period := c.Num(0), c.Num(1), c.Num(2), math.Trunc(c.Num(3))
	month := math.Trunc(c.NumOr(4, 12))
	if c.Failed() {
		return c.Failure()
	}
	if cost < 0 || salvage < 0 || life <= 0 || period <= 0 || month < 1 || month > 12 ||
		period > life+1 || (period > life && month == 12) {
		return Err(ErrorCodeNum)
	}
	if cost == 0 {
		return Number(0)
	}
	rate := roundHalfAway(1-math.Pow(salvage/cost, 1/life), 3)
	dep := cost * rate * month / 12
	total := dep
	for p := 2.0; p <= period; p++ {
		if p == life+1 {
			dep = (cost - total) * rate * (12 - month) / 12
		} else {
			dep = (cost - total) * rate
		}
		total += dep
	}
	return Number(dep)
}

// interVDB accumulates depreciation up to period, switching to straight
// line once that exceeds the declining balance.
func interVDB(cost, salvage, life, life1, period, factor float64) float64 {
	var total, sln float64
	intEnd := math.Ceil(period)
	remaining := cost - salvage
	switched := false
	for i := 1.0; i <= intEnd; i++ {
		var term float64
		if !switched {
			ddb := decliningBalance(cost, salvage, life, i, factor)
			sln = remaining / (life1 - (i - 1))
			if sln > ddb {
				term = sln
				switched = true
			} else {
				term = ddb
				remaining -= ddb
			}
		} else {
			term = sln
		}
		if i == intEnd {
			term *= period + 1 - intEnd
		}
		total += term
	}
	return total
}

func fnVDB(c *Call) Value {
	cost, salvage, life := c.Num(0), c.Num(1), c.Num(2)
	start, end := c.Num(3), c.Num(4)
	factor := c.NumOr(5, 2)
	noSwitch := c.BoolOr(6, false)
	if c.Failed() {
		return c.Failure()
	}
	if cost < 0 || salvage < 0 || life <= 0 || start < 0 || end < start || end > life || factor <= 0 {
		return Err(ErrorCodeNum)
	}
	intStart, intEnd := math.Floor(start), math.Ceil(end)

	if noSwitch {
		total := 0.0
		for i := intStart + 1; i <= intEnd; i++ {
			term := decliningBalance(cost, salvage, life, i, factor)
			switch i {
			case intStart + 1:
				term *= math.Min(end, intStart+1) - start
			case intEnd:
				term *= end + 1 - intEnd
			}
			total += term
		}
		return Number(total)
	}

	part := 0.0
	if start != intStart {
		rest := cost - interVDB(cost, salvage, life, life, intStart, factor)
		part += (start - intStart) * interVDB(rest, salvage, life, life-intStart, 1, factor)
	}
	if end != intEnd {
		tempStart := intEnd - 1
		rest := cost - interVDB(cost, salvage, life, life, tempStart, factor)
		part += (intEnd - end) * interVDB(rest, salvage, life, life-tempStart, 1, factor)
	}
	cost -= interVDB(cost, salvage, life, life, intStart, factor)
	return Number(interVDB(cost, salvage, life, life-intStart, intEnd-intStart, factor) - part)
}

// discountSecurity reads settlement, maturity, a, b and basis, and applies f
// with the year fraction between the dates.
func discountSecurity(c *Call, f func(a, b, yf float64) float64) Value {
	settlement, maturity := math.Floor(serialArg(c, 0)), math.Floor(serialArg(c, 1))
	a, b := c.Num(2), c.Num(3)
	basis := c.IntOr(4, 0)
	if c.Failed() {
		return c.Failure()
	}
	if settlement >= maturity || a <= 0 || b <= 0 || basis < 0 || basis > 4 {
		return Err(ErrorCodeNum)
	}
	yf := yearFrac(settlement, maturity, basis, c.Context().Date1904())
	if yf.IsError() {
		return yf
	}
	return Number(f(a, b, yf.Num))
}

func treasuryBill(c *Call, f func(dsm, x float64) Value) Value {
	settlement, maturity := math.Floor(serialArg(c, 0)), math.Floor(serialArg(c, 1))
	x := c.Num(2)
	if c.Failed() {
		return c.Failure()
	}
	dsm := maturity - settlement
	if dsm <= 0 || dsm > 365 || x <= 0 {
		return Err(ErrorCodeNum)
	}
	return f(dsm, x)
}

func dollarFraction(c *Call, f func(whole, frac, fraction, scale float64) float64) Value {
	x, fraction := c.Num(0), math.Trunc(c.Num(1))
	if c.Failed() {
		return c.Failure()
	}
	if fraction < 0 {
		return Err(ErrorCodeNum)
	}
	if fraction == 0 {
		return Err(ErrorCodeDiv0)
	}
	whole := math.Trunc(x)
	scale := math.Pow(10, math.Ceil(math.Log10(fraction)))
	return Number(f(whole, x-whole, fraction, scale))
}
