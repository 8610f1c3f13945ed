package formula

import (
	"math"
	"slices"
)

func statisticalFunctions() []FunctionSpec {
	return []FunctionSpec{
		arrayFn("AVERAGE", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, meanOf)
		}),
		arrayFn("AVERAGEA", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{textAndBools: true}, meanOf)
		}),
		fn("AVERAGEIF", CategoryStatistical, 2, 3, fnAverageIf),
		fn("AVERAGEIFS", CategoryStatistical, 3, Variadic, func(c *Call) Value {
			nums, code := maskedNumbers(c, 0, 1)
			if code != noError {
				return Err(code)
			}
			return meanOf(nums)
		}),
		arrayFn("AVEDEV", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value {
				if len(xs) == 0 {
					return Err(ErrorCodeNum)
				}
				m := mean(xs)
				s := 0.0
				for _, x := range xs {
					s += math.Abs(x - m)
				}
				return Number(s / float64(len(xs)))
			})
		}),
		arrayFn("DEVSQ", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value {
				if len(xs) == 0 {
					return Err(ErrorCodeNum)
				}
				return Number(sumSquaredDeviations(xs))
			})
		}),
		arrayFn("COUNT", CategoryStatistical, 1, Variadic, fnCount),
		arrayFn("COUNTA", CategoryStatistical, 1, Variadic, fnCountA),
		fn("COUNTBLANK", CategoryStatistical, 1, 1, func(c *Call) Value {
			n := 0
			for _, v := range c.Arg(0).Flatten() {
				if v.Type == ValueTypeBlank || (v.Type == ValueTypeText && v.Str == "") {
					n++
				}
			}
			return Number(float64(n))
		}),
		fn("COUNTIF", CategoryStatistical, 2, 2, fnCountIf),
		fn("COUNTIFS", CategoryStatistical, 2, Variadic, fnCountIfs),
		arrayFn("MAX", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, extremeOrZero(maxOf))
		}),
		arrayFn("MAXA", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{textAndBools: true}, extremeOrZero(maxOf))
		}),
		arrayFn("MIN", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, extremeOrZero(minOf))
		}),
		arrayFn("MINA", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{textAndBools: true}, extremeOrZero(minOf))
		}),
		fn("MAXIFS", CategoryStatistical, 3, Variadic, func(c *Call) Value {
			nums, code := maskedNumbers(c, 0, 1)
			if code != noError {
				return Err(code)
			}
			return extremeOrZero(maxOf)(nums)
		}),
		fn("MINIFS", CategoryStatistical, 3, Variadic, func(c *Call) Value {
			nums, code := maskedNumbers(c, 0, 1)
			if code != noError {
				return Err(code)
			}
			return extremeOrZero(minOf)(nums)
		}),
		arrayFn("MEDIAN", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, medianOf)
		}),
		arrayFn("MODE.SNGL", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, modeOf)
		}),
		arrayFn("MODE.MULT", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, modeMulti)
		}),
		arrayFn("GEOMEAN", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value {
				if len(xs) == 0 {
					return Err(ErrorCodeNum)
				}
				s := 0.0
				for _, x := range xs {
					if x <= 0 {
						return Err(ErrorCodeNum)
					}
					s += math.Log(x)
				}
				return Number(math.Exp(s / float64(len(xs))))
			})
		}),
		arrayFn("HARMEAN", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value {
				if len(xs) == 0 {
					return Err(ErrorCodeNum)
				}
				s := 0.0
				for _, x := range xs {
					if x <= 0 {
						return Err(ErrorCodeNum)
					}
					s += 1 / x
				}
				return Number(float64(len(xs)) / s)
			})
		}),
		arrayFn("KURT", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, kurtosis)
		}),
		arrayFn("SKEW", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value { return skewness(xs, true) })
		}),
		arrayFn("SKEW.P", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value { return skewness(xs, false) })
		}),
		arrayFn("STDEV.S", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value { return stdevOf(xs, true) })
		}),
		arrayFn("STDEV.P", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value { return stdevOf(xs, false) })
		}),
		arrayFn("STDEVA", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{textAndBools: true}, func(xs []float64) Value { return stdevOf(xs, true) })
		}),
		arrayFn("STDEVPA", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{textAndBools: true}, func(xs []float64) Value { return stdevOf(xs, false) })
		}),
		arrayFn("VAR.S", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value { return varianceOf(xs, true) })
		}),
		arrayFn("VAR.P", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{}, func(xs []float64) Value { return varianceOf(xs, false) })
		}),
		arrayFn("VARA", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{textAndBools: true}, func(xs []float64) Value { return varianceOf(xs, true) })
		}),
		arrayFn("VARPA", CategoryStatistical, 1, Variadic, func(c *Call) Value {
			return numbersThen(c, collectOptions{textAndBools: true}, func(xs []float64) Value { return varianceOf(xs, false) })
		}),
		arrayFn("LARGE", CategoryStatistical, 2, 2, func(c *Call) Value { return kthArg(c, true) }),
		arrayFn("SMALL", CategoryStatistical, 2, 2, func(c *Call) Value { return kthArg(c, false) }),
		arrayFn("PERCENTILE.INC", CategoryStatistical, 2, 2, func(c *Call) Value { return rankedArg(c, percentileInc) }),
		arrayFn("PERCENTILE.EXC", CategoryStatistical, 2, 2, func(c *Call) Value { return rankedArg(c, percentileExc) }),
		arrayFn("QUARTILE.INC", CategoryStatistical, 2, 2, func(c *Call) Value {
			return rankedArg(c, func(xs []float64, q float64) Value { return quartileBy(xs, q, percentileInc) })
		}),
		arrayFn("QUARTILE.EXC", CategoryStatistical, 2, 2, func(c *Call) Value {
			return rankedArg(c, func(xs []float64, q float64) Value { return quartileBy(xs, q, percentileExc) })
		}),
		arrayFn("PERCENTRANK.INC", CategoryStatistical, 2, 3, func(c *Call) Value { return percentRank(c, true) }),
		arrayFn("PERCENTRANK.EXC", CategoryStatistical, 2, 3, func(c *Call) Value { return percentRank(c, false) }),
		fn("RANK.EQ", CategoryStatistical, 2, 3, func(c *Call) Value { return rank(c, false) }),
		fn("RANK.AVG", CategoryStatistical, 2, 3, func(c *Call) Value { return rank(c, true) }),
		arrayFn("TRIMMEAN", CategoryStatistical, 2, 2, fnTrimMean),
		arrayFn("FREQUENCY", CategoryStatistical, 2, 2, fnFrequency),
		arrayFn("CORREL", CategoryStatistical, 2, 2, fnCorrel),
		arrayFn("PEARSON", CategoryStatistical, 2, 2, fnCorrel),
		arrayFn("RSQ", CategoryStatistical, 2, 2, func(c *Call) Value {
			r := fnCorrel(c)
			if r.IsError() {
				return r
			}
			return Number(r.Num * r.Num)
		}),
		arrayFn("COVARIANCE.P", CategoryStatistical, 2, 2, func(c *Call) Value { return covariance(c, false) }),
		arrayFn("COVARIANCE.S", CategoryStatistical, 2, 2, func(c *Call) Value { return covariance(c, true) }),
		arrayFn("SLOPE", CategoryStatistical, 2, 2, func(c *Call) Value {
			slope, _, code := regression(c, 0, 1)
			if code != noError {
				return Err(code)
			}
			return Number(slope)
		}),
		arrayFn("INTERCEPT", CategoryStatistical, 2, 2, func(c *Call) Value {
			_, icpt, code := regression(c, 0, 1)
			if code != noError {
				return Err(code)
			}
			return Number(icpt)
		}),
		arrayFn("FORECAST", CategoryStatistical, 3, 3, fnForecast),
		arrayFn("FORECAST.LINEAR", CategoryStatistical, 3, 3, fnForecast),
		arrayFn("STEYX", CategoryStatistical, 2, 2, fnSteyx),
		fn("PERMUT", CategoryStatistical, 2, 2, func(c *Call) Value {
			n, k := math.Trunc(c.Num(0)), math.Trunc(c.Num(1))
			if c.Failed() {
				return c.Failure()
			}
			if n < 0 || k < 0 || n < k {
				return Err(ErrorCodeNum)
			}
			res := 1.0
			for i := n - k + 1; i <= n; i++ {
				res *= i
			}
			return Number(res)
		}),
		fn("PERMUTATIONA", CategoryStatistical, 2, 2, func(c *Call) Value {
			n, k := math.Trunc(c.Num(0)), math.Trunc(c.Num(1))
			if c.Failed() {
				return c.Failure()
			}
			if n < 0 || k < 0 {
				return Err(ErrorCodeNum)
			}
			return Number(math.Pow(n, k))
		}),
		fn("FISHER", CategoryStatistical, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(x float64) Value {
				if x <= -1 || x >= 1 {
					return Err(ErrorCodeNum)
				}
				return Number(0.5 * math.Log((1+x)/(1-x)))
			})
		}),
		fn("FISHERINV", CategoryStatistical, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(y float64) Value { return Number(math.Tanh(y)) })
		}),
		fn("STANDARDIZE", CategoryStatistical, 3, 3, func(c *Call) Value {
			x, m, sd := c.Num(0), c.Num(1), c.Num(2)
			if c.Failed() {
				return c.Failure()
			}
			if sd <= 0 {
				return Err(ErrorCodeNum)
			}
			return Number((x - m) / sd)
		}),
		fn("GAMMA", CategoryStatistical, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(x float64) Value {
				if x <= 0 && x == math.Trunc(x) {
					return Err(ErrorCodeNum)
				}
				return Number(math.Gamma(x))
			})
		}),
		fn("GAMMALN", CategoryStatistical, 1, 1, gammaLn),
		fn("GAMMALN.PRECISE", CategoryStatistical, 1, 1, gammaLn),
		fn("GAUSS", CategoryStatistical, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(z float64) Value { return Number(normSCDF(z) - 0.5) })
		}),
		fn("PHI", CategoryStatistical, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(z float64) Value { return Number(normSPDF(z)) })
		}),
		fn("NORM.DIST", CategoryStatistical, 4, 4, fnNormDist),
		fn("NORM.INV", CategoryStatistical, 3, 3, fnNormInv),
		fn("NORM.S.DIST", CategoryStatistical, 2, 2, func(c *Call) Value {
			z, cum := c.Num(0), c.Bool(1)
			if c.Failed() {
				return c.Failure()
			}
			if cum {
				return Number(normSCDF(z))
			}
			return Number(normSPDF(z))
		}),
		fn("NORM.S.INV", CategoryStatistical, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(p float64) Value {
				if p <= 0 || p >= 1 {
					return Err(ErrorCodeNum)
				}
				return Number(normSInv(p))
			})
		}),
		fn("LOGNORM.DIST", CategoryStatistical, 4, 4, fnLognormDist),
		fn("LOGNORM.INV", CategoryStatistical, 3, 3, fnLognormInv),
		fn("EXPON.DIST", CategoryStatistical, 3, 3, fnExponDist),
		fn("GAMMA.DIST", CategoryStatistical, 4, 4, fnGammaDist),
		fn("GAMMA.INV", CategoryStatistical, 3, 3, fnGammaInv),
		fn("BETA.DIST", CategoryStatistical, 4, 6, fnBetaDist),
		fn("BETA.INV", CategoryStatistical, 3, 5, fnBetaInv),
		fn("CHISQ.DIST", CategoryStatistical, 3, 3, fnChisqDist),
		fn("CHISQ.DIST.RT", CategoryStatistical, 2, 2, fnChisqDistRT),
		fn("CHISQ.INV", CategoryStatistical, 2, 2, func(c *Call) Value { return chisqInv(c, false) }),
		fn("CHISQ.INV.RT", CategoryStatistical, 2, 2, func(c *Call) Value { return chisqInv(c, true) }),
		fn("T.DIST", CategoryStatistical, 3, 3, fnTDist),
		fn("T.DIST.2T", CategoryStatistical, 2, 2, func(c *Call) Value { return tTail(c, 2) }),
		fn("T.DIST.RT", CategoryStatistical, 2, 2, func(c *Call) Value { return tTail(c, 1) }),
		fn("T.INV", CategoryStatistical, 2, 2, fnTInv),
		fn("T.INV.2T", CategoryStatistical, 2, 2, fnTInv2T),
		fn("F.DIST", CategoryStatistical, 4, 4, fnFDist),
		fn("F.DIST.RT", CategoryStatistical, 3, 3, fnFDistRT),
		fn("F.INV", CategoryStatistical, 3, 3, func(c *Call) Value { return fInv(c, false) }),
		fn("F.INV.RT", CategoryStatistical, 3, 3, func(c *Call) Value { return fInv(c, true) }),
		fn("BINOM.DIST", CategoryStatistical, 4, 4, fnBinomDist),
		fn("BINOM.INV", CategoryStatistical, 3, 3, fnBinomInv),
		fn("NEGBINOM.DIST", CategoryStatistical, 4, 4, fnNegBinomDist),
		fn("HYPGEOM.DIST", CategoryStatistical, 5, 5, fnHypgeomDist),
		fn("POISSON.DIST", CategoryStatistical, 3, 3, fnPoissonDist),
		fn("WEIBULL.DIST", CategoryStatistical, 4, 4, fnWeibullDist),
		fn("CONFIDENCE.NORM", CategoryStatistical, 3, 3, fnConfidenceNorm),
		fn("CONFIDENCE.T", CategoryStatistical, 3, 3, fnConfidenceT),
		arrayFn("Z.TEST", CategoryStatistical, 2, 3, fnZTest),
		arrayFn("PROB", CategoryStatistical, 3, 4, fnProb),
	}
}

// numbersThen collects the numeric arguments and hands them to f.
func numbersThen(c *Call, opts collectOptions, f func([]float64) Value) Value {
	nums, code := collectNumbers(c, 0, opts)
	if code != noError {
		return Err(code)
	}
	return f(nums)
}

func mean(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func meanOf(xs []float64) Value {
	if len(xs) == 0 {
		return Err(ErrorCodeDiv0)
	}
	return Number(mean(xs))
}

func maxOf(xs []float64) float64 {
	return slices.Max(xs)
}

func minOf(xs []float64) float64 {
	return slices.Min(xs)
}

func extremeOrZero(f func([]float64) float64) func([]float64) Value {
	return func(xs []float64) Value {
		if len(xs) == 0 {
			return Number(0)
		}
		return Number(f(xs))
	}
}

func sumSquaredDeviations(xs []float64) float64 {
	m := mean(xs)
	s := 0.0
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return s
}

func varianceOf(xs []float64, sample bool) Value {
	n := float64(len(xs))
	if n == 0 || (sample && n < 2) {
		return Err(ErrorCodeDiv0)
	}
	if sample {
		return Number(sumSquaredDeviations(xs) / (n - 1))
	}
	return Number(sumSquaredDeviations(xs) / n)
}

func stdevOf(xs []float64, sample bool) Value {
	v := varianceOf(xs, sample)
	if v.IsError() {
		return v
	}
	return Number(math.Sqrt(v.Num))
}

func sortedCopy(xs []float64) []float64 {
	out := slices.Clone(xs)
	slices.Sort(out)
	return out
}

func medianOf(xs []float64) Value {
	if len(xs) == 0 {
		return Err(ErrorCodeNum)
	}
	s := sortedCopy(xs)
	n := len(s)
	if n%2 == 1 {
		return Number(s[n/2])
	}
	return Number((s[n/2-1] + s[n/2]) / 2)
}

// modeCounts returns the distinct values in first-seen order with their
// counts.
func modeCounts(xs []float64) ([]float64, map[float64]int) {
	counts := make(map[float64]int, len(xs))
	var order []float64
	for _, x := range xs {
		if counts[x] == 0 {
			order = append(order, x)
		}
		counts[x]++
	}
	return order, counts
}

func modeOf(xs []float64) Value {
	order, counts := modeCounts(xs)
	best, bestCount := 0.0, 1
	for _, x := range order {
		if counts[x] > bestCount {
			best, bestCount = x, counts[x]
		}
	}
	if bestCount < 2 {
		return Err(ErrorCodeNA)
	}
	return Number(best)
}

func modeMulti(xs []float64) Value {
	order, counts := modeCounts(xs)
	top := 1
	for _, x := range order {
		top = max(top, counts[x])
	}
	if top < 2 {
		return Err(ErrorCodeNA)
	}
	var out []Value
	for _, x := range order {
		if counts[x] == top {
			out = append(out, Number(x))
		}
	}
	return Column(out)
}

func kthOf(xs []float64, k float64, largest bool) Value {
	kk := int(math.Ceil(k))
	if len(xs) == 0 || kk < 1 || kk > len(xs) {
		return Err(ErrorCodeNum)
	}
	s := sortedCopy(xs)
	if largest {
		return Number(s[len(s)-kk])
	}
	return Number(s[kk-1])
}

func kthArg(c *Call, largest bool) Value {
	nums, code := numbersOf(c.Arg(0))
	if code != noError {
		return Err(code)
	}
	return mapNumber(c, 1, func(k float64) Value { return kthOf(nums, k, largest) })
}

func rankedArg(c *Call, f func([]float64, float64) Value) Value {
	nums, code := numbersOf(c.Arg(0))
	if code != noError {
		return Err(code)
	}
	k := c.Num(1)
	if c.Failed() {
		return c.Failure()
	}
	return f(nums, k)
}

func percentileInc(xs []float64, p float64) Value {
	if len(xs) == 0 || p < 0 || p > 1 {
		return Err(ErrorCodeNum)
	}
	s := sortedCopy(xs)
	rank := p * float64(len(s)-1)
	lo := math.Floor(rank)
	i := int(lo)
	if i+1 >= len(s) {
		return Number(s[len(s)-1])
	}
	return Number(s[i] + (rank-lo)*(s[i+1]-s[i]))
}

func percentileExc(xs []float64, p float64) Value {
	n := float64(len(xs))
	if n == 0 || p <= 0 || p >= 1 {
		return Err(ErrorCodeNum)
	}
	rank := p * (n + 1)
	if rank < 1 || rank > n {
		return Err(ErrorCodeNum)
	}
	s := sortedCopy(xs)
	lo := math.Floor(rank)
	i := int(lo) - 1
	if i+1 >= len(s) {
		return Number(s[i])
	}
	return Number(s[i] + (rank-lo)*(s[i+1]-s[i]))
}

func quartileBy(xs []float64, q float64, f func([]float64, float64) Value) Value {
	q = math.Trunc(q)
	if q < 0 || q > 4 {
		return Err(ErrorCodeNum)
	}
	return f(xs, q/4)
}

func percentRank(c *Call, inclusive bool) Value {
	nums, code := numbersOf(c.Arg(0))
	x := c.Num(1)
	sig := c.IntOr(2, 3)
	if code != noError {
		return Err(code)
	}
	if c.Failed() {
		return c.Failure()
	}
	if len(nums) == 0 || sig < 1 {
		return Err(ErrorCodeNum)
	}
	s := sortedCopy(nums)
	n := len(s)
	if x < s[0] || x > s[n-1] {
		return Err(ErrorCodeNA)
	}
	less := 0
	for less < n && s[less] < x {
		less++
	}
	var pos float64
	if less < n && s[less] == x {
		pos = float64(less)
	} else {
		lo, hi := s[less-1], s[less]
		pos = float64(less-1) + (x-lo)/(hi-lo)
	}
	var r float64
	if inclusive {
		if n == 1 {
			return Number(1)
		}
		r = pos / float64(n-1)
	} else {
		r = (pos + 1) / float64(n+1)
	}
	p := math.Pow10(sig)
	return Number(math.Floor(snap15(r*p)) / p)
}

func rank(c *Call, average bool) Value {
	x := c.Num(0)
	order := c.IntOr(2, 0)
	if c.Failed() {
		return c.Failure()
	}
	nums, code := numbersOf(c.Arg(1))
	if code != noError {
		return Err(code)
	}
	better, ties := 0, 0
	for _, n := range nums {
		switch {
		case n == x:
			ties++
		case order == 0 && n > x, order != 0 && n < x:
			better++
		}
	}
	if ties == 0 {
		return Err(ErrorCodeNA)
	}
	if average {
		return Number(float64(better) + float64(ties+1)/2)
	}
	return Number(float64(better + 1))
}

func fnTrimMean(c *Call) Value {
	nums, code := numbersOf(c.Arg(0))
	pct := c.Num(1)
	if code != noError {
		return Err(code)
	}
	if c.Failed() {
		return c.Failure()
	}
	if pct < 0 || pct >= 1 || len(nums) == 0 {
		return Err(ErrorCodeNum)
	}
	k := int(math.Floor(float64(len(nums)) * pct))
	k -= k % 2
	s := sortedCopy(nums)
	return meanOf(s[k/2 : len(s)-k/2])
}

func fnFrequency(c *Call) Value {
	data, code := numbersOf(c.Arg(0))
	if code != noError {
		return Err(code)
	}
	bins, code := numbersOf(c.Arg(1))
	if code != noError {
		return Err(code)
	}
	sortedBins := sortedCopy(bins)
	counts := make(map[float64]int, len(bins))
	over := 0
	for _, x := range data {
		i, _ := slices.BinarySearch(sortedBins, x)
		if i == len(sortedBins) {
			over++
			continue
		}
		counts[sortedBins[i]]++
	}
	out := make([]Value, 0, len(bins)+1)
	seen := make(map[float64]bool, len(bins))
	for _, b := range bins {
		if seen[b] {
			out = append(out, Number(0))
			continue
		}
		seen[b] = true
		out = append(out, Number(float64(counts[b])))
	}
	out = append(out, Number(float64(over)))
	return Column(out)
}

func fnCorrel(c *Call) Value {
	xs, ys, code := pairedNumbers(c, 0, 1)
	if code != noError {
		return Err(code)
	}
	if len(xs) < 2 {
		return Err(ErrorCodeDiv0)
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return Err(ErrorCodeDiv0)
	}
	return Number(sxy / math.Sqrt(sxx*syy))
}

func covariance(c *Call, sample bool) Value {
	xs, ys, code := pairedNumbers(c, 0, 1)
	if code != noError {
		return Err(code)
	}
	n := float64(len(xs))
	if n == 0 || (sample && n < 2) {
		return Err(ErrorCodeDiv0)
	}
	mx, my := mean(xs), mean(ys)
	s := 0.0
	for i := range xs {
		s += (xs[i] - mx) * (ys[i] - my)
	}
	if sample {
		return Number(s / (n - 1))
	}
	return Number(s / n)
}

// regression fits y = slope*x + intercept over known_y's (argument yi) and
// known_x's (argument xi).
func regression(c *Call, yi, xi int) (slope, intercept float64, code ErrorCode) {
	ys, xs, code := pairedNumbers(c, yi, xi)
	if code != noError {
		return 0, 0, code
	}
	if len(xs) == 0 {
		return 0, 0, ErrorCodeDiv0
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx float64
	for i := range xs {
		sxy += (xs[i] - mx) * (ys[i] - my)
		sxx += (xs[i] - mx) * (xs[i] - mx)
	}
	if sxx == 0 {
		return 0, 0, ErrorCodeDiv0
	}
	slope = sxy / sxx
	return slope, my - slope*mx, noError
}

func fnForecast(c *Call) Value {
	x := c.Num(0)
	if c.Failed() {
		return c.Failure()
	}
	slope, icpt, code := regression(c, 1, 2)
	if code != noError {
		return Err(code)
	}
	return Number(icpt + slope*x)
}

func fnSteyx(c *Call) Value {
	ys, xs, code := pairedNumbers(c, 0, 1)
	if code != noError {
		return Err(code)
	}
	n := float64(len(xs))
	if n < 3 {
		return Err(ErrorCodeDiv0)
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 {
		return Err(ErrorCodeDiv0)
	}
	return Number(math.Sqrt((syy - sxy*sxy/sxx) / (n - 2)))
}

func skewness(xs []float64, sample bool) Value {
	n := float64(len(xs))
	if (sample && n < 3) || n < 1 {
		return Err(ErrorCodeDiv0)
	}
	sd := stdevOf(xs, sample)
	if sd.IsError() || sd.Num == 0 {
		return Err(ErrorCodeDiv0)
	}
	m := mean(xs)
	s := 0.0
	for _, x := range xs {
		z := (x - m) / sd.Num
		s += z * z * z
	}
	if sample {
		return Number(n / ((n - 1) * (n - 2)) * s)
	}
	return Number(s / n)
}

func kurtosis(xs []float64) Value {
	n := float64(len(xs))
	if n < 4 {
		return Err(ErrorCodeDiv0)
	}
	sd := stdevOf(xs, true)
	if sd.IsError() || sd.Num == 0 {
		return Err(ErrorCodeDiv0)
	}
	m := mean(xs)
	s := 0.0
	for _, x := range xs {
		z := (x - m) / sd.Num
		s += z * z * z * z
	}
	return Number(n*(n+1)/((n-1)*(n-2)*(n-3))*s - 3*(n-1)*(n-1)/((n-2)*(n-3)))
}

func fnCount(c *Call) Value {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		v := c.Arg(i)
		if c.IsRef(i) || v.Type == ValueTypeArray {
			for _, cell := range v.Flatten() {
				if cell.Type == ValueTypeNumber {
					n++
				}
			}
			continue
		}
		switch v.Type {
		case ValueTypeNumber, ValueTypeBool:
			n++
		case ValueTypeText:
			if _, ok := ParseNumberText(v.Str); ok {
				n++
			}
		}
	}
	return Number(float64(n))
}

func fnCountA(c *Call) Value {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
			continue
		}
		for _, cell := range c.Arg(i).Flatten() {
			if cell.Type != ValueTypeBlank {
				n++
			}
		}
	}
	return Number(float64(n))
}

func fnCountIf(c *Call) Value {
	rng := c.Array(0)
	crit := c.Scalar(1)
	if c.Failed() {
		return c.Failure()
	}
	cr := parseCriterion(crit, c.Context().Date1904())
	n := 0
	for _, v := range rng.Flatten() {
		if cr.matches(v) {
			n++
		}
	}
	return Number(float64(n))
}

func fnCountIfs(c *Call) Value {
	first := c.Array(0)
	if c.Failed() {
		return c.Failure()
	}
	rows, cols := first.Dims()
	mask, code := criteriaMask(c, 0, rows, cols)
	if code != noError {
		return Err(code)
	}
	n := 0
	for _, row := range mask {
		for _, ok := range row {
			if ok {
				n++
			}
		}
	}
	return Number(float64(n))
}

func fnAverageIf(c *Call) Value {
	rng := c.Array(0)
	crit := c.Scalar(1)
	if c.Failed() {
		return c.Failure()
	}
	cr := parseCriterion(crit, c.Context().Date1904())
	rows, cols := rng.Dims()
	vals := rng
	if c.Has(2) {
		vals = conformingRange(c, 2, rows, cols)
		if vals.IsError() {
			return vals
		}
	}
	var nums []float64
	for r := 0; r < rows; r++ {
		for cl := 0; cl < cols; cl++ {
			if !cr.matches(rng.Rows[r][cl]) {
				continue
			}
			v := vals.At(r, cl)
			switch v.Type {
			case ValueTypeError:
				return v
			case ValueTypeNumber:
				nums = append(nums, v.Num)
			}
		}
	}
	return meanOf(nums)
}

func gammaLn(c *Call) Value {
	return mapNumber(c, 0, func(x float64) Value {
		if x <= 0 {
			return Err(ErrorCodeNum)
		}
		lg, _ := math.Lgamma(x)
		return Number(lg)
	})
}

func fnNormDist(c *Call) Value {
	x, m, sd, cum := c.Num(0), c.Num(1), c.Num(2), c.Bool(3)
	if c.Failed() {
		return c.Failure()
	}
	if sd <= 0 {
		return Err(ErrorCodeNum)
	}
	z := (x - m) / sd
	if cum {
		return Number(normSCDF(z))
	}
	return Number(normSPDF(z) / sd)
}

func fnNormInv(c *Call) Value {
	p, m, sd := c.Num(0), c.Num(1), c.Num(2)
	if c.Failed() {
		return c.Failure()
	}
	if p <= 0 || p >= 1 || sd <= 0 {
		return Err(ErrorCodeNum)
	}
	return Number(m + sd*normSInv(p))
}

func fnLognormDist(c *Call) Value {
	x, m, sd, cum := c.Num(0), c.Num(1), c.Num(2), c.Bool(3)
	if c.Failed() {
		return c.Failure()
	}
	if x <= 0 || sd <= 0 {
		return Err(ErrorCodeNum)
	}
	z := (math.Log(x) - m) / sd
	if cum {
		return Number(normSCDF(z))
	}
	return Number(normSPDF(z) / (x * sd))
}

func fnLognormInv(c *Call) Value {
	p, m, sd := c.Num(0), c.Num(1), c.Num(2)
	if c.Failed() {
		return c.Failure()
	}
	if p <= 0 || p >= 1 || sd <= 0 {
		return Err(ErrorCodeNum)
	}
	return Number(math.Exp(m + sd*normSInv(p)))
}

func fnExponDist(c *Call) Value {
	x, lambda, cum := c.Num(0), c.Num(1), c.Bool(2)
	if c.Failed() {
		return c.Failure()
	}
	if x < 0 || lambda <= 0 {
		return Err(ErrorCodeNum)
	}
	if cum {
		return Number(1 - math.Exp(-lambda*x))
	}
	return Number(lambda * math.Exp(-lambda*x))
}

func fnGammaDist(c *Call) Value {
	x, alpha, beta, cum := c.Num(0), c.Num(1), c.Num(2), c.Bool(3)
	if c.Failed() {
		return c.Failure()
	}
	if x < 0 || alpha <= 0 || beta <= 0 {
		return Err(ErrorCodeNum)
	}
	if cum {
		return Number(gammaCDF(x, alpha, beta))
	}
	return Number(gammaPDF(x, alpha, beta))
}

func fnGammaInv(c *Call) Value {
	p, alpha, beta := c.Num(0), c.Num(1), c.Num(2)
	if c.Failed() {
		return c.Failure()
	}
	if p < 0 || p >= 1 || alpha <= 0 || beta <= 0 {
		return Err(ErrorCodeNum)
	}
	if p == 0 {
		return Number(0)
	}
	x, ok := invertCDF(func(x float64) float64 { return gammaCDF(x, alpha, beta) }, p, 0, alpha*beta+1, true)
	if !ok {
		return Err(ErrorCodeNA)
	}
	return Number(x)
}

func fnBetaDist(c *Call) Value {
	x, a, b, cum := c.Num(0), c.Num(1), c.Num(2), c.Bool(3)
	lo, hi := c.NumOr(4, 0), c.NumOr(5, 1)
	if c.Failed() {
		return c.Failure()
	}
	if a <= 0 || b <= 0 || x < lo || x > hi || lo == hi {
		return Err(ErrorCodeNum)
	}
	t := (x - lo) / (hi - lo)
	if cum {
		return Number(regIncBeta(t, a, b))
	}
	return Number(betaPDF(t, a, b) / (hi - lo))
}

func fnBetaInv(c *Call) Value {
	p, a, b := c.Num(0), c.Num(1), c.Num(2)
	lo, hi := c.NumOr(3, 0), c.NumOr(4, 1)
	if c.Failed() {
		return c.Failure()
	}
	if p <= 0 || p > 1 || a <= 0 || b <= 0 || lo >= hi {
		return Err(ErrorCodeNum)
	}
	x, _ := invertCDF(func(x float64) float64 { return regIncBeta(x, a, b) }, p, 0, 1, false)
	return Number(lo + x*(hi-lo))
}

func fnChisqDist(c *Call) Value {
	x, df, cum := c.Num(0), math.Trunc(c.Num(1)), c.Bool(2)
	if c.Failed() {
		return c.Failure()
	}
	if x < 0 || df < 1 || df > 1e10 {
		return Err(ErrorCodeNum)
	}
	if cum {
		return Number(gammaCDF(x, df/2, 2))
	}
	return Number(gammaPDF(x, df/2, 2))
}

func fnChisqDistRT(c *Call) Value {
	x, df := c.Num(0), math.Trunc(c.Num(1))
	if c.Failed() {
		return c.Failure()
	}
	if x < 0 || df < 1 || df > 1e10 {
		return Err(ErrorCodeNum)
	}
	return Number(1 - gammaCDF(x, df/2, 2))
}

func chisqInv(c *Call, rightTail bool) Value {
	p, df := c.Num(0), math.Trunc(c.Num(1))
	if c.Failed() {
		return c.Failure()
	}
	if p < 0 || p > 1 || df < 1 || df > 1e10 {
		return Err(ErrorCodeNum)
	}
	if rightTail {
		p = 1 - p
	}
	if p == 0 {
		return Number(0)
	}
	if p == 1 {
		return Err(ErrorCodeNum)
	}
	x, ok := invertCDF(func(x float64) float64 { return gammaCDF(x, df/2, 2) }, p, 0, df+1, true)
	if !ok {
		return Err(ErrorCodeNA)
	}
	return Number(x)
}

func fnTDist(c *Call) Value {
	x, df, cum := c.Num(0), math.Trunc(c.Num(1)), c.Bool(2)
	if c.Failed() {
		return c.Failure()
	}
	if df < 1 {
		return Err(ErrorCodeDiv0)
	}
	if cum {
		return Number(studentTCDF(x, df))
	}
	return Number(studentTPDF(x, df))
}

// tTail returns the one- or two-tailed probability beyond x.
func tTail(c *Call, tails int) Value {
	x, df := c.Num(0), math.Trunc(c.Num(1))
	if c.Failed() {
		return c.Failure()
	}
	if df < 1 || (tails == 2 && x < 0) {
		return Err(ErrorCodeNum)
	}
	right := 1 - studentTCDF(x, df)
	if tails == 2 {
		return Number(2 * right)
	}
	return Number(right)
}

func fnTInv(c *Call) Value {
	p, df := c.Num(0), math.Trunc(c.Num(1))
	if c.Failed() {
		return c.Failure()
	}
	if p <= 0 || p >= 1 || df < 1 {
		return Err(ErrorCodeNum)
	}
	return Number(studentTInv(p, df))
}

func fnTInv2T(c *Call) Value {
	p, df := c.Num(0), math.Trunc(c.Num(1))
	if c.Failed() {
		return c.Failure()
	}
	if p <= 0 || p > 1 || df < 1 {
		return Err(ErrorCodeNum)
	}
	return Number(studentTInv(1-p/2, df))
}

func fnFDist(c *Call) Value {
	x, d1, d2, cum := c.Num(0), math.Trunc(c.Num(1)), math.Trunc(c.Num(2)), c.Bool(3)
	if c.Failed() {
		return c.Failure()
	}
	if x < 0 || d1 < 1 || d2 < 1 {
		return Err(ErrorCodeNum)
	}
	if cum {
		return Number(fCDF(x, d1, d2))
	}
	return Number(fPDF(x, d1, d2))
}

func fnFDistRT(c *Call) Value {
	x, d1, d2 := c.Num(0), math.Trunc(c.Num(1)), math.Trunc(c.Num(2))
	if c.Failed() {
		return c.Failure()
	}
	if x < 0 || d1 < 1 || d2 < 1 {
		return Err(ErrorCodeNum)
	}
	return Number(1 - fCDF(x, d1, d2))
}

func fInv(c *Call, rightTail bool) Value {
	p, d1, d2 := c.Num(0), math.Trunc(c.Num(1)), math.Trunc(c.Num(2))
	if c.Failed() {
		return c.Failure()
	}
	if p < 0 || p > 1 || d1 < 1 || d2 < 1 {
		return Err(ErrorCodeNum)
	}
	if rightTail {
		p = 1 - p
	}
	if p == 0 {
		return Number(0)
	}
	if p == 1 {
		return Err(ErrorCodeNum)
	}
	x, ok := invertCDF(func(x float64) float64 { return fCDF(x, d1, d2) }, p, 0, 2, true)
	if !ok {
		return Err(ErrorCodeNA)
	}
	return Number(x)
}

func fnBinomDist(c *Call) Value {
	k, n, p, cum := math.Trunc(c.Num(0)), math.Trunc(c.Num(1)), c.Num(2), c.Bool(3)
	if c.Failed() {
		return c.Failure()
	}
	if k < 0 || k > n || p < 0 || p > 1 {
		return Err(ErrorCodeNum)
	}
	if cum {
		return Number(binomCDF(k, n, p))
	}
	return Number(binomPMFSafe(k, n, p))
}

func fnBinomInv(c *Call) Value {
	n, p, alpha := math.Trunc(c.Num(0)), c.Num(1), c.Num(2)
	if c.Failed() {
		return c.Failure()
	}
	if n < 0 || p < 0 || p > 1 || alpha <= 0 || alpha >= 1 {
		return Err(ErrorCodeNum)
	}
	s := 0.0
	for k := 0.0; k <= n; k++ {
		s += binomPMFSafe(k, n, p)
		if s >= alpha-1e-12 {
			return Number(k)
		}
	}
	return Number(n)
}

func fnNegBinomDist(c *Call) Value {
	f, s, p, cum := math.Trunc(c.Num(0)), math.Trunc(c.Num(1)), c.Num(2), c.Bool(3)
	if c.Failed() {
		return c.Failure()
	}
	if f < 0 || s < 1 || p < 0 || p > 1 {
		return Err(ErrorCodeNum)
	}
	pmf := func(k float64) float64 {
		return math.Exp(lchoose(k+s-1, s-1) + s*math.Log(p) + k*math.Log1p(-p))
	}
	if !cum {
		return Number(pmf(f))
	}
	total := 0.0
	for k := 0.0; k <= f; k++ {
		total += pmf(k)
	}
	return Number(total)
}

func fnHypgeomDist(c *Call) Value {
	k, n := math.Trunc(c.Num(0)), math.Trunc(c.Num(1))
	bigK, bigN := math.Trunc(c.Num(2)), math.Trunc(c.Num(3))
	cum := c.Bool(4)
	if c.Failed() {
		return c.Failure()
	}
	if k < 0 || n <= 0 || bigK <= 0 || bigN <= 0 || n > bigN || bigK > bigN ||
		k > n || k > bigK || k < math.Max(0, n-bigN+bigK) {
		return Err(ErrorCodeNum)
	}
	if !cum {
		return Number(hypgeomPMF(k, n, bigK, bigN))
	}
	total := 0.0
	for i := math.Max(0, n-bigN+bigK); i <= k; i++ {
		total += hypgeomPMF(i, n, bigK, bigN)
	}
	return Number(math.Min(total, 1))
}

func fnPoissonDist(c *Call) Value {
	x, m, cum := math.Trunc(c.Num(0)), c.Num(1), c.Bool(2)
	if c.Failed() {
		return c.Failure()
	}
	if x < 0 || m < 0 {
		return Err(ErrorCodeNum)
	}
	if !cum {
		return Number(poissonPMF(x, m))
	}
	if m == 0 {
		return Number(1)
	}
	return Number(1 - regIncGammaP(x+1, m))
}

func fnWeibullDist(c *Call) Value {
	x, alpha, beta, cum := c.Num(0), c.Num(1), c.Num(2), c.Bool(3)
	if c.Failed() {
		return c.Failure()
	}
	if x < 0 || alpha <= 0 || beta <= 0 {
		return Err(ErrorCodeNum)
	}
	t := math.Pow(x/beta, alpha)
	if cum {
		return Number(1 - math.Exp(-t))
	}
	return Number(alpha / math.Pow(beta, alpha) * math.Pow(x, alpha-1) * math.Exp(-t))
}

func fnConfidenceNorm(c *Call) Value {
	alpha, sd, size := c.Num(0), c.Num(1), math.Trunc(c.Num(2))
	if c.Failed() {
		return c.Failure()
	}
	if alpha <= 0 || alpha >= 1 || sd <= 0 || size < 1 {
		return Err(ErrorCodeNum)
	}
	return Number(normSInv(1-alpha/2) * sd / math.Sqrt(size))
}

func fnConfidenceT(c *Call) Value {
	alpha, sd, size := c.Num(0), c.Num(1), math.Trunc(c.Num(2))
	if c.Failed() {
		return c.Failure()
	}
	if alpha <= 0 || alpha >= 1 || sd <= 0 || size < 1 {
		return Err(ErrorCodeNum)
	}
	if size == 1 {
		return Err(ErrorCodeDiv0)
	}
	return Number(studentTInv(1-alpha/2, size-1) * sd / math.Sqrt(size))
}

func fnZTest(c *Call) Value {
	nums, code := numbersOf(c.Arg(0))
	x := c.Num(1)
	if code != noError {
		return Err(code)
	}
	if c.Failed() {
		return c.Failure()
	}
	if len(nums) == 0 {
		return Err(ErrorCodeNA)
	}
	var sigma float64
	if c.Has(2) {
		sigma = c.Num(2)
		if c.Failed() {
			return c.Failure()
		}
	} else {
		sd := stdevOf(nums, true)
		if sd.IsError() {
			return sd
		}
		sigma = sd.Num
	}
	if sigma == 0 {
		return Err(ErrorCodeDiv0)
	}
	return Number(1 - normSCDF((mean(nums)-x)/(sigma/math.Sqrt(float64(len(nums))))))
}

func fnProb(c *Call) Value {
	xs, ps, code := pairedNumbers(c, 0, 1)
	lo := c.Num(2)
	hi := c.NumOr(3, lo)
	if code != noError {
		return Err(code)
	}
	if c.Failed() {
		return c.Failure()
	}
	total := 0.0
	for _, p := range ps {
		if p < 0 || p > 1 {
			return Err(ErrorCodeNum)
		}
		total += p
	}
	if math.Abs(total-1) > 1e-9 {
		return Err(ErrorCodeNum)
	}
	s := 0.0
	for i, x := range xs {
		if x >= lo && x <= hi {
			s += ps[i]
		}
	}
	return Number(s)
}
