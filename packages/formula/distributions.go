package formula

import (
	"math"
)

const (
	distEpsilon   = 1e-15
	distMaxIter   = 1000
	tinyFloat     = 1e-300
	invIterations = 200
)

// regIncGammaP is the regularized lower incomplete gamma function P(a, x).
func regIncGammaP(a, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x < a+1 {
		// series expansion
		sum := 1 / a
		term := sum
		for n := 1; n < distMaxIter; n++ {
			term *= x / (a + float64(n))
			sum += term
			if math.Abs(term) < math.Abs(sum)*distEpsilon {
				break
			}
		}
		lg, _ := math.Lgamma(a)
		return sum * math.Exp(-x+a*math.Log(x)-lg)
	}
	return 1 - regIncGammaQcf(a, x)
}

// regIncGammaQcf evaluates Q(a, x) by Lentz's continued fraction.
func regIncGammaQcf(a, x float64) float64 {
	b := x + 1 - a
	cf := 1 / tinyFloat
	d := 1 / b
	h := d
	for i := 1; i < distMaxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tinyFloat {
			d = tinyFloat
		}
		cf = b + an/cf
		if math.Abs(cf) < tinyFloat {
			cf = tinyFloat
		}
		d = 1 / d
		del := d * cf
		h *= del
		if math.Abs(del-1) < distEpsilon {
			break
		}
	}
	lg, _ := math.Lgamma(a)
	return math.Exp(-x+a*math.Log(x)-lg) * h
}

// regIncBeta is the regularized incomplete beta function I_x(a, b).
func regIncBeta(x, a, b float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	}
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	lab, _ := math.Lgamma(a + b)
	front := math.Exp(lab - la - lb + a*math.Log(x) + b*math.Log(1-x))
	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(x, a, b) / a
	}
	return 1 - front*betaContinuedFraction(1-x, b, a)/b
}

func betaContinuedFraction(x, a, b float64) float64 {
	qab, qap, qam := a+b, a+1, a-1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tinyFloat {
		d = tinyFloat
	}
	d = 1 / d
	h := d
	for m := 1; m < distMaxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm
		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tinyFloat {
			d = tinyFloat
		}
		c = 1 + aa/c
		if math.Abs(c) < tinyFloat {
			c = tinyFloat
		}
		d = 1 / d
		h *= d * c
		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tinyFloat {
			d = tinyFloat
		}
		c = 1 + aa/c
		if math.Abs(c) < tinyFloat {
			c = tinyFloat
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < distEpsilon {
			break
		}
	}
	return h
}

// invertCDF finds x in [lo, hi] with cdf(x) = p by bisection. cdf must be
// nondecreasing. hi doubles until it brackets p when unbounded is set.
func invertCDF(cdf func(float64) float64, p, lo, hi float64, unbounded bool) (float64, bool) {
	if unbounded {
		for i := 0; cdf(hi) < p; i++ {
			if i > 200 {
				return 0, false
			}
			lo = hi
			hi *= 2
		}
	}
	for i := 0; i < invIterations; i++ {
		mid := (lo + hi) / 2
		if mid == lo || mid == hi {
			break
		}
		if cdf(mid) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, true
}

func normSCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

func normSPDF(z float64) float64 {
	return math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)
}

func normSInv(p float64) float64 {
	return -math.Sqrt2 * math.Erfcinv(2*p)
}

func gammaCDF(x, alpha, beta float64) float64 {
	return regIncGammaP(alpha, x/beta)
}

func gammaPDF(x, alpha, beta float64) float64 {
	if x == 0 {
		switch {
		case alpha < 1:
			return math.Inf(1)
		case alpha == 1:
			return 1 / beta
		}
		return 0
	}
	lg, _ := math.Lgamma(alpha)
	return math.Exp((alpha-1)*math.Log(x) - x/beta - lg - alpha*math.Log(beta))
}

func betaPDF(x, a, b float64) float64 {
	if x <= 0 || x >= 1 {
		return 0
	}
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	lab, _ := math.Lgamma(a + b)
	return math.Exp((a-1)*math.Log(x) + (b-1)*math.Log(1-x) + lab - la - lb)
}

func studentTCDF(t, df float64) float64 {
	ib := regIncBeta(df/(df+t*t), df/2, 0.5)
	if t > 0 {
		return 1 - 0.5*ib
	}
	return 0.5 * ib
}

func studentTPDF(t, df float64) float64 {
	l1, _ := math.Lgamma((df + 1) / 2)
	l2, _ := math.Lgamma(df / 2)
	return math.Exp(l1-l2) / math.Sqrt(df*math.Pi) * math.Pow(1+t*t/df, -(df+1)/2)
}

// studentTInv returns the t with left-tail probability p.
func studentTInv(p, df float64) float64 {
	if p == 0.5 {
		return 0
	}
	if p < 0.5 {
		return -studentTInv(1-p, df)
	}
	x, _ := invertCDF(func(t float64) float64 { return studentTCDF(t, df) }, p, 0, 1, true)
	return x
}

func fCDF(x, d1, d2 float64) float64 {
	if x <= 0 {
		return 0
	}
	return regIncBeta(d1*x/(d1*x+d2), d1/2, d2/2)
}

func fPDF(x, d1, d2 float64) float64 {
	if x <= 0 {
		return 0
	}
	la, _ := math.Lgamma(d1 / 2)
	lb, _ := math.Lgamma(d2 / 2)
	lab, _ := math.Lgamma((d1 + d2) / 2)
	logp := lab - la - lb + (d1/2)*math.Log(d1/d2) + (d1/2-1)*math.Log(x) - ((d1+d2)/2)*math.Log(1+d1*x/d2)
	return math.Exp(logp)
}

func binomPMF(k, n, p float64) float64 {
	lc := lchoose(n, k)
	return math.Exp(lc + k*math.Log(p) + (n-k)*math.Log1p(-p))
}

func binomCDF(k, n, p float64) float64 {
	s := 0.0
	for i := 0.0; i <= k; i++ {
		s += binomPMFSafe(i, n, p)
	}
	return math.Min(s, 1)
}

// binomPMFSafe handles p of exactly 0 or 1, where the log form breaks down.
func binomPMFSafe(k, n, p float64) float64 {
	switch p {
	case 0:
		if k == 0 {
			return 1
		}
		return 0
	case 1:
		if k == n {
			return 1
		}
		return 0
	}
	return binomPMF(k, n, p)
}

func lchoose(n, k float64) float64 {
	a, _ := math.Lgamma(n + 1)
	b, _ := math.Lgamma(k + 1)
	c, _ := math.Lgamma(n - k + 1)
	return a - b - c
}

func poissonPMF(k, mean float64) float64 {
	if mean == 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	lg, _ := math.Lgamma(k + 1)
	return math.Exp(k*math.Log(mean) - mean - lg)
}

func hypgeomPMF(k, n, bigK, bigN float64) float64 {
	return math.Exp(lchoose(bigK, k) + lchoose(bigN-bigK, n-k) - lchoose(bigN, n))
}
