package formula

func compatibilityFunctions() []FunctionSpec {
	modern := make(map[string]FunctionSpec)
	for _, spec := range statisticalFunctions() {
		modern[spec.Name] = spec
	}
	legacy := func(name, current string) FunctionSpec {
		return alias(name, CategoryCompatibility, modern[current])
	}
	// legacyWith is legacy for functions that lost a fixed argument, which
	// is spliced back in at position at.
	legacyWith := func(name, current string, at int, cumulative bool) FunctionSpec {
		spec := legacy(name, current)
		impl := spec.Fn
		spec.Fn = func(c *Call) Value { return impl(c.withArg(at, cumulative)) }
		if spec.MinArgs > at {
			spec.MinArgs--
		}
		if spec.MaxArgs != Variadic {
			spec.MaxArgs--
		}
		return spec
	}

	return []FunctionSpec{
		legacyWith("BETADIST", "BETA.DIST", 3, true),
		legacy("BETAINV", "BETA.INV"),
		legacy("BINOMDIST", "BINOM.DIST"),
		legacy("CHIDIST", "CHISQ.DIST.RT"),
		legacy("CHIINV", "CHISQ.INV.RT"),
		legacy("CONFIDENCE", "CONFIDENCE.NORM"),
		legacy("COVAR", "COVARIANCE.P"),
		legacy("CRITBINOM", "BINOM.INV"),
		legacy("EXPONDIST", "EXPON.DIST"),
		legacy("FDIST", "F.DIST.RT"),
		legacy("FINV", "F.INV.RT"),
		legacy("GAMMADIST", "GAMMA.DIST"),
		legacy("GAMMAINV", "GAMMA.INV"),
		legacyWith("HYPGEOMDIST", "HYPGEOM.DIST", 4, false),
		legacy("LOGINV", "LOGNORM.INV"),
		legacyWith("LOGNORMDIST", "LOGNORM.DIST", 3, true),
		legacy("MODE", "MODE.SNGL"),
		legacyWith("NEGBINOMDIST", "NEGBINOM.DIST", 3, false),
		legacy("NORMDIST", "NORM.DIST"),
		legacy("NORMINV", "NORM.INV"),
		legacyWith("NORMSDIST", "NORM.S.DIST", 1, true),
		legacy("NORMSINV", "NORM.S.INV"),
		legacy("PERCENTILE", "PERCENTILE.INC"),
		legacy("PERCENTRANK", "PERCENTRANK.INC"),
		legacy("POISSON", "POISSON.DIST"),
		legacy("QUARTILE", "QUARTILE.INC"),
		legacy("RANK", "RANK.EQ"),
		legacy("STDEV", "STDEV.S"),
		legacy("STDEVP", "STDEV.P"),
		legacy("VAR", "VAR.S"),
		legacy("VARP", "VAR.P"),
		fn("TDIST", CategoryCompatibility, 3, 3, func(c *Call) Value {
			x, tails := c.Num(0), c.Int(2)
			if c.Failed() {
				return c.Failure()
			}
			if x < 0 || (tails != 1 && tails != 2) {
				return Err(ErrorCodeNum)
			}
			return tTail(c, tails)
		}),
		legacy("TINV", "T.INV.2T"),
		legacy("WEIBULL", "WEIBULL.DIST"),
		legacy("ZTEST", "Z.TEST"),
	}
}

// withArg returns a copy of the call with a literal boolean argument
// inserted at position at.
func (c *Call) withArg(at int, b bool) *Call {
	if at > len(c.nodes) {
		at = len(c.nodes)
	}
	nodes := make([]ASTNode, 0, len(c.nodes)+1)
	nodes = append(nodes, c.nodes[:at]...)
	nodes = append(nodes, &BooleanNode{Value: b})
	nodes = append(nodes, c.nodes[at:]...)

	out := &Call{Name: c.Name, ctx: c.ctx, nodes: nodes, spec: c.spec}
	if c.Args != nil {
		args := make([]Value, 0, len(c.Args)+1)
		args = append(args, c.Args[:at]...)
		args = append(args, Bool(b))
		args = append(args, c.Args[at:]...)
		out.Args = args
	}
	return out
}

// stubFunctions are recognized names that need a host application,
// external data or cube connections. they evaluate to #N/A rather than
// #NAME?.
func stubFunctions() []FunctionSpec {
	names := []string{
		"CALL", "CELL", "CUBEKPIMEMBER", "CUBEMEMBER", "CUBEMEMBERPROPERTY",
		"CUBERANKEDMEMBER", "CUBESET", "CUBESETCOUNT", "CUBEVALUE", "EUROCONVERT",
		"FILTERXML", "GETPIVOTDATA", "IMAGE", "INFO", "ISFORMULA", "FORMULATEXT",
		"REGISTER.ID", "RTD", "STOCKHISTORY", "WEBSERVICE",
	}
	specs := make([]FunctionSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, FunctionSpec{
			Name:     name,
			Category: CategoryInformation,
			MinArgs:  0,
			MaxArgs:  Variadic,
			Lazy:     true,
			Stub:     true,
			Fn:       func(*Call) Value { return Err(ErrorCodeNA) },
		})
	}
	return specs
}
