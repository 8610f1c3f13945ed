package formula

import (
	"strings"
)

// criterion is a parsed COUNTIF-style condition such as ">5", "<>x" or
// "app*".
type criterion struct {
	op       string
	operand  Value
	text     string
	wildcard bool
	explicit bool
}

// parseCriterion builds a criterion from a criteria argument. non-text
// criteria match by equality.
func parseCriterion(v Value, date1904 bool) criterion {
	switch v.Type {
	case ValueTypeNumber, ValueTypeBool, ValueTypeError:
		return criterion{op: "=", operand: v}
	case ValueTypeBlank:
		return criterion{op: "=", operand: Number(0)}
	}

	s := v.Str
	op, explicit := "=", false
	for _, prefix := range []string{"<=", ">=", "<>", "<", ">", "="} {
		if strings.HasPrefix(s, prefix) {
			op, explicit = prefix, true
			s = s[len(prefix):]
			break
		}
	}

	cr := criterion{op: op, text: s, explicit: explicit}
	switch {
	case s == "":
		cr.operand = Blank()
	case strings.EqualFold(s, "TRUE"):
		cr.operand = Bool(true)
	case strings.EqualFold(s, "FALSE"):
		cr.operand = Bool(false)
	default:
		if code, ok := ParseErrorCode(s); ok {
			cr.operand = Err(code)
		} else if n, ok := ParseNumberText(s); ok {
			cr.operand = Number(n)
		} else if n, ok := parseDateTimeText(s, date1904); ok && strings.ContainsAny(s, "/-:") {
			cr.operand = Number(n)
		} else {
			cr.operand = Text(s)
			cr.wildcard = hasWildcards(s)
		}
	}
	return cr
}

// matches reports whether a cell value satisfies the criterion.
func (cr criterion) matches(v Value) bool {
	switch cr.operand.Type {
	case ValueTypeBlank:
		empty := v.Type == ValueTypeBlank || (v.Type == ValueTypeText && v.Str == "")
		switch {
		case cr.op == "=" && !cr.explicit:
			return empty
		case cr.op == "=":
			return v.Type == ValueTypeBlank
		case cr.op == "<>":
			return !empty
		}
		return false
	case ValueTypeError:
		eq := v.Type == ValueTypeError && v.Err == cr.operand.Err
		if cr.op == "<>" {
			return !eq
		}
		return cr.op == "=" && eq
	case ValueTypeBool:
		if v.Type != ValueTypeBool {
			return cr.op == "<>"
		}
		return applyOrder(cr.op, compareValues(v, cr.operand))
	case ValueTypeNumber:
		switch v.Type {
		case ValueTypeNumber:
			return applyOrder(cr.op, compareFloats(v.Num, cr.operand.Num))
		case ValueTypeText:
			if n, ok := ParseNumberText(v.Str); ok && (cr.op == "=" || cr.op == "<>") {
				return applyOrder(cr.op, compareFloats(n, cr.operand.Num))
			}
		}
		return cr.op == "<>"
	}

	// text operand
	if v.Type != ValueTypeText {
		return cr.op == "<>"
	}
	switch cr.op {
	case "=", "<>":
		var eq bool
		if cr.wildcard {
			eq = wildcardMatch(cr.text, v.Str)
		} else {
			eq = strings.EqualFold(v.Str, cr.text)
		}
		if cr.op == "<>" {
			return !eq
		}
		return eq
	}
	return applyOrder(cr.op, strings.Compare(strings.ToLower(v.Str), strings.ToLower(cr.text)))
}

func applyOrder(op string, cmp int) bool {
	switch op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// wildcardMatch matches text against a pattern where * is any run, ? is any
// single character and ~ escapes the next character. case is ignored.
func wildcardMatch(pattern, text string) bool {
	p := []rune(strings.ToLower(pattern))
	t := []rune(strings.ToLower(text))

	type token struct {
		r    rune
		kind byte // 'c' literal, '*' any run, '?' any single
	}
	toks := make([]token, 0, len(p))
	for i := 0; i < len(p); i++ {
		switch {
		case p[i] == '~' && i+1 < len(p):
			i++
			toks = append(toks, token{r: p[i], kind: 'c'})
		case p[i] == '*':
			toks = append(toks, token{kind: '*'})
		case p[i] == '?':
			toks = append(toks, token{kind: '?'})
		default:
			toks = append(toks, token{r: p[i], kind: 'c'})
		}
	}

	// greedy matcher with backtracking to the last star
	ti, pi := 0, 0
	star, mark := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(toks) && (toks[pi].kind == '?' || (toks[pi].kind == 'c' && toks[pi].r == t[ti])):
			ti++
			pi++
		case pi < len(toks) && toks[pi].kind == '*':
			star = pi
			mark = ti
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ti = mark
		default:
			return false
		}
	}
	for pi < len(toks) && toks[pi].kind == '*' {
		pi++
	}
	return pi == len(toks)
}

// hasWildcards reports whether s uses wildcard syntax.
func hasWildcards(s string) bool {
	return strings.ContainsAny(s, "*?~")
}
