package formula

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/width"
)

// maxTextLength is the longest text a cell can hold.
const maxTextLength = 32767

func textFunctions() []FunctionSpec {
	return []FunctionSpec{
		unaryText("ASC", func(s string) Value { return Text(width.Narrow.String(s)) }),
		unaryText("DBCS", func(s string) Value { return Text(width.Widen.String(s)) }),
		unaryText("CLEAN", func(s string) Value {
			return Text(strings.Map(func(r rune) rune {
				if r < 32 {
					return -1
				}
				return r
			}, s))
		}),
		unaryText("CODE", func(s string) Value {
			r, size := utf8.DecodeRuneInString(s)
			if size == 0 {
				return Err(ErrorCodeValue)
			}
			if b, ok := charmap.Windows1252.EncodeRune(r); ok {
				return Number(float64(b))
			}
			return Number('?')
		}),
		fn("CHAR", CategoryText, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(x float64) Value {
				n := truncInt(x)
				if n < 1 || n > 255 {
					return Err(ErrorCodeValue)
				}
				return Text(string(charmap.Windows1252.DecodeByte(byte(n))))
			})
		}),
		fn("UNICHAR", CategoryText, 1, 1, func(c *Call) Value {
			return mapNumber(c, 0, func(x float64) Value {
				n := truncInt(x)
				if n < 1 || n > unicode.MaxRune || (n >= 0xD800 && n <= 0xDFFF) {
					return Err(ErrorCodeValue)
				}
				return Text(string(rune(n)))
			})
		}),
		unaryText("UNICODE", func(s string) Value {
			r, size := utf8.DecodeRuneInString(s)
			if size == 0 {
				return Err(ErrorCodeValue)
			}
			return Number(float64(r))
		}),
		unaryText("LEN", func(s string) Value { return Number(float64(utf8.RuneCountInString(s))) }),
		unaryText("LENB", func(s string) Value { return Number(float64(byteLength(s))) }),
		unaryText("LOWER", func(s string) Value { return Text(strings.ToLower(s)) }),
		unaryText("UPPER", func(s string) Value { return Text(strings.ToUpper(s)) }),
		unaryText("PROPER", func(s string) Value { return Text(properCase(s)) }),
		unaryText("TRIM", func(s string) Value { return Text(strings.Join(strings.FieldsFunc(s, isSpace), " ")) }),
		fn("T", CategoryText, 1, 1, func(c *Call) Value {
			v := c.Arg(0)
			if v.Type == ValueTypeArray {
				v = v.At(0, 0)
			}
			switch v.Type {
			case ValueTypeText, ValueTypeError:
				return v
			}
			return Text("")
		}),
		fn("EXACT", CategoryText, 2, 2, func(c *Call) Value {
			a, b := c.Str(0), c.Str(1)
			if c.Failed() {
				return c.Failure()
			}
			return Bool(a == b)
		}),
		fn("LEFT", CategoryText, 1, 2, func(c *Call) Value { return sliceText(c, false, false) }),
		fn("LEFTB", CategoryText, 1, 2, func(c *Call) Value { return sliceText(c, false, true) }),
		fn("RIGHT", CategoryText, 1, 2, func(c *Call) Value { return sliceText(c, true, false) }),
		fn("RIGHTB", CategoryText, 1, 2, func(c *Call) Value { return sliceText(c, true, true) }),
		fn("MID", CategoryText, 3, 3, func(c *Call) Value { return midText(c, false) }),
		fn("MIDB", CategoryText, 3, 3, func(c *Call) Value { return midText(c, true) }),
		fn("FIND", CategoryText, 2, 3, func(c *Call) Value { return findText(c, true, false) }),
		fn("FINDB", CategoryText, 2, 3, func(c *Call) Value { return findText(c, true, true) }),
		fn("SEARCH", CategoryText, 2, 3, func(c *Call) Value { return findText(c, false, false) }),
		fn("SEARCHB", CategoryText, 2, 3, func(c *Call) Value { return findText(c, false, true) }),
		fn("REPLACE", CategoryText, 4, 4, func(c *Call) Value { return replaceText(c, false) }),
		fn("REPLACEB", CategoryText, 4, 4, func(c *Call) Value { return replaceText(c, true) }),
		fn("REPT", CategoryText, 2, 2, func(c *Call) Value {
			s, n := c.Str(0), c.Int(1)
			if c.Failed() {
				return c.Failure()
			}
			if n < 0 || utf8.RuneCountInString(s)*n > maxTextLength {
				return Err(ErrorCodeValue)
			}
			return Text(strings.Repeat(s, n))
		}),
		fn("SUBSTITUTE", CategoryText, 3, 4, fnSubstitute),
		fn("CONCATENATE", CategoryText, 1, Variadic, func(c *Call) Value {
			var sb strings.Builder
			for i := 0; i < c.Len(); i++ {
				sb.WriteString(c.Str(i))
			}
			if c.Failed() {
				return c.Failure()
			}
			return limitText(sb.String())
		}),
		fn("CONCAT", CategoryText, 1, Variadic, func(c *Call) Value {
			var sb strings.Builder
			for _, v := range flattenValues(c, 0) {
				if v.Type == ValueTypeError {
					return v
				}
				sb.WriteString(v.String())
			}
			return limitText(sb.String())
		}),
		arrayFn("TEXTJOIN", CategoryText, 3, Variadic, fnTextJoin),
		fn("TEXT", CategoryText, 2, 2, func(c *Call) Value {
			v := c.Scalar(0)
			format := c.Str(1)
			if c.Failed() {
				return c.Failure()
			}
			return Text(FormatValue(v, format, c.Context().Date1904()))
		}),
		fn("VALUE", CategoryText, 1, 1, func(c *Call) Value {
			return mapValues(c.Arg(0), func(v Value) Value { return textToValue(v, c.Context().Date1904()) })
		}),
		fn("NUMBERVALUE", CategoryText, 1, 3, fnNumberValue),
		fn("VALUETOTEXT", CategoryText, 1, 2, func(c *Call) Value {
			v := c.Scalar(0)
			strict := c.IntOr(1, 0)
			if strict != 0 && strict != 1 {
				return Err(ErrorCodeValue)
			}
			if strict == 1 && v.Type == ValueTypeText {
				return Text(`"` + strings.ReplaceAll(v.Str, `"`, `""`) + `"`)
			}
			return Text(v.String())
		}),
		fn("DOLLAR", CategoryText, 1, 2, func(c *Call) Value {
			x := c.Num(0)
			decimals := c.IntOr(1, 2)
			if c.Failed() {
				return c.Failure()
			}
			body := fixedFormat(decimals, true)
			return Text(FormatValue(Number(roundHalfAway(x, decimals)), "$"+body+";($"+body+")", false))
		}),
		fn("FIXED", CategoryText, 1, 3, func(c *Call) Value {
			x := c.Num(0)
			decimals := c.IntOr(1, 2)
			noCommas := c.BoolOr(2, false)
			if c.Failed() {
				return c.Failure()
			}
			if decimals > 127 {
				return Err(ErrorCodeValue)
			}
			return Text(FormatValue(Number(roundHalfAway(x, decimals)), fixedFormat(decimals, !noCommas), false))
		}),
		fn("TEXTBEFORE", CategoryText, 2, 6, func(c *Call) Value { return splitAround(c, true) }),
		fn("TEXTAFTER", CategoryText, 2, 6, func(c *Call) Value { return splitAround(c, false) }),
		unaryText("ENCODEURL", func(s string) Value {
			return Text(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"))
		}),
		fn("HYPERLINK", CategoryText, 1, 2, func(c *Call) Value {
			if c.Has(1) {
				return c.Scalar(1)
			}
			return c.Scalar(0)
		}),
	}
}

func unaryText(name string, f func(string) Value) FunctionSpec {
	return fn(name, CategoryText, 1, 1, func(c *Call) Value {
		return mapValues(c.Arg(0), func(v Value) Value {
			s, code := ToText(v)
			if code != noError {
				return Err(code)
			}
			return f(s)
		})
	})
}

func limitText(s string) Value {
	if utf8.RuneCountInString(s) > maxTextLength {
		return Err(ErrorCodeValue)
	}
	return Text(s)
}

func isSpace(r rune) bool { return r == ' ' }

func properCase(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return sb.String()
}

// runeBytes is the storage width of r in a double-byte character set: wide
// and fullwidth characters take two bytes.
func runeBytes(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

func byteLength(s string) int {
	n := 0
	for _, r := range s {
		n += runeBytes(r)
	}
	return n
}

// takeBytes returns how many leading runes of rs fit in n bytes.
func takeBytes(rs []rune, n int) int {
	used := 0
	for i, r := range rs {
		used += runeBytes(r)
		if used > n {
			return i
		}
	}
	return len(rs)
}

// bytePos converts a 1-based byte position into a rune index.
func bytePos(rs []rune, pos int) int {
	used := 0
	for i, r := range rs {
		if used >= pos-1 {
			return i
		}
		used += runeBytes(r)
	}
	return len(rs)
}

func sliceText(c *Call, fromRight, bytes bool) Value {
	s := c.Str(0)
	n := c.IntOr(1, 1)
	if c.Failed() {
		return c.Failure()
	}
	if n < 0 {
		return Err(ErrorCodeValue)
	}
	rs := []rune(s)
	if bytes {
		if fromRight {
			rev := make([]rune, len(rs))
			for i, r := range rs {
				rev[len(rs)-1-i] = r
			}
			n = takeBytes(rev, n)
		} else {
			n = takeBytes(rs, n)
		}
	}
	n = min(n, len(rs))
	if fromRight {
		return Text(string(rs[len(rs)-n:]))
	}
	return Text(string(rs[:n]))
}

func midText(c *Call, bytes bool) Value {
	s := c.Str(0)
	start, n := c.Int(1), c.Int(2)
	if c.Failed() {
		return c.Failure()
	}
	if start < 1 || n < 0 {
		return Err(ErrorCodeValue)
	}
	rs := []rune(s)
	from := start - 1
	if bytes {
		from = bytePos(rs, start)
	}
	if from >= len(rs) {
		return Text("")
	}
	rest := rs[from:]
	if bytes {
		n = takeBytes(rest, n)
	}
	n = min(n, len(rest))
	return Text(string(rest[:n]))
}

func findText(c *Call, caseSensitive, bytes bool) Value {
	needle, hay := c.Str(0), c.Str(1)
	start := c.IntOr(2, 1)
	if c.Failed() {
		return c.Failure()
	}
	hr := []rune(hay)
	from := start - 1
	if bytes {
		from = bytePos(hr, start)
	}
	if start < 1 || from > len(hr) {
		return Err(ErrorCodeValue)
	}
	idx := -1
	if caseSensitive {
		if i := strings.Index(string(hr[from:]), needle); i >= 0 {
			idx = from + utf8.RuneCountInString(string(hr[from:])[:i])
		}
	} else {
		idx = searchRunes(hr, from, needle)
	}
	if idx < 0 {
		return Err(ErrorCodeValue)
	}
	if bytes {
		return Number(float64(byteLength(string(hr[:idx])) + 1))
	}
	return Number(float64(idx + 1))
}

// searchRunes finds pattern in rs from rune index from, ignoring case and
// honoring wildcards. it returns the rune index or -1.
func searchRunes(rs []rune, from int, pattern string) int {
	if pattern == "" {
		return from
	}
	if !hasWildcards(pattern) {
		lower := []rune(strings.ToLower(string(rs)))
		if len(lower) != len(rs) {
			lower = rs
		}
		if i := strings.Index(string(lower[from:]), strings.ToLower(pattern)); i >= 0 {
			return from + utf8.RuneCountInString(string(lower[from:])[:i])
		}
		return -1
	}
	for i := from; i < len(rs); i++ {
		if wildcardMatch(pattern+"*", string(rs[i:])) {
			return i
		}
	}
	return -1
}

func replaceText(c *Call, bytes bool) Value {
	s := c.Str(0)
	start, n := c.Int(1), c.Int(2)
	repl := c.Str(3)
	if c.Failed() {
		return c.Failure()
	}
	if start < 1 || n < 0 {
		return Err(ErrorCodeValue)
	}
	rs := []rune(s)
	from := start - 1
	if bytes {
		from = bytePos(rs, start)
	}
	from = min(from, len(rs))
	if bytes {
		n = takeBytes(rs[from:], n)
	}
	to := min(from+n, len(rs))
	return limitText(string(rs[:from]) + repl + string(rs[to:]))
}

func fnSubstitute(c *Call) Value {
	s, old, repl := c.Str(0), c.Str(1), c.Str(2)
	instance := c.IntOr(3, 0)
	if c.Failed() {
		return c.Failure()
	}
	if c.Has(3) && instance < 1 {
		return Err(ErrorCodeValue)
	}
	if old == "" {
		return Text(s)
	}
	if instance == 0 {
		return limitText(strings.ReplaceAll(s, old, repl))
	}
	pos := 0
	for k := 1; ; k++ {
		i := strings.Index(s[pos:], old)
		if i < 0 {
			return Text(s)
		}
		if k == instance {
			at := pos + i
			return limitText(s[:at] + repl + s[at+len(old):])
		}
		pos += i + len(old)
	}
}

func fnTextJoin(c *Call) Value {
	delims := c.Arg(0).Flatten()
	ignoreEmpty := c.Bool(1)
	if c.Failed() {
		return c.Failure()
	}
	var parts []string
	for _, v := range flattenValues(c, 2) {
		if v.Type == ValueTypeError {
			return v
		}
		s := v.String()
		if ignoreEmpty && s == "" {
			continue
		}
		parts = append(parts, s)
	}
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			d := delims[(i-1)%len(delims)]
			if d.Type == ValueTypeError {
				return d
			}
			sb.WriteString(d.String())
		}
		sb.WriteString(p)
	}
	return limitText(sb.String())
}

func textToValue(v Value, date1904 bool) Value {
	switch v.Type {
	case ValueTypeNumber, ValueTypeError:
		return v
	case ValueTypeBlank:
		return Number(0)
	case ValueTypeBool:
		return Err(ErrorCodeValue)
	}
	s := strings.TrimSpace(v.Str)
	if s == "" {
		return Number(0)
	}
	if n, ok := ParseNumberText(s); ok {
		return Number(n)
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if rest, ok := strings.CutPrefix(s, "$"); ok {
		if n, ok := ParseNumberText(rest); ok {
			if neg {
				n = -n
			}
			return Number(n)
		}
	}
	if neg {
		if n, ok := ParseNumberText(s); ok {
			return Number(-n)
		}
	}
	if n, ok := parseDateTimeText(s, date1904); ok {
		return Number(n)
	}
	return Err(ErrorCodeValue)
}

func fnNumberValue(c *Call) Value {
	s := c.Str(0)
	dec := c.StrOr(1, ".")
	group := c.StrOr(2, ",")
	if c.Failed() {
		return c.Failure()
	}
	if dec == "" || group == "" {
		return Err(ErrorCodeValue)
	}
	decRune, _ := utf8.DecodeRuneInString(dec)
	groupRune, _ := utf8.DecodeRuneInString(group)
	if decRune == groupRune {
		return Err(ErrorCodeValue)
	}
	var sb strings.Builder
	seenDec := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case r == decRune:
			if seenDec {
				return Err(ErrorCodeValue)
			}
			seenDec = true
			sb.WriteByte('.')
		case r == groupRune:
			if seenDec {
				return Err(ErrorCodeValue)
			}
		default:
			sb.WriteRune(r)
		}
	}
	clean := sb.String()
	if clean == "" {
		return Number(0)
	}
	pct := 0
	for strings.HasSuffix(clean, "%") {
		pct++
		clean = clean[:len(clean)-1]
	}
	n, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return Err(ErrorCodeValue)
	}
	for ; pct > 0; pct-- {
		n /= 100
	}
	return Number(n)
}

// fixedFormat builds the format code FIXED and DOLLAR render with.
func fixedFormat(decimals int, grouping bool) string {
	body := "0"
	if grouping {
		body = "#,##0"
	}
	if decimals > 0 {
		body += "." + strings.Repeat("0", decimals)
	}
	return body
}

// splitAround implements TEXTBEFORE and TEXTAFTER.
func splitAround(c *Call, before bool) Value {
	s := c.Str(0)
	delims := c.Arg(1).Flatten()
	instance := c.IntOr(2, 1)
	insensitive := c.IntOr(3, 0) == 1
	matchEnd := c.IntOr(4, 0) == 1
	if c.Failed() {
		return c.Failure()
	}
	if instance == 0 || absInt(instance) > utf8.RuneCountInString(s)+1 {
		return Err(ErrorCodeValue)
	}
	var needles []string
	for _, d := range delims {
		if d.Type == ValueTypeError {
			return d
		}
		needles = append(needles, d.String())
	}

	hay := s
	if lower := strings.ToLower(s); insensitive && len(lower) == len(s) {
		hay = lower
		for i := range needles {
			needles[i] = strings.ToLower(needles[i])
		}
	}

	// every delimiter occurrence as [start, end) byte offsets
	type hit struct{ start, end int }
	var hits []hit
	for pos := 0; pos <= len(hay); {
		best := hit{-1, -1}
		for _, n := range needles {
			i := strings.Index(hay[pos:], n)
			if i >= 0 && (best.start < 0 || pos+i < best.start) {
				best = hit{pos + i, pos + i + len(n)}
			}
		}
		if best.start < 0 {
			break
		}
		hits = append(hits, best)
		if best.end == best.start {
			pos = best.end + 1
		} else {
			pos = best.end
		}
	}
	if matchEnd {
		if instance > 0 {
			hits = append(hits, hit{len(s), len(s)})
		} else {
			hits = append([]hit{{0, 0}}, hits...)
		}
	}

	var h hit
	switch {
	case instance > 0 && instance <= len(hits):
		h = hits[instance-1]
	case instance < 0 && -instance <= len(hits):
		h = hits[len(hits)+instance]
	default:
		if c.Has(5) {
			return c.Scalar(5)
		}
		return Err(ErrorCodeNA)
	}
	if before {
		return Text(s[:h.start])
	}
	return Text(s[h.end:])
}
