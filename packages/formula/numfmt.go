package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/nfp"
)

var (
	monthNames = []string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}
	dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// FormatValue renders v with a spreadsheet number format code such as
// "#,##0.00", "0%" or "yyyy-mm-dd", the way TEXT does.
func FormatValue(v Value, format string, date1904 bool) string {
	ps := nfp.NumberFormatParser()
	sections := ps.Parse(format)

	switch v.Type {
	case ValueTypeBool:
		return v.String()
	case ValueTypeText:
		if n, ok := ParseNumberText(v.Str); ok {
			return formatNumberSections(n, sections, date1904)
		}
		return formatTextSection(v.Str, sections)
	}
	n, _ := ToNumber(v)
	return formatNumberSections(n, sections, date1904)
}

func formatTextSection(s string, sections []nfp.Section) string {
	for _, section := range sections {
		if section.Type != nfp.TokenSectionText {
			continue
		}
		var sb strings.Builder
		for _, tok := range section.Items {
			switch tok.TType {
			case nfp.TokenTypeTextPlaceHolder:
				sb.WriteString(s)
			case nfp.TokenTypeLiteral:
				sb.WriteString(tok.TValue)
			}
		}
		return sb.String()
	}
	return s
}

// pickSection chooses the positive, negative or zero section. the returned
// flag says whether the caller must add a minus sign itself.
func pickSection(n float64, sections []nfp.Section) (nfp.Section, float64, bool) {
	var numeric []nfp.Section
	for _, s := range sections {
		if s.Type != nfp.TokenSectionText || hasNumericTokens(s) {
			numeric = append(numeric, s)
		}
	}
	if len(numeric) == 0 {
		return nfp.Section{Items: []nfp.Token{{TType: nfp.TokenTypeGeneral, TValue: "General"}}}, n, n < 0
	}

	// explicit conditions such as [>100] pick the first matching section
	if cond, ok := sectionCondition(numeric[0]); ok {
		if cond(n) {
			return numeric[0], math.Abs(n), n < 0 && len(numeric) == 1
		}
		if len(numeric) > 1 {
			if cond2, ok := sectionCondition(numeric[1]); !ok || cond2(n) {
				return numeric[1], math.Abs(n), false
			}
		}
		return numeric[len(numeric)-1], math.Abs(n), n < 0
	}

	switch {
	case n < 0 && len(numeric) >= 2:
		return numeric[1], -n, false
	case n == 0 && len(numeric) >= 3:
		return numeric[2], 0, false
	case n < 0:
		return numeric[0], -n, true
	}
	return numeric[0], n, false
}

func hasNumericTokens(s nfp.Section) bool {
	for _, tok := range s.Items {
		switch tok.TType {
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder,
			nfp.TokenTypeGeneral, nfp.TokenTypeDateTimes, nfp.TokenTypeElapsedDateTimes:
			return true
		}
	}
	return false
}

func sectionCondition(s nfp.Section) (func(float64) bool, bool) {
	for _, tok := range s.Items {
		if tok.TType != nfp.TokenTypeCondition || len(tok.Parts) < 2 {
			continue
		}
		op := tok.Parts[0].Token.TValue
		operand, err := strconv.ParseFloat(tok.Parts[1].Token.TValue, 64)
		if err != nil {
			return nil, false
		}
		return func(n float64) bool {
			switch op {
			case "<":
				return n < operand
			case "<=":
				return n <= operand
			case ">":
				return n > operand
			case ">=":
				return n >= operand
			case "<>":
				return n != operand
			}
			return n == operand
		}, true
	}
	return nil, false
}

func formatNumberSections(n float64, sections []nfp.Section, date1904 bool) string {
	if len(sections) == 0 {
		return FormatNumber(n)
	}
	section, abs, negative := pickSection(n, sections)

	isDate := false
	for _, tok := range section.Items {
		if tok.TType == nfp.TokenTypeDateTimes || tok.TType == nfp.TokenTypeElapsedDateTimes {
			isDate = true
			break
		}
	}
	var out string
	if isDate {
		out = renderDate(abs, section.Items, date1904)
	} else {
		out = renderNumber(abs, section.Items)
	}
	if negative && out != "" && strings.ContainsAny(out, "123456789") {
		return "-" + out
	}
	return out
}

// numberLayout is the shape of a numeric format section
type numberLayout struct {
	intPH     []byte // placeholders left of the decimal point: 0 # ?
	fracPH    []byte
	expPH     int
	expSign   string // "+" or "-" after E
	hasPoint  bool
	grouping  bool
	scale     int // trailing commas, each dividing by 1000
	percents  int
	fraction  bool
	denomPH   int
	denomText string
}

func scanLayout(items []nfp.Token) numberLayout {
	var lay numberLayout
	phase := 0 // 0 integer, 1 fraction, 2 exponent, 3 numerator, 4 denominator
	pendingCommas := 0
	for _, tok := range items {
		switch tok.TType {
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder:
			switch phase {
			case 0:
				if pendingCommas > 0 {
					lay.grouping = true
					pendingCommas = 0
				}
				lay.intPH = append(lay.intPH, tok.TValue...)
			case 1:
				lay.fracPH = append(lay.fracPH, tok.TValue...)
			case 2:
				lay.expPH += len(tok.TValue)
			case 4:
				lay.denomPH += len(tok.TValue)
			}
		case nfp.TokenTypeDenominator:
			lay.denomText = tok.TValue
		case nfp.TokenTypeThousandsSeparator:
			if phase == 0 && len(lay.intPH) > 0 {
				pendingCommas++
			}
		case nfp.TokenTypeDecimalPoint:
			if phase == 0 {
				phase = 1
				lay.hasPoint = true
			}
		case nfp.TokenTypeExponential:
			phase = 2
			lay.expSign = "-"
			if strings.HasSuffix(tok.TValue, "+") {
				lay.expSign = "+"
			}
		case nfp.TokenTypeFraction:
			lay.fraction = true
			phase = 4
		case nfp.TokenTypePercent:
			lay.percents++
		}
	}
	lay.scale = pendingCommas
	return lay
}

func renderNumber(n float64, items []nfp.Token) string {
	lay := scanLayout(items)
	for i := 0; i < lay.percents; i++ {
		n *= 100
	}
	for i := 0; i < lay.scale; i++ {
		n /= 1000
	}

	var number string
	switch {
	case lay.fraction:
		number = renderFraction(n, lay)
	case lay.expSign != "":
		number = renderScientific(n, lay)
	default:
		number = renderFixed(n, lay)
	}

	var sb strings.Builder
	placed := false
	for _, tok := range items {
		switch tok.TType {
		case nfp.TokenTypeGeneral:
			sb.WriteString(FormatNumber(n))
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder,
			nfp.TokenTypeDecimalPoint, nfp.TokenTypeExponential, nfp.TokenTypeFraction, nfp.TokenTypeDenominator:
			if !placed {
				sb.WriteString(number)
				placed = true
			}
		case nfp.TokenTypeThousandsSeparator:
			// absorbed by grouping or scaling
		case nfp.TokenTypeLiteral:
			sb.WriteString(tok.TValue)
		case nfp.TokenTypePercent:
			sb.WriteString("%")
		case nfp.TokenTypeCurrencyLanguage:
			for _, part := range tok.Parts {
				if part.Token.TType == nfp.TokenSubTypeCurrencyString {
					sb.WriteString(strings.TrimPrefix(part.Token.TValue, "$"))
				}
			}
		case nfp.TokenTypeAlignment:
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

// roundHalfAway rounds to digits decimals, half away from zero, after
// snapping to 15 significant digits so 2.675 rounds like its decimal
// spelling.
func roundHalfAway(x float64, digits int) float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return x
	}
	p := math.Pow10(digits)
	v := x * p
	if snapped, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 15, 64), 64); err == nil {
		v = snapped
	}
	return math.Round(v) / p
}

func renderFixed(n float64, lay numberLayout) string {
	rounded := roundHalfAway(n, len(lay.fracPH))
	text := strconv.FormatFloat(rounded, 'f', len(lay.fracPH), 64)
	intDigits, fracDigits, _ := strings.Cut(text, ".")
	if intDigits == "0" {
		intDigits = ""
	}

	minInt := 0
	for _, ph := range lay.intPH {
		if ph == '0' {
			minInt++
		}
	}
	var intPart string
	if lay.grouping {
		for len(intDigits) < minInt {
			intDigits = "0" + intDigits
		}
		intPart = groupThousands(intDigits)
	} else {
		intPart = fillInteger(intDigits, lay.intPH)
	}

	if !lay.hasPoint {
		return intPart
	}
	return intPart + "." + fillFraction(fracDigits, lay.fracPH)
}

// fillInteger places digits into placeholders right to left. surplus digits
// go to the leftmost placeholder.
func fillInteger(digits string, ph []byte) string {
	if len(ph) == 0 {
		return digits
	}
	out := make([]string, len(ph))
	d := len(digits) - 1
	for i := len(ph) - 1; i >= 0; i-- {
		if d >= 0 {
			out[i] = string(digits[d])
			d--
			continue
		}
		switch ph[i] {
		case '0':
			out[i] = "0"
		case '?':
			out[i] = " "
		}
	}
	if d >= 0 {
		out[0] = digits[:d+1] + out[0]
	}
	return strings.Join(out, "")
}

func fillFraction(digits string, ph []byte) string {
	out := []byte(digits)
	// trailing optional zeros disappear
	end := len(out)
	for end > 0 && out[end-1] == '0' && ph[end-1] != '0' {
		if ph[end-1] == '?' {
			out[end-1] = ' '
			end--
			continue
		}
		end--
		out = out[:end]
	}
	return string(out)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	head := len(digits) % 3
	if head > 0 {
		sb.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

func renderScientific(n float64, lay numberLayout) string {
	intCount := len(lay.intPH)
	if intCount == 0 {
		intCount = 1
	}
	exp := 0
	if n != 0 {
		exp = int(math.Floor(math.Log10(n))) - (intCount - 1)
	}
	mant := roundHalfAway(n/math.Pow10(exp), len(lay.fracPH))
	if mant >= math.Pow10(intCount) {
		exp++
		mant = roundHalfAway(n/math.Pow10(exp), len(lay.fracPH))
	}
	body := renderFixed(mant, numberLayout{intPH: lay.intPH, fracPH: lay.fracPH, hasPoint: lay.hasPoint})

	sign := ""
	if exp < 0 {
		sign = "-"
	} else if lay.expSign == "+" {
		sign = "+"
	}
	expDigits := strconv.Itoa(absInt(exp))
	for len(expDigits) < lay.expPH {
		expDigits = "0" + expDigits
	}
	return body + "E" + sign + expDigits
}

func renderFraction(n float64, lay numberLayout) string {
	whole := math.Floor(n)
	frac := n - whole
	showWhole := len(lay.intPH) > 0
	if !showWhole {
		frac = n
		whole = 0
	}

	var num, den int
	if lay.denomText != "" {
		den, _ = strconv.Atoi(lay.denomText)
		if den <= 0 {
			den = 1
		}
		num = int(math.Round(frac * float64(den)))
	} else {
		maxDen := int(math.Pow10(max(lay.denomPH, 1))) - 1
		num, den = bestFraction(frac, maxDen)
	}
	if num == den && showWhole {
		whole++
		num = 0
	}

	var sb strings.Builder
	if showWhole && (whole != 0 || num == 0) {
		sb.WriteString(strconv.FormatFloat(whole, 'f', 0, 64))
	}
	if num != 0 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d/%d", num, den)
	}
	if sb.Len() == 0 {
		return "0"
	}
	return sb.String()
}

// bestFraction finds the closest num/den with den <= maxDen using a
// Stern-Brocot walk.
func bestFraction(x float64, maxDen int) (int, int) {
	bestNum, bestDen := int(math.Round(x)), 1
	bestErr := math.Abs(x - float64(bestNum))
	for den := 2; den <= maxDen; den++ {
		num := int(math.Round(x * float64(den)))
		if e := math.Abs(x - float64(num)/float64(den)); e < bestErr-1e-12 {
			bestNum, bestDen, bestErr = num, den, e
		}
	}
	return bestNum, bestDen
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func renderDate(serial float64, items []nfp.Token, date1904 bool) string {
	year, month, day := serialYMD(serial, date1904)
	hour, minute, second := clockParts(serial)
	twelveHour := false
	for _, tok := range items {
		if tok.TType == nfp.TokenTypeDateTimes && strings.Contains(tok.TValue, "/") {
			twelveHour = true
		}
	}

	// a run of m means minutes right after hours or right before seconds
	isMinute := make([]bool, len(items))
	lastDate := ""
	for i, tok := range items {
		if tok.TType != nfp.TokenTypeDateTimes {
			continue
		}
		lower := strings.ToLower(tok.TValue)
		if strings.HasPrefix(lower, "m") && len(lower) <= 2 {
			if strings.HasPrefix(lastDate, "h") {
				isMinute[i] = true
			} else {
				for _, next := range items[i+1:] {
					if next.TType == nfp.TokenTypeDateTimes {
						isMinute[i] = strings.HasPrefix(strings.ToLower(next.TValue), "s")
						break
					}
				}
			}
		}
		lastDate = lower
	}

	var sb strings.Builder
	afterSeconds := false
	for i, tok := range items {
		switch tok.TType {
		case nfp.TokenTypeDateTimes:
			lower := strings.ToLower(tok.TValue)
			afterSeconds = strings.HasPrefix(lower, "s")
			switch {
			case strings.HasPrefix(lower, "y"):
				if len(lower) <= 2 {
					fmt.Fprintf(&sb, "%02d", year%100)
				} else {
					fmt.Fprintf(&sb, "%04d", year)
				}
			case strings.HasPrefix(lower, "m") && isMinute[i]:
				if len(lower) == 2 {
					fmt.Fprintf(&sb, "%02d", minute)
				} else {
					sb.WriteString(strconv.Itoa(minute))
				}
			case strings.HasPrefix(lower, "m"):
				switch len(lower) {
				case 1:
					sb.WriteString(strconv.Itoa(month))
				case 2:
					fmt.Fprintf(&sb, "%02d", month)
				case 3:
					sb.WriteString(monthNames[month-1][:3])
				case 5:
					sb.WriteString(monthNames[month-1][:1])
				default:
					sb.WriteString(monthNames[month-1])
				}
			case strings.HasPrefix(lower, "d"):
				switch len(lower) {
				case 1:
					sb.WriteString(strconv.Itoa(day))
				case 2:
					fmt.Fprintf(&sb, "%02d", day)
				case 3:
					sb.WriteString(dayNames[weekdayOf(serial, date1904)][:3])
				default:
					sb.WriteString(dayNames[weekdayOf(serial, date1904)])
				}
			case strings.HasPrefix(lower, "h"):
				h := hour
				if twelveHour {
					h = hour % 12
					if h == 0 {
						h = 12
					}
				}
				if len(lower) >= 2 {
					fmt.Fprintf(&sb, "%02d", h)
				} else {
					sb.WriteString(strconv.Itoa(h))
				}
			case strings.HasPrefix(lower, "s"):
				if len(lower) >= 2 {
					fmt.Fprintf(&sb, "%02d", second)
				} else {
					sb.WriteString(strconv.Itoa(second))
				}
			case lower == "am/pm":
				if hour < 12 {
					sb.WriteString("AM")
				} else {
					sb.WriteString("PM")
				}
			case lower == "a/p":
				if hour < 12 {
					sb.WriteString("A")
				} else {
					sb.WriteString("P")
				}
			default:
				sb.WriteString(tok.TValue)
			}
		case nfp.TokenTypeElapsedDateTimes:
			total := serial * secondsPerDay
			switch strings.ToLower(tok.TValue)[0] {
			case 'h':
				sb.WriteString(strconv.Itoa(int(math.Floor(total / 3600))))
			case 'm':
				sb.WriteString(strconv.Itoa(int(math.Floor(total / 60))))
			default:
				sb.WriteString(strconv.Itoa(int(math.Round(total))))
			}
		case nfp.TokenTypeDecimalPoint:
			sb.WriteString(".")
		case nfp.TokenTypeZeroPlaceHolder:
			if afterSeconds {
				frac := serial*secondsPerDay - math.Floor(serial*secondsPerDay)
				digits := strconv.FormatFloat(frac, 'f', len(tok.TValue), 64)
				_, decimals, _ := strings.Cut(digits, ".")
				sb.WriteString(decimals)
			} else {
				sb.WriteString(tok.TValue)
			}
		case nfp.TokenTypeLiteral:
			sb.WriteString(tok.TValue)
		}
	}
	return sb.String()
}
