package formula

import (
	"math"
	"strings"
)

func dateFunctions() []FunctionSpec {
	return []FunctionSpec{
		fn("DATE", CategoryDate, 3, 3, func(c *Call) Value {
			y, m, d := c.Num(0), c.Num(1), c.Num(2)
			if c.Failed() {
				return c.Failure()
			}
			serial, ok := dateSerial(int(math.Floor(y)), int(math.Floor(m)), int(math.Floor(d)), c.Context().Date1904())
			if !ok {
				return Err(ErrorCodeNum)
			}
			return Number(serial)
		}),
		fn("TIME", CategoryDate, 3, 3, func(c *Call) Value {
			h, m, s := math.Trunc(c.Num(0)), math.Trunc(c.Num(1)), math.Trunc(c.Num(2))
			if c.Failed() {
				return c.Failure()
			}
			if h*3600+m*60+s < 0 || h > 32767 || m > 32767 || s > 32767 {
				return Err(ErrorCodeNum)
			}
			return Number(timeFraction(h, m, s))
		}),
		fn("DATEVALUE", CategoryDate, 1, 1, func(c *Call) Value {
			return mapValues(c.Arg(0), func(v Value) Value {
				if v.Type == ValueTypeError {
					return v
				}
				if v.Type != ValueTypeText {
					return Err(ErrorCodeValue)
				}
				serial, ok := parseDateTimeText(v.Str, c.Context().Date1904())
				if !ok || serial < 1 {
					return Err(ErrorCodeValue)
				}
				return Number(math.Floor(serial))
			})
		}),
		fn("TIMEVALUE", CategoryDate, 1, 1, func(c *Call) Value {
			return mapValues(c.Arg(0), func(v Value) Value {
				if v.Type == ValueTypeError {
					return v
				}
				if v.Type != ValueTypeText {
					return Err(ErrorCodeValue)
				}
				serial, ok := parseDateTimeText(v.Str, c.Context().Date1904())
				if !ok {
					return Err(ErrorCodeValue)
				}
				return Number(serial - math.Floor(serial))
			})
		}),
		datePart("YEAR", func(c *Call, serial float64) Value {
			y, _, _ := serialYMD(serial, c.Context().Date1904())
			return Number(float64(y))
		}),
		datePart("MONTH", func(c *Call, serial float64) Value {
			_, m, _ := serialYMD(serial, c.Context().Date1904())
			return Number(float64(m))
		}),
		datePart("DAY", func(c *Call, serial float64) Value {
			_, _, d := serialYMD(serial, c.Context().Date1904())
			return Number(float64(d))
		}),
		datePart("HOUR", func(c *Call, serial float64) Value {
			h, _, _ := clockParts(serial)
			return Number(float64(h))
		}),
		datePart("MINUTE", func(c *Call, serial float64) Value {
			_, m, _ := clockParts(serial)
			return Number(float64(m))
		}),
		datePart("SECOND", func(c *Call, serial float64) Value {
			_, _, s := clockParts(serial)
			return Number(float64(s))
		}),
		datePart("ISOWEEKNUM", func(c *Call, serial float64) Value {
			_, week := SerialToTime(serial, c.Context().Date1904()).ISOWeek()
			return Number(float64(week))
		}),
		volatile(fn("NOW", CategoryDate, 0, 0, func(c *Call) Value {
			return Number(TimeToSerial(c.Context().Now(), c.Context().Date1904()))
		})),
		volatile(fn("TODAY", CategoryDate, 0, 0, func(c *Call) Value {
			return Number(math.Floor(TimeToSerial(c.Context().Now(), c.Context().Date1904())))
		})),
		fn("DAYS", CategoryDate, 2, 2, func(c *Call) Value {
			end, start := serialArg(c, 0), serialArg(c, 1)
			if c.Failed() {
				return c.Failure()
			}
			return Number(math.Floor(end) - math.Floor(start))
		}),
		fn("DAYS360", CategoryDate, 2, 3, func(c *Call) Value {
			start, end := serialArg(c, 0), serialArg(c, 1)
			european := c.BoolOr(2, false)
			if c.Failed() {
				return c.Failure()
			}
			return Number(days360(start, end, european, c.Context().Date1904()))
		}),
		fn("EDATE", CategoryDate, 2, 2, func(c *Call) Value {
			start, months := serialArg(c, 0), c.Num(1)
			if c.Failed() {
				return c.Failure()
			}
			return addMonths(start, truncInt(months), false, c.Context().Date1904())
		}),
		fn("EOMONTH", CategoryDate, 2, 2, func(c *Call) Value {
			start, months := serialArg(c, 0), c.Num(1)
			if c.Failed() {
				return c.Failure()
			}
			return addMonths(start, truncInt(months), true, c.Context().Date1904())
		}),
		fn("WEEKDAY", CategoryDate, 1, 2, fnWeekday),
		fn("WEEKNUM", CategoryDate, 1, 2, fnWeeknum),
		fn("NETWORKDAYS", CategoryDate, 2, 3, func(c *Call) Value { return networkDays(c, false) }),
		fn("NETWORKDAYS.INTL", CategoryDate, 2, 4, func(c *Call) Value { return networkDays(c, true) }),
		fn("WORKDAY", CategoryDate, 2, 3, func(c *Call) Value { return workday(c, false) }),
		fn("WORKDAY.INTL", CategoryDate, 2, 4, func(c *Call) Value { return workday(c, true) }),
		fn("YEARFRAC", CategoryDate, 2, 3, fnYearFrac),
		fn("DATEDIF", CategoryDate, 3, 3, fnDateDif),
	}
}

// serialArg reads argument i as a date serial, accepting date text.
// negative serials are #NUM!.
func serialArg(c *Call, i int) float64 {
	v := c.Scalar(i)
	if c.Failed() {
		return 0
	}
	n, ok := valueToSerial(v, c.Context().Date1904())
	if !ok {
		c.fail(ErrorCodeValue)
		return 0
	}
	if n < 0 {
		c.fail(ErrorCodeNum)
		return 0
	}
	return n
}

func valueToSerial(v Value, date1904 bool) (float64, bool) {
	if v.Type == ValueTypeText {
		if n, ok := ParseNumberText(v.Str); ok {
			return n, true
		}
		return parseDateTimeText(v.Str, date1904)
	}
	n, code := ToNumber(v)
	return n, code == noError
}

func datePart(name string, f func(c *Call, serial float64) Value) FunctionSpec {
	return fn(name, CategoryDate, 1, 1, func(c *Call) Value {
		return mapValues(c.Arg(0), func(v Value) Value {
			if v.Type == ValueTypeError {
				return v
			}
			serial, ok := valueToSerial(v, c.Context().Date1904())
			if !ok {
				return Err(ErrorCodeValue)
			}
			if serial < 0 || serial > maxSerial+1 {
				return Err(ErrorCodeNum)
			}
			return f(c, serial)
		})
	})
}

func isLastDayOfFeb(y, m, d int) bool {
	return m == 2 && d >= daysInMonth(y, 2)
}

func days360(start, end float64, european, date1904 bool) float64 {
	sy, sm, sd := serialYMD(start, date1904)
	ey, em, ed := serialYMD(end, date1904)
	if european {
		sd = min(sd, 30)
		ed = min(ed, 30)
	} else {
		if isLastDayOfFeb(sy, sm, sd) {
			if isLastDayOfFeb(ey, em, ed) {
				ed = 30
			}
			sd = 30
		}
		if ed == 31 && sd >= 30 {
			ed = 30
		}
		sd = min(sd, 30)
	}
	return float64((ey-sy)*360 + (em-sm)*30 + (ed - sd))
}

func addMonths(start float64, months int, endOfMonth bool, date1904 bool) Value {
	y, m, d := serialYMD(start, date1904)
	total := y*12 + (m - 1) + months
	ty, tm := total/12, total%12+1
	if total < 0 {
		return Err(ErrorCodeNum)
	}
	last := daysInMonth(ty, tm)
	if endOfMonth || d > last {
		d = last
	}
	serial, ok := dateSerial(ty, tm, d, date1904)
	if !ok || ty < 1900 {
		return Err(ErrorCodeNum)
	}
	return Number(serial)
}

func fnWeekday(c *Call) Value {
	serial := serialArg(c, 0)
	kind := c.IntOr(1, 1)
	if c.Failed() {
		return c.Failure()
	}
	w := weekdayOf(serial, c.Context().Date1904())
	switch {
	case kind == 1:
		return Number(float64(w + 1))
	case kind == 2:
		return Number(float64((w+6)%7 + 1))
	case kind == 3:
		return Number(float64((w + 6) % 7))
	case kind >= 11 && kind <= 17:
		first := (kind - 10) % 7
		return Number(float64((w-first+7)%7 + 1))
	}
	return Err(ErrorCodeNum)
}

func fnWeeknum(c *Call) Value {
	serial := serialArg(c, 0)
	kind := c.IntOr(1, 1)
	if c.Failed() {
		return c.Failure()
	}
	date1904 := c.Context().Date1904()
	var first int
	switch {
	case kind == 1 || kind == 17:
		first = 0
	case kind == 2 || kind == 11:
		first = 1
	case kind >= 12 && kind <= 16:
		first = kind - 10
	case kind == 21:
		_, week := SerialToTime(serial, date1904).ISOWeek()
		return Number(float64(week))
	default:
		return Err(ErrorCodeNum)
	}
	y, _, _ := serialYMD(serial, date1904)
	jan1, ok := dateSerial(y, 1, 1, date1904)
	if !ok {
		return Err(ErrorCodeNum)
	}
	offset := (weekdayOf(jan1, date1904) - first + 7) % 7
	return Number(math.Floor((math.Floor(serial)-jan1+float64(offset))/7) + 1)
}

// weekendMask returns which weekdays (0 = Sunday) are weekend days for a
// NETWORKDAYS.INTL / WORKDAY.INTL weekend argument.
func weekendMask(c *Call, i int) ([7]bool, ErrorCode) {
	var mask [7]bool
	if c.IsMissing(i) {
		mask[0], mask[6] = true, true
		return mask, noError
	}
	v := c.Scalar(i)
	if v.Type == ValueTypeError {
		return mask, v.Err
	}
	if v.Type == ValueTypeText {
		s := v.Str
		if len(s) != 7 || strings.Trim(s, "01") != "" || s == "1111111" {
			return mask, ErrorCodeValue
		}
		for k := 0; k < 7; k++ {
			mask[(k+1)%7] = s[k] == '1'
		}
		return mask, noError
	}
	n, code := ToNumber(v)
	if code != noError {
		return mask, code
	}
	switch k := int(n); {
	case k >= 1 && k <= 7:
		mask[(k+5)%7], mask[(k+6)%7] = true, true
	case k >= 11 && k <= 17:
		mask[k-11] = true
	default:
		return mask, ErrorCodeNum
	}
	return mask, noError
}

func holidaySet(c *Call, i int) (map[float64]bool, ErrorCode) {
	set := make(map[float64]bool)
	if c.IsMissing(i) {
		return set, noError
	}
	for _, v := range c.Arg(i).Flatten() {
		switch v.Type {
		case ValueTypeBlank:
			continue
		case ValueTypeError:
			return nil, v.Err
		}
		n, ok := valueToSerial(v, c.Context().Date1904())
		if !ok {
			return nil, ErrorCodeValue
		}
		set[math.Floor(n)] = true
	}
	return set, noError
}

func workCalendar(c *Call, intl bool, weekendArg, holidayArg int) ([7]bool, map[float64]bool, ErrorCode) {
	var mask [7]bool
	var code ErrorCode
	if intl {
		mask, code = weekendMask(c, weekendArg)
	} else {
		mask[0], mask[6] = true, true
		holidayArg = weekendArg
	}
	if code != noError {
		return mask, nil, code
	}
	holidays, code := holidaySet(c, holidayArg)
	return mask, holidays, code
}

func networkDays(c *Call, intl bool) Value {
	start, end := math.Floor(serialArg(c, 0)), math.Floor(serialArg(c, 1))
	if c.Failed() {
		return c.Failure()
	}
	mask, holidays, code := workCalendar(c, intl, 2, 3)
	if code != noError {
		return Err(code)
	}
	sign := 1.0
	if start > end {
		start, end = end, start
		sign = -1
	}
	date1904 := c.Context().Date1904()
	n := 0.0
	for d := start; d <= end; d++ {
		if !mask[weekdayOf(d, date1904)] && !holidays[d] {
			n++
		}
	}
	return Number(sign * n)
}

func workday(c *Call, intl bool) Value {
	start := math.Floor(serialArg(c, 0))
	days := truncInt(c.Num(1))
	if c.Failed() {
		return c.Failure()
	}
	mask, holidays, code := workCalendar(c, intl, 2, 3)
	if code != noError {
		return Err(code)
	}
	step := 1.0
	if days < 0 {
		step = -1
		days = -days
	}
	date1904 := c.Context().Date1904()
	d := start
	for days > 0 {
		d += step
		if d < 0 || d > maxSerial {
			return Err(ErrorCodeNum)
		}
		if !mask[weekdayOf(d, date1904)] && !holidays[d] {
			days--
		}
	}
	return Number(d)
}

func fnYearFrac(c *Call) Value {
	start, end := math.Floor(serialArg(c, 0)), math.Floor(serialArg(c, 1))
	basis := c.IntOr(2, 0)
	if c.Failed() {
		return c.Failure()
	}
	if basis < 0 || basis > 4 {
		return Err(ErrorCodeNum)
	}
	if start > end {
		start, end = end, start
	}
	return yearFrac(start, end, basis, c.Context().Date1904())
}

func yearFrac(start, end float64, basis int, date1904 bool) Value {
	switch basis {
	case 0:
		return Number(days360(start, end, false, date1904) / 360)
	case 2:
		return Number((end - start) / 360)
	case 3:
		return Number((end - start) / 365)
	case 4:
		return Number(days360(start, end, true, date1904) / 360)
	}

	y1, m1, d1 := serialYMD(start, date1904)
	y2, m2, d2 := serialYMD(end, date1904)
	days := end - start
	withinYear := y1 == y2 || (y2 == y1+1 && (m1 > m2 || (m1 == m2 && d1 >= d2)))
	if withinYear {
		denom := 365.0
		switch {
		case y1 == y2 && isLeapYear(y1):
			denom = 366
		case feb29Between(y1, y2, start, end, date1904):
			denom = 366
		}
		return Number(days / denom)
	}
	first, _ := dateSerial(y1, 1, 1, date1904)
	last, _ := dateSerial(y2+1, 1, 1, date1904)
	avg := (last - first) / float64(y2-y1+1)
	return Number(days / avg)
}

func feb29Between(y1, y2 int, start, end float64, date1904 bool) bool {
	for y := y1; y <= y2; y++ {
		if !isLeapYear(y) {
			continue
		}
		leap, ok := dateSerial(y, 2, 29, date1904)
		if ok && leap >= start && leap <= end {
			return true
		}
	}
	return false
}

func fnDateDif(c *Call) Value {
	start, end := math.Floor(serialArg(c, 0)), math.Floor(serialArg(c, 1))
	unit := strings.ToUpper(c.Str(2))
	if c.Failed() {
		return c.Failure()
	}
	if start > end {
		return Err(ErrorCodeNum)
	}
	date1904 := c.Context().Date1904()
	y1, m1, d1 := serialYMD(start, date1904)
	y2, m2, d2 := serialYMD(end, date1904)
	months := (y2-y1)*12 + m2 - m1
	if d2 < d1 {
		months--
	}
	switch unit {
	case "Y":
		return Number(float64(months / 12))
	case "M":
		return Number(float64(months))
	case "D":
		return Number(end - start)
	case "MD":
		if d2 >= d1 {
			return Number(float64(d2 - d1))
		}
		py, pm := y2, m2-1
		if pm == 0 {
			py, pm = y2-1, 12
		}
		return Number(float64(daysInMonth(py, pm) - d1 + d2))
	case "YM":
		return Number(float64(months % 12))
	case "YD":
		anniv, _ := dateSerial(y2, m1, d1, date1904)
		if anniv > end {
			anniv, _ = dateSerial(y2-1, m1, d1, date1904)
		}
		return Number(end - anniv)
	}
	return Err(ErrorCodeNum)
}
