package formula

import (
	"math"
	"strings"
	"time"
)

// serial date epochs. the 1900 system counts 1900-02-29 as a real day, so
// serials from 61 onward are one day ahead of a plain day count from
// 1899-12-31.
var (
	epoch1900 = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
)

const secondsPerDay = 86400

// maxSerial is 9999-12-31 in the 1900 system.
const maxSerial = 2958465

// TimeToSerial converts a wall-clock time to a serial date number. the
// location is ignored; only the calendar fields count.
func TimeToSerial(t time.Time, date1904 bool) float64 {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	var serial float64
	if date1904 {
		serial = math.Round(day.Sub(epoch1904).Hours() / 24)
	} else {
		serial = math.Round(day.Sub(epoch1900).Hours() / 24)
		if serial < 61 {
			serial--
		}
	}
	secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	return serial + secs/secondsPerDay
}

// SerialToTime converts a serial date number to a UTC time. serial 60 in
// the 1900 system is the phantom 1900-02-29, which maps to 1900-02-28.
func SerialToTime(serial float64, date1904 bool) time.Time {
	days := math.Floor(serial)
	secs := math.Round((serial - days) * secondsPerDay)
	if secs >= secondsPerDay {
		days++
		secs -= secondsPerDay
	}
	var base time.Time
	switch {
	case date1904:
		base = epoch1904
	case days < 60:
		base = epoch1900.AddDate(0, 0, 1)
	default:
		base = epoch1900
	}
	return base.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
}

// serialYMD returns the calendar date of a serial, reproducing the
// spreadsheet quirks 1900-01-00 (serial 0) and 1900-02-29 (serial 60).
func serialYMD(serial float64, date1904 bool) (year, month, day int) {
	days := math.Floor(serial)
	if !date1904 {
		switch {
		case days == 0:
			return 1900, 1, 0
		case days == 60:
			return 1900, 2, 29
		}
	}
	t := SerialToTime(days, date1904)
	return t.Year(), int(t.Month()), t.Day()
}

// dateSerial builds a serial from possibly out-of-range parts; months and
// days overflow into the next unit as DATE does. ok is false outside the
// representable range.
func dateSerial(year, month, day int, date1904 bool) (float64, bool) {
	if year >= 0 && year < 1900 && !date1904 {
		year += 1900
	}
	if date1904 && year >= 0 && year < 1904 {
		year += 1900
	}
	if year < 0 || year > 9999 {
		return 0, false
	}
	t := time.Date(year, time.Month(1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, month-1, day-1)
	serial := TimeToSerial(t, date1904)
	if serial < 0 || serial > maxSerial {
		return 0, false
	}
	return serial, true
}

// timeFraction returns the fraction of a day for hour, minute and second,
// which may overflow as TIME allows.
func timeFraction(hour, minute, second float64) float64 {
	total := hour*3600 + minute*60 + second
	return math.Mod(total, secondsPerDay) / secondsPerDay
}

// clockParts splits the fractional part of a serial into hour, minute and
// second, rounding to the nearest second.
func clockParts(serial float64) (hour, minute, second int) {
	frac := serial - math.Floor(serial)
	secs := int(math.Round(frac * secondsPerDay))
	if secs >= secondsPerDay {
		secs -= secondsPerDay
	}
	return secs / 3600, secs % 3600 / 60, secs % 60
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"1-2-2006",
	"2-Jan-2006",
	"2-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2-Jan",
	"Jan-2006",
	"January 2006",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"15:04:05.999999999",
	"3:04 PM",
	"3:04:05 PM",
	"3:04PM",
	"3:04:05PM",
	"3 PM",
	"3PM",
}

// parseDateTimeText parses the date and time spellings DATEVALUE and
// TIMEVALUE accept. time-only text yields a fraction of a day.
func parseDateTimeText(s string, date1904 bool) (float64, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return 0, false
	}
	if frac, ok := parseTimeText(s); ok {
		return frac, true
	}
	if t, ok := parseDateText(s); ok {
		return TimeToSerial(t, date1904), true
	}
	// date followed by a time, split at any space
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			continue
		}
		d, ok := parseDateText(s[:i])
		if !ok {
			continue
		}
		if frac, ok := parseTimeText(s[i+1:]); ok {
			return TimeToSerial(d, date1904) + frac, true
		}
	}
	// ISO timestamps with a T separator
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeToSerial(t, date1904), true
		}
	}
	return 0, false
}

func parseTimeText(s string) (float64, bool) {
	upper := strings.ToUpper(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return timeFraction(float64(t.Hour()), float64(t.Minute()), float64(t.Second())+float64(t.Nanosecond())/1e9), true
		}
	}
	return 0, false
}

func parseDateText(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "06") {
			// day and month only: the current year
			t = time.Date(time.Now().Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t, true
	}
	return time.Time{}, false
}

// weekdayOf returns 0 for Sunday through 6 for Saturday.
func weekdayOf(serial float64, date1904 bool) int {
	days := int(math.Floor(serial))
	if date1904 {
		days += 1462
	}
	// serial 1 (1900-01-01) was a Sunday in the spreadsheet calendar
	return ((days-1)%7 + 7) % 7
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
