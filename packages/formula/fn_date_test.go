package formula

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateConstruction(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"DATE(2024,3,15)", 45366},
		{"DATE(2024,14,1)", 45689},
		{"DATE(2024,3,0)", 45351},
		{"DATE(1900,2,28)", 59},
		{"DATE(1900,3,1)", 61},
		{"DATE(124,3,15)", 45366},
		{"DATE(-1,1,1)", ErrorCodeNum},
		{"DATE(10000,1,1)", ErrorCodeNum},
		{"TIME(12,30,0)", 0.5208333333333334},
		{"TIME(25,0,0)", 1.0 / 24},
		{"TIME(-1,0,0)", ErrorCodeNum},
		{`DATEVALUE("2024-03-15")`, 45366},
		{`DATEVALUE("3/15/2024")`, 45366},
		{`DATEVALUE("not a date")`, ErrorCodeValue},
		{`TIMEVALUE("6:00 PM")`, 0.75},
		{`TIMEVALUE("2024-03-15 06:00")`, 0.25},
	})
}

func TestDateParts(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"YEAR(45366)", 2024},
		{"MONTH(45366)", 3},
		{"DAY(45366)", 15},
		{`YEAR("2024-03-15")`, 2024},
		{"MONTH(60)", 2},
		{"DAY(60)", 29},
		{"DAY(0)", 0},
		{"YEAR(-1)", ErrorCodeNum},
		{`YEAR("soon")`, ErrorCodeValue},
		{"HOUR(0.75)", 18},
		{`MINUTE("12:45")`, 45},
		{"SECOND(TIME(1,2,3))", 3},
		{"ISOWEEKNUM(45366)", 11},
	})
}

func TestDateClock(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"NOW()", 45366.5625},
		{"TODAY()", 45366},
		{"YEAR(TODAY())", testNow.Year()},
	})
}

func TestDateArithmetic(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`DAYS("2024-03-15","2024-01-01")`, 74},
		{"DAYS360(DATE(2024,1,31),DATE(2024,3,31))", 60},
		{"DAYS360(DATE(2024,2,29),DATE(2024,3,31))", 30},
		{"DAYS360(DATE(2024,1,31),DATE(2024,3,31),TRUE)", 60},
		{"EDATE(DATE(2024,1,31),1)", 45351},
		{"EDATE(DATE(2024,3,15),-12)", 45000},
		{"EOMONTH(DATE(2024,1,15),0)", 45322},
		{"EOMONTH(DATE(2024,1,15),-1)", 45291},
		{"YEARFRAC(DATE(2024,1,1),DATE(2024,7,1))", 0.5},
		{"YEARFRAC(DATE(2024,1,1),DATE(2024,7,1),3)", 182.0 / 365},
		{"YEARFRAC(DATE(2024,1,1),DATE(2024,7,1),1)", 182.0 / 366},
		{"YEARFRAC(DATE(2024,1,1),DATE(2024,7,1),5)", ErrorCodeNum},
		{`DATEDIF(DATE(2020,1,15),DATE(2024,3,10),"Y")`, 4},
		{`DATEDIF(DATE(2020,1,15),DATE(2024,3,10),"M")`, 49},
		{`DATEDIF(DATE(2020,1,15),DATE(2024,3,10),"YM")`, 1},
		{`DATEDIF(DATE(2020,1,15),DATE(2024,3,10),"MD")`, 24},
		{`DATEDIF(DATE(2020,1,15),DATE(2024,3,10),"YD")`, 55},
		{`DATEDIF(DATE(2024,3,10),DATE(2020,1,15),"Y")`, ErrorCodeNum},
		{`DATEDIF(DATE(2020,1,15),DATE(2024,3,10),"X")`, ErrorCodeNum},
	})
}

func TestDateWeeks(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"WEEKDAY(DATE(2024,3,15))", 6},
		{"WEEKDAY(DATE(2024,3,15),2)", 5},
		{"WEEKDAY(DATE(2024,3,15),3)", 4},
		{"WEEKDAY(DATE(2024,3,15),16)", 7},
		{"WEEKDAY(DATE(2024,3,15),4)", ErrorCodeNum},
		{"WEEKNUM(DATE(2024,3,15))", 11},
		{"WEEKNUM(DATE(2024,1,1))", 1},
		{"WEEKNUM(DATE(2024,3,15),21)", 11},
	})
}

func TestDateWorkdays(t *testing.T) {
	book := newTestBook(map[string]any{"A1": 45366})
	march1, march31 := "DATE(2024,3,1)", "DATE(2024,3,31)"
	checkFormulas(t, book, []formulaCase{
		{"NETWORKDAYS(" + march1 + "," + march31 + ")", 21},
		{"NETWORKDAYS(" + march1 + "," + march31 + ",A1)", 20},
		{"NETWORKDAYS(" + march31 + "," + march1 + ")", -21},
		{"NETWORKDAYS.INTL(" + march1 + "," + march31 + ",11)", 26},
		{"NETWORKDAYS.INTL(" + march1 + "," + march31 + ",\"0000011\")", 21},
		{"NETWORKDAYS.INTL(" + march1 + "," + march31 + ",\"1111111\")", ErrorCodeValue},
		{"NETWORKDAYS.INTL(" + march1 + "," + march31 + ",99)", ErrorCodeNum},
		{"WORKDAY(DATE(2024,3,15),1)", 45369},
		{"WORKDAY(DATE(2024,3,15),-5)", 45359},
		{"WORKDAY(DATE(2024,3,14),1,A1)", 45369},
		{"WORKDAY.INTL(DATE(2024,3,15),1,11)", 45367},
	})
}

func TestSerialConversions(t *testing.T) {
	cases := []struct {
		serial   float64
		date1904 bool
		want     time.Time
	}{
		{1, false, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{59, false, time.Date(1900, 2, 28, 0, 0, 0, 0, time.UTC)},
		{61, false, time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)},
		{45366.5625, false, time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC)},
		{0, true, time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)},
		{43904, true, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		got := SerialToTime(tc.serial, tc.date1904)
		assert.True(t, tc.want.Equal(got), "SerialToTime(%v, %v) = %v, want %v", tc.serial, tc.date1904, got, tc.want)
		assert.InDelta(t, tc.serial, TimeToSerial(tc.want, tc.date1904), 1e-9)
	}
}
