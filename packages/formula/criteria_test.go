package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCriterionMatches(t *testing.T) {
	cases := []struct {
		criteria Value
		cell     Value
		want     bool
	}{
		{Text(">5"), Number(6), true},
		{Text(">5"), Number(5), false},
		{Text(">=5"), Number(5), true},
		{Text("<>5"), Number(4), true},
		{Text("<>5"), Text("x"), true},
		{Text(">5"), Text("9"), false},
		{Number(5), Text("5"), true},
		{Number(5), Number(5), true},
		{Text("5"), Number(5), true},
		{Text("apple"), Text("APPLE"), true},
		{Text("a*"), Text("apricot"), true},
		{Text("a?"), Text("abc"), false},
		{Text("~*"), Text("*"), true},
		{Text("~*"), Text("a"), false},
		{Text("<b"), Text("apple"), true},
		{Text("<b"), Number(1), false},
		{Text(""), Blank(), true},
		{Text(""), Text(""), true},
		{Text(""), Number(0), false},
		{Text("="), Blank(), true},
		{Text("="), Text(""), false},
		{Text("<>"), Text("x"), true},
		{Text("<>"), Blank(), false},
		{Text("TRUE"), Bool(true), true},
		{Text("true"), Number(1), false},
		{Text("#N/A"), Err(ErrorCodeNA), true},
		{Text("<>#N/A"), Number(1), true},
		{Text(">=2024-01-01"), Number(45366), true},
		{Blank(), Number(0), true},
	}

	for _, tc := range cases {
		cr := parseCriterion(tc.criteria, false)
		assert.Equal(t, tc.want, cr.matches(tc.cell), "criteria %s against %s", tc.criteria, tc.cell)
	}
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, text string
		want          bool
	}{
		{"*", "", true},
		{"*", "anything", true},
		{"a*c", "abbbc", true},
		{"a*c", "abbbd", false},
		{"*.txt", "notes.TXT", true},
		{"?", "", false},
		{"???", "abc", true},
		{"a~?", "a?", true},
		{"a~?", "ab", false},
		{"*a*b*", "xxaxxbxx", true},
		{"日*", "日本", true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, wildcardMatch(tc.pattern, tc.text), "%q ~ %q", tc.pattern, tc.text)
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		value  Value
		format string
		want   string
	}{
		{Number(1234.567), "#,##0.00", "1,234.57"},
		{Number(3.14159), "0.00", "3.14"},
		{Number(0.256), "0%", "26%"},
		{Number(1234.5), "0.0E+00", "1.2E+03"},
		{Number(45366), "yyyy-mm-dd", "2024-03-15"},
		{Number(-1234.567), "$#,##0.00;($#,##0.00)", "($1,234.57)"},
		{Number(1234.567), "$#,##0.00;($#,##0.00)", "$1,234.57"},
		{Number(-5), "0", "-5"},
		{Text("abc"), "@", "abc"},
		{Text("12.5"), "0.00", "12.50"},
		{Bool(true), "0.00", "TRUE"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatValue(tc.value, tc.format, false), "%s with %q", tc.value, tc.format)
	}
}
