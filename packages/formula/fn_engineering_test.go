package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineeringRadix(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"DEC2BIN(10)", "1010"},
		{"DEC2BIN(10,8)", "00001010"},
		{"DEC2BIN(-1)", "1111111111"},
		{"DEC2BIN(512)", ErrorCodeNum},
		{"DEC2BIN(3,1)", ErrorCodeNum},
		{`BIN2DEC("1010")`, 10},
		{`BIN2DEC("1111111111")`, -1},
		{`BIN2DEC("102")`, ErrorCodeNum},
		{`HEX2DEC("FF")`, 255},
		{`HEX2DEC("FFFFFFFFFF")`, -1},
		{"DEC2HEX(255,4)", "00FF"},
		{`OCT2DEC("17")`, 15},
		{`BIN2HEX("11111111")`, "FF"},
		{`HEX2BIN("F")`, "1111"},
	})
}

func TestEngineeringBits(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"BITAND(12,10)", 8},
		{"BITOR(12,10)", 14},
		{"BITXOR(12,10)", 6},
		{"BITLSHIFT(1,4)", 16},
		{"BITRSHIFT(16,2)", 4},
		{"BITAND(-1,1)", ErrorCodeNum},
		{"DELTA(5,5)", 1},
		{"DELTA(5)", 0},
		{"GESTEP(5,4)", 1},
		{"GESTEP(-1)", 0},
	})
}

func TestEngineeringComplex(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{"COMPLEX(3,4)", "3+4i"},
		{`COMPLEX(0,1,"j")`, "j"},
		{"COMPLEX(3,-1)", "3-i"},
		{`COMPLEX(1,1,"k")`, ErrorCodeValue},
		{`IMABS("3+4i")`, 5},
		{`IMREAL("3+4i")`, 3},
		{`IMAGINARY("3+4i")`, 4},
		{`IMCONJUGATE("3+4i")`, "3-4i"},
		{`IMSUM("1+2i","3-i")`, "4+i"},
		{`IMPRODUCT("1+2i","3-i")`, "5+5i"},
		{`IMSUB("5+5i","1+i")`, "4+4i"},
		{`IMDIV("-2+4i","1+i")`, "1+3i"},
		{`IMDIV("1+i","0")`, ErrorCodeNum},
	})
}

func TestEngineeringContinuous(t *testing.T) {
	cases := []struct {
		formula string
		want    float64
	}{
		{"ERF(1)", 0.842700792949715},
		{"ERFC(1)", 0.157299207050285},
		{`CONVERT(1,"mi","km")`, 1.609344},
		{`CONVERT(68,"F","C")`, 20},
		{`CONVERT(1,"lbm","kg")`, 0.45359237},
		{`CONVERT(6,"ft","in")`, 72},
	}

	for _, tc := range cases {
		t.Run(tc.formula, func(t *testing.T) {
			got := eval(t, tc.formula)
			require.Equal(t, ValueTypeNumber, got.Type, "%s = %s", tc.formula, got)
			assert.InDelta(t, tc.want, got.Num, 1e-9, tc.formula)
		})
	}

	checkFormulas(t, nil, []formulaCase{
		{`CONVERT(1,"m","sec")`, ErrorCodeNA},
		{`CONVERT(1,"xyz","m")`, ErrorCodeNA},
	})
}
