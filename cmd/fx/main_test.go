package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEval(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"eval", "1+2*3"}, "7"},
		{[]string{"eval", "=2^10"}, "1024"},
		{[]string{"eval", `"a"&"b"`}, "ab"},
		{[]string{"eval", "10/0"}, "#DIV/0!"},
		{[]string{"eval", "--set", "A1=10", "--set", "A2=32", "SUM(A1:A2)"}, "42"},
		{[]string{"eval", "--set", "B1==A1*2", "--set", "A1=4", "B1+1"}, "9"},
		{[]string{"eval", "-s", "A1=true", "-s", "A2=hello", "IF(A1,UPPER(A2))"}, "HELLO"},
		{[]string{"eval", "--sheet", "Data", "--set", "A1=1", "SHEETS()+A1"}, "2"},
	}
	for _, tc := range cases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			out, err := run(t, tc.args...)
			require.NoError(t, err)
			assert.Equal(t, tc.want+"\n", out)
		})
	}
}

func TestEvalJSON(t *testing.T) {
	out, err := run(t, "eval", "--json", "1/0")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, sonic.UnmarshalString(out, &got))
	assert.Equal(t, "1/0", got["formula"])
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, "#DIV/0!", got["value"])

	out, err = run(t, "eval", "--json", "TRANSPOSE({2,4})")
	require.NoError(t, err)
	require.NoError(t, sonic.UnmarshalString(out, &got))
	assert.Equal(t, "array", got["type"])
	assert.Equal(t, []any{[]any{2.0}, []any{4.0}}, got["value"])
}

func TestEvalErrors(t *testing.T) {
	_, err := run(t, "eval", "1+")
	assert.Error(t, err)

	_, err = run(t, "eval", "--set", "nonsense", "1")
	assert.ErrorContains(t, err, "ADDRESS=VALUE")

	_, err = run(t, "eval", "--set", "A1=1", "--file", "book.xlsx", "A1")
	assert.ErrorContains(t, err, "--set cannot be combined")

	_, err = run(t, "eval")
	assert.Error(t, err)
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, 1.5, literal("1.5"))
	assert.Equal(t, true, literal("true"))
	assert.Equal(t, false, literal("FALSE"))
	assert.Equal(t, formula.ErrorCodeNA, literal("#N/A"))
	assert.Equal(t, "=A1", literal("=A1"))
	assert.Equal(t, "hello", literal("hello"))
}

func TestFunctions(t *testing.T) {
	out, err := run(t, "functions", "--category", "logical")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, out, "IFERROR")
	assert.NotContains(t, out, "VLOOKUP")

	out, err = run(t, "functions", "--json", "-c", "math")
	require.NoError(t, err)
	var infos []functionInfo
	require.NoError(t, sonic.UnmarshalString(out, &infos))
	require.NotEmpty(t, infos)
	for _, info := range infos {
		assert.Equal(t, "math", info.Category)
	}

	_, err = run(t, "functions", "--category", "astrology")
	assert.ErrorContains(t, err, "unknown category")
}

func TestArity(t *testing.T) {
	assert.Equal(t, "1+", arity(1, formula.Variadic))
	assert.Equal(t, "2", arity(2, 2))
	assert.Equal(t, "2-3", arity(2, 3))
}

func TestTokens(t *testing.T) {
	out, err := run(t, "tokens", "SUM(A1,2)")
	require.NoError(t, err)
	assert.Contains(t, out, "0\tfunction\tSUM\n")
	assert.Contains(t, out, "cell reference\tA1")
	assert.NotContains(t, out, "-- efp")

	out, err = run(t, "tokens", "--efp", "SUM(A1,2)")
	require.NoError(t, err)
	assert.Contains(t, out, "-- efp")
	assert.Contains(t, out, "Function")

	_, err = run(t, "tokens", `"unterminated`)
	assert.Error(t, err)
}

func TestRefs(t *testing.T) {
	out, err := run(t, "refs", "SUM(A1:B2)+Sheet2!C3+Rate")
	require.NoError(t, err)
	assert.Equal(t, "range\tA1:B2\ncell\tSheet2!C3\nname\tRate\n", out)
}

func writeBook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 2))
	require.NoError(t, f.SetCellFormula("Sheet1", "A2", "A1*21"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "x"))
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestCalc(t *testing.T) {
	path := writeBook(t)

	out, err := run(t, "calc", path)
	require.NoError(t, err)
	assert.Equal(t, "Sheet1!A2\t=A1*21\t42\n", out)

	out, err = run(t, "calc", "--json", path)
	require.NoError(t, err)
	var cells []map[string]any
	require.NoError(t, sonic.UnmarshalString(out, &cells))
	require.Len(t, cells, 1)
	assert.Equal(t, "A2", cells[0]["cell"])
	assert.Equal(t, 42.0, cells[0]["value"])

	out, err = run(t, "eval", "--file", path, "A2+A1")
	require.NoError(t, err)
	assert.Equal(t, "44\n", out)
}

func TestCalcWritesOutput(t *testing.T) {
	path := writeBook(t)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	_, err := run(t, "calc", "--output", output, path)
	require.NoError(t, err)
	_, err = os.Stat(output)
	require.NoError(t, err)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()
	text, err := f.GetCellFormula("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "A1*21", text)
}

func TestCalcErrors(t *testing.T) {
	_, err := run(t, "calc", filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)

	_, err = run(t, "calc", "--sheet", "Nope", writeBook(t))
	assert.ErrorContains(t, err, "not found")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "fx.yaml")
	require.NoError(t, os.WriteFile(good, []byte("engine:\n  date_1904: true\n"), 0644))

	out, err := run(t, "--config", good, "eval", "DATE(2024,3,15)")
	require.NoError(t, err)
	assert.Equal(t, "43904\n", out)

	f := excelize.NewFile()
	disabled := false
	require.NoError(t, f.SetWorkbookProps(&excelize.WorkbookPropsOptions{Date1904: &disabled}))
	book := filepath.Join(dir, "dates.xlsx")
	require.NoError(t, f.SaveAs(book))
	require.NoError(t, f.Close())

	out, err = run(t, "--config", good, "eval", "--file", book, "DATE(2024,3,15)")
	require.NoError(t, err)
	assert.Equal(t, "45366\n", out, "the workbook's own date system wins over the config")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine:\n  max_depth: -1\n"), 0644))
	_, err = run(t, "--config", bad, "eval", "1")
	assert.ErrorContains(t, err, "engine.max_depth")
}
