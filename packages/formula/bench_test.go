package formula

import (
	"strconv"
	"testing"
)

func benchBook(rows int) *testBook {
	cells := make(map[string]any, rows*2)
	for r := 1; r <= rows; r++ {
		cells["A"+strconv.Itoa(r)] = r
		cells["B"+strconv.Itoa(r)] = "=A" + strconv.Itoa(r) + "*2"
	}
	return newTestBook(cells)
}

func BenchmarkParse(b *testing.B) {
	src := `IF(AND(A1>0,B1<>""),VLOOKUP(A1,Sheet2!$A$1:$D$100,3,FALSE)*1.05,SUM(C1:C10)/COUNT(C1:C10))`
	b.ReportAllocs()
	for b.Loop() {
		if _, err := ParseFormula(src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEvalSumRange(b *testing.B) {
	engine := testEngine()
	book := benchBook(1000)
	f, err := engine.Parse("SUM(A1:A1000)")
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for b.Loop() {
		engine.Eval(f, book, OnSheet(testSheetName))
	}
}

func BenchmarkEvalDependentFormulas(b *testing.B) {
	engine := testEngine()
	book := benchBook(1000)
	f, err := engine.Parse("SUM(B1:B1000)")
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for b.Loop() {
		engine.Eval(f, book, OnSheet(testSheetName))
	}
}

func BenchmarkLookup(b *testing.B) {
	engine := testEngine()
	book := benchBook(1000)
	f, err := engine.Parse("VLOOKUP(750,A1:B1000,2,FALSE)")
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for b.Loop() {
		engine.Eval(f, book, OnSheet(testSheetName))
	}
}
