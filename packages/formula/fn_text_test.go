package formula

import "testing"

func TestTextSlicing(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`LEN("héllo")`, 5},
		{`LENB("日本a")`, 5},
		{`LEFT("Hello",2)`, "He"},
		{`LEFT("Hello")`, "H"},
		{`LEFT("Hello",-1)`, ErrorCodeValue},
		{`RIGHT("Hello",3)`, "llo"},
		{`RIGHT("Hi",10)`, "Hi"},
		{`MID("Hello",2,3)`, "ell"},
		{`MID("Hello",10,2)`, ""},
		{`MID("Hello",0,2)`, ErrorCodeValue},
		{`LEFTB("日本a",2)`, "日"},
		{`MIDB("日本a",3,2)`, "本"},
	})
}

func TestTextSearching(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`FIND("l","Hello")`, 3},
		{`FIND("L","Hello")`, ErrorCodeValue},
		{`FIND("o","Hello World",6)`, 8},
		{`FIND("","abc")`, 1},
		{`SEARCH("L","Hello")`, 3},
		{`SEARCH("l?o","Hello")`, 3},
		{`SEARCH("w*d","Hello World")`, 7},
		{`SEARCH("z","Hello")`, ErrorCodeValue},
		{`FIND("界","世界")`, 2},
	})
}

func TestTextEditing(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`REPLACE("abcdef",2,3,"XY")`, "aXYef"},
		{`SUBSTITUTE("a-b-c","-","+")`, "a+b+c"},
		{`SUBSTITUTE("a-b-c","-","+",2)`, "a-b+c"},
		{`SUBSTITUTE("a-b-c","-","+",5)`, "a-b-c"},
		{`SUBSTITUTE("a-b-c","-","+",0)`, ErrorCodeValue},
		{`REPT("ab",3)`, "ababab"},
		{`REPT("x",-1)`, ErrorCodeValue},
		{`TRIM("  a   b  ")`, "a b"},
		{`PROPER("hello wORLD o'neil")`, "Hello World O'Neil"},
		{`UPPER("abc")`, "ABC"},
		{`LOWER("ÀBC")`, "àbc"},
		{`CLEAN("a"&CHAR(9)&"b")`, "ab"},
		{`EXACT("a","A")`, false},
		{`EXACT("a","a")`, true},
		{`T(1)`, ""},
		{`T("x")`, "x"},
		{`ASC("ＡＢＣ")`, "ABC"},
		{`ENCODEURL("a b&c")`, "a%20b%26c"},
		{`HYPERLINK("http://example.com","site")`, "site"},
	})
}

func TestTextJoining(t *testing.T) {
	book := newTestBook(grid("A1", []any{"x", 1, true}))
	checkFormulas(t, book, []formulaCase{
		{`CONCATENATE("a",1,TRUE)`, "a1TRUE"},
		{`CONCAT(A1:C1)`, "x1TRUE"},
		{`TEXTJOIN("-",TRUE,"a","","b")`, "a-b"},
		{`TEXTJOIN("-",FALSE,"a","","b")`, "a--b"},
		{`TEXTJOIN(", ",FALSE,{1,2,3})`, "1, 2, 3"},
		{`TEXTJOIN({"-","+"},TRUE,1,2,3,4)`, "1-2+3-4"},
		{`"a"&1/0`, ErrorCodeDiv0},
	})
}

func TestTextCodes(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`CHAR(65)`, "A"},
		{`CHAR(128)`, "€"},
		{`CHAR(0)`, ErrorCodeValue},
		{`CODE("A")`, 65},
		{`CODE("€")`, 128},
		{`CODE("")`, ErrorCodeValue},
		{`UNICHAR(9731)`, "☃"},
		{`UNICODE("☃")`, 9731},
	})
}

func TestTextConversions(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`VALUE("1,234.5")`, 1234.5},
		{`VALUE("$1,000")`, 1000},
		{`VALUE("(5)")`, -5},
		{`VALUE("abc")`, ErrorCodeValue},
		{`VALUE("2024-03-15")`, 45366},
		{`NUMBERVALUE("1.234,5",",",".")`, 1234.5},
		{`NUMBERVALUE("12%")`, 0.12},
		{`NUMBERVALUE("1,2",",",",")`, ErrorCodeValue},
		{`VALUETOTEXT("a",1)`, `"a"`},
		{`VALUETOTEXT(12.5)`, "12.5"},
		{`TEXTBEFORE("a-b-c","-")`, "a"},
		{`TEXTBEFORE("a-b-c","-",2)`, "a-b"},
		{`TEXTAFTER("a-b-c","-",-1)`, "c"},
		{`TEXTAFTER("a-B-c","b",1,1)`, "-c"},
		{`TEXTBEFORE("abc","x")`, ErrorCodeNA},
		{`TEXTBEFORE("abc","x",,,,"none")`, "none"},
	})
}

func TestTextFormatting(t *testing.T) {
	checkFormulas(t, nil, []formulaCase{
		{`TEXT(1234.567,"#,##0.00")`, "1,234.57"},
		{`TEXT(3.14159,"0.00")`, "3.14"},
		{`TEXT(0.256,"0%")`, "26%"},
		{`TEXT(1234.5,"0.0E+00")`, "1.2E+03"},
		{`TEXT(DATE(2024,3,15),"yyyy-mm-dd")`, "2024-03-15"},
		{`TEXT("abc","@")`, "abc"},
		{`FIXED(1234.567,1)`, "1,234.6"},
		{`FIXED(1234.567,1,TRUE)`, "1234.6"},
		{`FIXED(-1234.567)`, "-1,234.57"},
		{`DOLLAR(1234.567)`, "$1,234.57"},
		{`DOLLAR(-1234.567)`, "($1,234.57)"},
	})
}
