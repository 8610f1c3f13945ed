package formula

import (
	"fmt"
	"strings"
)

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions. The numeric values match ERROR.TYPE.
type ErrorCode uint8

const (
	ErrorCodeNull     ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0     ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue    ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef      ErrorCode = 4 // #REF! - invalid cell reference
	ErrorCodeName     ErrorCode = 5 // #NAME? - unrecognized function or name
	ErrorCodeNum      ErrorCode = 6 // #NUM! - number too large or small to be represented
	ErrorCodeNA       ErrorCode = 7 // #N/A - value not available
	ErrorCodeCircular ErrorCode = 8 // #CIRCULAR! - re-entrant reference or nesting too deep
)

// noError is the zero ErrorCode, returned by coercions that succeed.
const noError ErrorCode = 0

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:     "#NULL!",
	ErrorCodeDiv0:     "#DIV/0!",
	ErrorCodeValue:    "#VALUE!",
	ErrorCodeRef:      "#REF!",
	ErrorCodeName:     "#NAME?",
	ErrorCodeNum:      "#NUM!",
	ErrorCodeNA:       "#N/A",
	ErrorCodeCircular: "#CIRCULAR!",
}

func (c ErrorCode) String() string {
	if s, ok := ErrorMapper[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// ParseErrorCode maps an error literal such as "#DIV/0!" back to its code.
// matching is case-insensitive.
func ParseErrorCode(s string) (ErrorCode, bool) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for code, text := range ErrorMapper {
		if text == upper {
			return code, true
		}
	}
	return noError, false
}

// ParseError is the fatal tier: formula text that cannot be tokenized or
// parsed. It is never represented as a formula error value.
type ParseError struct {
	Position int
	Expected string
	Got      string
	Message  string
}

func (e *ParseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Message)
	}
	return fmt.Sprintf("parse error at position %d: expected %s, got %s", e.Position, e.Expected, e.Got)
}

// NewParseError creates a parse error for an unexpected token.
func NewParseError(pos int, expected, got string) *ParseError {
	return &ParseError{
		Position: pos,
		Expected: expected,
		Got:      got,
	}
}

func newSyntaxError(pos int, format string, args ...any) *ParseError {
	return &ParseError{
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
	}
}
