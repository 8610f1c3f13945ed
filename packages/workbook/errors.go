package workbook

import (
	"errors"
	"fmt"
)

// AppErrorCode is a gRPC-style code for errors raised by the workbook API.
// formula errors such as #REF! are values, not AppErrors. codes that have no
// meaning for an in-memory workbook, like Unauthenticated, are left out.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error. errors from other packages that carry no code are
	// reported as Unknown by CodeOf.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates the caller passed a malformed address, name
	// or value.
	InvalidArgument AppErrorCode = 3

	// NotFound means a worksheet, named range or cell was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means a worksheet or named range with that name exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates the workbook is not in a state required
	// for the operation, such as addressing a workbook with no worksheets.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means an address lies outside the sheet grid.
	OutOfRange AppErrorCode = 11

	// Internal means an invariant of the workbook has been broken.
	Internal AppErrorCode = 13
)

var codeNames = map[AppErrorCode]string{
	OK:                 "OK",
	Unknown:            "Unknown",
	InvalidArgument:    "InvalidArgument",
	NotFound:           "NotFound",
	AlreadyExists:      "AlreadyExists",
	FailedPrecondition: "FailedPrecondition",
	OutOfRange:         "OutOfRange",
	Internal:           "Internal",
}

func (c AppErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("AppErrorCode(%d)", int(c))
}

// AppError is an application-level error. Err, when set, is the underlying
// cause, such as a *formula.ParseError.
type AppError struct {
	Code    AppErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func errorf(code AppErrorCode, format string, args ...any) *AppError {
	return NewApplicationError(code, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first *AppError in err's chain. nil is OK
// and any other error is Unknown.
func CodeOf(err error) AppErrorCode {
	if err == nil {
		return OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}
