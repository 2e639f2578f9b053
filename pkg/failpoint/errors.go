package failpoint

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Code distinguishes the kinds of configuration failure.
type Code int

const (
	// OK is the code of a nil error.
	OK Code = iota
	// IllegalOperation is returned when a required field is missing.
	IllegalOperation
	// BadValue is returned for out-of-range values and unknown mode keys.
	BadValue
	// TypeMismatch is returned when a field has the wrong type.
	TypeMismatch
	// FailPointSetFailed is returned when the named fail point does not exist.
	FailPointSetFailed
	// Unknown is the code of any error that is not an *Error.
	Unknown
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case IllegalOperation:
		return "IllegalOperation"
	case BadValue:
		return "BadValue"
	case TypeMismatch:
		return "TypeMismatch"
	case FailPointSetFailed:
		return "FailPointSetFailed"
	default:
		return "Unknown"
	}
}

// Error is a configuration failure. It is reported to the configuring caller
// and never leaves a fail point partially configured.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is matches any *Error with the same code and an empty message, so the
// sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Msg == "" || t.Msg == e.Msg)
}

var (
	ErrIllegalOperation   = &Error{Code: IllegalOperation}
	ErrBadValue           = &Error{Code: BadValue}
	ErrTypeMismatch       = &Error{Code: TypeMismatch}
	ErrFailPointSetFailed = &Error{Code: FailPointSetFailed}
)

// ErrDuplicate is returned when registering a name twice in one catalog.
var ErrDuplicate = errors.New("fail point already registered")

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the Code carried by err.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return Unknown
}
