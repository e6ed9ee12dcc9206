package framewire

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is a module-boundary error code, numerically stable across versions
// (spec §6.6). Pure components (CRC, frame codec, ring buffer, reliable
// context) return a Code directly; glue layers wrap it in *Error and return
// a regular Go error so callers can use errors.As/errors.Is.
type Code int

const (
	OK       Code = 0
	INVALID  Code = -1
	NOMEM    Code = -2
	TIMEOUT  Code = -3
	CRC      Code = -4
	OVERFLOW Code = -5
	PLATFORM Code = -6
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case INVALID:
		return "INVALID"
	case NOMEM:
		return "NOMEM"
	case TIMEOUT:
		return "TIMEOUT"
	case CRC:
		return "CRC"
	case OVERFLOW:
		return "OVERFLOW"
	case PLATFORM:
		return "PLATFORM"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error wraps a Code with an optional causing error, the way the teacher's
// KeySizeError carries a value but also composes with github.com/pkg/errors
// for stack context in its transport/tunnel layers.
type Error struct {
	Code  Code
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// newErr builds an *Error, wrapping cause with pkg/errors when present so
// the resulting chain carries a stack trace for the glue layers.
func newErr(code Code, msg string, cause error) *Error {
	e := &Error{Code: code, Msg: msg}
	if cause != nil {
		e.cause = errors.Wrap(cause, msg)
	}
	return e
}

// CodeOf extracts the Code from err, defaulting to PLATFORM for errors that
// did not originate in this package.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return PLATFORM
}
