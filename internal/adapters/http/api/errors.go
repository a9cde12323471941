package api

import (
	"errors"
	"strings"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNoSource     = errors.New("no sheet source configured")
	ErrUpstream     = errors.New("sheet source unavailable")
)

// Error ties an operation name to an error kind and an optional cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewKind returns an error of the given kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap attaches op to err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}
