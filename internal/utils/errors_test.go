package utils

import (
	"errors"
	"io"
	"testing"
)

func TestErrorRaise(t *testing.T) {
	err := raise()
	t.Logf("err -> %v", err)
	if !errors.Is(err, PkgBaseError) {
		t.Error("Oops, err is not PkgBaseError")
	}
	_, ok := err.(RaisedErr)
	if !ok {
		t.Error("Oops, can not cast err to RaisedErr")
	}
}

func TestErrorRaiseFrom(t *testing.T) {
	err := raiseFrom()
	t.Logf("err -> %v", err)
	if !errors.Is(err, PkgBaseError) {
		t.Error("Oops, err is not PkgBaseError")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Oops, err is not an io.ErrUnexpectedEOF")
	}
	_, ok := err.(RaisedErr)
	if !ok {
		t.Error("Oops, can not cast err to RaisedErr")
	}
}

func TestWrapNilCause(t *testing.T) {
	err := wrapError(nil, "never raised")
	if nil != err {
		t.Errorf("Oops, wrapping a nil cause shall return nil, got %v", err)
	}
}

// ---
// Below definitions show how RaisedErr is intended to be used in practice.

// first we define an error type for package error flags
type errorFlag string

// and then at least one global flag error constant
const (
	PkgBaseError = errorFlag("utils: error")
	noError      = errorFlag("")
)

func (self errorFlag) Error() string {
	return string(self)
}

func (self errorFlag) Unwrap() error {
	if noError == self || PkgBaseError == self {
		return nil
	}
	return PkgBaseError
}

// then we define newError & wrapError to be used for all package errors...

func newError(msg string, args ...any) error {
	return NewError(1, PkgBaseError, msg, args...)
}

func wrapError(cause error, msg string, args ...any) error {
	return WrapError(cause, 1, PkgBaseError, msg, args...)
}

func raise() error {
	return newError("counter overflow after %d rounds", 42)
}

func raiseFrom() error {
	return wrapError(io.ErrUnexpectedEOF, "short read on %s", "kauth.key")
}
