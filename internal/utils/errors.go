package utils

import (
	"fmt"
	"path"
	"runtime"
)

// RaisedErr is an error that remembers where it was raised.
// All errors returned by this code base are RaisedErr instances.
//
// Each package declares a private flag error type plus a set of **constant**
// errors of that type. Assigning such flags to raised errors lets callers
// classify failures with errors.Is without depending on message contents.
type RaisedErr struct {
	// Flag groups related errors under a package level constant.
	Flag error

	// Cause is the error the RaisedErr{} wraps, possibly nil.
	Cause error

	// Msg describes what happened.
	Msg string

	// Filename is the source file of the code that raised the error.
	Filename string

	// Line locates the raising code inside Filename.
	Line int
}

// Error implements the error interface.
func (self RaisedErr) Error() string {
	return fmt.Sprintf("%s: %s\n  file: %s line: %d\n%v", path.Dir(self.Filename), self.Msg, self.Filename, self.Line, self.Cause)
}

// Unwrap returns a slice that contains the causes of the RaisedErr.
func (self RaisedErr) Unwrap() []error {
	rv := make([]error, 0, 2)
	if nil != self.Flag {
		rv = append(rv, self.Flag)
	}
	if nil != self.Cause {
		rv = append(rv, self.Cause)
	}
	return rv
}

// NewError returns a RaisedErr{} that contains file & line of where it was called.
//
// skip controls Caller frame resolution, use 0 when calling NewError directly,
// 1 when calling it through an intermediary newError helper...
func NewError(skip int, flag error, msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	err := RaisedErr{Flag: flag, Msg: msg}
	addCallerFileLine(skip, &err)
	return err
}

// WrapError returns a RaisedErr{} that contains file & line of where it was called.
// If cause is nil, WrapError returns nil.
//
// skip controls Caller frame resolution, use 0 when calling WrapError directly,
// 1 when calling it through an intermediary wrapError helper...
func WrapError(cause error, skip int, flag error, msg string, args ...any) error {
	if nil == cause {
		return nil
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	err := RaisedErr{Flag: flag, Cause: cause, Msg: msg}
	addCallerFileLine(skip, &err)
	return err
}

func addCallerFileLine(skip int, err *RaisedErr) {
	_, filename, line, ok := runtime.Caller(2 + skip)
	dirname, filename := path.Split(filename)
	if ok {
		err.Filename = path.Join(path.Base(dirname), filename)
		err.Line = line
	}
}
