// Package xerrors is a tiny error-wrapping helper that records the
// caller's program counter so the logger can emit file:line for each
// link in an error chain without a full stack capture.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

type wrapped struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrapped) Error() string {
	if w.err == nil {
		return w.msg
	}
	return w.msg + ": " + w.err.Error()
}
func (w *wrapped) Unwrap() error { return w.err }
func (w *wrapped) PC() uintptr   { return w.pc }

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	// 2 skips runtime.Callers and callerPC itself
	if n := runtime.Callers(2+skip, pcs[:]); n == 0 {
		return 0
	}
	return pcs[0]
}

// New returns an error with the caller's position attached.
func New(msg string) error {
	return &wrapped{msg: msg, pc: callerPC(1)}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(format string, args ...any) error {
	return &wrapped{msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

// Wrap annotates err with msg and the caller's position.
// Returns nil if err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: msg, pc: callerPC(1)}
}

// Wrapf is Wrap with fmt.Sprintf formatting.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

// Frame resolves the recorded position of err, if it carries one.
func Frame(err error) (fn, file string, line int, ok bool) {
	type hasPC interface{ PC() uintptr }
	var hp hasPC
	if !errors.As(err, &hp) || hp.PC() == 0 {
		return "", "", 0, false
	}
	fr, _ := runtime.CallersFrames([]uintptr{hp.PC()}).Next()
	return fr.Function, fr.File, fr.Line, true
}
