// Package assert reports invariant violations as a structured abort.
//
// A failed assertion panics with *Failure carrying the source location and
// the asserted expression. It is not an error return: callers are not
// expected to recover except at the outermost supervisor, which logs the
// failure and halts.
package assert

import (
	"runtime"
	"strconv"
)

// Failure is the panic value raised by That.
type Failure struct {
	File string
	Line int
	Expr string
}

func (f *Failure) Error() string {
	return "assert " + f.File + " #" + strconv.Itoa(f.Line) + ": (" + f.Expr + ")"
}

// That panics with a *Failure when cond is false.
func That(cond bool, expr string) {
	if !cond {
		panic(at(2, expr))
	}
}

func at(skip int, expr string) *Failure {
	f := &Failure{Expr: expr}
	if _, file, line, ok := runtime.Caller(skip); ok {
		f.File, f.Line = file, line
	}
	return f
}

// Recover converts a recovered *Failure into a value; other panics are
// re-raised. Use as: defer func() { f := assert.Recover(recover()) ... }().
func Recover(v any) *Failure {
	if v == nil {
		return nil
	}
	if f, ok := v.(*Failure); ok {
		return f
	}
	panic(v)
}
