package errcode

// Code is a stable, caller-facing result identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                 Code = "ok"
	CommError          Code = "comm_error"
	ConfigError        Code = "config_error"
	ClockError         Code = "clock_error"
	Busy               Code = "busy"
	ChannelUnavailable Code = "channel_unavailable"

	ReinitError Code = "reinit_error"
	Timeout     Code = "timeout"
	Canceled    Code = "canceled"
	Unsupported Code = "unsupported"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.Busy) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E for op with a short message.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Wrap builds an *E for op around a lower-level cause.
// A nil cause yields a bare code wrapper.
func Wrap(c Code, op string, err error) *E { return &E{C: c, Op: op, Err: err} }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Err converts a code back to an error value; OK maps to nil.
func (c Code) Err() error {
	if c == OK || c == "" {
		return nil
	}
	return c
}

// Failed reports whether c is a terminal failure code.
func (c Code) Failed() bool { return c != OK && c != "" }
