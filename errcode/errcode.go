package errcode

// Code is a stable, caller-facing status identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                 Code = "ok"
	InvalidArgument    Code = "invalid_argument"
	NotInitialized     Code = "not_initialized"
	InitFailed         Code = "init_failed"
	CreateBufferFailed Code = "create_buffer_failed"
	Busy               Code = "busy"    // queue full, retry later
	NoData             Code = "no_data" // queue empty, normal poll result
	UnknownPeripheral  Code = "unknown_peripheral"
	Unsupported        Code = "unsupported"

	Error Code = "error" // generic fallback
)

// Retriable reports whether a caller may simply try again later.
func (c Code) Retriable() bool { return c == Busy || c == NoData }

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

// Is lets errors.Is match a wrapped error against its bare Code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap builds an *E for op with code c around cause err.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

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
