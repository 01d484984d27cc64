package errcode

import (
	"errors"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"ok":                   OK,
		"invalid_argument":     InvalidArgument,
		"not_initialized":      NotInitialized,
		"init_failed":          InitFailed,
		"create_buffer_failed": CreateBufferFailed,
		"busy":                 Busy,
		"no_data":              NoData,
		"unknown_peripheral":   UnknownPeripheral,
		"unsupported":          Unsupported,
		"error":                Error,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestWrappedMatchesBareCode(t *testing.T) {
	cause := errors.New("hal timeout")
	err := Wrap(InitFailed, "usart.Init", cause)

	if !errors.Is(err, InitFailed) {
		t.Fatalf("errors.Is(%v, InitFailed) = false", err)
	}
	if errors.Is(err, Busy) {
		t.Fatalf("wrapped InitFailed must not match Busy")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable through Unwrap")
	}
	if got := Of(err); got != InitFailed {
		t.Fatalf("Of = %q, want %q", got, InitFailed)
	}
	if got, want := err.Error(), "usart.Init: init_failed: hal timeout"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestOf(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to ok")
	}
	if Of(Busy) != Busy {
		t.Fatal("bare code should map to itself")
	}
	if Of(errors.New("x")) != Error {
		t.Fatal("foreign error should map to generic error")
	}
}

func TestRetriable(t *testing.T) {
	if !Busy.Retriable() || !NoData.Retriable() {
		t.Fatal("busy and no_data are transient")
	}
	if InvalidArgument.Retriable() || NotInitialized.Retriable() || InitFailed.Retriable() {
		t.Fatal("caller bugs and setup failures are not retriable")
	}
}
