package wagi

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindsAreDistinguishable(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", &ConfigError{Module: "hello.wasm", Reason: "entry point missing"})

	var confErr *ConfigError
	if !errors.As(wrapped, &confErr) {
		t.Fatal("expected errors.As to find ConfigError through wrapping")
	}
	if confErr.Module != "hello.wasm" {
		t.Errorf("Module = %q, want hello.wasm", confErr.Module)
	}

	var execErr *ExecError
	if errors.As(wrapped, &execErr) {
		t.Error("ConfigError should not match ExecError")
	}
}

func TestExecErrorUnwrap(t *testing.T) {
	cause := errors.New("wasm trap: unreachable")
	err := &ExecError{Module: "crash.wasm", Entry: "_start", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the underlying cause")
	}
	want := "module crash.wasm: _start: wasm trap: unreachable"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigErrorWithoutModule(t *testing.T) {
	err := &ConfigError{Reason: "no modules configured"}
	if err.Error() != "no modules configured" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestProtocolErrorMessage(t *testing.T) {
	err := &ProtocolError{Reason: "neither Content-Type nor Location header present"}
	want := "invalid module response: neither Content-Type nor Location header present"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
