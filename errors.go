package wagi

import "fmt"

// Request failures fall into three kinds, and callers branch on the kind
// with errors.As rather than matching message strings. A ConfigError
// means the deployment cannot run the module at all. An ExecError means
// the module was invoked and trapped, exited nonzero, or failed to link.
// A ProtocolError means the module ran to completion but its output is
// not a valid CGI response.

// ConfigError reports a module that cannot run under the current
// deployment configuration. Never retried.
type ConfigError struct {
	Module string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Module == "" {
		return e.Reason
	}
	return fmt.Sprintf("module %s: %s", e.Module, e.Reason)
}

// ExecError reports a module invocation that failed, carrying the
// underlying diagnostic.
type ExecError struct {
	Module string
	Entry  string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("module %s: %s: %v", e.Module, e.Entry, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ProtocolError reports module output that does not form a valid CGI
// response. Distinct from ExecError: the module itself succeeded.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "invalid module response: " + e.Reason
}
