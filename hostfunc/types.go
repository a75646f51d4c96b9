package hostfunc

import "net/http"

// ModuleName is the import namespace modules use to reach the outbound
// HTTP capability.
const ModuleName = "wasi_experimental_http"

// Errno is the status code returned to the module by every capability
// function. Values mirror the wasi-experimental-http ABI.
type Errno uint32

const (
	ErrnoSuccess               Errno = 0
	ErrnoInvalidHandle         Errno = 1
	ErrnoMemoryNotFound        Errno = 2
	ErrnoMemoryAccess          Errno = 3
	ErrnoBufferTooSmall        Errno = 4
	ErrnoHeaderNotFound        Errno = 5
	ErrnoUTF8                  Errno = 6
	ErrnoDestinationNotAllowed Errno = 7
	ErrnoInvalidMethod         Errno = 8
	ErrnoInvalidEncoding       Errno = 9
	ErrnoInvalidURL            Errno = 10
	ErrnoRequest               Errno = 11
	ErrnoRuntime               Errno = 12
	ErrnoTooManyRequests       Errno = 13
)

// OutboundRequest is a module-initiated HTTP call after decoding from
// guest memory.
type OutboundRequest struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// OutboundResponse carries the upstream answer back toward the module.
type OutboundResponse struct {
	Status int
	Header http.Header
	Body   []byte
}
