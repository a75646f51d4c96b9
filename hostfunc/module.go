package hostfunc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// hostState backs one linked instance of the capability. Response
// handles live here between req and close.
type hostState struct {
	outbound  *Outbound
	mu        sync.Mutex
	next      uint32
	responses map[uint32]*responseState
}

type responseState struct {
	header http.Header
	body   []byte
	offset int
}

// Instantiate links the outbound HTTP capability into rt under
// ModuleName, policed by outbound. Link it only when the deployment
// grants outbound access; modules importing an unlinked capability fail
// at instantiation, which the engine reports as a configuration error.
func Instantiate(ctx context.Context, rt wazero.Runtime, outbound *Outbound) error {
	h := &hostState{outbound: outbound, responses: make(map[uint32]*responseState)}

	i32 := api.ValueTypeI32
	_, err := rt.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.req),
			[]api.ValueType{i32, i32, i32, i32, i32, i32, i32, i32, i32, i32},
			[]api.ValueType{i32}).
		Export("req").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.close),
			[]api.ValueType{i32},
			[]api.ValueType{i32}).
		Export("close").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.headerGet),
			[]api.ValueType{i32, i32, i32, i32, i32, i32},
			[]api.ValueType{i32}).
		Export("header_get").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.headersGetAll),
			[]api.ValueType{i32, i32, i32, i32},
			[]api.ValueType{i32}).
		Export("headers_get_all").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.bodyRead),
			[]api.ValueType{i32, i32, i32, i32},
			[]api.ValueType{i32}).
		Export("body_read").
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", ModuleName, err)
	}
	return nil
}

// req decodes an outbound request from guest memory, runs it through
// the mediator, and on success writes the status code and a response
// handle back into guest memory.
func (h *hostState) req(ctx context.Context, mod api.Module, stack []uint64) {
	mem := mod.Memory()
	if mem == nil {
		stack[0] = uint64(ErrnoMemoryNotFound)
		return
	}

	rawURL, ok := readString(mem, uint32(stack[0]), uint32(stack[1]))
	if !ok {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	method, ok := readString(mem, uint32(stack[2]), uint32(stack[3]))
	if !ok {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	if !utf8.ValidString(rawURL) || !utf8.ValidString(method) {
		stack[0] = uint64(ErrnoUTF8)
		return
	}
	headerBlock, ok := readString(mem, uint32(stack[4]), uint32(stack[5]))
	if !ok {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	body, ok := readBytes(mem, uint32(stack[6]), uint32(stack[7]))
	if !ok {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	statusPtr, handlePtr := uint32(stack[8]), uint32(stack[9])

	resp, err := h.outbound.Call(ctx, OutboundRequest{
		Method: method,
		URL:    rawURL,
		Header: parseHeaderBlock(headerBlock),
		Body:   body,
	})
	if err != nil {
		stack[0] = uint64(errno(err))
		return
	}

	h.mu.Lock()
	h.next++
	handle := h.next
	h.responses[handle] = &responseState{header: resp.Header, body: resp.Body}
	h.mu.Unlock()

	if !mem.WriteUint16Le(statusPtr, uint16(resp.Status)) || !mem.WriteUint32Le(handlePtr, handle) {
		h.drop(handle)
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	stack[0] = uint64(ErrnoSuccess)
}

func (h *hostState) close(_ context.Context, _ api.Module, stack []uint64) {
	if !h.drop(uint32(stack[0])) {
		stack[0] = uint64(ErrnoInvalidHandle)
		return
	}
	stack[0] = uint64(ErrnoSuccess)
}

// headerGet copies one header value into the guest buffer. Multiple
// values for a name are joined with ", ".
func (h *hostState) headerGet(_ context.Context, mod api.Module, stack []uint64) {
	mem := mod.Memory()
	resp, ok := h.lookup(uint32(stack[0]))
	if !ok {
		stack[0] = uint64(ErrnoInvalidHandle)
		return
	}
	name, ok := readString(mem, uint32(stack[1]), uint32(stack[2]))
	if !ok {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}

	values := resp.header.Values(name)
	if len(values) == 0 {
		stack[0] = uint64(ErrnoHeaderNotFound)
		return
	}
	value := strings.Join(values, ", ")

	bufPtr, bufLen, writtenPtr := uint32(stack[3]), uint32(stack[4]), uint32(stack[5])
	if uint32(len(value)) > bufLen {
		stack[0] = uint64(ErrnoBufferTooSmall)
		return
	}
	if !mem.Write(bufPtr, []byte(value)) || !mem.WriteUint32Le(writtenPtr, uint32(len(value))) {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	stack[0] = uint64(ErrnoSuccess)
}

// headersGetAll copies the whole header set into the guest buffer in
// the line encoding described by the package documentation.
func (h *hostState) headersGetAll(_ context.Context, mod api.Module, stack []uint64) {
	mem := mod.Memory()
	resp, ok := h.lookup(uint32(stack[0]))
	if !ok {
		stack[0] = uint64(ErrnoInvalidHandle)
		return
	}

	block := encodeHeaderBlock(resp.header)
	bufPtr, bufLen, writtenPtr := uint32(stack[1]), uint32(stack[2]), uint32(stack[3])
	if uint32(len(block)) > bufLen {
		stack[0] = uint64(ErrnoBufferTooSmall)
		return
	}
	if !mem.Write(bufPtr, []byte(block)) || !mem.WriteUint32Le(writtenPtr, uint32(len(block))) {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	stack[0] = uint64(ErrnoSuccess)
}

// bodyRead streams the response body into the guest buffer. Each call
// resumes where the previous one stopped; zero bytes read means the
// body is exhausted.
func (h *hostState) bodyRead(_ context.Context, mod api.Module, stack []uint64) {
	mem := mod.Memory()
	handle := uint32(stack[0])
	bufPtr, bufLen, readPtr := uint32(stack[1]), uint32(stack[2]), uint32(stack[3])

	h.mu.Lock()
	resp, ok := h.responses[handle]
	if !ok {
		h.mu.Unlock()
		stack[0] = uint64(ErrnoInvalidHandle)
		return
	}
	n := len(resp.body) - resp.offset
	if n > int(bufLen) {
		n = int(bufLen)
	}
	chunk := resp.body[resp.offset : resp.offset+n]
	resp.offset += n
	h.mu.Unlock()

	if n > 0 && !mem.Write(bufPtr, chunk) {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	if !mem.WriteUint32Le(readPtr, uint32(n)) {
		stack[0] = uint64(ErrnoMemoryAccess)
		return
	}
	stack[0] = uint64(ErrnoSuccess)
}

func (h *hostState) lookup(handle uint32) (*responseState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	resp, ok := h.responses[handle]
	return resp, ok
}

func (h *hostState) drop(handle uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.responses[handle]; !ok {
		return false
	}
	delete(h.responses, handle)
	return true
}

// errno translates a mediator error into its wire code.
func errno(err error) Errno {
	switch {
	case errors.Is(err, ErrInvalidMethod):
		return ErrnoInvalidMethod
	case errors.Is(err, ErrInvalidURL):
		return ErrnoInvalidURL
	case errors.Is(err, ErrHostNotAllowed):
		return ErrnoDestinationNotAllowed
	case errors.Is(err, ErrTooManyRequests):
		return ErrnoTooManyRequests
	default:
		return ErrnoRequest
	}
}

// parseHeaderBlock decodes the guest header encoding: one name:value
// pair per newline-separated line. Malformed lines are ignored.
func parseHeaderBlock(block string) map[string]string {
	if block == "" {
		return nil
	}
	out := make(map[string]string)
	for _, line := range strings.Split(block, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// encodeHeaderBlock renders headers one "name: value" line at a time,
// names sorted, multiple values joined with ", ".
func encodeHeaderBlock(header http.Header) string {
	var b strings.Builder
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(header.Values(name), ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// readBytes copies out of guest memory; views returned by Read alias
// the guest and go stale across calls.
func readBytes(mem api.Memory, ptr, length uint32) ([]byte, bool) {
	if length == 0 {
		return nil, true
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	return bytes.Clone(view), true
}

func readString(mem api.Memory, ptr, length uint32) (string, bool) {
	if length == 0 {
		return "", true
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(view), true
}
