// Package wasmtest hand-assembles tiny WebAssembly binaries for tests, so
// the repository needs no checked-in .wasm fixtures and no guest
// toolchain. Each builder returns a complete module in the binary format.
package wasmtest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// EmptyModule returns a valid module with no sections and no exports.
func EmptyModule() []byte {
	return append([]byte{}, header...)
}

// EntryModule returns a module exporting entry as a no-op function.
func EntryModule(entry string) []byte {
	return cat(
		header,
		section(1, vec([]byte{0x60, 0x00, 0x00})),              // type 0: () -> ()
		section(3, vec([]byte{0x00})),                          // one func of type 0
		section(7, vec(cat(name(entry), []byte{0x00, 0x00}))),  // export entry = func 0
		section(10, vec([]byte{0x02, 0x00, 0x0b})),             // empty body
	)
}

// StartModule returns a module exporting a no-op _start.
func StartModule() []byte {
	return EntryModule("_start")
}

// ImportModule returns a module importing one () -> () function from the
// named host module and calling it from _start.
func ImportModule(module, field string) []byte {
	return cat(
		header,
		section(1, vec([]byte{0x60, 0x00, 0x00})),
		section(2, vec(cat(name(module), name(field), []byte{0x00, 0x00}))),
		section(3, vec([]byte{0x00})),
		section(7, vec(cat(name("_start"), []byte{0x00, 0x01}))), // func 1, after the import
		section(10, vec([]byte{0x04, 0x00, 0x10, 0x00, 0x0b})),   // call 0
	)
}

// OutboundImportModule returns a module importing the outbound req
// function, with its real ten-i32 signature, from the named host module.
// Its _start is a no-op, so the module links against the capability
// without ever calling it.
func OutboundImportModule(module string) []byte {
	reqType := cat([]byte{0x60, 0x0a}, repeat(0x7f, 10), []byte{0x01, 0x7f})
	return cat(
		header,
		section(1, vec(reqType, []byte{0x60, 0x00, 0x00})),
		section(2, vec(cat(name(module), name("req"), []byte{0x00, 0x00}))),
		section(3, vec([]byte{0x01})),
		section(7, vec(cat(name("_start"), []byte{0x00, 0x01}))),
		section(10, vec([]byte{0x02, 0x00, 0x0b})),
	)
}

// MemoryModule returns a module exporting one page of memory and
// nothing else. It never runs; tests use its memory as scratch space
// for host function calls.
func MemoryModule() []byte {
	return cat(
		header,
		section(5, vec([]byte{0x00, 0x01})),
		section(7, vec(cat(name("memory"), []byte{0x02, 0x00}))),
	)
}

// WASIWriteModule returns a module whose _start writes output to the
// given WASI file descriptor (1 stdout, 2 stderr) through fd_write.
func WASIWriteModule(fd int32, output string) []byte {
	const iovecPtr, strPtr = 0, 8
	nwrittenPtr := align4(strPtr + int32(len(output)))

	body := cat(
		[]byte{0x00}, // no locals
		i32const(fd),
		i32const(iovecPtr),
		i32const(1), // one iovec
		i32const(nwrittenPtr),
		[]byte{0x10, 0x00}, // call fd_write
		[]byte{0x1a, 0x0b}, // drop errno, end
	)

	data := cat(le32(strPtr), le32(int32(len(output))), []byte(output))

	return cat(
		header,
		section(1, vec(
			[]byte{0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f}, // fd_write
			[]byte{0x60, 0x00, 0x00},
		)),
		section(2, vec(cat(name("wasi_snapshot_preview1"), name("fd_write"), []byte{0x00, 0x00}))),
		section(3, vec([]byte{0x01})),
		section(5, vec([]byte{0x00, 0x01})), // memory: 1 page min
		section(7, vec(
			cat(name("memory"), []byte{0x02, 0x00}),
			cat(name("_start"), []byte{0x00, 0x01}),
		)),
		section(10, vec(cat(uleb(uint32(len(body))), body))),
		section(11, vec(dataSegment(0, data))),
	)
}

// CGIModule returns a module that answers every request with a fixed CGI
// response on stdout.
func CGIModule(response string) []byte {
	return WASIWriteModule(1, response)
}

// StderrModule returns a module that writes output to stderr and nothing
// to stdout.
func StderrModule(output string) []byte {
	return WASIWriteModule(2, output)
}

// LoopModule returns a module whose _start never returns. Use it to
// exercise deadlines.
func LoopModule() []byte {
	return cat(
		header,
		section(1, vec([]byte{0x60, 0x00, 0x00})),
		section(3, vec([]byte{0x00})),
		section(7, vec(cat(name("_start"), []byte{0x00, 0x00}))),
		section(10, vec([]byte{0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b})),
	)
}

// ExitModule returns a module whose _start calls proc_exit with code.
func ExitModule(code int32) []byte {
	body := cat([]byte{0x00}, i32const(code), []byte{0x10, 0x00, 0x0b})
	return cat(
		header,
		section(1, vec([]byte{0x60, 0x01, 0x7f, 0x00}, []byte{0x60, 0x00, 0x00})),
		section(2, vec(cat(name("wasi_snapshot_preview1"), name("proc_exit"), []byte{0x00, 0x00}))),
		section(3, vec([]byte{0x01})),
		section(7, vec(cat(name("_start"), []byte{0x00, 0x01}))),
		section(10, vec(cat(uleb(uint32(len(body))), body))),
	)
}

// EchoModule returns a module whose _start writes prefix to stdout, then
// reads once from stdin (up to 4KB) and writes what it got after the
// prefix. With a CGI header block as the prefix it turns a request body
// into a response body.
func EchoModule(prefix string) []byte {
	// Layout: iovec for the prefix at 0, iovec for the stdin buffer at 8,
	// nread at 16, nwritten at 20, prefix text at 64, buffer at 1024.
	body := cat(
		[]byte{0x00},
		i32const(1), i32const(0), i32const(1), i32const(20),
		[]byte{0x10, 0x00, 0x1a}, // call fd_write, drop errno
		i32const(0), i32const(8), i32const(1), i32const(16),
		[]byte{0x10, 0x01, 0x1a}, // call fd_read, drop errno
		i32const(12),             // buffer iovec length slot
		i32const(16), []byte{0x28, 0x02, 0x00}, // load nread
		[]byte{0x36, 0x02, 0x00}, // store it as the iovec length
		i32const(1), i32const(8), i32const(1), i32const(20),
		[]byte{0x10, 0x00, 0x1a},
		[]byte{0x0b},
	)

	iovecs := cat(le32(64), le32(int32(len(prefix))), le32(1024), le32(4096))

	return cat(
		header,
		section(1, vec(
			[]byte{0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f},
			[]byte{0x60, 0x00, 0x00},
		)),
		section(2, vec(
			cat(name("wasi_snapshot_preview1"), name("fd_write"), []byte{0x00, 0x00}),
			cat(name("wasi_snapshot_preview1"), name("fd_read"), []byte{0x00, 0x00}),
		)),
		section(3, vec([]byte{0x01})),
		section(5, vec([]byte{0x00, 0x01})),
		section(7, vec(
			cat(name("memory"), []byte{0x02, 0x00}),
			cat(name("_start"), []byte{0x00, 0x02}),
		)),
		section(10, vec(cat(uleb(uint32(len(body))), body))),
		section(11, vec(
			dataSegment(0, iovecs),
			dataSegment(64, []byte(prefix)),
		)),
	)
}

// HTTPCallModule returns a module whose _start performs one outbound call
// through the req import of the named host module, with the given URL and
// method in its data segment.
func HTTPCallModule(module, url, method string) []byte {
	urlPtr := int32(0)
	methodPtr := int32(len(url))
	statusPtr := align4(methodPtr + int32(len(method)))
	handlePtr := statusPtr + 4

	reqType := cat([]byte{0x60, 0x0a}, repeat(0x7f, 10), []byte{0x01, 0x7f})
	body := cat(
		[]byte{0x00},
		i32const(urlPtr), i32const(int32(len(url))),
		i32const(methodPtr), i32const(int32(len(method))),
		i32const(0), i32const(0), // no headers
		i32const(0), i32const(0), // no body
		i32const(statusPtr), i32const(handlePtr),
		[]byte{0x10, 0x00}, // call req
		[]byte{0x1a, 0x0b}, // drop errno, end
	)

	return cat(
		header,
		section(1, vec(reqType, []byte{0x60, 0x00, 0x00})),
		section(2, vec(cat(name(module), name("req"), []byte{0x00, 0x00}))),
		section(3, vec([]byte{0x01})),
		section(5, vec([]byte{0x00, 0x01})),
		section(7, vec(
			cat(name("memory"), []byte{0x02, 0x00}),
			cat(name("_start"), []byte{0x00, 0x01}),
		)),
		section(10, vec(cat(uleb(uint32(len(body))), body))),
		section(11, vec(dataSegment(0, []byte(url+method)))),
	)
}

// WriteFile drops a module into dir and returns its path.
func WriteFile(tb testing.TB, dir, filename string, wasm []byte) string {
	tb.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, wasm, 0o644); err != nil {
		tb.Fatalf("write %s: %v", filename, err)
	}
	return path
}

// Binary-format helpers.

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func i32const(v int32) []byte {
	return append([]byte{0x41}, sleb(v)...)
}

func le32(v int32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(v))
	return out
}

func section(id byte, payload []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func dataSegment(offset int32, data []byte) []byte {
	return cat(
		[]byte{0x00}, // active segment, memory 0
		i32const(offset), []byte{0x0b},
		uleb(uint32(len(data))), data,
	)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func align4(v int32) int32 {
	return (v + 3) &^ 3
}
