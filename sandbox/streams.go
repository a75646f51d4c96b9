package sandbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// spillThreshold is how many bytes a Buffer holds in memory before the
// content moves to a temporary file.
const spillThreshold = 1 << 20 // 1MB

// Buffer is a write-then-read byte store backing one stdio stream. Small
// payloads stay in memory; past spillThreshold the content moves to a
// temporary file that is unlinked the moment it is created, so the
// backing storage is reclaimed on every exit path. Write everything,
// then read back; Close releases the storage and is safe to call twice.
type Buffer struct {
	mem    bytes.Buffer
	file   *os.File
	closed bool
}

func (b *Buffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, os.ErrClosed
	}
	if b.file != nil {
		return b.file.Write(p)
	}
	if b.mem.Len()+len(p) <= spillThreshold {
		return b.mem.Write(p)
	}

	f, err := os.CreateTemp("", "wagi-stdio-*")
	if err != nil {
		return 0, fmt.Errorf("spill stdio buffer: %w", err)
	}
	// Unlink immediately; the open descriptor keeps the data readable.
	os.Remove(f.Name())
	if _, err := f.Write(b.mem.Bytes()); err != nil {
		f.Close()
		return 0, fmt.Errorf("spill stdio buffer: %w", err)
	}
	b.mem.Reset()
	b.file = f
	return f.Write(p)
}

// Bytes returns everything written so far.
func (b *Buffer) Bytes() ([]byte, error) {
	if b.closed {
		return nil, os.ErrClosed
	}
	if b.file == nil {
		return b.mem.Bytes(), nil
	}
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind stdio buffer: %w", err)
	}
	return io.ReadAll(b.file)
}

// Reader rewinds the buffer and returns a reader over its full content.
func (b *Buffer) Reader() (io.Reader, error) {
	if b.closed {
		return nil, os.ErrClosed
	}
	if b.file == nil {
		return bytes.NewReader(b.mem.Bytes()), nil
	}
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind stdio buffer: %w", err)
	}
	return b.file, nil
}

// Len reports how many bytes have been written.
func (b *Buffer) Len() (int64, error) {
	if b.closed {
		return 0, os.ErrClosed
	}
	if b.file == nil {
		return int64(b.mem.Len()), nil
	}
	return b.file.Seek(0, io.SeekEnd)
}

// Close releases the backing storage.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.mem.Reset()
	if b.file != nil {
		err := b.file.Close()
		b.file = nil
		return err
	}
	return nil
}

// Streams carries the three stdio stores for one execution. Acquire with
// NewStreams before execution begins and Close on every exit path.
type Streams struct {
	In  *Buffer
	Out *Buffer
	Err *Buffer
}

func NewStreams() *Streams {
	return &Streams{In: &Buffer{}, Out: &Buffer{}, Err: &Buffer{}}
}

// Close releases all three buffers.
func (s *Streams) Close() error {
	return errors.Join(s.In.Close(), s.Out.Close(), s.Err.Close())
}
