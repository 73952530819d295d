// Package thrift reads values encoded with the Thrift binary protocol
// (TBinaryProtocol) from an in-memory buffer.
//
// Only the read half of the protocol is implemented. Callers drive decoding
// themselves: read a Field, switch on it, read the value with the matching
// ReadBuffer method, or hand the field's type to Skip.
package thrift

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidLength = errors.New("thrift: negative length found during unmarshaling")
	ErrIllegalType   = errors.New("thrift: illegal type")
	ErrDepthExceeded = errors.New("thrift: maximum skip depth exceeded")
)

// ReadBuffer is a forward-only cursor over a Thrift payload. Every read
// either consumes exactly the bytes it reports or fails without consuming
// anything.
type ReadBuffer struct {
	data []byte
	pos  int
}

func NewReadBuffer(data []byte) *ReadBuffer {
	return &ReadBuffer{data: data}
}

// Pos is the number of bytes consumed so far.
func (b *ReadBuffer) Pos() int {
	return b.pos
}

// Remaining is the number of unread bytes.
func (b *ReadBuffer) Remaining() int {
	return len(b.data) - b.pos
}

func (b *ReadBuffer) require(n int) error {
	if n < 0 {
		return ErrInvalidLength
	}
	if n > b.Remaining() {
		return fmt.Errorf("thrift: truncated: length %d > bytes remaining %d: %w", n, b.Remaining(), io.ErrUnexpectedEOF)
	}
	return nil
}

func (b *ReadBuffer) ReadByte() (byte, error) {
	if err := b.require(1); err != nil {
		return 0, err
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

func (b *ReadBuffer) ReadInt16() (int16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return int16(v), nil
}

func (b *ReadBuffer) ReadInt32() (int32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(b.data[b.pos:])
	b.pos += 4
	return int32(v), nil
}

func (b *ReadBuffer) ReadInt64() (int64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b.data[b.pos:])
	b.pos += 8
	return int64(v), nil
}

func (b *ReadBuffer) ReadDouble() (float64, error) {
	v, err := b.ReadInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

// ReadBytes returns the next n bytes as a sub-slice of the underlying
// buffer. The slice is only valid as long as the buffer's backing array is;
// copy it before retaining it.
func (b *ReadBuffer) ReadBytes(n int) ([]byte, error) {
	if err := b.require(n); err != nil {
		return nil, err
	}
	v := b.data[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

// ReadUTF8 decodes the next n bytes as UTF-8. Malformed sequences are
// replaced with U+FFFD.
func (b *ReadBuffer) ReadUTF8(n int) (string, error) {
	raw, err := b.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return DecodeUTF8(raw), nil
}

// DecodeUTF8 copies raw into a string, replacing malformed sequences with
// U+FFFD.
func DecodeUTF8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

// Skip discards the next n bytes.
func (b *ReadBuffer) Skip(n int) error {
	if err := b.require(n); err != nil {
		return err
	}
	b.pos += n
	return nil
}

// ReadLength reads an i32 size prefix and checks it against the unread
// bytes. Nothing is consumed when the check fails.
func (b *ReadBuffer) ReadLength() (int, error) {
	start := b.pos
	n, err := b.ReadInt32()
	if err != nil {
		return 0, err
	}
	if err := b.require(int(n)); err != nil {
		b.pos = start
		return 0, err
	}
	return int(n), nil
}

// ReadString reads a size-prefixed UTF-8 string.
func (b *ReadBuffer) ReadString() (string, error) {
	n, err := b.ReadLength()
	if err != nil {
		return "", err
	}
	return b.ReadUTF8(n)
}

// ReadBinary reads a size-prefixed byte string without copying it.
func (b *ReadBuffer) ReadBinary() ([]byte, error) {
	n, err := b.ReadLength()
	if err != nil {
		return nil, err
	}
	return b.ReadBytes(n)
}
