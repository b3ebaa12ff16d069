// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ergo

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Reader decodes Ergo wire primitives from a byte slice.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a reader over b.  The slice is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Pos returns the offset of the next unread byte.
func (r *Reader) Pos() int {
	return r.pos
}

// since returns the bytes consumed since offset start.
func (r *Reader) since(start int) []byte {
	return r.buf[start:r.pos]
}

// ReadUByte reads a single unsigned byte.
func (r *Reader) ReadUByte() (byte, error) {
	if r.Len() < 1 {
		return 0, messageError("Reader.ReadUByte", "unexpected end "+
			"of data")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// peekUByte returns the next byte without consuming it.
func (r *Reader) peekUByte() (byte, error) {
	if r.Len() < 1 {
		return 0, messageError("Reader.peekUByte", "unexpected end "+
			"of data")
	}
	return r.buf[r.pos], nil
}

// ReadBytes reads n bytes.  The returned slice aliases the reader's buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		str := fmt.Sprintf("need %d bytes, %d remaining", n, r.Len())
		return nil, messageError("Reader.ReadBytes", str)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadULong reads a VLQ encoded unsigned 64-bit integer.
func (r *Reader) ReadULong() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	switch {
	case n == 0:
		return 0, messageError("Reader.ReadULong", "unexpected end "+
			"of data")
	case n < 0:
		return 0, messageError("Reader.ReadULong", "VLQ value "+
			"overflows 64 bits")
	}
	r.pos += n
	return v, nil
}

// ReadUInt reads a VLQ encoded unsigned 32-bit integer.
func (r *Reader) ReadUInt() (uint32, error) {
	v, err := r.ReadULong()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		str := fmt.Sprintf("value %d overflows 32 bits", v)
		return 0, messageError("Reader.ReadUInt", str)
	}
	return uint32(v), nil
}

// ReadUShort reads a VLQ encoded unsigned 16-bit integer.
func (r *Reader) ReadUShort() (uint16, error) {
	v, err := r.ReadULong()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint16 {
		str := fmt.Sprintf("value %d overflows 16 bits", v)
		return 0, messageError("Reader.ReadUShort", str)
	}
	return uint16(v), nil
}

// ReadLong reads a zig-zag VLQ encoded signed 64-bit integer.
func (r *Reader) ReadLong() (int64, error) {
	v, n := binary.Varint(r.buf[r.pos:])
	switch {
	case n == 0:
		return 0, messageError("Reader.ReadLong", "unexpected end "+
			"of data")
	case n < 0:
		return 0, messageError("Reader.ReadLong", "VLQ value "+
			"overflows 64 bits")
	}
	r.pos += n
	return v, nil
}

// ReadInt reads a zig-zag VLQ encoded signed 32-bit integer.
func (r *Reader) ReadInt() (int32, error) {
	v, err := r.ReadLong()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		str := fmt.Sprintf("value %d overflows 32 bits", v)
		return 0, messageError("Reader.ReadInt", str)
	}
	return int32(v), nil
}

// ReadShort reads a zig-zag VLQ encoded signed 16-bit integer.
func (r *Reader) ReadShort() (int16, error) {
	v, err := r.ReadLong()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		str := fmt.Sprintf("value %d overflows 16 bits", v)
		return 0, messageError("Reader.ReadShort", str)
	}
	return int16(v), nil
}

// Writer encodes Ergo wire primitives.  It is the inverse of Reader and never
// fails.
type Writer struct {
	buf []byte
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteUByte appends a single byte.
func (w *Writer) WriteUByte(b byte) *Writer {
	w.buf = append(w.buf, b)
	return w
}

// WriteBytes appends b verbatim.
func (w *Writer) WriteBytes(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// WriteULong appends v VLQ encoded.  It also serves unsigned 16 and 32-bit
// values, which share the encoding.
func (w *Writer) WriteULong(v uint64) *Writer {
	w.buf = binary.AppendUvarint(w.buf, v)
	return w
}

// WriteLong appends v zig-zag VLQ encoded.  It also serves signed 16 and
// 32-bit values.
func (w *Writer) WriteLong(v int64) *Writer {
	w.buf = binary.AppendVarint(w.buf, v)
	return w
}
