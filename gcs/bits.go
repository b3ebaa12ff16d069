// Copyright (c) 2018 The Decred developers
// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gcs

import (
	"io"

	"github.com/kkdai/bstream"
)

// golombWriter accumulates Golomb-Rice codes with a fixed remainder width of
// p bits into a byte aligned buffer.
type golombWriter struct {
	p      uint8
	stream *bstream.BStream
}

func newGolombWriter(p uint8) *golombWriter {
	return &golombWriter{
		p:      p,
		stream: bstream.NewBStreamWriter(0),
	}
}

// writeUint64 writes v>>p one bits terminated by a zero bit, followed by the p
// low bits of v, most significant bit first.
func (w *golombWriter) writeUint64(v uint64) {
	for q := v >> w.p; q > 0; q-- {
		w.stream.WriteBit(true)
	}
	w.stream.WriteBit(false)

	w.stream.WriteBits(v&(uint64(1)<<w.p-1), int(w.p))
}

// bytes returns the codes written so far.  The final partial byte is padded
// with zero bits.
func (w *golombWriter) bytes() []byte {
	return w.stream.Bytes()
}

// bitReader reads bits from a byte slice without modifying it, so a single
// filter buffer can back any number of concurrent readers.
type bitReader struct {
	bytes []byte
	next  byte // next bit to read in bytes[0]
}

func newBitReader(bitstream []byte) bitReader {
	return bitReader{
		bytes: bitstream,
		next:  1 << 7,
	}
}

// readUnary returns the number of unread sequential one bits before the next
// zero bit.  Errors with io.EOF if no zero bits are encountered.
func (b *bitReader) readUnary() (uint64, error) {
	var value uint64

	for {
		if len(b.bytes) == 0 {
			return value, io.EOF
		}

		for b.next != 0 {
			bit := b.bytes[0] & b.next
			b.next >>= 1
			if bit == 0 {
				return value, nil
			}
			value++
		}

		b.bytes = b.bytes[1:]
		b.next = 1 << 7
	}
}

// readNBits reads n number of LSB bits of data from the bit stream in big
// endian format.  Panics if n > 64.
func (b *bitReader) readNBits(n uint) (uint64, error) {
	if n > 64 {
		panic("gcs: cannot read more than 64 bits as a uint64")
	}

	if n == 0 {
		return 0, nil
	}
	if len(b.bytes) == 0 {
		return 0, io.EOF
	}

	var value uint64

	// If byte is partially read, read the rest
	if b.next != 1<<7 {
		for n > 0 {
			if b.next == 0 {
				b.next = 1 << 7
				b.bytes = b.bytes[1:]
				break
			}

			n--
			if b.bytes[0]&b.next != 0 {
				value |= 1 << n
			}
			b.next >>= 1
		}
	}

	if n == 0 {
		return value, nil
	}

	// Read 8 bits at a time.
	for n >= 8 {
		if len(b.bytes) == 0 {
			return 0, io.EOF
		}

		n -= 8
		value |= uint64(b.bytes[0]) << n
		b.bytes = b.bytes[1:]
	}

	if len(b.bytes) == 0 {
		if n != 0 {
			return 0, io.EOF
		}
		return value, nil
	}

	// Read the remaining bits.
	for n > 0 {
		if b.next == 0 {
			b.bytes = b.bytes[1:]
			if len(b.bytes) == 0 {
				return 0, io.EOF
			}
			b.next = 1 << 7
		}

		n--
		if b.bytes[0]&b.next != 0 {
			value |= 1 << n
		}
		b.next >>= 1
	}

	return value, nil
}

// readGolomb reads a value represented by the sum of a unary multiple of
// `2**p` and a big-endian p-bit remainder.  Running out of bits is reported as
// ErrCorruptFilter.
func (b *bitReader) readGolomb(p uint8) (uint64, error) {
	q, err := b.readUnary()
	if err != nil {
		return 0, MakeError(ErrCorruptFilter,
			"filter ended inside a unary quotient")
	}

	r, err := b.readNBits(uint(p))
	if err != nil {
		return 0, MakeError(ErrCorruptFilter,
			"filter ended inside a remainder")
	}

	return q<<p + r, nil
}
