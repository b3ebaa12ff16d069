// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package ergo implements decoding of the Ergo transaction wire format far
enough to extract the box scripts (ErgoTrees) a committed filter needs.

Ergo serializes integers as VLQ (unsigned LEB128) and signed integers with
zig-zag encoding on top.  Transactions reference boxes by 32 byte identifiers
and carry typed constants in context extensions and box registers.  Constants
are fully decoded and validated so that the reader stays aligned on the next
field; the raw bytes of every constant and every ErgoTree are retained so
callers can commit to exactly what was on the wire.

Errors

Data that does not follow the encoding rules, including data that ends early,
is reported as a *MessageError.  The caller is responsible for mapping it to
its own error domain.
*/
package ergo
