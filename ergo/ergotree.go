// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ergo

import (
	"fmt"
)

// ErgoTree header flags.
const (
	treeVersionMask      = 0x07
	treeSizeFlag         = 0x08
	treeConstSegregation = 0x10

	// opConstantPlaceholder references a segregated constant by index.
	opConstantPlaceholder = 0x73
)

// ReadErgoTree consumes a serialized ErgoTree and returns its exact bytes.
//
// A tree whose header carries the size flag is taken verbatim.  Other trees
// must be rooted in a constant, either inline or through a placeholder into
// the segregated constants, which covers every pay-to-public-key script.
// Any other expression tree cannot be delimited without a full expression
// decoder and is reported as unsupported.
func (r *Reader) ReadErgoTree() ([]byte, error) {
	start := r.Pos()

	header, err := r.ReadUByte()
	if err != nil {
		return nil, err
	}

	if header&treeSizeFlag != 0 {
		size, err := r.ReadUInt()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadBytes(int(size)); err != nil {
			return nil, err
		}
		return r.since(start), nil
	}

	if header&treeVersionMask != 0 {
		str := fmt.Sprintf("version %d tree without a size",
			header&treeVersionMask)
		return nil, messageError("Reader.ReadErgoTree", str)
	}

	var numConstants uint32
	if header&treeConstSegregation != 0 {
		numConstants, err = r.ReadUInt()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < numConstants; i++ {
			if _, err := r.ReadConstant(); err != nil {
				return nil, err
			}
		}
	}

	op, err := r.peekUByte()
	if err != nil {
		return nil, err
	}

	switch {
	case op != 0 && op <= lastConstantCode:
		if _, err := r.ReadConstant(); err != nil {
			return nil, err
		}

	case op == opConstantPlaceholder:
		r.pos++
		idx, err := r.ReadUInt()
		if err != nil {
			return nil, err
		}
		if idx >= numConstants {
			str := fmt.Sprintf("placeholder %d out of %d constants",
				idx, numConstants)
			return nil, messageError("Reader.ReadErgoTree", str)
		}

	default:
		str := fmt.Sprintf("unsupported root expression opcode %#x "+
			"in unsized tree", op)
		return nil, messageError("Reader.ReadErgoTree", str)
	}

	return r.since(start), nil
}
