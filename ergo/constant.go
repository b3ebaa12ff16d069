// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ergo

import (
	"fmt"
	"unicode/utf8"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// groupElementSize is the size of a compressed secp256k1 point.
	groupElementSize = 33

	// maxBigIntSize is the largest serialized BigInt magnitude.
	maxBigIntSize = 32

	// avlDigestSize is the size of an AVL+ tree root digest, a 32 byte
	// hash followed by the tree height.
	avlDigestSize = 33
)

// Sigma proposition node opcodes.
const (
	opTrue         = 0x7f
	opFalse        = 0x80
	opAnd          = 0x96
	opOr           = 0x97
	opAtLeast      = 0x98
	opProveDlog    = 0xcd
	opProveDHTuple = 0xce
)

// Constant is a typed value as serialized in registers, context extensions
// and segregated ErgoTree constants.
type Constant struct {
	Type *SType

	// Bytes holds the serialized type followed by the serialized value.
	Bytes []byte
}

// ReadConstant decodes a constant, validating its value against its type.
func (r *Reader) ReadConstant() (Constant, error) {
	start := r.Pos()

	t, err := r.ReadType()
	if err != nil {
		return Constant{}, err
	}
	if err := r.skipValue(t, 0); err != nil {
		return Constant{}, err
	}

	return Constant{Type: t, Bytes: r.since(start)}, nil
}

// skipValue consumes a value of type t, failing if it is not a valid
// encoding.
func (r *Reader) skipValue(t *SType, depth int) error {
	if depth > maxDepth {
		return messageError("Reader.skipValue", "value nesting too deep")
	}

	switch t.Kind {
	case KindBoolean:
		b, err := r.ReadUByte()
		if err != nil {
			return err
		}
		if b > 1 {
			str := fmt.Sprintf("invalid boolean %d", b)
			return messageError("Reader.skipValue", str)
		}
		return nil

	case KindByte:
		_, err := r.ReadUByte()
		return err

	case KindShort:
		_, err := r.ReadShort()
		return err

	case KindInt:
		_, err := r.ReadInt()
		return err

	case KindLong:
		_, err := r.ReadLong()
		return err

	case KindBigInt:
		n, err := r.ReadUShort()
		if err != nil {
			return err
		}
		if n > maxBigIntSize {
			str := fmt.Sprintf("BigInt of %d bytes exceeds %d", n,
				maxBigIntSize)
			return messageError("Reader.skipValue", str)
		}
		_, err = r.ReadBytes(int(n))
		return err

	case KindGroupElement:
		return r.skipGroupElement()

	case KindSigmaProp:
		return r.skipSigmaBoolean(depth + 1)

	case KindUnit:
		return nil

	case KindString:
		n, err := r.ReadUInt()
		if err != nil {
			return err
		}
		s, err := r.ReadBytes(int(n))
		if err != nil {
			return err
		}
		if !utf8.Valid(s) {
			return messageError("Reader.skipValue", "string is not "+
				"valid UTF-8")
		}
		return nil

	case KindColl:
		return r.skipColl(t.Elem, depth)

	case KindOption:
		tag, err := r.ReadUByte()
		if err != nil {
			return err
		}
		switch tag {
		case 0:
			return nil
		case 1:
			return r.skipValue(t.Elem, depth+1)
		}
		str := fmt.Sprintf("invalid option tag %d", tag)
		return messageError("Reader.skipValue", str)

	case KindTuple:
		for _, item := range t.Items {
			if err := r.skipValue(item, depth+1); err != nil {
				return err
			}
		}
		return nil

	case KindAvlTree:
		return r.skipAvlTree()
	}

	str := fmt.Sprintf("values of type %v cannot be deserialized", t)
	return messageError("Reader.skipValue", str)
}

func (r *Reader) skipColl(elem *SType, depth int) error {
	n, err := r.ReadUShort()
	if err != nil {
		return err
	}

	switch elem.Kind {
	// Booleans are packed eight per byte.
	case KindBoolean:
		_, err := r.ReadBytes((int(n) + 7) / 8)
		return err

	case KindByte:
		_, err := r.ReadBytes(int(n))
		return err
	}

	for i := 0; i < int(n); i++ {
		if err := r.skipValue(elem, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// skipGroupElement consumes a compressed point.  The all-zero encoding is
// the group identity.
func (r *Reader) skipGroupElement() error {
	b, err := r.ReadBytes(groupElementSize)
	if err != nil {
		return err
	}
	if isZero(b) {
		return nil
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		str := fmt.Sprintf("invalid group element: %v", err)
		return messageError("Reader.skipGroupElement", str)
	}
	return nil
}

// skipSigmaBoolean consumes a sigma proposition tree.
func (r *Reader) skipSigmaBoolean(depth int) error {
	if depth > maxDepth {
		return messageError("Reader.skipSigmaBoolean", "proposition "+
			"nesting too deep")
	}

	op, err := r.ReadUByte()
	if err != nil {
		return err
	}

	switch op {
	case opTrue, opFalse:
		return nil

	case opProveDlog:
		return r.skipGroupElement()

	case opProveDHTuple:
		for i := 0; i < 4; i++ {
			if err := r.skipGroupElement(); err != nil {
				return err
			}
		}
		return nil

	case opAnd, opOr:
		n, err := r.ReadUShort()
		if err != nil {
			return err
		}
		return r.skipSigmaChildren(int(n), depth)

	case opAtLeast:
		k, err := r.ReadUShort()
		if err != nil {
			return err
		}
		n, err := r.ReadUShort()
		if err != nil {
			return err
		}
		if k > n {
			str := fmt.Sprintf("threshold %d of %d children", k, n)
			return messageError("Reader.skipSigmaBoolean", str)
		}
		return r.skipSigmaChildren(int(n), depth)
	}

	str := fmt.Sprintf("unknown sigma proposition opcode %#x", op)
	return messageError("Reader.skipSigmaBoolean", str)
}

func (r *Reader) skipSigmaChildren(n, depth int) error {
	for i := 0; i < n; i++ {
		if err := r.skipSigmaBoolean(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

// skipAvlTree consumes AVL+ tree data: root digest, operation flags, key
// length and an optional fixed value length.
func (r *Reader) skipAvlTree() error {
	if _, err := r.ReadBytes(avlDigestSize); err != nil {
		return err
	}
	if _, err := r.ReadUByte(); err != nil {
		return err
	}
	if _, err := r.ReadUInt(); err != nil {
		return err
	}

	tag, err := r.ReadUByte()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		return nil
	case 1:
		_, err := r.ReadUInt()
		return err
	}
	str := fmt.Sprintf("invalid value length tag %d", tag)
	return messageError("Reader.skipAvlTree", str)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
