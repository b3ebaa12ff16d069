// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ergo

import (
	"fmt"
	"strings"
)

// Kind identifies an Ergo type constructor.
type Kind uint8

// These constants define the supported type kinds.  Primitive kinds share
// their wire type code.
const (
	KindBoolean      Kind = 1
	KindByte         Kind = 2
	KindShort        Kind = 3
	KindInt          Kind = 4
	KindLong         Kind = 5
	KindBigInt       Kind = 6
	KindGroupElement Kind = 7
	KindSigmaProp    Kind = 8

	KindColl      Kind = 12
	KindOption    Kind = 36
	KindTuple     Kind = 96
	KindAny       Kind = 97
	KindUnit      Kind = 98
	KindBox       Kind = 99
	KindAvlTree   Kind = 100
	KindContext   Kind = 101
	KindString    Kind = 102
	KindTypeVar   Kind = 103
	KindHeader    Kind = 104
	KindPreHeader Kind = 105
	KindGlobal    Kind = 106
)

// Map of kinds back to their names for pretty printing.
var kindStrings = map[Kind]string{
	KindBoolean:      "Boolean",
	KindByte:         "Byte",
	KindShort:        "Short",
	KindInt:          "Int",
	KindLong:         "Long",
	KindBigInt:       "BigInt",
	KindGroupElement: "GroupElement",
	KindSigmaProp:    "SigmaProp",
	KindColl:         "Coll",
	KindOption:       "Option",
	KindTuple:        "Tuple",
	KindAny:          "Any",
	KindUnit:         "Unit",
	KindBox:          "Box",
	KindAvlTree:      "AvlTree",
	KindContext:      "Context",
	KindString:       "String",
	KindTypeVar:      "TypeVar",
	KindHeader:       "Header",
	KindPreHeader:    "PreHeader",
	KindGlobal:       "Global",
}

// String returns the Kind in human-readable form.
func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Kind (%d)", uint8(k))
}

const (
	// primRange is the number of codes reserved for each type
	// constructor applied to a primitive.
	primRange = 12

	// lastConstantCode is the highest first byte of a serialized
	// constant.  Bytes above it start an expression opcode.
	lastConstantCode = 112

	// maxDepth bounds the nesting of types and values.
	maxDepth = 110
)

// SType is a decoded Ergo type.
type SType struct {
	Kind Kind

	// Elem is the element type of Coll and Option.
	Elem *SType

	// Items are the component types of a Tuple.
	Items []*SType

	// Name is set for type variables.
	Name string
}

// String returns the type in Ergo notation, e.g. Coll[(Int, Long)].
func (t *SType) String() string {
	switch t.Kind {
	case KindColl, KindOption:
		return fmt.Sprintf("%v[%v]", t.Kind, t.Elem)
	case KindTuple:
		items := make([]string, 0, len(t.Items))
		for _, item := range t.Items {
			items = append(items, item.String())
		}
		return "(" + strings.Join(items, ", ") + ")"
	case KindTypeVar:
		return t.Name
	}
	return t.Kind.String()
}

func collOf(elem *SType) *SType {
	return &SType{Kind: KindColl, Elem: elem}
}

func optionOf(elem *SType) *SType {
	return &SType{Kind: KindOption, Elem: elem}
}

func tupleOf(items ...*SType) *SType {
	return &SType{Kind: KindTuple, Items: items}
}

// embeddable returns the primitive type with the given code.  Only primitives
// can be embedded in the code of a type constructor.
func embeddable(code byte) (*SType, error) {
	if code < byte(KindBoolean) || code > byte(KindSigmaProp) {
		str := fmt.Sprintf("code %d is not an embeddable type", code)
		return nil, messageError("embeddable", str)
	}
	return &SType{Kind: Kind(code)}, nil
}

// ReadType decodes a serialized type.
func (r *Reader) ReadType() (*SType, error) {
	return r.readType(0)
}

func (r *Reader) readType(depth int) (*SType, error) {
	if depth > maxDepth {
		return nil, messageError("Reader.ReadType", "type nesting "+
			"too deep")
	}

	c, err := r.ReadUByte()
	if err != nil {
		return nil, err
	}
	if c == 0 {
		return nil, messageError("Reader.ReadType", "invalid type code 0")
	}

	// elemOf reads the element type of a constructor, either embedded in
	// the code or following it.
	elemOf := func(primID byte) (*SType, error) {
		if primID == 0 {
			return r.readType(depth + 1)
		}
		return embeddable(primID)
	}

	if c < byte(KindTuple) {
		constrID := c / primRange
		primID := c % primRange

		switch constrID {
		case 0:
			return embeddable(primID)

		case 1:
			elem, err := elemOf(primID)
			if err != nil {
				return nil, err
			}
			return collOf(elem), nil

		case 2:
			elem, err := elemOf(primID)
			if err != nil {
				return nil, err
			}
			return collOf(collOf(elem)), nil

		case 3:
			elem, err := elemOf(primID)
			if err != nil {
				return nil, err
			}
			return optionOf(elem), nil

		case 4:
			elem, err := elemOf(primID)
			if err != nil {
				return nil, err
			}
			return optionOf(collOf(elem)), nil

		// (prim, T) or, without an embedded primitive, (T1, T2).
		case 5:
			var first *SType
			if primID == 0 {
				first, err = r.readType(depth + 1)
			} else {
				first, err = embeddable(primID)
			}
			if err != nil {
				return nil, err
			}
			second, err := r.readType(depth + 1)
			if err != nil {
				return nil, err
			}
			return tupleOf(first, second), nil

		// (T, prim) or, without an embedded primitive, a triple.
		case 6:
			if primID == 0 {
				return r.readTuple(3, depth)
			}
			first, err := r.readType(depth + 1)
			if err != nil {
				return nil, err
			}
			second, err := embeddable(primID)
			if err != nil {
				return nil, err
			}
			return tupleOf(first, second), nil

		// (prim, prim) or, without an embedded primitive, a quadruple.
		case 7:
			if primID == 0 {
				return r.readTuple(4, depth)
			}
			t, err := embeddable(primID)
			if err != nil {
				return nil, err
			}
			return tupleOf(t, t), nil
		}
	}

	switch Kind(c) {
	case KindTuple:
		n, err := r.ReadUByte()
		if err != nil {
			return nil, err
		}
		return r.readTuple(int(n), depth)

	case KindAny, KindUnit, KindBox, KindAvlTree, KindContext,
		KindString, KindHeader, KindPreHeader, KindGlobal:

		return &SType{Kind: Kind(c)}, nil

	case KindTypeVar:
		n, err := r.ReadUByte()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		return &SType{Kind: KindTypeVar, Name: string(name)}, nil
	}

	str := fmt.Sprintf("unsupported type code %d", c)
	return nil, messageError("Reader.ReadType", str)
}

func (r *Reader) readTuple(n, depth int) (*SType, error) {
	items := make([]*SType, 0, n)
	for i := 0; i < n; i++ {
		item, err := r.readType(depth + 1)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return tupleOf(items...), nil
}
