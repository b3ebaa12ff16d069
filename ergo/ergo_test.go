// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ergo_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ergvein/filters/ergo"
	"github.com/stretchr/testify/require"
)

// pubKey returns a fresh compressed public key.
func pubKey(t *testing.T) []byte {
	t.Helper()

	privKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return privKey.PubKey().SerializeCompressed()
}

// p2pkTree returns the pay to public key ErgoTree of pk.
func p2pkTree(pk []byte) []byte {
	return append([]byte{0x00, 0x08, 0xcd}, pk...)
}

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func isMessageError(err error) bool {
	var merr *ergo.MessageError
	return errors.As(err, &merr)
}

// TestReaderPrimitives checks VLQ and zig-zag decoding.
func TestReaderPrimitives(t *testing.T) {
	ulongs := []struct {
		in   []byte
		want uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xff, 0xff, 0x03}, 65535},
		{[]byte{0x82, 0xda, 0xe2, 0x04}, 10000002},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0x01}, 1<<64 - 1},
	}
	for i, test := range ulongs {
		r := ergo.NewReader(test.in)
		got, err := r.ReadULong()
		if err != nil {
			t.Fatalf("#%d: unexpected error: %v", i, err)
		}
		if got != test.want || r.Len() != 0 {
			t.Fatalf("#%d: got %d with %d bytes left, want %d", i,
				got, r.Len(), test.want)
		}
	}

	longs := []struct {
		in   []byte
		want int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, -1},
		{[]byte{0x02}, 1},
		{[]byte{0x03}, -2},
		{[]byte{0xfe, 0x01}, 127},
		{[]byte{0xff, 0x01}, -128},
	}
	for i, test := range longs {
		got, err := ergo.NewReader(test.in).ReadLong()
		if err != nil {
			t.Fatalf("#%d: unexpected error: %v", i, err)
		}
		if got != test.want {
			t.Fatalf("#%d: got %d, want %d", i, got, test.want)
		}
	}

	r := ergo.NewReader([]byte{0x80, 0x80, 0x04})
	_, err := r.ReadUShort()
	require.True(t, isMessageError(err), "got %v", err)

	r = ergo.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x10})
	_, err = r.ReadUInt()
	require.True(t, isMessageError(err), "got %v", err)

	r = ergo.NewReader([]byte{0x80})
	_, err = r.ReadULong()
	require.True(t, isMessageError(err), "got %v", err)

	r = ergo.NewReader([]byte{0xfe, 0xff, 0xff, 0xff, 0x1f})
	_, err = r.ReadInt()
	require.True(t, isMessageError(err), "got %v", err)

	r = ergo.NewReader([]byte{0x01, 0x02})
	_, err = r.ReadBytes(3)
	require.True(t, isMessageError(err), "got %v", err)
	require.Equal(t, 2, r.Len())
}

// TestWriterRoundTrip ensures the writer produces what the reader expects.
func TestWriterRoundTrip(t *testing.T) {
	var w ergo.Writer
	w.WriteUByte(0xab).WriteULong(10000002).WriteLong(-300).
		WriteULong(65535).WriteBytes([]byte("box"))

	r := ergo.NewReader(w.Bytes())
	b, err := r.ReadUByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xab), b)

	u, err := r.ReadUInt()
	require.NoError(t, err)
	require.Equal(t, uint32(10000002), u)

	i, err := r.ReadInt()
	require.NoError(t, err)
	require.Equal(t, int32(-300), i)

	s, err := r.ReadUShort()
	require.NoError(t, err)
	require.Equal(t, uint16(65535), s)

	raw, err := r.ReadBytes(3)
	require.NoError(t, err)
	require.Equal(t, []byte("box"), raw)
	require.Zero(t, r.Len())
}

// TestReadType checks type decoding including the codes embedding a
// primitive in a constructor.
func TestReadType(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte{0x01}, "Boolean"},
		{[]byte{0x08}, "SigmaProp"},
		{[]byte{0x0e}, "Coll[Byte]"},
		{[]byte{0x0c, 0x05}, "Coll[Long]"},
		{[]byte{0x1a}, "Coll[Coll[Byte]]"},
		{[]byte{0x28}, "Option[Int]"},
		{[]byte{0x24, 0x63}, "Option[Box]"},
		{[]byte{0x32}, "Option[Coll[Byte]]"},
		{[]byte{0x40, 0x05}, "(Int, Long)"},
		{[]byte{0x3c, 0x0e, 0x04}, "(Coll[Byte], Int)"},
		{[]byte{0x4c, 0x0e}, "(Coll[Byte], Int)"},
		{[]byte{0x48, 0x01, 0x02, 0x03}, "(Boolean, Byte, Short)"},
		{[]byte{0x59}, "(Long, Long)"},
		{[]byte{0x54, 0x01, 0x02, 0x03, 0x04},
			"(Boolean, Byte, Short, Int)"},
		{[]byte{0x60, 0x02, 0x04, 0x05}, "(Int, Long)"},
		{[]byte{0x0c, 0x3c, 0x0e, 0x0e}, "Coll[(Coll[Byte], Coll[Byte])]"},
		{[]byte{0x62}, "Unit"},
		{[]byte{0x64}, "AvlTree"},
		{[]byte{0x66}, "String"},
		{[]byte{0x67, 0x01, 'T'}, "T"},
	}

	for i, test := range tests {
		r := ergo.NewReader(test.in)
		got, err := r.ReadType()
		if err != nil {
			t.Fatalf("#%d: unexpected error: %v", i, err)
		}
		if got.String() != test.want {
			t.Fatalf("#%d: got %v, want %v", i, got, test.want)
		}
		if r.Len() != 0 {
			t.Fatalf("#%d: %d bytes left", i, r.Len())
		}
	}

	bad := [][]byte{
		{},
		{0x00},
		{0x09},
		{0x15},
		{0x6b},
		{0x70},
		{0x0c},
		bytes.Repeat([]byte{0x0c}, 200),
	}
	for i, in := range bad {
		_, err := ergo.NewReader(in).ReadType()
		if !isMessageError(err) {
			t.Fatalf("bad #%d: got %v", i, err)
		}
	}
}

// TestReadConstant checks value decoding for each supported type.
func TestReadConstant(t *testing.T) {
	pk := pubKey(t)
	zeroPoint := make([]byte, 33)

	tests := []struct {
		name string
		in   []byte
		typ  string
	}{
		{"boolean", []byte{0x01, 0x01}, "Boolean"},
		{"byte", []byte{0x02, 0xff}, "Byte"},
		{"short", []byte{0x03, 0xff, 0x01}, "Short"},
		{"int", []byte{0x04, 0x82, 0xda, 0xe2, 0x04}, "Int"},
		{"long", []byte{0x05, 0x01}, "Long"},
		{"bigint", []byte{0x06, 0x02, 0x01, 0x00}, "BigInt"},
		{"group element", cat([]byte{0x07}, pk), "GroupElement"},
		{"identity", cat([]byte{0x07}, zeroPoint), "GroupElement"},
		{"prove dlog", cat([]byte{0x08, 0xcd}, pk), "SigmaProp"},
		{"dh tuple", cat([]byte{0x08, 0xce}, pk, pk, pk, pk), "SigmaProp"},
		{"threshold", cat([]byte{0x08, 0x98, 0x01, 0x02, 0xcd}, pk,
			[]byte{0x97, 0x02, 0x7f, 0x80}), "SigmaProp"},
		{"and", cat([]byte{0x08, 0x96, 0x01, 0xcd}, pk), "SigmaProp"},
		{"coll byte", []byte{0x0e, 0x03, 0x01, 0x02, 0x03}, "Coll[Byte]"},
		{"coll boolean", []byte{0x0d, 0x0a, 0xff, 0x03}, "Coll[Boolean]"},
		{"coll long", []byte{0x11, 0x02, 0x01, 0x02}, "Coll[Long]"},
		{"nested coll", []byte{0x1a, 0x02, 0x01, 0xaa, 0x00},
			"Coll[Coll[Byte]]"},
		{"option none", []byte{0x28, 0x00}, "Option[Int]"},
		{"option some", []byte{0x28, 0x01, 0x04}, "Option[Int]"},
		{"pair", []byte{0x40, 0x05, 0x02, 0x03}, "(Int, Long)"},
		{"unit", []byte{0x62}, "Unit"},
		{"string", []byte{0x66, 0x05, 'e', 'r', 'g', 'o', '!'}, "String"},
		{"avl tree", cat([]byte{0x64}, zeroPoint,
			[]byte{0x07, 0x20, 0x01, 0x08}), "AvlTree"},
		{"avl tree no value length", cat([]byte{0x64}, zeroPoint,
			[]byte{0x01, 0x20, 0x00}), "AvlTree"},
	}

	for _, test := range tests {
		in := append(append([]byte(nil), test.in...), 0xee)
		r := ergo.NewReader(in)
		c, err := r.ReadConstant()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}
		if c.Type.String() != test.typ {
			t.Fatalf("%s: got type %v, want %v", test.name, c.Type,
				test.typ)
		}
		if !bytes.Equal(c.Bytes, test.in) {
			t.Fatalf("%s: got bytes %x, want %x", test.name, c.Bytes,
				test.in)
		}
		if r.Len() != 1 {
			t.Fatalf("%s: consumed trailing data", test.name)
		}
	}

	badPoint := append([]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...)
	bad := []struct {
		name string
		in   []byte
	}{
		{"boolean out of range", []byte{0x01, 0x02}},
		{"truncated long", []byte{0x05, 0x80}},
		{"bigint too long", cat([]byte{0x06, 0x21}, make([]byte, 33))},
		{"invalid point", cat([]byte{0x07}, badPoint)},
		{"unknown sigma opcode", []byte{0x08, 0x01}},
		{"threshold above children", []byte{0x08, 0x98, 0x02, 0x01, 0x7f}},
		{"short coll", []byte{0x0e, 0x05, 0x01}},
		{"bad option tag", []byte{0x28, 0x02}},
		{"invalid utf8", []byte{0x66, 0x01, 0xff}},
		{"box", []byte{0x63}},
		{"any", []byte{0x61}},
		{"avl tree bad tag", cat([]byte{0x64}, zeroPoint,
			[]byte{0x01, 0x20, 0x05})},
	}
	for _, test := range bad {
		_, err := ergo.NewReader(test.in).ReadConstant()
		if !isMessageError(err) {
			t.Fatalf("%s: got %v", test.name, err)
		}
	}
}

// TestReadErgoTree checks the tree shapes that can be delimited.
func TestReadErgoTree(t *testing.T) {
	pk := pubKey(t)

	tests := []struct {
		name string
		tree []byte
	}{
		{"p2pk", p2pkTree(pk)},
		{"segregated p2pk", cat([]byte{0x10, 0x01, 0x08, 0xcd}, pk,
			[]byte{0x73, 0x00})},
		{"sized v0", []byte{0x08, 0x03, 0xd1, 0x01, 0x02}},
		{"sized v1 segregated", []byte{0x19, 0x04, 0x01, 0x04, 0x02,
			0xd1}},
		{"constant true", []byte{0x00, 0x08, 0x7f}},
	}

	for _, test := range tests {
		in := cat(test.tree, []byte{0x01, 0x02})
		r := ergo.NewReader(in)
		tree, err := r.ReadErgoTree()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}
		if !bytes.Equal(tree, test.tree) {
			t.Fatalf("%s: got %x, want %x", test.name, tree, test.tree)
		}
		if r.Len() != 2 {
			t.Fatalf("%s: %d bytes left, want 2", test.name, r.Len())
		}
	}

	bad := []struct {
		name string
		tree []byte
	}{
		{"empty", nil},
		{"expression root", []byte{0x00, 0xd1, 0x01}},
		{"placeholder out of range", cat([]byte{0x10, 0x01, 0x08, 0xcd},
			pk, []byte{0x73, 0x01})},
		{"placeholder without constants", []byte{0x00, 0x73, 0x00}},
		{"unsized v1", []byte{0x01, 0x08, 0x7f}},
		{"short body", []byte{0x08, 0x05, 0x01}},
		{"no root", []byte{0x10, 0x00}},
	}
	for _, test := range bad {
		_, err := ergo.NewReader(test.tree).ReadErgoTree()
		if !isMessageError(err) {
			t.Fatalf("%s: got %v", test.name, err)
		}
	}
}

func mustConstant(t *testing.T, b ...byte) ergo.Constant {
	t.Helper()

	c, err := ergo.NewReader(b).ReadConstant()
	require.NoError(t, err)
	return c
}

func testTransaction(t *testing.T) *ergo.Transaction {
	pk1, pk2 := pubKey(t), pubKey(t)

	return &ergo.Transaction{
		Inputs: []ergo.Input{
			{
				BoxID: ergo.BoxID{0x01, 0x02},
				Proof: bytes.Repeat([]byte{0xab}, 56),
			},
			{
				BoxID: ergo.BoxID{0x03},
				Extension: map[byte]ergo.Constant{
					1: mustConstant(t, 0x04, 0x02),
					7: mustConstant(t, 0x0e, 0x01, 0xff),
				},
			},
		},
		DataInputs: []ergo.BoxID{{0x09}},
		Outputs: []ergo.BoxCandidate{
			{
				Value:          1000000000,
				ErgoTree:       p2pkTree(pk1),
				CreationHeight: 500000,
				Tokens: []ergo.Token{
					{ID: ergo.TokenID{0x77}, Amount: 5},
					{ID: ergo.TokenID{0x88}, Amount: 1},
				},
				Registers: []ergo.Constant{
					mustConstant(t, 0x05, 0x01),
					mustConstant(t, 0x66, 0x00),
				},
			},
			{
				Value:          1100000,
				ErgoTree:       p2pkTree(pk2),
				CreationHeight: 500001,
				Tokens: []ergo.Token{
					{ID: ergo.TokenID{0x88}, Amount: 9},
				},
			},
		},
	}
}

// TestTransactionRoundTrip ensures a serialized transaction decodes back
// to the original and that every truncation of it is rejected.
func TestTransactionRoundTrip(t *testing.T) {
	tx := testTransaction(t)

	var w ergo.Writer
	tx.Serialize(&w)
	encoded := w.Bytes()

	r := ergo.NewReader(encoded)
	got, err := ergo.DecodeTransaction(r)
	require.NoError(t, err)
	require.Zero(t, r.Len())
	if !assertTxEqual(t, tx, got) {
		t.Fatalf("transaction mismatch:\n%s\n%s", spew.Sdump(tx),
			spew.Sdump(got))
	}

	got, err = ergo.DefaultTxDecoder.DecodeTransaction(ergo.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, got.Outputs, 2)

	for i := 0; i < len(encoded); i++ {
		_, err := ergo.DecodeTransaction(ergo.NewReader(encoded[:i]))
		if !isMessageError(err) {
			t.Fatalf("truncated to %d bytes: got %v", i, err)
		}
	}
}

func assertTxEqual(t *testing.T, want, got *ergo.Transaction) bool {
	t.Helper()

	if len(want.Inputs) != len(got.Inputs) ||
		len(want.Outputs) != len(got.Outputs) {
		return false
	}
	for i := range want.Inputs {
		w, g := want.Inputs[i], got.Inputs[i]
		if w.BoxID != g.BoxID || !bytes.Equal(w.Proof, g.Proof) ||
			len(w.Extension) != len(g.Extension) {
			return false
		}
		for key, c := range w.Extension {
			if !bytes.Equal(c.Bytes, g.Extension[key].Bytes) {
				return false
			}
		}
	}
	require.Equal(t, want.DataInputs, got.DataInputs)
	for i := range want.Outputs {
		w, g := want.Outputs[i], got.Outputs[i]
		if w.Value != g.Value || !bytes.Equal(w.ErgoTree, g.ErgoTree) ||
			w.CreationHeight != g.CreationHeight ||
			len(w.Registers) != len(g.Registers) {
			return false
		}
		require.Equal(t, w.Tokens, g.Tokens)
		for j := range w.Registers {
			if !bytes.Equal(w.Registers[j].Bytes, g.Registers[j].Bytes) {
				return false
			}
		}
	}
	return true
}

// TestDecodeTransactionErrors checks structural validation of transactions.
func TestDecodeTransactionErrors(t *testing.T) {
	pk := pubKey(t)

	// An output referencing a token id past the end of the list.
	var w ergo.Writer
	w.WriteULong(0).WriteULong(0)
	w.WriteULong(1).WriteBytes(make([]byte, 32))
	w.WriteULong(1)
	w.WriteULong(1).WriteBytes(p2pkTree(pk)).WriteULong(1)
	w.WriteUByte(1).WriteULong(1).WriteULong(1)
	w.WriteUByte(0)

	_, err := ergo.DecodeTransaction(ergo.NewReader(w.Bytes()))
	require.True(t, isMessageError(err), "got %v", err)

	w = ergo.Writer{}
	w.WriteULong(0).WriteULong(0).WriteULong(0).WriteULong(1)
	w.WriteULong(1).WriteBytes(p2pkTree(pk)).WriteULong(1)
	// Seven registers where at most six exist.
	w.WriteUByte(0).WriteUByte(7)

	_, err = ergo.DecodeTransaction(ergo.NewReader(w.Bytes()))
	require.True(t, isMessageError(err), "got %v", err)

	w = ergo.Writer{}
	w.WriteULong(0).WriteULong(0).WriteULong(1 << 30)

	_, err = ergo.DecodeTransaction(ergo.NewReader(w.Bytes()))
	require.True(t, isMessageError(err), "got %v", err)
}
