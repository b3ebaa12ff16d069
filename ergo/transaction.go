// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ergo

import (
	"encoding/hex"
	"fmt"
)

const (
	// IDSize is the size of box, token and transaction identifiers.
	IDSize = 32

	// maxRegisters is the number of non-mandatory box registers, R4 to R9.
	maxRegisters = 6
)

// BoxID identifies a box, the unit of value spent by transaction inputs.
type BoxID [IDSize]byte

// String returns the identifier as hex.
func (id BoxID) String() string {
	return hex.EncodeToString(id[:])
}

// TokenID identifies a token.
type TokenID [IDSize]byte

// Input spends a box.
type Input struct {
	BoxID BoxID
	Proof []byte

	// Extension holds the context variables supplied to the spent box's
	// script, keyed by variable id.
	Extension map[byte]Constant
}

// Token is an amount of a token held by a box.
type Token struct {
	ID     TokenID
	Amount uint64
}

// BoxCandidate is an output of a transaction.  It becomes a box with an
// identifier once the transaction is accepted.
type BoxCandidate struct {
	Value          uint64
	ErgoTree       []byte
	CreationHeight uint32
	Tokens         []Token
	Registers      []Constant
}

// Transaction is a decoded Ergo transaction.
type Transaction struct {
	Inputs     []Input
	DataInputs []BoxID
	Outputs    []BoxCandidate
}

// TxDecoder decodes one transaction from a reader positioned at its start,
// leaving the reader positioned after it.
type TxDecoder interface {
	DecodeTransaction(r *Reader) (*Transaction, error)
}

// TxDecoderFunc adapts a function to the TxDecoder interface.
type TxDecoderFunc func(r *Reader) (*Transaction, error)

// DecodeTransaction calls f(r).
func (f TxDecoderFunc) DecodeTransaction(r *Reader) (*Transaction, error) {
	return f(r)
}

// DefaultTxDecoder decodes the standard transaction format.
var DefaultTxDecoder TxDecoder = TxDecoderFunc(DecodeTransaction)

func readID(r *Reader) ([IDSize]byte, error) {
	var id [IDSize]byte
	b, err := r.ReadBytes(IDSize)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// DecodeTransaction decodes a transaction: its inputs with their proofs and
// context extensions, data inputs, the distinct token identifiers referenced
// by outputs, and the outputs.
func DecodeTransaction(r *Reader) (*Transaction, error) {
	numInputs, err := r.ReadUShort()
	if err != nil {
		return nil, err
	}

	tx := Transaction{Inputs: make([]Input, 0, numInputs)}
	for i := uint16(0); i < numInputs; i++ {
		in, err := readInput(r)
		if err != nil {
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	numDataInputs, err := r.ReadUShort()
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < numDataInputs; i++ {
		id, err := readID(r)
		if err != nil {
			return nil, err
		}
		tx.DataInputs = append(tx.DataInputs, id)
	}

	numTokens, err := r.ReadUInt()
	if err != nil {
		return nil, err
	}
	if uint64(numTokens)*IDSize > uint64(r.Len()) {
		str := fmt.Sprintf("%d token ids exceed the remaining %d bytes",
			numTokens, r.Len())
		return nil, messageError("DecodeTransaction", str)
	}
	tokenIDs := make([]TokenID, 0, numTokens)
	for i := uint32(0); i < numTokens; i++ {
		id, err := readID(r)
		if err != nil {
			return nil, err
		}
		tokenIDs = append(tokenIDs, id)
	}

	numOutputs, err := r.ReadUShort()
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]BoxCandidate, 0, numOutputs)
	for i := uint16(0); i < numOutputs; i++ {
		out, err := readBoxCandidate(r, tokenIDs)
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	return &tx, nil
}

func readInput(r *Reader) (Input, error) {
	var in Input

	id, err := readID(r)
	if err != nil {
		return in, err
	}
	in.BoxID = id

	proofLen, err := r.ReadUShort()
	if err != nil {
		return in, err
	}
	if in.Proof, err = r.ReadBytes(int(proofLen)); err != nil {
		return in, err
	}

	numVars, err := r.ReadUByte()
	if err != nil {
		return in, err
	}
	if numVars > 0 {
		in.Extension = make(map[byte]Constant, numVars)
	}
	for i := byte(0); i < numVars; i++ {
		key, err := r.ReadUByte()
		if err != nil {
			return in, err
		}
		c, err := r.ReadConstant()
		if err != nil {
			return in, err
		}
		in.Extension[key] = c
	}

	return in, nil
}

func readBoxCandidate(r *Reader, tokenIDs []TokenID) (BoxCandidate, error) {
	var out BoxCandidate
	var err error

	if out.Value, err = r.ReadULong(); err != nil {
		return out, err
	}
	if out.ErgoTree, err = r.ReadErgoTree(); err != nil {
		return out, err
	}
	if out.CreationHeight, err = r.ReadUInt(); err != nil {
		return out, err
	}

	numTokens, err := r.ReadUByte()
	if err != nil {
		return out, err
	}
	for i := byte(0); i < numTokens; i++ {
		idx, err := r.ReadUInt()
		if err != nil {
			return out, err
		}
		if idx >= uint32(len(tokenIDs)) {
			str := fmt.Sprintf("token index %d out of %d ids", idx,
				len(tokenIDs))
			return out, messageError("readBoxCandidate", str)
		}
		amount, err := r.ReadULong()
		if err != nil {
			return out, err
		}
		out.Tokens = append(out.Tokens, Token{
			ID:     tokenIDs[idx],
			Amount: amount,
		})
	}

	numRegs, err := r.ReadUByte()
	if err != nil {
		return out, err
	}
	if numRegs > maxRegisters {
		str := fmt.Sprintf("%d registers exceed %d", numRegs,
			maxRegisters)
		return out, messageError("readBoxCandidate", str)
	}
	for i := byte(0); i < numRegs; i++ {
		c, err := r.ReadConstant()
		if err != nil {
			return out, err
		}
		out.Registers = append(out.Registers, c)
	}

	return out, nil
}

// Serialize encodes the transaction in the format read by DecodeTransaction.
// Token identifiers are written in order of first use by the outputs.
func (tx *Transaction) Serialize(w *Writer) {
	w.WriteULong(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		w.WriteBytes(in.BoxID[:])
		w.WriteULong(uint64(len(in.Proof))).WriteBytes(in.Proof)

		// Map iteration order is random, so write variables by
		// ascending id.
		w.WriteUByte(byte(len(in.Extension)))
		for key := 0; key < 256; key++ {
			if c, ok := in.Extension[byte(key)]; ok {
				w.WriteUByte(byte(key)).WriteBytes(c.Bytes)
			}
		}
	}

	w.WriteULong(uint64(len(tx.DataInputs)))
	for _, id := range tx.DataInputs {
		w.WriteBytes(id[:])
	}

	var tokenIDs []TokenID
	tokenIndex := make(map[TokenID]int)
	for _, out := range tx.Outputs {
		for _, token := range out.Tokens {
			if _, ok := tokenIndex[token.ID]; !ok {
				tokenIndex[token.ID] = len(tokenIDs)
				tokenIDs = append(tokenIDs, token.ID)
			}
		}
	}
	w.WriteULong(uint64(len(tokenIDs)))
	for _, id := range tokenIDs {
		w.WriteBytes(id[:])
	}

	w.WriteULong(uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		w.WriteULong(out.Value)
		w.WriteBytes(out.ErgoTree)
		w.WriteULong(uint64(out.CreationHeight))
		w.WriteUByte(byte(len(out.Tokens)))
		for _, token := range out.Tokens {
			w.WriteULong(uint64(tokenIndex[token.ID]))
			w.WriteULong(token.Amount)
		}
		w.WriteUByte(byte(len(out.Registers)))
		for _, reg := range out.Registers {
			w.WriteBytes(reg.Bytes)
		}
	}
}
