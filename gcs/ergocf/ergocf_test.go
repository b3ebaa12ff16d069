// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ergocf_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ergvein/filters/ergo"
	"github.com/ergvein/filters/gcs"
	"github.com/ergvein/filters/gcs/ergocf"
	"github.com/stretchr/testify/require"
)

var blockID = bytes.Repeat([]byte{0x5c, 0x17}, 16)

// p2pkTree returns the pay to public key ErgoTree of a fresh key.
func p2pkTree(t *testing.T) []byte {
	t.Helper()

	privKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pk := privKey.PubKey().SerializeCompressed()
	return append([]byte{0x00, 0x08, 0xcd}, pk...)
}

func simpleTx(spends []ergo.BoxID, trees ...[]byte) *ergo.Transaction {
	tx := &ergo.Transaction{}
	for _, id := range spends {
		tx.Inputs = append(tx.Inputs, ergo.Input{
			BoxID: id,
			Proof: []byte{0x01, 0x02, 0x03},
		})
	}
	for i, tree := range trees {
		tx.Outputs = append(tx.Outputs, ergo.BoxCandidate{
			Value:          uint64(1000000 * (i + 1)),
			ErgoTree:       tree,
			CreationHeight: 414474,
		})
	}
	return tx
}

// serializeBlock encodes a block transactions section.  A versioned section
// prefixes the real count with the version marker.
func serializeBlock(versioned bool, txs ...*ergo.Transaction) []byte {
	var w ergo.Writer
	if versioned {
		w.WriteULong(10000002)
	}
	w.WriteULong(uint64(len(txs)))
	for _, tx := range txs {
		tx.Serialize(&w)
	}
	return w.Bytes()
}

type testBlock struct {
	txs      []*ergo.Transaction
	fetcher  ergocf.MapFetcher
	emission []byte
	created  [][]byte
	spent    [][]byte
}

func newTestBlock(t *testing.T) *testBlock {
	emissionBox := ergo.BoxID{0xee}
	spentX, spentY := ergo.BoxID{0x01}, ergo.BoxID{0x02}

	b := &testBlock{
		emission: p2pkTree(t),
		created:  [][]byte{p2pkTree(t), p2pkTree(t), p2pkTree(t)},
		spent:    [][]byte{p2pkTree(t), p2pkTree(t)},
	}
	b.txs = []*ergo.Transaction{
		simpleTx([]ergo.BoxID{emissionBox}, b.emission),
		simpleTx([]ergo.BoxID{spentX}, b.created[0], b.created[1]),
		simpleTx([]ergo.BoxID{spentY}, b.created[2]),
	}
	b.fetcher = ergocf.MapFetcher{
		spentX: b.spent[0],
		spentY: b.spent[1],
	}
	return b
}

// TestScriptFilter builds the filter of a block and checks which created and
// spent scripts are committed: neither the miner's transaction nor the last
// transaction of the block are.
func TestScriptFilter(t *testing.T) {
	tb := newTestBlock(t)

	var fetched []ergo.BoxID
	fetch := func(id ergo.BoxID) ([]byte, error) {
		fetched = append(fetched, id)
		return tb.fetcher.Fetch(id)
	}

	f, err := ergocf.NewScriptFilter(blockID, serializeBlock(false, tb.txs...),
		fetch)
	require.NoError(t, err)
	require.Equal(t, uint32(3), f.N())

	// Only the box spent by the second transaction is looked up.
	require.Equal(t, []ergo.BoxID{{0x01}}, fetched)

	match, err := f.MatchAll(blockID,
		[][]byte{tb.created[0], tb.created[1], tb.spent[0]})
	require.NoError(t, err)
	require.True(t, match)

	// The last transaction of the block is not committed.
	match, err = f.MatchAny(blockID, [][]byte{tb.created[2], tb.spent[1]})
	require.NoError(t, err)
	require.False(t, match)

	match, err = f.MatchAny(blockID, [][]byte{tb.emission})
	require.NoError(t, err)
	require.False(t, match)

	loaded, err := ergocf.NewFilterFromBytes(f.Content())
	require.NoError(t, err)
	match, err = loaded.MatchAny(blockID, [][]byte{tb.spent[0]})
	require.NoError(t, err)
	require.True(t, match)

	_, err = loaded.MatchAny(blockID[:8], [][]byte{tb.spent[0]})
	require.True(t, errors.Is(err, gcs.ErrInvalidKey), "got %v", err)
}

// TestScriptFilterLastTxUndecoded ensures the bytes of the last transaction
// of a block are never read.
func TestScriptFilterLastTxUndecoded(t *testing.T) {
	tb := newTestBlock(t)

	full, err := ergocf.NewScriptFilter(blockID,
		serializeBlock(false, tb.txs...), tb.fetcher.Fetch)
	require.NoError(t, err)

	// Replace the last transaction with bytes that do not decode.
	block := serializeBlock(false, tb.txs[:2]...)
	block[0] = 0x03
	block = append(block, 0xff, 0xff, 0xff)

	f, err := ergocf.NewScriptFilter(blockID, block, tb.fetcher.Fetch)
	require.NoError(t, err)
	require.Equal(t, full.Content(), f.Content())
}

// TestScriptFilterVersionedCount ensures a versioned transaction count
// yields the same filter as a plain one.
func TestScriptFilterVersionedCount(t *testing.T) {
	tb := newTestBlock(t)

	plain, err := ergocf.NewScriptFilter(blockID,
		serializeBlock(false, tb.txs...), tb.fetcher.Fetch)
	require.NoError(t, err)

	versioned, err := ergocf.NewScriptFilter(blockID,
		serializeBlock(true, tb.txs...), tb.fetcher.Fetch)
	require.NoError(t, err)

	require.Equal(t, plain.Content(), versioned.Content())
}

// TestScriptFilterEmpty checks blocks that commit nothing.
func TestScriptFilterEmpty(t *testing.T) {
	tb := newTestBlock(t)

	tests := []struct {
		name  string
		block []byte
	}{
		{"no transactions", serializeBlock(false)},
		{"versioned no transactions", serializeBlock(true)},
		{"miner only", serializeBlock(false, tb.txs[0])},
		{"miner and last", serializeBlock(false, tb.txs[0], tb.txs[1])},
	}
	for _, test := range tests {
		f, err := ergocf.NewScriptFilter(blockID, test.block,
			tb.fetcher.Fetch)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}
		if !bytes.Equal(f.Content(), []byte{0x00}) {
			t.Fatalf("%s: unexpected content %x", test.name,
				f.Content())
		}
	}
}

// TestScriptFilterErrors checks that malformed blocks and unresolved boxes
// abort the build.
func TestScriptFilterErrors(t *testing.T) {
	tb := newTestBlock(t)
	block := serializeBlock(false, tb.txs...)

	// Three transactions are announced, so the second one is decoded and
	// is cut short.
	truncated := serializeBlock(false, tb.txs[:2]...)
	truncated[0] = 0x03
	truncated = truncated[:len(truncated)-1]

	tests := []struct {
		name    string
		id      []byte
		block   []byte
		fetcher ergocf.MapFetcher
		want    error
	}{
		{"empty block", blockID, nil, tb.fetcher, gcs.ErrMalformedChainData},
		{"truncated versioned count", blockID, []byte{0x82, 0xda, 0xe2, 0x04},
			tb.fetcher, gcs.ErrMalformedChainData},
		{"truncated transaction", blockID, truncated,
			tb.fetcher, gcs.ErrMalformedChainData},
		{"count beyond data", blockID, append([]byte{0x05}, block[1:]...),
			tb.fetcher, gcs.ErrMalformedChainData},
		{"unresolved box", blockID, block,
			ergocf.MapFetcher{{0x02}: tb.spent[1]},
			gcs.ErrMalformedChainData},
		{"short block id", blockID[:15], block, tb.fetcher,
			gcs.ErrInvalidKey},
	}

	for _, test := range tests {
		_, err := ergocf.NewScriptFilter(test.id, test.block,
			test.fetcher.Fetch)
		if !errors.Is(err, test.want) {
			t.Fatalf("%s: got %v, want %v", test.name, err, test.want)
		}
	}
}

// TestScriptFilterCustomDecoder ensures a caller supplied decoder is used
// for every transaction.
func TestScriptFilterCustomDecoder(t *testing.T) {
	tb := newTestBlock(t)

	var calls int
	dec := ergo.TxDecoderFunc(func(r *ergo.Reader) (*ergo.Transaction, error) {
		calls++
		return ergo.DecodeTransaction(r)
	})

	f, err := ergocf.NewScriptFilterWithDecoder(blockID,
		serializeBlock(false, tb.txs...), tb.fetcher.Fetch, dec)
	require.NoError(t, err)
	require.Equal(t, len(tb.txs)-1, calls)
	require.Equal(t, uint32(3), f.N())

	failing := ergo.TxDecoderFunc(func(*ergo.Reader) (*ergo.Transaction, error) {
		return nil, errors.New("unsupported transaction")
	})
	_, err = ergocf.NewScriptFilterWithDecoder(blockID,
		serializeBlock(false, tb.txs...), tb.fetcher.Fetch, failing)
	require.True(t, errors.Is(err, gcs.ErrMalformedChainData), "got %v", err)
}

// TestScriptFilterExpressionRoot checks that unsized trees rooted in an
// expression are rejected by the standard decoder and can still be committed
// through a caller supplied one.
func TestScriptFilterExpressionRoot(t *testing.T) {
	tb := newTestBlock(t)

	// A version 0 tree without size whose root is the sigmaAnd opcode.
	feeTree := []byte{0x10, 0x01, 0x04, 0x00, 0xd1, 0x7f}
	tb.txs[1].Outputs[0].ErgoTree = feeTree
	block := serializeBlock(false, tb.txs...)

	_, err := ergocf.NewScriptFilter(blockID, block, tb.fetcher.Fetch)
	require.True(t, errors.Is(err, gcs.ErrMalformedChainData), "got %v", err)

	// The decoder below hands out the known transactions, skipping their
	// serialized bytes.
	var next int
	dec := ergo.TxDecoderFunc(func(r *ergo.Reader) (*ergo.Transaction, error) {
		var w ergo.Writer
		tx := tb.txs[next]
		tx.Serialize(&w)
		if _, err := r.ReadBytes(len(w.Bytes())); err != nil {
			return nil, err
		}
		next++
		return tx, nil
	})

	f, err := ergocf.NewScriptFilterWithDecoder(blockID, block,
		tb.fetcher.Fetch, dec)
	require.NoError(t, err)
	match, err := f.MatchAny(blockID, [][]byte{feeTree})
	require.NoError(t, err)
	require.True(t, match)
}
