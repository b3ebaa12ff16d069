// Copyright (c) 2017 The btcsuite developers
// Copyright (c) 2017 The Lightning Network Developers
// Copyright (c) 2018 The Decred developers
// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package btccf provides functions for building committed filters for bitcoin
blocks and mempools using Golomb-coded sets in a way that is useful for light
clients such as SPV wallets.

The filters follow BIP158 in their encoding but only commit to scripts a
segwit mobile wallet can own: witness script hash outputs, witness pubkey hash
outputs and data carrier (OP_RETURN) outputs.  Both the scripts created by a
block and the scripts spent by its segwit inputs are committed, the latter
being resolved through a caller supplied PrevScriptFetcher.
*/
package btccf

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ergvein/filters/gcs"
	"github.com/ergvein/filters/gcs/builder"
)

// PrevScriptFetcher returns the public key script of the output referenced
// by an outpoint.
type PrevScriptFetcher func(wire.OutPoint) ([]byte, error)

// MapFetcher is an in-memory set of previous output scripts.
type MapFetcher map[wire.OutPoint][]byte

// AddTx records the scripts of all outputs of tx.
func (m MapFetcher) AddTx(tx *wire.MsgTx) {
	txHash := tx.TxHash()
	for i, txOut := range tx.TxOut {
		m[wire.OutPoint{Hash: txHash, Index: uint32(i)}] = txOut.PkScript
	}
}

// Fetch implements PrevScriptFetcher.  A missing outpoint is reported as
// gcs.ErrUnresolvedReference.
func (m MapFetcher) Fetch(op wire.OutPoint) ([]byte, error) {
	script, ok := m[op]
	if !ok {
		str := fmt.Sprintf("output %v is unknown", op)
		return nil, gcs.MakeError(gcs.ErrUnresolvedReference, str)
	}
	return script, nil
}

// IsScriptIndexable returns whether a script is committed to a filter: it must
// be non-empty and either pay to a witness script hash, pay to a witness
// pubkey hash or start with OP_RETURN.
func IsScriptIndexable(script []byte) bool {
	if len(script) == 0 {
		return false
	}
	return txscript.IsPayToWitnessScriptHash(script) ||
		txscript.IsPayToWitnessPubKeyHash(script) ||
		script[0] == txscript.OP_RETURN
}

// maxEntries is the number of entries a filter over the outputs of outTxs
// and the inputs of inTxs commits at most.
func maxEntries(outTxs, inTxs []*wire.MsgTx) int {
	n := 0
	for _, tx := range outTxs {
		n += len(tx.TxOut)
	}
	for _, tx := range inTxs {
		n += len(tx.TxIn)
	}
	return n
}

// addOutputScripts adds the indexable output scripts of every transaction.
func addOutputScripts(b *builder.GCSBuilder, txs []*wire.MsgTx) {
	for _, tx := range txs {
		for _, txOut := range tx.TxOut {
			if IsScriptIndexable(txOut.PkScript) {
				b.AddEntry(txOut.PkScript)
			}
		}
	}
}

// resolveFailure decides what happens to an input whose previous output
// could not be resolved.  Returning nil skips the input.
type resolveFailure func(op wire.OutPoint, err error) error

// addInputScripts resolves the previous output scripts spent by inputs with
// an empty signature script and adds the indexable ones.  Inputs carrying a
// signature script are never resolved.
func addInputScripts(b *builder.GCSBuilder, txs []*wire.MsgTx,
	fetch PrevScriptFetcher, onFailure resolveFailure) error {

	for _, tx := range txs {
		for _, txIn := range tx.TxIn {
			if len(txIn.SignatureScript) != 0 {
				continue
			}

			script, err := fetch(txIn.PreviousOutPoint)
			if err != nil {
				if err := onFailure(txIn.PreviousOutPoint, err); err != nil {
					return err
				}
				continue
			}
			if IsScriptIndexable(script) {
				b.AddEntry(script)
			}
		}
	}
	return nil
}

// unresolvedError wraps a fetcher failure under gcs.ErrUnresolvedReference.
func unresolvedError(op wire.OutPoint, err error) error {
	str := fmt.Sprintf("unable to resolve previous output %v: %v", op, err)
	return gcs.MakeError(gcs.ErrUnresolvedReference, str)
}

// BlockFilter is a committed filter of the scripts created and spent by a
// block.  It is keyed by the block hash.
type BlockFilter struct {
	filter *gcs.Filter
}

// NewBlockFilter builds the filter of block.  The coinbase inputs are never
// inspected.  Previous outputs that fetch fails to resolve are skipped and
// do not fail the build.
func NewBlockFilter(block *wire.MsgBlock, fetch PrevScriptFetcher) (*BlockFilter, error) {
	blockHash := block.BlockHash()
	b := builder.WithKeyHash(&blockHash)

	var spending []*wire.MsgTx
	if len(block.Transactions) > 1 {
		spending = block.Transactions[1:]
	}
	b.Preallocate(maxEntries(block.Transactions, spending))

	addOutputScripts(b, block.Transactions)
	skipped := 0
	err := addInputScripts(b, spending, fetch, func(op wire.OutPoint, err error) error {
		// TODO(ergvein): confirm whether unresolved outputs of a block
		// should fail the build like they do for mempool filters.
		log.Debugf("Skipping unresolved previous output %v of block "+
			"%v: %v", op, blockHash, err)
		skipped++
		return nil
	})
	if err != nil {
		return nil, err
	}

	f, err := b.Build()
	if err != nil {
		return nil, err
	}
	log.Tracef("Built filter for block %v with %d elements (%d inputs "+
		"unresolved)", blockHash, f.N(), skipped)

	return &BlockFilter{filter: f}, nil
}

// NewBlockFilterFromBytes loads a block filter from its serialized content as
// returned by Content.
func NewBlockFilterFromBytes(content []byte) (*BlockFilter, error) {
	f, err := gcs.FromNBytes(gcs.DefaultP, gcs.DefaultM, content)
	if err != nil {
		return nil, err
	}
	return &BlockFilter{filter: f}, nil
}

// Content returns the serialized filter.
func (f *BlockFilter) Content() []byte {
	return f.filter.NBytes()
}

// N returns the number of elements committed to the filter.
func (f *BlockFilter) N() uint32 {
	return f.filter.N()
}

// Filter returns the underlying GCS filter.
func (f *BlockFilter) Filter() *gcs.Filter {
	return f.filter
}

// MatchAny returns whether any of the query scripts is likely committed to
// the filter of the block with the passed hash.
func (f *BlockFilter) MatchAny(blockHash *chainhash.Hash, query [][]byte) (bool, error) {
	return f.filter.MatchAny(builder.DeriveKey(blockHash), query)
}

// MatchAll returns whether all of the query scripts are likely committed to
// the filter of the block with the passed hash.
func (f *BlockFilter) MatchAll(blockHash *chainhash.Hash, query [][]byte) (bool, error) {
	return f.filter.MatchAll(builder.DeriveKey(blockHash), query)
}
