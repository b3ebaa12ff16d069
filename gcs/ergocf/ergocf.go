// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package ergocf builds committed filters for Ergo blocks.

The scripts (ErgoTrees) created by the outputs of a block and the scripts
locking the boxes spent by its inputs are committed.  The first transaction,
which pays the miner, is skipped and so is the last transaction of the block,
which is never decoded.  Unlike bitcoin filters there
is no script type policy: all Ergo scripts are indexable.

The filter is keyed by the block identifier and shares the encoding and
parameters of the bitcoin filters in package btccf.
*/
package ergocf

import (
	"fmt"

	"github.com/ergvein/filters/ergo"
	"github.com/ergvein/filters/gcs"
	"github.com/ergvein/filters/gcs/builder"
)

const (
	// maxTransactionsInBlock is the largest transaction count a block
	// section can carry.  Counts above it mark a versioned section whose
	// real count follows.
	maxTransactionsInBlock = 10000000

	// versionedCountMarker is the count prefix of a version 2 block
	// transactions section.
	versionedCountMarker = maxTransactionsInBlock + 2
)

// BoxScriptFetcher returns the serialized ErgoTree locking a box.
type BoxScriptFetcher func(ergo.BoxID) ([]byte, error)

// MapFetcher is an in-memory set of box scripts.
type MapFetcher map[ergo.BoxID][]byte

// Fetch implements BoxScriptFetcher.
func (m MapFetcher) Fetch(id ergo.BoxID) ([]byte, error) {
	script, ok := m[id]
	if !ok {
		str := fmt.Sprintf("box %v is unknown", id)
		return nil, gcs.MakeError(gcs.ErrUnresolvedReference, str)
	}
	return script, nil
}

// Filter is a committed filter of the scripts created and spent by an Ergo
// block.
type Filter struct {
	filter *gcs.Filter
}

// NewScriptFilter builds the filter of a block from the serialized block
// transactions section, using the standard transaction decoder.
//
// The standard decoder only reads ErgoTrees that carry their size or whose
// root is a constant.  Version 0 trees without a size whose root is an
// expression, such as the miner fee contract of older blocks, fail with
// gcs.ErrMalformedChainData.  Use NewScriptFilterWithDecoder with a full
// ErgoTree parser for such blocks.
func NewScriptFilter(blockID, block []byte, fetch BoxScriptFetcher) (*Filter, error) {
	return NewScriptFilterWithDecoder(blockID, block, fetch,
		ergo.DefaultTxDecoder)
}

// NewScriptFilterWithDecoder builds the filter of a block with a caller
// supplied transaction decoder.  Any decoding failure or box that fetch
// cannot resolve aborts the build with gcs.ErrMalformedChainData.
func NewScriptFilterWithDecoder(blockID, block []byte, fetch BoxScriptFetcher,
	dec ergo.TxDecoder) (*Filter, error) {

	b := builder.WithKeyBytes(blockID)
	if _, err := b.Key(); err != nil {
		return nil, err
	}

	r := ergo.NewReader(block)
	numTxs, err := readTxCount(r)
	if err != nil {
		return nil, err
	}

	// Transactions are numbered from 1 and the first one, which pays the
	// miner, is skipped.  The last transaction of the section is never
	// decoded.
	// TODO(ergvein): confirm whether the last transaction of a block should
	// be committed; filters served so far leave it out.
	for i := uint32(1); i < numTxs; i++ {
		tx, err := dec.DecodeTransaction(r)
		if err != nil {
			str := fmt.Sprintf("unable to decode transaction %d of "+
				"%d: %v", i, numTxs, err)
			return nil, gcs.MakeError(gcs.ErrMalformedChainData, str)
		}
		if i == 1 {
			continue
		}

		b.Preallocate(len(tx.Outputs) + len(tx.Inputs))
		for _, out := range tx.Outputs {
			b.AddEntry(out.ErgoTree)
		}
		for _, in := range tx.Inputs {
			script, err := fetch(in.BoxID)
			if err != nil {
				str := fmt.Sprintf("unable to resolve box %v "+
					"spent by transaction %d: %v", in.BoxID,
					i, err)
				return nil, gcs.MakeError(gcs.ErrMalformedChainData,
					str)
			}
			b.AddEntry(script)
		}
	}
	if r.Len() > 0 {
		log.Debugf("Left %d trailing bytes of block %x undecoded",
			r.Len(), blockID)
	}

	f, err := b.Build()
	if err != nil {
		return nil, err
	}
	log.Tracef("Built filter for block %x with %d elements from %d "+
		"transactions", blockID, f.N(), numTxs)

	return &Filter{filter: f}, nil
}

// readTxCount reads the transaction count of a block transactions section.
func readTxCount(r *ergo.Reader) (uint32, error) {
	n, err := r.ReadUInt()
	if err != nil {
		str := fmt.Sprintf("unable to read transaction count: %v", err)
		return 0, gcs.MakeError(gcs.ErrMalformedChainData, str)
	}
	if n != versionedCountMarker {
		return n, nil
	}

	n, err = r.ReadUInt()
	if err != nil {
		str := fmt.Sprintf("unable to read versioned transaction "+
			"count: %v", err)
		return 0, gcs.MakeError(gcs.ErrMalformedChainData, str)
	}
	return n, nil
}

// NewFilterFromBytes loads a filter from its serialized content as returned
// by Content.
func NewFilterFromBytes(content []byte) (*Filter, error) {
	f, err := gcs.FromNBytes(gcs.DefaultP, gcs.DefaultM, content)
	if err != nil {
		return nil, err
	}
	return &Filter{filter: f}, nil
}

// Content returns the serialized filter.
func (f *Filter) Content() []byte {
	return f.filter.NBytes()
}

// N returns the number of elements committed to the filter.
func (f *Filter) N() uint32 {
	return f.filter.N()
}

// Filter returns the underlying GCS filter.
func (f *Filter) Filter() *gcs.Filter {
	return f.filter
}

// MatchAny returns whether any of the query scripts is likely committed to
// the filter of the block with the passed identifier.
func (f *Filter) MatchAny(blockID []byte, query [][]byte) (bool, error) {
	key, err := gcs.DeriveKey(blockID)
	if err != nil {
		return false, err
	}
	return f.filter.MatchAny(key, query)
}

// MatchAll returns whether all of the query scripts are likely committed to
// the filter of the block with the passed identifier.
func (f *Filter) MatchAll(blockID []byte, query [][]byte) (bool, error) {
	key, err := gcs.DeriveKey(blockID)
	if err != nil {
		return false, err
	}
	return f.filter.MatchAll(key, query)
}
