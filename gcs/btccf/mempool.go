// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btccf

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/ergvein/filters/gcs"
	"github.com/ergvein/filters/gcs/builder"
)

// MempoolWriter accumulates the elements of a mempool filter.  There is no
// block to derive a key from, so the SipHash key halves are chosen by the
// caller.
type MempoolWriter struct {
	b *builder.GCSBuilder
}

// NewMempoolWriter returns a writer keyed with k0 and k1.
func NewMempoolWriter(k0, k1 uint64) *MempoolWriter {
	return &MempoolWriter{b: builder.WithUint64Keys(k0, k1)}
}

// AddElement adds an arbitrary element to the filter.
func (w *MempoolWriter) AddElement(data []byte) {
	w.b.AddEntry(data)
}

// AddTransactions adds the indexable output scripts of txs and the indexable
// scripts spent by their segwit inputs.  Any previous output that fetch
// cannot resolve fails with gcs.ErrUnresolvedReference.
func (w *MempoolWriter) AddTransactions(txs []*wire.MsgTx, fetch PrevScriptFetcher) error {
	w.b.Preallocate(maxEntries(txs, txs))
	addOutputScripts(w.b, txs)
	return addInputScripts(w.b, txs, fetch, unresolvedError)
}

// Finish builds the filter.
func (w *MempoolWriter) Finish() (*MempoolFilter, error) {
	f, err := w.b.Build()
	if err != nil {
		return nil, err
	}
	return &MempoolFilter{filter: f}, nil
}

// MempoolFilter is a committed filter of the scripts created and spent by a
// set of unconfirmed transactions.
type MempoolFilter struct {
	filter *gcs.Filter
}

// NewMempoolFilter builds the filter of txs keyed with k0 and k1.  Unlike
// block filters, every previous output spent by a segwit input must resolve.
func NewMempoolFilter(k0, k1 uint64, txs []*wire.MsgTx,
	fetch PrevScriptFetcher) (*MempoolFilter, error) {

	w := NewMempoolWriter(k0, k1)
	if err := w.AddTransactions(txs, fetch); err != nil {
		return nil, err
	}

	f, err := w.Finish()
	if err != nil {
		return nil, err
	}
	log.Tracef("Built mempool filter of %d transactions with %d elements",
		len(txs), f.N())

	return f, nil
}

// NewMempoolFilterFromBytes loads a mempool filter from its serialized
// content as returned by Content.
func NewMempoolFilterFromBytes(content []byte) (*MempoolFilter, error) {
	f, err := gcs.FromNBytes(gcs.DefaultP, gcs.DefaultM, content)
	if err != nil {
		return nil, err
	}
	return &MempoolFilter{filter: f}, nil
}

// Content returns the serialized filter.
func (f *MempoolFilter) Content() []byte {
	return f.filter.NBytes()
}

// N returns the number of elements committed to the filter.
func (f *MempoolFilter) N() uint32 {
	return f.filter.N()
}

// MatchAny returns whether any of the query scripts is likely committed to
// the filter.
func (f *MempoolFilter) MatchAny(k0, k1 uint64, query [][]byte) (bool, error) {
	return f.filter.MatchAny(gcs.KeyFromUint64s(k0, k1), query)
}

// MatchAll returns whether all of the query scripts are likely committed to
// the filter.
func (f *MempoolFilter) MatchAll(k0, k1 uint64, query [][]byte) (bool, error) {
	return f.filter.MatchAll(gcs.KeyFromUint64s(k0, k1), query)
}

// MatchTxOutputs returns whether any output script of tx is likely committed
// to the filter.
func (f *MempoolFilter) MatchTxOutputs(k0, k1 uint64, tx *wire.MsgTx) (bool, error) {
	query := make([][]byte, 0, len(tx.TxOut))
	for _, txOut := range tx.TxOut {
		query = append(query, txOut.PkScript)
	}
	return f.MatchAny(k0, k1, query)
}
