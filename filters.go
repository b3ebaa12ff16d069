// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filters

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ergvein/filters/gcs"
	"github.com/ergvein/filters/gcs/btccf"
	"github.com/ergvein/filters/gcs/ergocf"
)

// ErrUnknownCurrency is returned for a currency without filter support.
var ErrUnknownCurrency = errors.New("unknown currency")

// Filter is a block filter of any supported chain.  A Filter must be created
// with New, FromBTC or FromErgo; the zero value is not usable.
type Filter struct {
	currency Currency
	btc      *btccf.BlockFilter
	ergo     *ergocf.Filter
}

// New loads a filter of the given currency from its serialized content.
func New(currency Currency, content []byte) (*Filter, error) {
	switch currency {
	case BTC:
		f, err := btccf.NewBlockFilterFromBytes(content)
		if err != nil {
			return nil, err
		}
		return FromBTC(f), nil

	case Ergo:
		f, err := ergocf.NewFilterFromBytes(content)
		if err != nil {
			return nil, err
		}
		return FromErgo(f), nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnknownCurrency, currency)
}

// FromBTC wraps a bitcoin block filter.
func FromBTC(f *btccf.BlockFilter) *Filter {
	log.Tracef("Loaded %v filter with %d elements", BTC, f.N())
	return &Filter{currency: BTC, btc: f}
}

// FromErgo wraps an Ergo block filter.
func FromErgo(f *ergocf.Filter) *Filter {
	log.Tracef("Loaded %v filter with %d elements", Ergo, f.N())
	return &Filter{currency: Ergo, ergo: f}
}

// Currency returns the chain the filter was built for.
func (f *Filter) Currency() Currency {
	return f.currency
}

// inner returns the underlying GCS filter.  It panics when the filter was not
// created by New, FromBTC or FromErgo.
func (f *Filter) inner() *gcs.Filter {
	switch {
	case f.currency == BTC && f.btc != nil:
		return f.btc.Filter()
	case f.currency == Ergo && f.ergo != nil:
		return f.ergo.Filter()
	}
	panic(fmt.Sprintf("filters: uninitialized %v filter", f.currency))
}

// Content returns the serialized filter.
func (f *Filter) Content() []byte {
	return f.inner().NBytes()
}

// N returns the number of elements committed to the filter.
func (f *Filter) N() uint32 {
	return f.inner().N()
}

// MatchAny returns whether any of the query elements is likely committed to
// the filter of the block with the passed identifier.  Bitcoin block hashes
// are passed in their internal byte order.
func (f *Filter) MatchAny(blockID []byte, query [][]byte) (bool, error) {
	key, err := gcs.DeriveKey(blockID)
	if err != nil {
		return false, err
	}
	return f.inner().MatchAny(key, query)
}

// MatchAll returns whether all of the query elements are likely committed to
// the filter of the block with the passed identifier.
func (f *Filter) MatchAll(blockID []byte, query [][]byte) (bool, error) {
	key, err := gcs.DeriveKey(blockID)
	if err != nil {
		return false, err
	}
	return f.inner().MatchAll(key, query)
}

// Hash returns the double-SHA256 of the serialized filter.
func (f *Filter) Hash() chainhash.Hash {
	return f.inner().Hash()
}

// Header returns the filter header committing to this filter and the chain
// of filters before it.
func (f *Filter) Header(prevHeader *chainhash.Hash) chainhash.Hash {
	return gcs.MakeHeaderForFilter(f.inner(), prevHeader)
}
