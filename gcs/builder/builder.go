// Copyright (c) 2017 The btcsuite developers
// Copyright (c) 2017 The Lightning Network Developers
// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ergvein/filters/gcs"
)

const (
	// DefaultP is the default collision probability (2^-19).
	DefaultP = gcs.DefaultP

	// DefaultM is the default value used for the hash range.
	DefaultM uint64 = gcs.DefaultM
)

// GCSBuilder is a utility class that makes building GCS filters convenient.
type GCSBuilder struct {
	p uint8

	m uint64

	key [gcs.KeySize]byte

	// data is a list of entries in the order they were added.  Unlike a
	// BIP158 builder, repeated entries are kept and each one counts towards
	// N.
	data [][]byte

	err error
}

// DeriveKey is a utility function that derives a key from a chainhash.Hash by
// truncating the bytes of the hash to the appropriate key size.
func DeriveKey(keyHash *chainhash.Hash) [gcs.KeySize]byte {
	var key [gcs.KeySize]byte
	copy(key[:], keyHash.CloneBytes())
	return key
}

// SetKey sets the key with which to build the filter to a specific value.
// Returns the GCSBuilder pointer so it can be chained.
func (b *GCSBuilder) SetKey(key [gcs.KeySize]byte) *GCSBuilder {
	// Do nothing if the builder's already errored out.
	if b.err != nil {
		return b
	}

	copy(b.key[:], key[:])
	return b
}

// SetKeyFromBytes sets the key from a raw block identifier, see
// gcs.DeriveKey.  An identifier shorter than the key size puts the builder in
// the error state.
func (b *GCSBuilder) SetKeyFromBytes(id []byte) *GCSBuilder {
	// Do nothing if the builder's already errored out.
	if b.err != nil {
		return b
	}

	key, err := gcs.DeriveKey(id)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetKey(key)
}

// SetP sets the filter's remainder width.
func (b *GCSBuilder) SetP(p uint8) *GCSBuilder {
	// Do nothing if the builder's already errored out.
	if b.err != nil {
		return b
	}

	// Basic sanity check.
	if p > 32 {
		b.err = gcs.MakeError(gcs.ErrPTooBig,
			fmt.Sprintf("P of %d is too large", p))
		return b
	}

	b.p = p
	return b
}

// SetM sets the filter's hash range scale factor.
func (b *GCSBuilder) SetM(m uint64) *GCSBuilder {
	// Do nothing if the builder's already errored out.
	if b.err != nil {
		return b
	}

	b.m = m
	return b
}

// Preallocate reserves room for n more entries so that the following n calls
// to AddEntry do not reallocate.  Entries already added are kept.
func (b *GCSBuilder) Preallocate(n int) *GCSBuilder {
	// Do nothing if the builder's already errored out.
	if b.err != nil {
		return b
	}

	b.data = slices.Grow(b.data, n)
	return b
}

// AddEntry adds a []byte to the list of entries to be included in the GCS
// filter when it's built.
func (b *GCSBuilder) AddEntry(data []byte) *GCSBuilder {
	// Do nothing if the builder's already errored out.
	if b.err != nil {
		return b
	}

	b.data = append(b.data, data)
	return b
}

// AddEntries adds all the []byte entries in a [][]byte to the list of entries
// to be included in the GCS filter when it's built.
func (b *GCSBuilder) AddEntries(data [][]byte) *GCSBuilder {
	// Do nothing if the builder's already errored out.
	if b.err != nil {
		return b
	}

	for _, entry := range data {
		b.AddEntry(entry)
	}
	return b
}

// N returns the number of entries added so far.
func (b *GCSBuilder) N() int {
	return len(b.data)
}

// Key retrieves the key with which the builder will build a filter.
func (b *GCSBuilder) Key() ([gcs.KeySize]byte, error) {
	// Do nothing if the builder's errored out.
	if b.err != nil {
		return [gcs.KeySize]byte{}, b.err
	}

	return b.key, nil
}

// Build builds a GCS filter with the builder's parameters and every entry
// added so far.  The builder can keep accepting entries afterwards.
func (b *GCSBuilder) Build() (*gcs.Filter, error) {
	// Do nothing if the builder's already errored out.
	if b.err != nil {
		return nil, b.err
	}

	return gcs.BuildGCSFilter(b.p, b.m, b.key, b.data)
}

// WithKeyPM creates a GCSBuilder with specified key and the passed
// probability and modulus. Estimated filter size can be set by calling
// Preallocate on the returned builder.
func WithKeyPM(key [gcs.KeySize]byte, p uint8, m uint64) *GCSBuilder {
	b := GCSBuilder{}
	return b.SetKey(key).SetP(p).SetM(m)
}

// WithKey creates a GCSBuilder with specified key. Probability is set to 19
// (2^-19 collision probability). Estimated filter size can be set by calling
// Preallocate on the returned builder.
func WithKey(key [gcs.KeySize]byte) *GCSBuilder {
	return WithKeyPM(key, DefaultP, DefaultM)
}

// WithUint64Keys creates a GCSBuilder keyed by the two SipHash key halves,
// as used by mempool filters.
func WithUint64Keys(k0, k1 uint64) *GCSBuilder {
	return WithKey(gcs.KeyFromUint64s(k0, k1))
}

// WithKeyHash creates a GCSBuilder with key derived from the specified
// chainhash.Hash. Probability is set to 19 (2^-19 collision probability).
// Estimated filter size can be set by calling Preallocate on the returned
// builder.
func WithKeyHash(keyHash *chainhash.Hash) *GCSBuilder {
	return WithKey(DeriveKey(keyHash))
}

// WithKeyBytes creates a GCSBuilder keyed from a raw block identifier of at
// least gcs.KeySize bytes.
func WithKeyBytes(id []byte) *GCSBuilder {
	b := GCSBuilder{}
	return b.SetKeyFromBytes(id).SetP(DefaultP).SetM(DefaultM)
}
