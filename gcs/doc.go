// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2016-2017 The Lightning Network Developers
// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package gcs provides an API for building and using a Golomb-coded set filter.

Golomb-Coded Set

A Golomb-coded set is a probabilistic data structure used similarly to a Bloom
filter.  Every element is hashed with a keyed SipHash-2-4, mapped into the
range [0, N*M) with a multiply-and-shift reduction, and the sorted results are
stored as Golomb-Rice coded deltas with a fixed remainder width of P bits.  The
collision probability for a single query element is 1/M.

Serialized form

A serialized filter is the number of elements N as a Bitcoin CompactSize
variable length integer followed by the N Golomb-Rice codes, padded with zero
bits up to the next byte boundary.  The key used to hash elements is not part
of the serialized form; for block filters it is derived from the block
identifier (see DeriveKey) and for mempool filters it is supplied by the
caller.

Use in light clients

The filters are served to wallets that match their scripts against them
locally.  A match means the block (or mempool snapshot) is potentially
relevant and should be fetched; a miss is definitive since the set has no
false negatives.  All kinds of filters built by the sub-packages use
P = DefaultP and M = DefaultM.
*/
package gcs
