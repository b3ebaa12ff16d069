// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2016-2017 The Lightning Network Developers
// Copyright (c) 2018 The Decred developers
// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gcs

import (
	"bytes"
	"fmt"
	"math"
	"slices"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Inspired by https://github.com/rasky/gcs

const (
	// DefaultP is the Golomb-Rice remainder width shared by every filter
	// kind.
	DefaultP = 19

	// DefaultM is the hash range scale factor shared by every filter kind.
	// A query element that is not in the set matches with probability
	// 1/DefaultM.
	DefaultM = 784931
)

// Filter describes an immutable filter that can be built from a set of data
// elements, serialized, deserialized, and queried in a thread-safe manner. The
// serialized form is compressed as a Golomb Coded Set (GCS), and is prefixed
// by N as a variable length integer when produced by NBytes.  The hash function
// used is SipHash, a keyed function; the key used in building the filter is
// required in order to match filter values and is not included in the
// serialized form.
type Filter struct {
	n          uint32
	p          uint8
	modulusNM  uint64
	filterData []byte // Golomb-Rice deltas without the N prefix
}

// BuildGCSFilter builds a new GCS filter with the collision probability of
// `1/M`, remainder width P, key `key`, and including every `[]byte` in `data`
// as a member of the set.  Elements are not deduplicated.  An empty data set
// yields a filter with N = 0 that never matches.
func BuildGCSFilter(P uint8, M uint64, key [KeySize]byte,
	data [][]byte) (*Filter, error) {

	// Some initial parameter checks: make sure our parameters will fit the
	// hash function we're using.
	if uint64(len(data)) > math.MaxUint32 {
		return nil, MakeError(ErrNTooBig, "N does not fit in uint32")
	}
	if P > 32 {
		return nil, MakeError(ErrPTooBig, "P is too large")
	}

	// Create the filter object and insert metadata.
	f := Filter{
		n:         uint32(len(data)),
		p:         P,
		modulusNM: uint64(len(data)) * M,
	}

	// Allocate filter data.
	values := make([]uint64, 0, len(data))

	// Insert the hash (fast-ranged over a space of N*M) of each data
	// element into a slice and sort the slice.
	for _, d := range data {
		values = append(values, hashToRange(&key, d, f.modulusNM))
	}
	slices.Sort(values)

	w := newGolombWriter(P)

	// Write the sorted list of values into the filter bitstream,
	// compressing it using Golomb coding.
	var lastValue uint64
	for _, v := range values {
		// Each value is stored as its distance from the previous one,
		// the first one as its distance from zero.
		w.writeUint64(v - lastValue)
		lastValue = v
	}

	f.filterData = w.bytes()

	return &f, nil
}

// FromBytes deserializes a GCS filter from a known N, P, M and serialized
// filter as returned by Bytes().
func FromBytes(N uint32, P uint8, M uint64, d []byte) (*Filter, error) {
	// Basic sanity check.
	if P > 32 {
		return nil, MakeError(ErrPTooBig, "P is too large")
	}

	// Copy the filter.
	filterData := make([]byte, len(d))
	copy(filterData, d)

	return &Filter{
		n:          N,
		p:          P,
		modulusNM:  uint64(N) * M,
		filterData: filterData,
	}, nil
}

// FromNBytes deserializes a GCS filter from a known P, M and serialized N and
// filter as returned by NBytes().  The Golomb-Rice data is not validated here;
// corruption surfaces as ErrCorruptFilter from the match functions.
func FromNBytes(P uint8, M uint64, d []byte) (*Filter, error) {
	buffer := bytes.NewReader(d)

	// Since the filter is serialized as N || filter, we'll first read the
	// variable length N from the reader.
	n, err := wire.ReadVarInt(buffer, 0)
	if err != nil {
		str := fmt.Sprintf("unable to read N prefix: %v", err)
		return nil, MakeError(ErrMisserialized, str)
	}
	if n > math.MaxUint32 {
		return nil, MakeError(ErrNTooBig, "N does not fit in uint32")
	}

	return FromBytes(uint32(n), P, M, d[len(d)-buffer.Len():])
}

// Bytes returns the serialized format of the GCS filter, which does not
// include N (returned by a separate method) or the key used by SipHash.
func (f *Filter) Bytes() []byte {
	filterData := make([]byte, len(f.filterData))
	copy(filterData, f.filterData)
	return filterData
}

// NBytes returns the serialized format of the GCS filter with N, which does
// not include the key used by SipHash.
func (f *Filter) NBytes() []byte {
	var buffer bytes.Buffer
	buffer.Grow(wire.VarIntSerializeSize(uint64(f.n)) + len(f.filterData))

	// Writing to a bytes.Buffer never fails.
	_ = wire.WriteVarInt(&buffer, 0, uint64(f.n))
	buffer.Write(f.filterData)

	return buffer.Bytes()
}

// P returns the filter's remainder width in bits.
func (f *Filter) P() uint8 {
	return f.p
}

// N returns the size of the data set used to build the filter.
func (f *Filter) N() uint32 {
	return f.n
}

// Match checks whether a []byte value is likely (within collision probability)
// to be a member of the set represented by the filter.
func (f *Filter) Match(key [KeySize]byte, data []byte) (bool, error) {
	return f.MatchAny(key, [][]byte{data})
}

// MatchAny checks whether any []byte value is likely (within collision
// probability) to be a member of the set represented by the filter.  An empty
// query never matches.
func (f *Filter) MatchAny(key [KeySize]byte, data [][]byte) (bool, error) {
	if len(data) == 0 || f.n == 0 {
		return false, nil
	}

	values := f.hashQuery(&key, data)
	iter := f.iter()

	filterValue, _, err := iter.next()
	if err != nil {
		return false, err
	}

	// Zip down the filters, comparing values until we either run out of
	// values to compare in one of the filters or we reach a matching
	// value.
	i := 0
	for {
		switch {
		case filterValue == values[i]:
			return true, nil

		// Advance the filter we're searching or return false if we're
		// at the end because nothing matched.
		case filterValue < values[i]:
			var ok bool
			filterValue, ok, err = iter.next()
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}

		// Advance the search terms or return false if we're at the end
		// because nothing matched.
		default:
			i++
			if i == len(values) {
				return false, nil
			}
		}
	}
}

// MatchAll checks whether every []byte value is likely (within collision
// probability) to be a member of the set represented by the filter.  An empty
// query never matches.
func (f *Filter) MatchAll(key [KeySize]byte, data [][]byte) (bool, error) {
	if len(data) == 0 || f.n == 0 {
		return false, nil
	}

	values := dedupSorted(f.hashQuery(&key, data))
	iter := f.iter()

	filterValue, _, err := iter.next()
	if err != nil {
		return false, err
	}

	for _, v := range values {
		// Skip filter values below the search term.  Running out of
		// filter values before reaching it means it is missing.
		for filterValue < v {
			var ok bool
			filterValue, ok, err = iter.next()
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		if filterValue != v {
			return false, nil
		}
	}

	return true, nil
}

// hashQuery hashes the search terms into the filter's range and sorts them.
// The range is always derived from the filter's N, not the query size.
func (f *Filter) hashQuery(key *[KeySize]byte, data [][]byte) []uint64 {
	values := make([]uint64, 0, len(data))
	for _, d := range data {
		values = append(values, hashToRange(key, d, f.modulusNM))
	}
	slices.Sort(values)
	return values
}

// dedupSorted removes repeated values from a sorted slice in place.
func dedupSorted(values []uint64) []uint64 {
	if len(values) < 2 {
		return values
	}
	j := 1
	for i := 1; i < len(values); i++ {
		if values[i] != values[j-1] {
			values[j] = values[i]
			j++
		}
	}
	return values[:j]
}

// iter returns an iterator over the values of the filter in ascending order.
func (f *Filter) iter() *iterator {
	return &iterator{
		r:         newBitReader(f.filterData),
		p:         f.p,
		remaining: f.n,
	}
}

// iterator reconstructs the sorted set one delta at a time, so matching never
// materializes the whole filter.
type iterator struct {
	r         bitReader
	p         uint8
	remaining uint32
	value     uint64
}

// next returns the next value of the set.  The second return is false once
// all N values have been read.
func (it *iterator) next() (uint64, bool, error) {
	if it.remaining == 0 {
		return 0, false, nil
	}

	delta, err := it.r.readGolomb(it.p)
	if err != nil {
		return 0, false, err
	}
	it.remaining--
	it.value += delta

	return it.value, true, nil
}

// Hash returns the double-SHA256 hash of the filter in its NBytes form.
func (f *Filter) Hash() chainhash.Hash {
	return chainhash.DoubleHashH(f.NBytes())
}

// MakeHeaderForFilter makes a filter chain header for a filter, given the
// filter and the previous filter chain header.
func MakeHeaderForFilter(filter *Filter, prevHeader *chainhash.Hash) chainhash.Hash {
	filterTip := make([]byte, 2*chainhash.HashSize)
	filterHash := filter.Hash()

	// In the buffer we created above we'll compute hash || prevHash as an
	// intermediate value.
	copy(filterTip, filterHash[:])
	copy(filterTip[chainhash.HashSize:], prevHeader[:])

	// The final filter hash is the double-sha256 of the hash computed
	// above.
	return chainhash.DoubleHashH(filterTip)
}
