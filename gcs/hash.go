// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2016-2017 The Lightning Network Developers
// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gcs

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/aead/siphash"
)

// KeySize is the size of the byte array required for key material for the
// SipHash keyed hash function.
const KeySize = 16

// KeyFromUint64s packs the two SipHash key halves into the key layout
// expected by the hash function: k0 and k1, each little-endian.
func KeyFromUint64s(k0, k1 uint64) [KeySize]byte {
	var key [KeySize]byte
	binary.LittleEndian.PutUint64(key[0:8], k0)
	binary.LittleEndian.PutUint64(key[8:16], k1)
	return key
}

// KeyToUint64s is the inverse of KeyFromUint64s.
func KeyToUint64s(key [KeySize]byte) (k0, k1 uint64) {
	k0 = binary.LittleEndian.Uint64(key[0:8])
	k1 = binary.LittleEndian.Uint64(key[8:16])
	return k0, k1
}

// DeriveKey creates a filter key from a block identifier: k0 is read
// little-endian from the first 8 bytes of id and k1 from the following 8.
func DeriveKey(id []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	if len(id) < KeySize {
		str := fmt.Sprintf("block identifier of %d bytes is shorter "+
			"than the %d byte filter key", len(id), KeySize)
		return key, MakeError(ErrInvalidKey, str)
	}
	copy(key[:], id[:KeySize])
	return key, nil
}

// hashElement returns the keyed 64-bit SipHash-2-4 of data.
func hashElement(key *[KeySize]byte, data []byte) uint64 {
	return siphash.Sum64(data, key)
}

// fastReduction maps v uniformly into [0, nm) by taking the high 64 bits of
// the 128-bit product v*nm.  It avoids the bias and the division of a modulo
// reduction, see
// https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/
func fastReduction(v, nm uint64) uint64 {
	hi, _ := bits.Mul64(v, nm)
	return hi
}

// hashToRange hashes data with key and reduces the result into [0, nm).
func hashToRange(key *[KeySize]byte, data []byte, nm uint64) uint64 {
	return fastReduction(hashElement(key, data), nm)
}
