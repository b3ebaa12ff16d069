// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package filters provides compact committed block filters for the chains
supported by the Ergvein wallet.

A filter is a Golomb-coded set of the scripts a block creates and spends,
keyed by the block identifier.  A light client downloads the filter of every
block, matches its own scripts against it locally and only fetches the blocks
that match, without revealing its addresses to the server.

Filters of every chain share one encoding, so Filter wraps the serialized
content together with the chain it belongs to.  Building filters is chain
specific and lives in the subpackages:

  - gcs implements the filter encoding and matching
  - gcs/btccf builds bitcoin block and mempool filters
  - gcs/ergocf builds Ergo block filters
  - ergo decodes the Ergo transaction format
  - filterdb stores built filters and their headers

Example

	f, err := filters.New(filters.BTC, content)
	if err != nil {
		return err
	}
	match, err := f.MatchAny(blockHash[:], myScripts)
*/
package filters
