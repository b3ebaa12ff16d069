// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/lru"
	"github.com/ergvein/filters/ergo"
	"github.com/ergvein/filters/gcs"
	"github.com/ergvein/filters/gcs/btccf"
	"github.com/ergvein/filters/gcs/ergocf"
)

// missingTxCacheSize is the number of transactions the node failed to return
// that are remembered so they are not requested again.
const missingTxCacheSize = 1000

// txSource is the part of the RPC client used to resolve previous outputs.
type txSource interface {
	GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error)
}

// prevScriptCache resolves previous output scripts from known transactions,
// falling back to the node for transactions it has not seen yet.
type prevScriptCache struct {
	source txSource
	cache  btccf.MapFetcher
	known  map[chainhash.Hash]struct{}

	// missing holds hashes of transactions the node could not return.
	missing lru.Cache
}

func newPrevScriptCache(source txSource) *prevScriptCache {
	return &prevScriptCache{
		source: source,
		cache:  btccf.MapFetcher{},
		known:  make(map[chainhash.Hash]struct{}),

		missing: lru.NewCache(missingTxCacheSize),
	}
}

// addTx makes the outputs of tx resolvable without a round trip.
func (c *prevScriptCache) addTx(tx *wire.MsgTx) {
	c.cache.AddTx(tx)
	c.known[tx.TxHash()] = struct{}{}
}

// fetch implements btccf.PrevScriptFetcher.
func (c *prevScriptCache) fetch(op wire.OutPoint) ([]byte, error) {
	if _, ok := c.known[op.Hash]; !ok {
		if c.missing.Contains(op.Hash) {
			str := fmt.Sprintf("previous transaction %v is not "+
				"available", op.Hash)
			return nil, gcs.MakeError(gcs.ErrUnresolvedReference, str)
		}

		tx, err := c.source.GetRawTransaction(&op.Hash)
		if err != nil {
			c.missing.Add(op.Hash)
			return nil, err
		}
		log.Tracef("Fetched previous transaction %v", op.Hash)
		c.addTx(tx.MsgTx())
	}
	return c.cache.Fetch(op)
}

// readBoxScripts parses lines of hex encoded box identifiers and ErgoTrees
// separated by whitespace.  Empty lines and lines starting with # are
// skipped.
func readBoxScripts(r io.Reader) (ergocf.MapFetcher, error) {
	boxes := ergocf.MapFetcher{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want '<box id> <ergo "+
				"tree>', got %d fields", lineNum, len(fields))
		}

		id, err := hex.DecodeString(fields[0])
		if err != nil || len(id) != ergo.IDSize {
			return nil, fmt.Errorf("line %d: invalid box id %q",
				lineNum, fields[0])
		}
		tree, err := hex.DecodeString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid ergo tree: %v",
				lineNum, err)
		}

		var boxID ergo.BoxID
		copy(boxID[:], id)
		boxes[boxID] = tree
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return boxes, nil
}
