// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/ergvein/filters"
	"github.com/ergvein/filters/filterdb"
	"github.com/ergvein/filters/gcs/btccf"
	"github.com/ergvein/filters/gcs/ergocf"
)

// matchFunc matches a query against a built or loaded filter.
type matchFunc func(query [][]byte) (bool, error)

// newRPCClient connects to the configured node over HTTP POST.
func newRPCClient(cfg *config) (*rpcclient.Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.RPCServer,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPassword,
		HTTPPostMode: true,
		DisableTLS:   cfg.NoTLS,
		Proxy:        cfg.Proxy,
		ProxyUser:    cfg.ProxyUser,
		ProxyPass:    cfg.ProxyPass,
	}
	if !cfg.NoTLS {
		certs, err := os.ReadFile(cfg.RPCCert)
		if err != nil {
			return nil, err
		}
		connCfg.Certificates = certs
	}

	return rpcclient.New(connCfg, nil)
}

// storedFilter returns the filter of the block kept in db, or nil when db is
// not in use or has no filter for the block.
func storedFilter(db *filterdb.DB, currency filters.Currency,
	blockID []byte) (*filters.Filter, error) {

	if db == nil {
		return nil, nil
	}
	f, err := db.FetchFilter(currency, blockID)
	if errors.Is(err, filterdb.ErrFilterNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %v filter of block %x from the database", currency,
		blockID)
	return f, nil
}

// storeFilter saves a freshly built filter when db is in use, together with
// its filter header when prevHeader is not nil.
func storeFilter(db *filterdb.DB, blockID []byte, f *filters.Filter,
	prevHeader *chainhash.Hash) error {

	if db == nil {
		return nil
	}
	return db.PutFilter(blockID, f, prevHeader)
}

// btcBlockFilter builds the filter of the configured block.
func btcBlockFilter(client *rpcclient.Client, db *filterdb.DB,
	cfg *config) (*filters.Filter, []byte, error) {

	var blockHash *chainhash.Hash
	var err error
	if cfg.Block != "" {
		blockHash, err = chainhash.NewHashFromStr(cfg.Block)
	} else {
		blockHash, err = client.GetBlockHash(cfg.Height)
	}
	if err != nil {
		return nil, nil, err
	}

	stored, err := storedFilter(db, filters.BTC, blockHash[:])
	if err != nil || stored != nil {
		return stored, blockHash[:], err
	}

	block, err := client.GetBlock(blockHash)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Building filter for block %v with %d transactions",
		blockHash, len(block.Transactions))

	// Outputs spent within the same block resolve without the node.
	cache := newPrevScriptCache(client)
	for _, tx := range block.Transactions {
		cache.addTx(tx)
	}

	f, err := btccf.NewBlockFilter(block, cache.fetch)
	if err != nil {
		return nil, nil, err
	}
	built := filters.FromBTC(f)

	return built, blockHash[:], storeFilter(db, blockHash[:], built,
		cfg.prevHeader)
}

// mempoolFilter builds the filter of the node's mempool.
func mempoolFilter(client *rpcclient.Client, cfg *config) (*btccf.MempoolFilter, error) {
	hashes, err := client.GetRawMempool()
	if err != nil {
		return nil, err
	}
	log.Infof("Building filter for %d mempool transactions", len(hashes))

	cache := newPrevScriptCache(client)
	txs := make([]*wire.MsgTx, 0, len(hashes))
	for _, txHash := range hashes {
		tx, err := client.GetRawTransaction(txHash)
		if err != nil {
			return nil, err
		}
		cache.addTx(tx.MsgTx())
		txs = append(txs, tx.MsgTx())
	}

	return btccf.NewMempoolFilter(cfg.K0, cfg.K1, txs, cache.fetch)
}

// ergoBlockFilter builds the filter of an Ergo block read from files.
func ergoBlockFilter(db *filterdb.DB, cfg *config) (*filters.Filter, []byte, error) {
	blockID, err := hex.DecodeString(cfg.ErgoID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid block id: %v", err)
	}
	stored, err := storedFilter(db, filters.Ergo, blockID)
	if err != nil || stored != nil {
		return stored, blockID, err
	}

	raw, err := os.ReadFile(cleanAndExpandPath(cfg.ErgoBlock))
	if err != nil {
		return nil, nil, err
	}
	block, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid block hex: %v", err)
	}

	boxes := ergocf.MapFetcher{}
	if cfg.ErgoBoxes != "" {
		file, err := os.Open(cleanAndExpandPath(cfg.ErgoBoxes))
		if err != nil {
			return nil, nil, err
		}
		defer file.Close()

		boxes, err = readBoxScripts(file)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %v", cfg.ErgoBoxes, err)
		}
	}
	log.Infof("Building filter for Ergo block %x with %d known boxes",
		blockID, len(boxes))

	f, err := ergocf.NewScriptFilter(blockID, block, boxes.Fetch)
	if err != nil {
		return nil, nil, err
	}
	built := filters.FromErgo(f)

	return built, blockID, storeFilter(db, blockID, built, cfg.prevHeader)
}

// loadFilter loads the filter passed on the command line.
func loadFilter(cfg *config) (*filters.Filter, []byte, error) {
	content, err := hex.DecodeString(cfg.Filter)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid filter hex: %v", err)
	}
	f, err := filters.New(cfg.currency, content)
	if err != nil {
		return nil, nil, err
	}

	// Bitcoin block hashes are given in their usual byte reversed form.
	if cfg.currency == filters.BTC {
		blockHash, err := chainhash.NewHashFromStr(cfg.BlockID)
		if err != nil {
			return nil, nil, err
		}
		return f, blockHash[:], nil
	}

	blockID, err := hex.DecodeString(cfg.BlockID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid block id: %v", err)
	}
	return f, blockID, nil
}

// blockFilter builds or loads the filter of a single block.
func blockFilter(cfg *config) (*filters.Filter, []byte, error) {
	if cfg.Filter != "" {
		return loadFilter(cfg)
	}

	var db *filterdb.DB
	if cfg.DBFile != "" {
		var err error
		db, err = filterdb.Open(cfg.DBFile)
		if err != nil {
			return nil, nil, err
		}
		defer db.Close()
	}

	if cfg.ErgoBlock != "" {
		return ergoBlockFilter(db, cfg)
	}

	client, err := newRPCClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer client.Shutdown()

	return btcBlockFilter(client, db, cfg)
}

func run(cfg *config) error {
	var content []byte
	var match, matchAll matchFunc

	if cfg.Mempool {
		client, err := newRPCClient(cfg)
		if err != nil {
			return err
		}
		defer client.Shutdown()

		f, err := mempoolFilter(client, cfg)
		if err != nil {
			return err
		}
		content = f.Content()
		fmt.Printf("elements: %d\n", f.N())

		match = func(q [][]byte) (bool, error) {
			return f.MatchAny(cfg.K0, cfg.K1, q)
		}
		matchAll = func(q [][]byte) (bool, error) {
			return f.MatchAll(cfg.K0, cfg.K1, q)
		}
	} else {
		f, blockID, err := blockFilter(cfg)
		if err != nil {
			return err
		}
		content = f.Content()
		fmt.Printf("currency: %v\n", f.Currency())
		fmt.Printf("elements: %d\n", f.N())
		fmt.Printf("hash: %v\n", f.Hash())
		if cfg.prevHeader != nil {
			fmt.Printf("header: %v\n", f.Header(cfg.prevHeader))
		}

		match = func(q [][]byte) (bool, error) {
			return f.MatchAny(blockID, q)
		}
		matchAll = func(q [][]byte) (bool, error) {
			return f.MatchAll(blockID, q)
		}
	}
	fmt.Printf("filter: %x\n", content)

	if len(cfg.query) == 0 {
		return nil
	}
	if cfg.All {
		match = matchAll
	}
	matched, err := match(cfg.query)
	if err != nil {
		return err
	}
	fmt.Printf("match: %v\n", matched)

	return nil
}

func main() {
	cfg, _, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}

	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	defer logRotator.Close()
	setLogLevels(cfg.DebugLevel)

	if err := run(cfg); err != nil {
		log.Errorf("%v", err)
		logRotator.Close()
		os.Exit(1)
	}
}
