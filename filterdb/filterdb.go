// Copyright (c) 2018-2020 The Decred developers
// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filterdb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ergvein/filters"
	"github.com/syndtr/goleveldb/leveldb"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"
)

var (
	// dbKeyVersion is the key of the database layout version.
	dbKeyVersion = []byte("version")

	// dbKeyFilterPrefix prefixes the keys of stored filter contents.  The
	// rest of the key is the currency byte followed by the block id.
	dbKeyFilterPrefix = []byte("fltr")

	// dbKeyHeaderPrefix prefixes the keys of stored filter headers, laid
	// out like the filter keys.
	dbKeyHeaderPrefix = []byte("fhdr")

	// currentDbVersion is the only layout this package reads and writes.
	currentDbVersion = []byte{1}
)

// ErrFilterNotFound is returned when no filter is stored for a block.
var ErrFilterNotFound = errors.New("filter not found")

// DB is a leveldb backed store of filter contents and filter headers keyed by
// currency and block id.  It is safe for concurrent use.
type DB struct {
	db *leveldb.DB
}

// Open opens or creates the filter database at path.  A database written with
// a different layout version is rejected.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("error opening filter database: %v", err)
	}

	version, err := db.Get(dbKeyVersion, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		if err := db.Put(dbKeyVersion, currentDbVersion, nil); err != nil {
			db.Close()
			return nil, fmt.Errorf("error writing version to db: %v",
				err)
		}
		log.Infof("Created filter database at %s", path)

	case err != nil:
		db.Close()
		return nil, fmt.Errorf("error reading version from db: %v", err)

	case !bytes.Equal(version, currentDbVersion):
		db.Close()
		return nil, fmt.Errorf("unsupported filter database version %x",
			version)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func dbKey(prefix []byte, currency filters.Currency, blockID []byte) []byte {
	key := make([]byte, 0, len(prefix)+1+len(blockID))
	key = append(key, prefix...)
	key = append(key, byte(currency))
	return append(key, blockID...)
}

// PutFilter stores the filter of the block with the passed id.  When
// prevHeader is not nil the filter header committing to it is stored as
// well.
func (d *DB) PutFilter(blockID []byte, f *filters.Filter,
	prevHeader *chainhash.Hash) error {

	batch := new(leveldb.Batch)
	batch.Put(dbKey(dbKeyFilterPrefix, f.Currency(), blockID), f.Content())
	if prevHeader != nil {
		header := f.Header(prevHeader)
		batch.Put(dbKey(dbKeyHeaderPrefix, f.Currency(), blockID),
			header[:])
	}

	if err := d.db.Write(batch, nil); err != nil {
		return fmt.Errorf("error writing filter to db: %v", err)
	}
	log.Debugf("Stored %v filter of block %x", f.Currency(), blockID)

	return nil
}

// FetchFilter loads the stored filter of the block with the passed id.  It
// returns ErrFilterNotFound when the block has no stored filter.
func (d *DB) FetchFilter(currency filters.Currency,
	blockID []byte) (*filters.Filter, error) {

	content, err := d.db.Get(dbKey(dbKeyFilterPrefix, currency, blockID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrFilterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading filter from db: %v", err)
	}

	return filters.New(currency, content)
}

// FetchHeader loads the stored filter header of the block with the passed
// id.  It returns ErrFilterNotFound when no header was stored.
func (d *DB) FetchHeader(currency filters.Currency,
	blockID []byte) (*chainhash.Hash, error) {

	b, err := d.db.Get(dbKey(dbKeyHeaderPrefix, currency, blockID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrFilterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header from db: %v", err)
	}

	return chainhash.NewHash(b)
}

// ForEachFilter calls fn with every stored filter of the passed currency in
// block id byte order.  Iteration stops at the first error, which is
// returned.
func (d *DB) ForEachFilter(currency filters.Currency,
	fn func(blockID []byte, f *filters.Filter) error) error {

	prefix := dbKey(dbKeyFilterPrefix, currency, nil)
	iter := d.db.NewIterator(ldbutil.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		// The iterator reuses its buffers between steps.
		blockID := bytes.Clone(iter.Key()[len(prefix):])
		f, err := filters.New(currency, bytes.Clone(iter.Value()))
		if err != nil {
			return fmt.Errorf("stored filter of block %x: %w", blockID,
				err)
		}
		if err := fn(blockID, f); err != nil {
			return err
		}
	}

	return iter.Error()
}
