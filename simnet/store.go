// Copyright (c) 2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simnet

import (
	"bytes"
	"encoding/binary"

	"github.com/decred/dcrd/wire"
	"github.com/decred/dcrwallet/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Database keys.  Blocks are keyed by big endian height so iteration
// returns them in chain order.
var (
	blockPrefix = []byte("blk")
	tipKey      = []byte("tipheight")
	seedKey     = []byte("walletseed")
	keyCountKey = []byte("walletkeys")
)

// store persists a node's main chain and wallet key state.
type store struct {
	db *leveldb.DB
}

// openStore opens the database at dir, or an in-memory database when dir
// is empty.
func openStore(dir string) (*store, error) {
	const op errors.Op = "simnet.openStore"
	var db *leveldb.DB
	var err error
	if dir == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(dir, &opt.Options{})
	}
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return &store{db: db}, nil
}

func (s *store) close() error {
	if err := s.db.Close(); err != nil {
		return errors.E(errors.IO, err)
	}
	return nil
}

// update runs f in a database transaction, committing when f succeeds.
func (s *store) update(f func(tx *leveldb.Transaction) error) error {
	tx, err := s.db.OpenTransaction()
	if err != nil {
		return errors.E(errors.IO, err)
	}
	if err := f(tx); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.E(errors.IO, err)
	}
	return nil
}

func blockKey(height int64) []byte {
	k := make([]byte, len(blockPrefix)+8)
	copy(k, blockPrefix)
	binary.BigEndian.PutUint64(k[len(blockPrefix):], uint64(height))
	return k
}

// putBlock stores block as the new main chain tip.
func (s *store) putBlock(block *wire.MsgBlock) error {
	var buf bytes.Buffer
	buf.Grow(block.SerializeSize())
	if err := block.Serialize(&buf); err != nil {
		return errors.E(errors.Encoding, err)
	}
	height := int64(block.Header.Height)
	var tip [8]byte
	binary.BigEndian.PutUint64(tip[:], uint64(height))
	return s.update(func(tx *leveldb.Transaction) error {
		wo := &opt.WriteOptions{Sync: true}
		if err := tx.Put(blockKey(height), buf.Bytes(), wo); err != nil {
			return errors.E(errors.IO, err)
		}
		if err := tx.Put(tipKey, tip[:], wo); err != nil {
			return errors.E(errors.IO, err)
		}
		return nil
	})
}

// blocks returns the stored main chain in height order.
func (s *store) blocks() ([]*wire.MsgBlock, error) {
	tip, err := s.db.Get(tipKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.E(errors.IO, err)
	}
	tipHeight := int64(binary.BigEndian.Uint64(tip))

	var blocks []*wire.MsgBlock
	it := s.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer it.Release()
	for it.Next() {
		height := int64(binary.BigEndian.Uint64(it.Key()[len(blockPrefix):]))
		if height > tipHeight {
			break
		}
		if height != int64(len(blocks)) {
			return nil, errors.E(errors.IO, errors.Errorf("missing block at height %d", len(blocks)))
		}
		block := new(wire.MsgBlock)
		if err := block.Deserialize(bytes.NewReader(it.Value())); err != nil {
			return nil, errors.E(errors.Encoding, err)
		}
		blocks = append(blocks, block)
	}
	if err := it.Error(); err != nil {
		return nil, errors.E(errors.IO, err)
	}
	return blocks, nil
}

// walletSeed returns the stored wallet seed, or nil when none was stored.
func (s *store) walletSeed() ([]byte, error) {
	seed, err := s.db.Get(seedKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.E(errors.IO, err)
	}
	return seed, nil
}

func (s *store) putWalletSeed(seed []byte) error {
	if err := s.db.Put(seedKey, seed, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.E(errors.IO, err)
	}
	return nil
}

// keyCount returns the number of wallet keys derived so far.
func (s *store) keyCount() (uint32, error) {
	v, err := s.db.Get(keyCountKey, nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.E(errors.IO, err)
	}
	if len(v) != 4 {
		return 0, errors.E(errors.Encoding, "bad wallet key count")
	}
	return binary.BigEndian.Uint32(v), nil
}

func (s *store) putKeyCount(n uint32) error {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], n)
	if err := s.db.Put(keyCountKey, v[:], nil); err != nil {
		return errors.E(errors.IO, err)
	}
	return nil
}
