// Package badgerkv implements the kv interface using BadgerDB.
package badgerkv

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/coniks-sys/treesync/storage/kv"
)

type badgerkv struct {
	db *badger.DB
}

type op struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	ops []op
}

var _ kv.DB = (*badgerkv)(nil)
var _ kv.Batch = (*batch)(nil)

// OpenDB opens (or creates) the badger database at path with synchronous
// writes and Snappy compression. Badger's own logging is disabled.
func OpenDB(path string) (kv.DB, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithCompression(options.Snappy).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badgerdb: %w", err)
	}
	return Wrap(db), nil
}

// Wrap uses a badger.DB as a kv.DB.
func Wrap(db *badger.DB) kv.DB {
	return &badgerkv{db: db}
}

func (b *badgerkv) Get(key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *badgerkv) Put(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *badgerkv) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *badgerkv) NewBatch() kv.Batch {
	return new(batch)
}

// Write applies the batch in a single transaction.
func (b *badgerkv) Write(kb kv.Batch) error {
	wb, ok := kb.(*batch)
	if !ok {
		return fmt.Errorf("badgerkv.Write: expected *badgerkv.batch, got %T", kb)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, o := range wb.ops {
			if o.delete {
				if err := txn.Delete(o.key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(o.key, o.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *badgerkv) Close() error {
	return b.db.Close()
}

func (b *badgerkv) ErrNotFound() error {
	return badger.ErrKeyNotFound
}

func (wb *batch) Reset() {
	wb.ops = wb.ops[:0]
}

func (wb *batch) Put(key, value []byte) {
	wb.ops = append(wb.ops, op{
		key:   append([]byte{}, key...),
		value: append([]byte{}, value...),
	})
}

func (wb *batch) Delete(key []byte) {
	wb.ops = append(wb.ops, op{key: append([]byte{}, key...), delete: true})
}
