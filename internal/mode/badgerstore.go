// SPDX-License-Identifier: MIT

package mode

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists key-value state in a Badger database, for deployments
// that already carry one for other state.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the store at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error { return s.db.Close() }

func storeKey(key string) []byte { return []byte("mode:" + key) }

// Get implements Store.
func (s *BadgerStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set implements Store.
func (s *BadgerStore) Set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey(key), []byte(value))
	})
}

// Remove implements Store.
func (s *BadgerStore) Remove(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(storeKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
