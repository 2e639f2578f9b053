// Package store persists applied fail point configurations so that a
// restarted daemon comes back with the same fail points turned on.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/testground/failpoint/pkg/failpoint"
)

// PREFIX is prepended to the fail point name to form the leveldb key.
const PREFIX = "failpoint"

// ErrNotFound is returned by Get when no configuration is stored for a name.
var ErrNotFound = errors.New("configuration not found")

// Store is a leveldb backed key-value store of configuration requests, keyed
// by fail point name. The stored value is the request as it was accepted.
type Store struct {
	sync.Mutex
	db *leveldb.DB
	// leveldb.Open does not take ownership of the storage; Close releases it.
	stor storage.Storage
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	s, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return open(s)
}

// OpenInMem opens a store backed by memory only.
func OpenInMem() (*Store, error) {
	return open(storage.NewMemStorage())
}

func open(s storage.Storage) (*Store, error) {
	db, err := leveldb.Open(s, nil)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return &Store{db: db, stor: s}, nil
}

func key(name string) []byte {
	return []byte(strings.Join([]string{PREFIX, name}, ":"))
}

// Put stores req as the configuration of name, replacing any previous one.
func (s *Store) Put(name string, req failpoint.Document) error {
	val, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode configuration of %s: %w", name, err)
	}

	s.Lock()
	defer s.Unlock()

	return s.db.Put(key(name), val, &opt.WriteOptions{
		Sync: true,
	})
}

// Get returns the configuration stored for name.
func (s *Store) Get(name string) (failpoint.Document, error) {
	val, err := s.db.Get(key(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(val)
}

// Delete removes the configuration stored for name. Deleting a missing name
// is not an error.
func (s *Store) Delete(name string) error {
	s.Lock()
	defer s.Unlock()

	return s.db.Delete(key(name), &opt.WriteOptions{
		Sync: true,
	})
}

// All returns every stored configuration, keyed by fail point name.
func (s *Store) All() (map[string]failpoint.Document, error) {
	prefix := []byte(PREFIX + ":")
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	out := make(map[string]failpoint.Document)
	for iter.Next() {
		name := string(bytes.TrimPrefix(iter.Key(), prefix))
		doc, err := decode(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to decode configuration of %s: %w", name, err)
		}
		out[name] = doc
	}
	return out, iter.Error()
}

// Close closes the underlying database and releases its storage, including
// the file lock of an on-disk store.
func (s *Store) Close() error {
	err := s.db.Close()
	if serr := s.stor.Close(); err == nil {
		err = serr
	}
	return err
}

// decode keeps numbers as json.Number so that integer fields survive the
// round trip exactly.
func decode(val []byte) (failpoint.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(val))
	dec.UseNumber()

	var doc failpoint.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
