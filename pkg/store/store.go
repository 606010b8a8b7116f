// Package store persists relay records in a local Badger database so the
// daemon can serve a transfer history. Records are cbor-encoded; keys are
// prefixed with "relay/" followed by the record id.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/dapperlabs/dapper-relay/pkg/relay"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("store: record not found")

var recordPrefix = []byte("relay/")

// Store is a Badger-backed relay history.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes rec, overwriting any previous version with the same id.
func (s *Store) Save(rec *relay.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("store: record has no id")
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode record %s: %w", rec.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(recordPrefix, rec.ID...), data)
	})
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(id string) (*relay.Record, error) {
	var rec relay.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(append(recordPrefix, id...))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records, newest first.
func (s *Store) List() ([]*relay.Record, error) {
	var records []*relay.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec relay.Record
			err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// BackupTo streams a full backup into dir and returns the file it wrote.
// Filenames embed a UTC timestamp so successive backups sort naturally.
func (s *Store) BackupTo(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: create backup dir: %w", err)
	}
	name := filepath.Join(dir, fmt.Sprintf("relay-%s.bak", time.Now().UTC().Format("20060102T150405Z")))
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("store: create backup file: %w", err)
	}
	defer f.Close()
	if _, err := s.db.Backup(f, 0); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("store: backup: %w", err)
	}
	return name, nil
}
