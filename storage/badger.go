// Package storage provides a BadgerDB-backed key/value store used for
// persistent request deduplication and the HTTP cache middleware. Unlike
// the engine's in-memory dedup index, a Badger store survives restarts on
// its own, without relying on checkpoints.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Options configures a BadgerStore.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in RAM; handy for tests and cache-only use.
	InMemory bool
	// Reset removes any existing database before opening.
	Reset bool
	Logger *zap.Logger
}

// BadgerStore is a concurrent-safe KV store. It implements
// spinneret.DedupStore and the Get/Set pair the cache middleware needs.
type BadgerStore struct {
	db       *badger.DB
	logger   *zap.Logger
	keyCount atomic.Int64
}

// seenPrefix namespaces dedup keys away from cache entries.
const seenPrefix = "seen:"

// Open initializes a BadgerStore.
func Open(opts Options) (*BadgerStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Reset && !opts.InMemory && opts.Dir != "" {
		if err := os.RemoveAll(opts.Dir); err != nil {
			return nil, fmt.Errorf("reset store dir %s: %w", opts.Dir, err)
		}
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithLogger(newBadgerLogger(logger)).
		WithNumVersionsToKeep(1)
	if opts.InMemory {
		badgerOpts.Dir = ""
		badgerOpts.ValueDir = ""
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	store := &BadgerStore{db: db, logger: logger}
	count, err := store.countSeenKeys()
	if err != nil {
		logger.Warn("count existing dedup keys", zap.Error(err))
	} else {
		store.keyCount.Store(int64(count))
	}
	return store, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger database: %w", err)
	}
	return nil
}

// MarkIfNew implements spinneret.DedupStore: it stores the key if unseen
// and reports whether this call was the first.
func (s *BadgerStore) MarkIfNew(key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	fresh := false
	dbKey := []byte(seenPrefix + key)
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(dbKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		fresh = true
		return txn.Set(dbKey, nil)
	})
	if err != nil {
		return false, fmt.Errorf("mark key: %w", err)
	}
	if fresh {
		s.keyCount.Add(1)
	}
	return fresh, nil
}

// Keys returns every recorded dedup key.
func (s *BadgerStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(seenPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(seenPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	return keys, nil
}

// Len returns the number of recorded dedup keys.
func (s *BadgerStore) Len() int {
	return int(s.keyCount.Load())
}

// Get fetches an arbitrary value; ok is false when the key is absent.
func (s *BadgerStore) Get(key string) (value []byte, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, ok, nil
}

// Set stores an arbitrary value.
func (s *BadgerStore) Set(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) countSeenKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(seenPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func newBadgerLogger(l *zap.Logger) badger.Logger {
	return &badgerLogger{sugar: l.Named("badger").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...any)   { l.sugar.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...any) { l.sugar.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...any)    { l.sugar.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...any)   { l.sugar.Debugf(format, args...) }
