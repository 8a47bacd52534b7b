package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/b-open-io/did-resolver/pkg/logging"
)

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	return path
}

// Key prefixes for different data types
var (
	prefixKV   = []byte("kv:")
	prefixHash = []byte("hash:")
)

// ErrKeyNotFound is returned when a key doesn't exist
var ErrKeyNotFound = errors.New("key not found")

// maxRetries is the number of times to retry a transaction on conflict
const maxRetries = 10

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// update wraps db.Update with retry logic for transaction conflicts.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxRetries; i++ {
		err := s.db.Update(fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return badger.ErrConflict
}

// NewBadgerStoreFromConfig creates a new BadgerDB-backed Store from config.
func NewBadgerStoreFromConfig(cfg *BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := expandPath(cfg.Path)

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if path == "" {
			return nil, fmt.Errorf("path required for disk-based storage")
		}
		opts = badger.DefaultOptions(path)
	}

	opts = opts.WithLogger(&logging.BadgerLogger{
		Logger: logger,
		Level:  logging.ParseLevel(cfg.LogLevel),
	})

	logger.Info("opening BadgerDB", "path", path, "inMemory", cfg.InMemory)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &BadgerStore{
		db:     db,
		logger: logger,
	}, nil
}

func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Key construction helpers

func prefixed(prefix, key []byte) []byte {
	buf := make([]byte, 0, len(prefix)+len(key))
	buf = append(buf, prefix...)
	buf = append(buf, key...)
	return buf
}

func hashKey(key, field []byte) []byte {
	buf := make([]byte, 0, len(prefixHash)+len(key)+1+len(field))
	buf = append(buf, prefixHash...)
	buf = append(buf, key...)
	buf = append(buf, ':')
	buf = append(buf, field...)
	return buf
}

func hashPrefix(key []byte) []byte {
	buf := make([]byte, 0, len(prefixHash)+len(key)+1)
	buf = append(buf, prefixHash...)
	buf = append(buf, key...)
	buf = append(buf, ':')
	return buf
}

func (s *BadgerStore) get(k []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = bytes.Clone(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

// KV Operations

func (s *BadgerStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	return s.get(prefixed(prefixKV, key))
}

func (s *BadgerStore) Set(ctx context.Context, key, value []byte) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(prefixed(prefixKV, key), value)
	})
}

func (s *BadgerStore) Del(ctx context.Context, key []byte) error {
	return s.update(func(txn *badger.Txn) error {
		err := txn.Delete(prefixed(prefixKV, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (s *BadgerStore) Scan(ctx context.Context, prefix []byte, limit int) ([]KV, error) {
	var results []KV
	fullPrefix := prefixed(prefixKV, prefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fullPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			key := bytes.Clone(item.Key()[len(prefixKV):])

			var value []byte
			err := item.Value(func(val []byte) error {
				value = bytes.Clone(val)
				return nil
			})
			if err != nil {
				return err
			}

			results = append(results, KV{Key: key, Value: value})
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []KV{}
	}
	return results, nil
}

// Hash Operations

func (s *BadgerStore) HSet(ctx context.Context, key, field, value []byte) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(hashKey(key, field), value)
	})
}

func (s *BadgerStore) HGet(ctx context.Context, key, field []byte) ([]byte, error) {
	return s.get(hashKey(key, field))
}

func (s *BadgerStore) HGetAll(ctx context.Context, key []byte) (map[string][]byte, error) {
	result := make(map[string][]byte)
	prefix := hashPrefix(key)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			field := string(item.Key()[len(prefix):])

			err := item.Value(func(val []byte) error {
				result[field] = bytes.Clone(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return result, err
}

func (s *BadgerStore) HDel(ctx context.Context, key []byte, fields ...[]byte) error {
	return s.update(func(txn *badger.Txn) error {
		for _, field := range fields {
			if err := txn.Delete(hashKey(key, field)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) HMSet(ctx context.Context, key []byte, fields map[string][]byte) error {
	if len(fields) == 0 {
		return nil
	}
	return s.update(func(txn *badger.Txn) error {
		for field, value := range fields {
			if err := txn.Set(hashKey(key, []byte(field)), value); err != nil {
				return err
			}
		}
		return nil
	})
}
