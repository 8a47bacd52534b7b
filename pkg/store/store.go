package store

import "context"

// KV represents a key-value pair for scan operations
type KV struct {
	Key   []byte
	Value []byte
}

// Store provides Redis-like key-value and hash operations for indexes and
// configuration data.
type Store interface {
	// KV Operations - for simple key-value storage
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Del(ctx context.Context, key []byte) error
	Scan(ctx context.Context, prefix []byte, limit int) ([]KV, error)

	// Hash Operations - for structured records
	HSet(ctx context.Context, key, field, value []byte) error
	HGet(ctx context.Context, key, field []byte) ([]byte, error)
	HGetAll(ctx context.Context, key []byte) (map[string][]byte, error)
	HDel(ctx context.Context, key []byte, fields ...[]byte) error
	HMSet(ctx context.Context, key []byte, fields map[string][]byte) error

	// Resource management
	Close() error
}
