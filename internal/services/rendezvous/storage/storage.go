// Package storage defines the backing tier contracts used by the rendezvous store.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested durable record is missing.
var ErrNotFound = errors.New("record not found")

// EphemeralStore is the fast TTL-bound tier. Records are opaque bytes.
// Implementations must be safe for concurrent use.
type EphemeralStore interface {
	// Get returns the record stored under key. Expired records are reported
	// as missing.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores record under key for ttl, replacing any previous record.
	Put(ctx context.Context, key string, record []byte, ttl time.Duration) error
}

// AddressStore is the durable tier. It keeps one address per key and never
// expires entries.
type AddressStore interface {
	// FindAddressByKey returns the address stored for key or ErrNotFound.
	FindAddressByKey(ctx context.Context, key string) (string, error)
	// StoreAddressByKey upserts the address for key and stamps its last use.
	StoreAddressByKey(ctx context.Context, key, address string) error
}
