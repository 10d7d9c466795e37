package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/rendezvous/internal/services/rendezvous/domain"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/storage"
)

// TierKind names a backing tier.
type TierKind string

const (
	// TierEphemeral is the fast TTL-bound tier.
	TierEphemeral TierKind = "ephemeral"
	// TierDurable is the non-expiring fallback tier.
	TierDurable TierKind = "durable"
)

// Tier is one interchangeable backing strategy for the rendezvous contract.
type Tier interface {
	Kind() TierKind
	Put(ctx context.Context, key string, bundle domain.Bundle) error
	Get(ctx context.Context, key string) (domain.Bundle, bool, error)
}

// ephemeralTier keeps whole bundles as opaque records under a namespaced
// cache key, expiring after ttl.
type ephemeralTier struct {
	cache     storage.EphemeralStore
	namespace string
	ttl       time.Duration
	logf      func(string, ...any)
}

func (t *ephemeralTier) Kind() TierKind { return TierEphemeral }

func (t *ephemeralTier) cacheKey(key string) string {
	return t.namespace + key
}

func (t *ephemeralTier) Put(ctx context.Context, key string, bundle domain.Bundle) error {
	rec, err := encodeRecord(bundle)
	if err != nil {
		return err
	}
	if err := t.cache.Put(ctx, t.cacheKey(key), rec, t.ttl); err != nil {
		return fmt.Errorf("ephemeral put: %w", err)
	}
	return nil
}

func (t *ephemeralTier) Get(ctx context.Context, key string) (domain.Bundle, bool, error) {
	rec, ok, err := t.cache.Get(ctx, t.cacheKey(key))
	if err != nil {
		return domain.Bundle{}, false, fmt.Errorf("ephemeral get: %w", err)
	}
	if !ok {
		return domain.Bundle{}, false, nil
	}
	bundle, err := decodeRecord(rec)
	if err != nil {
		if t.logf != nil {
			t.logf("ignore undecodable ephemeral record for %q: %v", key, err)
		}
		return domain.Bundle{}, false, nil
	}
	return bundle, true, nil
}

// durableTier keeps only the address field of each bundle.
type durableTier struct {
	addresses storage.AddressStore
}

func (t *durableTier) Kind() TierKind { return TierDurable }

func (t *durableTier) Put(ctx context.Context, key string, bundle domain.Bundle) error {
	address, ok := bundle.Get(domain.FieldAddress)
	if !ok {
		return domain.ErrMalformedBundle(key)
	}
	if err := t.addresses.StoreAddressByKey(ctx, key, address); err != nil {
		return fmt.Errorf("durable put: %w", err)
	}
	return nil
}

func (t *durableTier) Get(ctx context.Context, key string) (domain.Bundle, bool, error) {
	address, err := t.addresses.FindAddressByKey(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Bundle{}, false, nil
	}
	if err != nil {
		return domain.Bundle{}, false, fmt.Errorf("durable get: %w", err)
	}
	return domain.NewBundle(domain.FieldKey, key, domain.FieldAddress, address), true, nil
}
