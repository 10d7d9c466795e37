// Package memory provides the in-process ephemeral tier: a sharded TTL map
// with a switchable capability status.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/capability"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/storage"
)

const defaultShards = 16

type entry struct {
	record    []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

// Cache is a sharded in-memory TTL store. Keys are spread over shards by
// xxhash so unrelated keys rarely contend on the same lock.
type Cache struct {
	shards []*shard
	clock  func() time.Time
	status atomic.Int32
	// listeners receive status changes; guarded by listenMu.
	listenMu  sync.Mutex
	listeners []func(capability.Status)
}

// Option configures a Cache.
type Option func(*Cache)

// WithShards sets the shard count. Values below one are ignored.
func WithShards(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shards = make([]*shard, n)
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New creates an empty cache reporting StatusEnabled.
func New(opts ...Option) *Cache {
	c := &Cache{
		shards: make([]*shard, defaultShards),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.shards {
		c.shards[i] = &shard{items: make(map[string]entry)}
	}
	c.status.Store(int32(capability.StatusEnabled))
	return c
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

// Get implements storage.EphemeralStore.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s := c.shardFor(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.clock()) {
		s.mu.Lock()
		// Re-check: a concurrent Put may have replaced the entry.
		if cur, ok := s.items[key]; ok && cur.expired(c.clock()) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.record))
	copy(out, e.record)
	return out, true, nil
}

// Put implements storage.EphemeralStore. A non-positive ttl stores the
// record without expiry.
func (c *Cache) Put(ctx context.Context, key string, record []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := entry{record: make([]byte, len(record))}
	copy(e.record, record)
	if ttl > 0 {
		e.expiresAt = c.clock().Add(ttl)
	}
	s := c.shardFor(key)
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
	return nil
}

// Len returns the number of unexpired entries.
func (c *Cache) Len() int {
	now := c.clock()
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		for _, e := range s.items {
			if !e.expired(now) {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}

// DeleteExpired removes expired entries and returns how many were dropped.
func (c *Cache) DeleteExpired() int {
	now := c.clock()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for key, e := range s.items {
			if e.expired(now) {
				delete(s.items, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// StartJanitor sweeps expired entries every interval until ctx ends.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if c == nil || interval <= 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.DeleteExpired()
			}
		}
	}()
}

// Status implements capability.Probe with the locally configured status.
func (c *Cache) Status(context.Context) (capability.Status, error) {
	return capability.Status(c.status.Load()), nil
}

// SetStatus changes the reported capability status and notifies listeners.
func (c *Cache) SetStatus(status capability.Status) {
	if capability.Status(c.status.Swap(int32(status))) == status {
		return
	}
	c.listenMu.Lock()
	listeners := append([]func(capability.Status){}, c.listeners...)
	c.listenMu.Unlock()
	for _, fn := range listeners {
		fn(status)
	}
}

// OnStatusChange registers fn to run after every status change.
func (c *Cache) OnStatusChange(fn func(capability.Status)) {
	if fn == nil {
		return
	}
	c.listenMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenMu.Unlock()
}

var (
	_ storage.EphemeralStore = (*Cache)(nil)
	_ capability.Probe       = (*Cache)(nil)
)
