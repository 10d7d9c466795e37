package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/rendezvous/internal/services/rendezvous/capability"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCachePutGetRoundTrip(t *testing.T) {
	t.Parallel()

	cache := New()
	ctx := context.Background()
	if err := cache.Put(ctx, "ns-abc", []byte("record"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := cache.Get(ctx, "ns-abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || string(got) != "record" {
		t.Fatalf("get = %q, %v", got, ok)
	}
}

func TestCacheGetMissing(t *testing.T) {
	t.Parallel()

	_, ok, err := New().Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestCacheEntriesExpireAfterTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := New(WithClock(clock.Now))
	ctx := context.Background()
	if err := cache.Put(ctx, "k", []byte("v"), 300*time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}

	clock.Advance(299 * time.Second)
	if _, ok, _ := cache.Get(ctx, "k"); !ok {
		t.Fatal("expected entry before ttl")
	}

	clock.Advance(time.Second)
	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire at ttl")
	}
	if cache.Len() != 0 {
		t.Fatalf("len = %d, want 0", cache.Len())
	}
}

func TestCachePutOverwritesAndResetsTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := New(WithClock(clock.Now))
	ctx := context.Background()
	_ = cache.Put(ctx, "k", []byte("first"), time.Minute)
	clock.Advance(50 * time.Second)
	_ = cache.Put(ctx, "k", []byte("second"), time.Minute)
	clock.Advance(50 * time.Second)

	got, ok, _ := cache.Get(ctx, "k")
	if !ok || string(got) != "second" {
		t.Fatalf("get = %q, %v; want second", got, ok)
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := New(WithClock(clock.Now))
	_ = cache.Put(context.Background(), "k", []byte("v"), 0)
	clock.Advance(24 * time.Hour)
	if _, ok, _ := cache.Get(context.Background(), "k"); !ok {
		t.Fatal("expected entry without ttl to persist")
	}
}

func TestCacheCopiesRecords(t *testing.T) {
	t.Parallel()

	cache := New()
	ctx := context.Background()
	record := []byte("abc")
	_ = cache.Put(ctx, "k", record, time.Minute)
	record[0] = 'x'

	got, _, _ := cache.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored record aliased caller slice: %q", got)
	}
	got[0] = 'y'
	again, _, _ := cache.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned record aliased storage: %q", again)
	}
}

func TestCacheDeleteExpired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := New(WithClock(clock.Now), WithShards(4))
	ctx := context.Background()
	_ = cache.Put(ctx, "short", []byte("v"), time.Second)
	_ = cache.Put(ctx, "long", []byte("v"), time.Hour)
	clock.Advance(time.Minute)

	if removed := cache.DeleteExpired(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("len = %d, want 1", cache.Len())
	}
}

func TestCacheStartJanitor(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := New(WithClock(clock.Now))
	_ = cache.Put(context.Background(), "k", []byte("v"), time.Second)
	clock.Advance(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache.StartJanitor(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for {
		s := cache.shardFor("k")
		s.mu.RLock()
		_, present := s.items["k"]
		s.mu.RUnlock()
		if !present {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("janitor did not remove expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCacheStartJanitorIgnoresZeroInterval(t *testing.T) {
	t.Parallel()

	var c *Cache
	c.StartJanitor(context.Background(), time.Second)
	New().StartJanitor(context.Background(), 0)
}

func TestCacheRejectsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cache := New()
	if err := cache.Put(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Fatal("expected put error on cancelled context")
	}
	if _, _, err := cache.Get(ctx, "k"); err == nil {
		t.Fatal("expected get error on cancelled context")
	}
}

func TestCacheConcurrentKeysDoNotInterfere(t *testing.T) {
	t.Parallel()

	cache := New(WithShards(8))
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		key := fmt.Sprintf("key-%d", i)
		value := fmt.Sprintf("value-%d", i)
		g.Go(func() error {
			if err := cache.Put(ctx, key, []byte(value), time.Minute); err != nil {
				return err
			}
			got, ok, err := cache.Get(ctx, key)
			if err != nil {
				return err
			}
			if !ok || string(got) != value {
				return fmt.Errorf("%s = %q, %v", key, got, ok)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 64 {
		t.Fatalf("len = %d, want 64", cache.Len())
	}
}

func TestCacheStatus(t *testing.T) {
	t.Parallel()

	cache := New()
	status, err := cache.Status(context.Background())
	if err != nil || status != capability.StatusEnabled {
		t.Fatalf("initial status = %s, %v", status, err)
	}

	var seen []capability.Status
	cache.OnStatusChange(func(s capability.Status) { seen = append(seen, s) })
	cache.SetStatus(capability.StatusDisabled)
	cache.SetStatus(capability.StatusDisabled)
	cache.SetStatus(capability.StatusEnabled)

	if len(seen) != 2 || seen[0] != capability.StatusDisabled || seen[1] != capability.StatusEnabled {
		t.Fatalf("status notifications = %v", seen)
	}
}
