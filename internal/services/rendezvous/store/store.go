// Package store implements the rendezvous contract over two backing tiers.
//
// Each operation asks the capability selector which tier is live and runs
// against that tier only. A bundle written while the ephemeral tier was live
// is not visible through the durable tier, and the reverse.
package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/louisbranch/rendezvous/internal/services/rendezvous/capability"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/domain"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultNamespace prefixes every ephemeral cache key so other users of
	// a shared cache backend cannot collide with rendezvous entries.
	DefaultNamespace = "c96d8ac6-e571-48bb-9e1f-58df18574e43"
	// DefaultTTL is how long an ephemeral bundle stays readable.
	DefaultTTL = 300 * time.Second

	tracerName = "github.com/louisbranch/rendezvous/internal/services/rendezvous/store"
)

// Store is the rendezvous contract: put a bundle by key, get it back later.
type Store struct {
	selector  *capability.Selector
	ephemeral Tier
	durable   Tier
	tracer    trace.Tracer
}

type options struct {
	namespace string
	ttl       time.Duration
	tracer    trace.Tracer
	logf      func(string, ...any)
}

// Option configures a Store.
type Option func(*options)

// WithNamespace sets the ephemeral cache key prefix.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = namespace
	}
}

// WithTTL sets the ephemeral entry lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithTracer overrides the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithLogf overrides the logger used for dropped records.
func WithLogf(logf func(string, ...any)) Option {
	return func(o *options) {
		o.logf = logf
	}
}

// New creates a store over the given selector and backing tiers.
func New(selector *capability.Selector, cache storage.EphemeralStore, addresses storage.AddressStore, opts ...Option) (*Store, error) {
	if selector == nil {
		return nil, errors.New("capability selector is required")
	}
	if cache == nil {
		return nil, errors.New("ephemeral store is required")
	}
	if addresses == nil {
		return nil, errors.New("address store is required")
	}
	o := options{
		namespace: DefaultNamespace,
		ttl:       DefaultTTL,
		logf:      log.Printf,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return &Store{
		selector: selector,
		ephemeral: &ephemeralTier{
			cache:     cache,
			namespace: o.namespace,
			ttl:       o.ttl,
			logf:      o.logf,
		},
		durable: &durableTier{addresses: addresses},
		tracer:  o.tracer,
	}, nil
}

// tier picks the live tier for one operation.
func (s *Store) tier(ctx context.Context) Tier {
	if s.selector.EphemeralAvailable(ctx) {
		return s.ephemeral
	}
	return s.durable
}

// Put stores bundle under key on the live tier, replacing any earlier
// bundle there. It returns the tier that took the write.
func (s *Store) Put(ctx context.Context, key string, bundle domain.Bundle) (TierKind, error) {
	if key == "" {
		return "", domain.ErrMissingKey()
	}
	ctx, span := s.tracer.Start(ctx, "rendezvous.Put")
	defer span.End()

	tier := s.tier(ctx)
	span.SetAttributes(
		attribute.String("rendezvous.tier", string(tier.Kind())),
		attribute.Int("rendezvous.fields", bundle.Len()),
	)
	if err := tier.Put(ctx, key, bundle); err != nil {
		// A bundle the durable tier cannot hold is the caller's fault.
		if domain.IsMalformedBundle(err) {
			span.SetAttributes(attribute.Bool("rendezvous.rejected", true))
			return tier.Kind(), err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return tier.Kind(), err
	}
	return tier.Kind(), nil
}

// Get returns the bundle stored under key on the live tier. found is false
// when the key was never stored there or its entry expired.
func (s *Store) Get(ctx context.Context, key string) (bundle domain.Bundle, found bool, err error) {
	if key == "" {
		return domain.Bundle{}, false, nil
	}
	ctx, span := s.tracer.Start(ctx, "rendezvous.Get")
	defer span.End()

	tier := s.tier(ctx)
	bundle, found, err = tier.Get(ctx, key)
	span.SetAttributes(
		attribute.String("rendezvous.tier", string(tier.Kind())),
		attribute.Bool("rendezvous.hit", found),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Bundle{}, false, err
	}
	return bundle, found, nil
}
