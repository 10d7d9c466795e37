package capability

import (
	"context"
	"log"
	"sync/atomic"
)

// Selector answers whether the ephemeral tier is usable right now. The probe
// is consulted on every call; answers are never reused.
type Selector struct {
	probe Probe
	logf  func(string, ...any)
	// last holds the previous answer for transition logging only:
	// 0 = none yet, 1 = available, 2 = unavailable.
	last atomic.Int32
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithLogf overrides the logger used for tier transitions.
func WithLogf(logf func(string, ...any)) SelectorOption {
	return func(s *Selector) {
		s.logf = logf
	}
}

// NewSelector creates a selector over probe. A nil probe always reports the
// ephemeral tier available.
func NewSelector(probe Probe, opts ...SelectorOption) *Selector {
	s := &Selector{probe: probe, logf: log.Printf}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EphemeralAvailable reports whether the ephemeral tier may be used.
//
// Only an explicit DISABLED answer makes the tier unavailable; unknown and
// maintenance statuses fail open. A probe error counts as unavailable.
func (s *Selector) EphemeralAvailable(ctx context.Context) bool {
	if s == nil || s.probe == nil {
		return true
	}
	if ctx == nil {
		ctx = context.Background()
	}
	status, err := s.probe.Status(ctx)
	available := err == nil && status != StatusDisabled
	s.observe(available, status, err)
	return available
}

func (s *Selector) observe(available bool, status Status, err error) {
	next := int32(2)
	if available {
		next = 1
	}
	prev := s.last.Swap(next)
	if prev == next || s.logf == nil {
		return
	}
	switch {
	case err != nil:
		s.logf("ephemeral tier probe failed, using durable tier: %v", err)
	case !available:
		s.logf("ephemeral tier %s, using durable tier", status)
	case prev != 0:
		s.logf("ephemeral tier %s, leaving durable tier", status)
	}
}
