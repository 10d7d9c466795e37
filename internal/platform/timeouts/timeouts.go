// Package timeouts defines shared timeout constants for the rendezvous
// process. Keeping them in one place makes the durations discoverable.
package timeouts

import "time"

// CapabilityProbe caps a single remote capability health check. A probe that
// exceeds it reports the ephemeral tier as unavailable.
const CapabilityProbe = 500 * time.Millisecond

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
