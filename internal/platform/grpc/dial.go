// Package grpc holds gRPC client helpers shared by the rendezvous process.
package grpc

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultClientDialOptions returns standard dial options for in-cluster clients.
// Includes OTel gRPC stats handlers so that every outbound call propagates
// trace context automatically when a TracerProvider is registered.
//
// No blocking option is set: connections are established lazily so a dead
// peer shows up as a failed call instead of a stalled startup.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// NewClient creates a lazily connected client for addr.
func NewClient(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("gRPC address is required")
	}
	if len(opts) == 0 {
		opts = DefaultClientDialOptions()
	}
	conn, err := gogrpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("gRPC client %s: %w", addr, err)
	}
	return conn, nil
}
