package capability

import (
	"context"
	"time"

	platformgrpc "github.com/louisbranch/rendezvous/internal/platform/grpc"
	"github.com/louisbranch/rendezvous/internal/platform/timeouts"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultHealthService is the health service name under which a rendezvous
// process publishes its ephemeral tier status.
const DefaultHealthService = "rendezvous.v1.EphemeralTier"

// HealthProbe reads tier status from a remote gRPC health endpoint.
type HealthProbe struct {
	conn    *gogrpc.ClientConn
	service string
	timeout time.Duration
}

// NewHealthProbe creates a probe for service over conn.
func NewHealthProbe(conn *gogrpc.ClientConn, service string) *HealthProbe {
	if service == "" {
		service = DefaultHealthService
	}
	return &HealthProbe{conn: conn, service: service, timeout: timeouts.CapabilityProbe}
}

// Status implements Probe.
func (p *HealthProbe) Status(ctx context.Context) (Status, error) {
	serving, err := platformgrpc.ProbeHealth(ctx, p.conn, p.service, p.timeout)
	if err != nil {
		return StatusUnknown, err
	}
	return StatusFromHealth(serving), nil
}

// StatusFromHealth maps a gRPC serving status to a tier status.
func StatusFromHealth(serving grpc_health_v1.HealthCheckResponse_ServingStatus) Status {
	switch serving {
	case grpc_health_v1.HealthCheckResponse_SERVING:
		return StatusEnabled
	case grpc_health_v1.HealthCheckResponse_NOT_SERVING:
		return StatusDisabled
	default:
		return StatusUnknown
	}
}

// HealthFromStatus maps a tier status to the serving status published on the
// gRPC health endpoint.
func HealthFromStatus(status Status) grpc_health_v1.HealthCheckResponse_ServingStatus {
	switch status {
	case StatusDisabled:
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	case StatusEnabled, StatusScheduledMaintenance:
		return grpc_health_v1.HealthCheckResponse_SERVING
	default:
		return grpc_health_v1.HealthCheckResponse_UNKNOWN
	}
}
