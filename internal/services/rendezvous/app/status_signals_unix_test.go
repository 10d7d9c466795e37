//go:build unix

package server

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/rendezvous/internal/platform/grpc"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/capability"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestStatusSignalsSwitchTierAndHealth(t *testing.T) {
	srv := startServer(t, testConfig(t))

	conn, err := platformgrpc.NewClient(srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("send SIGUSR1: %v", err)
	}
	waitForHealth(t, conn, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	if got := post(t, srv, "key=abc&ipaddr=10.0.0.5"); got != "OK (Datastore)\n" {
		t.Fatalf("post after SIGUSR1 = %q", got)
	}

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR2); err != nil {
		t.Fatalf("send SIGUSR2: %v", err)
	}
	waitForHealth(t, conn, grpc_health_v1.HealthCheckResponse_SERVING)
	want := `{"key":"xyz","ipaddr":"10.0.0.6"}` + "\n"
	if got := post(t, srv, "key=xyz&ipaddr=10.0.0.6"); got != want {
		t.Fatalf("post after SIGUSR2 = %q", got)
	}
}

func TestStatusForSignal(t *testing.T) {
	t.Parallel()

	if status, ok := statusForSignal(syscall.SIGUSR1); !ok || status != capability.StatusDisabled {
		t.Fatalf("SIGUSR1 = %s, %v", status, ok)
	}
	if status, ok := statusForSignal(syscall.SIGUSR2); !ok || status != capability.StatusEnabled {
		t.Fatalf("SIGUSR2 = %s, %v", status, ok)
	}
	if _, ok := statusForSignal(syscall.SIGHUP); ok {
		t.Fatal("SIGHUP should not switch the tier")
	}
}

func waitForHealth(t *testing.T, conn *gogrpc.ClientConn, want grpc_health_v1.HealthCheckResponse_ServingStatus) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := platformgrpc.ProbeHealth(context.Background(), conn, capability.DefaultHealthService, time.Second)
		if err == nil && status == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("health = %v, %v; want %v", status, err, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
