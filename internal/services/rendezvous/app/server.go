// Package server wires the rendezvous runtime: the HTTP rendezvous API and a
// gRPC health endpoint that publishes the ephemeral tier status.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/rendezvous/internal/platform/grpc"
	"github.com/louisbranch/rendezvous/internal/platform/timeouts"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/api/httpapi"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/capability"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/storage/memory"
	rendezvoussqlite "github.com/louisbranch/rendezvous/internal/services/rendezvous/storage/sqlite"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/store"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config holds everything the server needs to start.
type Config struct {
	HTTPAddr          string
	GRPCAddr          string
	DBPath            string
	Namespace         string
	TTL               time.Duration
	CacheShards       int
	EphemeralDisabled bool
	// CapabilityAddr, when set, moves the availability signal to a remote
	// gRPC health endpoint instead of the local memory tier.
	CapabilityAddr    string
	CapabilityService string
	MaxConnections    int
}

// Server hosts the rendezvous HTTP API and the gRPC health endpoint.
type Server struct {
	listener       net.Listener
	grpcServer     *grpc.Server
	health         *health.Server
	httpListener   net.Listener
	httpServer     *http.Server
	cache          *memory.Cache
	addresses      *rendezvoussqlite.Store
	capabilityConn *grpc.ClientConn
	janitorEvery   time.Duration
	signals        chan os.Signal
}

// New creates a configured rendezvous server. Listeners are bound before it
// returns so Addr and HTTPAddr are usable immediately.
func New(cfg Config) (*Server, error) {
	addresses, err := openAddressStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	cache := memory.New(memory.WithShards(cfg.CacheShards))
	if cfg.EphemeralDisabled {
		cache.SetStatus(capability.StatusDisabled)
	}

	var probe capability.Probe = cache
	var capabilityConn *grpc.ClientConn
	if addr := strings.TrimSpace(cfg.CapabilityAddr); addr != "" {
		capabilityConn, err = platformgrpc.NewClient(addr)
		if err != nil {
			_ = addresses.Close()
			return nil, err
		}
		probe = capability.NewHealthProbe(capabilityConn, cfg.CapabilityService)
	}

	rendezvous, err := store.New(
		capability.NewSelector(probe),
		cache,
		addresses,
		store.WithNamespace(cfg.Namespace),
		store.WithTTL(cfg.TTL),
	)
	if err != nil {
		closeAll(addresses, capabilityConn, nil)
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		closeAll(addresses, capabilityConn, nil)
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		closeAll(addresses, capabilityConn, listener)
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	if cfg.MaxConnections > 0 {
		httpListener = netutil.LimitListener(httpListener, cfg.MaxConnections)
	}

	mux := http.NewServeMux()
	httpapi.NewHandler(rendezvous).RegisterRoutes(mux)
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	publishTierStatus(healthServer, cache)

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = store.DefaultTTL
	}

	// Registered here so a status signal sent once New returns is queued
	// rather than killing the process.
	var signals chan os.Signal
	if len(statusSignals) > 0 {
		signals = make(chan os.Signal, 1)
		signal.Notify(signals, statusSignals...)
	}

	return &Server{
		listener:       listener,
		grpcServer:     grpcServer,
		health:         healthServer,
		httpListener:   httpListener,
		httpServer:     httpServer,
		cache:          cache,
		addresses:      addresses,
		capabilityConn: capabilityConn,
		janitorEvery:   ttl,
		signals:        signals,
	}, nil
}

// publishTierStatus mirrors the local tier status on the health endpoint so
// other instances can use this process as their capability signal.
func publishTierStatus(healthServer *health.Server, cache *memory.Cache) {
	status, _ := cache.Status(context.Background())
	healthServer.SetServingStatus(capability.DefaultHealthService, capability.HealthFromStatus(status))
	cache.OnStatusChange(func(next capability.Status) {
		log.Printf("ephemeral tier status set to %s", next)
		healthServer.SetServingStatus(capability.DefaultHealthService, capability.HealthFromStatus(next))
	})
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Cache exposes the local ephemeral tier. Its status also follows SIGUSR1
// (disable) and SIGUSR2 (enable) while the server is serving.
func (s *Server) Cache() *memory.Cache {
	if s == nil {
		return nil
	}
	return s.cache
}

// Run creates and serves a rendezvous server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts both listeners and blocks until one fails or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.Close()

	s.cache.StartJanitor(serverCtx, s.janitorEvery)
	if s.signals != nil {
		go s.watchStatusSignals(serverCtx, s.signals)
	}

	log.Printf("rendezvous gRPC health listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	log.Printf("rendezvous HTTP server listening at %v", s.httpListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
	shutdownGRPC := func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		shutdownHTTP()
		shutdownGRPC()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		shutdownHTTP()
		return handleErr(err)
	case err := <-httpErr:
		shutdownGRPC()
		grpcErr := <-serveErr
		if errors.Is(err, http.ErrServerClosed) {
			return handleErr(grpcErr)
		}
		if handled := handleErr(grpcErr); handled != nil {
			return handled
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// watchStatusSignals switches the local tier status on operator signals until
// ctx ends.
func (s *Server) watchStatusSignals(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			status, ok := statusForSignal(sig)
			if !ok {
				continue
			}
			log.Printf("received %v, switching ephemeral tier to %s", sig, status)
			s.cache.SetStatus(status)
		}
	}
}

// Close releases server resources. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.signals != nil {
		signal.Stop(s.signals)
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	closeAll(s.addresses, s.capabilityConn, s.listener)
	s.addresses = nil
	s.capabilityConn = nil
}

func closeAll(addresses *rendezvoussqlite.Store, conn *grpc.ClientConn, listener net.Listener) {
	if listener != nil {
		_ = listener.Close()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Printf("close capability connection: %v", err)
		}
	}
	if addresses != nil {
		if err := addresses.Close(); err != nil {
			log.Printf("close rendezvous store: %v", err)
		}
	}
}

func openAddressStore(path string) (*rendezvoussqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "rendezvous.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	addresses, err := rendezvoussqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rendezvous sqlite store: %w", err)
	}
	return addresses, nil
}
