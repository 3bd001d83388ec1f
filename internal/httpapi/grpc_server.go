package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"

	"tasdeeq.app/internal/obs"
)

// VerificationService is the health service name reported for the case API.
const VerificationService = "tasdeeq.kyc.v1.Verification"

// GRPCServer exposes the standard gRPC health protocol backed by the same
// readiness probe as /readyz, so orchestrators can use native gRPC probes.
type GRPCServer struct {
	*grpc.Server

	health    *health.Server
	readiness readinessChecker
	version   string
	logger    *zap.Logger
}

// NewGRPCServer creates the gRPC server. Services start NOT_SERVING until the
// first Probe succeeds.
func NewGRPCServer(r readinessChecker, version string, logger *zap.Logger) *GRPCServer {
	if r == nil {
		r = ReadyProbe{}
	}
	if logger == nil {
		logger = obs.Logger().Named("grpc")
	}
	s := &GRPCServer{
		health:    health.NewServer(),
		readiness: r,
		version:   version,
		logger:    logger,
	}
	s.Server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.unaryVersion, s.unaryLogging))
	healthpb.RegisterHealthServer(s.Server, s.health)
	reflection.Register(s.Server)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Probe evaluates readiness once and publishes the result.
func (s *GRPCServer) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.readiness.Check(ctx); err != nil {
		s.logger.Warn("not ready", zap.Error(err))
		obs.SetReady(false)
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	obs.SetReady(true)
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

// RunProbes re-evaluates readiness every interval until ctx ends, then marks
// every service NOT_SERVING so clients drain before shutdown.
func (s *GRPCServer) RunProbes(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s.Probe(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-t.C:
			s.Probe(ctx)
		}
	}
}

func (s *GRPCServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(VerificationService, st)
}

func (s *GRPCServer) unaryVersion(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	_ = grpc.SetHeader(ctx, metadata.Pairs("x-service-version", s.version))
	return handler(ctx, req)
}

func (s *GRPCServer) unaryLogging(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("grpc_call", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("grpc_call", fields...)
	}
	return resp, err
}
