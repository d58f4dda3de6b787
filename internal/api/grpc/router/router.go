package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/cardbook-server/internal/api/grpc/middleware"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
	"github.com/dtroode/cardbook-server/internal/obs"
)

const healthPrefix = "/grpc.health.v1.Health/"

// Router assembles the gRPC server: health, reflection and the bearer
// token interceptor chain.
type Router struct {
	authenticator  middleware.Authenticator
	contextManager model.ContextManager
	metrics        *grpcprometheus.ServerMetrics
	health         *health.Server
	logger         *logger.Logger
}

// New creates new gRPC Router instance. metrics may be nil.
func New(
	authenticator middleware.Authenticator,
	contextManager model.ContextManager,
	metrics *grpcprometheus.ServerMetrics,
	logger *logger.Logger,
) *Router {
	return &Router{
		authenticator:  authenticator,
		contextManager: contextManager,
		metrics:        metrics,
		health:         health.NewServer(),
		logger:         logger,
	}
}

// Health returns the health server so callers can flip serving status on shutdown.
func (r *Router) Health() *health.Server {
	return r.health
}

// requiresAuth reports whether a call must carry a bearer token. Health
// probes stay open.
func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), healthPrefix)
}

// Register builds the gRPC server with logging, metrics, tracing and
// authentication interceptors.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.authenticator, r.contextManager, r.logger)

	unary := []grpc.UnaryServerInterceptor{logging.HandleGRPC}
	stream := []grpc.StreamServerInterceptor{logging.HandleGRPCStream}
	if r.metrics != nil {
		unary = append(unary, r.metrics.UnaryServerInterceptor())
		stream = append(stream, r.metrics.StreamServerInterceptor())
	}
	unary = append(unary, selector.UnaryServerInterceptor(
		auth.UnaryServerInterceptor(authenticate.AuthFunc),
		selector.MatchFunc(requiresAuth),
	))
	stream = append(stream, selector.StreamServerInterceptor(
		auth.StreamServerInterceptor(authenticate.AuthFunc),
		selector.MatchFunc(requiresAuth),
	))

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)

	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, r.health)
	reflection.Register(s)

	if r.metrics != nil {
		r.metrics.InitializeMetrics(s)
	}

	return s
}
