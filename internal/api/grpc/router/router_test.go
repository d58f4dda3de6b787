package router

import (
	"context"
	"net"
	"testing"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"

	"github.com/dtroode/cardbook-server/internal/mocks"
	"github.com/dtroode/cardbook-server/internal/model"
	"github.com/dtroode/cardbook-server/internal/testutil"
)

func startServer(t *testing.T, r *Router) *grpc.ClientConn {
	t.Helper()

	s := r.Register()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient(ln.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRouter_Register(t *testing.T) {
	t.Parallel()

	r := New(mocks.NewAuthenticator(t), mocks.NewContextManager(t), nil, testutil.MakeNoopLogger())
	s := r.Register()
	require.NotNil(t, s)

	info := s.GetServiceInfo()
	assert.Contains(t, info, "grpc.health.v1.Health")
}

func TestRouter_HealthSkipsAuth(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	grpcMetrics := grpcprometheus.NewServerMetrics()
	reg.MustRegister(grpcMetrics)

	r := New(mocks.NewAuthenticator(t), mocks.NewContextManager(t), grpcMetrics, testutil.MakeNoopLogger())
	conn := startServer(t, r)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRouter_ReflectionRequiresBearer(t *testing.T) {
	t.Parallel()

	authenticator := mocks.NewAuthenticator(t)
	r := New(authenticator, mocks.NewContextManager(t), nil, testutil.MakeNoopLogger())
	conn := startServer(t, r)

	stream, err := grpc_reflection_v1.NewServerReflectionClient(conn).ServerReflectionInfo(context.Background())
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRouter_ReflectionWithBearer(t *testing.T) {
	t.Parallel()

	principal := model.Principal{Claims: model.Claims{ID: "jti"}}
	authenticator := mocks.NewAuthenticator(t)
	authenticator.On("Authenticate", mock.Anything, "good").Return(principal, nil).Once()
	cm := mocks.NewContextManager(t)
	cm.On("SetPrincipalToContext", mock.Anything, principal).
		Return(func(ctx context.Context, _ model.Principal) context.Context { return ctx }).Once()

	r := New(authenticator, cm, nil, testutil.MakeNoopLogger())
	conn := startServer(t, r)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer good")
	stream, err := grpc_reflection_v1.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	require.NoError(t, err)

	err = stream.Send(&grpc_reflection_v1.ServerReflectionRequest{
		MessageRequest: &grpc_reflection_v1.ServerReflectionRequest_ListServices{ListServices: ""},
	})
	require.NoError(t, err)
	resp, err := stream.Recv()
	require.NoError(t, err)
	assert.NotNil(t, resp.GetListServicesResponse())
	require.NoError(t, stream.CloseSend())
}
