package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dtroode/cardbook-server/database"
	grpcctx "github.com/dtroode/cardbook-server/internal/api/grpc/context"
	grpcrouter "github.com/dtroode/cardbook-server/internal/api/grpc/router"
	grpcserver "github.com/dtroode/cardbook-server/internal/api/grpc/server"
	httpctx "github.com/dtroode/cardbook-server/internal/api/http/context"
	httprouter "github.com/dtroode/cardbook-server/internal/api/http/router"
	httpserver "github.com/dtroode/cardbook-server/internal/api/http/server"
	"github.com/dtroode/cardbook-server/internal/clock"
	"github.com/dtroode/cardbook-server/internal/config"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
	"github.com/dtroode/cardbook-server/internal/obs"
	"github.com/dtroode/cardbook-server/internal/repository/kafka"
	"github.com/dtroode/cardbook-server/internal/repository/memory"
	"github.com/dtroode/cardbook-server/internal/repository/postgres"
	"github.com/dtroode/cardbook-server/internal/server"
	"github.com/dtroode/cardbook-server/internal/service"
	storage "github.com/dtroode/cardbook-server/internal/storage/minio"
	"github.com/dtroode/cardbook-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

type stores struct {
	users       model.UserStore
	revocations model.RevocationStore
	db          *postgres.Connection
}

func (s stores) ready(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping(ctx)
}

func (s stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// listener pairs a server with the security layer it listens through.
type listener struct {
	server   model.Server
	security model.SecurityLayer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	otelSetup, err := obs.SetupOTel(ctx, obs.OTELConfig{
		Enable:      cfg.OTEL.Enable,
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
		SampleRatio: cfg.OTEL.SampleRatio,
	})
	if err != nil {
		logger.Fatal("failed to set up tracing", "error", err)
	}

	metrics := obs.NewMetrics()
	clk := clock.Real()

	st, err := openStores(ctx, cfg, clk, metrics)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer st.close()

	if cfg.Seed.Enabled {
		if err := seedAccount(ctx, cfg, st); err != nil {
			logger.Fatal("failed to seed account", "error", err)
		}
	}

	codec, err := token.NewJWT(token.Options{
		Secret:    cfg.JWT.Secret,
		Algorithm: cfg.JWT.Algorithm,
		Lifetime:  cfg.JWT.Expire,
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		Subject:   cfg.JWT.Subject,
	}, clk)
	if err != nil {
		logger.Fatal("failed to create token codec", "error", err)
	}

	var audit model.AuditPublisher = model.NopAuditPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewAuditPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		audit = publisher
	}

	// A nil interface, not a typed nil, disables avatar uploads.
	var avatarStorage model.Storage
	if cfg.Storage.Enabled {
		client, err := newStorageClient(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("failed to initialize storage client", "error", err)
		}
		avatarStorage = client
	}

	session := service.NewSession(st.users, st.revocations, codec, audit, metrics, clk, logger)
	avatars := service.NewAvatar(st.users, avatarStorage, cfg.Upload.MaxSizeKB*1024, logger)

	var wg sync.WaitGroup

	reaper := service.NewReaper(st.revocations, cfg.Revocation.SweepInterval, metrics, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	handler := httprouter.New(session, avatars, httpctx.NewManager(), httprouter.Options{
		Version:        buildVersion,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		UploadMaxBytes: cfg.Upload.MaxSizeKB * 1024,
		TrustProxy:     cfg.HTTP.TrustProxy,
		Ready:          st.ready,
		Metrics:        metrics,
	}, logger).Register()

	listeners := []listener{{
		server: httpserver.NewHTTPServer(handler, cfg.HTTP.Addr, httpserver.Timeouts{
			ReadHeader: cfg.HTTP.ReadHeaderTimeout,
			Read:       cfg.HTTP.ReadTimeout,
			Write:      cfg.HTTP.WriteTimeout,
			Idle:       cfg.HTTP.IdleTimeout,
		}),
		security: server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName),
	}}

	var grpcRouter *grpcrouter.Router
	if cfg.GRPC.Enabled {
		grpcMetrics := grpcprometheus.NewServerMetrics()
		metrics.Registry().MustRegister(grpcMetrics)

		grpcRouter = grpcrouter.New(session, grpcctx.NewManager(), grpcMetrics, logger)
		listeners = append(listeners, listener{
			server:   grpcserver.NewGRPCServer(grpcRouter.Register(), fmt.Sprintf(":%s", cfg.GRPC.Port)),
			security: server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName),
		})
	}

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = obs.BootstrapMetricsServer(cfg.Metrics.Addr, metrics, st.ready, logger)
	}

	for _, l := range listeners {
		wg.Add(1)
		go func(l listener) {
			defer wg.Done()
			logger.Info("Starting server on", "address", l.server.Address())
			if err := l.server.Start(l.security); err != nil {
				logger.Error("failed to start server", "error", err, "address", l.server.Address())
				stop()
			}
		}(l)
	}

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if grpcRouter != nil {
		grpcRouter.Health().Shutdown()
	}
	for _, l := range listeners {
		if err := l.server.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", l.server.Address())
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during metrics server shutdown", "error", err)
		}
	}

	wg.Wait()

	if err := otelSetup.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during tracer shutdown", "error", err)
	}
	logger.Info("shutdown complete")
}

func openStores(ctx context.Context, cfg *config.Config, clk clock.Clock, metrics *obs.Metrics) (stores, error) {
	var st stores

	if cfg.Database.DSN != "" {
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN, postgres.WithMaxConns(cfg.Database.MaxConns))
		if err != nil {
			return stores{}, err
		}
		st.db = db
		st.users = postgres.NewUserRepository(db)
	} else {
		st.users = memory.NewUserRepository(clk)
	}

	switch cfg.Revocation.Backend {
	case config.RevocationPostgres:
		st.revocations = postgres.NewRevocationRepository(st.db, clk)
	default:
		revocations := memory.NewRevocationRepository(clk)
		metrics.RegisterRevocationGauge(func() float64 { return float64(revocations.Len()) })
		st.revocations = revocations
	}

	return st, nil
}

func seedAccount(ctx context.Context, cfg *config.Config, st stores) error {
	account := database.Account{
		Username: cfg.Seed.Username,
		Password: cfg.Seed.Password,
		Email:    cfg.Seed.Email,
		RealName: cfg.Seed.RealName,
	}

	if st.db == nil {
		_, err := service.EnsureAccount(ctx, st.users, account)
		return err
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	_, err = database.Seed(ctx, db, account)
	return err
}

func newStorageClient(ctx context.Context, cfg config.Storage) (*storage.Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	client, err := storage.NewClient(ctx, minioClient, cfg.Bucket, cfg.PublicURL)
	if err != nil {
		return nil, errors.Join(errors.New("object storage is enabled but unreachable"), err)
	}
	return client, nil
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
