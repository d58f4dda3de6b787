package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Revocation backends.
const (
	RevocationMemory   = "memory"
	RevocationPostgres = "postgres"
)

// Config contains server configuration parameters.
type Config struct {
	LogLevel   int        `env:"LOG_LEVEL" envDefault:"0"`
	HTTP       HTTP       `envPrefix:"HTTP_"`
	GRPC       GRPC       `envPrefix:"GRPC_"`
	Database   Database   `envPrefix:"DATABASE_"`
	JWT        JWT        `envPrefix:"JWT_"`
	Revocation Revocation `envPrefix:"REVOCATION_"`
	Seed       Seed       `envPrefix:"SEED_"`
	Storage    Storage    `envPrefix:"MINIO_"`
	Upload     Upload     `envPrefix:"UPLOAD_"`
	Kafka      Kafka      `envPrefix:"KAFKA_"`
	Metrics    Metrics    `envPrefix:"METRICS_"`
	OTEL       OTEL       `envPrefix:"OTEL_"`
}

// HTTP contains HTTP API server parameters.
type HTTP struct {
	Addr               string        `env:"ADDR" envDefault:":8000"`
	ReadHeaderTimeout  time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout        time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout        time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	MaxBodyBytes       int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	TrustProxy         bool          `env:"TRUST_PROXY" envDefault:"false"`
	EnableHTTPS        bool          `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string        `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string        `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
}

// GRPC contains gRPC server parameters.
type GRPC struct {
	Enabled            bool   `env:"ENABLED" envDefault:"false"`
	Port               string `env:"PORT" envDefault:"50051"`
	EnableHTTPS        bool   `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
}

// Database contains database connection parameters. An empty DSN keeps all
// state in memory.
type Database struct {
	DSN      string `env:"DSN"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"10"`
}

// JWT contains token codec parameters.
type JWT struct {
	Secret    string        `env:"SECRET" envDefault:"devsecret"`
	Algorithm string        `env:"ALGORITHM" envDefault:"HS256"`
	Expire    time.Duration `env:"EXPIRE" envDefault:"2h"`
	Issuer    string        `env:"ISSUER" envDefault:"business-card-system"`
	Audience  string        `env:"AUDIENCE" envDefault:"business-card-users"`
	Subject   string        `env:"SUBJECT" envDefault:"business-card-auth"`
}

// Revocation selects the revocation store.
type Revocation struct {
	Backend       string        `env:"BACKEND" envDefault:"memory"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Seed describes the administrator account created on startup.
type Seed struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Username string `env:"USERNAME" envDefault:"admin"`
	Password string `env:"PASSWORD" envDefault:"123456"`
	Email    string `env:"EMAIL" envDefault:"admin@example.com"`
	RealName string `env:"REAL_NAME" envDefault:"管理员"`
}

// Storage contains object storage parameters.
type Storage struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"cardbook-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"cardbook-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"cardbook"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:9000"`
}

// Upload limits file uploads.
type Upload struct {
	MaxSizeKB int64 `env:"MAX_SIZE_KB" envDefault:"2048"`
}

// Kafka configures the audit publisher. No brokers disables publishing.
type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"auth-audit"`
}

// Metrics configures the metrics listener. An empty address disables it.
type Metrics struct {
	Addr string `env:"ADDR" envDefault:":9100"`
}

// OTEL configures trace export.
type OTEL struct {
	Enable      bool    `env:"ENABLE" envDefault:"false"`
	Endpoint    string  `env:"ENDPOINT" envDefault:"localhost:4317"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"cardbook-server"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWT.Algorithm)
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.JWT.Expire < time.Second {
		return fmt.Errorf("JWT_EXPIRE %s is shorter than one second", c.JWT.Expire)
	}

	switch c.Revocation.Backend {
	case RevocationMemory:
	case RevocationPostgres:
		if c.Database.DSN == "" {
			return errors.New("REVOCATION_BACKEND=postgres requires DATABASE_DSN")
		}
	default:
		return fmt.Errorf("unknown REVOCATION_BACKEND %q", c.Revocation.Backend)
	}
	if c.Revocation.SweepInterval <= 0 {
		return errors.New("REVOCATION_SWEEP_INTERVAL must be positive")
	}

	if c.Upload.MaxSizeKB <= 0 {
		return errors.New("UPLOAD_MAX_SIZE_KB must be positive")
	}

	return nil
}
