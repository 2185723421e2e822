package config

import (
	"fmt"
	"time"

	"gufagu-backend/pkg/constants"
	"gufagu-backend/pkg/env"
)

// Config holds all configuration for the realtime service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cassandra CassandraConfig
	MinIO     MinIOConfig
	JWT       JWTConfig
	Push      PushConfig
	Log       LogConfig
	Realtime  RealtimeConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Environment    string // development, staging, production
	ServiceName    string
	AllowedOrigins []string
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// CassandraConfig holds Cassandra configuration
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
}

// MinIOConfig holds MinIO configuration for report evidence
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// PushConfig selects the push provider for missed-call notifications
type PushConfig struct {
	Provider  string // firebase, mock
	ProjectID string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// RealtimeConfig holds the matching, session and calling knobs
type RealtimeConfig struct {
	RingTimeout       time.Duration
	QueueTTL          time.Duration
	WaitPerPosition   time.Duration
	SweepSpec         string
	MaxInterests      int
	MaxInterestLength int
	MaxMessageLength  int
	MaxConnections    int
	SendBufferSize    int
	MaxFrameSize      int64
	PingInterval      time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           env.GetInt("PORT", 8085),
			Environment:    env.GetString("ENV", "development"),
			ServiceName:    env.GetString("SERVICE_NAME", "realtime-service"),
			AllowedOrigins: env.GetStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "gufagu"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
			MaxConns: env.GetInt("DB_MAX_CONNS", 25),
			MinConns: env.GetInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		Cassandra: CassandraConfig{
			Hosts:    env.GetStringSlice("CASSANDRA_HOSTS", []string{"localhost"}),
			Keyspace: env.GetString("CASSANDRA_KEYSPACE", "gufagu"),
			Username: env.GetString("CASSANDRA_USERNAME", ""),
			Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
			Timeout:  env.GetDuration("CASSANDRA_TIMEOUT", 600*time.Millisecond),
		},
		MinIO: MinIOConfig{
			Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.GetStringFromFile("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    env.GetBool("MINIO_USE_SSL", false),
			Bucket:    env.GetString("MINIO_EVIDENCE_BUCKET", "gufagu-reports"),
		},
		JWT: JWTConfig{
			Secret:            env.GetStringFromFile("JWT_SECRET", ""),
			AccessTokenExpiry: env.GetDuration("JWT_ACCESS_EXPIRY", constants.AccessTokenExpiry),
		},
		Push: PushConfig{
			Provider:  env.GetString("PUSH_PROVIDER", "mock"),
			ProjectID: env.GetStringFromFile("FIREBASE_PROJECT_ID", ""),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
		},
		Realtime: RealtimeConfig{
			RingTimeout:       env.GetDuration("CALL_RING_TIMEOUT", constants.RingTimeout),
			QueueTTL:          env.GetDuration("QUEUE_ENTRY_TTL", constants.QueueEntryTTL),
			WaitPerPosition:   env.GetDuration("QUEUE_WAIT_PER_POSITION", constants.QueueWaitPerPosition),
			SweepSpec:         env.GetString("QUEUE_SWEEP_SPEC", constants.QueueSweepSpec),
			MaxInterests:      env.GetInt("QUEUE_MAX_INTERESTS", constants.MaxInterests),
			MaxInterestLength: env.GetInt("QUEUE_MAX_INTEREST_LENGTH", constants.MaxInterestLength),
			MaxMessageLength:  env.GetInt("CHAT_MAX_MESSAGE_LENGTH", constants.MaxChatMessageLength),
			MaxConnections:    env.GetInt("WS_MAX_CONNECTIONS", constants.DefaultMaxConnections),
			SendBufferSize:    env.GetInt("WS_SEND_BUFFER", constants.SendBufferSize),
			MaxFrameSize:      int64(env.GetInt("WS_MAX_FRAME_SIZE", constants.MaxFrameSize)),
			PingInterval:      env.GetDuration("WS_PING_INTERVAL", constants.WebSocketPingInterval),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Environment == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.Push.Provider == "mock" {
			return fmt.Errorf("PUSH_PROVIDER=mock is not allowed in production")
		}
	}

	if c.Realtime.RingTimeout <= 0 {
		return fmt.Errorf("CALL_RING_TIMEOUT must be positive")
	}
	if c.Realtime.QueueTTL <= 0 {
		return fmt.Errorf("QUEUE_ENTRY_TTL must be positive")
	}
	if c.Realtime.MaxMessageLength <= 0 {
		return fmt.Errorf("CHAT_MAX_MESSAGE_LENGTH must be positive")
	}
	if c.Realtime.MaxConnections <= 0 {
		return fmt.Errorf("WS_MAX_CONNECTIONS must be positive")
	}

	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
