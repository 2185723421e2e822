package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gufagu-backend/pkg/env"
)

var (
	// Log is the global logger instance. It is a no-op logger until Init runs,
	// so packages that log from tests never see a nil logger.
	Log = zap.NewNop()
	// Sugar is the sugared logger for easier use
	Sugar = Log.Sugar()
)

// Config holds logger configuration
type Config struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// Init builds the global logger. Unknown levels fall back to info; format
// "json" selects the production encoder, anything else the console one.
func Init(cfg *Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapConfig.OutputPaths, zapConfig.ErrorOutputPaths = []string{"stdout"}, []string{"stderr"}
	if cfg.Output == "file" && cfg.FilePath != "" {
		zapConfig.OutputPaths, zapConfig.ErrorOutputPaths = []string{cfg.FilePath}, []string{cfg.FilePath}
	}

	built, err := zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}
	Log, Sugar = built, built.Sugar()
	return nil
}

// InitDefault configures the logger from LOG_* variables, falling back to a
// stock production logger when that fails.
func InitDefault() {
	err := Init(&Config{
		Level:    env.GetString("LOG_LEVEL", "info"),
		Format:   env.GetString("LOG_FORMAT", "json"),
		Output:   env.GetString("LOG_OUTPUT", "stdout"),
		FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
	})
	if err != nil {
		Log, _ = zap.NewProduction()
		Sugar = Log.Sugar()
	}
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	connIDKey    contextKey = "conn_id"
)

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithConnID tags a context with the realtime connection handle it serves
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connIDKey, connID)
}

// FromContext creates a logger with context fields
func FromContext(ctx context.Context) *zap.Logger {
	l := Log
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		l = l.With(zap.String("request_id", requestID))
	}
	if connID, ok := ctx.Value(connIDKey).(string); ok {
		l = l.With(zap.String("conn_id", connID))
	}
	return l
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	return Log.Sync()
}
