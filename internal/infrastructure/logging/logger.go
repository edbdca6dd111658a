package logging

import (
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the shared SDK logger. Init must be called before use.
var Logger = zap.NewNop()

var sentryEnabled bool

// Config controls logger construction.
type Config struct {
	// Environment selects the encoder: "development" gets colored console
	// output, anything else gets production JSON.
	Environment string
	// Verbose enables debug-level output, including pretty-printed HTTP
	// traffic from the transport.
	Verbose bool
	// SentryDSN enables error reporting when non-empty.
	SentryDSN string
	// Release tags captured events with the embedding app's version.
	Release string
}

// Init initializes the shared logger and, when a DSN is configured, Sentry
// error reporting.
func Init(cfg Config) error {
	var zapConfig zap.Config
	if cfg.Environment == "development" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if cfg.Verbose {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		return err
	}
	Logger = logger

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     cfg.Release,
		})
		if err != nil {
			Logger.Warn("Sentry initialization failed", zap.Error(err))
		} else {
			sentryEnabled = true
		}
	}

	return nil
}

// Sync flushes any buffered log entries and pending Sentry events.
func Sync() {
	_ = Logger.Sync()
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) *zap.Logger {
	return Logger.With(zap.String("component", component))
}

// CaptureError reports a terminal error to Sentry when enabled and logs it
// either way.
func CaptureError(err error, msg string, fields ...zap.Field) {
	Logger.Error(msg, append(fields, zap.Error(err))...)
	if sentryEnabled {
		sentry.CaptureException(err)
	}
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	Logger.Error(msg, fields...)
}
