package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type correlationIDKey struct{}

type batchIDKey struct{}

// NewLogger builds the process logger. format is "json" for services and
// "console" for interactive tools.
func NewLogger(level string, format string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}

	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, correlationIDKey{})
}

// WithBatchID tags ctx with the remote batch identifier being worked on.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, batchIDKey{}, batchID)
}

func BatchIDFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, batchIDKey{})
}

func stringFromContext(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}

	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}

	return value, true
}

// WithContextLogger adds the correlationId and batchId found in ctx.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	fields := make([]zap.Field, 0, 2)
	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, zap.String("correlationId", correlationID))
	}
	if batchID, ok := BatchIDFromContext(ctx); ok {
		fields = append(fields, zap.String("batchId", batchID))
	}
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}
