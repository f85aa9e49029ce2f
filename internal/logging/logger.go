// Package logging provides the structured logger used across
// computejobd: a small interface over zap so call sites never import
// zap directly, plus an HTTP middleware that logs one line per
// request/response pair.
package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface every package in this
// module depends on instead of *zap.Logger directly.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithFields(fields map[string]interface{}) Logger
	WithContext(ctx context.Context) Logger
}

// ZapLogger wraps a *zap.SugaredLogger and accumulates fields so
// WithFields can be chained without mutating the parent logger.
type ZapLogger struct {
	logger *zap.SugaredLogger
	fields map[string]interface{}
}

// Level and Format name the two knobs internal/config exposes for
// logging; kept as plain strings here to avoid an import cycle
// between internal/config and internal/logging.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// New builds a Logger writing to stdout at the given level and format.
func New(level Level, format Format) Logger {
	var zapConfig zap.Config
	if format == FormatJSON {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	switch level {
	case LevelDebug:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case LevelWarn:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case LevelError:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.OutputPaths = []string{"stdout"}

	built, err := zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}

	return &ZapLogger{
		logger: built.Sugar(),
		fields: make(map[string]interface{}),
	}
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) {
	l.logger.With(l.flattenFields()...).Debugw(msg, fields...)
}

func (l *ZapLogger) Info(msg string, fields ...interface{}) {
	l.logger.With(l.flattenFields()...).Infow(msg, fields...)
}

func (l *ZapLogger) Warn(msg string, fields ...interface{}) {
	l.logger.With(l.flattenFields()...).Warnw(msg, fields...)
}

func (l *ZapLogger) Error(msg string, fields ...interface{}) {
	l.logger.With(l.flattenFields()...).Errorw(msg, fields...)
}

func (l *ZapLogger) Fatal(msg string, fields ...interface{}) {
	l.logger.With(l.flattenFields()...).Fatalw(msg, fields...)
	os.Exit(1)
}

func (l *ZapLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZapLogger{logger: l.logger, fields: merged}
}

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	jobIDKey       contextKey = "job_id"
	correlationKey contextKey = "correlation_id"
)

// WithRequestID returns a context carrying a request id for
// WithContext to pick up later in the handler chain.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithJobID returns a context carrying a job id for WithContext.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	fields := make(map[string]interface{})
	if v := ctx.Value(requestIDKey); v != nil {
		fields["request_id"] = v
	}
	if v := ctx.Value(jobIDKey); v != nil {
		fields["job_id"] = v
	}
	if v := ctx.Value(correlationKey); v != nil {
		fields["correlation_id"] = v
	}
	return l.WithFields(fields)
}

func (l *ZapLogger) flattenFields() []interface{} {
	out := make([]interface{}, 0, len(l.fields)*2)
	for k, v := range l.fields {
		out = append(out, k, v)
	}
	return out
}
