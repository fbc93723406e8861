// Package logging provides the structured logger used across the service.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appcontext "github.com/Rowan-T/clover/pkg/context"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// Logger is the fluent logging surface used by every component
type Logger interface {
	WithContext(ctx context.Context) Logger
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Config controls logger construction
type Config struct {
	AppName string
	Level   string
	Pretty  bool
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a zap-backed Logger
func New(cfg Config) Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Pretty {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	base, buildErr := zc.Build(zap.AddCallerSkip(1))
	if buildErr != nil {
		base = zap.NewNop()
	}

	return &zapLogger{sugar: base.Sugar().With("app", cfg.AppName)}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	fields := make([]any, 0, 6)
	if requestID := appcontext.GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if subjectID := appcontext.GetSubjectID(ctx); subjectID != "" {
		fields = append(fields, "subject_id", subjectID)
	}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}
	if len(fields) == 0 {
		return l
	}
	return &zapLogger{sugar: l.sugar.With(fields...)}
}

func (l *zapLogger) WithField(key string, value any) Logger {
	return &zapLogger{sugar: l.sugar.With(key, value)}
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &zapLogger{sugar: l.sugar.With(kv...)}
}

func (l *zapLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return &zapLogger{sugar: l.sugar.With("error", err.Error())}
}

func (l *zapLogger) Debug(msg string) { l.sugar.Debug(msg) }
func (l *zapLogger) Info(msg string)  { l.sugar.Info(msg) }
func (l *zapLogger) Warn(msg string)  { l.sugar.Warn(msg) }
func (l *zapLogger) Error(msg string) { l.sugar.Error(msg) }
func (l *zapLogger) Fatal(msg string) { l.sugar.Fatal(msg) }

func (l *zapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *zapLogger) Fatalf(format string, args ...any) { l.sugar.Fatalf(format, args...) }
