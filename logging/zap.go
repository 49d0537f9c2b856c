package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap logger to the library Logger interface. It is the
// integration path for applications that already run zap: construct one and
// hand it to SetGlobalLogger so the transcription engine logs through the
// application's sinks.
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
	fields Fields
}

// NewZapLogger creates a ZapLogger backed by a zap production configuration.
func NewZapLogger() *ZapLogger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = level

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Production config only fails on invalid output paths; fall back
		// to a no-op zap core rather than returning an error from a logger
		// constructor.
		logger = zap.NewNop()
	}

	return &ZapLogger{
		logger: logger,
		level:  level,
		fields: make(Fields),
	}
}

// NewZapLoggerWith wraps an existing zap logger. Level control stays with
// the owning application; SetLevel becomes a no-op.
func NewZapLoggerWith(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{
		logger: logger,
		level:  zap.NewAtomicLevelAt(zapcore.DebugLevel),
		fields: make(Fields),
	}
}

func (z *ZapLogger) zapFields(err error, fields []Fields) []zap.Field {
	out := make([]zap.Field, 0, len(z.fields)+len(fields)+1)
	for k, v := range z.fields {
		out = append(out, zap.Any(k, v))
	}
	for _, f := range fields {
		for k, v := range f {
			out = append(out, zap.Any(k, v))
		}
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}
	return out
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	z.logger.Debug(msg, z.zapFields(nil, fields)...)
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	z.logger.Info(msg, z.zapFields(nil, fields)...)
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	z.logger.Warn(msg, z.zapFields(nil, fields)...)
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	z.logger.Error(msg, z.zapFields(err, fields)...)
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.logger.Fatal(msg, z.zapFields(err, fields)...)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(z.fields)+len(fields))
	for k, v := range z.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZapLogger{logger: z.logger, level: z.level, fields: merged}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	return z
}

func (z *ZapLogger) SetLevel(level Level) {
	switch level {
	case DebugLevel:
		z.level.SetLevel(zapcore.DebugLevel)
	case InfoLevel:
		z.level.SetLevel(zapcore.InfoLevel)
	case WarnLevel:
		z.level.SetLevel(zapcore.WarnLevel)
	case ErrorLevel:
		z.level.SetLevel(zapcore.ErrorLevel)
	case FatalLevel:
		z.level.SetLevel(zapcore.FatalLevel)
	}
}

// Sync flushes buffered zap output. Call on shutdown.
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}
