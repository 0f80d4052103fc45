package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level string
	Dev   bool
}

// LogConfigFromEnv reads LOG_LEVEL and LOG_DEV.
func LogConfigFromEnv() LogConfig {
	dev := os.Getenv("LOG_DEV") == "1"
	level := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if level == "" {
		if dev {
			level = "debug"
		} else {
			level = "info"
		}
	}
	return LogConfig{Level: level, Dev: dev}
}

type Logger struct {
	base *zap.Logger
}

func NewLogger(cfg LogConfig) *Logger {
	level := levelFromString(cfg.Level)
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(level)
		if built, err := c.Build(); err == nil {
			return &Logger{base: built}
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), level)
	return &Logger{base: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))}
}

// NewLoggerFromCore is used by tests to capture entries.
func NewLoggerFromCore(core zapcore.Core) *Logger {
	return &Logger{base: zap.New(core)}
}

func NewNopLogger() *Logger {
	return &Logger{base: zap.NewNop()}
}

// FromContext returns a child logger tagged with the request's trace id and origin.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	fields := make([]zap.Field, 0, 2)
	if traceID := TraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if requestURL := RequestURL(ctx); requestURL != "" {
		fields = append(fields, zap.String("request_url", requestURL))
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{base: l.base.With(fields...)}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.base.Debug(message, toFields(fields)...)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.base.Info(message, toFields(fields)...)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.base.Warn(message, toFields(fields)...)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.base.Error(message, toFields(fields)...)
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}

func toFields(fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func levelFromString(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
