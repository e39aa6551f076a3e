package log

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tlog "go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the service's zap logger with a keyvals facade. The facade
// matches the Temporal SDK logger so workers can share it.
type Logger struct {
	Log *zap.Logger
}

var (
	_ tlog.Logger     = (*Logger)(nil)
	_ tlog.WithLogger = (*Logger)(nil)
)

// New builds a JSON logger tagged with app_name. Unknown levels fall back
// to info.
func New(name, level string) (*Logger, error) {
	stringCfg := fmt.Sprintf(`{
		"level": "%s",
		"encoding": "json",
		"outputPaths": ["stdout"],
		"errorOutputPaths": ["stderr"],
		"initialFields": {"app_name": "%s"},
		"encoderConfig": {
		  "messageKey": "message",
		  "levelKey": "level",
		  "timeKey": "timestamp",
		  "callerKey": "caller",
		  "levelEncoder": "lowercase",
		  "callerEncoder": "short"
		}
	}`, ParseLevel(level), name)

	var cfg zap.Config
	if err := json.Unmarshal([]byte(stringCfg), &cfg); err != nil {
		return nil, fmt.Errorf("loading logger config: %w", err)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoder(func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02T15:04:05Z0700"))
	})

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &Logger{Log: logger}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *Logger {
	return &Logger{Log: l}
}

func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Logger() *zap.Logger {
	return l.Log
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Debugw(msg, keyvals...)
}

func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Infow(msg, keyvals...)
}

func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Warnw(msg, keyvals...)
}

func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.Log.Sugar().Errorw(msg, keyvals...)
}

func (l *Logger) With(keyvals ...interface{}) tlog.Logger {
	return &Logger{Log: l.Log.Sugar().With(keyvals...).Desugar()}
}

// Sync flushes buffered entries. Errors from syncing stdout are ignored.
func (l *Logger) Sync() {
	_ = l.Log.Sync()
}
