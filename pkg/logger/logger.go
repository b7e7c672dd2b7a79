package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. Packages log through this handle; it is
// initialized once at startup and replaced with a nop logger in tests that
// do not call Init.
var Log = zap.NewNop()

// Init configures the global logger. The level argument wins; when empty the
// MSGSYNC_LOG_LEVEL env var is consulted, defaulting to info. Set
// MSGSYNC_LOG_SINK=file:/path/to/log to append to a file instead of stdout.
func Init(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("MSGSYNC_LOG_LEVEL")))
	}
	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.AddSync(os.Stdout)
	if s := os.Getenv("MSGSYNC_LOG_SINK"); strings.HasPrefix(s, "file:") {
		path := strings.TrimPrefix(s, "file:")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640); err == nil {
			sink = zapcore.AddSync(f)
		} else {
			Log.Warn("log_sink_open_failed", zap.String("path", path), zap.Error(err))
		}
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zl)
	Log = zap.New(core)
}

// Sync flushes buffered log entries; safe to call on shutdown.
func Sync() {
	_ = Log.Sync()
}
