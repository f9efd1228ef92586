// Package obs wires Argus's ambient observability stack: a process-wide
// zap logger, following the teacher's sync.Once-guarded global pattern,
// and the Prometheus metrics the rest of the module publishes to, each
// Metrics instance on its own registry.
package obs

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log      *zap.Logger
	initOnce sync.Once
)

// InitLogger builds the process-wide logger. Safe to call more than
// once; only the first call takes effect.
func InitLogger(debug bool) *zap.Logger {
	initOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		if debug {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}

		cfg.OutputPaths = []string{"stdout", "argus.log"}
		cfg.ErrorOutputPaths = []string{"stderr", "argus-error.log"}

		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.StacktraceKey = "stacktrace"

		logger, err := cfg.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		if err != nil {
			panic(err)
		}
		log = logger
	})
	return log
}

// Logger returns the process-wide logger, initializing it in
// non-debug mode if InitLogger has not yet been called.
func Logger() *zap.Logger {
	if log == nil {
		return InitLogger(false)
	}
	return log
}

// Sync flushes any buffered log entries. Intended to run on shutdown.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
