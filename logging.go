package vex

import "go.uber.org/zap"

// NewLogger builds the process-wide structured logger threaded through
// the heap, interpreter, JIT and FFI bridge. Production builds use
// zap's default JSON encoder; callers that want human-readable output
// (the CLI) can build their own via NewDevelopmentLogger.
func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

func NewDevelopmentLogger() *zap.SugaredLogger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}
