package ddns

import (
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var discard = zap.NewNop()

// retryLogger routes retryablehttp's leveled output to zap.
//
// Individual attempts are logged at debug regardless of their level:
// a failed attempt that gets retried is not an error yet,
// and the caller reports the final failure itself.
type retryLogger struct {
	s *zap.SugaredLogger
}

var _ retryablehttp.LeveledLogger = retryLogger{}

func newRetryLogger(logger *zap.Logger) retryLogger {
	return retryLogger{s: logger.Named("http").Sugar()}
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("retry: "+msg, keysAndValues...)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("retry: "+msg, keysAndValues...)
}
