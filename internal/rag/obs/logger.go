package obs

import (
	"github.com/sirupsen/logrus"

	"turag/internal/logging"
)

// LogrusLogger adapts turag/internal/logging's shared logrus.Logger to the
// service.Logger interface, so the orchestrator logs through the same JSON
// sink as every other package instead of a one-off logger.
type LogrusLogger struct {
	entry *logrus.Logger
}

// NewLogrusLogger builds a LogrusLogger over the package-wide logging.Log.
func NewLogrusLogger() *LogrusLogger {
	return &LogrusLogger{entry: logging.Log}
}

func (l *LogrusLogger) Info(msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *LogrusLogger) Error(msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).Error(msg)
}

func (l *LogrusLogger) Debug(msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}
