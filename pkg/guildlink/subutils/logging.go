package subutils

import (
	"context"

	"github.com/tsarna/guildlink/pkg/guildlink/bus"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingHandler logs every event it sees and then calls the wrapped
// handler, if any. With no wrapped handler it is a standalone event logger.
type LoggingHandler struct {
	wrapped  bus.Handler[events.Event]
	logger   *zap.Logger
	logLevel zapcore.Level
	name     string
	payload  bool
}

// NewLoggingHandler creates a LoggingHandler named "LoggingHandler".
func NewLoggingHandler(wrapped bus.Handler[events.Event], logger *zap.Logger, logLevel zapcore.Level) *LoggingHandler {
	return NewNamedLoggingHandler(wrapped, logger, logLevel, "LoggingHandler")
}

// NewNamedLoggingHandler creates a LoggingHandler with a custom name.
func NewNamedLoggingHandler(wrapped bus.Handler[events.Event], logger *zap.Logger, logLevel zapcore.Level, name string) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: logLevel,
		name:     name,
	}
}

// WithPayload includes the decoded event in each log entry.
func (l *LoggingHandler) WithPayload(include bool) *LoggingHandler {
	l.payload = include
	return l
}

// Handle logs event and passes it on. It has the bus.Handler shape.
func (l *LoggingHandler) Handle(ctx context.Context, event events.Event) error {
	if ce := l.logger.Check(l.logLevel, "Event received"); ce != nil {
		fields := []zap.Field{
			zap.String("handler", l.name),
			zap.String("event", event.EventName()),
			zap.String("topic", events.Topic(event)),
			zap.Bool("hasWrapped", l.wrapped != nil),
		}
		if l.payload {
			fields = append(fields, zap.Any("payload", event))
		}
		ce.Write(fields...)
	}

	if l.wrapped != nil {
		return l.wrapped(ctx, event)
	}
	return nil
}
