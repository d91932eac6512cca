package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink emits structured logs for audit streams. It is useful during
// development or when the bus is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		s.logger.Info("audit event",
			zap.String("kind", string(evt.Kind)),
			zap.Time("at", evt.At),
			zap.Any("item", evt.Item),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
