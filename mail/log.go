package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes messages to a zap logger instead of delivering them. It is used
// when no SMTP relay is configured so operators can still read issued codes.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a LogSender writing to logger. A nil logger discards output.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("mail")}
}

// Send logs msg at warn level.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrInvalidMessage
	}
	s.logger.Warn("smtp not configured; mail logged instead of sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
