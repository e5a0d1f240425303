package notifier

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Sender delivers one text message to one or more phone numbers
type Sender interface {
	Send(ctx context.Context, message string, recipients []string) error
}

// LogSender only logs messages. Used when no SMS gateway is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("sms")}
}

func (s *LogSender) Send(_ context.Context, message string, recipients []string) error {
	s.logger.Info("SMS (not sent, gateway disabled)",
		zap.String("to", strings.Join(recipients, ",")), zap.String("message", message))
	return nil
}
