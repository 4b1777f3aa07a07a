package notification

import (
	"context"
	"log/slog"
)

const (
	// KindRepeatedFailures flags an identity whose failure counter crossed the
	// lockout-review threshold.
	KindRepeatedFailures = "repeated_auth_failures"
)

// Message describes a security notification payload.
type Message struct {
	Kind     string
	Identity string
	Body     string
}

// Notifier delivers security notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Warn("security notification", "kind", message.Kind, "identity", message.Identity, "body", message.Body)
	return nil
}
