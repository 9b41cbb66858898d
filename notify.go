package bankauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Message is a rendered notification ready for out-of-band delivery.
type Message struct {
	Destination string
	Subject     string
	Body        string
}

// Notifier delivers rendered messages over the customer's registered
// contact channel. The engine does not retry failed deliveries; a failure
// is surfaced to the caller of [Engine.LoginStart], and the issued code
// remains valid until its natural expiry.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// loginCodeMessage renders the one-time-code notification. The plaintext
// code exists only here and in the engine's return path; it is never
// persisted.
func loginCodeMessage(id Identity, code string, purpose Purpose, ttl time.Duration) Message {
	return Message{
		Destination: id.Email,
		Subject:     fmt.Sprintf("Your %s code - Trust Union Bank", purpose),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour one-time code for %s at Trust Union Bank is: %s\n\nIt expires in %d seconds. If you did not request this, contact support immediately.",
			id.Name, purpose, code, int(ttl.Seconds()),
		),
	}
}

// LoggerNotifier is a development stub that writes notifications to a
// structured logger instead of delivering them.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger. The body carries the
// plaintext code, so this implementation must never reach production.
func (n *LoggerNotifier) Send(_ context.Context, msg Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "destination", msg.Destination, "subject", msg.Subject, "body", msg.Body)
	return nil
}
