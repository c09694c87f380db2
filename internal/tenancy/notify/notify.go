// Package notify is the fire-and-forget notification collaborator. Delivery
// failures are logged and never surface to the request that triggered them.
package notify

import (
	"context"
	"log/slog"
)

// Event is one notification to deliver.
type Event struct {
	// Kind names the template, e.g. "redemption_complete", "tenant_provisioned".
	Kind string
	// Recipient is the target email address.
	Recipient string
	// Fields are template values.
	Fields map[string]string
}

// Notifier delivers events out-of-band. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier writes events to the structured log instead of delivering
// them. The default in every environment without a mail provider wired.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, e Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"kind", e.Kind,
		"recipient", e.Recipient,
		"fields", e.Fields,
	)
	return nil
}

// Send dispatches an event on a best-effort basis: a nil notifier is a
// no-op and errors are logged, not returned.
func Send(ctx context.Context, n Notifier, log *slog.Logger, e Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e); err != nil {
		log.Warn("notification delivery failed",
			"kind", e.Kind,
			"recipient", e.Recipient,
			"err", err,
		)
	}
}
