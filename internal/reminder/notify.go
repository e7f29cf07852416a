package reminder

import (
	"context"
	"log/slog"
)

// Notifier presents a fired reminder to the user. The answer arrives
// later through Engine.Acknowledge.
type Notifier interface {
	Notify(ctx context.Context, fr FiredReminder) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, fr FiredReminder) error

func (f NotifierFunc) Notify(ctx context.Context, fr FiredReminder) error {
	return f(ctx, fr)
}

// LogNotifier writes fired reminders to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, fr FiredReminder) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("reminder", "id", fr.ID, "parameter", fr.Parameter, "message", fr.Message, "requires_ack", fr.RequiresAck)
	return nil
}

// Dispatch forwards every reminder from events to n until events is
// closed or ctx is done. Notify errors are logged and do not stop the loop.
func Dispatch(ctx context.Context, events <-chan FiredReminder, n Notifier, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "notifier")
	for {
		select {
		case <-ctx.Done():
			return
		case fr, ok := <-events:
			if !ok {
				return
			}
			if err := n.Notify(ctx, fr); err != nil {
				logger.Error("notify failed", "id", fr.ID, "error", err)
			}
		}
	}
}
