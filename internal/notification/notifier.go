// Package notification delivers admitted trading signals to external
// channels (Telegram, webhooks). Delivery failures are retried out-of-band;
// a signal that passed the filter is never re-filtered on retry.
package notification

import (
	"context"
	"log"

	"signal-monitorv1/internal/model"
)

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Notify delivers a signal. Returns error if delivery fails.
	Notify(ctx context.Context, sig *model.TradingSignal) error
}

// LogNotifier logs signals instead of delivering them (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, sig *model.TradingSignal) error {
	log.Printf("[notify] %s", sig.Summary())
	return nil
}

// Multi fans a signal out to several backends. Every backend is attempted;
// the first error is returned.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, sig *model.TradingSignal) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
