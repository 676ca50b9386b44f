package service

import (
	"context"
)

// PushNotifier delivers OS-level notifications for proximity events. The
// concrete implementation is Firebase Cloud Messaging; tests and headless
// sessions use a no-op.
type PushNotifier interface {
	// Notify sends a single notification to the session's device.
	Notify(ctx context.Context, title, body string, data map[string]string) error
}
