package service

import (
	"context"

	"mandi/internal/domain/entity"
)

// EventPublisher fans proximity notification events out to an external bus so
// other subsystems (order workers, analytics) can react to them. Publishing is
// best-effort: a failed publish never blocks or rolls back the local
// notification.
type EventPublisher interface {
	// PublishProximityEvent publishes one notification event.
	PublishProximityEvent(ctx context.Context, event entity.NotificationEvent) error

	// Close releases the publisher's resources.
	Close() error
}
