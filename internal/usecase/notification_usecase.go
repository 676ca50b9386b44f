package usecase

import (
	"mandi/internal/domain/entity"

	"github.com/google/uuid"
)

// NotificationUsecase decides which proximity deltas warrant surfacing,
// de-duplicates them against a bounded history, and records acknowledgement.
type NotificationUsecase interface {
	// Start subscribes to the proximity delta stream.
	Start()

	// Stop unsubscribes synchronously.
	Stop()

	// HandleDelta inspects one upserted record and emits a notification
	// event when the record crossed below the auto-notify radius and the
	// dedupe policy allows it.
	HandleDelta(rec entity.CounterpartyRecord)

	// Active returns the unacknowledged events, newest first.
	Active() []entity.NotificationEvent

	// Dismiss marks an event acknowledged, removes it from the active list,
	// and reports the acknowledgement back over the realtime channel.
	Dismiss(id uuid.UUID) error

	// SubscribeEvents registers a UI observer for new events and returns its
	// removal function.
	SubscribeEvents(fn func(entity.NotificationEvent)) (remove func())
}
