// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// NotificationEvent records one "counterparty is nearby" notification. It is
// created once per counterparty crossing the notify threshold and kept in a
// bounded history so repeat notifications for the same counterparty can be
// deduplicated.
type NotificationEvent struct {
	ID                uuid.UUID `json:"id"`                  // The unique identifier for the event.
	CounterpartyID    string    `json:"counterparty_id"`     // The counterparty that triggered the event.
	DisplayName       string    `json:"display_name"`        // Counterparty name at trigger time.
	DistanceAtTrigger float64   `json:"distance_at_trigger"` // Distance in meters when the threshold was crossed.
	Timestamp         time.Time `json:"timestamp"`           // When the event was created.
	Acknowledged      bool      `json:"acknowledged"`        // Set by Dismiss.
}
