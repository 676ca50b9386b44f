// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/paulmach/orb"
)

// RecordSource tags where a counterparty record was last fed from, so the UI
// can disclose data provenance.
type RecordSource string

const (
	// SourceSnapshot marks a record seeded from a point-in-time REST snapshot.
	SourceSnapshot RecordSource = "snapshot"
	// SourceStream marks a record fed by a live websocket delta.
	SourceStream RecordSource = "stream"
	// SourceSimulated marks a record produced by a simulated vendor feed.
	SourceSimulated RecordSource = "simulated"
)

// CounterpartyRecord is one live entry in the proximity set: a vendor for a
// consumer session, or a consumer for a vendor session. There is exactly one
// record per counterparty id; later updates overwrite it in place.
type CounterpartyRecord struct {
	ID             string       `json:"id"`              // Unique per counterparty.
	Role           Role         `json:"role"`            // vendor or consumer.
	DisplayName    string       `json:"display_name"`    // Human-readable name for the UI.
	Coordinate     orb.Point    `json:"coordinate"`      // Last known position, lon/lat order.
	LastUpdated    time.Time    `json:"last_updated"`    // Governs precedence when snapshot and stream disagree.
	DistanceMeters float64      `json:"distance_meters"` // Derived from the most recent self-location; never persisted.
	IsLive         bool         `json:"is_live"`         // True when push-verified by the stream, false for one-time estimates.
	Source         RecordSource `json:"source"`          // snapshot, stream or simulated.
}

// NearbySubscription describes the single active "nearby" subscription for a
// session. Replacing it implicitly cancels the prior one.
type NearbySubscription struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}
