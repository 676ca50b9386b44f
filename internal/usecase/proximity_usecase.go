package usecase

import (
	"context"
	"time"

	"mandi/internal/domain/entity"

	"github.com/paulmach/orb"
)

// CounterpartyUpdate is one inbound stream delta for a counterparty,
// already decoded from the wire envelope.
type CounterpartyUpdate struct {
	ID          string
	DisplayName string
	Coordinate  orb.Point // lon/lat order, as on the wire.
	Timestamp   time.Time
}

// QuotedMatch pairs a counterparty record with its on-demand delivery quote.
type QuotedMatch struct {
	Record entity.CounterpartyRecord `json:"record"`
	Quote  entity.DeliveryQuote      `json:"quote"`
}

// ProximityUsecase maintains the sorted, de-duplicated set of nearby
// counterparties by merging a point-in-time snapshot with the live delta
// stream. The counterparty map is owned here and mutated only through these
// operations; the channel and tracker merely emit events this component
// consumes.
type ProximityUsecase interface {
	// Start seeds the set from a REST snapshot around the current location,
	// opens the server-side nearby subscription, and begins consuming stream
	// deltas and self-location changes. Safe to call once per session.
	Start(ctx context.Context) error

	// Stop tears down all subscriptions synchronously; no delta is applied
	// after it returns.
	Stop()

	// ApplySelfLocation recomputes the distance of every record against a
	// new self location and re-sorts.
	ApplySelfLocation(loc entity.Location)

	// ApplyCounterpartyUpdate upserts one record from a stream delta,
	// recomputes its distance, and re-sorts. Older-than-current deltas are
	// dropped: the newest lastUpdated always wins.
	ApplyCounterpartyUpdate(u CounterpartyUpdate)

	// Remove deletes a record by id after an explicit departure event.
	Remove(id string)

	// Matches returns the current records sorted ascending by distance.
	// Equal distances keep their existing order to avoid UI flicker.
	Matches() []entity.CounterpartyRecord

	// QuotedMatches annotates every match with a delivery quote computed
	// from the given order value and current conditions.
	QuotedMatches(orderValue float64) []QuotedMatch

	// SetConditions replaces the conditions used by QuotedMatches.
	SetConditions(cond entity.Conditions)

	// Conditions returns the conditions currently in effect.
	Conditions() entity.Conditions

	// SubscribeDeltas registers an observer invoked with the fresh copy of
	// every upserted record; the dispatcher uses it to detect threshold
	// crossings. Returns the removal function.
	SubscribeDeltas(fn func(entity.CounterpartyRecord)) (remove func())
}
