// Package usecase defines the application-facing interfaces of the proximity
// and delivery-economics engine.
package usecase

import (
	"context"

	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
)

// TrackingUsecase acquires device location, persists the last-known fix, and
// fans each fix out to the server (REST + realtime broadcast) and to local
// listeners.
//
// Expected failures surface as false/nil returns, never as panics: a caller
// seeing false from StartTracking must show a "location required" state and
// must not assume tracking is active.
type TrackingUsecase interface {
	// RequestPermission asks for a location permission scope.
	RequestPermission(ctx context.Context, scope entity.PermissionScope) bool

	// CurrentLocation performs a one-shot high-accuracy fix, falling back to
	// the persisted last-known location and then to nil.
	CurrentLocation(ctx context.Context) *entity.Location

	// StartTracking begins continuous observation for the given role. It is
	// idempotent: calling while already tracking is a no-op returning true.
	// onUpdate may be nil.
	StartTracking(ctx context.Context, role entity.Role, onUpdate func(entity.Location)) bool

	// StopTracking cancels the observation synchronously; no listener or
	// callback fires after it returns. Idempotent.
	StopTracking()

	// IsTracking reports whether a watch is active.
	IsTracking() bool

	// AddListener registers a local observer for every accepted fix and
	// returns its removal function.
	AddListener(fn func(entity.Location)) (remove func())

	// DistanceMeters is the Haversine great-circle distance in meters.
	DistanceMeters(lat1, lon1, lat2, lon2 float64) float64

	// NearbyVendors fetches the vendor snapshot around a point through the
	// REST fallback tiers.
	NearbyVendors(ctx context.Context, lat, lng, radiusMeters float64) (*service.NearbyResult, error)

	// NearbyConsumers fetches consumers with active orders around a vendor.
	NearbyConsumers(ctx context.Context, lat, lng, radiusMeters float64) (*service.NearbyResult, error)

	// ConsumerLocationForOrder fetches the consumer location shared for an
	// order; nil when none was shared or the fetch failed.
	ConsumerLocationForOrder(ctx context.Context, orderID string) *entity.Location

	// ShareLocationForOrder publishes the current location for an order.
	ShareLocationForOrder(ctx context.Context, orderID string) bool
}
