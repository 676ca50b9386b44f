package service

import (
	"context"
	"encoding/json"

	"mandi/internal/domain/entity"
)

// Provenance tags a REST result with which fallback tier produced it, so the
// UI can disclose whether data is live, cached, or generated.
type Provenance struct {
	// IsOffline is true when the result came from the local cache tier.
	IsOffline bool `json:"is_offline"`
	// IsMock is true when the result is generated placeholder data.
	IsMock bool `json:"is_mock"`
}

// NearbyResult is a point-in-time snapshot of nearby counterparties.
type NearbyResult struct {
	Records []entity.CounterpartyRecord `json:"records"`
	Provenance
}

// MarketplaceClient is the REST backend consumed by this subsystem. Catalog
// and order business rules live behind it; this package only defines the
// surface the proximity engine needs.
type MarketplaceClient interface {
	// UpdateLocation pushes a self-location fix to the server.
	UpdateLocation(ctx context.Context, loc entity.Location, role entity.Role) error

	// NearbyVendors returns the vendors around a point. The implementation
	// applies the three-tier fallback (live, cached, placeholder) and tags
	// the result's provenance.
	NearbyVendors(ctx context.Context, lat, lng, radiusMeters float64) (*NearbyResult, error)

	// NearbyConsumers returns consumers with active orders around a vendor.
	NearbyConsumers(ctx context.Context, lat, lng, radiusMeters float64) (*NearbyResult, error)

	// ConsumerLocationForOrder fetches the consumer's shared location for an
	// order. Returns nil without error when none has been shared.
	ConsumerLocationForOrder(ctx context.Context, orderID string) (*entity.Location, error)

	// ShareLocationForOrder publishes the session's location for an order.
	ShareLocationForOrder(ctx context.Context, orderID string, loc entity.Location) error

	// Products and CreateOrder are passed through opaquely; their payloads
	// belong to the catalog and order subsystems.
	Products(ctx context.Context) (json.RawMessage, error)
	CreateOrder(ctx context.Context, order json.RawMessage) (json.RawMessage, error)
}
