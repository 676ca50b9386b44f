// Package repository defines the persistence ports of the proximity engine.
package repository

import (
	"context"

	"mandi/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("not found")

// LocationStore is the local persistence used by the tracker and the REST
// fallback: the last-known self location under a single well-known key, and
// cached nearby snapshots for the offline tier.
type LocationStore interface {
	// SaveLastKnown overwrites the last-known self location.
	SaveLastKnown(ctx context.Context, loc entity.Location) error

	// LastKnown reads the last-known self location back; ErrNotFound before
	// the first fix has ever been persisted.
	LastKnown(ctx context.Context) (*entity.Location, error)

	// SaveNearbySnapshot caches a nearby-counterparty snapshot under a
	// caller-chosen key (normally the rounded query center).
	SaveNearbySnapshot(ctx context.Context, key string, records []entity.CounterpartyRecord) error

	// NearbySnapshot reads a cached snapshot; ErrNotFound when absent.
	NearbySnapshot(ctx context.Context, key string) ([]entity.CounterpartyRecord, error)

	// Close releases the underlying store.
	Close() error
}
