package service

import (
	"context"
	"time"

	"mandi/internal/domain/entity"
)

// WatchOptions throttle a continuous location observation.
type WatchOptions struct {
	// MinInterval is the minimum time between delivered fixes.
	MinInterval time.Duration
	// MinDisplacementMeters is the minimum movement between delivered fixes.
	MinDisplacementMeters float64
}

// LocationSource abstracts the device position sensor. Implementations include
// the simulated walker used by demo sessions and a fixed-position source.
//
// Permission denial is reported through return values, never through panics:
// callers are responsible for surfacing a "location required" state.
type LocationSource interface {
	// RequestPermission asks for the given permission scope and reports
	// whether it was granted.
	RequestPermission(ctx context.Context, scope entity.PermissionScope) bool

	// Current performs a one-shot high-accuracy fix. The caller bounds the
	// wait with the context deadline; expiry is a recoverable failure.
	Current(ctx context.Context) (*entity.Location, error)

	// Watch begins continuous observation and invokes fn for every fix that
	// passes the options' thresholds. The returned stop function cancels the
	// observation synchronously: fn is never invoked after stop returns.
	Watch(ctx context.Context, opts WatchOptions, fn func(entity.Location)) (stop func(), err error)
}
