// Package delivery defines the inbound surfaces of the process.
package delivery

import (
	"context"
	"time"
)

// DefaultShutdownTimeout bounds a graceful server shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Delivery is a long-running inbound surface, served until its context ends
// or the process shuts down.
type Delivery interface {
	Serve(ctx context.Context) error
}
