package service

import (
	"context"
	"encoding/json"

	"mandi/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrNotConnected is returned by Publish when the channel has no live socket.
var ErrNotConnected = errors.New("realtime channel not connected")

// Inbound message types dispatched by the realtime channel. Any type outside
// this set is forwarded generically under its own type string.
const (
	MessageLocationUpdate         = "location_update"
	MessageVendorLocationUpdate   = "vendor_location_update"
	MessageConsumerLocationUpdate = "consumer_location_update"
	MessageOrderStatusUpdate      = "order_status_update"
	MessageNewOrder               = "new_order"
	MessagePing                   = "ping"
	MessagePong                   = "pong"
	MessageVendorDeparted         = "vendor-departed"
)

// Local channel lifecycle events, dispatched alongside server messages.
const (
	EventConnected       = "connected"
	EventDisconnected    = "disconnected"
	EventReconnectFailed = "reconnect_failed"
)

// MessageHandler receives the raw "data" member of a message envelope.
type MessageHandler func(data json.RawMessage)

// RealtimeChannel owns the single bidirectional connection to the
// location/notification server: connect, heartbeat, bounded auto-reconnect,
// and typed publish/subscribe dispatch.
type RealtimeChannel interface {
	// Connect opens the socket with the session token and role. It is
	// idempotent: a no-op when already connected or connecting.
	Connect(ctx context.Context, role entity.Role) error

	// Disconnect closes the socket and cancels the heartbeat and any pending
	// reconnect. Terminal until Connect is called again.
	Disconnect()

	// Publish serializes {type, data} onto the socket. Returns
	// ErrNotConnected when the channel is not currently connected; there is
	// no implicit queueing, so callers must not assume delivery.
	Publish(msgType string, payload any) error

	// Subscribe registers a handler for an inbound message type and returns
	// its unsubscribe function. Unsubscribing is synchronous: the handler is
	// never invoked after the returned function returns.
	Subscribe(msgType string, fn MessageHandler) (unsubscribe func())

	// State returns the current connection state.
	State() entity.ConnectionState

	// BroadcastLocation publishes a self-location fix in the GeoJSON-style
	// wire format.
	BroadcastLocation(loc entity.Location, role entity.Role) error

	// SubscribeNearbyVendors replaces the session's single nearby
	// subscription; UnsubscribeNearbyVendors cancels it.
	SubscribeNearbyVendors(lat, lng, radiusMeters float64) error
	UnsubscribeNearbyVendors() error

	// SubscribeOrderConsumer follows a consumer's location for an order.
	SubscribeOrderConsumer(orderID string) error
	UnsubscribeOrderConsumer(orderID string) error

	// AcknowledgeNotification reports a dismissed proximity notification
	// back to the server.
	AcknowledgeNotification(notificationID string) error
}
