package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
	"mandi/internal/infra/sched"
)

// envelope is the wire frame: every message is {type, data}.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Channel implements service.RealtimeChannel over a single websocket.
//
// Every socket gets a generation number. Callbacks from a previous socket
// (read loop errors, heartbeat ticks, pong deadlines) carry the generation
// they were armed under and are discarded when it no longer matches, so a
// stale loop can never disturb the current connection.
type Channel struct {
	cfg     *config.RealtimeConfig
	session *config.SessionConfig
	logger  *slog.Logger
	dialer  Dialer
	sched   sched.Scheduler

	mu         sync.Mutex
	state      entity.ConnectionState
	conn       Conn
	role       entity.Role
	generation int
	attempts   int
	heartbeat  sched.Task
	pongWatch  sched.Task
	retry      sched.Task
	nextID     int
	handlers   map[string]map[int]service.MessageHandler

	// writeMu serializes socket writes; gorilla allows one writer at a time.
	writeMu sync.Mutex
}

// NewChannel creates the realtime channel. It does not connect.
func NewChannel(cfg *config.RealtimeConfig, session *config.SessionConfig, logger *slog.Logger, dialer Dialer, scheduler sched.Scheduler) *Channel {
	return &Channel{
		cfg:      cfg,
		session:  session,
		logger:   logger,
		dialer:   dialer,
		sched:    scheduler,
		state:    entity.StateDisconnected,
		handlers: make(map[string]map[int]service.MessageHandler),
	}
}

// Connect opens the socket. Idempotent: a no-op while a connection or retry
// is in flight. A failed first dial enters the same bounded retry loop as a
// dropped connection instead of surfacing the dial error.
func (c *Channel) Connect(ctx context.Context, role entity.Role) error {
	if !role.IsValid() {
		return errors.Errorf("invalid role %q", role)
	}
	if c.session.Token == "" {
		return errors.New("missing session token")
	}

	c.mu.Lock()
	switch c.state {
	case entity.StateConnecting, entity.StateConnected, entity.StateReconnecting:
		c.mu.Unlock()

		return nil
	}
	c.role = role
	c.attempts = 0
	c.state = entity.StateConnecting
	c.mu.Unlock()

	c.dial(ctx)

	return nil
}

// Disconnect closes the socket and cancels every timer. Terminal until the
// next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.generation++
	c.stopTimersLocked()
	conn := c.conn
	c.conn = nil
	wasConnected := c.state == entity.StateConnected
	c.state = entity.StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if wasConnected {
		c.dispatch(service.EventDisconnected, nil)
	}
	c.logger.Info("realtime channel disconnected")
}

func (c *Channel) Publish(msgType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshal %s payload", msgType)
	}
	frame, err := json.Marshal(envelope{Type: msgType, Data: data})
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.state == entity.StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return service.ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return errors.Wrapf(conn.WriteMessage(websocket.TextMessage, frame), "write %s", msgType)
}

func (c *Channel) Subscribe(msgType string, fn service.MessageHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.handlers[msgType] == nil {
		c.handlers[msgType] = make(map[int]service.MessageHandler)
	}
	c.handlers[msgType][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[msgType], id)
	}
}

func (c *Channel) State() entity.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// dial attempts one connection and routes failure into the retry loop.
func (c *Channel) dial(ctx context.Context) {
	endpoint, err := c.endpoint()
	if err != nil {
		c.logger.Error("invalid realtime url", slog.Any("error", err))
		c.exhaust()

		return
	}

	conn, err := c.dialer.Dial(ctx, endpoint, nil)
	if err != nil {
		c.logger.Warn("realtime dial failed", slog.Any("error", err))
		c.scheduleRetry()

		return
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.conn = conn
	c.state = entity.StateConnected
	c.attempts = 0
	c.armHeartbeatLocked(gen)
	c.mu.Unlock()

	go c.readLoop(gen, conn)

	c.logger.Info("realtime channel connected", slog.String("role", c.role.String()))
	c.dispatch(service.EventConnected, nil)
}

// endpoint appends the session token and role to the configured URL.
func (c *Channel) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", errors.Wrap(err, "parse realtime url")
	}

	q := u.Query()
	q.Set("token", c.session.Token)
	q.Set("role", c.role.String())
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Channel) readLoop(gen int, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(gen, err)

			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("malformed realtime frame", slog.Any("error", err))

			continue
		}

		if env.Type == service.MessagePong {
			c.onPong(gen)
		}
		c.dispatch(env.Type, env.Data)
	}
}

// connectionLost handles an involuntary socket loss for a specific
// generation. The generation bump makes a second report for the same socket
// (read error racing a pong deadline) a no-op.
func (c *Channel) connectionLost(gen int, cause error) {
	c.mu.Lock()
	if gen != c.generation || c.state != entity.StateConnected {
		c.mu.Unlock()

		return
	}
	c.generation++
	c.stopTimersLocked()
	conn := c.conn
	c.conn = nil
	c.state = entity.StateReconnecting
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	c.logger.Warn("realtime connection lost", slog.Any("error", cause))
	c.dispatch(service.EventDisconnected, nil)
	c.scheduleRetry()
}

// scheduleRetry arms the next reconnect attempt or gives up once the budget
// is spent.
func (c *Channel) scheduleRetry() {
	c.mu.Lock()
	if c.state != entity.StateConnecting && c.state != entity.StateReconnecting {
		c.mu.Unlock()

		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.mu.Unlock()
		c.exhaust()

		return
	}
	c.attempts++
	attempt := c.attempts
	c.state = entity.StateReconnecting
	c.retry = c.sched.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		if c.state != entity.StateReconnecting {
			c.mu.Unlock()

			return
		}
		c.state = entity.StateConnecting
		c.mu.Unlock()

		c.dial(context.Background())
	})
	c.mu.Unlock()

	c.logger.Info("reconnect scheduled",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", c.cfg.MaxReconnectAttempts),
		slog.Duration("delay", c.cfg.ReconnectDelay))
}

// exhaust enters the terminal retry-exhausted state and tells subscribers
// exactly once.
func (c *Channel) exhaust() {
	c.mu.Lock()
	if c.state == entity.StateExhausted {
		c.mu.Unlock()

		return
	}
	c.stopTimersLocked()
	c.conn = nil
	c.state = entity.StateExhausted
	c.mu.Unlock()

	c.logger.Error("reconnect attempts exhausted", slog.Int("attempts", c.cfg.MaxReconnectAttempts))
	c.dispatch(service.EventReconnectFailed, nil)
}

// armHeartbeatLocked schedules the next application-level ping for gen.
func (c *Channel) armHeartbeatLocked(gen int) {
	c.heartbeat = c.sched.AfterFunc(c.cfg.HeartbeatInterval, func() {
		c.heartbeatTick(gen)
	})
}

func (c *Channel) heartbeatTick(gen int) {
	c.mu.Lock()
	if gen != c.generation || c.state != entity.StateConnected {
		c.mu.Unlock()

		return
	}
	if c.pongWatch == nil {
		// Armed on the first unanswered ping and cleared on pong; firing means
		// the connection is half-open and must be torn down.
		c.pongWatch = c.sched.AfterFunc(c.cfg.PongTimeout, func() {
			c.connectionLost(gen, errors.New("pong timeout"))
		})
	}
	c.armHeartbeatLocked(gen)
	c.mu.Unlock()

	ping := map[string]int64{"timestamp": c.sched.Now().UnixMilli()}
	if err := c.Publish(service.MessagePing, ping); err != nil {
		c.logger.Debug("heartbeat ping failed", slog.Any("error", err))
	}
}

func (c *Channel) onPong(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	if c.pongWatch != nil {
		c.pongWatch.Stop()
		c.pongWatch = nil
	}
}

func (c *Channel) stopTimersLocked() {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	if c.pongWatch != nil {
		c.pongWatch.Stop()
		c.pongWatch = nil
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

// dispatch fans a message out to its subscribers outside the lock.
func (c *Channel) dispatch(msgType string, data json.RawMessage) {
	c.mu.Lock()
	fns := make([]service.MessageHandler, 0, len(c.handlers[msgType]))
	for _, fn := range c.handlers[msgType] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}

// wirePoint is the GeoJSON-style geometry used by the location server.
type wirePoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lng, lat]
}

type wireLocationUpdate struct {
	Role      string    `json:"role"`
	Location  wirePoint `json:"location"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// BroadcastLocation publishes a self-location fix.
func (c *Channel) BroadcastLocation(loc entity.Location, role entity.Role) error {
	point := loc.Point()

	return c.Publish(service.MessageLocationUpdate, wireLocationUpdate{
		Role:      role.String(),
		Location:  wirePoint{Type: "Point", Coordinates: [2]float64{point.Lon(), point.Lat()}},
		Accuracy:  loc.Accuracy,
		Heading:   loc.Heading,
		Speed:     loc.Speed,
		Timestamp: loc.Timestamp.UnixMilli(),
	})
}

type wireNearby struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"`
}

// SubscribeNearbyVendors replaces the session's nearby subscription.
func (c *Channel) SubscribeNearbyVendors(lat, lng, radiusMeters float64) error {
	return c.Publish("subscribe_nearby_vendors", wireNearby{Latitude: lat, Longitude: lng, Radius: radiusMeters})
}

// UnsubscribeNearbyVendors cancels the nearby subscription.
func (c *Channel) UnsubscribeNearbyVendors() error {
	return c.Publish("unsubscribe_nearby_vendors", struct{}{})
}

type wireOrder struct {
	OrderID string `json:"orderId"`
}

// SubscribeOrderConsumer follows a consumer's location for an order.
func (c *Channel) SubscribeOrderConsumer(orderID string) error {
	return c.Publish("subscribe_order_consumer", wireOrder{OrderID: orderID})
}

// UnsubscribeOrderConsumer stops following the consumer for an order.
func (c *Channel) UnsubscribeOrderConsumer(orderID string) error {
	return c.Publish("unsubscribe_order_consumer", wireOrder{OrderID: orderID})
}

type wireAck struct {
	NotificationID string `json:"notificationId"`
}

// AcknowledgeNotification reports a dismissed proximity notification.
func (c *Channel) AcknowledgeNotification(notificationID string) error {
	return c.Publish("acknowledge-notification", wireAck{NotificationID: notificationID})
}
