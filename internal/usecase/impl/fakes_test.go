package impl

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
	"mandi/internal/geo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type publishedMsg struct {
	Type    string
	Payload any
}

// fakeChannel is an in-memory RealtimeChannel for use case tests. Handlers
// run synchronously on the emitting goroutine, like the real dispatch loop.
type fakeChannel struct {
	mu           sync.Mutex
	state        entity.ConnectionState
	nextID       int
	handlers     map[string]map[int]service.MessageHandler
	published    []publishedMsg
	broadcasts   []entity.Location
	nearbySubs   []entity.NearbySubscription
	nearbyUnsubs int
	acked        []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		state:    entity.StateDisconnected,
		handlers: make(map[string]map[int]service.MessageHandler),
	}
}

func (c *fakeChannel) Connect(context.Context, entity.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = entity.StateConnected

	return nil
}

func (c *fakeChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = entity.StateDisconnected
}

func (c *fakeChannel) Publish(msgType string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedMsg{Type: msgType, Payload: payload})

	return nil
}

func (c *fakeChannel) Subscribe(msgType string, fn service.MessageHandler) func() {
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

func (c *fakeChannel) State() entity.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *fakeChannel) BroadcastLocation(loc entity.Location, _ entity.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts = append(c.broadcasts, loc)

	return nil
}

func (c *fakeChannel) SubscribeNearbyVendors(lat, lng, radiusMeters float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nearbySubs = append(c.nearbySubs, entity.NearbySubscription{Latitude: lat, Longitude: lng, RadiusMeters: radiusMeters})

	return nil
}

func (c *fakeChannel) UnsubscribeNearbyVendors() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nearbyUnsubs++

	return nil
}

func (c *fakeChannel) SubscribeOrderConsumer(string) error   { return nil }
func (c *fakeChannel) UnsubscribeOrderConsumer(string) error { return nil }

func (c *fakeChannel) AcknowledgeNotification(notificationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, notificationID)

	return nil
}

// emit marshals the payload and invokes every handler for the type, the way
// the dispatch loop hands out the envelope's data member.
func (c *fakeChannel) emit(t *testing.T, msgType string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", msgType, err)
	}

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

func (c *fakeChannel) handlerCount(msgType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.handlers[msgType])
}

// fakeTracker is a scriptable TrackingUsecase.
type fakeTracker struct {
	mu        sync.Mutex
	loc       *entity.Location
	vendors   *service.NearbyResult
	consumers *service.NearbyResult
	nearbyErr error
	tracking  bool
	nextID    int
	listeners map[int]func(entity.Location)
}

func newFakeTracker(loc *entity.Location) *fakeTracker {
	return &fakeTracker{
		loc:       loc,
		vendors:   &service.NearbyResult{},
		consumers: &service.NearbyResult{},
		listeners: make(map[int]func(entity.Location)),
	}
}

func (f *fakeTracker) RequestPermission(context.Context, entity.PermissionScope) bool { return true }

func (f *fakeTracker) CurrentLocation(context.Context) *entity.Location {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loc
}

func (f *fakeTracker) StartTracking(_ context.Context, _ entity.Role, _ func(entity.Location)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking = true

	return true
}

func (f *fakeTracker) StopTracking() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking = false
}

func (f *fakeTracker) IsTracking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.tracking
}

func (f *fakeTracker) AddListener(fn func(entity.Location)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.listeners[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeTracker) DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceCoords(lat1, lon1, lat2, lon2)
}

func (f *fakeTracker) NearbyVendors(context.Context, float64, float64, float64) (*service.NearbyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}

	return f.vendors, nil
}

func (f *fakeTracker) NearbyConsumers(context.Context, float64, float64, float64) (*service.NearbyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}

	return f.consumers, nil
}

func (f *fakeTracker) ConsumerLocationForOrder(context.Context, string) *entity.Location { return nil }
func (f *fakeTracker) ShareLocationForOrder(context.Context, string) bool                { return true }

// fakePush records notifications instead of delivering them.
type fakePush struct {
	mu    sync.Mutex
	err   error
	sent  []string
	datas []map[string]string
}

func (p *fakePush) Notify(_ context.Context, title, _ string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, title)
	p.datas = append(p.datas, data)

	return p.err
}

func (p *fakePush) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.sent)
}

// fakePublisher records published events instead of sending them to a bus.
type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []entity.NotificationEvent
}

func (p *fakePublisher) PublishProximityEvent(_ context.Context, event entity.NotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)

	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.published)
}

// emitFix pushes a fix to every registered listener, like an accepted watch
// callback would.
func (f *fakeTracker) emitFix(loc entity.Location) {
	f.mu.Lock()
	fns := make([]func(entity.Location), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.loc = &loc
	f.mu.Unlock()

	for _, fn := range fns {
		fn(loc)
	}
}
