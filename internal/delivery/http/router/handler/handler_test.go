package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
	"mandi/internal/infra/qrcode"
	"mandi/internal/usecase"
	"mandi/internal/usecase/impl"
)

// stubProximity serves a fixed match set.
type stubProximity struct {
	matches    []entity.CounterpartyRecord
	conditions entity.Conditions
	delivery   usecase.DeliveryUsecase
}

func (s *stubProximity) Start(context.Context) error                         { return nil }
func (s *stubProximity) Stop()                                               {}
func (s *stubProximity) ApplySelfLocation(entity.Location)                   {}
func (s *stubProximity) ApplyCounterpartyUpdate(usecase.CounterpartyUpdate)  {}
func (s *stubProximity) Remove(string)                                       {}
func (s *stubProximity) Matches() []entity.CounterpartyRecord                { return s.matches }
func (s *stubProximity) SetConditions(cond entity.Conditions)                { s.conditions = cond }
func (s *stubProximity) Conditions() entity.Conditions                       { return s.conditions }
func (s *stubProximity) SubscribeDeltas(func(entity.CounterpartyRecord)) func() {
	return func() {}
}

func (s *stubProximity) QuotedMatches(orderValue float64) []usecase.QuotedMatch {
	out := make([]usecase.QuotedMatch, 0, len(s.matches))
	for _, rec := range s.matches {
		out = append(out, usecase.QuotedMatch{
			Record: rec,
			Quote:  s.delivery.Quote(rec.DistanceMeters, orderValue, s.conditions, time.Now()),
		})
	}

	return out
}

// stubNotifications serves a fixed event list.
type stubNotifications struct {
	events    []entity.NotificationEvent
	dismissed []uuid.UUID
}

func (s *stubNotifications) Start()                                  {}
func (s *stubNotifications) Stop()                                   {}
func (s *stubNotifications) HandleDelta(entity.CounterpartyRecord)   {}
func (s *stubNotifications) Active() []entity.NotificationEvent      { return s.events }
func (s *stubNotifications) SubscribeEvents(func(entity.NotificationEvent)) func() {
	return func() {}
}

func (s *stubNotifications) Dismiss(id uuid.UUID) error {
	for _, ev := range s.events {
		if ev.ID == id {
			s.dismissed = append(s.dismissed, id)

			return nil
		}
	}

	return errors.New("unknown notification")
}

// stubTracker only supports the calls the handlers make.
type stubTracker struct {
	tracking  bool
	shareOK   bool
	sharedIDs []string
}

func (s *stubTracker) RequestPermission(context.Context, entity.PermissionScope) bool { return true }
func (s *stubTracker) CurrentLocation(context.Context) *entity.Location               { return nil }
func (s *stubTracker) StartTracking(context.Context, entity.Role, func(entity.Location)) bool {
	return true
}
func (s *stubTracker) StopTracking()                                       {}
func (s *stubTracker) IsTracking() bool                                    { return s.tracking }
func (s *stubTracker) AddListener(func(entity.Location)) func()            { return func() {} }
func (s *stubTracker) DistanceMeters(float64, float64, float64, float64) float64 { return 0 }
func (s *stubTracker) NearbyVendors(context.Context, float64, float64, float64) (*service.NearbyResult, error) {
	return &service.NearbyResult{}, nil
}
func (s *stubTracker) NearbyConsumers(context.Context, float64, float64, float64) (*service.NearbyResult, error) {
	return &service.NearbyResult{}, nil
}
func (s *stubTracker) ConsumerLocationForOrder(context.Context, string) *entity.Location { return nil }
func (s *stubTracker) ShareLocationForOrder(_ context.Context, orderID string) bool {
	if s.shareOK {
		s.sharedIDs = append(s.sharedIDs, orderID)
	}

	return s.shareOK
}

// stubChannel only reports a connection state.
type stubChannel struct {
	state entity.ConnectionState
}

func (s *stubChannel) Connect(context.Context, entity.Role) error                  { return nil }
func (s *stubChannel) Disconnect()                                                 {}
func (s *stubChannel) Publish(string, any) error                                   { return nil }
func (s *stubChannel) Subscribe(string, service.MessageHandler) func()             { return func() {} }
func (s *stubChannel) State() entity.ConnectionState                               { return s.state }
func (s *stubChannel) BroadcastLocation(entity.Location, entity.Role) error        { return nil }
func (s *stubChannel) SubscribeNearbyVendors(float64, float64, float64) error      { return nil }
func (s *stubChannel) UnsubscribeNearbyVendors() error                             { return nil }
func (s *stubChannel) SubscribeOrderConsumer(string) error                         { return nil }
func (s *stubChannel) UnsubscribeOrderConsumer(string) error                       { return nil }
func (s *stubChannel) AcknowledgeNotification(string) error                        { return nil }

func doRequest(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func newTestServer(t *testing.T) (*echo.Echo, *stubProximity, *stubNotifications, *stubTracker) {
	t.Helper()

	deliveryService := impl.NewDeliveryService(nil)
	prox := &stubProximity{
		conditions: entity.DefaultConditions(),
		delivery:   deliveryService,
		matches: []entity.CounterpartyRecord{
			{ID: "v1", Role: entity.RoleVendor, DisplayName: "Near Farm", DistanceMeters: 400},
			{ID: "v2", Role: entity.RoleVendor, DisplayName: "Far Farm", DistanceMeters: 4200},
		},
	}
	notifications := &stubNotifications{}
	tracker := &stubTracker{tracking: true, shareOK: true}

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Session.Role = "consumer"

	e := echo.New()
	e.GET("/api/v1/status", NewStatusHandler(cfg, &stubChannel{state: entity.StateConnected}, tracker, prox).GetStatus)
	e.PUT("/api/v1/conditions", NewStatusHandler(cfg, &stubChannel{state: entity.StateConnected}, tracker, prox).PutConditions)
	matches := NewMatchesHandler(prox, deliveryService)
	e.GET("/api/v1/matches", matches.GetMatches)
	e.GET("/api/v1/quote", matches.GetQuote)
	nh := NewNotificationHandler(notifications, tracker)
	e.GET("/api/v1/notifications", nh.GetNotifications)
	e.DELETE("/api/v1/notifications/:id", nh.DismissNotification)
	e.POST("/api/v1/orders/:id/share-location", nh.ShareOrderLocation)
	stall := NewStallHandler(cfg, qrcode.NewStallCardService(128, "M"), prox)
	e.GET("/api/v1/stall-card", stall.GetStallCard)
	e.POST("/api/v1/stall-scan", stall.PostStallScan)

	return e, prox, notifications, tracker
}

func TestStatusEndpoint(t *testing.T) {
	e, _, _, _ := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusBody
	decodeData(t, rec, &body)
	assert.Equal(t, "consumer", body.Role)
	assert.Equal(t, "connected", body.ConnectionState)
	assert.True(t, body.Tracking)
	assert.Equal(t, 2, body.MatchCount)
}

func TestMatchesEndpoint(t *testing.T) {
	e, _, _, _ := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/matches", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []entity.CounterpartyRecord
	decodeData(t, rec, &records)
	require.Len(t, records, 2)
	assert.Equal(t, "v1", records[0].ID)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/matches?order_value=100", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var quoted []usecase.QuotedMatch
	decodeData(t, rec, &quoted)
	require.Len(t, quoted, 2)
	assert.Equal(t, entity.PriorityHigh, quoted[0].Quote.Priority)
	assert.Positive(t, quoted[0].Quote.FeeCurrencyUnits)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/matches?order_value=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuoteEndpoint(t *testing.T) {
	e, _, _, _ := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/quote?distance=2000&order_value=600", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var quote entity.DeliveryQuote
	decodeData(t, rec, &quote)
	assert.Zero(t, quote.FeeCurrencyUnits, "order above the free-delivery threshold")
	assert.True(t, quote.WithinServiceRange)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/quote?distance=-5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConditionsEndpoint(t *testing.T) {
	e, prox, _, _ := newTestServer(t)

	rec := doRequest(t, e, http.MethodPut, "/api/v1/conditions", `{"weather":"storm","traffic":"heavy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.WeatherStorm, prox.conditions.Weather)
	assert.Equal(t, entity.TrafficHeavy, prox.conditions.Traffic)

	rec = doRequest(t, e, http.MethodPut, "/api/v1/conditions", `{"weather":"hail"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	e, _, notifications, _ := newTestServer(t)
	event := entity.NotificationEvent{ID: uuid.New(), CounterpartyID: "v1", DisplayName: "Near Farm"}
	notifications.events = []entity.NotificationEvent{event}

	rec := doRequest(t, e, http.MethodGet, "/api/v1/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var events []entity.NotificationEvent
	decodeData(t, rec, &events)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/notifications/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/notifications/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/notifications/"+event.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifications.dismissed, 1)
}

func TestStallEndpoints(t *testing.T) {
	e, _, _, _ := newTestServer(t)

	// Consumer sessions have no stall card.
	rec := doRequest(t, e, http.MethodGet, "/api/v1/stall-card", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Scanning a known vendor's card resolves to its live record.
	payload, err := json.Marshal(qrcode.StallCardData{VendorID: "v1", Type: "stall"})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]string{"data": string(payload)})
	require.NoError(t, err)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/stall-scan", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var scan struct {
		VendorID string                     `json:"vendor_id"`
		Known    bool                       `json:"known"`
		Record   *entity.CounterpartyRecord `json:"record"`
	}
	decodeData(t, rec, &scan)
	assert.Equal(t, "v1", scan.VendorID)
	assert.True(t, scan.Known)
	require.NotNil(t, scan.Record)
	assert.InDelta(t, 400, scan.Record.DistanceMeters, 0.01)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/stall-scan", `{"data":"not a card"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStallCardForVendorSession(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Session.Role = "vendor"
	cfg.Session.UserID = "vendor-42"

	e := echo.New()
	stall := NewStallHandler(cfg, qrcode.NewStallCardService(128, "M"), &stubProximity{})
	e.GET("/api/v1/stall-card", stall.GetStallCard)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/stall-card", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	cfg.Session.UserID = ""
	rec = doRequest(t, e, http.MethodGet, "/api/v1/stall-card", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShareOrderLocationEndpoint(t *testing.T) {
	e, _, _, tracker := newTestServer(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/orders/order-7/share-location", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"order-7"}, tracker.sharedIDs)

	tracker.shareOK = false
	rec = doRequest(t, e, http.MethodPost, "/api/v1/orders/order-8/share-location", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
