package impl

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
	"mandi/internal/geo"
	"mandi/internal/infra/sched"
	"mandi/internal/usecase"
)

// Fallback center used when no location can be acquired at all, so the
// session still renders something instead of crashing. Matches the default
// map region of the mobile client (Delhi).
const (
	defaultLatitude  = 28.6139
	defaultLongitude = 77.2090
)

type proximityService struct {
	cfg      *config.TrackingConfig
	logger   *slog.Logger
	channel  service.RealtimeChannel
	tracker  usecase.TrackingUsecase
	delivery usecase.DeliveryUsecase
	clock    sched.Scheduler
	role     entity.Role

	mu         sync.Mutex
	started    bool
	self       *entity.Location
	records    map[string]*entity.CounterpartyRecord
	ordered    []*entity.CounterpartyRecord
	conditions entity.Conditions

	deltaSubs  map[int]func(entity.CounterpartyRecord)
	nextSubID  int
	teardowns  []func()
}

// NewProximityService creates the matcher for one session role. The channel
// and tracker only emit events; this service owns the counterparty map and is
// the only writer to it.
func NewProximityService(
	cfg *config.TrackingConfig,
	logger *slog.Logger,
	channel service.RealtimeChannel,
	tracker usecase.TrackingUsecase,
	delivery usecase.DeliveryUsecase,
	clock sched.Scheduler,
	role entity.Role,
) usecase.ProximityUsecase {
	if cfg == nil {
		full := &config.Config{}
		full.ApplyDefaults()
		cfg = full.Tracking
	}

	return &proximityService{
		cfg:        cfg,
		logger:     logger,
		channel:    channel,
		tracker:    tracker,
		delivery:   delivery,
		clock:      clock,
		role:       role,
		records:    make(map[string]*entity.CounterpartyRecord),
		conditions: entity.DefaultConditions(),
		deltaSubs:  make(map[int]func(entity.CounterpartyRecord)),
	}
}

// wireCounterpartyUpdate is the payload of vendor_location_update and
// consumer_location_update messages.
type wireCounterpartyUpdate struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Location struct {
		Coordinates []float64 `json:"coordinates"` // [lng, lat]
	} `json:"location"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// wireDeparture is the payload of a vendor-departed style event.
type wireDeparture struct {
	VendorID string `json:"vendorId"`
	UserID   string `json:"userId"`
}

func (s *proximityService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()

		return nil
	}
	s.started = true
	s.mu.Unlock()

	center := s.tracker.CurrentLocation(ctx)
	if center == nil {
		s.logger.Warn("no location available, seeding matcher from default center")
		center = &entity.Location{
			Latitude:  defaultLatitude,
			Longitude: defaultLongitude,
			Timestamp: s.clock.Now(),
		}
	}

	s.mu.Lock()
	s.self = center
	s.mu.Unlock()

	s.seedFromSnapshot(ctx, *center)
	s.openNearbySubscription(*center)

	streamType := service.MessageVendorLocationUpdate
	if s.role == entity.RoleVendor {
		streamType = service.MessageConsumerLocationUpdate
	}

	unsubStream := s.channel.Subscribe(streamType, s.handleStreamDelta)
	unsubDeparted := s.channel.Subscribe(service.MessageVendorDeparted, s.handleDeparture)
	unsubConnected := s.channel.Subscribe(service.EventConnected, func(json.RawMessage) {
		// The server drops subscriptions with the socket; re-open the nearby
		// subscription against the freshest known center after a reconnect.
		s.mu.Lock()
		self := s.self
		s.mu.Unlock()
		if self != nil {
			s.openNearbySubscription(*self)
		}
	})
	removeListener := s.tracker.AddListener(s.ApplySelfLocation)

	s.mu.Lock()
	s.teardowns = []func(){unsubStream, unsubDeparted, unsubConnected, removeListener}
	s.mu.Unlock()

	return nil
}

func (s *proximityService) Stop() {
	s.mu.Lock()
	teardowns := s.teardowns
	s.teardowns = nil
	s.started = false
	s.mu.Unlock()

	for _, teardown := range teardowns {
		teardown()
	}

	if s.role == entity.RoleConsumer {
		if err := s.channel.UnsubscribeNearbyVendors(); err != nil {
			s.logger.Debug("unsubscribe nearby vendors failed", slog.Any("error", err))
		}
	}
}

func (s *proximityService) seedFromSnapshot(ctx context.Context, center entity.Location) {
	var (
		result *service.NearbyResult
		err    error
	)
	if s.role == entity.RoleVendor {
		result, err = s.tracker.NearbyConsumers(ctx, center.Latitude, center.Longitude, s.cfg.NearbyRadiusMeters)
	} else {
		result, err = s.tracker.NearbyVendors(ctx, center.Latitude, center.Longitude, s.cfg.NearbyRadiusMeters)
	}
	if err != nil {
		s.logger.Warn("nearby snapshot unavailable, matcher starts stream-only", slog.Any("error", err))

		return
	}

	if result.IsOffline || result.IsMock {
		s.logger.Info("seeded matcher from degraded snapshot tier",
			slog.Bool("is_offline", result.IsOffline),
			slog.Bool("is_mock", result.IsMock),
			slog.Int("records", len(result.Records)))
	}

	for _, rec := range result.Records {
		s.applySnapshotRecord(rec)
	}
}

func (s *proximityService) openNearbySubscription(center entity.Location) {
	// Only consumers hold a nearby subscription; the server pushes consumer
	// updates to vendors per active order instead.
	if s.role != entity.RoleConsumer {
		return
	}

	if err := s.channel.SubscribeNearbyVendors(center.Latitude, center.Longitude, s.cfg.NearbyRadiusMeters); err != nil {
		s.logger.Debug("nearby subscription deferred until channel connects", slog.Any("error", err))
	}
}

func (s *proximityService) handleStreamDelta(data json.RawMessage) {
	var wire wireCounterpartyUpdate
	if err := json.Unmarshal(data, &wire); err != nil {
		s.logger.Warn("malformed counterparty update", slog.Any("error", err))

		return
	}
	if wire.UserID == "" || len(wire.Location.Coordinates) < 2 {
		s.logger.Warn("counterparty update missing id or coordinates")

		return
	}

	s.ApplyCounterpartyUpdate(usecase.CounterpartyUpdate{
		ID:          wire.UserID,
		DisplayName: wire.UserName,
		Coordinate:  orb.Point{wire.Location.Coordinates[0], wire.Location.Coordinates[1]},
		Timestamp:   parseWireTimestamp(wire.Timestamp, s.clock.Now()),
	})
}

func (s *proximityService) handleDeparture(data json.RawMessage) {
	var wire wireDeparture
	if err := json.Unmarshal(data, &wire); err != nil {
		s.logger.Warn("malformed departure event", slog.Any("error", err))

		return
	}

	id := wire.VendorID
	if id == "" {
		id = wire.UserID
	}
	if id == "" {
		return
	}

	s.Remove(id)
}

// ApplySelfLocation recomputes every record's distance against the new self
// location. Snapshot-only records are updated here too: they are not live in
// the push sense, but their distance still tracks self movement.
func (s *proximityService) ApplySelfLocation(loc entity.Location) {
	s.mu.Lock()
	s.self = &loc
	for _, rec := range s.records {
		rec.DistanceMeters = geo.DistanceCoords(loc.Latitude, loc.Longitude, rec.Coordinate.Lat(), rec.Coordinate.Lon())
	}
	s.resortLocked()
	copies := make([]entity.CounterpartyRecord, 0, len(s.ordered))
	for _, rec := range s.ordered {
		copies = append(copies, *rec)
	}
	subs := s.deltaSubscribersLocked()
	s.mu.Unlock()

	for _, rec := range copies {
		for _, fn := range subs {
			fn(rec)
		}
	}
}

// ApplyCounterpartyUpdate upserts one record from the live stream. Updates
// older than the record's lastUpdated are dropped: newest always wins, which
// also protects fresh stream data from a late snapshot refresh.
func (s *proximityService) ApplyCounterpartyUpdate(u usecase.CounterpartyUpdate) {
	s.mu.Lock()
	rec, exists := s.records[u.ID]
	if exists && u.Timestamp.Before(rec.LastUpdated) {
		s.mu.Unlock()

		return
	}

	if !exists {
		rec = &entity.CounterpartyRecord{
			ID:   u.ID,
			Role: s.role.Counterparty(),
		}
		s.records[u.ID] = rec
		s.ordered = append(s.ordered, rec)
	}

	if u.DisplayName != "" {
		rec.DisplayName = u.DisplayName
	}
	rec.Coordinate = u.Coordinate
	rec.LastUpdated = u.Timestamp
	rec.IsLive = true
	rec.Source = entity.SourceStream
	rec.DistanceMeters = s.distanceFromSelfLocked(rec)

	s.resortLocked()
	changed := *rec
	subs := s.deltaSubscribersLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(changed)
	}
}

// applySnapshotRecord merges one snapshot entry. An existing record with a
// newer lastUpdated keeps everything it has: the snapshot must not clobber
// fresher stream data.
func (s *proximityService) applySnapshotRecord(snap entity.CounterpartyRecord) {
	s.mu.Lock()
	rec, exists := s.records[snap.ID]
	if exists && rec.LastUpdated.After(snap.LastUpdated) {
		s.mu.Unlock()

		return
	}

	if !exists {
		rec = &entity.CounterpartyRecord{
			ID:     snap.ID,
			Role:   s.role.Counterparty(),
			IsLive: false,
			Source: snap.Source,
		}
		if rec.Source == "" {
			rec.Source = entity.SourceSnapshot
		}
		s.records[snap.ID] = rec
		s.ordered = append(s.ordered, rec)
	}

	if snap.DisplayName != "" {
		rec.DisplayName = snap.DisplayName
	}
	rec.Coordinate = snap.Coordinate
	rec.LastUpdated = snap.LastUpdated
	rec.DistanceMeters = s.distanceFromSelfLocked(rec)

	s.resortLocked()
	changed := *rec
	subs := s.deltaSubscribersLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(changed)
	}
}

func (s *proximityService) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return
	}
	delete(s.records, id)
	for i, rec := range s.ordered {
		if rec.ID == id {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)

			break
		}
	}
}

func (s *proximityService) Matches() []entity.CounterpartyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.CounterpartyRecord, 0, len(s.ordered))
	for _, rec := range s.ordered {
		out = append(out, *rec)
	}

	return out
}

func (s *proximityService) QuotedMatches(orderValue float64) []usecase.QuotedMatch {
	s.mu.Lock()
	cond := s.conditions
	records := make([]entity.CounterpartyRecord, 0, len(s.ordered))
	for _, rec := range s.ordered {
		records = append(records, *rec)
	}
	s.mu.Unlock()

	now := s.clock.Now()
	out := make([]usecase.QuotedMatch, 0, len(records))
	for _, rec := range records {
		out = append(out, usecase.QuotedMatch{
			Record: rec,
			Quote:  s.delivery.Quote(rec.DistanceMeters, orderValue, cond, now),
		})
	}

	return out
}

func (s *proximityService) SetConditions(cond entity.Conditions) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cond.Weather.IsValid() {
		s.conditions.Weather = cond.Weather
	}
	if cond.Traffic.IsValid() {
		s.conditions.Traffic = cond.Traffic
	}
}

func (s *proximityService) Conditions() entity.Conditions {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conditions
}

func (s *proximityService) SubscribeDeltas(fn func(entity.CounterpartyRecord)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.deltaSubs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.deltaSubs, id)
	}
}

// resortLocked keeps the list ascending by distance. The sort is stable so
// equal-distance records never swap, avoiding UI flicker.
func (s *proximityService) resortLocked() {
	sort.SliceStable(s.ordered, func(i, j int) bool {
		return s.ordered[i].DistanceMeters < s.ordered[j].DistanceMeters
	})
}

func (s *proximityService) distanceFromSelfLocked(rec *entity.CounterpartyRecord) float64 {
	if s.self == nil {
		return math.Inf(1)
	}

	return geo.DistanceCoords(s.self.Latitude, s.self.Longitude, rec.Coordinate.Lat(), rec.Coordinate.Lon())
}

func (s *proximityService) deltaSubscribersLocked() []func(entity.CounterpartyRecord) {
	subs := make([]func(entity.CounterpartyRecord), 0, len(s.deltaSubs))
	for _, fn := range s.deltaSubs {
		subs = append(subs, fn)
	}

	return subs
}

// parseWireTimestamp accepts either an epoch-milliseconds number (the mobile
// client format) or an RFC3339 string, falling back to the local clock.
func parseWireTimestamp(raw json.RawMessage, fallback time.Time) time.Time {
	if len(raw) == 0 {
		return fallback
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil && millis > 0 {
		return time.UnixMilli(millis)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if ts, err := time.Parse(time.RFC3339, text); err == nil {
			return ts
		}
	}

	return fallback
}
