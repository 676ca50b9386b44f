package impl

import (
	"context"
	"log/slog"
	"sync"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/repository"
	"mandi/internal/domain/service"
	"mandi/internal/geo"
	"mandi/internal/usecase"
)

type trackingService struct {
	cfg     *config.TrackingConfig
	logger  *slog.Logger
	source  service.LocationSource
	store   repository.LocationStore
	client  service.MarketplaceClient
	channel service.RealtimeChannel

	mu        sync.Mutex
	stopWatch func()
	role      entity.Role
	onUpdate  func(entity.Location)
	nextID    int
	listeners map[int]func(entity.Location)
}

// NewTrackingService creates the location tracker. Each accepted fix fans out
// in a fixed order: local store, REST update, realtime broadcast, listeners.
func NewTrackingService(
	cfg *config.TrackingConfig,
	logger *slog.Logger,
	source service.LocationSource,
	store repository.LocationStore,
	client service.MarketplaceClient,
	channel service.RealtimeChannel,
) usecase.TrackingUsecase {
	if cfg == nil {
		full := &config.Config{}
		full.ApplyDefaults()
		cfg = full.Tracking
	}

	return &trackingService{
		cfg:       cfg,
		logger:    logger,
		source:    source,
		store:     store,
		client:    client,
		channel:   channel,
		listeners: make(map[int]func(entity.Location)),
	}
}

func (s *trackingService) RequestPermission(ctx context.Context, scope entity.PermissionScope) bool {
	granted := s.source.RequestPermission(ctx, scope)
	if !granted {
		s.logger.Warn("location permission denied", slog.String("scope", string(scope)))
	}

	return granted
}

// CurrentLocation performs a one-shot fix bounded by the configured timeout,
// falling back to the persisted last-known location.
func (s *trackingService) CurrentLocation(ctx context.Context) *entity.Location {
	fixCtx, cancel := context.WithTimeout(ctx, s.cfg.LocationTimeout)
	defer cancel()

	loc, err := s.source.Current(fixCtx)
	if err == nil && loc != nil && loc.IsValid() {
		if saveErr := s.store.SaveLastKnown(ctx, *loc); saveErr != nil {
			s.logger.Debug("persist last-known location failed", slog.Any("error", saveErr))
		}

		return loc
	}
	if err != nil {
		s.logger.Warn("one-shot location fix failed, trying last-known", slog.Any("error", err))
	}

	stored, err := s.store.LastKnown(ctx)
	if err != nil {
		return nil
	}

	return stored
}

// StartTracking acquires permissions and begins the continuous watch. Vendor
// sessions additionally ask for background permission, but its denial does
// not block tracking.
func (s *trackingService) StartTracking(ctx context.Context, role entity.Role, onUpdate func(entity.Location)) bool {
	s.mu.Lock()
	if s.stopWatch != nil {
		s.mu.Unlock()

		return true
	}
	s.mu.Unlock()

	if !s.RequestPermission(ctx, entity.ScopeForeground) {
		return false
	}
	if role == entity.RoleVendor && !s.RequestPermission(ctx, entity.ScopeBackground) {
		s.logger.Info("background permission denied, vendor tracking continues in foreground")
	}

	stop, err := s.source.Watch(ctx, service.WatchOptions{
		MinInterval:           s.cfg.MinInterval,
		MinDisplacementMeters: s.cfg.MinDisplacementMeters,
	}, s.handleFix)
	if err != nil {
		s.logger.Error("location watch failed to start", slog.Any("error", err))

		return false
	}

	s.mu.Lock()
	s.stopWatch = stop
	s.role = role
	s.onUpdate = onUpdate
	s.mu.Unlock()

	s.logger.Info("location tracking started", slog.String("role", role.String()))

	return true
}

func (s *trackingService) StopTracking() {
	s.mu.Lock()
	stop := s.stopWatch
	s.stopWatch = nil
	s.onUpdate = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	// The source guarantees no fix callback after stop returns, which makes
	// this whole method synchronous for our listeners too.
	stop()
	s.logger.Info("location tracking stopped")
}

func (s *trackingService) IsTracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopWatch != nil
}

// handleFix is the single fan-out point for every accepted fix.
func (s *trackingService) handleFix(loc entity.Location) {
	if !loc.IsValid() {
		s.logger.Warn("dropping invalid location fix",
			slog.Float64("latitude", loc.Latitude),
			slog.Float64("longitude", loc.Longitude))

		return
	}

	s.mu.Lock()
	if s.stopWatch == nil {
		s.mu.Unlock()

		return
	}
	role := s.role
	onUpdate := s.onUpdate
	fns := make([]func(entity.Location), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.store.SaveLastKnown(ctx, loc); err != nil {
		s.logger.Debug("persist location fix failed", slog.Any("error", err))
	}
	if err := s.client.UpdateLocation(ctx, loc, role); err != nil {
		s.logger.Debug("server location update failed", slog.Any("error", err))
	}
	if err := s.channel.BroadcastLocation(loc, role); err != nil {
		s.logger.Debug("location broadcast skipped", slog.Any("error", err))
	}

	for _, fn := range fns {
		fn(loc)
	}
	if onUpdate != nil {
		onUpdate(loc)
	}
}

func (s *trackingService) AddListener(fn func(entity.Location)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *trackingService) DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceCoords(lat1, lon1, lat2, lon2)
}

func (s *trackingService) NearbyVendors(ctx context.Context, lat, lng, radiusMeters float64) (*service.NearbyResult, error) {
	return s.client.NearbyVendors(ctx, lat, lng, radiusMeters)
}

func (s *trackingService) NearbyConsumers(ctx context.Context, lat, lng, radiusMeters float64) (*service.NearbyResult, error) {
	return s.client.NearbyConsumers(ctx, lat, lng, radiusMeters)
}

func (s *trackingService) ConsumerLocationForOrder(ctx context.Context, orderID string) *entity.Location {
	loc, err := s.client.ConsumerLocationForOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("consumer location fetch failed", slog.String("order_id", orderID), slog.Any("error", err))

		return nil
	}

	return loc
}

func (s *trackingService) ShareLocationForOrder(ctx context.Context, orderID string) bool {
	loc := s.CurrentLocation(ctx)
	if loc == nil {
		return false
	}

	if err := s.client.ShareLocationForOrder(ctx, orderID, *loc); err != nil {
		s.logger.Warn("share location failed", slog.String("order_id", orderID), slog.Any("error", err))

		return false
	}

	return true
}
