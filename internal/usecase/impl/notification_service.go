package impl

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
	"mandi/internal/usecase"
)

// ErrUnknownNotification is returned by Dismiss for an id that is not in the
// active list.
var ErrUnknownNotification = errors.New("unknown notification id")

type notificationService struct {
	cfg       *config.NotificationConfig
	logger    *slog.Logger
	channel   service.RealtimeChannel
	push      service.PushNotifier
	publisher service.EventPublisher
	prox      usecase.ProximityUsecase
	clock     interface{ Now() time.Time }

	mu           sync.Mutex
	unsubscribe  func()
	lastDistance map[string]float64
	lastNotified map[string]time.Time
	historyOrder []string
	active       []entity.NotificationEvent

	eventSubs map[int]func(entity.NotificationEvent)
	nextSubID int
}

// NewNotificationService creates the proximity notification dispatcher. The
// clock is injected so the re-notify cooldown is testable. publisher may be
// nil when no event bus is configured.
func NewNotificationService(
	cfg *config.NotificationConfig,
	logger *slog.Logger,
	channel service.RealtimeChannel,
	push service.PushNotifier,
	publisher service.EventPublisher,
	prox usecase.ProximityUsecase,
	clock interface{ Now() time.Time },
) usecase.NotificationUsecase {
	if cfg == nil {
		full := &config.Config{}
		full.ApplyDefaults()
		cfg = full.Notification
	}

	return &notificationService{
		cfg:          cfg,
		logger:       logger,
		channel:      channel,
		push:         push,
		publisher:    publisher,
		prox:         prox,
		clock:        clock,
		lastDistance: make(map[string]float64),
		lastNotified: make(map[string]time.Time),
		eventSubs:    make(map[int]func(entity.NotificationEvent)),
	}
}

func (s *notificationService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.prox.SubscribeDeltas(s.HandleDelta)
}

func (s *notificationService) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// HandleDelta triggers on an outside-to-inside crossing of the notify radius.
// A record first seen already inside the radius counts as a crossing too.
func (s *notificationService) HandleDelta(rec entity.CounterpartyRecord) {
	s.mu.Lock()

	prev, seen := s.lastDistance[rec.ID]
	s.lastDistance[rec.ID] = rec.DistanceMeters

	inside := rec.DistanceMeters <= s.cfg.AutoNotifyRadiusMeters
	crossed := inside && (!seen || prev > s.cfg.AutoNotifyRadiusMeters)
	if !crossed || !s.dedupeAllowsLocked(rec.ID) {
		s.mu.Unlock()

		return
	}

	event := entity.NotificationEvent{
		ID:                uuid.New(),
		CounterpartyID:    rec.ID,
		DisplayName:       rec.DisplayName,
		DistanceAtTrigger: rec.DistanceMeters,
		Timestamp:         s.clock.Now(),
	}
	s.active = append(s.active, event)
	for len(s.active) > s.cfg.HistorySize {
		s.active = s.active[1:]
	}
	s.recordNotifiedLocked(rec.ID, event.Timestamp)
	subs := make([]func(entity.NotificationEvent), 0, len(s.eventSubs))
	for _, fn := range s.eventSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.logger.Info("proximity notification",
		slog.String("counterparty_id", rec.ID),
		slog.Float64("distance_meters", rec.DistanceMeters))

	title := event.DisplayName + " is nearby!"
	body := "About " + formatDistance(event.DistanceAtTrigger) + " away. Check their fresh produce now."
	if err := s.push.Notify(context.Background(), title, body, map[string]string{
		"notification_id": event.ID.String(),
		"counterparty_id": event.CounterpartyID,
	}); err != nil {
		s.logger.Warn("push notification failed", slog.Any("error", err))
	}

	if s.publisher != nil {
		if err := s.publisher.PublishProximityEvent(context.Background(), event); err != nil {
			s.logger.Warn("event publish failed", slog.Any("error", err))
		}
	}

	for _, fn := range subs {
		fn(event)
	}
}

// dedupeAllowsLocked implements the re-notify policy: a counterparty already
// in the history is suppressed until its entry is evicted or the cooldown
// elapses.
func (s *notificationService) dedupeAllowsLocked(id string) bool {
	last, ok := s.lastNotified[id]
	if !ok {
		return true
	}

	return s.clock.Now().Sub(last) >= s.cfg.RenotifyCooldown
}

// recordNotifiedLocked appends to the bounded FIFO history, evicting the
// oldest entry (and its suppression) once the cap is reached.
func (s *notificationService) recordNotifiedLocked(id string, at time.Time) {
	if _, ok := s.lastNotified[id]; !ok {
		s.historyOrder = append(s.historyOrder, id)
	}
	s.lastNotified[id] = at

	for len(s.historyOrder) > s.cfg.HistorySize {
		oldest := s.historyOrder[0]
		s.historyOrder = s.historyOrder[1:]
		delete(s.lastNotified, oldest)
	}
}

func (s *notificationService) Active() []entity.NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.NotificationEvent, 0, len(s.active))
	for i := len(s.active) - 1; i >= 0; i-- {
		out = append(out, s.active[i])
	}

	return out
}

func (s *notificationService) Dismiss(id uuid.UUID) error {
	s.mu.Lock()
	idx := -1
	for i, event := range s.active {
		if event.ID == id {
			idx = i

			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()

		return errors.Wrapf(ErrUnknownNotification, "dismiss %s", id)
	}
	s.active[idx].Acknowledged = true
	s.active = append(s.active[:idx], s.active[idx+1:]...)
	s.mu.Unlock()

	if err := s.channel.AcknowledgeNotification(id.String()); err != nil {
		// The local dismissal already happened; the server just misses the ack.
		s.logger.Debug("acknowledge over channel failed", slog.Any("error", err))
	}

	return nil
}

// formatDistance renders meters for notification copy: "850 m" below a
// kilometer, "1.2 km" above.
func formatDistance(meters float64) string {
	if meters < 1000 {
		return strconv.Itoa(int(math.Round(meters))) + " m"
	}

	return strconv.FormatFloat(meters/1000, 'f', 1, 64) + " km"
}

func (s *notificationService) SubscribeEvents(fn func(entity.NotificationEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.eventSubs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.eventSubs, id)
	}
}
