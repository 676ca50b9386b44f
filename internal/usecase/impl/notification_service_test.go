package impl

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/infra/sched"
	"mandi/internal/usecase"
)

func newDispatcherFixture(t *testing.T, cfg *config.NotificationConfig) (*fakeChannel, *fakePush, *sched.Manual, usecase.NotificationUsecase) {
	t.Helper()

	channel := newFakeChannel()
	push := &fakePush{}
	clock := sched.NewManual(proximityStart)
	_, _, _, prox := newProximityFixture(t, entity.RoleConsumer)
	svc := NewNotificationService(cfg, discardLogger(), channel, push, nil, prox, clock)

	return channel, push, clock, svc
}

func vendorAt(id string, distance float64) entity.CounterpartyRecord {
	return entity.CounterpartyRecord{
		ID:             id,
		Role:           entity.RoleVendor,
		DisplayName:    "Vendor " + id,
		DistanceMeters: distance,
		IsLive:         true,
		Source:         entity.SourceStream,
	}
}

func TestDispatcher_TriggersOnCrossing(t *testing.T) {
	_, push, _, svc := newDispatcherFixture(t, nil)

	svc.HandleDelta(vendorAt("v1", 1500))
	assert.Zero(t, push.count(), "outside the radius")

	svc.HandleDelta(vendorAt("v1", 800))
	assert.Equal(t, 1, push.count(), "outside-to-inside crossing")

	svc.HandleDelta(vendorAt("v1", 700))
	assert.Equal(t, 1, push.count(), "moving around inside is not a new crossing")

	events := svc.Active()
	require.Len(t, events, 1)
	assert.Equal(t, "v1", events[0].CounterpartyID)
	assert.Equal(t, 800.0, events[0].DistanceAtTrigger)
	assert.Equal(t, "notification_id", firstKeyWith(push.datas[0], events[0].ID.String()))
}

func firstKeyWith(data map[string]string, value string) string {
	for k, v := range data {
		if v == value {
			return k
		}
	}

	return ""
}

func TestDispatcher_FirstSightingInsideCounts(t *testing.T) {
	_, push, _, svc := newDispatcherFixture(t, nil)

	svc.HandleDelta(vendorAt("v1", 400))
	assert.Equal(t, 1, push.count())
}

func TestDispatcher_ExactRadiusIsInside(t *testing.T) {
	_, push, _, svc := newDispatcherFixture(t, nil)

	svc.HandleDelta(vendorAt("v1", 1000))
	assert.Equal(t, 1, push.count())
}

func TestDispatcher_CooldownSuppressesReentry(t *testing.T) {
	_, push, clock, svc := newDispatcherFixture(t, nil)

	svc.HandleDelta(vendorAt("v1", 800))
	require.Equal(t, 1, push.count())

	// Leave and re-enter within the cooldown: suppressed.
	svc.HandleDelta(vendorAt("v1", 1500))
	clock.Advance(5 * time.Minute)
	svc.HandleDelta(vendorAt("v1", 800))
	assert.Equal(t, 1, push.count())

	// Leave and re-enter after the cooldown: a fresh event.
	svc.HandleDelta(vendorAt("v1", 1500))
	clock.Advance(6 * time.Minute)
	svc.HandleDelta(vendorAt("v1", 800))
	assert.Equal(t, 2, push.count())
}

func TestDispatcher_HistoryEvictionReallows(t *testing.T) {
	cfg := &config.NotificationConfig{
		AutoNotifyRadiusMeters: 1000,
		HistorySize:            2,
		RenotifyCooldown:       time.Hour,
	}
	_, push, _, svc := newDispatcherFixture(t, cfg)

	svc.HandleDelta(vendorAt("v1", 800))
	svc.HandleDelta(vendorAt("v2", 800))
	svc.HandleDelta(vendorAt("v3", 800)) // evicts v1 from the history
	require.Equal(t, 3, push.count())

	// v1's suppression went with its history entry, so re-entry notifies
	// even though the cooldown has not elapsed.
	svc.HandleDelta(vendorAt("v1", 1500))
	svc.HandleDelta(vendorAt("v1", 800))
	assert.Equal(t, 4, push.count())

	// v3 is still in the history and stays suppressed.
	svc.HandleDelta(vendorAt("v3", 1500))
	svc.HandleDelta(vendorAt("v3", 800))
	assert.Equal(t, 4, push.count())
}

func TestDispatcher_ActiveListBounded(t *testing.T) {
	cfg := &config.NotificationConfig{
		AutoNotifyRadiusMeters: 1000,
		HistorySize:            3,
		RenotifyCooldown:       time.Hour,
	}
	_, push, _, svc := newDispatcherFixture(t, cfg)

	for _, id := range []string{"v1", "v2", "v3", "v4", "v5"} {
		svc.HandleDelta(vendorAt(id, 800))
	}
	require.Equal(t, 5, push.count())

	events := svc.Active()
	require.Len(t, events, 3, "active list evicts oldest-first at the cap")
	assert.Equal(t, "v5", events[0].CounterpartyID)
	assert.Equal(t, "v3", events[2].CounterpartyID)
}

func TestDispatcher_ActiveNewestFirst(t *testing.T) {
	_, _, clock, svc := newDispatcherFixture(t, nil)

	svc.HandleDelta(vendorAt("v1", 800))
	clock.Advance(time.Minute)
	svc.HandleDelta(vendorAt("v2", 900))

	events := svc.Active()
	require.Len(t, events, 2)
	assert.Equal(t, "v2", events[0].CounterpartyID)
	assert.Equal(t, "v1", events[1].CounterpartyID)
}

func TestDispatcher_DismissAcknowledges(t *testing.T) {
	channel, _, _, svc := newDispatcherFixture(t, nil)

	svc.HandleDelta(vendorAt("v1", 800))
	events := svc.Active()
	require.Len(t, events, 1)

	require.NoError(t, svc.Dismiss(events[0].ID))
	assert.Empty(t, svc.Active())
	require.Len(t, channel.acked, 1)
	assert.Equal(t, events[0].ID.String(), channel.acked[0])

	err := svc.Dismiss(uuid.New())
	assert.True(t, errors.Is(err, ErrUnknownNotification))
}

func TestDispatcher_EventSubscribers(t *testing.T) {
	_, _, _, svc := newDispatcherFixture(t, nil)

	var seen []entity.NotificationEvent
	remove := svc.SubscribeEvents(func(ev entity.NotificationEvent) {
		seen = append(seen, ev)
	})

	svc.HandleDelta(vendorAt("v1", 800))
	require.Len(t, seen, 1)
	assert.Equal(t, "v1", seen[0].CounterpartyID)

	remove()
	svc.HandleDelta(vendorAt("v2", 800))
	assert.Len(t, seen, 1)
}

func TestDispatcher_PublishesEventsToBus(t *testing.T) {
	channel := newFakeChannel()
	push := &fakePush{}
	publisher := &fakePublisher{}
	clock := sched.NewManual(proximityStart)
	_, _, _, prox := newProximityFixture(t, entity.RoleConsumer)
	svc := NewNotificationService(nil, discardLogger(), channel, push, publisher, prox, clock)

	svc.HandleDelta(vendorAt("v1", 800))
	require.Equal(t, 1, publisher.count())
	assert.Equal(t, "v1", publisher.published[0].CounterpartyID)

	// A failing bus must not suppress the push notification.
	publisher.err = errors.New("bus down")
	svc.HandleDelta(vendorAt("v2", 700))
	assert.Equal(t, 2, push.count())
}

func TestDispatcher_StartWiresDeltaStream(t *testing.T) {
	channel := newFakeChannel()
	push := &fakePush{}
	clock := sched.NewManual(proximityStart)
	proxChannel, _, _, prox := newProximityFixture(t, entity.RoleConsumer)
	require.NoError(t, prox.Start(context.Background()))
	svc := NewNotificationService(nil, discardLogger(), channel, push, nil, prox, clock)

	svc.Start()
	defer svc.Stop()

	// A live delta inside the radius flows proximity -> dispatcher -> push.
	proxChannel.emit(t, "vendor_location_update", streamUpdate("v1", "Farm One", nearPoint, proximityStart.Add(time.Second)))
	assert.Equal(t, 1, push.count())

	svc.Stop()
	proxChannel.emit(t, "vendor_location_update", streamUpdate("v2", "Farm Two", nearPoint, proximityStart.Add(2*time.Second)))
	assert.Equal(t, 1, push.count(), "no event after Stop")
}
