package location

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
	"mandi/internal/geo"
	"mandi/internal/infra/sched"
)

var (
	walkStart  = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	walkCenter = entity.Location{Latitude: 28.6139, Longitude: 77.2090}
)

func newWalker(t *testing.T) (*sched.Manual, *SimulatedSource) {
	t.Helper()

	clock := sched.NewManual(walkStart)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return clock, NewSimulatedSource(logger, clock, walkCenter, 150)
}

func TestSimulated_WalksTheCircle(t *testing.T) {
	clock, source := newWalker(t)

	var fixes []entity.Location
	stop, err := source.Watch(context.Background(), service.WatchOptions{
		MinInterval:           5 * time.Second,
		MinDisplacementMeters: 1,
	}, func(loc entity.Location) {
		fixes = append(fixes, loc)
	})
	require.NoError(t, err)
	defer stop()

	clock.Advance(30 * time.Second)
	require.Len(t, fixes, 6, "one fix per interval")

	for i, fix := range fixes {
		assert.True(t, fix.IsValid())
		fromCenter := geo.Distance(walkCenter.Point(), fix.Point())
		assert.InDelta(t, 150, fromCenter, 5, "fix %d should stay on the circle", i)
		require.NotNil(t, fix.Heading)
		require.NotNil(t, fix.Speed)
	}

	// Each step covers roughly walking speed times the interval.
	step := geo.Distance(fixes[0].Point(), fixes[1].Point())
	assert.InDelta(t, 7, step, 2)
	assert.True(t, fixes[1].Timestamp.After(fixes[0].Timestamp))
}

func TestSimulated_StopIsSynchronous(t *testing.T) {
	clock, source := newWalker(t)

	var fixes int
	stop, err := source.Watch(context.Background(), service.WatchOptions{MinInterval: 5 * time.Second}, func(entity.Location) {
		fixes++
	})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	require.Equal(t, 2, fixes)

	stop()
	clock.Advance(time.Minute)
	assert.Equal(t, 2, fixes, "no fix may arrive after stop returns")
	assert.Zero(t, clock.Pending())
}

func TestSimulated_DisplacementThresholdFilters(t *testing.T) {
	clock, source := newWalker(t)

	var fixes int
	stop, err := source.Watch(context.Background(), service.WatchOptions{
		MinInterval:           5 * time.Second,
		MinDisplacementMeters: 1000, // the walker can never move this far per step
	}, func(entity.Location) {
		fixes++
	})
	require.NoError(t, err)
	defer stop()

	clock.Advance(time.Minute)
	assert.Zero(t, fixes)
}

func TestSimulated_CurrentReflectsWalk(t *testing.T) {
	clock, source := newWalker(t)
	ctx := context.Background()

	before, err := source.Current(ctx)
	require.NoError(t, err)

	stop, err := source.Watch(ctx, service.WatchOptions{MinInterval: 5 * time.Second, MinDisplacementMeters: 1}, func(entity.Location) {})
	require.NoError(t, err)
	defer stop()
	clock.Advance(20 * time.Second)

	after, err := source.Current(ctx)
	require.NoError(t, err)
	assert.Positive(t, geo.Distance(before.Point(), after.Point()))
}

func TestStatic_EmitsOnceAndHonorsPermission(t *testing.T) {
	clock := sched.NewManual(walkStart)
	source := NewStaticSource(clock, walkCenter, true)
	ctx := context.Background()

	assert.True(t, source.RequestPermission(ctx, entity.ScopeForeground))

	var fixes []entity.Location
	stop, err := source.Watch(ctx, service.WatchOptions{}, func(loc entity.Location) {
		fixes = append(fixes, loc)
	})
	require.NoError(t, err)
	stop()

	require.Len(t, fixes, 1)
	assert.Equal(t, walkCenter.Latitude, fixes[0].Latitude)

	denied := NewStaticSource(clock, walkCenter, false)
	assert.False(t, denied.RequestPermission(ctx, entity.ScopeForeground))
}
