// Package location provides the device position sources: a simulated walker
// for demo and test sessions, and a fixed-position source for kiosk-style
// vendor stalls.
package location

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"mandi/internal/domain/entity"
	"mandi/internal/domain/service"
	"mandi/internal/geo"
	"mandi/internal/infra/sched"
)

const (
	defaultWatchInterval = 5 * time.Second
	walkingSpeedMS       = 1.4
)

// SimulatedSource walks a circle around a center point at pedestrian speed.
// It emits a deterministic movement pattern so demo sessions always show
// live distance changes.
type SimulatedSource struct {
	logger    *slog.Logger
	scheduler sched.Scheduler
	center    entity.Location
	radius    float64

	mu      sync.Mutex
	angle   float64
	current entity.Location
	task    sched.Task
	stopped bool
}

// NewSimulatedSource creates a walker circling center at the given radius in
// meters.
func NewSimulatedSource(logger *slog.Logger, scheduler sched.Scheduler, center entity.Location, radiusMeters float64) *SimulatedSource {
	s := &SimulatedSource{
		logger:    logger,
		scheduler: scheduler,
		center:    center,
		radius:    radiusMeters,
	}
	s.current = s.positionAt(0)

	return s
}

// RequestPermission always grants; the simulated sensor has nothing to ask.
func (s *SimulatedSource) RequestPermission(context.Context, entity.PermissionScope) bool {
	return true
}

func (s *SimulatedSource) Current(context.Context) (*entity.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc := s.current
	loc.Timestamp = s.scheduler.Now()

	return &loc, nil
}

// Watch steps the walker once per interval. fn runs under the source lock,
// which is what makes the returned stop synchronous: once stop holds the
// lock and flips the flag, no further callback can be mid-flight.
func (s *SimulatedSource) Watch(_ context.Context, opts service.WatchOptions, fn func(entity.Location)) (func(), error) {
	interval := opts.MinInterval
	if interval <= 0 {
		interval = defaultWatchInterval
	}

	s.mu.Lock()
	s.stopped = false
	s.armLocked(interval, opts.MinDisplacementMeters, fn)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped = true
		if s.task != nil {
			s.task.Stop()
			s.task = nil
		}
	}, nil
}

func (s *SimulatedSource) armLocked(interval time.Duration, minDisplacement float64, fn func(entity.Location)) {
	s.task = s.scheduler.AfterFunc(interval, func() {
		s.tick(interval, minDisplacement, fn)
	})
}

func (s *SimulatedSource) tick(interval time.Duration, minDisplacement float64, fn func(entity.Location)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	// Advance along the circle by the arc a pedestrian covers per interval.
	arc := walkingSpeedMS * interval.Seconds()
	if s.radius > 0 {
		s.angle += arc / s.radius
	}

	next := s.positionAt(s.angle)
	next.Timestamp = s.scheduler.Now()

	moved := geo.Distance(s.current.Point(), next.Point())
	if moved >= minDisplacement {
		s.current = next
		fn(next)
	}

	s.armLocked(interval, minDisplacement, fn)
}

// positionAt converts a circle angle into a location around the center.
func (s *SimulatedSource) positionAt(angle float64) entity.Location {
	latOffset := s.radius / geo.EarthRadiusMeters * (180 / math.Pi)
	lngOffset := latOffset / math.Cos(s.center.Latitude*math.Pi/180)

	heading := math.Mod(angle*180/math.Pi+90, 360)
	speed := walkingSpeedMS

	return entity.Location{
		Latitude:  s.center.Latitude + latOffset*math.Sin(angle),
		Longitude: s.center.Longitude + lngOffset*math.Cos(angle),
		Accuracy:  5,
		Heading:   &heading,
		Speed:     &speed,
	}
}

// StaticSource reports a single fixed position, matching a vendor stall that
// does not move during a session.
type StaticSource struct {
	scheduler sched.Scheduler
	loc       entity.Location
	granted   bool
}

// NewStaticSource creates a source pinned to loc. granted controls whether
// permission requests succeed, letting sessions model a denied sensor.
func NewStaticSource(scheduler sched.Scheduler, loc entity.Location, granted bool) *StaticSource {
	return &StaticSource{scheduler: scheduler, loc: loc, granted: granted}
}

func (s *StaticSource) RequestPermission(context.Context, entity.PermissionScope) bool {
	return s.granted
}

func (s *StaticSource) Current(context.Context) (*entity.Location, error) {
	loc := s.loc
	loc.Timestamp = s.scheduler.Now()

	return &loc, nil
}

// Watch emits the pinned position once and never again; there is no movement
// to report.
func (s *StaticSource) Watch(_ context.Context, _ service.WatchOptions, fn func(entity.Location)) (func(), error) {
	loc := s.loc
	loc.Timestamp = s.scheduler.Now()
	fn(loc)

	return func() {}, nil
}
