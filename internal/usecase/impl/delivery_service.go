// Package impl contains the concrete use case services of the proximity and
// delivery-economics engine.
package impl

import (
	"math"
	"time"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/usecase"
)

// Distance the fee model gives away before charging per kilometer.
const freeDistanceKm = 0.5

type deliveryService struct {
	cfg *config.DeliveryConfig
}

// NewDeliveryService creates the delivery economics engine. The config holds
// the model constants; everything else is passed per call, keeping every
// method pure.
func NewDeliveryService(cfg *config.DeliveryConfig) usecase.DeliveryUsecase {
	if cfg == nil {
		full := &config.Config{}
		full.ApplyDefaults()
		cfg = full.Delivery
	}

	return &deliveryService{cfg: cfg}
}

// IsRushHour reports whether now is inside a rush-hour window. Hours are
// inclusive: weekday 7-10 and 17-20, weekend 11-14 and 19-21.
func (s *deliveryService) IsRushHour(now time.Time) bool {
	hour := now.Hour()
	day := now.Weekday()

	if day == time.Saturday || day == time.Sunday {
		return (hour >= 11 && hour <= 14) || (hour >= 19 && hour <= 21)
	}

	return (hour >= 7 && hour <= 10) || (hour >= 17 && hour <= 20)
}

// Fee computes the delivery fee. The multiplication order matters and is
// fixed: base plus distance component, then the rush-hour factor, then the
// weather factor, rounded once at the end.
func (s *deliveryService) Fee(distanceMeters, orderValue float64, cond entity.Conditions, now time.Time) int {
	if orderValue >= s.cfg.FreeDeliveryThreshold {
		return 0
	}

	distanceKm := distanceMeters / 1000
	fee := s.cfg.BaseFee + math.Max(0, distanceKm-freeDistanceKm)*s.cfg.FeePerKm

	if s.IsRushHour(now) {
		fee *= s.cfg.RushHourMultiplier
	}

	switch cond.Weather {
	case entity.WeatherRain:
		fee *= 1.2
	case entity.WeatherStorm:
		fee *= 1.5
	}

	return int(math.Round(fee))
}

// ETA computes the delivery window. Travel time scales with traffic and rush
// hour; weather adds a flat delay to the base time. The window is
// [total-5, total+10] with the lower bound clamped to 10 minutes.
func (s *deliveryService) ETA(distanceMeters float64, cond entity.Conditions, now time.Time) (int, int) {
	distanceKm := distanceMeters / 1000
	baseTime := s.cfg.BaseTimeMinutes
	travelTime := distanceKm * s.cfg.TimePerKmMinutes

	switch cond.Traffic {
	case entity.TrafficModerate:
		travelTime *= 1.3
	case entity.TrafficHeavy:
		travelTime *= 1.8
	}

	if s.IsRushHour(now) {
		travelTime *= s.cfg.RushHourMultiplier
	}

	switch cond.Weather {
	case entity.WeatherRain:
		baseTime += s.cfg.WeatherDelayMinutes
	case entity.WeatherStorm:
		baseTime += s.cfg.WeatherDelayMinutes * 2
	}

	total := int(math.Round(baseTime + travelTime))
	minMinutes := total - 5
	if minMinutes < 10 {
		minMinutes = 10
	}

	return minMinutes, total + 10
}

// Priority tiers by distance with inclusive boundaries at 1000m and 3000m.
func (s *deliveryService) Priority(distanceMeters float64) entity.DeliveryPriority {
	switch {
	case distanceMeters <= 1000:
		return entity.PriorityHigh
	case distanceMeters <= 3000:
		return entity.PriorityMedium
	default:
		return entity.PriorityLow
	}
}

// Quote bundles the full delivery economics for one distance.
func (s *deliveryService) Quote(distanceMeters, orderValue float64, cond entity.Conditions, now time.Time) entity.DeliveryQuote {
	minMinutes, maxMinutes := s.ETA(distanceMeters, cond, now)

	return entity.DeliveryQuote{
		DistanceMeters:     distanceMeters,
		FeeCurrencyUnits:   s.Fee(distanceMeters, orderValue, cond, now),
		ETAMinMinutes:      minMinutes,
		ETAMaxMinutes:      maxMinutes,
		Priority:           s.Priority(distanceMeters),
		WithinServiceRange: distanceMeters <= s.cfg.MaxDeliveryMeters,
	}
}
