package usecase

import (
	"time"

	"mandi/internal/domain/entity"
)

// DeliveryUsecase converts distance plus externally-set conditions into a
// delivery fee, ETA range and priority tier. Every method is pure and
// side-effect free: the wall clock is always an explicit argument so the
// functions are order-independent and trivially testable.
//
// All distances are meters.
type DeliveryUsecase interface {
	// IsRushHour reports whether now falls inside a rush-hour window:
	// weekdays 07:00-10:59 and 17:00-20:59, weekends 11:00-14:59 and
	// 19:00-21:59.
	IsRushHour(now time.Time) bool

	// Fee returns the delivery fee in whole currency units. Orders at or
	// above the free-delivery threshold cost nothing regardless of distance.
	Fee(distanceMeters, orderValue float64, cond entity.Conditions, now time.Time) int

	// ETA returns the estimated delivery window in minutes; the lower bound
	// is never below 10 and the upper bound is always lower+10 or more.
	ETA(distanceMeters float64, cond entity.Conditions, now time.Time) (minMinutes, maxMinutes int)

	// Priority tiers a delivery by distance: high within 1000m, medium
	// within 3000m, low beyond. Boundaries are inclusive.
	Priority(distanceMeters float64) entity.DeliveryPriority

	// Quote bundles fee, ETA, priority and service-range check for one
	// counterparty distance.
	Quote(distanceMeters, orderValue float64, cond entity.Conditions, now time.Time) entity.DeliveryQuote
}
