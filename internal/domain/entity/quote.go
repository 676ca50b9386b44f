// Package entity contains the core business objects of the project.
package entity

import "fmt"

// DeliveryPriority tiers a delivery by straight-line distance.
type DeliveryPriority string

const (
	// PriorityHigh applies within 1000 meters.
	PriorityHigh DeliveryPriority = "high"
	// PriorityMedium applies within 3000 meters.
	PriorityMedium DeliveryPriority = "medium"
	// PriorityLow applies beyond 3000 meters.
	PriorityLow DeliveryPriority = "low"
)

// DeliveryQuote is the derived delivery economics for one counterparty. It is
// never persisted; it is recomputed from a CounterpartyRecord plus the current
// conditions on demand.
type DeliveryQuote struct {
	DistanceMeters     float64          `json:"distance_meters"`
	FeeCurrencyUnits   int              `json:"fee_currency_units"`
	ETAMinMinutes      int              `json:"eta_min_minutes"`
	ETAMaxMinutes      int              `json:"eta_max_minutes"`
	Priority           DeliveryPriority `json:"priority"`
	WithinServiceRange bool             `json:"within_service_range"`
}

// ETARange renders the estimate the way the order screens display it,
// e.g. "15-30 minutes".
func (q DeliveryQuote) ETARange() string {
	return fmt.Sprintf("%d-%d minutes", q.ETAMinMinutes, q.ETAMaxMinutes)
}
