// Package entity contains the core business objects of the project.
package entity

// Weather describes current weather conditions used for fee and ETA surcharges.
type Weather string

const (
	// WeatherNormal applies no surcharge.
	WeatherNormal Weather = "normal"
	// WeatherRain applies a 1.2x fee factor and an additive ETA delay.
	WeatherRain Weather = "rain"
	// WeatherStorm applies a 1.5x fee factor and a doubled ETA delay.
	WeatherStorm Weather = "storm"
)

// IsValid checks if the Weather is a valid value.
func (w Weather) IsValid() bool {
	switch w {
	case WeatherNormal, WeatherRain, WeatherStorm:
		return true
	default:
		return false
	}
}

// Traffic describes current traffic conditions used for ETA scaling.
type Traffic string

const (
	// TrafficLight applies no travel-time scaling.
	TrafficLight Traffic = "light"
	// TrafficModerate scales travel time by 1.3x.
	TrafficModerate Traffic = "moderate"
	// TrafficHeavy scales travel time by 1.8x.
	TrafficHeavy Traffic = "heavy"
)

// IsValid checks if the Traffic is a valid value.
func (t Traffic) IsValid() bool {
	switch t {
	case TrafficLight, TrafficModerate, TrafficHeavy:
		return true
	default:
		return false
	}
}

// Conditions is the externally-set environment state fed to the delivery
// economics engine. It is the engine's only non-argument input.
type Conditions struct {
	Weather Weather `json:"weather"`
	Traffic Traffic `json:"traffic"`
}

// DefaultConditions returns the neutral condition set.
func DefaultConditions() Conditions {
	return Conditions{Weather: WeatherNormal, Traffic: TrafficLight}
}
