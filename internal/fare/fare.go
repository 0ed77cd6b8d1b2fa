// Package fare computes the cost of a completed journey. The calculator is a
// pure function of the journey metrics and completion time.
package fare

import (
	"time"

	"github.com/example/pmv-rental/internal/money"
)

// Default tariff. Rates are public on purpose: riders can audit their fare.
const (
	DefaultRatePerKm             = 1.50 // euros per kilometer
	DefaultRatePerMinute         = 0.50 // euros per minute
	DefaultSpeedPenaltyThreshold = 25.0 // km/h, strict
	DefaultSpeedPenaltyBps       = 2000 // +20% of base
	DefaultWeekendSurchargeBps   = 1500 // +15% of base
)

// Calculator applies the tariff. The zero value is unusable; use Default or
// build one from config.
type Calculator struct {
	RatePerKm             float64
	RatePerMinute         float64
	SpeedPenaltyThreshold float64
	SpeedPenaltyBps       int64
	WeekendSurchargeBps   int64
}

// Default returns the documented tariff.
func Default() Calculator {
	return Calculator{
		RatePerKm:             DefaultRatePerKm,
		RatePerMinute:         DefaultRatePerMinute,
		SpeedPenaltyThreshold: DefaultSpeedPenaltyThreshold,
		SpeedPenaltyBps:       DefaultSpeedPenaltyBps,
		WeekendSurchargeBps:   DefaultWeekendSurchargeBps,
	}
}

// Cost computes the fare for a journey. Duration is in minutes; average
// speed in km/h. The base is quantized to cents half-up once, and the
// percentage components are derived from it in integer arithmetic.
func (c Calculator) Cost(distanceKm, durationMinutes, avgSpeedKmh float64, completedAt time.Time) money.Amount {
	base := money.FromFloat(c.RatePerKm*distanceKm + c.RatePerMinute*durationMinutes)

	total := base
	if avgSpeedKmh > c.SpeedPenaltyThreshold {
		total = total.Add(base.MulBasisPoints(c.SpeedPenaltyBps))
	}
	if isWeekend(completedAt) {
		total = total.Add(base.MulBasisPoints(c.WeekendSurchargeBps))
	}
	return total
}

// AverageSpeedKmh derives the mean speed from distance and duration,
// returning 0 for a zero-length duration.
func AverageSpeedKmh(distanceKm, durationMinutes float64) float64 {
	if durationMinutes <= 0 {
		return 0
	}
	return distanceKm / durationMinutes * 60
}

// Minutes converts a duration to fractional minutes for the tariff.
func Minutes(d time.Duration) float64 {
	return d.Minutes()
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
