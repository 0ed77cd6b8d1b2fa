// Package journey contains the rental session core: the journey record and
// the lifecycle coordinator that sequences pairing, driving, fare calculation
// and payment.
package journey

import (
	"time"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/geo"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/money"
)

// Record captures the temporal, spatial and financial facts of one rental.
// It is created when pairing succeeds (in progress from that moment, keeping
// it consistent with the vehicle being NOT_AVAILABLE) and its metrics are
// written exactly once, when unpairing completes.
type Record struct {
	serviceID ids.ServiceID
	origin    geo.Point

	startedAt time.Time
	started   bool

	destination geo.Point
	endedAt     time.Time
	duration    time.Duration
	distanceKm  float64
	avgSpeedKmh float64
	cost        money.Amount

	inProgress bool
	closed     bool
	paid       bool
}

// NewRecord opens the journey for a freshly paired vehicle.
func NewRecord(serviceID ids.ServiceID, origin geo.Point) *Record {
	return &Record{serviceID: serviceID, origin: origin, inProgress: true}
}

// Begin marks the start of the drive. Resuming from temporary parking must
// not call Begin again; the original start stands.
func (r *Record) Begin(origin geo.Point, at time.Time) error {
	if !r.inProgress {
		return errs.Procedural("journey %s is not in progress", r.serviceID)
	}
	if r.started {
		return errs.Procedural("journey %s already started", r.serviceID)
	}
	r.origin = origin
	r.startedAt = at
	r.started = true
	return nil
}

// Close finalizes the journey metrics. Negative distance or duration is a
// sign of clock or input trouble and is rejected before anything is written.
func (r *Record) Close(destination geo.Point, at time.Time, distanceKm float64, duration time.Duration, avgSpeedKmh float64, cost money.Amount) error {
	if !r.inProgress {
		return errs.Procedural("journey %s is not in progress", r.serviceID)
	}
	if distanceKm < 0 {
		return errs.Validation("distance", "%.3f km is negative", distanceKm)
	}
	if duration < 0 {
		return errs.Validation("duration", "%s is negative", duration)
	}
	r.destination = destination
	r.endedAt = at
	r.distanceKm = distanceKm
	r.duration = duration
	r.avgSpeedKmh = avgSpeedKmh
	r.cost = cost
	r.inProgress = false
	r.closed = true
	return nil
}

// MarkPaid records a successful settlement. A journey is paid at most once.
func (r *Record) MarkPaid() error {
	if !r.closed {
		return errs.Procedural("journey %s is not finished", r.serviceID)
	}
	if r.paid {
		return errs.Procedural("journey %s is already paid", r.serviceID)
	}
	r.paid = true
	return nil
}

func (r *Record) ServiceID() ids.ServiceID { return r.serviceID }
func (r *Record) Origin() geo.Point        { return r.origin }
func (r *Record) Destination() geo.Point   { return r.destination }
func (r *Record) StartedAt() time.Time     { return r.startedAt }
func (r *Record) EndedAt() time.Time       { return r.endedAt }
func (r *Record) Duration() time.Duration  { return r.duration }
func (r *Record) DistanceKm() float64      { return r.distanceKm }
func (r *Record) AvgSpeedKmh() float64     { return r.avgSpeedKmh }
func (r *Record) Cost() money.Amount       { return r.cost }
func (r *Record) InProgress() bool         { return r.inProgress }
func (r *Record) Started() bool            { return r.started }
func (r *Record) Closed() bool             { return r.closed }
func (r *Record) Paid() bool               { return r.paid }

// Snapshot is the wire-friendly view of a record.
type Snapshot struct {
	ServiceID       string     `json:"service_id"`
	InProgress      bool       `json:"in_progress"`
	Started         bool       `json:"started"`
	Origin          geo.Point  `json:"origin"`
	Destination     *geo.Point `json:"destination,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes float64    `json:"duration_minutes"`
	DistanceKm      float64    `json:"distance_km"`
	AvgSpeedKmh     float64    `json:"avg_speed_kmh"`
	Cost            string     `json:"cost"`
	Paid            bool       `json:"paid"`
}

func (r *Record) Snapshot() Snapshot {
	s := Snapshot{
		ServiceID:       r.serviceID.String(),
		InProgress:      r.inProgress,
		Started:         r.started,
		Origin:          r.origin,
		DurationMinutes: r.duration.Minutes(),
		DistanceKm:      r.distanceKm,
		AvgSpeedKmh:     r.avgSpeedKmh,
		Cost:            r.cost.String(),
		Paid:            r.paid,
	}
	if r.started {
		t := r.startedAt
		s.StartedAt = &t
	}
	if r.closed {
		d := r.destination
		s.Destination = &d
		t := r.endedAt
		s.EndedAt = &t
	}
	return s
}
