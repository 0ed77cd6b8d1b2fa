package journey

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/fare"
	"github.com/example/pmv-rental/internal/geo"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/observability"
	"github.com/example/pmv-rental/internal/payment"
	"github.com/example/pmv-rental/internal/vehicle"
)

// Coordinator drives one rental session end to end: scan, pair, drive,
// unpair, pay. It owns the mutable vehicle and journey state for the session
// and is not safe for concurrent use, with one deliberate exception:
// ReceiveStationBroadcast may be called from the broadcast loop at any time.
type Coordinator struct {
	User     ids.UserID
	Wallet   *payment.Wallet
	Decoder  QRDecoder
	Hardware Hardware
	Backend  Backend
	Fare     fare.Calculator
	Gateway  *payment.StripeClient
	Logger   *slog.Logger
	Now      func() time.Time // test hook; defaults to time.Now

	stationMu sync.Mutex
	station   ids.StationID

	veh      *vehicle.Vehicle
	record   *Record
	location geo.Point
}

// AttachVehicle binds the candidate vehicle the rider is standing next to.
// Rejected while a journey is active.
func (c *Coordinator) AttachVehicle(v *vehicle.Vehicle) error {
	if c.record != nil && c.record.InProgress() {
		return errs.Procedural("cannot switch vehicle while a journey is active")
	}
	c.veh = v
	return nil
}

// Vehicle returns the candidate vehicle, nil before AttachVehicle.
func (c *Coordinator) Vehicle() *vehicle.Vehicle { return c.veh }

// Journey returns the current record, nil before the first successful scan.
func (c *Coordinator) Journey() *Record { return c.record }

// Location returns the last known rider position.
func (c *Coordinator) Location() geo.Point { return c.location }

// SetLocation updates the rider position; while under way the vehicle moves
// with the rider.
func (c *Coordinator) SetLocation(p geo.Point) {
	c.location = p
	if c.veh != nil && c.veh.State() == vehicle.UnderWay {
		c.veh.SetLocation(p)
	}
}

// Station returns the most recently broadcast station, zero if none yet.
func (c *Coordinator) Station() ids.StationID {
	c.stationMu.Lock()
	defer c.stationMu.Unlock()
	return c.station
}

// ReceiveStationBroadcast stores the latest station announcement. Delivery
// is best effort: latest value wins, with no ordering guarantee against a
// concurrent scan.
func (c *Coordinator) ReceiveStationBroadcast(st ids.StationID) error {
	if st.IsZero() {
		return errs.Connection("station broadcast", errors.New("empty station id received"))
	}
	c.stationMu.Lock()
	c.station = st
	c.stationMu.Unlock()
	observability.BroadcastsReceived.Inc()
	return nil
}

// ScanQR decodes the vehicle QR, verifies availability with the backend,
// establishes the hardware link and, provided a station broadcast has been
// received, registers the pairing and takes the vehicle off the street.
// No state is mutated unless every collaborator call succeeds.
func (c *Coordinator) ScanQR(ctx context.Context) error {
	if c.veh == nil {
		return errs.Procedural("no vehicle attached to this session")
	}
	// Re-pairing the same (user, vehicle, station) triple while a journey
	// is active is rejected, not treated as idempotent.
	if c.record != nil && c.record.InProgress() {
		return errs.ErrVehicleUnavailable
	}

	vid, err := c.Decoder.DecodeVehicleID(c.veh.QRPayload())
	if err != nil {
		return err
	}
	if err := c.veh.AssignID(vid); err != nil {
		return err
	}
	if err := c.Backend.CheckAvailability(ctx, vid); err != nil {
		return err
	}
	if err := c.Hardware.Connect(ctx); err != nil {
		return err
	}

	st := c.Station()
	if st.IsZero() {
		return errs.Procedural("no station broadcast received before scan")
	}

	sid, err := ids.NewServiceID(c.User, vid, st)
	if err != nil {
		return err
	}
	now := c.now()
	if err := c.Backend.RegisterPairing(ctx, Pairing{
		Service:  sid,
		User:     c.User,
		Vehicle:  vid,
		Station:  st,
		Location: c.location,
		At:       now,
	}); err != nil {
		return err
	}
	if err := c.veh.MarkPaired(); err != nil {
		return err
	}
	c.record = NewRecord(sid, c.location)
	observability.JourneysStarted.Inc()
	c.log().Info("vehicle paired", "service", sid.String(), "vehicle", vid.String(), "station", st.String())
	return nil
}

// StartDriving puts the vehicle under way. A hardware fault is wrapped into
// a ProceduralError so drive operations surface one error family; link
// failures pass through as ConnectionError.
func (c *Coordinator) StartDriving(ctx context.Context) error {
	if c.veh == nil || c.record == nil {
		return errs.Procedural("no paired vehicle to drive")
	}
	switch c.veh.State() {
	case vehicle.UnderWay:
		return errs.Procedural("vehicle is already being driven")
	case vehicle.NotAvailable, vehicle.TemporaryParking:
		// paired or parked: ok to start
	default:
		return errs.Procedural("vehicle is not paired with this session")
	}

	if err := c.Hardware.StartDriving(ctx); err != nil {
		return wrapHardware(err, "drive start")
	}
	if err := c.veh.MarkUnderWay(); err != nil {
		return err
	}
	if !c.record.Started() {
		if err := c.record.Begin(c.veh.Location(), c.now()); err != nil {
			return err
		}
	}
	c.log().Info("drive started", "service", c.record.ServiceID().String())
	return nil
}

// StopDriving halts the drive. The vehicle stays under way until it is
// parked or unpaired.
func (c *Coordinator) StopDriving(ctx context.Context) error {
	if c.veh == nil || c.record == nil || c.veh.State() != vehicle.UnderWay {
		return errs.Procedural("vehicle is not being driven")
	}
	if err := c.Hardware.StopDriving(ctx); err != nil {
		return wrapHardware(err, "drive stop")
	}
	c.log().Info("drive stopped", "service", c.record.ServiceID().String())
	return nil
}

// ParkVehicle moves an under-way vehicle into temporary parking. Resume with
// StartDriving; the journey clock keeps running.
func (c *Coordinator) ParkVehicle() error {
	if c.veh == nil || c.veh.State() != vehicle.UnderWay {
		return errs.Procedural("vehicle is not under way")
	}
	return c.veh.MarkParked()
}

// Unpair ends the journey: computes the metrics and the fare, reports the
// completion to the backend, and only then releases the vehicle and closes
// the record. A journey that was paired but never driven unpairs as a
// zero-duration cancellation.
func (c *Coordinator) Unpair(ctx context.Context) error {
	if c.veh == nil || c.veh.State() == vehicle.Available {
		return errs.ErrPairingNotFound
	}
	if c.record == nil || !c.record.InProgress() {
		return errs.ErrPairingNotFound
	}
	st := c.Station()
	if st.IsZero() {
		return errs.Procedural("no station broadcast received before unpair")
	}

	now := c.now()
	dest := c.location
	var duration time.Duration
	if c.record.Started() {
		duration = now.Sub(c.record.StartedAt())
	}
	if duration < 0 {
		return errs.Validation("duration", "%s is negative", duration)
	}
	distanceKm := c.record.Origin().DistanceTo(dest)
	minutes := fare.Minutes(duration)
	avgSpeed := fare.AverageSpeedKmh(distanceKm, minutes)
	cost := c.Fare.Cost(distanceKm, minutes, avgSpeed, now)

	if err := c.Backend.CompleteJourney(ctx, Completion{
		Service:     c.record.ServiceID(),
		User:        c.User,
		Vehicle:     c.veh.ID(),
		Station:     st,
		Location:    dest,
		At:          now,
		AvgSpeedKmh: avgSpeed,
		DistanceKm:  distanceKm,
		Duration:    duration,
		Cost:        cost,
	}); err != nil {
		return err
	}

	if err := c.record.Close(dest, now, distanceKm, duration, avgSpeed, cost); err != nil {
		return err
	}
	c.veh.SetLocation(dest)
	c.veh.MarkAvailable()
	c.Hardware.Disconnect()

	observability.JourneysCompleted.Inc()
	observability.FareEuros.Observe(cost.Float())
	c.log().Info("journey completed",
		"service", c.record.ServiceID().String(),
		"distance_km", distanceKm,
		"duration_min", minutes,
		"avg_speed_kmh", avgSpeed,
		"cost", cost.String())
	return nil
}

// SelectPaymentMethod settles the finished journey's cost. Insufficient
// wallet funds surface as ErrNotEnoughFunds with neither the wallet nor the
// journey mutated.
func (c *Coordinator) SelectPaymentMethod(ctx context.Context, kind payment.Kind) error {
	if c.record == nil || !c.record.Closed() {
		return errs.Procedural("no finished journey to pay for")
	}
	if c.record.Paid() {
		return errs.Procedural("journey %s is already paid", c.record.ServiceID())
	}

	method, err := payment.ForKind(kind, c.Wallet, c.Gateway)
	if err != nil {
		return errs.Procedural("pay method not valid: %v", err)
	}

	cost := c.record.Cost()
	if err := method.ProcessPayment(cost); err != nil {
		observability.Payments.WithLabelValues(string(kind), "failed").Inc()
		return err
	}
	if err := c.Backend.RecordPayment(ctx, c.record.ServiceID(), c.User, cost, string(kind)); err != nil {
		// The deduction already happened; surface the recording failure
		// rather than guessing at a refund.
		c.log().Error("payment made but not recorded", "service", c.record.ServiceID().String(), "error", err)
		return err
	}
	if err := c.record.MarkPaid(); err != nil {
		return err
	}
	observability.Payments.WithLabelValues(string(kind), "ok").Inc()
	c.log().Info("payment settled", "service", c.record.ServiceID().String(), "method", string(kind), "amount", cost.String())
	return nil
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// wrapHardware folds a physical fault into the procedural error family the
// caller sees for drive operations; other failures pass through untouched.
func wrapHardware(err error, op string) error {
	var hw *errs.HardwareError
	if errors.As(err, &hw) {
		return &errs.ProceduralError{Reason: "vehicle hardware fault on " + op, Cause: err}
	}
	return err
}
