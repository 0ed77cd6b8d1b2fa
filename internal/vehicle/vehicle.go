// Package vehicle models the availability lifecycle of a single PMV.
package vehicle

import (
	"fmt"
	"sync"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/geo"
	"github.com/example/pmv-rental/internal/ids"
)

// State is the availability state of a PMV. The machine is cyclic: a vehicle
// always comes back to Available after a journey.
type State string

const (
	Available        State = "AVAILABLE"
	NotAvailable     State = "NOT_AVAILABLE"
	UnderWay         State = "UNDER_WAY"
	TemporaryParking State = "TEMPORARY_PARKING"
)

// TransitionError reports a transition called from a state that does not
// support it. This is a programming error: call sites must check State()
// first, so this value is returned to fail loudly, not to be handled.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid vehicle state transition: %s -> %s", e.From, e.To)
}

// allowed maps each target state to the states it may be entered from.
// MarkAvailable is the exception: the unpair path accepts any origin.
var allowed = map[State][]State{
	NotAvailable:     {Available},
	UnderWay:         {NotAvailable, TemporaryParking},
	TemporaryParking: {UnderWay},
}

// Vehicle is one PMV. The identifier is assigned once, by the QR scan; every
// other field mutates only through the defined transitions and setters.
type Vehicle struct {
	mu          sync.Mutex
	id          ids.VehicleID
	state       State
	location    geo.Point
	chargeLevel float64
	qrPayload   []byte
	sensors     []Sensor
}

// New builds an Available vehicle carrying the default sensor suite.
func New(location geo.Point, chargeLevel float64, qrPayload []byte) (*Vehicle, error) {
	if chargeLevel < 0 || chargeLevel > 100 {
		return nil, errs.Validation("charge level", "%.1f outside [0,100]", chargeLevel)
	}
	return &Vehicle{
		state:       Available,
		location:    location,
		chargeLevel: chargeLevel,
		qrPayload:   qrPayload,
		sensors:     defaultSensors(),
	}, nil
}

// AssignID binds the decoded vehicle identifier. The first assignment wins;
// a scan of the same vehicle may repeat the same id.
func (v *Vehicle) AssignID(id ids.VehicleID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.id.IsZero() && v.id != id {
		return errs.Validation("vehicle id", "already assigned %s, cannot rebind to %s", v.id, id)
	}
	v.id = id
	return nil
}

func (v *Vehicle) ID() ids.VehicleID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.id
}

func (v *Vehicle) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Vehicle) Location() geo.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.location
}

func (v *Vehicle) ChargeLevel() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.chargeLevel
}

func (v *Vehicle) QRPayload() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.qrPayload
}

func (v *Vehicle) SetLocation(p geo.Point) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.location = p
}

func (v *Vehicle) SetChargeLevel(level float64) error {
	if level < 0 || level > 100 {
		return errs.Validation("charge level", "%.1f outside [0,100]", level)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chargeLevel = level
	return nil
}

// MarkPaired moves Available -> NotAvailable when a rider pairs.
func (v *Vehicle) MarkPaired() error { return v.transition(NotAvailable) }

// MarkUnderWay moves NotAvailable or TemporaryParking -> UnderWay.
func (v *Vehicle) MarkUnderWay() error { return v.transition(UnderWay) }

// MarkParked moves UnderWay -> TemporaryParking.
func (v *Vehicle) MarkParked() error { return v.transition(TemporaryParking) }

// MarkAvailable returns the vehicle to Available from any state. Used on
// unpair, which must always succeed in releasing the vehicle.
func (v *Vehicle) MarkAvailable() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = Available
}

func (v *Vehicle) transition(to State) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, from := range allowed[to] {
		if v.state == from {
			v.state = to
			return nil
		}
	}
	return &TransitionError{From: v.state, To: to}
}
