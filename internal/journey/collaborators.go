package journey

import (
	"context"
	"time"

	"github.com/example/pmv-rental/internal/geo"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/money"
)

// QRDecoder extracts a vehicle identifier from an opaque QR payload.
// Fails with errs.ErrCorruptedImage when the payload cannot be decoded.
type QRDecoder interface {
	DecodeVehicleID(payload []byte) (ids.VehicleID, error)
}

// Hardware is the vehicle microcontroller link. Drive operations may fail
// with *errs.HardwareError (physical fault), *errs.ConnectionError (link
// down) or *errs.ProceduralError (called out of sequence on the device).
type Hardware interface {
	Connect(ctx context.Context) error
	StartDriving(ctx context.Context) error
	StopDriving(ctx context.Context) error
	Disconnect()
}

// Pairing carries everything the backend records when a rider pairs.
type Pairing struct {
	Service  ids.ServiceID
	User     ids.UserID
	Vehicle  ids.VehicleID
	Station  ids.StationID
	Location geo.Point
	At       time.Time
}

// Completion carries the final journey metrics reported on unpair.
type Completion struct {
	Service     ids.ServiceID
	User        ids.UserID
	Vehicle     ids.VehicleID
	Station     ids.StationID
	Location    geo.Point
	At          time.Time
	AvgSpeedKmh float64
	DistanceKm  float64
	Duration    time.Duration
	Cost        money.Amount
}

// Backend is the persistence collaborator. Implementations own the fleet and
// the journey archive; the coordinator only calls through this surface.
type Backend interface {
	CheckAvailability(ctx context.Context, v ids.VehicleID) error
	RegisterPairing(ctx context.Context, p Pairing) error
	CompleteJourney(ctx context.Context, c Completion) error
	RecordPayment(ctx context.Context, service ids.ServiceID, user ids.UserID, amount money.Amount, method string) error
}
