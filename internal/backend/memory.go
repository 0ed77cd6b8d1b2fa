// Package backend implements the persistence collaborator consumed by the
// journey coordinator: an in-memory reference implementation for tests and
// local runs, and a Postgres-backed one for deployments.
package backend

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/geo"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/journey"
	"github.com/example/pmv-rental/internal/money"
	"github.com/example/pmv-rental/internal/vehicle"
)

// PaymentRecord is one settled fare as the backend archives it.
type PaymentRecord struct {
	Service ids.ServiceID
	User    ids.UserID
	Amount  money.Amount
	Method  string
	At      time.Time
}

// Memory simulates the persistence server with injectable keyed maps. It
// also acts as the fleet registry for the HTTP layer. Safe for concurrent
// use. The offline switch makes every call fail with a ConnectionError so
// link-failure paths can be exercised.
type Memory struct {
	mu             sync.RWMutex
	fleet          map[ids.VehicleID]*vehicle.Vehicle
	stations       map[ids.StationID]geo.Point
	vehicleStation map[ids.VehicleID]ids.StationID
	active         map[ids.ServiceID]journey.Pairing
	archive        []journey.Completion
	payments       []PaymentRecord
	offline        bool
}

func NewMemory() *Memory {
	return &Memory{
		fleet:          make(map[ids.VehicleID]*vehicle.Vehicle),
		stations:       make(map[ids.StationID]geo.Point),
		vehicleStation: make(map[ids.VehicleID]ids.StationID),
		active:         make(map[ids.ServiceID]journey.Pairing),
	}
}

// SetOffline toggles the simulated connection failure.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

func (m *Memory) isOffline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offline
}

// RegisterStation adds a docking station to the registry.
func (m *Memory) RegisterStation(st ids.StationID, loc geo.Point) error {
	if st.IsZero() {
		return errs.Validation("station id", "station id must be set")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations[st] = loc
	return nil
}

// RegisterVehicle docks a provisioned vehicle at a station. The vehicle must
// already carry its identifier.
func (m *Memory) RegisterVehicle(v *vehicle.Vehicle, st ids.StationID) error {
	if v == nil || v.ID().IsZero() {
		return errs.Validation("vehicle", "vehicle must be provisioned with an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stations[st]; !ok {
		return errs.Validation("station id", "unknown station %s", st)
	}
	m.fleet[v.ID()] = v
	m.vehicleStation[v.ID()] = st
	return nil
}

// Vehicle looks a fleet vehicle up by id.
func (m *Memory) Vehicle(id ids.VehicleID) (*vehicle.Vehicle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.fleet[id]
	return v, ok
}

// VehicleByQR finds the fleet vehicle whose QR payload matches the scanned
// bytes. Used by the HTTP layer to attach the vehicle the rider stands at.
func (m *Memory) VehicleByQR(payload []byte) (*vehicle.Vehicle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.fleet {
		if bytes.Equal(v.QRPayload(), payload) {
			return v, true
		}
	}
	return nil, false
}

func (m *Memory) CheckAvailability(_ context.Context, vid ids.VehicleID) error {
	if m.isOffline() {
		return errs.Connection("check availability", errors.New("backend offline"))
	}
	m.mu.RLock()
	v, ok := m.fleet[vid]
	m.mu.RUnlock()
	if !ok {
		return errs.Connection("check availability", errors.New("vehicle not found in the system"))
	}
	if v.State() != vehicle.Available {
		return errs.ErrVehicleUnavailable
	}
	return nil
}

func (m *Memory) RegisterPairing(_ context.Context, p journey.Pairing) error {
	if m.isOffline() {
		return errs.Connection("register pairing", errors.New("backend offline"))
	}
	if p.Service.IsZero() || p.User.IsZero() || p.Vehicle.IsZero() || p.Station.IsZero() || p.At.IsZero() {
		return errs.Validation("pairing", "one or more arguments are missing")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fleet[p.Vehicle]; !ok {
		return errs.Validation("pairing", "unknown vehicle %s", p.Vehicle)
	}
	st, ok := m.vehicleStation[p.Vehicle]
	if !ok || st != p.Station {
		return errs.Validation("pairing", "vehicle %s is not docked at station %s", p.Vehicle, p.Station)
	}
	// Deterministic service ids mean a duplicate here is the same triple
	// trying to pair again while active: rejected.
	if _, exists := m.active[p.Service]; exists {
		return errs.ErrVehicleUnavailable
	}
	m.active[p.Service] = p
	return nil
}

func (m *Memory) CompleteJourney(_ context.Context, c journey.Completion) error {
	if m.isOffline() {
		return errs.Connection("complete journey", errors.New("backend offline"))
	}
	if c.Service.IsZero() || c.User.IsZero() || c.Vehicle.IsZero() || c.Station.IsZero() || c.At.IsZero() {
		return errs.Validation("completion", "one or more arguments are missing")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[c.Service]; !ok {
		return errs.ErrPairingNotFound
	}
	delete(m.active, c.Service)
	m.archive = append(m.archive, c)
	m.vehicleStation[c.Vehicle] = c.Station
	return nil
}

func (m *Memory) RecordPayment(_ context.Context, service ids.ServiceID, user ids.UserID, amount money.Amount, method string) error {
	if m.isOffline() {
		return errs.Connection("record payment", errors.New("backend offline"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, PaymentRecord{
		Service: service,
		User:    user,
		Amount:  amount,
		Method:  method,
		At:      time.Now(),
	})
	return nil
}

// ActivePairings returns the number of journeys currently paired.
func (m *Memory) ActivePairings() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Archive returns a copy of the completed journeys.
func (m *Memory) Archive() []journey.Completion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]journey.Completion, len(m.archive))
	copy(out, m.archive)
	return out
}

// Payments returns a copy of the recorded settlements.
func (m *Memory) Payments() []PaymentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PaymentRecord, len(m.payments))
	copy(out, m.payments)
	return out
}
