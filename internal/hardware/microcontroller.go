package hardware

import (
	"context"
	"errors"
	"sync"

	"github.com/example/pmv-rental/internal/errs"
)

// Microcontroller simulates the Bluetooth link to the vehicle's on-board
// controller. It tracks link and usage state the way the physical device
// would, and lets tests inject a technical failure.
type Microcontroller struct {
	mu           sync.Mutex
	btConnected  bool
	inUse        bool
	technicalErr bool
}

func NewMicrocontroller() *Microcontroller { return &Microcontroller{} }

// SetTechnicalFailure injects or clears a simulated physical fault.
func (m *Microcontroller) SetTechnicalFailure(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.technicalErr = failing
}

func (m *Microcontroller) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.btConnected
}

// Connect establishes the Bluetooth link. Connecting twice is a link error,
// as on the real device.
func (m *Microcontroller) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Connection("bluetooth connect", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.btConnected {
		return errs.Connection("bluetooth connect", errors.New("connection already established"))
	}
	m.btConnected = true
	return nil
}

// StartDriving spins up the motor.
func (m *Microcontroller) StartDriving(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Connection("drive start", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.btConnected {
		return errs.Connection("drive start", errors.New("bluetooth connection is not established"))
	}
	if m.technicalErr {
		return &errs.HardwareError{Component: "motor", Cause: errors.New("motor does not respond")}
	}
	if m.inUse {
		return errs.Procedural("vehicle is already in use")
	}
	m.inUse = true
	return nil
}

// StopDriving brings the vehicle to a halt.
func (m *Microcontroller) StopDriving(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Connection("drive stop", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.btConnected {
		return errs.Connection("drive stop", errors.New("bluetooth connection is not established"))
	}
	if m.technicalErr {
		return &errs.HardwareError{Component: "brakes", Cause: errors.New("brakes do not respond")}
	}
	if !m.inUse {
		return errs.Procedural("vehicle is not being driven")
	}
	m.inUse = false
	return nil
}

// Disconnect drops the link and resets the device state.
func (m *Microcontroller) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.btConnected = false
	m.inUse = false
	m.technicalErr = false
}
