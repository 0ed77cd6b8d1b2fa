package errs

import (
	"errors"
	"fmt"
)

// Business-rule outcomes surfaced to the caller as plain sentinel values.
var (
	ErrVehicleUnavailable = errors.New("vehicle is already paired with another user")
	ErrPairingNotFound    = errors.New("no active pairing for this vehicle")
	ErrNotEnoughFunds     = errors.New("insufficient wallet balance")
	ErrCorruptedImage     = errors.New("QR payload could not be decoded")
)

// ValidationError rejects malformed input at construction time, before it can
// enter the state machine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation is shorthand for building a *ValidationError.
func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ProceduralError marks an operation invoked out of the expected sequence.
// Recoverable: the caller sees it, no state was mutated on the failing path.
type ProceduralError struct {
	Reason string
	Cause  error
}

func (e *ProceduralError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("procedural error: %s: %v", e.Reason, e.Cause)
	}
	return "procedural error: " + e.Reason
}

func (e *ProceduralError) Unwrap() error { return e.Cause }

// Procedural builds a *ProceduralError with no underlying cause.
func Procedural(format string, args ...any) *ProceduralError {
	return &ProceduralError{Reason: fmt.Sprintf(format, args...)}
}

// ConnectionError signals an unreachable backend or hardware link. Retry
// policy belongs to the collaborator; the coordinator never retries.
type ConnectionError struct {
	Op    string
	Cause error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection error during %s: %v", e.Op, e.Cause)
	}
	return "connection error during " + e.Op
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// Connection builds a *ConnectionError.
func Connection(op string, cause error) *ConnectionError {
	return &ConnectionError{Op: op, Cause: cause}
}

// HardwareError reports a physical fault on the vehicle. The coordinator
// wraps it into a ProceduralError so drive operations surface one error
// family.
type HardwareError struct {
	Component string
	Cause     error
}

func (e *HardwareError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("hardware fault in %s: %v", e.Component, e.Cause)
	}
	return "hardware fault in " + e.Component
}

func (e *HardwareError) Unwrap() error { return e.Cause }
