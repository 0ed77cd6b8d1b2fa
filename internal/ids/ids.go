// Package ids holds the validated identifier value types shared across the
// rental domain. Construction is the only place format errors can happen;
// once built, an identifier is immutable and equality is plain ==.
package ids

import (
	"fmt"
	"regexp"

	"github.com/example/pmv-rental/internal/errs"
)

var (
	vehiclePattern = regexp.MustCompile(`^VH-\d{6}-[a-zA-Z]{1,10}$`)
	stationPattern = regexp.MustCompile(`^ST-\d{5}-[a-zA-Z]{1,10}$`)
	userPattern    = regexp.MustCompile(`^UA-[a-zA-Z]{1,10}-\d{1,5}$`)
	servicePattern = regexp.MustCompile(`^UA-[a-zA-Z]{1,10}-\d{1,5}_VH-\d{6}-[a-zA-Z]{1,10}_ST-\d{5}-[a-zA-Z]{1,10}$`)
)

// VehicleID identifies a single PMV. Format: VH-123456-name.
type VehicleID struct{ id string }

func ParseVehicleID(s string) (VehicleID, error) {
	if !vehiclePattern.MatchString(s) {
		return VehicleID{}, errs.Validation("vehicle id", "%q does not match VH-######-name", s)
	}
	return VehicleID{id: s}, nil
}

func (v VehicleID) String() string { return v.id }
func (v VehicleID) IsZero() bool   { return v.id == "" }

// StationID identifies a docking station. Format: ST-12345-name.
type StationID struct{ id string }

func ParseStationID(s string) (StationID, error) {
	if !stationPattern.MatchString(s) {
		return StationID{}, errs.Validation("station id", "%q does not match ST-#####-name", s)
	}
	return StationID{id: s}, nil
}

func (s StationID) String() string { return s.id }
func (s StationID) IsZero() bool   { return s.id == "" }

// UserID identifies a rider account. Format: UA-name-12345.
type UserID struct{ id string }

func ParseUserID(s string) (UserID, error) {
	if !userPattern.MatchString(s) {
		return UserID{}, errs.Validation("user id", "%q does not match UA-name-#####", s)
	}
	return UserID{id: s}, nil
}

func (u UserID) String() string { return u.id }
func (u UserID) IsZero() bool   { return u.id == "" }

// ServiceID names one rental service. It is derived deterministically from
// the (user, vehicle, station) triple, so the same triple always maps to the
// same service and at most one journey can be active for it.
type ServiceID struct{ id string }

func NewServiceID(user UserID, vehicle VehicleID, station StationID) (ServiceID, error) {
	if user.IsZero() || vehicle.IsZero() || station.IsZero() {
		return ServiceID{}, errs.Validation("service id", "user, vehicle and station must all be set")
	}
	return ServiceID{id: fmt.Sprintf("%s_%s_%s", user, vehicle, station)}, nil
}

// ParseServiceID accepts a previously derived service identifier.
func ParseServiceID(s string) (ServiceID, error) {
	if !servicePattern.MatchString(s) {
		return ServiceID{}, errs.Validation("service id", "%q does not match user_vehicle_station", s)
	}
	return ServiceID{id: s}, nil
}

func (s ServiceID) String() string { return s.id }
func (s ServiceID) IsZero() bool   { return s.id == "" }
