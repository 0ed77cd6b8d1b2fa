package backend

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/journey"
	"github.com/example/pmv-rental/internal/money"
)

// Postgres persists fleet state, pairings, journeys and payments.
// Schema lives in migrations/001_create_schema.sql.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) CheckAvailability(ctx context.Context, vid ids.VehicleID) error {
	var state string
	err := p.db.QueryRowContext(ctx, `SELECT state FROM vehicles WHERE id=$1`, vid.String()).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Connection("check availability", errors.New("vehicle not found in the system"))
	}
	if err != nil {
		return errs.Connection("check availability", err)
	}
	if state != "AVAILABLE" {
		return errs.ErrVehicleUnavailable
	}
	return nil
}

func (p *Postgres) RegisterPairing(ctx context.Context, pr journey.Pairing) error {
	if pr.Service.IsZero() || pr.User.IsZero() || pr.Vehicle.IsZero() || pr.Station.IsZero() || pr.At.IsZero() {
		return errs.Validation("pairing", "one or more arguments are missing")
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Connection("register pairing", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE vehicles SET state='NOT_AVAILABLE' WHERE id=$1 AND state='AVAILABLE'`,
		pr.Vehicle.String())
	if err != nil {
		return errs.Connection("register pairing", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrVehicleUnavailable
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO pairings(service_id, user_id, vehicle_id, station_id, lat, lon, paired_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7)`,
		pr.Service.String(), pr.User.String(), pr.Vehicle.String(), pr.Station.String(),
		pr.Location.Lat, pr.Location.Lon, pr.At)
	if err != nil {
		return errs.Connection("register pairing", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Connection("register pairing", err)
	}
	return nil
}

func (p *Postgres) CompleteJourney(ctx context.Context, c journey.Completion) error {
	if c.Service.IsZero() || c.User.IsZero() || c.Vehicle.IsZero() || c.Station.IsZero() || c.At.IsZero() {
		return errs.Validation("completion", "one or more arguments are missing")
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Connection("complete journey", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM pairings WHERE service_id=$1`, c.Service.String())
	if err != nil {
		return errs.Connection("complete journey", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrPairingNotFound
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO journeys(service_id, user_id, vehicle_id, station_id, dest_lat, dest_lon,
		                      completed_at, avg_speed_kmh, distance_km, duration_seconds, cost_cents)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		c.Service.String(), c.User.String(), c.Vehicle.String(), c.Station.String(),
		c.Location.Lat, c.Location.Lon, c.At, c.AvgSpeedKmh, c.DistanceKm,
		int64(c.Duration.Seconds()), c.Cost.Cents())
	if err != nil {
		return errs.Connection("complete journey", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE vehicles SET state='AVAILABLE', station_id=$1, lat=$2, lon=$3 WHERE id=$4`,
		c.Station.String(), c.Location.Lat, c.Location.Lon, c.Vehicle.String())
	if err != nil {
		return errs.Connection("complete journey", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Connection("complete journey", err)
	}
	return nil
}

func (p *Postgres) RecordPayment(ctx context.Context, service ids.ServiceID, user ids.UserID, amount money.Amount, method string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO payments(service_id, user_id, amount_cents, method, paid_at)
		 VALUES($1,$2,$3,$4,NOW())`,
		service.String(), user.String(), amount.Cents(), method)
	if err != nil {
		return errs.Connection("record payment", err)
	}
	return nil
}
