package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/pmv-rental/internal/backend"
	"github.com/example/pmv-rental/internal/broadcast"
	"github.com/example/pmv-rental/internal/config"
	"github.com/example/pmv-rental/internal/events"
	"github.com/example/pmv-rental/internal/geo"
	httpapi "github.com/example/pmv-rental/internal/http"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/journey"
	"github.com/example/pmv-rental/internal/logging"
	"github.com/example/pmv-rental/internal/vehicle"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		runMigrations(cfg.PGDSN, logger)
	}

	fleet := backend.NewMemory()
	if err := seedFleet(fleet, cfg.DefaultStation); err != nil {
		logger.Error("fleet seed failed", "error", err)
		os.Exit(1)
	}

	var durable journey.Backend
	if cfg.PGDSN != "" {
		pg, err := backend.NewPostgres(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable, journeys will not be persisted", "error", err)
		} else {
			durable = pg
		}
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = producer.Close() }()
	}

	srv := httpapi.NewServer(cfg, logger, fleet, durable, producer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// station announcement loops: a local ticker for the default station plus,
	// when redis is configured, the shared pub/sub channel
	st, err := ids.ParseStationID(cfg.DefaultStation)
	if err != nil {
		logger.Error("invalid default station", "error", err)
		os.Exit(1)
	}
	announcer := broadcast.NewSignal(st, cfg.BroadcastInterval)
	announcer.Logger = logger
	go announcer.Run(ctx, srv)

	if cfg.RedisAddr != "" {
		rs := broadcast.NewRedisSignal(cfg.RedisAddr, cfg.RedisPassword, cfg.BroadcastChannel, logger)
		defer func() { _ = rs.Close() }()
		go rs.Run(ctx, srv)
	}

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("pmv-rental listening", "addr", cfg.HTTPAddr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func runMigrations(dsn string, logger *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Info("migration skipped", "error", err)
		return
	}
	defer func() { _ = db.Close() }()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_schema.sql"))
	if err != nil {
		logger.Info("migration skipped", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Info("migration exec error", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_schema.sql")
}

// seedFleet registers the default station and a couple of vehicles so the API
// is usable out of the box; real deployments register the fleet over the
// backend instead.
func seedFleet(fleet *backend.Memory, stationID string) error {
	st, err := ids.ParseStationID(stationID)
	if err != nil {
		return err
	}
	loc := geo.Point{Lat: 40.4168, Lon: -3.7038}
	if err := fleet.RegisterStation(st, loc); err != nil {
		return err
	}
	for _, code := range []string{"VH-000101-alpha", "VH-000102-beta"} {
		v, err := vehicle.New(loc, 100, []byte(code))
		if err != nil {
			return err
		}
		vid, err := ids.ParseVehicleID(code)
		if err != nil {
			return err
		}
		if err := v.AssignID(vid); err != nil {
			return err
		}
		if err := fleet.RegisterVehicle(v, st); err != nil {
			return err
		}
	}
	return nil
}
