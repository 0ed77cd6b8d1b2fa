// Package httpapi exposes the rental session lifecycle over HTTP. Each rider
// gets one session holding a wallet and a journey coordinator; the package
// maps the coordinator's error families onto status codes and pushes session
// snapshots over websockets.
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/gorilla/mux"

	"github.com/example/pmv-rental/internal/backend"
	"github.com/example/pmv-rental/internal/config"
	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/events"
	"github.com/example/pmv-rental/internal/fare"
	"github.com/example/pmv-rental/internal/hardware"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/journey"
	"github.com/example/pmv-rental/internal/logging"
	"github.com/example/pmv-rental/internal/money"
	"github.com/example/pmv-rental/internal/payment"
)

// Session binds a rider to their wallet, microcontroller link and journey
// coordinator for the lifetime of a rental.
type Session struct {
	User    ids.UserID
	Wallet  *payment.Wallet
	Coord   *journey.Coordinator
	capture *captureBackend
}

// captureBackend remembers the last completion reported through it so the
// unpair handler can publish the journey event without re-deriving metrics.
// When a durable store is configured, completions and payments are mirrored
// to it best effort; the in-memory fleet stays the source of truth for
// availability.
type captureBackend struct {
	journey.Backend

	durable journey.Backend
	logger  *slog.Logger

	mu   sync.Mutex
	last *journey.Completion
}

func (b *captureBackend) CompleteJourney(ctx context.Context, c journey.Completion) error {
	if err := b.Backend.CompleteJourney(ctx, c); err != nil {
		return err
	}
	if b.durable != nil {
		if err := b.durable.CompleteJourney(ctx, c); err != nil {
			b.logger.Warn("journey not persisted", "service", c.Service.String(), "error", err)
		}
	}
	b.mu.Lock()
	b.last = &c
	b.mu.Unlock()
	return nil
}

func (b *captureBackend) RecordPayment(ctx context.Context, service ids.ServiceID, user ids.UserID, amount money.Amount, method string) error {
	if err := b.Backend.RecordPayment(ctx, service, user, amount, method); err != nil {
		return err
	}
	if b.durable != nil {
		if err := b.durable.RecordPayment(ctx, service, user, amount, method); err != nil {
			b.logger.Warn("payment not persisted", "service", service.String(), "error", err)
		}
	}
	return nil
}

func (b *captureBackend) LastCompletion() (journey.Completion, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return journey.Completion{}, false
	}
	return *b.last, true
}

type Server struct {
	Fleet   *backend.Memory
	Durable journey.Backend
	Kafka   *events.Producer
	WSReg   *WSRegistry

	logger  *slog.Logger
	cfg     config.ServerConfig
	tariff  fare.Calculator
	gateway *payment.StripeClient

	sessMu   sync.RWMutex
	sessions map[string]*Session

	mux *mux.Router
}

// NewServer wires the API around a shared fleet backend. durable and kafka
// may be nil when postgres or brokers are not configured; persistence and
// journey events are then skipped.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, fleet *backend.Memory, durable journey.Backend, kafka *events.Producer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Fleet:    fleet,
		Durable:  durable,
		Kafka:    kafka,
		WSReg:    NewWSRegistry(logger),
		logger:   logger,
		cfg:      cfg,
		tariff:   tariffFromConfig(cfg),
		gateway:  payment.NewStripeClient(),
		sessions: make(map[string]*Session),
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func tariffFromConfig(cfg config.ServerConfig) fare.Calculator {
	t := fare.Default()
	if cfg.RatePerKm > 0 {
		t.RatePerKm = cfg.RatePerKm
	}
	if cfg.RatePerMinute > 0 {
		t.RatePerMinute = cfg.RatePerMinute
	}
	return t
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/sessions", s.handleCreateSession).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{user_id}/scan", s.handleScan).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{user_id}/start", s.handleStart).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{user_id}/stop", s.handleStop).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{user_id}/park", s.handlePark).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{user_id}/unpair", s.handleUnpair).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{user_id}/pay", s.handlePay).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{user_id}/location", s.handleLocation).Methods("PUT")
	s.mux.HandleFunc("/api/v1/sessions/{user_id}/journey", s.handleJourney).Methods("GET")
	s.mux.HandleFunc("/internal/stations/broadcast", s.handleBroadcast).Methods("POST")
	s.mux.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.mux.Handle("/metrics", metricsHandler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

// newSession builds the per-rider collaborators around the shared fleet.
func (s *Server) newSession(user ids.UserID, wallet *payment.Wallet) *Session {
	cb := &captureBackend{Backend: s.Fleet, durable: s.Durable, logger: s.logger}
	coord := &journey.Coordinator{
		User:     user,
		Wallet:   wallet,
		Decoder:  hardware.TextQRDecoder{},
		Hardware: hardware.NewMicrocontroller(),
		Backend:  cb,
		Fare:     s.tariff,
		Gateway:  s.gateway,
		Logger:   logging.ForSession(s.logger, user),
	}
	return &Session{User: user, Wallet: wallet, Coord: coord, capture: cb}
}

func (s *Server) session(userID string) (*Session, bool) {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

func (s *Server) addSession(sess *Session) error {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	key := sess.User.String()
	if _, ok := s.sessions[key]; ok {
		return errs.Procedural("session for %s already exists", key)
	}
	s.sessions[key] = sess
	return nil
}

// ReceiveStationBroadcast fans a station announcement out to every open
// session. Satisfies broadcast.Receiver so the signal loops can target the
// whole server. Per-session failures are logged, not propagated; one bad
// session must not starve the rest.
func (s *Server) ReceiveStationBroadcast(st ids.StationID) error {
	s.sessMu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessMu.RUnlock()

	for _, sess := range sessions {
		if err := sess.Coord.ReceiveStationBroadcast(st); err != nil {
			s.logger.Warn("broadcast rejected", "user_id", sess.User.String(), "error", err)
		}
	}
	return nil
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
