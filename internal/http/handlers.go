package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/events"
	"github.com/example/pmv-rental/internal/geo"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/journey"
	"github.com/example/pmv-rental/internal/money"
	"github.com/example/pmv-rental/internal/payment"
	"github.com/example/pmv-rental/internal/vehicle"
)

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func metricsHandler() http.Handler { return promhttp.Handler() }

// SessionSnapshot is the client-facing view of a session, returned by the
// journey endpoint and pushed over the websocket after each operation.
type SessionSnapshot struct {
	UserID        string            `json:"user_id"`
	WalletBalance string            `json:"wallet_balance"`
	Station       string            `json:"station,omitempty"`
	VehicleID     string            `json:"vehicle_id,omitempty"`
	VehicleState  string            `json:"vehicle_state,omitempty"`
	ChargeLevel   float64           `json:"charge_level,omitempty"`
	Sensors       map[string]string `json:"sensors,omitempty"`
	Location      *geo.Point        `json:"location,omitempty"`
	Journey       *journey.Snapshot `json:"journey,omitempty"`
}

func snapshotOf(sess *Session) SessionSnapshot {
	snap := SessionSnapshot{
		UserID:        sess.User.String(),
		WalletBalance: sess.Wallet.Balance().String(),
	}
	if st := sess.Coord.Station(); !st.IsZero() {
		snap.Station = st.String()
	}
	if v := sess.Coord.Vehicle(); v != nil {
		snap.VehicleID = v.ID().String()
		snap.VehicleState = string(v.State())
		snap.ChargeLevel = v.ChargeLevel()
		snap.Sensors = v.SensorReport()
		loc := v.Location()
		snap.Location = &loc
	}
	if j := sess.Coord.Journey(); j != nil {
		js := j.Snapshot()
		snap.Journey = &js
	}
	return snap
}

func (s *Server) pushSnapshot(sess *Session) SessionSnapshot {
	snap := snapshotOf(sess)
	s.WSReg.Push(sess.User.String(), snap)
	return snap
}

type createSessionRequest struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("body", "invalid json: %v", err))
		return
	}
	user, err := ids.ParseUserID(req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	wallet, err := payment.NewWallet(money.FromFloat(req.Balance))
	if err != nil {
		writeError(w, err)
		return
	}
	sess := s.newSession(user, wallet)
	if err := s.addSession(sess); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("session created", "user_id", user.String(), "balance", wallet.Balance().String())
	writeJSON(w, http.StatusCreated, snapshotOf(sess))
}

type scanRequest struct {
	QR string `json:"qr"`
	// optional rider position at scan time
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("body", "invalid json: %v", err))
		return
	}
	veh, ok := s.Fleet.VehicleByQR([]byte(req.QR))
	if !ok {
		// unknown code still goes through the session so the decoder can
		// classify it (corrupted payload vs unknown vehicle)
		v, err := vehicle.New(geo.Point{}, 100, []byte(req.QR))
		if err != nil {
			writeError(w, err)
			return
		}
		veh = v
	}
	if req.Lat != nil && req.Lon != nil {
		sess.Coord.SetLocation(geo.Point{Lat: *req.Lat, Lon: *req.Lon})
	} else {
		sess.Coord.SetLocation(veh.Location())
	}
	if err := sess.Coord.AttachVehicle(veh); err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Coord.ScanQR(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pushSnapshot(sess))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := sess.Coord.StartDriving(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pushSnapshot(sess))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := sess.Coord.StopDriving(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pushSnapshot(sess))
}

func (s *Server) handlePark(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := sess.Coord.ParkVehicle(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pushSnapshot(sess))
}

func (s *Server) handleUnpair(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := sess.Coord.Unpair(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if s.Kafka != nil {
		if done, ok := sess.capture.LastCompletion(); ok {
			if err := s.Kafka.PublishJourneyCompleted(events.FromCompletion(done)); err != nil {
				s.logger.Warn("journey event not published", "service", done.Service.String(), "error", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, s.pushSnapshot(sess))
}

type payRequest struct {
	Method string `json:"method"`
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("body", "invalid json: %v", err))
		return
	}
	kind, err := payment.ParseKind(req.Method)
	if err != nil {
		writeError(w, errs.Validation("method", "%v", err))
		return
	}
	if err := sess.Coord.SelectPaymentMethod(r.Context(), kind); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pushSnapshot(sess))
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("body", "invalid json: %v", err))
		return
	}
	sess.Coord.SetLocation(geo.Point{Lat: req.Lat, Lon: req.Lon})
	writeJSON(w, http.StatusOK, s.pushSnapshot(sess))
}

func (s *Server) handleJourney(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(sess))
}

type broadcastRequest struct {
	StationID string `json:"station_id"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("body", "invalid json: %v", err))
		return
	}
	st, err := ids.ParseStationID(req.StationID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = s.ReceiveStationBroadcast(st)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["user_id"]
	if _, ok := s.session(userID); !ok {
		http.Error(w, "no such session", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(userID, conn)
}

func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	userID := mux.Vars(r)["user_id"]
	sess, ok := s.session(userID)
	if !ok {
		http.Error(w, "no such session", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the session error families onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ve *errs.ValidationError
	var pe *errs.ProceduralError
	var ce *errs.ConnectionError
	switch {
	case errors.Is(err, errs.ErrCorruptedImage), errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotEnoughFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, errs.ErrPairingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrVehicleUnavailable):
		status = http.StatusConflict
	case errors.As(err, &pe):
		status = http.StatusConflict
	case errors.As(err, &ce):
		status = http.StatusBadGateway
	}
	var te *vehicle.TransitionError
	if errors.As(err, &te) {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
