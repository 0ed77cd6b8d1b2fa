// Package broadcast models the unbonded station channel: a one-way,
// best-effort, periodically repeating announcement of a station's identity.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/pmv-rental/internal/ids"
)

// Receiver is the coordinator-side sink for station announcements.
type Receiver interface {
	ReceiveStationBroadcast(st ids.StationID) error
}

// Signal announces one station at a fixed interval until its context is
// cancelled. Delivery errors are logged and ignored: the channel carries no
// acknowledgment.
type Signal struct {
	Interval time.Duration
	Logger   *slog.Logger

	mu      sync.Mutex
	station ids.StationID
}

func NewSignal(station ids.StationID, interval time.Duration) *Signal {
	if interval <= 0 {
		interval = time.Second
	}
	return &Signal{Interval: interval, station: station}
}

// SetStation swaps the announced station; the running loop picks it up on
// the next tick.
func (s *Signal) SetStation(st ids.StationID) {
	s.mu.Lock()
	s.station = st
	s.mu.Unlock()
}

func (s *Signal) Station() ids.StationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station
}

// Run delivers the announcement immediately and then on every tick, and
// returns once ctx is cancelled. It leaks no goroutine or timer.
func (s *Signal) Run(ctx context.Context, r Receiver) {
	s.deliver(r)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.deliver(r)
		}
	}
}

func (s *Signal) deliver(r Receiver) {
	if err := r.ReceiveStationBroadcast(s.Station()); err != nil && s.Logger != nil {
		s.Logger.Warn("station broadcast not delivered", "station", s.Station().String(), "error", err)
	}
}
