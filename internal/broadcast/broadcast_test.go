package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/pmv-rental/internal/ids"
)

type captureReceiver struct {
	mu     sync.Mutex
	got    []ids.StationID
	notify chan struct{}
}

func newCaptureReceiver() *captureReceiver {
	return &captureReceiver{notify: make(chan struct{}, 64)}
}

func (c *captureReceiver) ReceiveStationBroadcast(st ids.StationID) error {
	c.mu.Lock()
	c.got = append(c.got, st)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *captureReceiver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestSignalDeliversImmediatelyAndPeriodically(t *testing.T) {
	st, _ := ids.ParseStationID("ST-00042-center")
	s := NewSignal(st, 5*time.Millisecond)
	recv := newCaptureReceiver()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, recv)
		close(done)
	}()

	// first delivery happens before the first tick
	select {
	case <-recv.notify:
	case <-time.After(time.Second):
		t.Fatal("no immediate delivery")
	}
	// and at least one more on a tick
	select {
	case <-recv.notify:
	case <-time.After(time.Second):
		t.Fatal("no periodic delivery")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestSignalStopsCleanly(t *testing.T) {
	st, _ := ids.ParseStationID("ST-00042-center")
	s := NewSignal(st, time.Millisecond)
	recv := newCaptureReceiver()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, recv)
		close(done)
	}()
	<-recv.notify
	cancel()
	<-done

	settled := recv.count()
	time.Sleep(20 * time.Millisecond)
	if recv.count() != settled {
		t.Fatal("deliveries continued after stop")
	}
}

func TestSignalSetStation(t *testing.T) {
	a, _ := ids.ParseStationID("ST-00001-alpha")
	b, _ := ids.ParseStationID("ST-00002-beta")
	s := NewSignal(a, time.Second)
	if s.Station() != a {
		t.Fatal("initial station lost")
	}
	s.SetStation(b)
	if s.Station() != b {
		t.Fatal("SetStation not applied")
	}
}
