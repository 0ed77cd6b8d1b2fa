package journey

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/fare"
	"github.com/example/pmv-rental/internal/geo"
	"github.com/example/pmv-rental/internal/ids"
	"github.com/example/pmv-rental/internal/money"
	"github.com/example/pmv-rental/internal/payment"
	"github.com/example/pmv-rental/internal/vehicle"
)

type fakeDecoder struct{ fail bool }

func (f *fakeDecoder) DecodeVehicleID(payload []byte) (ids.VehicleID, error) {
	if f.fail || len(payload) == 0 {
		return ids.VehicleID{}, errs.ErrCorruptedImage
	}
	return ids.ParseVehicleID(string(payload))
}

type fakeHardware struct {
	connected    bool
	stopped      bool
	startFault   error
	stopFault    error
	connectFault error
	disconnected bool
}

func (f *fakeHardware) Connect(context.Context) error {
	if f.connectFault != nil {
		return f.connectFault
	}
	f.connected = true
	return nil
}
func (f *fakeHardware) StartDriving(context.Context) error { return f.startFault }
func (f *fakeHardware) StopDriving(context.Context) error {
	if f.stopFault != nil {
		return f.stopFault
	}
	f.stopped = true
	return nil
}
func (f *fakeHardware) Disconnect() { f.disconnected = true }

type fakeBackend struct {
	mu          sync.Mutex
	unavailable bool
	offline     bool
	pairings    []Pairing
	completions []Completion
	payments    []string
}

func (f *fakeBackend) CheckAvailability(_ context.Context, v ids.VehicleID) error {
	if f.offline {
		return errs.Connection("check availability", errors.New("backend down"))
	}
	if f.unavailable {
		return errs.ErrVehicleUnavailable
	}
	return nil
}

func (f *fakeBackend) RegisterPairing(_ context.Context, p Pairing) error {
	if f.offline {
		return errs.Connection("register pairing", errors.New("backend down"))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairings = append(f.pairings, p)
	return nil
}

func (f *fakeBackend) CompleteJourney(_ context.Context, c Completion) error {
	if f.offline {
		return errs.Connection("complete journey", errors.New("backend down"))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, c)
	return nil
}

func (f *fakeBackend) RecordPayment(_ context.Context, s ids.ServiceID, u ids.UserID, a money.Amount, method string) error {
	if f.offline {
		return errs.Connection("record payment", errors.New("backend down"))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, s.String()+"_"+a.String()+"_"+method)
	return nil
}

type fixture struct {
	coord   *Coordinator
	backend *fakeBackend
	hw      *fakeHardware
	clock   *time.Time
}

func newFixture(t *testing.T, balanceCents int64) *fixture {
	t.Helper()
	user, err := ids.ParseUserID("UA-maria-123")
	if err != nil {
		t.Fatalf("ParseUserID: %v", err)
	}
	w, err := payment.NewWallet(money.FromCents(balanceCents))
	if err != nil {
		t.Fatalf("NewWallet: %v", err)
	}
	v, err := vehicle.New(geo.Point{Lat: 41.6176, Lon: 0.62}, 90, []byte("VH-123456-zip"))
	if err != nil {
		t.Fatalf("vehicle.New: %v", err)
	}
	backend := &fakeBackend{}
	hw := &fakeHardware{}
	clock := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC) // Wednesday
	f := &fixture{backend: backend, hw: hw, clock: &clock}
	f.coord = &Coordinator{
		User:     user,
		Wallet:   w,
		Decoder:  &fakeDecoder{},
		Hardware: hw,
		Backend:  backend,
		Fare:     fare.Default(),
		Now:      func() time.Time { return *f.clock },
	}
	if err := f.coord.AttachVehicle(v); err != nil {
		t.Fatalf("AttachVehicle: %v", err)
	}
	f.coord.SetLocation(geo.Point{Lat: 41.6176, Lon: 0.62})
	return f
}

func (f *fixture) broadcast(t *testing.T, id string) {
	t.Helper()
	st, err := ids.ParseStationID(id)
	if err != nil {
		t.Fatalf("ParseStationID: %v", err)
	}
	if err := f.coord.ReceiveStationBroadcast(st); err != nil {
		t.Fatalf("ReceiveStationBroadcast: %v", err)
	}
}

func TestScanRequiresStationBroadcast(t *testing.T) {
	f := newFixture(t, 10000)
	err := f.coord.ScanQR(context.Background())
	var pe *errs.ProceduralError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProceduralError before any broadcast, got %v", err)
	}
	if f.coord.Journey() != nil {
		t.Fatal("failed scan must not create a journey")
	}
	if f.coord.Vehicle().State() != vehicle.Available {
		t.Fatal("failed scan must not pair the vehicle")
	}
}

func TestScanPairingHappyPath(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	if err := f.coord.ScanQR(context.Background()); err != nil {
		t.Fatalf("ScanQR: %v", err)
	}
	if f.coord.Vehicle().State() != vehicle.NotAvailable {
		t.Fatalf("vehicle state = %s", f.coord.Vehicle().State())
	}
	rec := f.coord.Journey()
	if rec == nil || !rec.InProgress() {
		t.Fatal("pairing should open an in-progress journey")
	}
	if len(f.backend.pairings) != 1 {
		t.Fatalf("pairings registered: %d", len(f.backend.pairings))
	}
	if got := rec.ServiceID().String(); got != "UA-maria-123_VH-123456-zip_ST-00042-center" {
		t.Fatalf("service id = %s", got)
	}
}

func TestScanCorruptedQR(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	f.coord.Decoder = &fakeDecoder{fail: true}
	if err := f.coord.ScanQR(context.Background()); !errors.Is(err, errs.ErrCorruptedImage) {
		t.Fatalf("expected ErrCorruptedImage, got %v", err)
	}
}

func TestScanVehicleUnavailable(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	f.backend.unavailable = true
	if err := f.coord.ScanQR(context.Background()); !errors.Is(err, errs.ErrVehicleUnavailable) {
		t.Fatalf("expected ErrVehicleUnavailable, got %v", err)
	}
}

func TestScanTwiceRejected(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	if err := f.coord.ScanQR(context.Background()); err != nil {
		t.Fatalf("first ScanQR: %v", err)
	}
	if err := f.coord.ScanQR(context.Background()); !errors.Is(err, errs.ErrVehicleUnavailable) {
		t.Fatalf("second ScanQR: expected ErrVehicleUnavailable, got %v", err)
	}
}

func TestScanBackendOfflineSurfacesConnectionError(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	f.backend.offline = true
	err := f.coord.ScanQR(context.Background())
	var ce *errs.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestStartStopDrivingSequence(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	if err := f.coord.ScanQR(context.Background()); err != nil {
		t.Fatalf("ScanQR: %v", err)
	}
	if err := f.coord.StartDriving(context.Background()); err != nil {
		t.Fatalf("StartDriving: %v", err)
	}
	if f.coord.Vehicle().State() != vehicle.UnderWay {
		t.Fatalf("state = %s", f.coord.Vehicle().State())
	}
	if err := f.coord.StartDriving(context.Background()); err == nil {
		t.Fatal("starting twice should fail")
	}
	if err := f.coord.StopDriving(context.Background()); err != nil {
		t.Fatalf("StopDriving: %v", err)
	}
}

func TestStopWithoutStartFails(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	err := f.coord.StopDriving(context.Background())
	var pe *errs.ProceduralError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProceduralError, got %v", err)
	}
}

func TestStopWithoutRecordFails(t *testing.T) {
	f := newFixture(t, 10000)
	// force the vehicle under way without a pairing record
	v := f.coord.Vehicle()
	if err := v.MarkPaired(); err != nil {
		t.Fatalf("MarkPaired: %v", err)
	}
	if err := v.MarkUnderWay(); err != nil {
		t.Fatalf("MarkUnderWay: %v", err)
	}
	err := f.coord.StopDriving(context.Background())
	var pe *errs.ProceduralError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProceduralError, got %v", err)
	}
	if f.hw.stopped {
		t.Fatal("hardware must not be stopped without a journey record")
	}
}

func TestHardwareFaultWrappedAsProcedural(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	f.hw.startFault = &errs.HardwareError{Component: "motor", Cause: errors.New("no response")}
	err := f.coord.StartDriving(context.Background())
	var pe *errs.ProceduralError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProceduralError wrapper, got %v", err)
	}
	var hw *errs.HardwareError
	if !errors.As(err, &hw) {
		t.Fatal("wrapped error should still expose the hardware fault")
	}
	if f.coord.Vehicle().State() != vehicle.NotAvailable {
		t.Fatal("failed start must not change vehicle state")
	}
}

func TestParkAndResume(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	_ = f.coord.StartDriving(context.Background())
	started := f.coord.Journey().StartedAt()

	if err := f.coord.ParkVehicle(); err != nil {
		t.Fatalf("ParkVehicle: %v", err)
	}
	if f.coord.Vehicle().State() != vehicle.TemporaryParking {
		t.Fatalf("state = %s", f.coord.Vehicle().State())
	}
	*f.clock = f.clock.Add(3 * time.Minute)
	if err := f.coord.StartDriving(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !f.coord.Journey().StartedAt().Equal(started) {
		t.Fatal("resume must keep the original start time")
	}
}

func TestUnpairWithoutPairing(t *testing.T) {
	f := newFixture(t, 10000)
	if err := f.coord.Unpair(context.Background()); !errors.Is(err, errs.ErrPairingNotFound) {
		t.Fatalf("expected ErrPairingNotFound, got %v", err)
	}
}

func TestUnpairComputesMetricsAndReleasesVehicle(t *testing.T) {
	f := newFixture(t, 100000)
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	_ = f.coord.StartDriving(context.Background())

	*f.clock = f.clock.Add(10 * time.Minute)
	f.coord.SetLocation(geo.Point{Lat: 41.65, Lon: 0.66})
	_ = f.coord.StopDriving(context.Background())

	if err := f.coord.Unpair(context.Background()); err != nil {
		t.Fatalf("Unpair: %v", err)
	}
	rec := f.coord.Journey()
	if rec.InProgress() {
		t.Fatal("record still in progress after unpair")
	}
	if f.coord.Vehicle().State() != vehicle.Available {
		t.Fatalf("vehicle state = %s", f.coord.Vehicle().State())
	}
	if !f.hw.disconnected {
		t.Fatal("hardware link should be released on unpair")
	}
	if rec.Duration() != 10*time.Minute {
		t.Fatalf("duration = %s", rec.Duration())
	}
	if rec.DistanceKm() <= 0 {
		t.Fatal("distance should be positive")
	}
	want := fare.Default().Cost(rec.DistanceKm(), 10, rec.AvgSpeedKmh(), *f.clock)
	if rec.Cost() != want {
		t.Fatalf("cost = %s, want %s", rec.Cost(), want)
	}
	if len(f.backend.completions) != 1 {
		t.Fatalf("completions reported: %d", len(f.backend.completions))
	}
	if f.backend.completions[0].Cost != want {
		t.Fatal("backend completion carries a different cost")
	}
}

func TestUnpairBackendFailureKeepsStateConsistent(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	_ = f.coord.StartDriving(context.Background())
	f.backend.offline = true

	err := f.coord.Unpair(context.Background())
	var ce *errs.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	// invariant: vehicle paired/under way iff journey in progress
	if f.coord.Vehicle().State() != vehicle.UnderWay || !f.coord.Journey().InProgress() {
		t.Fatal("failed unpair left vehicle and record inconsistent")
	}
}

func TestWalletPaymentFlow(t *testing.T) {
	f := newFixture(t, 100000) // 1000.00
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	_ = f.coord.StartDriving(context.Background())
	*f.clock = f.clock.Add(10 * time.Minute)
	f.coord.SetLocation(geo.Point{Lat: 41.65, Lon: 0.66})
	if err := f.coord.Unpair(context.Background()); err != nil {
		t.Fatalf("Unpair: %v", err)
	}
	cost := f.coord.Journey().Cost()
	if err := f.coord.SelectPaymentMethod(context.Background(), payment.KindWallet); err != nil {
		t.Fatalf("SelectPaymentMethod: %v", err)
	}
	if got := f.coord.Wallet.Balance().Cents(); got != 100000-cost.Cents() {
		t.Fatalf("balance = %d, want %d", got, 100000-cost.Cents())
	}
	if len(f.backend.payments) != 1 {
		t.Fatalf("payments recorded: %d", len(f.backend.payments))
	}
	if err := f.coord.SelectPaymentMethod(context.Background(), payment.KindWallet); err == nil {
		t.Fatal("double payment should fail")
	}
}

func TestPaymentInsufficientFundsLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t, 100) // 1.00 against a large fare
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	_ = f.coord.StartDriving(context.Background())
	*f.clock = f.clock.Add(10 * time.Minute)
	f.coord.SetLocation(geo.Point{Lat: 42.5, Lon: 1.5})
	if err := f.coord.Unpair(context.Background()); err != nil {
		t.Fatalf("Unpair: %v", err)
	}
	err := f.coord.SelectPaymentMethod(context.Background(), payment.KindWallet)
	if !errors.Is(err, errs.ErrNotEnoughFunds) {
		t.Fatalf("expected ErrNotEnoughFunds, got %v", err)
	}
	if f.coord.Wallet.Balance().Cents() != 100 {
		t.Fatal("wallet mutated on failed payment")
	}
	if f.coord.Journey().Paid() {
		t.Fatal("journey marked paid on failed payment")
	}
}

func TestPaymentBeforeUnpairFails(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	err := f.coord.SelectPaymentMethod(context.Background(), payment.KindWallet)
	var pe *errs.ProceduralError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProceduralError, got %v", err)
	}
}

func TestUnimplementedPaymentMethods(t *testing.T) {
	f := newFixture(t, 100000)
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	_ = f.coord.StartDriving(context.Background())
	_ = f.coord.Unpair(context.Background())
	for _, kind := range []payment.Kind{payment.KindCredit, payment.KindBizum, payment.KindPayPal} {
		err := f.coord.SelectPaymentMethod(context.Background(), kind)
		var pe *errs.ProceduralError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: expected ProceduralError, got %v", kind, err)
		}
	}
}

func TestReceiveStationBroadcastLatestWins(t *testing.T) {
	f := newFixture(t, 10000)
	f.broadcast(t, "ST-00001-alpha")
	f.broadcast(t, "ST-00002-beta")
	if got := f.coord.Station().String(); got != "ST-00002-beta" {
		t.Fatalf("station = %s", got)
	}
	err := f.coord.ReceiveStationBroadcast(ids.StationID{})
	var ce *errs.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("empty broadcast: expected ConnectionError, got %v", err)
	}
}

func TestReceiveStationBroadcastConcurrent(t *testing.T) {
	f := newFixture(t, 10000)
	st, _ := ids.ParseStationID("ST-00042-center")
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.coord.ReceiveStationBroadcast(st)
		}()
	}
	wg.Wait()
	if f.coord.Station() != st {
		t.Fatal("station lost under concurrent broadcasts")
	}
}

func TestVehicleReusableAfterFullCycle(t *testing.T) {
	f := newFixture(t, 1000000)
	f.broadcast(t, "ST-00042-center")
	_ = f.coord.ScanQR(context.Background())
	_ = f.coord.StartDriving(context.Background())
	*f.clock = f.clock.Add(5 * time.Minute)
	if err := f.coord.Unpair(context.Background()); err != nil {
		t.Fatalf("Unpair: %v", err)
	}
	if err := f.coord.SelectPaymentMethod(context.Background(), payment.KindWallet); err != nil {
		t.Fatalf("pay: %v", err)
	}
	// same vehicle, fresh cycle
	if err := f.coord.ScanQR(context.Background()); err != nil {
		t.Fatalf("second cycle ScanQR: %v", err)
	}
	if f.coord.Vehicle().State() != vehicle.NotAvailable {
		t.Fatal("vehicle should be paired again")
	}
}
