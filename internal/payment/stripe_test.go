package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/form"

	"github.com/example/pmv-rental/internal/money"
)

// fakeStripeBackend stands in for the stripe API so the wrapper can be
// exercised without network access.
type fakeStripeBackend struct {
	calls []string
	fail  error
}

func (b *fakeStripeBackend) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	b.calls = append(b.calls, method+" "+path)
	if b.fail != nil {
		return b.fail
	}
	if pi, ok := v.(*stripe.PaymentIntent); ok {
		pi.ID = "pi_fake_1"
	}
	return nil
}

func (b *fakeStripeBackend) CallStreaming(method, path, key string, params stripe.ParamsContainer, v stripe.StreamingLastResponseSetter) error {
	return errors.New("not supported")
}

func (b *fakeStripeBackend) CallRaw(method, path, key string, body *form.Values, params *stripe.Params, v stripe.LastResponseSetter) error {
	return errors.New("not supported")
}

func (b *fakeStripeBackend) CallMultipart(method, path, key, boundary string, body *bytes.Buffer, params *stripe.Params, v stripe.LastResponseSetter) error {
	return errors.New("not supported")
}

func (b *fakeStripeBackend) SetMaxNetworkRetries(int64) {}

func withFakeStripe(t *testing.T, fake *fakeStripeBackend) {
	t.Helper()
	prev := stripe.GetBackend(stripe.APIBackend)
	stripe.SetBackend(stripe.APIBackend, fake)
	t.Cleanup(func() { stripe.SetBackend(stripe.APIBackend, prev) })
}

func TestStripeHoldCaptureCancel(t *testing.T) {
	fake := &fakeStripeBackend{}
	withFakeStripe(t, fake)

	client := NewStripeClient()
	ctx := context.Background()

	id, err := client.Hold(ctx, money.FromCents(54600), "eur", "cus_42")
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if id != "pi_fake_1" {
		t.Fatalf("unexpected payment intent id %q", id)
	}
	if err := client.Capture(ctx, id); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if err := client.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	want := []string{
		"POST /v1/payment_intents",
		"POST /v1/payment_intents/pi_fake_1/capture",
		"POST /v1/payment_intents/pi_fake_1/cancel",
	}
	if fmt.Sprint(fake.calls) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
}

func TestStripeHoldSurfacesGatewayError(t *testing.T) {
	fake := &fakeStripeBackend{fail: errors.New("card declined")}
	withFakeStripe(t, fake)

	client := NewStripeClient()
	if _, err := client.Hold(context.Background(), money.FromCents(100), "eur", ""); err == nil {
		t.Fatal("expected gateway error")
	}
}
