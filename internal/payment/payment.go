package payment

import (
	"fmt"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/money"
)

// Kind names a settlement method.
type Kind string

const (
	KindWallet Kind = "wallet"
	KindCredit Kind = "credit"
	KindBizum  Kind = "bizum"
	KindPayPal Kind = "paypal"
)

// ParseKind maps the wire value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindWallet, KindCredit, KindBizum, KindPayPal:
		return Kind(s), nil
	}
	return "", errs.Validation("payment method", "%q is not one of wallet, credit, bizum, paypal", s)
}

// Method settles a fare.
type Method interface {
	ProcessPayment(amount money.Amount) error
}

// WalletPayment settles from the rider's prepaid balance. The only method
// implemented today.
type WalletPayment struct {
	wallet *Wallet
}

func NewWalletPayment(w *Wallet) (*WalletPayment, error) {
	if w == nil {
		return nil, errs.Validation("wallet", "wallet cannot be nil")
	}
	return &WalletPayment{wallet: w}, nil
}

func (p *WalletPayment) ProcessPayment(amount money.Amount) error {
	return p.wallet.Deduct(amount)
}

// CreditPayment is a declared extension point. It holds the gateway client
// it will eventually use but refuses every payment until the flow exists.
type CreditPayment struct {
	Gateway *StripeClient
}

func (p *CreditPayment) ProcessPayment(money.Amount) error {
	return errs.Procedural("credit payment is not implemented")
}

// BizumPayment is a declared extension point.
type BizumPayment struct{}

func (BizumPayment) ProcessPayment(money.Amount) error {
	return errs.Procedural("bizum payment is not implemented")
}

// PayPalPayment is a declared extension point.
type PayPalPayment struct{}

func (PayPalPayment) ProcessPayment(money.Amount) error {
	return errs.Procedural("paypal payment is not implemented")
}

// ForKind builds the strategy for a method. The rider wallet is required
// only for KindWallet.
func ForKind(kind Kind, wallet *Wallet, gateway *StripeClient) (Method, error) {
	switch kind {
	case KindWallet:
		return NewWalletPayment(wallet)
	case KindCredit:
		return &CreditPayment{Gateway: gateway}, nil
	case KindBizum:
		return BizumPayment{}, nil
	case KindPayPal:
		return PayPalPayment{}, nil
	}
	return nil, fmt.Errorf("unknown payment kind %q", kind)
}
