// Package payment holds the rider wallet and the settlement strategies.
package payment

import (
	"sync"

	"github.com/example/pmv-rental/internal/errs"
	"github.com/example/pmv-rental/internal/money"
)

// Wallet is a rider's prepaid balance. The balance never goes negative:
// a deduction either succeeds in full or leaves the wallet untouched.
type Wallet struct {
	mu      sync.Mutex
	balance money.Amount
}

// NewWallet creates a wallet with a non-negative opening balance.
func NewWallet(initial money.Amount) (*Wallet, error) {
	if initial < 0 {
		return nil, errs.Validation("wallet balance", "initial balance %s is negative", initial)
	}
	return &Wallet{balance: initial}, nil
}

func (w *Wallet) Balance() money.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// AddFunds credits the wallet. The amount must be strictly positive.
func (w *Wallet) AddFunds(amount money.Amount) error {
	if amount <= 0 {
		return errs.Validation("amount", "top-up %s must be greater than zero", amount)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = w.balance.Add(amount)
	return nil
}

// Deduct debits the wallet, failing with ErrNotEnoughFunds when the balance
// cannot cover the amount.
func (w *Wallet) Deduct(amount money.Amount) error {
	if amount <= 0 {
		return errs.Validation("amount", "deduction %s must be greater than zero", amount)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balance < amount {
		return errs.ErrNotEnoughFunds
	}
	w.balance = w.balance.Sub(amount)
	return nil
}
