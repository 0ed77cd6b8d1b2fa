// Package money provides a fixed-point euro amount so fare and wallet math
// never accumulates float drift.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a monetary value in euro cents (scale 2).
type Amount int64

// FromFloat quantizes a euro value to cents, rounding half away from zero.
// Rounding happens on the shortest decimal representation of the value, not
// on the binary float: 1.005 is stored as 1.00499..., and rounding the raw
// float would break the half-up contract at exact .005 boundaries.
func FromFloat(euros float64) Amount {
	if math.IsNaN(euros) || math.IsInf(euros, 0) {
		return 0
	}
	s := strconv.FormatFloat(euros, 'f', -1, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	for len(frac) < 3 {
		frac += "0"
	}
	w, _ := strconv.ParseInt(whole, 10, 64)
	cents := w*100 + int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if frac[2] >= '5' {
		cents++
	}
	if neg {
		cents = -cents
	}
	return Amount(cents)
}

// FromCents wraps a raw cent count.
func FromCents(c int64) Amount { return Amount(c) }

func (a Amount) Cents() int64   { return int64(a) }
func (a Amount) Float() float64 { return float64(a) / 100 }

func (a Amount) Add(b Amount) Amount { return a + b }
func (a Amount) Sub(b Amount) Amount { return a - b }

// MulBasisPoints scales the amount by bps/10000 with half-up rounding,
// staying in integer arithmetic. Used for percentage surcharges.
func (a Amount) MulBasisPoints(bps int64) Amount {
	n := int64(a) * bps
	if n >= 0 {
		return Amount((n + 5000) / 10000)
	}
	return Amount((n - 5000) / 10000)
}

// String renders the amount with two decimals, e.g. "546.00".
func (a Amount) String() string {
	c := int64(a)
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
