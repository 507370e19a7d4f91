package escrow

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by an Amount.
const Decimals = 8

// Unit is one whole token expressed in base units.
const Unit Amount = 100_000_000

// Amount is a fixed-point token amount counted in base units.
type Amount uint64

// ParseAmount parses a decimal string such as "1.0" or "0.25". Negative
// values, exponents and more than Decimals fractional digits are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, ".") || strings.ContainsAny(s, "eE") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	base := d.Shift(Decimals)
	if !base.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, Decimals)
	}
	units := base.BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return Amount(units.Uint64()), nil
}

// MustParseAmount is ParseAmount for constants; it panics on bad input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal returns the amount in whole tokens.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -Decimals)
}

func (a Amount) String() string {
	return a.Decimal().String()
}

// Add returns a+b, failing on overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	if a > ^Amount(0)-b {
		return 0, fmt.Errorf("%w: %s + %s", ErrOverflow, a, b)
	}
	return a + b, nil
}

// Mul returns a*n, failing on overflow.
func (a Amount) Mul(n int) (Amount, error) {
	if n < 0 {
		return 0, ErrInvalidAmount
	}
	if n == 0 || a == 0 {
		return 0, nil
	}
	r := a * Amount(n)
	if r/Amount(n) != a {
		return 0, ErrOverflow
	}
	return r, nil
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// UnmarshalJSON accepts both "1.5" and 1.5.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	return a.UnmarshalText([]byte(s))
}
