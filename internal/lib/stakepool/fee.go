package stakepool

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Fee is a rational fraction of an amount, numerator/denominator.
type Fee struct {
	Numerator   uint64 `json:"numerator" yaml:"numerator"`
	Denominator uint64 `json:"denominator" yaml:"denominator"`
}

// maxPercentPlaces keeps 100*10^places within a uint64 denominator.
const maxPercentPlaces = 17

// ZeroFee charges nothing but still validates.
var ZeroFee = Fee{Numerator: 0, Denominator: 1}

func NewFee(numerator, denominator uint64) Fee {
	return Fee{Numerator: numerator, Denominator: denominator}
}

// Validate enforces denominator > 0 and numerator <= denominator.
func (f Fee) Validate() error {
	if f.Denominator == 0 {
		return newError(ErrDivisionByZero)
	}
	if f.Numerator > f.Denominator {
		return newError(ErrFeeTooHigh).because("%d/%d", f.Numerator, f.Denominator)
	}
	return nil
}

// Apply returns floor(amount * numerator / denominator). A 0/0 fee, which the on-chain
// program uses for "no fee", applies as zero.
func (f Fee) Apply(amount uint64) uint64 {
	if f.Denominator == 0 || f.Numerator == 0 || amount == 0 {
		return 0
	}
	result, ok := mulDiv(amount, f.Numerator, f.Denominator)
	if !ok {
		return math.MaxUint64
	}
	return result
}

func (f Fee) IsZero() bool {
	return f.Numerator == 0
}

// Percent renders the fee as a percentage.
func (f Fee) Percent() decimal.Decimal {
	if f.Denominator == 0 {
		return decimal.Zero
	}
	num := decimal.NewFromBigInt(new(big.Int).SetUint64(f.Numerator), 0)
	den := decimal.NewFromBigInt(new(big.Int).SetUint64(f.Denominator), 0)
	return num.Div(den).Mul(decimal.NewFromInt(100))
}

func (f Fee) String() string {
	return fmt.Sprintf("%d/%d (%s%%)", f.Numerator, f.Denominator, f.Percent().Truncate(4).String())
}

// ParseFee accepts "numerator/denominator" or a percentage such as "0.5%".
func ParseFee(s string) (Fee, error) {
	s = strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		d, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return Fee{}, fmt.Errorf("invalid fee percentage %q: %w", s, err)
		}
		if d.IsNegative() {
			return Fee{}, fmt.Errorf("invalid fee percentage %q: negative", s)
		}
		fee, err := percentFee(d)
		if err != nil {
			return Fee{}, fmt.Errorf("invalid fee percentage %q: %w", s, err)
		}
		return fee, fee.Validate()
	}
	numStr, denStr, found := strings.Cut(s, "/")
	if !found {
		return Fee{}, fmt.Errorf("invalid fee %q, expected numerator/denominator or percentage", s)
	}
	num, err := strconv.ParseUint(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return Fee{}, fmt.Errorf("invalid fee numerator %q: %w", numStr, err)
	}
	den, err := strconv.ParseUint(strings.TrimSpace(denStr), 10, 64)
	if err != nil {
		return Fee{}, fmt.Errorf("invalid fee denominator %q: %w", denStr, err)
	}
	fee := NewFee(num, den)
	return fee, fee.Validate()
}

// percentFee expresses pct as parts per 100*10^places, dropping trailing zeros first so that
// "5.000%" is 5/100.
func percentFee(pct decimal.Decimal) (Fee, error) {
	ten := big.NewInt(10)
	num := pct.Coefficient()
	places := -int64(pct.Exponent())
	for places > 0 {
		q, r := new(big.Int).QuoRem(num, ten, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		num, places = q, places-1
	}
	if places < 0 {
		num.Mul(num, new(big.Int).Exp(ten, big.NewInt(-places), nil))
		places = 0
	}
	if places > maxPercentPlaces {
		return Fee{}, fmt.Errorf("more than %d decimal places", maxPercentPlaces)
	}
	den := new(big.Int).Exp(ten, big.NewInt(places), nil)
	den.Mul(den, big.NewInt(100))
	if !num.IsUint64() || !den.IsUint64() {
		return Fee{}, fmt.Errorf("does not fit a 64-bit fraction")
	}
	return NewFee(num.Uint64(), den.Uint64()), nil
}

// mulDiv computes floor(a*b/c) without intermediate overflow. ok is false when c is zero or
// the result doesn't fit in 64 bits.
func mulDiv(a, b, c uint64) (uint64, bool) {
	if c == 0 {
		return 0, false
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	prod.Div(prod, uint256.NewInt(c))
	if !prod.IsUint64() {
		return 0, false
	}
	return prod.Uint64(), true
}
