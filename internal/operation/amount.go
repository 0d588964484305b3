package operation

import (
	"github.com/shopspring/decimal"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/core/pacing"
)

// AmountPrecision is the number of decimals kept on generated amounts.
const AmountPrecision int32 = 6

var nanosPerIOTA = decimal.NewFromInt(int64(domain.NanosPerIOTA))

// AmountRange is a window of whole-unit amounts, e.g. [0.001, 0.01] IOTA.
type AmountRange struct {
	Min float64 `yaml:"min_amount"`
	Max float64 `yaml:"max_amount"`
}

// Pick draws a uniformly random amount rounded to AmountPrecision decimals.
func (r AmountRange) Pick(rnd pacing.Rand) decimal.Decimal {
	lo := decimal.NewFromFloat(r.Min)
	hi := decimal.NewFromFloat(r.Max)
	if !hi.GreaterThan(lo) {
		return lo.Round(AmountPrecision)
	}

	v := lo.Add(hi.Sub(lo).Mul(decimal.NewFromFloat(rnd.Float64()))).Round(AmountPrecision)
	if v.LessThan(lo) {
		v = lo
	}
	if v.GreaterThan(hi) {
		v = hi
	}
	return v
}

// PickNanos draws an amount and converts it to smallest units.
func (r AmountRange) PickNanos(rnd pacing.Rand) uint64 {
	return ToNanos(r.Pick(rnd))
}

// ToNanos converts whole units to smallest units, truncating below one nano.
func ToNanos(v decimal.Decimal) uint64 {
	n := v.Mul(nanosPerIOTA).IntPart()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// FormatIOTA renders a nano amount as whole units with 6 decimals.
func FormatIOTA(nanos int64) string {
	return decimal.New(nanos, -9).StringFixed(AmountPrecision)
}

// Valid reports whether the window is positive and ordered.
func (r AmountRange) Valid() bool {
	return r.Min > 0 && r.Min <= r.Max
}
