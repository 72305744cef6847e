package types

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Rational is a fraction, used for frame rates, aspect ratios and
// clock drift rates.
type Rational struct {
	Num int
	Den int
}

// Period returns the length of one unit of the rate (1/r) in ticks
// of a clock of the given frequency, or zero for an unset rate.
func (r Rational) Period(freq uint64) uint64 {
	if r.Num <= 0 || r.Den <= 0 {
		return 0
	}
	return freq * uint64(r.Den) / uint64(r.Num)
}

func newNTSCRationalFromFloat64(f float64) *big.Rat {
	den := 1001 // common denominator for NTSC frame rates
	num := math.Ceil(f) * 1000
	r := big.NewRat(int64(num), int64(den))
	confirmValue, _ := r.Float64()
	if math.Abs(f-confirmValue) < 1e-2 {
		return r
	}
	return nil
}

func RationalFromApproxFloat64(fps float64) (r Rational) {
	if float64(int(fps)) == fps {
		r.Num = int(fps)
		r.Den = 1
		return
	}

	rat := newNTSCRationalFromFloat64(fps)
	if rat != nil {
		r.Num = int(rat.Num().Int64())
		r.Den = int(rat.Denom().Int64())
		return
	}

	r.Num = int(fps * 1000000)
	r.Den = 1000000

	gcd := big.NewInt(0).GCD(nil, nil, big.NewInt(int64(r.Num)), big.NewInt(int64(r.Den))).Int64()
	r.Num /= int(gcd)
	r.Den /= int(gcd)
	return
}

func RationalFromFloat64(fps float64) Rational {
	var r Rational
	if float64(int(fps)) == fps {
		r.Num = int(fps)
		r.Den = 1
		return r
	}
	rat := approxRat(fps, 1e-6)
	r.Num = int(rat.Num().Int64())
	r.Den = int(rat.Denom().Int64())
	return r
}

// approxRat returns the first continued-fraction convergent of f
// within the given precision.
func approxRat(f float64, precision float64) *big.Rat {
	var (
		h0, h1 = big.NewInt(0), big.NewInt(1)
		k0, k1 = big.NewInt(1), big.NewInt(0)
	)
	x := f
	for i := 0; i < 64; i++ {
		a := math.Floor(x)
		ai := big.NewInt(int64(a))
		h2 := new(big.Int).Add(new(big.Int).Mul(ai, h1), h0)
		k2 := new(big.Int).Add(new(big.Int).Mul(ai, k1), k0)
		h0, h1 = h1, h2
		k0, k1 = k1, k2
		r := new(big.Rat).SetFrac(h1, k1)
		v, _ := r.Float64()
		if math.Abs(v-f) <= precision || x == a {
			return r
		}
		x = 1 / (x - a)
	}
	return new(big.Rat).SetFrac(h1, k1)
}

func RationalFromString(s string) (*Rational, error) {
	var r Rational
	switch {
	case len(s) == 0:
		return nil, fmt.Errorf("unable to parse Rational from empty string")
	case strings.Contains(s, "/"):
		if _, err := fmt.Sscanf(s, "%d/%d", &r.Num, &r.Den); err != nil {
			return nil, fmt.Errorf("unable to parse Rational from %q: %w", s, err)
		}
	case s[0] == '~':
		fps, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse Rational from %q: %w", s, err)
		}
		r = RationalFromApproxFloat64(fps)
	default:
		fps, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse Rational from %q: %w", s, err)
		}
		r = RationalFromFloat64(fps)
	}
	if r.Den == 0 {
		return nil, fmt.Errorf("denominator cannot be zero")
	}
	return &r, nil
}

// IsZero reports whether the value is unset.
func (r Rational) IsZero() bool {
	return r.Num == 0 && r.Den == 0
}

// Reduce returns the fraction in lowest terms.
func (r Rational) Reduce() Rational {
	if r.Den == 0 {
		return r
	}
	gcd := big.NewInt(0).GCD(nil, nil, big.NewInt(int64(abs(r.Num))), big.NewInt(int64(abs(r.Den)))).Int64()
	if gcd == 0 {
		return r
	}
	return Rational{Num: r.Num / int(gcd), Den: r.Den / int(gcd)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Set implements pflag.Value.
func (r *Rational) Set(s string) error {
	v, err := RationalFromString(s)
	if err != nil {
		return err
	}
	*r = *v
	return nil
}

// Type implements pflag.Value.
func (r *Rational) Type() string {
	return "rational"
}
