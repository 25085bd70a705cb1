package types

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Rational is a fraction Num/Den. As a time base it is the duration
// of one timestamp unit in seconds.
type Rational struct {
	Num int64
	Den int64
}

func R(num, den int64) Rational {
	return Rational{Num: num, Den: den}
}

func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

func (r Rational) IsValid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) Reverse() Rational {
	return Rational{
		Num: r.Den,
		Den: r.Num,
	}
}

func (r Rational) Mul(other Rational) Rational {
	return Rational{
		Num: r.Num * other.Num,
		Den: r.Den * other.Den,
	}.Reduce()
}

func (r Rational) Div(other Rational) Rational {
	return Rational{
		Num: r.Num * other.Den,
		Den: r.Den * other.Num,
	}.Reduce()
}

func (r Rational) Reduce() Rational {
	if r.Den == 0 {
		return r
	}
	gcd := big.NewInt(0).GCD(nil, nil, big.NewInt(abs(r.Num)), big.NewInt(abs(r.Den))).Int64()
	if gcd <= 1 {
		return r
	}
	return Rational{Num: r.Num / gcd, Den: r.Den / gcd}
}

func (r Rational) Rat() *big.Rat {
	return big.NewRat(r.Num, r.Den)
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

func RationalFromApproxFloat64(fps float64) Rational {
	if float64(int64(fps)) == fps {
		return Rational{Num: int64(fps), Den: 1}
	}

	if rat := newNTSCRationalFromFloat64(fps); rat != nil {
		return Rational{Num: rat.Num().Int64(), Den: rat.Denom().Int64()}
	}

	return Rational{Num: int64(math.Round(fps * 1000000)), Den: 1000000}.Reduce()
}

func RationalFromString(s string) (*Rational, error) {
	var r Rational
	s = strings.TrimSpace(s)
	switch {
	case len(s) == 0:
		return nil, fmt.Errorf("unable to parse Rational from empty string")
	case strings.Contains(s, "/"):
		num, den, _ := strings.Cut(s, "/")
		var err error
		if r.Num, err = strconv.ParseInt(num, 10, 64); err != nil {
			return nil, fmt.Errorf("unable to parse the numerator of %q: %w", s, err)
		}
		if r.Den, err = strconv.ParseInt(den, 10, 64); err != nil {
			return nil, fmt.Errorf("unable to parse the denominator of %q: %w", s, err)
		}
	case s[0] == '~':
		fps, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse Rational from %q: %w", s, err)
		}
		r = RationalFromApproxFloat64(fps)
	default:
		rat, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, fmt.Errorf("unable to parse Rational from %q", s)
		}
		if !rat.Num().IsInt64() || !rat.Denom().IsInt64() {
			return nil, fmt.Errorf("value %q does not fit into int64/int64", s)
		}
		r = Rational{Num: rat.Num().Int64(), Den: rat.Denom().Int64()}
	}
	if r.Den == 0 {
		return nil, fmt.Errorf("denominator cannot be zero")
	}
	return &r, nil
}

func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rational) UnmarshalText(b []byte) error {
	v, err := RationalFromString(string(b))
	if err != nil {
		return err
	}
	*r = *v
	return nil
}

func (r Rational) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rational) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unable to unmarshal Rational from JSON '%s': %w", b, err)
	}
	if err := r.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("unable to unmarshal Rational from string %q: %w", s, err)
	}
	return nil
}
