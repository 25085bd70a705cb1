package types

import (
	"fmt"
	"math"
	"math/big"

	"golang.org/x/exp/constraints"
)

// Rounding selects how RescaleRnd rounds an inexact quotient.
type Rounding int

const (
	RoundZero    = Rounding(iota) // toward zero
	RoundInf                      // away from zero
	RoundDown                     // toward -infinity
	RoundUp                       // toward +infinity
	RoundNearInf                  // to nearest, ties away from zero
)

func (r Rounding) String() string {
	switch r {
	case RoundZero:
		return "zero"
	case RoundInf:
		return "inf"
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	case RoundNearInf:
		return "near_inf"
	default:
		return fmt.Sprintf("Rounding(%d)", int(r))
	}
}

// RescaleRnd returns a*b/c rounded according to rnd. The product is
// computed without overflow; results that do not fit into int64 saturate.
func RescaleRnd(a, b, c int64, rnd Rounding) int64 {
	if c == 0 {
		return math.MinInt64
	}
	num := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	den := big.NewInt(c)
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}

	q, m := new(big.Int).QuoRem(num, den, new(big.Int)) // truncated toward zero
	if m.Sign() != 0 {
		switch rnd {
		case RoundZero:
		case RoundInf:
			q.Add(q, big.NewInt(int64(num.Sign())))
		case RoundDown:
			if num.Sign() < 0 {
				q.Sub(q, big.NewInt(1))
			}
		case RoundUp:
			if num.Sign() > 0 {
				q.Add(q, big.NewInt(1))
			}
		case RoundNearInf:
			twice := new(big.Int).Abs(m)
			twice.Lsh(twice, 1)
			if twice.Cmp(den) >= 0 {
				q.Add(q, big.NewInt(int64(num.Sign())))
			}
		}
	}

	switch {
	case q.IsInt64():
		return q.Int64()
	case q.Sign() > 0:
		return math.MaxInt64
	default:
		return math.MinInt64 + 1
	}
}

// RescaleQRnd converts ts from time base "from" to time base "to".
func RescaleQRnd(ts int64, from, to Rational, rnd Rounding) int64 {
	return rescaleQ(ts, from, to, rnd)
}

// Rescale converts ts from time base "from" to time base "to",
// rounding to nearest with ties away from zero.
func Rescale(ts int64, from, to Rational) int64 {
	return rescaleQ(ts, from, to, RoundNearInf)
}

func rescaleQ(ts int64, from, to Rational, rnd Rounding) int64 {
	if from == to {
		return ts
	}
	// ts * from.Num/from.Den / (to.Num/to.Den) == ts * (from.Num*to.Den) / (from.Den*to.Num)
	b := new(big.Int).Mul(big.NewInt(from.Num), big.NewInt(to.Den))
	c := new(big.Int).Mul(big.NewInt(from.Den), big.NewInt(to.Num))
	if b.IsInt64() && c.IsInt64() {
		return RescaleRnd(ts, b.Int64(), c.Int64(), rnd)
	}
	r := new(big.Rat).SetFrac(b, c)
	r.Mul(r, new(big.Rat).SetInt64(ts))
	f, _ := r.Float64()
	return int64(math.Round(f))
}

// CompareTS compares two timestamps expressed in (possibly different)
// time bases. It returns -1 if a happens before b, 1 if after, 0 if they
// denote the same instant. The comparison is exact.
func CompareTS(tsA int64, tbA Rational, tsB int64, tbB Rational) int {
	left := new(big.Int).Mul(big.NewInt(tsA), big.NewInt(tbA.Num))
	left.Mul(left, big.NewInt(tbB.Den))
	right := new(big.Int).Mul(big.NewInt(tsB), big.NewInt(tbB.Num))
	right.Mul(right, big.NewInt(tbA.Den))
	return left.Cmp(right)
}

// CeilDiv returns ceil(a/b) for non-negative a and positive b.
func CeilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

func abs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
