package calc

import (
	"math"
	"math/bits"

	"ledger/pkg/exception"
)

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, exception.ErrArithmeticOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrArithmeticOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, exception.ErrArithmeticOverflow
	}
	return diff, nil
}

// Mul returns a*b or ErrArithmeticOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, exception.ErrArithmeticOverflow
	}
	return lo, nil
}

// Div returns a/b truncated, ErrArithmeticOverflow for a zero divisor.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, exception.ErrArithmeticOverflow
	}
	return a / b, nil
}

// SubSigned returns a-b for signed seconds or ErrArithmeticOverflow when the
// result does not fit in an int64.
func SubSigned(a, b int64) (int64, error) {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		return 0, exception.ErrArithmeticOverflow
	}
	return a - b, nil
}

// MulDiv computes a*b*c/d, multiplying before dividing. a*b must fit in 64
// bits; the product with c is carried in 128 bits so only a quotient that does
// not fit in 64 bits is reported as ErrArithmeticOverflow.
func MulDiv(a, b, c, d uint64) (uint64, error) {
	v, err := Mul(a, b)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, exception.ErrArithmeticOverflow
	}
	hi, lo := bits.Mul64(v, c)
	if hi >= d {
		return 0, exception.ErrArithmeticOverflow
	}
	quo, _ := bits.Div64(hi, lo, d)
	return quo, nil
}
