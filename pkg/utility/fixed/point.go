package fixed

import (
	"fmt"
	"math"

	"github.com/govalues/decimal"
)

var (
	NegOne  = FromInt(-1, 0)
	Zero    = FromInt(0, 0)
	One     = FromInt(1, 0)
	Two     = FromInt(2, 0)
	Hundred = FromInt(100, 0)

	Sqrt252 = FromInt(252, 0).Sqrt()
	Sqrt365 = FromInt(365, 0).Sqrt()
)

// Point is an unsafe wrapper around decimal implementation. Caller must make sure the calculations
// are correct and will not result in an error state, otherwise it will panic
type Point struct {
	v decimal.Decimal
}

func FromInt(value int, scale int) Point {
	return Point{must(decimal.New(int64(value), scale))}
}

func FromInt64(value int64, scale int) Point {
	return Point{must(decimal.New(value, scale))}
}

func FromFloat64(value float64) Point {
	return Point{must(decimal.NewFromFloat64(value))}
}

// Parse converts a decimal string such as "0.005" or "-12.5".
func Parse(s string) (Point, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return Point{}, fmt.Errorf("unable to parse %q as decimal: %w", s, err)
	}
	return Point{d}, nil
}

func MustParse(s string) Point {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Point) String() string           { return p.v.Trim(0).String() }
func (p Point) Float64() (float64, bool) { return p.v.Float64() }

// Float returns the float64 approximation and drops the exactness flag.
func (p Point) Float() float64 {
	f, _ := p.v.Float64()
	return f
}

func (p Point) Abs() Point { return Point{p.v.Abs()} }
func (p Point) Neg() Point { return Point{p.v.Neg()} }
func (p Point) Sign() int  { return p.v.Sign() }

func (p Point) Add(o Point) Point { return Point{must(p.v.Add(o.v))} }
func (p Point) Sub(o Point) Point { return Point{must(p.v.Sub(o.v))} }
func (p Point) Mul(o Point) Point { return Point{must(p.v.Mul(o.v))} }
func (p Point) Div(o Point) Point { return Point{must(p.v.Quo(o.v))} }

func (p Point) MulInt64(o int64) Point { return Point{must(p.v.Mul(decimal.MustNew(o, 0)))} }
func (p Point) MulInt(o int) Point     { return Point{must(p.v.Mul(decimal.MustNew(int64(o), 0)))} }
func (p Point) DivInt64(o int64) Point { return Point{must(p.v.Quo(decimal.MustNew(o, 0)))} }
func (p Point) DivInt(o int) Point     { return Point{must(p.v.Quo(decimal.MustNew(int64(o), 0)))} }

func (p Point) Eq(o Point) bool  { return p.v.Cmp(o.v) == 0 }
func (p Point) Gt(o Point) bool  { return p.v.Cmp(o.v) > 0 }
func (p Point) Lt(o Point) bool  { return p.v.Cmp(o.v) < 0 }
func (p Point) Gte(o Point) bool { return p.v.Cmp(o.v) >= 0 }
func (p Point) Lte(o Point) bool { return p.v.Cmp(o.v) <= 0 }

func (p Point) IsZero() bool            { return p.v.IsZero() }
func (p Point) IsPos() bool             { return p.v.IsPos() }
func (p Point) IsNeg() bool             { return p.v.IsNeg() }
func (p Point) Rescale(scale int) Point { return Point{p.v.Rescale(scale)} }
func (p Point) Trunc(scale int) Point   { return Point{p.v.Trunc(scale)} }

func (p Point) Pow(o Point) Point { return Point{must(p.v.Pow(o.v))} }
func (p Point) Sqrt() Point       { return Point{must(p.v.Sqrt())} }

// TryFromFloat64 converts value, reporting NaN, infinities and values outside the decimal range.
func TryFromFloat64(value float64) (Point, error) {
	d, err := decimal.NewFromFloat64(value)
	if err != nil {
		return Point{}, err
	}
	return Point{d}, nil
}

// TryMul multiplies like Mul but returns the overflow error instead of panicking.
func (p Point) TryMul(o Point) (Point, error) {
	d, err := p.v.Mul(o.v)
	if err != nil {
		return Point{}, err
	}
	return Point{d}, nil
}

// TryDiv divides like Div but returns the overflow error instead of panicking.
func (p Point) TryDiv(o Point) (Point, error) {
	d, err := p.v.Quo(o.v)
	if err != nil {
		return Point{}, err
	}
	return Point{d}, nil
}

// TruncTo rounds p toward zero to a whole multiple of increment.
// A zero or negative increment leaves p untouched.
func (p Point) TruncTo(increment Point) Point {
	return Point{must(p.truncTo(increment))}
}

// TryTruncTo is TruncTo for untrusted input: an overflow is returned, not raised.
func (p Point) TryTruncTo(increment Point) (Point, error) {
	d, err := p.truncTo(increment)
	if err != nil {
		return Point{}, err
	}
	return Point{d}, nil
}

func (p Point) truncTo(increment Point) (decimal.Decimal, error) {
	if !increment.IsPos() {
		return p.v, nil
	}
	steps, err := p.v.Quo(increment.v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return steps.Trunc(0).Mul(increment.v)
}

// ScaledInt64 returns p as a whole number of 10^-scale units, truncating extra digits.
// It reports false when the result does not fit into an int64.
func (p Point) ScaledInt64(scale int) (int64, bool) {
	d := p.v.Trunc(scale).Pad(scale)
	if d.Scale() != scale || d.Coef() > math.MaxInt64 {
		return 0, false
	}
	v := int64(d.Coef()) // #nosec G115
	if d.IsNeg() {
		v = -v
	}
	return v, true
}

func Min(a, b Point) Point {
	if a.Lt(b) {
		return a
	}
	return b
}

func Max(a, b Point) Point {
	if a.Gt(b) {
		return a
	}
	return b
}

func (p Point) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Point) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func must(v decimal.Decimal, err error) decimal.Decimal {
	if err == nil {
		// Return in the happy path
		return v
	}
	panic(err)
}
