package fixed

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedPoint_FromInt64(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		scale int
		want  string
	}{
		{"zero", 0, 0, "0"},
		{"positive", 123, 0, "123"},
		{"negative", -456, 0, "-456"},
		{"with scale", 123, 2, "1.23"},
		{"negative with scale", -456, 3, "-0.456"},
		{"trailing zeros trimmed", 1500, 3, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromInt64(tt.value, tt.scale).String())
		})
	}
}

func TestFixedPoint_FromFloat64Panics(t *testing.T) {
	assert.Panics(t, func() { FromFloat64(math.NaN()) })
}

func TestFixedPoint_Parse(t *testing.T) {
	p, err := Parse("0.005")
	require.NoError(t, err)
	assert.True(t, p.Eq(FromInt(5, 3)))

	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestFixedPoint_Arithmetic(t *testing.T) {
	a := MustParse("100.5")
	b := MustParse("0.25")

	assert.Equal(t, "100.75", a.Add(b).String())
	assert.Equal(t, "100.25", a.Sub(b).String())
	assert.Equal(t, "25.125", a.Mul(b).String())
	assert.Equal(t, "402", a.Div(b).String())
	assert.Equal(t, "201", a.MulInt(2).String())
	assert.Equal(t, "50.25", a.DivInt(2).String())
	assert.Panics(t, func() { a.Div(Zero) })
}

func TestFixedPoint_Comparisons(t *testing.T) {
	a := FromInt(1, 0)
	b := FromInt(2, 0)

	assert.True(t, a.Lt(b))
	assert.True(t, a.Lte(b))
	assert.True(t, a.Lte(a))
	assert.True(t, b.Gt(a))
	assert.True(t, b.Gte(b))
	assert.True(t, a.Eq(MustParse("1.000")))
	assert.Equal(t, a, Min(a, b))
	assert.Equal(t, b, Max(a, b))
}

func TestFixedPoint_TruncTo(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		increment string
		want      string
	}{
		{"size increment", "1.23456789", "0.001", "1.234"},
		{"exact multiple", "0.5", "0.1", "0.5"},
		{"tick of five", "103", "5", "100"},
		{"negative toward zero", "-1.29", "0.1", "-1.2"},
		{"zero increment", "1.23", "0", "1.23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustParse(tt.value).TruncTo(MustParse(tt.increment))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFixedPoint_Overflow(t *testing.T) {
	huge := MustParse("999999999999999999")

	_, err := huge.TryMul(Hundred)
	assert.Error(t, err)

	product, err := MustParse("1.5").TryMul(Two)
	require.NoError(t, err)
	assert.Equal(t, "3", product.String())

	_, err = huge.TryTruncTo(MustParse("0.001"))
	assert.Error(t, err)

	truncated, err := MustParse("1.23456").TryTruncTo(MustParse("0.01"))
	require.NoError(t, err)
	assert.Equal(t, "1.23", truncated.String())
}

func TestFixedPoint_TryFromFloat64(t *testing.T) {
	v, err := TryFromFloat64(12.5)
	require.NoError(t, err)
	assert.Equal(t, "12.5", v.String())

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e30} {
		_, err := TryFromFloat64(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestFixedPoint_JSON(t *testing.T) {
	type wrapper struct {
		Price Point `json:"price"`
	}

	data, err := json.Marshal(wrapper{Price: MustParse("101.50")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"101.5"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Price.Eq(MustParse("101.5")))
}

func TestFixedPoint_ScaledInt64(t *testing.T) {
	tests := []struct {
		value    string
		scale    int
		expected int64
	}{
		{"1", 8, 100_000_000},
		{"-2.5", 2, -250},
		{"0.123456789", 8, 12_345_678},
		{"0", 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := MustParse(tt.value).ScaledInt64(tt.scale)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, got)
			assert.True(t, FromInt64(got, tt.scale).Eq(MustParse(tt.value).Trunc(tt.scale)))
		})
	}

	_, ok := MustParse("1000000000000").ScaledInt64(18)
	assert.False(t, ok)
}
