package ta

import (
	"testing"
	"testing/quick"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickSize(t *testing.T) {
	cases := []struct {
		price int64
		tick  int64
	}{
		{500, 1},
		{999, 1},
		{1000, 5},
		{4999, 5},
		{5000, 10},
		{8000, 10},
		{9999, 10},
		{10000, 50},
		{49999, 50},
		{50000, 100},
		{99999, 100},
		{100000, 500},
		{499999, 500},
		{500000, 1000},
		{1250000, 1000},
	}
	for _, c := range cases {
		assert.Equal(t, c.tick, TickSize(c.price), "price=%d", c.price)
	}
}

func TestFloorCeilToTick(t *testing.T) {
	cases := []struct {
		price int64
		floor int64
		ceil  int64
	}{
		{7245, 7240, 7250},
		{8000, 8000, 8000},
		{8288, 8280, 8290},
		{8449, 8440, 8450},
		{10001, 10000, 10050},
		{9995, 9990, 10000},
		{123456, 123000, 123500},
	}
	for _, c := range cases {
		assert.Equal(t, c.floor, FloorToTick(c.price), "floor price=%d", c.price)
		assert.Equal(t, c.ceil, CeilToTick(c.price), "ceil price=%d", c.price)
	}
}

func TestDecimalTickRounding(t *testing.T) {
	// 8050 × 1.0295 = 8287.475 → 向上对齐 8290
	v := decimal.NewFromInt(8050).Mul(decimal.NewFromFloat(1.0295))
	assert.Equal(t, int64(8290), CeilToTickDecimal(v))

	// 8050 × 1.0495 = 8448.475 → 8450
	v = decimal.NewFromInt(8050).Mul(decimal.NewFromFloat(1.0495))
	assert.Equal(t, int64(8450), CeilToTickDecimal(v))

	// 8050 × 0.90 = 7245 → 向下对齐 7240
	v = decimal.NewFromInt(8050).Mul(decimal.NewFromFloat(0.90))
	assert.Equal(t, int64(7240), FloorToTickDecimal(v))
}

func TestSMA(t *testing.T) {
	closes := []int64{10100, 10000, 9900, 10000}

	ma, ok := SMA(closes, 4)
	require.True(t, ok)
	assert.True(t, ma.Equal(decimal.NewFromInt(10000)))

	// 只取最新的两根
	ma, ok = SMA(closes, 2)
	require.True(t, ok)
	assert.True(t, ma.Equal(decimal.NewFromInt(10050)))

	_, ok = SMA(closes, 5)
	assert.False(t, ok)
	_, ok = SMA(nil, 1)
	assert.False(t, ok)
}

func TestEnvelope(t *testing.T) {
	upper, lower := Envelope(decimal.NewFromInt(10000), 19)
	assert.True(t, upper.Equal(decimal.NewFromInt(11900)))
	assert.True(t, lower.Equal(decimal.NewFromInt(8100)))

	_, lower = Envelope(decimal.NewFromInt(10000), 20)
	assert.True(t, lower.Equal(decimal.NewFromInt(8000)))
}

// 属性：向下对齐不增大、结果对齐到自身价位的 tick、幂等
func TestFloorToTickProperties(t *testing.T) {
	prop := func(raw int64) bool {
		p := raw % 2000000
		if p < 0 {
			p = -p
		}
		p++ // 保证正数
		f := FloorToTick(p)
		if f > p {
			return false
		}
		if f%TickSize(f) != 0 {
			return false
		}
		if p-f >= TickSize(p) {
			return false
		}
		return FloorToTick(f) == f
	}
	require.NoError(t, quick.Check(prop, nil))
}

// 属性：向上对齐不减小、结果对齐、幂等
func TestCeilToTickProperties(t *testing.T) {
	prop := func(raw int64) bool {
		p := raw % 2000000
		if p < 0 {
			p = -p
		}
		p++
		c := CeilToTick(p)
		if c < p {
			return false
		}
		if c%TickSize(c) != 0 {
			return false
		}
		if c-p >= TickSize(p) {
			return false
		}
		return CeilToTick(c) == c
	}
	require.NoError(t, quick.Check(prop, nil))
}
