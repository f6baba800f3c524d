package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"$4,500", 4500},
		{"$ 4.500", 4500},
		{"4.500,00", 4500},
		{"COP 1.234.567", 1234567},
		{"10200", 10200},
		{"$ 9.900 c/u", 9900},
		{"12.99", 13},
		{"", 0},
		{"Agotado", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePrice(tt.in))
		})
	}
}

func TestPriceFromFloat(t *testing.T) {
	assert.Equal(t, 4500, PriceFromFloat(4500))
	assert.Equal(t, 4501, PriceFromFloat(4500.6))
	assert.Equal(t, 0, PriceFromFloat(-3))
}

func TestDiscountPercent(t *testing.T) {
	assert.Equal(t, 25, DiscountPercent(10000, 7500))
	assert.Equal(t, 33, DiscountPercent(3000, 2000))
	assert.Equal(t, 0, DiscountPercent(7500, 7500))
	assert.Equal(t, 0, DiscountPercent(7000, 7500))
	assert.Equal(t, 0, DiscountPercent(0, 7500))
}

func TestApplyDiscount(t *testing.T) {
	assert.Equal(t, 8000, ApplyDiscount(10000, 20))
	assert.Equal(t, 10000, ApplyDiscount(10000, 0))
	assert.Equal(t, 10000, ApplyDiscount(10000, 120))
}

func TestPricePerUnit(t *testing.T) {
	assert.Equal(t, 9.0, PricePerUnit(4500, 500))
	assert.Equal(t, 4500.0, PricePerUnit(4500, 0), "never divides by zero")
	assert.Equal(t, 4500.0, PricePerUnit(4500, 0.5))
}
