package textutil

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var priceNoiseRegex = regexp.MustCompile(`[^\d.,]`)

// ParsePrice turns retailer price text such as "$ 4.500", "4,500" or
// "4.500,00" into integer currency units. A trailing separator followed by
// one or two digits is read as a decimal part; every other separator is a
// thousands separator. Unparseable text yields 0.
func ParsePrice(s string) int {
	cleaned := strings.Trim(priceNoiseRegex.ReplaceAllString(s, ""), ".,")
	if cleaned == "" {
		return 0
	}

	intPart, fracPart := cleaned, ""
	if idx := strings.LastIndexAny(cleaned, ".,"); idx >= 0 {
		if tail := cleaned[idx+1:]; len(tail) <= 2 {
			intPart, fracPart = cleaned[:idx], tail
		}
	}
	intPart = DigitsOnly(intPart)
	if intPart == "" {
		intPart = "0"
	}

	literal := intPart
	if fracPart != "" {
		literal += "." + fracPart
	}
	d, err := decimal.NewFromString(literal)
	if err != nil {
		return 0
	}
	return int(d.Round(0).IntPart())
}

// PriceFromFloat rounds an API price to integer units.
func PriceFromFloat(f float64) int {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(decimal.NewFromFloat(f).Round(0).IntPart())
}

// DiscountPercent returns the rounded percentage between a regular and a
// final price, or 0 when there is no discount.
func DiscountPercent(regular, price int) int {
	if regular <= 0 || regular <= price {
		return 0
	}
	diff := decimal.NewFromInt(int64(regular - price)).Mul(decimal.NewFromInt(100))
	return int(diff.Div(decimal.NewFromInt(int64(regular))).Round(0).IntPart())
}

// ApplyDiscount returns base reduced by pct percent, rounded to integer units.
func ApplyDiscount(base int, pct float64) int {
	if base <= 0 || pct <= 0 || pct >= 100 {
		return base
	}
	factor := decimal.NewFromFloat(100 - pct).Div(decimal.NewFromInt(100))
	return int(decimal.NewFromInt(int64(base)).Mul(factor).Round(0).IntPart())
}

// PricePerUnit divides price by the normalized amount, never by less than 1.
func PricePerUnit(price int, amount float64) float64 {
	if amount < 1 {
		amount = 1
	}
	return math.Round(float64(price)/amount*100) / 100
}
