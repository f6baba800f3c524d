package textutil

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// Quantity is an amount expressed in a canonical unit (g, ml or und).
type Quantity struct {
	Amount       float64
	Unit         string
	Presentation string
}

// DefaultQuantity is used when a name carries no recognizable size.
var DefaultQuantity = Quantity{Amount: 250, Unit: domain.UnitGrams}

type unitFactor struct {
	factor float64
	base   string
}

var unitFactors = map[string]unitFactor{
	"g": {1, domain.UnitGrams}, "gr": {1, domain.UnitGrams}, "grs": {1, domain.UnitGrams},
	"gramo": {1, domain.UnitGrams}, "gramos": {1, domain.UnitGrams},
	"mg": {0.001, domain.UnitGrams}, "miligramos": {0.001, domain.UnitGrams},
	"kg": {1000, domain.UnitGrams}, "kgs": {1000, domain.UnitGrams}, "kilo": {1000, domain.UnitGrams},
	"kilos": {1000, domain.UnitGrams}, "kilogramos": {1000, domain.UnitGrams},
	"lb": {500, domain.UnitGrams}, "lbs": {500, domain.UnitGrams}, "libra": {500, domain.UnitGrams},
	"libras": {500, domain.UnitGrams},
	"oz":     {28.35, domain.UnitGrams}, "onza": {28.35, domain.UnitGrams}, "onzas": {28.35, domain.UnitGrams},
	"ml": {1, domain.UnitMilliliter}, "cc": {1, domain.UnitMilliliter}, "mililitros": {1, domain.UnitMilliliter},
	"l": {1000, domain.UnitMilliliter}, "lt": {1000, domain.UnitMilliliter}, "lts": {1000, domain.UnitMilliliter},
	"litro": {1000, domain.UnitMilliliter}, "litros": {1000, domain.UnitMilliliter},
}

var (
	// longest alternatives first so "kgs" is not read as "kg" + "s"
	quantityRegex = regexp.MustCompile(`(?i)(\d+(?:[.,]\d{3})*(?:[.,]\d+)?)\s*(kilogramos|miligramos|mililitros|gramos|gramo|kilos|kilo|kgs|kg|libras|libra|lbs|lb|onzas|onza|oz|litros|litro|lts|lt|grs|gr|mg|ml|cc|g|l)\b`)
	countRegex    = regexp.MustCompile(`(?i)(?:\bx\s*(\d+)\b|\b(\d+)\s*(?:unidades|unidad|unds|und|uds|ud|u)\b|\bpack\s*(?:x\s*)?(\d+)\b)`)
)

// ConvertToBase converts value expressed in unit to grams or milliliters.
func ConvertToBase(value float64, unit string) (float64, string, bool) {
	f, ok := unitFactors[strings.ToLower(unit)]
	if !ok {
		return 0, "", false
	}
	amount := value * f.factor
	if f.factor == 28.35 {
		amount = math.Round(amount)
	} else {
		amount = math.Round(amount*1000) / 1000
	}
	return amount, f.base, true
}

// ParseQuantity finds the first weight or volume in text.
func ParseQuantity(text string) (Quantity, bool) {
	m := quantityRegex.FindStringSubmatch(text)
	if len(m) < 3 {
		return Quantity{}, false
	}
	number := parseNumber(m[1])
	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value <= 0 {
		return Quantity{}, false
	}
	amount, base, ok := ConvertToBase(value, m[2])
	if !ok {
		return Quantity{}, false
	}
	return Quantity{
		Amount:       amount,
		Unit:         base,
		Presentation: number + strings.ToLower(m[2]),
	}, true
}

// parseNumber rewrites "1.000", "2.500,5" and "1,5" as "1000", "2500.5"
// and "1.5". A separator followed by exactly three digits groups thousands
// unless the integer part is zero ("0.250 kg").
func parseNumber(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' })
	if len(parts) == 0 {
		return s
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if len(p) == 3 && strings.Trim(parts[0], "0") != "" {
			b.WriteString(p)
			continue
		}
		b.WriteString(".")
		b.WriteString(p)
		break
	}
	return b.String()
}

// NormalizeAmount resolves the comparable amount of a product: a weight or
// volume when present, a unit count for packs, else DefaultQuantity.
func NormalizeAmount(text string) Quantity {
	if q, ok := ParseQuantity(text); ok {
		return q
	}
	if m := countRegex.FindStringSubmatch(text); m != nil {
		for _, group := range m[1:] {
			if group == "" {
				continue
			}
			if n, err := strconv.Atoi(group); err == nil && n > 0 {
				return Quantity{Amount: float64(n), Unit: domain.UnitCount, Presentation: group + " und"}
			}
		}
	}
	return DefaultQuantity
}
