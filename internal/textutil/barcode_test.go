package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "770123456", DigitsOnly("770-123.456"))
	assert.Equal(t, "", DigitsOnly("abc"))
}

func TestSameBarcode(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"formatted vs plain", "770-123.456", "770123456", true},
		{"spaces", "7701234 567890", "7701234567890", true},
		{"different", "7701234567890", "7701234567891", false},
		{"empty never matches", "", "", false},
		{"one empty", "", "770123456", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameBarcode(tt.a, tt.b))
		})
	}
}

func TestLooksLikeBarcode(t *testing.T) {
	assert.True(t, LooksLikeBarcode("77012345"))
	assert.True(t, LooksLikeBarcode("7701234567890"))
	assert.True(t, LooksLikeBarcode("77012345678901"))
	assert.False(t, LooksLikeBarcode("7701234"))
	assert.False(t, LooksLikeBarcode("770123456789012"))
	assert.False(t, LooksLikeBarcode("arroz 500"))
}

func TestBarcodeFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://shop.example/arroz-diana-7701234567890/p", "7701234567890"},
		{"https://shop.example/p/012345678905?x=1", "012345678905"},
		{"https://shop.example/item/77012345", "77012345"},
		{"https://shop.example/item/1234567890", ""},
		{"https://shop.example/arroz-diana/p", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, BarcodeFromURL(tt.url))
		})
	}
}
