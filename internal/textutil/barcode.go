package textutil

import "regexp"

var (
	barcodePattern    = regexp.MustCompile(`^\d{8,14}$`)
	urlBarcodePattern = regexp.MustCompile(`(?:^|\D)(\d{13}|\d{12}|\d{8})(?:\D|$)`)
)

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// SameBarcode compares two barcodes digits-only. Empty values never match.
func SameBarcode(a, b string) bool {
	da, db := DigitsOnly(a), DigitsOnly(b)
	return da != "" && da == db
}

// LooksLikeBarcode reports whether s is an all-digit 8 to 14 character string.
func LooksLikeBarcode(s string) bool {
	return barcodePattern.MatchString(s)
}

// BarcodeFromURL returns the first standalone 13, 12 or 8 digit run of a
// product URL, or "" when there is none.
func BarcodeFromURL(u string) string {
	m := urlBarcodePattern.FindStringSubmatch(u)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
