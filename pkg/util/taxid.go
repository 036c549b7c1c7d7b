package util

import (
	"regexp"
	"strings"
)

// wellFormedTaxID generic shape every accepted tax identifier must have after normalization
var wellFormedTaxID = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// vatPatterns EU VAT number formats (VIES), including the country prefix
var vatPatterns = map[string]*regexp.Regexp{
	"AT": regexp.MustCompile(`^ATU\d{8}$`),
	"BE": regexp.MustCompile(`^BE0?\d{9,10}$`),
	"BG": regexp.MustCompile(`^BG\d{9,10}$`),
	"CY": regexp.MustCompile(`^CY\d{8}[A-Z]$`),
	"CZ": regexp.MustCompile(`^CZ\d{8,10}$`),
	"DE": regexp.MustCompile(`^DE\d{9}$`),
	"DK": regexp.MustCompile(`^DK\d{8}$`),
	"EE": regexp.MustCompile(`^EE\d{9}$`),
	"EL": regexp.MustCompile(`^EL\d{9}$`),
	"ES": regexp.MustCompile(`^ES[A-Z0-9]\d{7}[A-Z0-9]$`),
	"FI": regexp.MustCompile(`^FI\d{8}$`),
	"FR": regexp.MustCompile(`^FR[A-Z0-9]{2}\d{9}$`),
	"HR": regexp.MustCompile(`^HR\d{11}$`),
	"HU": regexp.MustCompile(`^HU\d{8}$`),
	"IE": regexp.MustCompile(`^IE\d{7}[A-Z]{1,2}$`),
	"IT": regexp.MustCompile(`^IT\d{11}$`),
	"LT": regexp.MustCompile(`^LT(\d{9}|\d{12})$`),
	"LU": regexp.MustCompile(`^LU\d{8}$`),
	"LV": regexp.MustCompile(`^LV\d{11}$`),
	"MT": regexp.MustCompile(`^MT\d{8}$`),
	"NL": regexp.MustCompile(`^NL\d{9}B\d{2}$`),
	"PL": regexp.MustCompile(`^PL\d{10}$`),
	"PT": regexp.MustCompile(`^PT\d{9}$`),
	"RO": regexp.MustCompile(`^RO\d{2,10}$`),
	"SE": regexp.MustCompile(`^SE\d{12}$`),
	"SI": regexp.MustCompile(`^SI\d{8}$`),
	"SK": regexp.MustCompile(`^SK\d{10}$`),
	"XI": regexp.MustCompile(`^XI\d{9}$`),
}

// NormalizeTaxID upper-cases and strips spaces, dashes and dots
func NormalizeTaxID(taxID string) string {
	r := strings.NewReplacer(" ", "", "-", "", ".", "", "\t", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(taxID)))
}

// NormalizeCountryCode upper-cases and trims an ISO country code
func NormalizeCountryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsCountryCode reports whether code is two ASCII letters
func IsCountryCode(code string) bool {
	return countryCodePattern.MatchString(code)
}

// IsWellFormedTaxID reports whether a normalized tax ID has an acceptable shape
func IsWellFormedTaxID(normalized string) bool {
	return wellFormedTaxID.MatchString(normalized)
}

// VATPrefix returns the VIES prefix for an ISO country code (Greece uses EL)
func VATPrefix(countryCode string) string {
	if countryCode == "GR" {
		return "EL"
	}
	return countryCode
}

// HasVATPattern reports whether the country has a known EU VAT format
func HasVATPattern(countryCode string) bool {
	_, ok := vatPatterns[VATPrefix(countryCode)]
	return ok
}

// TaxIDPrefix returns the leading EU country prefix of a normalized tax ID, or "".
func TaxIDPrefix(normalized string) string {
	if len(normalized) < 2 {
		return ""
	}
	prefix := normalized[:2]
	if _, ok := vatPatterns[prefix]; ok {
		return prefix
	}
	return ""
}

// FullVATNumber prefixes the country code when the tax ID has none
func FullVATNumber(countryCode, normalized string) string {
	prefix := VATPrefix(countryCode)
	if strings.HasPrefix(normalized, prefix) {
		return normalized
	}
	return prefix + normalized
}

// MatchesVATPattern checks a normalized tax ID against the country's VAT format.
// Countries without a known format always match.
func MatchesVATPattern(countryCode, normalized string) bool {
	pattern, ok := vatPatterns[VATPrefix(countryCode)]
	if !ok {
		return true
	}
	return pattern.MatchString(FullVATNumber(countryCode, normalized))
}

// GermanVATChecksumValid verifies the ISO 7064 MOD 11,10 check digit of a DE VAT number.
func GermanVATChecksumValid(vat string) bool {
	digits := strings.TrimPrefix(vat, "DE")
	if len(digits) != 9 {
		return false
	}
	product := 10
	for i := 0; i < 8; i++ {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		sum := (d + product) % 10
		if sum == 0 {
			sum = 10
		}
		product = (2 * sum) % 11
	}
	check := 11 - product
	if check == 10 {
		check = 0
	}
	last := int(digits[8] - '0')
	return last == check
}
