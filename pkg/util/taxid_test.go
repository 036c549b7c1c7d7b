package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTaxID(t *testing.T) {
	assert.Equal(t, "DE136695976", NormalizeTaxID(" de 136-695.976 "))
	assert.Equal(t, "", NormalizeTaxID("  "))
}

func TestIsWellFormedTaxID(t *testing.T) {
	tests := []struct {
		taxID string
		want  bool
	}{
		{"DE136695976", true},
		{"12345", true},
		{"123", false},
		{"", false},
		{"DE13669597/6", false},
		{"ABCDEFGHIJKLMNOPQRSTU", false},
	}
	for _, tt := range tests {
		t.Run(tt.taxID, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWellFormedTaxID(tt.taxID))
		})
	}
}

func TestMatchesVATPattern(t *testing.T) {
	assert.True(t, MatchesVATPattern("DE", "DE136695976"))
	assert.True(t, MatchesVATPattern("DE", "136695976"))
	assert.False(t, MatchesVATPattern("DE", "DE1366959"))
	assert.True(t, MatchesVATPattern("GR", "EL123456789"))
	assert.True(t, MatchesVATPattern("NL", "NL123456789B01"))
	// no known format: nothing to compare against
	assert.True(t, MatchesVATPattern("UA", "12345678"))
}

func TestTaxIDPrefix(t *testing.T) {
	assert.Equal(t, "DE", TaxIDPrefix("DE136695976"))
	assert.Equal(t, "PL", TaxIDPrefix("PL1234567890"))
	assert.Equal(t, "", TaxIDPrefix("136695976"))
	assert.Equal(t, "", TaxIDPrefix("D"))
}

func TestGermanVATChecksumValid(t *testing.T) {
	assert.True(t, GermanVATChecksumValid("DE136695976"))
	assert.True(t, GermanVATChecksumValid("DE123456788"))
	assert.False(t, GermanVATChecksumValid("DE123456789"))
	assert.False(t, GermanVATChecksumValid("DE12345"))
	assert.False(t, GermanVATChecksumValid("DE12345678X"))
}

func TestIsCountryCode(t *testing.T) {
	assert.True(t, IsCountryCode("DE"))
	assert.False(t, IsCountryCode("BLOCKED_X"))
	assert.False(t, IsCountryCode("D1"))
	assert.False(t, IsCountryCode(""))
}
