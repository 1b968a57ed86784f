package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"local mobile with hyphens", "0812-345-678", "+62812345678"},
		{"international with spaces", "+62 812 345 678", "+62812345678"},
		{"country code without plus", "62812345678", "+62812345678"},
		{"bare mobile without prefix", "812345678", "+62812345678"},
		{"landline with area code", "(0361) 234567", "+62361234567"},
		{"long mobile", "+62812345678901", "+62812345678901"},
		{"empty", "", ""},
		{"letters only", "invalid", ""},
		{"foreign number", "+14155552671", ""},
		{"too short mobile", "0812", ""},
		{"mobile too long", "+628123456789012", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.input))
		})
	}
}

func TestNormalizePhone_NeverPartial(t *testing.T) {
	// Anything that survives normalization must be a full canonical
	// number, never a half-cleaned string.
	inputs := []string{"0812 345 678", "+62-812-345-678", "(021) 5551234", "08x12", "620"}
	for _, in := range inputs {
		got := NormalizePhone(in)
		if got == "" {
			continue
		}
		assert.True(t,
			mobilePattern.MatchString(got) || landlinePattern.MatchString(got),
			"normalized %q -> %q matches no canonical pattern", in, got)
	}
}
