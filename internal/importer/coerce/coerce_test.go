package coerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"$1,234.56", 1234.56, true},
		{"45.67", 45.67, true},
		{"USD 12", 12, true},
		{"-12.50", -12.5, true},
		{"(12.50)", 12.5, true},
		{"1.2.3", 1.2, true},
		{"5-3", 5, true},
		{".5", 0.5, true},
		{"-.5", -0.5, true},
		{"7.", 7, true},
		{"n/a", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"--1", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.InDelta(t, tc.want, got, 1e-9, tc.raw)
	}
}

func TestAmount(t *testing.T) {
	assert.Equal(t, 1234.56, Amount("$1,234.56"))
	assert.Equal(t, 0.0, Amount("n/a"))
	assert.Equal(t, 20.0, Amount("-20"))
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2024-01-15":                "2024-01-15",
		" 2024-01-15 ":              "2024-01-15",
		"2024-01-15T10:30:00Z":      "2024-01-15",
		"2024-01-15T22:30:00-05:00": "2024-01-16",
		"2024-01-16T01:00:00+03:00": "2024-01-15",
		"2024/01/15":                "2024-01-15",
		"01/15/2024":                "2024-01-15",
		"1/5/2024":                  "2024-01-05",
		"01-15-24":                  "2024-01-15",
		"Jan 15, 2024":              "2024-01-15",
		"15 Jan 2024":               "2024-01-15",
		"45306":                     "2024-01-15",
	}
	for raw, want := range cases {
		got, ok := ParseDate(raw)
		if assert.True(t, ok, raw) {
			assert.Equal(t, want, got, raw)
		}
	}

	for _, raw := range []string{"", "not a date", "2024-13-45", "123"} {
		_, ok := ParseDate(raw)
		assert.False(t, ok, raw)
	}
}

func TestDateOrFallsBackToToday(t *testing.T) {
	now := time.Date(2025, 3, 9, 23, 30, 0, 0, time.FixedZone("X", -5*3600))
	assert.Equal(t, "2025-03-10", DateOr("garbage", now))
	assert.Equal(t, "2024-01-16", DateOr("2024-01-16", now))
}
