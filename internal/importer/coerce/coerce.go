// Package coerce turns spreadsheet cell text into receipt field values.
// Every function is total: bad input yields a zero value or a reported
// failure, never a panic.
package coerce

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// StripAmount removes every character except digits, '.' and '-'.
func StripAmount(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAmount strips raw and parses the longest leading decimal number, the
// way a lenient float prefix parser does: "1.2.3" is 1.2, "5-3" is 5, and
// "--1" or "" fail.
func ParseAmount(raw string) (float64, bool) {
	s := StripAmount(raw)
	end := 0
	if end < len(s) && s[end] == '-' {
		end++
	}
	digits := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		frac := end + 1
		for frac < len(s) && s[frac] >= '0' && s[frac] <= '9' {
			frac++
			digits++
		}
		if digits > 0 {
			end = frac
		}
	}
	if digits == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Amount is the receipt amount for raw: the parsed magnitude, or 0.
func Amount(raw string) float64 {
	v, ok := ParseAmount(raw)
	if !ok {
		return 0
	}
	return math.Abs(v)
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"01/02/06",
	"1/2/06",
	"01-02-06",
	"1-2-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Mon, 02 Jan 2006",
	"Mon Jan 2 2006",
}

// Excel stores dates as day serials; values in this window are treated as
// dates (roughly 1954 to 2119).
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// ParseDate returns raw as a YYYY-MM-DD calendar date. Month-first is
// assumed for ambiguous slash and dash forms. Timestamps carrying an offset
// are read as their UTC day.
func ParseDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.DateOnly), true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

// DateOr returns the parsed date of raw, or now's UTC calendar date.
func DateOr(raw string, now time.Time) string {
	if d, ok := ParseDate(raw); ok {
		return d
	}
	return now.UTC().Format(time.DateOnly)
}
