package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormats are the date layouts accepted across the three channels, tried
// in order
var DateFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02012006",
	"02-01-2006",
}

// TimeFormats are the time-of-day layouts accepted across the three channels
var TimeFormats = []string{
	"15:04:05",
	"15:04",
	"150405",
	"1504",
}

// ParseDate parses a raw date string against the accepted layouts
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("date value is empty")
	}

	for _, format := range DateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}

	// Spreadsheet cells sometimes surface as an Excel serial day count.
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 25569 && serial < 80000 {
		return ExcelSerialToTime(serial), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", value)
}

// ParseTimeOfDay parses a raw time string against the accepted layouts
func ParseTimeOfDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("time value is empty")
	}

	for _, format := range TimeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q", value)
}

// CombineDateTime merges a parsed date and a parsed time-of-day into one
// timestamp. A zero time-of-day leaves the date's own clock untouched.
func CombineDateTime(date, clock time.Time) time.Time {
	if clock.IsZero() {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, date.Location())
}

// ExcelSerialToTime converts an Excel serial day count to a time.Time.
// Serial day 0 is 1899-12-30 in Excel's 1900 date system.
func ExcelSerialToTime(serial float64) time.Time {
	epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(serial)
	frac := serial - float64(days)
	return epoch.AddDate(0, 0, days).Add(time.Duration(frac * float64(24*time.Hour)))
}

// ParseAmount parses a monetary amount as partners write it: optional
// currency symbols, Latin thousands separators, comma or dot decimals.
// Examples: "1250000", "1.250.000", "1.250.000,50", "$ 1,250,000.50".
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount value is empty")
	}

	// Strip currency decorations.
	for _, junk := range []string{"$", "COP", "USD", " ", " "} {
		s = strings.ReplaceAll(s, junk, "")
	}
	if s == "" || s == "-" {
		return decimal.Zero, fmt.Errorf("amount value is empty after cleanup: %q", raw)
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		// The rightmost separator is the decimal mark.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case commas == 1:
		// A comma followed by exactly three digits is a thousands separator.
		if tail := s[strings.Index(s, ",")+1:]; len(tail) == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	case dots == 1:
		if tail := s[strings.Index(s, ".")+1:]; len(tail) == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	return amount, nil
}

// ParseQuantity parses an integer count, tolerating decimal renderings such
// as "12.0" that spreadsheet exports produce
func ParseQuantity(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("quantity value is empty")
	}

	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", raw, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("quantity %q is not a whole number", raw)
	}

	return int(d.IntPart()), nil
}
