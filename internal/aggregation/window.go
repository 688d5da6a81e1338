package aggregation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"item-record-service/internal/models"
)

// DateLayout is the calendar date format accepted by the sales-by-date report.
const DateLayout = "2006-01-02"

// DayWindow returns the half-open interval [start, end) covering the calendar
// date in loc. end is always start + 24h.
func DayWindow(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("day window requires a location")
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("date is required")
	}

	start, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}

	return start, start.Add(24 * time.Hour), nil
}

// InWindow reports whether t falls in [start, end).
func InWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// FilterWindow keeps the records recorded in [start, end), preserving order.
func FilterWindow(records []*models.Record, start, end time.Time) []*models.Record {
	out := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r != nil && InWindow(r.Timestamp, start, end) {
			out = append(out, r)
		}
	}
	return out
}

// ParseOffset resolves a day-boundary setting into a location. It accepts fixed
// offsets (+05:30, -0400, Z, UTC) and IANA zone names (Asia/Kolkata).
func ParseOffset(value string) (*time.Location, error) {
	// an unescaped '+' in a query string arrives as a space
	if strings.HasPrefix(value, " ") {
		value = "+" + strings.TrimLeft(value, " ")
	}
	value = strings.TrimSpace(value)

	switch strings.ToUpper(value) {
	case "":
		return nil, fmt.Errorf("offset is required")
	case "Z", "UTC":
		return time.UTC, nil
	}

	if value[0] == '+' || value[0] == '-' {
		return parseFixedOffset(value)
	}

	loc, err := time.LoadLocation(value)
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q: %w", value, err)
	}
	return loc, nil
}

func parseFixedOffset(value string) (*time.Location, error) {
	sign := 1
	if value[0] == '-' {
		sign = -1
	}
	digits := strings.Replace(value[1:], ":", "", 1)
	if len(digits) != 4 || !allDigits(digits) {
		return nil, fmt.Errorf("invalid offset %q, expected ±HH:MM", value)
	}

	hours, err := strconv.Atoi(digits[:2])
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q, expected ±HH:MM", value)
	}
	minutes, err := strconv.Atoi(digits[2:])
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q, expected ±HH:MM", value)
	}
	if hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("offset %q out of range", value)
	}

	seconds := sign * (hours*3600 + minutes*60)
	return time.FixedZone(FormatOffset(seconds), seconds), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatOffset renders seconds east of UTC as ±HH:MM.
func FormatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

// LocationLabel describes loc for API responses: the zone name for IANA
// locations, the numeric offset at t otherwise.
func LocationLabel(loc *time.Location, t time.Time) string {
	if loc == nil {
		return ""
	}
	name := loc.String()
	if strings.Contains(name, "/") || name == "UTC" {
		return name
	}
	_, offset := t.In(loc).Zone()
	return FormatOffset(offset)
}
