package utils

import (
	"math"
	"time"
)

// UnknownIP is recorded when no client address can be determined.
const UnknownIP = "0.0.0.0"

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

// MillisToTime converts a client epoch-millisecond timestamp to UTC.
func MillisToTime(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

// ParseRFC3339 parses an optional query timestamp. Blank input yields nil.
func ParseRFC3339(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
