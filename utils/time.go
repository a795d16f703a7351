package utils

import "time"

// ParseDurationOr parses a config duration string, falling back when the
// value is empty or malformed.
func ParseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}

	return d
}
