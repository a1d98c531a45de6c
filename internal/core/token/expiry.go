package token

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ParseExpiry reads a compact duration such as "30s", "15m", "12h" or "7d".
// Unparseable, non-positive or overflowing input yields fallback instead of an error so a
// misconfigured secret store cannot take the token service down.
func ParseExpiry(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return fallback
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return fallback
	}

	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n <= 0 || n > math.MaxInt64/int64(unit) {
		return fallback
	}
	return time.Duration(n) * unit
}
