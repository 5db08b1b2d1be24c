// Package timestamp provides standardized Unix timestamp handling utilities.
//
// All timestamps in the service are int64 milliseconds since the Unix epoch
// (UTC). Upstream analyzers are uncoordinated and not all of them agree on a
// time encoding, so Parse accepts the common variants (ms, seconds, RFC3339,
// time.Time) and normalizes them.
//
// Zero value semantics:
//   - A timestamp value of 0 means "not set" or "unknown"
//   - Functions handle zero values gracefully, returning appropriate defaults
package timestamp

import (
	"fmt"
	"strconv"
	"time"
)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format converts Unix milliseconds to RFC3339 string for display.
// Returns empty string if timestamp is 0.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// normalizeEpoch interprets a numeric epoch value as milliseconds.
// Values at or below 1e12 (before Sep 2001 in ms) are taken as seconds.
func normalizeEpoch(v int64) int64 {
	if v == 0 {
		return 0
	}
	if v > 1e12 {
		return v
	}
	return v * 1000
}

// Parse converts various timestamp encodings to Unix milliseconds.
// Supports:
//   - int64/int/int32 (milliseconds when > 1e12, otherwise seconds)
//   - float64 (same heuristic)
//   - string (RFC3339, or a numeric epoch string)
//   - time.Time / *time.Time
//   - nil (returns 0)
//
// Returns 0 for invalid input or parsing errors.
func Parse(input any) int64 {
	switch v := input.(type) {
	case nil:
		return 0

	case int64:
		return normalizeEpoch(v)

	case int:
		return normalizeEpoch(int64(v))

	case int32:
		return normalizeEpoch(int64(v))

	case float64:
		if v == 0 {
			return 0
		}
		if v > 1e12 {
			return int64(v)
		}
		return int64(v * 1000)

	case string:
		if v == "" {
			return 0
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return ToUnixMs(t)
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return normalizeEpoch(n)
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return Parse(f)
		}
		return 0

	case time.Time:
		return ToUnixMs(v)

	case *time.Time:
		if v == nil {
			return 0
		}
		return ToUnixMs(*v)

	default:
		return 0
	}
}

// IsZero checks if a timestamp is unset (zero).
func IsZero(ms int64) bool {
	return ms == 0
}

// Since returns the duration since the given timestamp.
// Returns 0 if timestamp is zero.
func Since(ms int64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Since(time.UnixMilli(ms))
}

// Between returns the duration between two timestamps.
// Returns 0 if either timestamp is zero.
func Between(start, end int64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return time.UnixMilli(end).Sub(time.UnixMilli(start))
}

// Min returns the earlier of two timestamps.
// Zero values are treated as "later than any other time".
func Min(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// Max returns the later of two timestamps.
// Zero values are treated as "earlier than any other time".
func Max(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a > b {
		return a
	}
	return b
}

// JoinGap returns the absolute spread between two observation timestamps.
// Returns 0 when either side is unset.
func JoinGap(a, b int64) time.Duration {
	if a == 0 || b == 0 {
		return 0
	}
	return Between(Min(a, b), Max(a, b))
}

// Validate checks if a timestamp is valid (non-negative and reasonable).
// Returns an error if the timestamp is negative or unreasonably large.
func Validate(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("timestamp cannot be negative: %d", ms)
	}
	// Check if timestamp is unreasonably far in the future (year 3000)
	if ms > 32503680000000 {
		return fmt.Errorf("timestamp too far in future: %d", ms)
	}
	return nil
}
