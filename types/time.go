package types

import (
	"fmt"
	"time"
)

// TimeSec is a chain timestamp with one-second resolution, stored as
// seconds since the Unix epoch. Consensus code uses it instead of
// time.Time so that serialization and comparison stay deterministic.
type TimeSec int64

// TimeFromUnix converts a Unix-seconds value into a TimeSec.
func TimeFromUnix(sec int64) TimeSec {
	return TimeSec(sec)
}

// TimeFromTime truncates a time.Time to one-second resolution.
func TimeFromTime(t time.Time) TimeSec {
	return TimeSec(t.Unix())
}

// Unix returns the timestamp as seconds since the epoch.
func (t TimeSec) Unix() int64 {
	return int64(t)
}

// Time converts back to a time.Time in UTC.
func (t TimeSec) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Add returns the timestamp shifted by d seconds.
func (t TimeSec) Add(d int64) TimeSec {
	return t + TimeSec(d)
}

// Sub returns the difference t - other in seconds.
func (t TimeSec) Sub(other TimeSec) int64 {
	return int64(t) - int64(other)
}

// Before reports whether t is strictly earlier than other.
func (t TimeSec) Before(other TimeSec) bool {
	return t < other
}

// After reports whether t is strictly later than other.
func (t TimeSec) After(other TimeSec) bool {
	return t > other
}

// IsZero reports whether the timestamp is the epoch zero value.
func (t TimeSec) IsZero() bool {
	return t == 0
}

// String formats the timestamp as RFC 3339 UTC.
func (t TimeSec) String() string {
	return t.Time().Format(time.RFC3339)
}

// ParseTimeSec parses an RFC 3339 timestamp.
func ParseTimeSec(s string) (TimeSec, error) {
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return TimeFromTime(tm), nil
}
