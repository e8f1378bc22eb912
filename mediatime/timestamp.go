// Package mediatime provides the canonical timestamp used for indexing
// and retention decisions.
//
// A Timestamp counts nanoseconds since 1970-01-01 00:00:00 TAI
// (International Atomic Time, leap-second aware). All pipeline clock
// domains are converted to this single representation before any
// comparison. The zero value is "none": arithmetic on none yields none
// and comparisons yield false, never a panic.
package mediatime

import (
	"fmt"
	"time"
)

const (
	nanosPerSecond = uint64(time.Second)

	// ntpToUnixSeconds is the offset between the NTP epoch
	// (1900-01-01 00:00:00 UTC) and the Unix epoch (1970-01-01).
	ntpToUnixSeconds = 2_208_988_800

	// taiUTCOffsetSeconds is the TAI-UTC offset, constant at 37 seconds
	// since 2017-01-01. Inputs anchored to UTC-like epochs (realtime
	// clock, NTP) do not count leap seconds and must be corrected.
	taiUTCOffsetSeconds = 37
)

// ClockTime is a raw pipeline time value in nanoseconds, with a
// distinguished none sentinel matching the pipeline's representation.
type ClockTime uint64

// ClockTimeNone marks an unavailable pipeline time value.
const ClockTimeNone = ClockTime(^uint64(0))

// IsValid reports whether the clock time carries a value.
func (c ClockTime) IsValid() bool { return c != ClockTimeNone }

// Nanoseconds returns the raw nanosecond count. Only meaningful when
// IsValid is true.
func (c ClockTime) Nanoseconds() uint64 { return uint64(c) }

// Timestamp is an optional nanosecond count since the TAI epoch.
// The zero value is none.
type Timestamp struct {
	nanos uint64
	valid bool
}

// None is the invalid/unknown timestamp.
var None = Timestamp{}

// FromTAINanos interprets ns as nanoseconds since 1970-01-01 00:00:00 TAI.
func FromTAINanos(ns uint64) Timestamp {
	return Timestamp{nanos: ns, valid: true}
}

// FromUnixNanos interprets ns as nanoseconds since the Unix epoch
// (1970-01-01 00:00:00 UTC, not counting leap seconds) and applies the
// TAI-UTC correction.
func FromUnixNanos(ns uint64) Timestamp {
	return Timestamp{nanos: ns + taiUTCOffsetSeconds*nanosPerSecond, valid: true}
}

// FromNTPNanos interprets ns as nanoseconds since the NTP epoch
// (1900-01-01 00:00:00 UTC, not counting leap seconds). Values before
// the Unix epoch are out of range and yield none.
func FromNTPNanos(ns uint64) Timestamp {
	if ns < ntpToUnixSeconds*nanosPerSecond {
		return None
	}
	return FromUnixNanos(ns - ntpToUnixSeconds*nanosPerSecond)
}

// FromTime converts a wall-clock time. Zero or pre-epoch times yield none.
func FromTime(t time.Time) Timestamp {
	if t.IsZero() || t.Unix() < 0 {
		return None
	}
	return FromUnixNanos(uint64(t.UnixNano()))
}

// IsValid reports whether the timestamp carries a value.
func (t Timestamp) IsValid() bool { return t.valid }

// Nanoseconds returns the nanosecond count since the TAI epoch and
// whether the timestamp is valid.
func (t Timestamp) Nanoseconds() (uint64, bool) { return t.nanos, t.valid }

// Add offsets the timestamp by d. Adding to none yields none, as does
// any result that would fall before the epoch.
func (t Timestamp) Add(d time.Duration) Timestamp {
	if !t.valid {
		return None
	}
	if d >= 0 {
		return Timestamp{nanos: t.nanos + uint64(d), valid: true}
	}
	sub := uint64(-d)
	if sub > t.nanos {
		return None
	}
	return Timestamp{nanos: t.nanos - sub, valid: true}
}

// After reports whether t is strictly after o. False if either is none.
func (t Timestamp) After(o Timestamp) bool {
	return t.valid && o.valid && t.nanos > o.nanos
}

// Before reports whether t is strictly before o. False if either is none.
func (t Timestamp) Before(o Timestamp) bool {
	return t.valid && o.valid && t.nanos < o.nanos
}

// Sub returns t minus o as a duration. The second return is false if either
// timestamp is none.
func (t Timestamp) Sub(o Timestamp) (time.Duration, bool) {
	if !t.valid || !o.valid {
		return 0, false
	}
	return time.Duration(t.nanos) - time.Duration(o.nanos), true
}

// ToTime converts to a wall-clock time by removing the TAI-UTC offset.
// The second return is false if the timestamp is none.
func (t Timestamp) ToTime() (time.Time, bool) {
	if !t.valid {
		return time.Time{}, false
	}
	unixNanos := int64(t.nanos) - taiUTCOffsetSeconds*int64(nanosPerSecond)
	return time.Unix(0, unixNanos).UTC(), true
}

func (t Timestamp) String() string {
	wall, ok := t.ToTime()
	if !ok {
		return "none"
	}
	return fmt.Sprintf("%s (%d ns)", wall.Format(time.RFC3339Nano), t.nanos)
}
