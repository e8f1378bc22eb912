package mediatime

// Mode selects how raw pipeline timestamps are interpreted.
type Mode int

const (
	// ModeRealtimeClock: the pipeline runs on the realtime clock. A buffer
	// timestamp is the running time since play start; adding the base time
	// yields nanoseconds since the Unix epoch.
	ModeRealtimeClock Mode = iota

	// ModeNTP: buffer timestamps are nanoseconds since the NTP epoch
	// (1900-01-01 00:00:00 UTC). Base time is ignored.
	ModeNTP

	// ModeTAI: buffer timestamps are already nanoseconds since
	// 1970-01-01 00:00:00 TAI and are used directly.
	ModeTAI
)

func (m Mode) String() string {
	switch m {
	case ModeRealtimeClock:
		return "realtime-clock"
	case ModeNTP:
		return "ntp"
	case ModeTAI:
		return "tai"
	default:
		return "unknown"
	}
}

// Normalizer converts raw pipeline timestamps to canonical Timestamps.
// It is configured once at session start and never mutated.
type Normalizer struct {
	Mode Mode

	// Base is the pipeline clock value (nanoseconds since the Unix epoch)
	// at which the pipeline began running. Consulted only in
	// ModeRealtimeClock.
	Base ClockTime
}

// Timestamp converts a buffer timestamp. An unavailable input, or an
// unavailable base time in realtime mode, yields none; no error is
// raised because downstream logic treats none as "never index".
func (n Normalizer) Timestamp(pts ClockTime) Timestamp {
	if !pts.IsValid() {
		return None
	}
	switch n.Mode {
	case ModeRealtimeClock:
		if !n.Base.IsValid() {
			return None
		}
		return FromUnixNanos(n.Base.Nanoseconds() + pts.Nanoseconds())
	case ModeNTP:
		return FromNTPNanos(pts.Nanoseconds())
	case ModeTAI:
		return FromTAINanos(pts.Nanoseconds())
	default:
		return None
	}
}
