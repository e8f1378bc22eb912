package sink

import "streamvault/mediatime"

// BufferFlags mirror the pipeline flags the sink acts on.
type BufferFlags uint32

const (
	// FlagDeltaUnit marks a buffer that depends on earlier data. Its
	// absence marks a random-access point.
	FlagDeltaUnit BufferFlags = 1 << iota
	// FlagDiscont marks a gap relative to the preceding buffer.
	FlagDiscont
	// FlagResync marks a point where downstream may resynchronize.
	FlagResync
	// FlagSyncAfter requests a durability flush after this buffer.
	FlagSyncAfter
)

// Buffer is one data unit handed to Render.
type Buffer struct {
	// PTS is the presentation timestamp in the configured clock domain.
	PTS mediatime.ClockTime
	// Duration is the buffer's play-out duration, or none.
	Duration mediatime.ClockTime
	Flags    BufferFlags
	Payload  []byte
}

// randomAccess reports whether the buffer can start a readable run.
func (b Buffer) randomAccess() bool { return b.Flags&FlagDeltaUnit == 0 }
