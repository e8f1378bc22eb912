package sink

import (
	"time"

	"streamvault/mediatime"
)

// shouldIndex decides whether a buffer gets an index record. A buffer with
// no usable timestamp is never indexed. Random-access buffers are indexed
// once at least minInterval has passed since the last record; other buffers
// are indexed only when the index has gone stale, more than maxInterval
// past the last record (or past the first valid timestamp when no record
// exists yet).
func shouldIndex(ts, lastIndex, firstValid mediatime.Timestamp, randomAccess bool,
	minInterval, maxInterval time.Duration) bool {

	if !ts.IsValid() {
		return false
	}
	if lastIndex.IsValid() {
		if randomAccess {
			return !ts.Before(lastIndex.Add(minInterval))
		}
		return ts.After(lastIndex.Add(maxInterval))
	}
	if randomAccess {
		return true
	}
	if firstValid.IsValid() {
		return ts.After(firstValid.Add(maxInterval))
	}
	return false
}

// isDiscontinuity marks the start of a new independently decodable run:
// the source flagged a gap or resync point, this is the session's first
// write, or the session is emitting its first index record.
func isDiscontinuity(flags BufferFlags, includeInIndex bool,
	buffersWritten uint64, lastIndex mediatime.Timestamp) bool {

	if flags&(FlagDiscont|FlagResync) != 0 {
		return true
	}
	if buffersWritten == 0 {
		return true
	}
	return includeInIndex && !lastIndex.IsValid()
}
