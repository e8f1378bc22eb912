package index

import (
	"errors"
	"fmt"
	"sort"

	"streamvault/bytestream"
	"streamvault/mediatime"
)

// SearchMethod selects which side of a search target to resolve to.
type SearchMethod int

const (
	// Before resolves to the latest record at or before the target.
	Before SearchMethod = iota
	// After resolves to the earliest record at or after the target.
	After
)

var ErrNoMatchingRecord = errors.New("no index record matches the search")

// Entry is a located record together with its position on the index stream.
// Position is what truncation feeds to TruncateBefore on the index stream.
type Entry struct {
	Record   Record
	Position uint64
}

// Searcher runs binary searches over an index stream. Records are fixed
// size and ordered, so any record is addressable by position without
// scanning.
type Searcher struct {
	stream bytestream.Reader
}

func NewSearcher(stream bytestream.Reader) *Searcher {
	return &Searcher{stream: stream}
}

// bounds returns the position of the first readable record and the number
// of whole records up to the tail.
func (s *Searcher) bounds() (first, count uint64, err error) {
	head, err := s.stream.HeadOffset()
	if err != nil {
		return 0, 0, fmt.Errorf("index head: %w", err)
	}
	tail, err := s.stream.TailOffset()
	if err != nil {
		return 0, 0, fmt.Errorf("index tail: %w", err)
	}
	first = head
	if rem := first % RecordSize; rem != 0 {
		first += RecordSize - rem
	}
	if tail <= first {
		return first, 0, nil
	}
	return first, (tail - first) / RecordSize, nil
}

func (s *Searcher) readAt(pos uint64) (Record, error) {
	var buf [RecordSize]byte
	if _, err := s.stream.ReadAt(buf[:], pos); err != nil {
		return Record{}, fmt.Errorf("read index record at %d: %w", pos, err)
	}
	return decodeRecord(buf[:])
}

// First returns the earliest retained record.
func (s *Searcher) First() (Entry, error) {
	first, count, err := s.bounds()
	if err != nil {
		return Entry{}, err
	}
	if count == 0 {
		return Entry{}, ErrNoMatchingRecord
	}
	r, err := s.readAt(first)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Record: r, Position: first}, nil
}

// Last returns the most recent record.
func (s *Searcher) Last() (Entry, error) {
	first, count, err := s.bounds()
	if err != nil {
		return Entry{}, err
	}
	if count == 0 {
		return Entry{}, ErrNoMatchingRecord
	}
	pos := first + (count-1)*RecordSize
	r, err := s.readAt(pos)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Record: r, Position: pos}, nil
}

// Records returns every retained record in stream order.
func (s *Searcher) Records() ([]Entry, error) {
	first, count, err := s.bounds()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		pos := first + i*RecordSize
		r, err := s.readAt(pos)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Record: r, Position: pos})
	}
	return entries, nil
}

// LocateTimestamp finds the record nearest the timestamp. With Before it
// returns the latest record at or before ts; with After, the earliest
// record at or after ts. ErrNoMatchingRecord means no record on the chosen
// side exists.
func (s *Searcher) LocateTimestamp(ts mediatime.Timestamp, method SearchMethod) (Entry, error) {
	target, ok := ts.Nanoseconds()
	if !ok {
		return Entry{}, ErrMissingTimestamp
	}

	first, count, err := s.bounds()
	if err != nil {
		return Entry{}, err
	}
	if count == 0 {
		return Entry{}, ErrNoMatchingRecord
	}

	// i is the earliest record with timestamp > target.
	var readErr error
	i := sort.Search(int(count), func(n int) bool {
		if readErr != nil {
			return false
		}
		r, err := s.readAt(first + uint64(n)*RecordSize)
		if err != nil {
			readErr = err
			return false
		}
		nanos, _ := r.Timestamp.Nanoseconds()
		return nanos > target
	})
	if readErr != nil {
		return Entry{}, readErr
	}

	switch method {
	case Before:
		if i == 0 {
			return Entry{}, ErrNoMatchingRecord
		}
		i--
	case After:
		// Step back while the previous record still satisfies >= target,
		// so ties resolve to the earliest matching record.
		for i > 0 {
			r, err := s.readAt(first + uint64(i-1)*RecordSize)
			if err != nil {
				return Entry{}, err
			}
			nanos, _ := r.Timestamp.Nanoseconds()
			if nanos < target {
				break
			}
			i--
		}
		if i == int(count) {
			return Entry{}, ErrNoMatchingRecord
		}
	}

	pos := first + uint64(i)*RecordSize
	r, err := s.readAt(pos)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Record: r, Position: pos}, nil
}

// LocateSize finds a record by retained byte count. A record's retained
// size is the distance from its data offset to the last record's data
// offset; it shrinks with position. With Before the result is the latest
// record retaining at least the budget, with After the earliest record
// retaining less than the budget.
func (s *Searcher) LocateSize(budget uint64, method SearchMethod) (Entry, error) {
	first, count, err := s.bounds()
	if err != nil {
		return Entry{}, err
	}
	if count == 0 {
		return Entry{}, ErrNoMatchingRecord
	}

	last, err := s.readAt(first + (count-1)*RecordSize)
	if err != nil {
		return Entry{}, err
	}

	// i is the earliest record retaining less than the budget.
	var readErr error
	i := sort.Search(int(count), func(n int) bool {
		if readErr != nil {
			return false
		}
		r, err := s.readAt(first + uint64(n)*RecordSize)
		if err != nil {
			readErr = err
			return false
		}
		return last.Offset-r.Offset < budget
	})
	if readErr != nil {
		return Entry{}, readErr
	}

	switch method {
	case Before:
		if i == 0 {
			return Entry{}, ErrNoMatchingRecord
		}
		i--
	case After:
		if i == int(count) {
			return Entry{}, ErrNoMatchingRecord
		}
	}

	pos := first + uint64(i)*RecordSize
	r, err := s.readAt(pos)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Record: r, Position: pos}, nil
}
