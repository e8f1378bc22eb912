package sink

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"streamvault/bytestream"
	"streamvault/event"
	"streamvault/index"
	"streamvault/mediatime"
	"streamvault/retention"
)

func newTestSink(t *testing.T, mutate func(*Config)) (*Sink, *bytestream.Store) {
	t.Helper()
	store, err := bytestream.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := Config{
		Scope:       "cam",
		Stream:      "front",
		AllowCreate: true,
		Mode:        mediatime.ModeTAI,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(store, cfg), store
}

// keyframe builds a random-access buffer at sec seconds.
func keyframe(sec float64, payload string) Buffer {
	return Buffer{
		PTS:     mediatime.ClockTime(sec * float64(time.Second)),
		Payload: []byte(payload),
	}
}

// delta builds a dependent buffer at sec seconds.
func delta(sec float64, payload string) Buffer {
	b := keyframe(sec, payload)
	b.Flags |= FlagDeltaUnit
	return b
}

func indexEntries(t *testing.T, store *bytestream.Store, scope, stream string) []index.Entry {
	t.Helper()
	r, err := store.OpenReader(scope, index.StreamName(stream))
	if err != nil {
		t.Fatalf("open index reader: %v", err)
	}
	defer r.Close()
	entries, err := index.NewSearcher(r).Records()
	if err != nil {
		t.Fatalf("read index records: %v", err)
	}
	return entries
}

func dataEvents(t *testing.T, store *bytestream.Store, scope, stream string) []event.Event {
	t.Helper()
	r, err := store.OpenReader(scope, stream)
	if err != nil {
		t.Fatalf("open data reader: %v", err)
	}
	defer r.Close()
	tail, err := r.TailOffset()
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	raw := make([]byte, tail)
	if tail > 0 {
		if _, err := r.ReadAt(raw, 0); err != nil {
			t.Fatalf("read data stream: %v", err)
		}
	}
	var events []event.Event
	buf := bytes.NewReader(raw)
	for {
		ev, err := event.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

func TestKeyframeIndexingScenario(t *testing.T) {
	s, store := newTestSink(t, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Key frames at 0, 0.2, 0.6, 11 seconds. The 0.2 frame falls inside
	// the minimum index interval and must be skipped.
	for _, ts := range []float64{0, 0.2, 0.6, 11} {
		if err := s.Render(keyframe(ts, "frame")); err != nil {
			t.Fatalf("Render(%v): %v", ts, err)
		}
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	entries := indexEntries(t, store, "cam", "front")
	if len(entries) != 4 {
		t.Fatalf("index records = %d, want 4 (three indexed frames plus terminal)", len(entries))
	}

	wantNanos := []uint64{
		0,
		uint64(600 * time.Millisecond),
		uint64(11 * time.Second),
		uint64(11*time.Second + time.Nanosecond),
	}
	for i, e := range entries {
		nanos, ok := e.Record.Timestamp.Nanoseconds()
		if !ok || nanos != wantNanos[i] {
			t.Errorf("record %d timestamp = %d (%v), want %d", i, nanos, ok, wantNanos[i])
		}
		if i > 0 && e.Record.Offset < entries[i-1].Record.Offset {
			t.Errorf("record %d offset %d decreased", i, e.Record.Offset)
		}
	}
	if !entries[0].Record.Discontinuity {
		t.Error("first record should mark a discontinuity")
	}
	if !entries[0].Record.RandomAccess || !entries[2].Record.RandomAccess {
		t.Error("indexed key frames should be random access")
	}
	final := entries[3].Record
	if final.RandomAccess || final.Discontinuity {
		t.Errorf("terminal record flags = %+v, want both false", final)
	}

	events := dataEvents(t, store, "cam", "front")
	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}
	wantIncluded := []bool{true, false, true, true}
	for i, ev := range events {
		if ev.IncludeInIndex != wantIncluded[i] {
			t.Errorf("event %d IncludeInIndex = %v, want %v", i, ev.IncludeInIndex, wantIncluded[i])
		}
	}
	// Index records point at the event that triggered them.
	if entries[1].Record.Offset != uint64(2*(event.HeaderSize+len("frame"))) {
		t.Errorf("second record offset = %d, want start of third event", entries[1].Record.Offset)
	}
}

func TestDeltaOnlyForcedIndex(t *testing.T) {
	s, store := newTestSink(t, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Delta frames every second from 0 to 15: nothing is indexable until
	// the max interval since the first valid timestamp is exceeded.
	for ts := 0.0; ts <= 15; ts++ {
		if err := s.Render(delta(ts, "d")); err != nil {
			t.Fatalf("Render(%v): %v", ts, err)
		}
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	entries := indexEntries(t, store, "cam", "front")
	if len(entries) != 2 {
		t.Fatalf("index records = %d, want 2 (forced plus terminal)", len(entries))
	}
	nanos, _ := entries[0].Record.Timestamp.Nanoseconds()
	if nanos != uint64(11*time.Second) {
		t.Errorf("forced record at %d ns, want t=11s", nanos)
	}
	if entries[0].Record.RandomAccess {
		t.Error("forced delta record should not claim random access")
	}
	if !entries[0].Record.Discontinuity {
		t.Error("first index record of the session should mark a discontinuity")
	}
}

func TestStopWithoutBuffers(t *testing.T) {
	s, store := newTestSink(t, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if entries := indexEntries(t, store, "cam", "front"); len(entries) != 0 {
		t.Errorf("index records = %d, want none", len(entries))
	}
}

func TestTerminalRecordUsesDuration(t *testing.T) {
	s, store := newTestSink(t, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	b := keyframe(1, "payload")
	b.Duration = mediatime.ClockTime(100 * time.Millisecond)
	if err := s.Render(b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	entries := indexEntries(t, store, "cam", "front")
	if len(entries) != 2 {
		t.Fatalf("index records = %d, want 2", len(entries))
	}
	final := entries[1].Record
	nanos, _ := final.Timestamp.Nanoseconds()
	if nanos != uint64(time.Second+100*time.Millisecond) {
		t.Errorf("terminal timestamp = %d, want 1.1s", nanos)
	}
	if want := uint64(event.HeaderSize + len("payload")); final.Offset != want {
		t.Errorf("terminal offset = %d, want %d", final.Offset, want)
	}
}

func TestLifecycleErrors(t *testing.T) {
	s, _ := newTestSink(t, nil)

	if err := s.Render(keyframe(0, "x")); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Render before Start: %v, want ErrNotStarted", err)
	}
	if err := s.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop before Start: %v, want ErrNotStarted", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("double Start: %v, want ErrAlreadyStarted", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// A stopped sink can start again.
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
}

func TestStartConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "min exceeds max",
			mutate:  func(c *Config) { c.IndexMinInterval = time.Minute; c.IndexMaxInterval = time.Second },
			wantErr: ErrInvalidIndexInterval,
		},
		{
			name:    "missing scope",
			mutate:  func(c *Config) { c.Scope = "" },
			wantErr: ErrMissingScope,
		},
		{
			name:    "missing stream",
			mutate:  func(c *Config) { c.Stream = "" },
			wantErr: ErrMissingStream,
		},
		{
			name:    "retention days without limit",
			mutate:  func(c *Config) { c.RetentionType = retention.Days },
			wantErr: retention.ErrMissingDays,
		},
		{
			name:    "missing stream storage",
			mutate:  func(c *Config) { c.AllowCreate = false },
			wantErr: bytestream.ErrStreamNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSink(t, tt.mutate)
			if err := s.Start(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Start err = %v, want %v", err, tt.wantErr)
			}
			// A failed start leaves the sink stopped.
			if err := s.Render(keyframe(0, "x")); !errors.Is(err, ErrNotStarted) {
				t.Errorf("Render after failed start: %v, want ErrNotStarted", err)
			}
		})
	}
}

func TestSealOnStop(t *testing.T) {
	s, store := newTestSink(t, func(c *Config) { c.SealOnStop = true })
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Render(keyframe(0, "x")); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if _, err := store.OpenWriter("cam", "front", false); !errors.Is(err, bytestream.ErrSealed) {
		t.Errorf("data stream reopen: %v, want ErrSealed", err)
	}
	if _, err := store.OpenWriter("cam", index.StreamName("front"), false); !errors.Is(err, bytestream.ErrSealed) {
		t.Errorf("index stream reopen: %v, want ErrSealed", err)
	}
}

func TestSyncAfterMakesDataVisible(t *testing.T) {
	s, store := newTestSink(t, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	b := keyframe(1, "visible")
	b.Flags |= FlagSyncAfter
	if err := s.Render(b); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// The buffer asked for a durability flush, so the event is readable
	// before Stop.
	events := dataEvents(t, store, "cam", "front")
	if len(events) != 1 || string(events[0].Payload) != "visible" {
		t.Fatalf("events = %+v, want the flushed buffer", events)
	}
}

func TestRetentionMaintainerLifecycle(t *testing.T) {
	budget := uint64(1 << 30)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC))
	s, _ := newTestSink(t, func(c *Config) {
		c.RetentionType = retention.Bytes
		c.RetentionBytes = &budget
		c.Clock = clock
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Render(keyframe(0, "x")); err != nil {
		t.Fatalf("Render: %v", err)
	}
	// Stop must join the maintainer without hanging.
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
