// Package sink persists time-ordered pipeline buffers to an append-only
// data stream while maintaining a secondary index stream for time-based
// seeking, with background retention truncating both.
//
// A sink is a two-state machine: Start opens the streams and spawns the
// retention maintainer, Render appends one buffer at a time, Stop writes
// the terminal index record and tears everything down. Render calls are
// expected to be sequential; the sink serializes them regardless.
package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"streamvault/bytestream"
	"streamvault/event"
	"streamvault/index"
	"streamvault/internal/logging"
	"streamvault/mediatime"
	"streamvault/retention"
)

var (
	ErrNotStarted     = errors.New("sink is not started")
	ErrAlreadyStarted = errors.New("sink is already started")
)

// session is the per-start state, created at Start and dropped at Stop.
// Data writes are buffered; index records go straight to the stream so an
// appended record is immediately visible to index readers.
type session struct {
	data  *countingWriter
	idx   bytestream.Writer
	index *index.Writer

	normalizer mediatime.Normalizer
	maintainer *retention.Maintainer
	logger     *slog.Logger

	firstValidTime mediatime.Timestamp
	lastIndexTime  mediatime.Timestamp

	// finalTimestamp and finalOffset are the terminal index record
	// candidates, refreshed after every successful write.
	finalTimestamp mediatime.Timestamp
	finalOffset    uint64
	hasFinal       bool

	buffersWritten uint64
}

// Sink writes one stream pair. Construct with New, then drive it through
// Start, Render, Stop.
type Sink struct {
	store  *bytestream.Store
	cfg    Config
	logger *slog.Logger

	mu  sync.Mutex
	ses *session
}

func New(store *bytestream.Store, cfg Config) *Sink {
	cfg = cfg.withDefaults()
	return &Sink{
		store:  store,
		cfg:    cfg,
		logger: logging.Default(cfg.Logger).With("component", "sink"),
	}
}

// Start validates the configuration, opens the data and index streams
// positioned at their tails, and spawns the retention maintainer when the
// policy calls for one. Any failure leaves the sink stopped with nothing
// held open.
func (s *Sink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ses != nil {
		return ErrAlreadyStarted
	}
	if err := s.cfg.validate(); err != nil {
		return err
	}
	policy, err := retention.NewPolicy(s.cfg.RetentionType, s.cfg.RetentionDays, s.cfg.RetentionBytes)
	if err != nil {
		return err
	}

	indexStream := index.StreamName(s.cfg.Stream)

	dataW, err := s.store.OpenWriter(s.cfg.Scope, s.cfg.Stream, s.cfg.AllowCreate)
	if err != nil {
		return fmt.Errorf("open data stream: %w", err)
	}
	idxW, err := s.store.OpenWriter(s.cfg.Scope, indexStream, s.cfg.AllowCreate)
	if err != nil {
		dataW.Close()
		return fmt.Errorf("open index stream: %w", err)
	}

	ses := &session{
		data: newCountingWriter(dataW, s.cfg.WriteBufferSize),
		idx:  idxW,
		normalizer: mediatime.Normalizer{
			Mode: s.cfg.Mode,
			Base: s.cfg.Base,
		},
		logger: s.logger.With("session", uuid.NewString()),
	}
	ses.index = index.NewWriter(idxW)

	if policy.Enabled() {
		maintainer, err := s.openMaintainer(policy, indexStream, ses.logger)
		if err != nil {
			ses.data.Close()
			ses.idx.Close()
			return err
		}
		ses.maintainer = maintainer
		maintainer.Start()
	}

	ses.logger.Info("sink started",
		"scope", s.cfg.Scope,
		"stream", s.cfg.Stream,
		"mode", s.cfg.Mode.String(),
		"dataOffset", ses.data.Offset(),
		"policy", policy.String())
	s.ses = ses
	return nil
}

// openMaintainer opens the maintainer's own stream handles so retention
// never contends with the append path on a shared handle.
func (s *Sink) openMaintainer(policy retention.Policy, indexStream string, logger *slog.Logger) (*retention.Maintainer, error) {
	idxReader, err := s.store.OpenReader(s.cfg.Scope, indexStream)
	if err != nil {
		return nil, fmt.Errorf("open maintainer index reader: %w", err)
	}
	idxWriter, err := s.store.OpenWriter(s.cfg.Scope, indexStream, false)
	if err != nil {
		idxReader.Close()
		return nil, fmt.Errorf("open maintainer index writer: %w", err)
	}
	dataWriter, err := s.store.OpenWriter(s.cfg.Scope, s.cfg.Stream, false)
	if err != nil {
		idxReader.Close()
		idxWriter.Close()
		return nil, fmt.Errorf("open maintainer data writer: %w", err)
	}
	return retention.NewMaintainer(retention.Config{
		Policy:      policy,
		Interval:    s.cfg.MaintenanceInterval,
		IndexReader: idxReader,
		IndexWriter: idxWriter,
		DataWriter:  dataWriter,
		Clock:       s.cfg.Clock,
		Logger:      logger,
	}), nil
}

// Render appends one buffer. The data offset is captured before anything
// is written; if the buffer is to be indexed, buffered data is flushed
// first so the new index record only ever points at durable bytes, then
// the record is appended, then the payload.
func (s *Sink) Render(b Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ses := s.ses
	if ses == nil {
		return ErrNotStarted
	}

	offset := ses.data.Offset()
	ts := ses.normalizer.Timestamp(b.PTS)
	if ts.IsValid() && !ses.firstValidTime.IsValid() {
		ses.firstValidTime = ts
	}

	randomAccess := b.randomAccess()
	include := shouldIndex(ts, ses.lastIndexTime, ses.firstValidTime, randomAccess,
		s.cfg.IndexMinInterval, s.cfg.IndexMaxInterval)
	discont := isDiscontinuity(b.Flags, include, ses.buffersWritten, ses.lastIndexTime)

	if discont {
		ses.logger.Debug("discontinuity", "timestamp", ts.String(), "offset", offset)
	}

	if include {
		if err := ses.data.Flush(); err != nil {
			return fmt.Errorf("flush data before index record: %w", err)
		}
		err := ses.index.Append(index.Record{
			Timestamp:     ts,
			Offset:        offset,
			RandomAccess:  randomAccess,
			Discontinuity: discont,
		})
		if err != nil {
			return err
		}
		ses.logger.Debug("index record",
			"timestamp", ts.String(), "offset", offset, "randomAccess", randomAccess)
	}

	ev := event.Event{
		Timestamp:      ts,
		IncludeInIndex: include,
		RandomAccess:   randomAccess,
		Discontinuity:  discont,
		Payload:        b.Payload,
	}
	if err := event.WriteFragmented(ses.data, ev); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	if include {
		ses.lastIndexTime = ts
	}

	if b.Flags&FlagSyncAfter != 0 {
		if err := ses.data.Flush(); err != nil {
			return fmt.Errorf("sync data stream: %w", err)
		}
		if err := ses.idx.Flush(); err != nil {
			return fmt.Errorf("sync index stream: %w", err)
		}
	}

	if ts.IsValid() {
		// At least one nanosecond keeps the terminal record strictly
		// after the last buffer's timestamp.
		dur := time.Nanosecond
		if b.Duration.IsValid() {
			dur = max(dur, time.Duration(b.Duration.Nanoseconds()))
		}
		ses.finalTimestamp = ts.Add(dur)
	}
	ses.finalOffset = ses.data.Offset()
	ses.hasFinal = true
	ses.buffersWritten++
	return nil
}

// Stop flushes the data stream, appends the terminal index record when a
// buffer with a valid timestamp was written, flushes the index, optionally
// seals both streams, and joins the retention maintainer. The sink ends up
// stopped even when a step fails; all failures are reported joined.
func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ses := s.ses
	if ses == nil {
		return ErrNotStarted
	}

	var errs []error
	if err := ses.data.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush data stream: %w", err))
	}

	// The terminal record's timestamp lands strictly after the last
	// written buffer, so an index consumer never bounds a time range
	// beyond data that actually exists.
	if ses.hasFinal && ses.finalTimestamp.IsValid() && len(errs) == 0 {
		err := ses.index.Append(index.Record{
			Timestamp: ses.finalTimestamp,
			Offset:    ses.finalOffset,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("append final index record: %w", err))
		}
	}
	if err := ses.idx.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush index stream: %w", err))
	}

	if s.cfg.SealOnStop && len(errs) == 0 {
		if err := ses.data.Seal(); err != nil {
			errs = append(errs, fmt.Errorf("seal data stream: %w", err))
		}
		if err := ses.idx.Seal(); err != nil {
			errs = append(errs, fmt.Errorf("seal index stream: %w", err))
		}
	}

	if ses.maintainer != nil {
		if err := ses.maintainer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop retention maintainer: %w", err))
		}
	}

	if err := ses.data.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close data stream: %w", err))
	}
	if err := ses.idx.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close index stream: %w", err))
	}

	ses.logger.Info("sink stopped", "buffersWritten", ses.buffersWritten)
	s.ses = nil
	return errors.Join(errs...)
}
