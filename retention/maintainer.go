package retention

import (
	"cmp"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"streamvault/bytestream"
	"streamvault/index"
	"streamvault/internal/logging"
	"streamvault/mediatime"
)

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = 15 * time.Minute

// Config wires a maintainer to its stream pair. The maintainer takes
// ownership of the three handles and closes them on Stop; they must be
// dedicated handles, separate from the ones the writer path appends with.
type Config struct {
	Policy   Policy
	Interval time.Duration

	IndexReader bytestream.Reader
	IndexWriter bytestream.Writer
	DataWriter  bytestream.Writer

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Maintainer periodically truncates the index and data streams per the
// retention policy. It runs on its own goroutine between Start and Stop.
type Maintainer struct {
	policy   Policy
	interval time.Duration

	searcher    *index.Searcher
	indexReader bytestream.Reader
	indexWriter bytestream.Writer
	dataWriter  bytestream.Writer

	clock  clockwork.Clock
	logger *slog.Logger

	stop  chan struct{}
	group errgroup.Group
}

func NewMaintainer(cfg Config) *Maintainer {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Maintainer{
		policy:      cfg.Policy,
		interval:    cmp.Or(cfg.Interval, DefaultInterval),
		searcher:    index.NewSearcher(cfg.IndexReader),
		indexReader: cfg.IndexReader,
		indexWriter: cfg.IndexWriter,
		dataWriter:  cfg.DataWriter,
		clock:       clock,
		logger:      logging.Default(cfg.Logger).With("component", "retention"),
		stop:        make(chan struct{}),
	}
}

// Start launches the sweep loop. With a None policy no goroutine runs.
func (m *Maintainer) Start() {
	if !m.policy.Enabled() {
		return
	}
	m.logger.Info("retention maintainer started",
		"policy", m.policy.String(), "interval", m.interval)
	m.group.Go(m.run)
}

// Stop signals the loop, waits for any in-flight sweep to finish, then
// closes the stream handles. Safe to call after a Start that did not
// launch a loop.
func (m *Maintainer) Stop() error {
	close(m.stop)
	err := m.group.Wait()
	err = errors.Join(err,
		m.indexWriter.Close(),
		m.dataWriter.Close(),
		m.indexReader.Close(),
	)
	if m.policy.Enabled() {
		m.logger.Info("retention maintainer stopped")
	}
	return err
}

// run sweeps immediately, then once per interval. The leading sweep
// matters after a restart, when the streams may already exceed the policy.
func (m *Maintainer) run() error {
	for {
		m.Sweep()
		select {
		case <-m.stop:
			return nil
		case <-m.clock.After(m.interval):
		}
	}
}

// Sweep applies the policy once. Each limit resolves to an index record
// and truncates both streams at it: the index stream first, then the data
// stream at the record's data offset, so a reader never finds an index
// record pointing below the data head. Errors are logged and the sweep
// moves on; the next cycle retries.
func (m *Maintainer) Sweep() {
	if age, ok := m.policy.Age(); ok {
		cutoff := mediatime.FromTime(m.clock.Now().Add(-age))
		entry, err := m.searcher.LocateTimestamp(cutoff, index.Before)
		m.truncateAt("age", entry, err)
	}
	if budget, ok := m.policy.ByteBudget(); ok {
		entry, err := m.searcher.LocateSize(budget, index.Before)
		m.truncateAt("size", entry, err)
	}
}

func (m *Maintainer) truncateAt(limit string, entry index.Entry, err error) {
	if errors.Is(err, index.ErrNoMatchingRecord) {
		return
	}
	if err != nil {
		m.logger.Error("retention search failed", "limit", limit, "error", err)
		return
	}
	if err := m.indexWriter.TruncateBefore(entry.Position); err != nil {
		m.logger.Error("index truncation failed",
			"limit", limit, "position", entry.Position, "error", err)
		return
	}
	if err := m.dataWriter.TruncateBefore(entry.Record.Offset); err != nil {
		m.logger.Error("data truncation failed",
			"limit", limit, "offset", entry.Record.Offset, "error", err)
		return
	}
	m.logger.Info("retention truncated streams",
		"limit", limit,
		"timestamp", entry.Record.Timestamp.String(),
		"dataOffset", entry.Record.Offset,
		"indexPosition", entry.Position)
}
