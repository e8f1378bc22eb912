package sink

import (
	"cmp"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"streamvault/mediatime"
	"streamvault/retention"
)

const (
	// DefaultIndexMinInterval is the shortest gap between index records
	// at random-access points.
	DefaultIndexMinInterval = 500 * time.Millisecond
	// DefaultIndexMaxInterval is the longest gap before an index record
	// is forced, random access or not.
	DefaultIndexMaxInterval = 10 * time.Second
	// DefaultWriteBufferSize is the data stream write buffer size.
	DefaultWriteBufferSize = 128 * 1024
	// DefaultMaintenanceInterval is the retention sweep period.
	DefaultMaintenanceInterval = 15 * time.Minute
)

var (
	ErrMissingScope         = errors.New("sink requires a scope")
	ErrMissingStream        = errors.New("sink requires a stream name")
	ErrInvalidIndexInterval = errors.New("index min interval exceeds max interval")
)

// Config is the full sink configuration, validated once at Start. Zero
// duration and size fields take the package defaults.
type Config struct {
	// Scope and Stream identify the data stream; the index stream name
	// is derived from Stream.
	Scope  string
	Stream string

	// AllowCreate permits creating the streams when they do not exist.
	AllowCreate bool

	// Mode selects the clock domain of incoming buffer timestamps. Base
	// is the pipeline start instant, used only by ModeRealtimeClock.
	Mode mediatime.Mode
	Base mediatime.ClockTime

	IndexMinInterval time.Duration
	IndexMaxInterval time.Duration
	WriteBufferSize  int

	// RetentionType with its numeric parameters builds the retention
	// policy at Start. RetentionDays and RetentionBytes are required
	// according to the type.
	RetentionType  retention.Type
	RetentionDays  *float64
	RetentionBytes *uint64

	MaintenanceInterval time.Duration

	// SealOnStop marks both streams permanently read-only at Stop.
	SealOnStop bool

	Clock  clockwork.Clock
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	c.IndexMinInterval = cmp.Or(c.IndexMinInterval, DefaultIndexMinInterval)
	c.IndexMaxInterval = cmp.Or(c.IndexMaxInterval, DefaultIndexMaxInterval)
	c.WriteBufferSize = cmp.Or(c.WriteBufferSize, DefaultWriteBufferSize)
	c.MaintenanceInterval = cmp.Or(c.MaintenanceInterval, DefaultMaintenanceInterval)
	return c
}

// validate runs on the defaulted config, before any stream is touched.
func (c Config) validate() error {
	if c.Scope == "" {
		return ErrMissingScope
	}
	if c.Stream == "" {
		return ErrMissingStream
	}
	if c.IndexMinInterval > c.IndexMaxInterval {
		return ErrInvalidIndexInterval
	}
	return nil
}
