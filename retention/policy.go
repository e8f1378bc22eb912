// Package retention ages data out of a stream pair. A policy says what to
// keep; the maintainer periodically truncates the index and data streams to
// honor it.
package retention

import (
	"errors"
	"fmt"
	"time"
)

// Type selects which limits a policy enforces.
type Type int

const (
	// None disables retention; streams grow without bound.
	None Type = iota
	// Days keeps data newer than an age limit.
	Days
	// Bytes keeps data within a size budget.
	Bytes
	// DaysAndBytes enforces both limits; whichever cuts deeper wins.
	DaysAndBytes
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Days:
		return "days"
	case Bytes:
		return "bytes"
	case DaysAndBytes:
		return "daysAndBytes"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

var (
	ErrUnknownType  = errors.New("unknown retention policy type")
	ErrMissingDays  = errors.New("retention policy requires a day limit")
	ErrMissingBytes = errors.New("retention policy requires a byte limit")
	ErrInvalidDays  = errors.New("retention day limit must be positive")
)

// Policy is an immutable retention configuration. The zero value keeps
// everything.
type Policy struct {
	typ   Type
	age   time.Duration
	bytes uint64
}

// NewPolicy validates and builds a policy. Days may be fractional; the
// limits not required by the type are ignored.
func NewPolicy(typ Type, days *float64, bytes *uint64) (Policy, error) {
	p := Policy{typ: typ}
	switch typ {
	case None:
		return p, nil
	case Days:
		if days == nil {
			return Policy{}, ErrMissingDays
		}
	case Bytes:
		if bytes == nil {
			return Policy{}, ErrMissingBytes
		}
	case DaysAndBytes:
		if days == nil {
			return Policy{}, ErrMissingDays
		}
		if bytes == nil {
			return Policy{}, ErrMissingBytes
		}
	default:
		return Policy{}, ErrUnknownType
	}

	if typ == Days || typ == DaysAndBytes {
		if *days <= 0 {
			return Policy{}, ErrInvalidDays
		}
		p.age = time.Duration(*days * 24 * float64(time.Hour))
	}
	if typ == Bytes || typ == DaysAndBytes {
		p.bytes = *bytes
	}
	return p, nil
}

// Type returns the policy type.
func (p Policy) Type() Type { return p.typ }

// Enabled reports whether the policy truncates anything at all.
func (p Policy) Enabled() bool { return p.typ != None }

// Age returns the age limit and whether the policy has one.
func (p Policy) Age() (time.Duration, bool) {
	return p.age, p.typ == Days || p.typ == DaysAndBytes
}

// ByteBudget returns the size budget and whether the policy has one.
func (p Policy) ByteBudget() (uint64, bool) {
	return p.bytes, p.typ == Bytes || p.typ == DaysAndBytes
}

func (p Policy) String() string {
	switch p.typ {
	case Days:
		return fmt.Sprintf("days(%s)", p.age)
	case Bytes:
		return fmt.Sprintf("bytes(%d)", p.bytes)
	case DaysAndBytes:
		return fmt.Sprintf("daysAndBytes(%s, %d)", p.age, p.bytes)
	default:
		return "none"
	}
}
