// Package timex provides a small duration value type that pairs a
// quantity with a unit ("30 minutes", "60 days") so TTLs can be read
// from configuration without everyone re-implementing the parsing.
package timex

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is a named time unit a Span quantity is expressed in.
type Unit string

const (
	Seconds Unit = "seconds"
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
	Days    Unit = "days"
)

// ErrInvalidSpan reports an unparseable span string.
var ErrInvalidSpan = errors.New("timex: invalid span")

var unitDurations = map[Unit]time.Duration{
	Seconds: time.Second,
	Minutes: time.Minute,
	Hours:   time.Hour,
	Days:    24 * time.Hour,
}

// aliases maps the spellings we accept in config to canonical units.
var aliases = map[string]Unit{
	"s": Seconds, "sec": Seconds, "secs": Seconds, "second": Seconds, "seconds": Seconds,
	"m": Minutes, "min": Minutes, "mins": Minutes, "minute": Minutes, "minutes": Minutes,
	"h": Hours, "hr": Hours, "hrs": Hours, "hour": Hours, "hours": Hours,
	"d": Days, "day": Days, "days": Days,
}

// Span is a quantity of time expressed in a unit, e.g. {30, Minutes}.
// The zero value is an empty span of zero duration.
type Span struct {
	Quantity int64
	Unit     Unit
}

// New builds a Span. Unknown units are normalized to Seconds so a Span
// is always convertible.
func New(quantity int64, unit Unit) Span {
	if _, ok := unitDurations[unit]; !ok {
		return Span{Quantity: quantity, Unit: Seconds}
	}
	return Span{Quantity: quantity, Unit: unit}
}

// Parse reads a span from a string. Accepted forms:
//
//   - "<n> <unit>" e.g. "30 minutes", "60 days", "1 hour"
//   - Go duration syntax e.g. "45s", "1h30m"
//   - a bare integer, interpreted as minutes (legacy config form)
func Parse(s string) (Span, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Span{}, fmt.Errorf("%w: empty string", ErrInvalidSpan)
	}

	fields := strings.Fields(s)
	if len(fields) == 2 {
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return Span{}, fmt.Errorf("%w: %q", ErrInvalidSpan, s)
		}
		unit, ok := aliases[strings.ToLower(fields[1])]
		if !ok {
			return Span{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidSpan, fields[1])
		}
		return Span{Quantity: n, Unit: unit}, nil
	}

	if len(fields) == 1 {
		if n, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			return Span{Quantity: n, Unit: Minutes}, nil
		}
		if d, err := time.ParseDuration(fields[0]); err == nil {
			return FromDuration(d), nil
		}
	}

	return Span{}, fmt.Errorf("%w: %q", ErrInvalidSpan, s)
}

// MustParse parses or panics. Useful for hard-coded spans in tests.
func MustParse(s string) Span {
	sp, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sp
}

// FromDuration converts a time.Duration to a Span, keeping the largest
// unit that divides it evenly.
func FromDuration(d time.Duration) Span {
	for _, unit := range []Unit{Days, Hours, Minutes} {
		size := unitDurations[unit]
		if d != 0 && d%size == 0 {
			return Span{Quantity: int64(d / size), Unit: unit}
		}
	}
	return Span{Quantity: int64(d / time.Second), Unit: Seconds}
}

// Duration converts the span to a time.Duration.
func (s Span) Duration() time.Duration {
	size, ok := unitDurations[s.Unit]
	if !ok {
		size = time.Second
	}
	return time.Duration(s.Quantity) * size
}

// Seconds returns the span length in whole seconds.
func (s Span) Seconds() int64 {
	return int64(s.Duration() / time.Second)
}

// IsZero reports whether the span has no length.
func (s Span) IsZero() bool { return s.Quantity == 0 }

// String renders the canonical "<n> <unit>" form.
func (s Span) String() string {
	unit := s.Unit
	if _, ok := unitDurations[unit]; !ok {
		unit = Seconds
	}
	return fmt.Sprintf("%d %s", s.Quantity, unit)
}
