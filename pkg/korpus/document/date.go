package document

import (
	"strings"
	"time"
)

// DateLayout is the canonical serialized form of a document date.
const DateLayout = "2006-01-02"

type dateKind uint8

const (
	dateNone dateKind = iota
	dateValue
	dateRaw
)

// Date is a document date. It is either absent, a calendar date, or a raw
// string that could not be parsed when a snapshot was restored.
type Date struct {
	kind dateKind
	t    time.Time
	raw  string
}

// NoDate returns the explicit "no date" marker.
func NoDate() Date { return Date{} }

// DateOf wraps a calendar date. The time-of-day part is dropped.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{kind: dateValue, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// RawDate keeps an unparsable date string as-is.
func RawDate(s string) Date { return Date{kind: dateRaw, raw: s} }

// ParseDate parses an ingested date strictly. Empty or whitespace-only input
// yields NoDate; anything else must match YYYY-MM-DD exactly, without
// surrounding whitespace.
func ParseDate(s string) (Date, error) {
	if strings.TrimSpace(s) == "" {
		return NoDate(), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return NoDate(), err
	}
	return DateOf(t), nil
}

// ParseSnapshotDate parses a date read back from a snapshot. It never fails:
// the empty string is NoDate and any other string that is not YYYY-MM-DD,
// whitespace included, is kept as a raw date.
func ParseSnapshotDate(s string) Date {
	if s == "" {
		return NoDate()
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return RawDate(s)
	}
	return DateOf(t)
}

// IsZero reports whether d is the "no date" marker.
func (d Date) IsZero() bool { return d.kind == dateNone }

// Time returns the calendar date if d holds one.
func (d Date) Time() (time.Time, bool) {
	return d.t, d.kind == dateValue
}

// Raw returns the unparsed string if d holds one.
func (d Date) Raw() (string, bool) {
	return d.raw, d.kind == dateRaw
}

// String returns the serialized form: YYYY-MM-DD, the raw string, or "".
func (d Date) String() string {
	switch d.kind {
	case dateValue:
		return d.t.Format(DateLayout)
	case dateRaw:
		return d.raw
	}
	return ""
}

// Equal reports whether both dates have the same state and value.
func (d Date) Equal(o Date) bool {
	if d.kind != o.kind {
		return false
	}
	switch d.kind {
	case dateValue:
		return d.t.Equal(o.t)
	case dateRaw:
		return d.raw == o.raw
	}
	return true
}
