package timeutil

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire format for report date filters.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// DateRange is an optional, inclusive calendar-day filter. The zero value
// matches all rows. Labels preserve the caller-supplied strings so responses
// can echo the requested range verbatim.
type DateRange struct {
	start      time.Time
	end        time.Time
	startLabel string
	endLabel   string
}

// EnsureLocation returns UTC when loc is nil.
func EnsureLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// ParseDateRange interprets optional start/end date strings in the reporting
// timezone. Either bound may be empty. A start after the end is rejected.
func ParseDateRange(startRaw, endRaw string, loc *time.Location) (DateRange, error) {
	loc = EnsureLocation(loc)
	r := DateRange{}

	startStr := strings.TrimSpace(startRaw)
	if startStr != "" {
		start, err := time.ParseInLocation(DateLayout, startStr, loc)
		if err != nil {
			return DateRange{}, ErrInvalidDate
		}
		r.start = start
		r.startLabel = startStr
	}

	endStr := strings.TrimSpace(endRaw)
	if endStr != "" {
		end, err := time.ParseInLocation(DateLayout, endStr, loc)
		if err != nil {
			return DateRange{}, ErrInvalidDate
		}
		// The filter is inclusive of the whole end day.
		r.end = end.AddDate(0, 0, 1)
		r.endLabel = endStr
	}

	if !r.start.IsZero() && !r.end.IsZero() && !r.end.After(r.start) {
		return DateRange{}, ErrInvalidDate
	}
	return r, nil
}

// IsZero reports whether the range carries no bounds at all.
func (r DateRange) IsZero() bool {
	return r.start.IsZero() && r.end.IsZero()
}

// HasStart reports whether a lower bound was supplied.
func (r DateRange) HasStart() bool { return !r.start.IsZero() }

// HasEnd reports whether an upper bound was supplied.
func (r DateRange) HasEnd() bool { return !r.end.IsZero() }

// Start returns the inclusive lower bound.
func (r DateRange) Start() time.Time { return r.start }

// EndExclusive returns the exclusive upper bound (end date plus one day).
func (r DateRange) EndExclusive() time.Time { return r.end }

// Contains reports whether ts falls inside the range.
func (r DateRange) Contains(ts time.Time) bool {
	if r.HasStart() && ts.Before(r.start) {
		return false
	}
	if r.HasEnd() && !ts.Before(r.end) {
		return false
	}
	return true
}

// Labels returns the caller-supplied start/end strings.
func (r DateRange) Labels() (string, string) {
	return r.startLabel, r.endLabel
}
