package timeutil

import (
	"testing"
	"time"
)

func TestParseDateRangeInclusiveEnd(t *testing.T) {
	r, err := ParseDateRange("2024-01-01", "2024-01-31", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC); !r.Start().Equal(want) {
		t.Errorf("want start %v, got %v", want, r.Start())
	}
	// End bound covers the whole last day.
	if want := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC); !r.EndExclusive().Equal(want) {
		t.Errorf("want exclusive end %v, got %v", want, r.EndExclusive())
	}

	lastMoment := time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC)
	if !r.Contains(lastMoment) {
		t.Errorf("expected %v inside range", lastMoment)
	}
	if r.Contains(r.EndExclusive()) {
		t.Error("exclusive end must not be contained")
	}

	start, end := r.Labels()
	if start != "2024-01-01" || end != "2024-01-31" {
		t.Errorf("labels not preserved: %q %q", start, end)
	}
}

func TestParseDateRangeOpenBounds(t *testing.T) {
	r, err := ParseDateRange("", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsZero() {
		t.Error("expected zero range for empty bounds")
	}
	if !r.Contains(time.Now()) {
		t.Error("zero range must contain everything")
	}

	r, err = ParseDateRange("2024-06-01", "", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.HasStart() || r.HasEnd() {
		t.Error("expected start-only range")
	}
}

func TestParseDateRangeRejectsGarbage(t *testing.T) {
	if _, err := ParseDateRange("01/02/2024", "", time.UTC); err == nil {
		t.Error("expected error for non-ISO date")
	}
	if _, err := ParseDateRange("2024-02-01", "2024-01-01", time.UTC); err == nil {
		t.Error("expected error for inverted range")
	}
}
