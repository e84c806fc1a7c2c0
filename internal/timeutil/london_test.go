package timeutil

import (
	"testing"
	"time"
)

func TestFormatLondonHandlesSummerTime(t *testing.T) {
	if London.String() != "Europe/London" {
		t.Skip("tzdata not available")
	}
	winter := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	if got := FormatLondon(winter, "15:04"); got != "10:00" {
		t.Fatalf("winter: expected 10:00, got %s", got)
	}
	summer := time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)
	if got := FormatLondon(summer, "15:04"); got != "11:00" {
		t.Fatalf("summer: expected 11:00, got %s", got)
	}
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2025, 3, 4, 23, 30, 0, 0, time.UTC)
	got := StartOfDay(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Day() != 4 {
		t.Fatalf("unexpected start of day %v", got)
	}
}
