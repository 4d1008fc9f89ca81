package pricing

import (
	"testing"
	"time"
)

func TestDurationClosedSession(t *testing.T) {
	entry := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	exit := entry.Add(90*time.Minute + 30*time.Second)
	minutes, formatted := Duration(entry, &exit, entry)
	if minutes != 90 {
		t.Fatalf("expected floor to 90 minutes, got %d", minutes)
	}
	if formatted != "1h 30m" {
		t.Fatalf("unexpected formatting %q", formatted)
	}
}

func TestDurationOpenSessionUsesNow(t *testing.T) {
	entry := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	now := entry.Add(25 * time.Minute)
	minutes, formatted := Duration(entry, nil, now)
	if minutes != 25 {
		t.Fatalf("expected 25 minutes, got %d", minutes)
	}
	if formatted != "25m" {
		t.Fatalf("unexpected formatting %q", formatted)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{0, "0m"},
		{59, "59m"},
		{60, "1h 0m"},
		{90, "1h 30m"},
		{1440, "1d 0h 0m"},
		{1800, "1d 6h 0m"},
		{3000, "2d 2h 0m"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.minutes); got != tc.want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}
