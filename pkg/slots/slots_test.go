package slots

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

func TestAligned(t *testing.T) {
	slot := 30 * time.Minute

	tests := []struct {
		name string
		time string
		want bool
	}{
		{"on the hour", "2026-03-02T09:00:00Z", true},
		{"on the half hour", "2026-03-02T09:30:00Z", true},
		{"quarter past", "2026-03-02T09:15:00Z", false},
		{"one minute off", "2026-03-02T09:01:00Z", false},
		{"with seconds", "2026-03-02T09:00:30Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aligned(mustTime(t, tt.time), slot); got != tt.want {
				t.Errorf("Aligned(%s) = %v, want %v", tt.time, got, tt.want)
			}
		})
	}
}

func TestCount(t *testing.T) {
	slot := 30 * time.Minute

	tests := []struct {
		name  string
		start string
		end   string
		want  int
	}{
		{"three hours", "2026-03-02T09:00:00Z", "2026-03-02T12:00:00Z", 6},
		{"single slot", "2026-03-02T09:00:00Z", "2026-03-02T09:30:00Z", 1},
		{"partial final slot rounds up", "2026-03-02T09:00:00Z", "2026-03-02T09:45:00Z", 2},
		{"empty interval", "2026-03-02T09:00:00Z", "2026-03-02T09:00:00Z", 0},
		{"inverted interval", "2026-03-02T12:00:00Z", "2026-03-02T09:00:00Z", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(mustTime(t, tt.start), mustTime(t, tt.end), slot)
			if got != tt.want {
				t.Errorf("Count(%s, %s) = %d, want %d", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestStarts(t *testing.T) {
	slot := 30 * time.Minute
	start := mustTime(t, "2026-03-02T09:00:00Z")
	end := mustTime(t, "2026-03-02T12:00:00Z")

	starts := Starts(start, end, slot)

	if len(starts) != 6 {
		t.Fatalf("expected 6 slot starts, got %d", len(starts))
	}
	if !starts[0].Equal(start) {
		t.Errorf("first slot should equal the window start, got %s", starts[0])
	}
	for i, s := range starts {
		if !s.Before(end) {
			t.Errorf("slot %d (%s) is not strictly before the window end", i, s)
		}
		if i > 0 && s.Sub(starts[i-1]) != slot {
			t.Errorf("slots %d and %d are not exactly one slot apart", i-1, i)
		}
	}
}

func TestContains(t *testing.T) {
	slot := 30 * time.Minute
	start := mustTime(t, "2026-03-02T09:00:00Z")
	end := mustTime(t, "2026-03-02T12:00:00Z")

	tests := []struct {
		name string
		time string
		want bool
	}{
		{"window start", "2026-03-02T09:00:00Z", true},
		{"mid window on grid", "2026-03-02T10:30:00Z", true},
		{"last slot", "2026-03-02T11:30:00Z", true},
		{"window end is exclusive", "2026-03-02T12:00:00Z", false},
		{"before the window", "2026-03-02T08:30:00Z", false},
		{"off grid inside the window", "2026-03-02T10:15:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Contains(start, end, slot, mustTime(t, tt.time)); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.time, got, tt.want)
			}
		})
	}
}
