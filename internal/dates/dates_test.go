package dates

import (
	"testing"
	"time"
)

func TestMissing(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 30, 12, 0, time.Local)

	tests := []struct {
		name         string
		existing     []string
		lookbackDays int
		expected     []string
	}{
		{
			name:         "Empty store returns full window most-recent-first",
			existing:     nil,
			lookbackDays: 3,
			expected:     []string{"2025-03-10", "2025-03-09", "2025-03-08"},
		},
		{
			name:         "Present days are skipped",
			existing:     []string{"2025-03-10", "2025-03-08"},
			lookbackDays: 3,
			expected:     []string{"2025-03-09"},
		},
		{
			name:         "Fully covered window returns nothing",
			existing:     []string{"2025-03-10", "2025-03-09"},
			lookbackDays: 2,
			expected:     nil,
		},
		{
			name:         "Zero lookback returns nothing",
			existing:     nil,
			lookbackDays: 0,
			expected:     nil,
		},
		{
			name:         "Fifteen day window spans month boundary",
			existing:     []string{"2025-03-10", "2025-03-09", "2025-03-08", "2025-03-07", "2025-03-06", "2025-03-05", "2025-03-04", "2025-03-03", "2025-03-02", "2025-03-01", "2025-02-28", "2025-02-27", "2025-02-26"},
			lookbackDays: 15,
			expected:     []string{"2025-02-25", "2025-02-24"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := make(map[string]struct{}, len(tt.existing))
			for _, k := range tt.existing {
				existing[k] = struct{}{}
			}

			got := Missing(existing, tt.lookbackDays, now)

			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d missing days, got %d", len(tt.expected), len(got))
			}
			for i, day := range got {
				if Key(day) != tt.expected[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.expected[i], Key(day))
				}
				if !day.Equal(StartOfDay(day)) {
					t.Errorf("position %d: %v is not normalized to start of day", i, day)
				}
			}
		})
	}
}

func TestMissingNoDuplicates(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 59, 59, 0, time.Local)
	got := Missing(nil, 15, now)

	seen := make(map[string]struct{})
	for _, day := range got {
		if _, dup := seen[Key(day)]; dup {
			t.Fatalf("duplicate day %s in result", Key(day))
		}
		seen[Key(day)] = struct{}{}
	}
	if len(got) != 15 {
		t.Errorf("expected 15 days, got %d", len(got))
	}
}

func TestIsToday(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 1, 0, time.Local)

	if !IsToday(time.Date(2025, 3, 10, 23, 0, 0, 0, time.Local), now) {
		t.Error("same calendar day should be today")
	}
	if IsToday(time.Date(2025, 3, 9, 23, 59, 59, 0, time.Local), now) {
		t.Error("previous day just before midnight is not today")
	}
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2025, 7, 1, 18, 42, 9, 123, time.Local)
	got := StartOfDay(in)

	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
		t.Errorf("expected midnight, got %v", got)
	}
	if got.Day() != 1 || got.Month() != 7 {
		t.Errorf("calendar day changed: %v", got)
	}
}
