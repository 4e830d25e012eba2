package vagkoll

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestClassifyMode_FutureStartIsPlanned(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Two minutes out: beyond the clock-skew slack.
	mode := ClassifyMode(timePtr(now.Add(2*time.Minute)), nil, now)
	if mode != ModePlanned {
		t.Errorf("expected planned for start=now+2min, got %s", mode)
	}
}

func TestClassifyMode_SkewWindowStaysRealtime(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// 30 seconds out is within the slack: a server slightly ahead of us
	// reporting an incident "now" must stay realtime.
	mode := ClassifyMode(timePtr(now.Add(30*time.Second)), nil, now)
	if mode != ModeRealtime {
		t.Errorf("expected realtime for start=now+30s, got %s", mode)
	}
}

func TestClassifyMode_AcuteIncidentIsRealtime(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	start := now.Add(-5 * time.Minute)
	end := now.Add(10 * time.Minute)
	mode := ClassifyMode(timePtr(start), timePtr(end), now)
	if mode != ModeRealtime {
		t.Errorf("expected realtime for a 15-minute window, got %s", mode)
	}
}

func TestClassifyMode_LongRoadworksIsPlanned(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Started yesterday but spans six days: long-term roadworks.
	start := now.Add(-24 * time.Hour)
	end := start.Add(6 * 24 * time.Hour)
	mode := ClassifyMode(timePtr(start), timePtr(end), now)
	if mode != ModePlanned {
		t.Errorf("expected planned for a 6-day window, got %s", mode)
	}
}

func TestClassifyMode_ExactlyFiveDaysIsPlanned(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	start := now.Add(-time.Hour)
	end := start.Add(5 * 24 * time.Hour)
	mode := ClassifyMode(timePtr(start), timePtr(end), now)
	if mode != ModePlanned {
		t.Errorf("expected planned at exactly the 5-day boundary, got %s", mode)
	}
}

func TestClassifyMode_NoStartTimeIsRealtime(t *testing.T) {
	now := time.Now()
	if mode := ClassifyMode(nil, nil, now); mode != ModeRealtime {
		t.Errorf("expected realtime for missing start time, got %s", mode)
	}
}

func TestClassifyMode_OpenEndedCurrentIsRealtime(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Started in the past, no end: "until further notice" but acute.
	mode := ClassifyMode(timePtr(now.Add(-time.Hour)), nil, now)
	if mode != ModeRealtime {
		t.Errorf("expected realtime for open-ended current event, got %s", mode)
	}
}
