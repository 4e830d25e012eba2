package vagkoll

import "time"

// Mode partitions events into the two dashboard tabs.
type Mode string

const (
	ModeRealtime Mode = "realtime"
	ModePlanned  Mode = "planned"

	// ModeAll disables mode filtering (no tab restriction).
	ModeAll Mode = ""
)

// PlannedStartSlack is how far into the future an event's start time must be
// before it counts as planned rather than realtime. One minute absorbs clock
// skew and jitter between client and server: an incident reported "now" by a
// server slightly ahead of us must not land in the planned tab.
var PlannedStartSlack = 1 * time.Minute

// PlannedDurationMin is the validity-window length at which an event counts
// as planned regardless of when it started. Five days separates long-term
// roadworks from acute incidents. The value comes from observed upstream
// behavior; treat it as tunable, not derived.
var PlannedDurationMin = 5 * 24 * time.Hour

// ClassifyMode decides whether an event belongs to the realtime or planned
// tab based on its validity window.
//
// planned iff the start is more than PlannedStartSlack in the future, or the
// window spans at least PlannedDurationMin. Everything else is realtime,
// including events with no start time at all.
func ClassifyMode(startTime, endTime *time.Time, now time.Time) Mode {
	if startTime == nil {
		return ModeRealtime
	}
	if startTime.After(now.Add(PlannedStartSlack)) {
		return ModePlanned
	}
	if endTime != nil && endTime.Sub(*startTime) >= PlannedDurationMin {
		return ModePlanned
	}
	return ModeRealtime
}

// EventMode classifies a concrete event record.
func EventMode(e *Event, now time.Time) Mode {
	return ClassifyMode(e.StartTime, e.EndTime, now)
}
