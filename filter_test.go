package vagkoll

import (
	"testing"
	"time"
)

func filterEvent(ext string, county int, messageType, severity string) *Event {
	return &Event{
		ExternalID:   ext,
		CountyNo:     county,
		MessageType:  messageType,
		SeverityText: severity,
		CreatedAt:    time.Now(),
	}
}

func TestFilterMatches_EmptyFilterPassesEverything(t *testing.T) {
	f := NewFilterState()
	e := filterEvent("a", 14, "Olycka", SeverityLarge)
	if !f.Matches(e) {
		t.Error("empty filter should match everything")
	}
}

func TestFilterMatches_MessageTypeIntersection(t *testing.T) {
	f := NewFilterState()
	f.MessageTypes["Vägarbete"] = true

	multi := filterEvent("a", 14, "Olycka, Vägarbete", SeveritySmall)
	if !f.Matches(multi) {
		t.Error("event carrying one matching type among several should match")
	}

	other := filterEvent("b", 14, "Olycka", SeveritySmall)
	if f.Matches(other) {
		t.Error("event with no matching type should not match")
	}
}

func TestFilterMatches_SeverityExact(t *testing.T) {
	f := NewFilterState()
	f.Severities[SeverityLarge] = true

	if !f.Matches(filterEvent("a", 14, "Olycka", SeverityLarge)) {
		t.Error("matching severity should pass")
	}
	if f.Matches(filterEvent("b", 14, "Olycka", SeveritySmall)) {
		t.Error("non-matching severity should not pass")
	}
}

func TestFilterMatches_MonitoredBaselineFallback(t *testing.T) {
	// Quick-filter county set empty; baseline = {1, 4}.
	f := NewFilterState()
	f.MonitoredCounties[1] = true
	f.MonitoredCounties[4] = true

	if f.Matches(filterEvent("a", 14, "Olycka", SeveritySmall)) {
		t.Error("county 14 should be excluded by the monitored baseline")
	}
	if !f.Matches(filterEvent("b", 4, "Olycka", SeveritySmall)) {
		t.Error("county 4 is in the baseline and should match")
	}
	if !f.Matches(filterEvent("c", CountyNational, "Olycka", SeveritySmall)) {
		t.Error("national events bypass county filtering")
	}
}

func TestFilterMatches_QuickFilterOverridesBaseline(t *testing.T) {
	f := NewFilterState()
	f.MonitoredCounties[1] = true
	f.Counties[14] = true

	if !f.Matches(filterEvent("a", 14, "Olycka", SeveritySmall)) {
		t.Error("quick-filter county should win over baseline")
	}
	if f.Matches(filterEvent("b", 1, "Olycka", SeveritySmall)) {
		t.Error("baseline county should be ignored while quick-filter is active")
	}
}

func TestFilterMatches_AliasCountyNormalized(t *testing.T) {
	f := NewFilterState()
	f.Counties[1] = true

	// Event arrives with the legacy Stockholm code.
	if !f.Matches(filterEvent("a", 2, "Olycka", SeveritySmall)) {
		t.Error("legacy county code should normalize and match canonical filter entry")
	}
}

func TestFilterMatches_DimensionsAreANDed(t *testing.T) {
	f := NewFilterState()
	f.MessageTypes["Olycka"] = true
	f.Severities[SeverityLarge] = true

	if f.Matches(filterEvent("a", 14, "Olycka", SeveritySmall)) {
		t.Error("event must satisfy every active dimension")
	}
	if !f.Matches(filterEvent("b", 14, "Olycka", SeverityLarge)) {
		t.Error("event satisfying all dimensions should match")
	}
}

// Adding a constraint to any dimension must never grow the result set.
func TestFilterMonotonicity(t *testing.T) {
	events := []*Event{
		filterEvent("a", 1, "Olycka", SeveritySmall),
		filterEvent("b", 14, "Vägarbete", SeverityLarge),
		filterEvent("c", CountyNational, "Olycka, Viktig trafikinformation", SeverityVeryLarge),
		filterEvent("d", 4, "Färjor", SeverityNone),
	}

	count := func(f FilterState) int {
		n := 0
		for _, e := range events {
			if f.Matches(e) {
				n++
			}
		}
		return n
	}

	base := NewFilterState()
	baseCount := count(base)

	narrowed := base.Clone()
	narrowed.MessageTypes["Olycka"] = true
	if count(narrowed) > baseCount {
		t.Error("adding a message-type constraint grew the result set")
	}

	further := narrowed.Clone()
	further.Severities[SeveritySmall] = true
	if count(further) > count(narrowed) {
		t.Error("adding a severity constraint grew the result set")
	}

	evenMore := further.Clone()
	evenMore.Counties[1] = true
	if count(evenMore) > count(further) {
		t.Error("adding a county constraint grew the result set")
	}
}
