package vagkoll

// FilterState is the active multi-dimensional filter. An empty set in any
// dimension means "no restriction on that dimension". Counties holds the
// quick-filter selection; MonitoredCounties is the persisted baseline that
// takes over when the quick-filter is empty.
type FilterState struct {
	MessageTypes      map[string]bool
	Severities        map[string]bool
	Counties          map[int]bool
	MonitoredCounties map[int]bool
}

// NewFilterState returns an empty (match-everything) filter.
func NewFilterState() FilterState {
	return FilterState{
		MessageTypes:      make(map[string]bool),
		Severities:        make(map[string]bool),
		Counties:          make(map[int]bool),
		MonitoredCounties: make(map[int]bool),
	}
}

// Clone returns an independent copy. Engine resets capture the filter state
// at reset time so later toggles can't leak into an in-flight load.
func (f FilterState) Clone() FilterState {
	clone := NewFilterState()
	for k := range f.MessageTypes {
		clone.MessageTypes[k] = true
	}
	for k := range f.Severities {
		clone.Severities[k] = true
	}
	for k := range f.Counties {
		clone.Counties[NormalizeCounty(k)] = true
	}
	for k := range f.MonitoredCounties {
		clone.MonitoredCounties[NormalizeCounty(k)] = true
	}
	return clone
}

// EffectiveCounties is the county set actually enforced: the quick-filter
// set when non-empty, otherwise the monitored baseline. Nil means no county
// restriction at all.
func (f FilterState) EffectiveCounties() map[int]bool {
	if len(f.Counties) > 0 {
		return f.Counties
	}
	if len(f.MonitoredCounties) > 0 {
		return f.MonitoredCounties
	}
	return nil
}

// Matches evaluates the filter against one event. Active dimensions are
// ANDed together; an empty dimension passes everything.
func (f FilterState) Matches(e *Event) bool {
	if len(f.MessageTypes) > 0 {
		found := false
		for _, t := range e.MessageTypes() {
			if f.MessageTypes[t] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Severities) > 0 && !f.Severities[e.SeverityText] {
		return false
	}

	// National events are never hidden by geographic narrowing.
	if e.CountyNo != CountyNational {
		if counties := f.EffectiveCounties(); counties != nil {
			if !counties[NormalizeCounty(e.CountyNo)] {
				return false
			}
		}
	}

	return true
}
