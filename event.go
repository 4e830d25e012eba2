package vagkoll

import (
	"encoding/json"
	"strings"
	"time"
)

// Severity vocabulary used by the upstream feed. The labels are ordinal:
// they appear here from least to most impact.
const (
	SeverityNone      = "Ingen påverkan"
	SeveritySmall     = "Liten påverkan"
	SeverityLarge     = "Stor påverkan"
	SeverityVeryLarge = "Mycket stor påverkan"
)

// SeverityRank maps a severity label to its ordinal position.
// Unknown labels rank below everything so they sort last.
var SeverityRank = map[string]int{
	SeverityNone:      1,
	SeveritySmall:     2,
	SeverityLarge:     3,
	SeverityVeryLarge: 4,
}

// Event is one logical traffic/road occurrence. ExternalID is the identity
// key: two records with the same ExternalID are the same event at different
// points in time, and receiving one that's already present is an upsert,
// never a duplicate insert.
//
// ID is the upstream surrogate row id, unique per record ever seen. It is
// carried through but identity decisions never use it.
type Event struct {
	ID         int64      `json:"id"`
	ExternalID string     `json:"externalId"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt,omitempty"`
	StartTime  *time.Time `json:"startTime,omitempty"`
	EndTime    *time.Time `json:"endTime,omitempty"`

	// CountyNo 0 means a national event that bypasses county filtering.
	CountyNo int `json:"countyNo"`

	// MessageType is comma-joined upstream ("Olycka, Vägarbete").
	MessageType  string `json:"messageType"`
	SeverityText string `json:"severityText"`
	HistoryCount int    `json:"historyCount"`

	// Presentation payload. Preserved verbatim, never interpreted.
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
}

// MessageTypes splits the comma-joined MessageType field into a clean set
// of category names.
func (e *Event) MessageTypes() []string {
	return ParseMessageTypes(e.MessageType)
}

// EffectiveTime is the ordering timestamp: UpdatedAt when the event has been
// modified, CreatedAt otherwise.
func (e *Event) EffectiveTime() time.Time {
	if !e.UpdatedAt.IsZero() {
		return e.UpdatedAt
	}
	return e.CreatedAt
}

// Expired reports whether the event's validity window has closed.
// A nil EndTime means "until further notice" and never expires.
func (e *Event) Expired(now time.Time) bool {
	return e.EndTime != nil && e.EndTime.Before(now)
}

// ParseMessageTypes splits a comma-joined category string. Splitting on
// spaces would break multi-word categories like "Viktig trafikinformation",
// so only the comma separates; surrounding whitespace is trimmed.
func ParseMessageTypes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ','
	})
	var types []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			types = append(types, f)
		}
	}
	return types
}

// EventHistoryVersion is an immutable snapshot of an Event at a prior point
// in time, keyed by (ExternalID, VersionTime). History carries its own
// severity and location because both can change between versions.
type EventHistoryVersion struct {
	ExternalID   string    `json:"externalId"`
	VersionTime  time.Time `json:"versionTime"`
	SeverityText string    `json:"severityText"`
	Location     string    `json:"location,omitempty"`
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
}
