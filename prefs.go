package vagkoll

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Preference keys. Values are opaque strings the engine reads at
// initialization; no validation beyond type coercion.
const (
	PrefMonitoredCounties = "monitored_counties" // JSON array of county codes
	PrefQuickFilters      = "quick_filters"      // JSON, see QuickFilters
	PrefSoundEnabled      = "sound_enabled"      // "true" / "false"
	PrefLastSeenRealtime  = "last_seen_realtime" // RFC3339
	PrefLastSeenPlanned   = "last_seen_planned"  // RFC3339
	PrefLastSeenAll       = "last_seen_all"      // RFC3339
)

func lastSeenKey(mode Mode) string {
	switch mode {
	case ModeRealtime:
		return PrefLastSeenRealtime
	case ModePlanned:
		return PrefLastSeenPlanned
	default:
		return PrefLastSeenAll
	}
}

// LoadLastSeen reads the persisted "seen up to" mark for a tab. Unset or
// unparseable marks coerce to the zero time, which counts everything as
// unseen.
func LoadLastSeen(p Preferences, mode Mode) time.Time {
	raw, ok, err := p.Get(lastSeenKey(mode))
	if err != nil || !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveLastSeen stamps the "seen up to" mark for a tab.
func SaveLastSeen(p Preferences, mode Mode, t time.Time) error {
	return p.Set(lastSeenKey(mode), t.UTC().Format(time.RFC3339Nano))
}

// Preferences is the injected client-local settings provider: explicit
// get/set plus change subscription, replacing ambient global state.
type Preferences interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Watch(fn func(key, value string)) func()
}

// PrefKV is the persistence row for one preference.
type PrefKV struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     string `gorm:"column:value"`
	UpdatedAt string `gorm:"column:updated_at"`
}

func (PrefKV) TableName() string { return "preferences" }

// SQLitePreferences persists preferences in a local sqlite database.
type SQLitePreferences struct {
	db *gorm.DB

	watchersMu  sync.Mutex
	watchers    map[int]func(key, value string)
	nextWatcher int
}

var _ Preferences = (*SQLitePreferences)(nil)

// OpenPreferences opens (and migrates) the preference database at path.
// Use "file::memory:?cache=shared" for an in-memory database.
func OpenPreferences(path string) (*SQLitePreferences, error) {
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open preferences db: %w", err)
	}
	if err := db.AutoMigrate(&PrefKV{}); err != nil {
		return nil, fmt.Errorf("migrate preferences: %w", err)
	}
	return &SQLitePreferences{db: db, watchers: make(map[int]func(string, string))}, nil
}

func (p *SQLitePreferences) Get(key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, errors.New("key is required")
	}

	var row PrefKV
	if err := p.db.Where("key = ?", key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query preference %s: %w", key, err)
	}
	return row.Value, true, nil
}

func (p *SQLitePreferences) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}

	row := PrefKV{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := p.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("upsert preference %s: %w", key, err)
	}

	p.notify(key, value)
	return nil
}

// Watch registers a change callback and returns its unsubscribe function.
// Callbacks fire synchronously after a successful Set.
func (p *SQLitePreferences) Watch(fn func(key, value string)) func() {
	p.watchersMu.Lock()
	id := p.nextWatcher
	p.nextWatcher++
	p.watchers[id] = fn
	p.watchersMu.Unlock()

	return func() {
		p.watchersMu.Lock()
		delete(p.watchers, id)
		p.watchersMu.Unlock()
	}
}

func (p *SQLitePreferences) notify(key, value string) {
	p.watchersMu.Lock()
	watchers := make([]func(string, string), 0, len(p.watchers))
	for _, w := range p.watchers {
		watchers = append(watchers, w)
	}
	p.watchersMu.Unlock()

	for _, w := range watchers {
		w(key, value)
	}
}

// QuickFilters is the persisted shape of the quick-filter selection.
type QuickFilters struct {
	MessageTypes []string `json:"messageTypes,omitempty"`
	Severities   []string `json:"severities,omitempty"`
	Counties     []int    `json:"counties,omitempty"`
}

// LoadFilterState assembles a FilterState from persisted preferences:
// the quick-filter selection plus the monitored-county baseline. Unreadable
// values coerce to empty, never to an error — a corrupt preference must not
// keep the dashboard from starting.
func LoadFilterState(p Preferences) FilterState {
	filters := NewFilterState()

	if raw, ok, err := p.Get(PrefQuickFilters); err == nil && ok {
		var quick QuickFilters
		if json.Unmarshal([]byte(raw), &quick) == nil {
			for _, t := range quick.MessageTypes {
				filters.MessageTypes[t] = true
			}
			for _, s := range quick.Severities {
				filters.Severities[s] = true
			}
			for _, c := range quick.Counties {
				filters.Counties[NormalizeCounty(c)] = true
			}
		}
	}

	for _, c := range LoadMonitoredCounties(p) {
		filters.MonitoredCounties[c] = true
	}
	return filters
}

// LoadMonitoredCounties reads the persisted baseline county selection,
// normalized.
func LoadMonitoredCounties(p Preferences) []int {
	raw, ok, err := p.Get(PrefMonitoredCounties)
	if err != nil || !ok {
		return nil
	}
	var codes []int
	if json.Unmarshal([]byte(raw), &codes) != nil {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, c := range codes {
		c = NormalizeCounty(c)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// SaveMonitoredCounties persists the baseline county selection, normalized
// so aliases can't produce duplicate entries.
func SaveMonitoredCounties(p Preferences, codes []int) error {
	seen := make(map[int]bool)
	normalized := make([]int, 0, len(codes))
	for _, c := range codes {
		c = NormalizeCounty(c)
		if !seen[c] {
			seen[c] = true
			normalized = append(normalized, c)
		}
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	return p.Set(PrefMonitoredCounties, string(raw))
}

// SoundEnabled reads the sound toggle, defaulting to off.
func SoundEnabled(p Preferences) bool {
	raw, ok, err := p.Get(PrefSoundEnabled)
	return err == nil && ok && raw == "true"
}
