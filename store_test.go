package vagkoll

import (
	"testing"
	"time"
)

func storeEvent(ext string, created time.Time) *Event {
	return &Event{ExternalID: ext, CreatedAt: created, CountyNo: 3}
}

func TestStoreUpsert_InsertsAtHead(t *testing.T) {
	s := NewStore()
	base := time.Now()

	s.Upsert(storeEvent("1", base))
	s.Upsert(storeEvent("2", base.Add(time.Minute)))

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snap))
	}
	if snap[0].ExternalID != "2" || snap[1].ExternalID != "1" {
		t.Errorf("expected most-recent-first order, got [%s, %s]", snap[0].ExternalID, snap[1].ExternalID)
	}
}

func TestStoreUpsert_ReplacesAndMovesToHead(t *testing.T) {
	s := NewStore()
	base := time.Now()

	// Store: [B(ext=2), A(ext=1)]
	s.Upsert(storeEvent("1", base))
	s.Upsert(storeEvent("2", base.Add(time.Minute)))

	// Live update for ext=1 arrives → store becomes [C, B].
	updated := storeEvent("1", base)
	updated.UpdatedAt = base.Add(2 * time.Minute)
	updated.Title = "updated"
	if inserted := s.Upsert(updated); inserted {
		t.Error("upsert of a known externalId must not report an insert")
	}

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 events after upsert, got %d", len(snap))
	}
	if snap[0].ExternalID != "1" || snap[0].Title != "updated" {
		t.Errorf("expected updated record at head, got %s %q", snap[0].ExternalID, snap[0].Title)
	}
	if snap[1].ExternalID != "2" {
		t.Errorf("expected ext=2 to remain, got %s", snap[1].ExternalID)
	}
}

// For all sequences of inserts and upserts, ExternalID stays unique.
func TestStoreDedupInvariant(t *testing.T) {
	s := NewStore()
	base := time.Now()

	sequence := []string{"1", "2", "1", "3", "2", "2", "1", "4"}
	for i, ext := range sequence {
		s.Upsert(storeEvent(ext, base.Add(time.Duration(i)*time.Second)))
	}

	seen := make(map[string]bool)
	for _, e := range s.Snapshot() {
		if seen[e.ExternalID] {
			t.Fatalf("duplicate externalId %s in store", e.ExternalID)
		}
		seen[e.ExternalID] = true
	}
	if s.Len() != 4 {
		t.Errorf("expected 4 unique events, got %d", s.Len())
	}
}

func TestStoreAppend_SkipsKnownExternalID(t *testing.T) {
	s := NewStore()
	base := time.Now()

	s.Upsert(storeEvent("1", base))
	if s.Append(storeEvent("1", base)) {
		t.Error("append of a known externalId should be skipped")
	}
	if !s.Append(storeEvent("2", base)) {
		t.Error("append of a new externalId should succeed")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 events, got %d", s.Len())
	}
	// Appended rows go at the tail (pages are older than live rows).
	if snap := s.Snapshot(); snap[1].ExternalID != "2" {
		t.Errorf("expected appended event at tail, got %s", snap[1].ExternalID)
	}
}

func TestStoreRemoveExpired(t *testing.T) {
	s := NewStore()
	now := time.Now()

	expired := storeEvent("old", now.Add(-time.Hour))
	expired.EndTime = timePtr(now.Add(-time.Minute))
	open := storeEvent("open", now) // nil EndTime: until further notice
	current := storeEvent("current", now)
	current.EndTime = timePtr(now.Add(time.Hour))

	s.Upsert(expired)
	s.Upsert(open)
	s.Upsert(current)

	if removed := s.RemoveExpired(now); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if s.Get("old") != nil {
		t.Error("expired event still present")
	}
	if s.Get("open") == nil || s.Get("current") == nil {
		t.Error("live events should survive the sweep")
	}

	// Index must stay usable after compaction.
	relookup := s.Get("current")
	if relookup == nil || relookup.ExternalID != "current" {
		t.Error("index out of sync after removal")
	}
}
