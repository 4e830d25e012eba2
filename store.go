package vagkoll

import "time"

// Store is the canonical ordered collection of events, most recently created
// or updated first. It is owned exclusively by the Engine; nothing else
// mutates it. The Engine holds the lock, so Store itself is not safe for
// concurrent use.
//
// Invariant: ExternalID is unique across the store. Upsert is the only way
// in, and it replaces in place rather than inserting a duplicate.
type Store struct {
	events []*Event
	byExt  map[string]int // ExternalID → index into events
}

func NewStore() *Store {
	return &Store{byExt: make(map[string]int)}
}

func (s *Store) Len() int {
	return len(s.events)
}

// Get returns the event with the given ExternalID, or nil.
func (s *Store) Get(externalID string) *Event {
	if i, ok := s.byExt[externalID]; ok {
		return s.events[i]
	}
	return nil
}

// Upsert merges an incoming record. A new ExternalID is inserted at the
// head; a known one has its fields replaced (incoming wins) and is moved to
// the head to keep most-recent-first order. Returns true when the record was
// genuinely new.
func (s *Store) Upsert(e *Event) bool {
	if i, ok := s.byExt[e.ExternalID]; ok {
		s.events = append(s.events[:i], s.events[i+1:]...)
		s.events = append([]*Event{e}, s.events...)
		s.reindex()
		return false
	}
	s.events = append([]*Event{e}, s.events...)
	s.reindex()
	return true
}

// Append adds an event at the tail, used when appending a REST page (pages
// arrive already ordered most-recent-first, older than what we hold).
// Returns false without touching the store when the ExternalID is already
// present: a live merge may have delivered the row before the page did.
func (s *Store) Append(e *Event) bool {
	if _, ok := s.byExt[e.ExternalID]; ok {
		return false
	}
	s.byExt[e.ExternalID] = len(s.events)
	s.events = append(s.events, e)
	return true
}

// RemoveExpired drops every event whose validity window closed before now
// and returns how many were removed.
func (s *Store) RemoveExpired(now time.Time) int {
	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if e.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed > 0 {
		s.events = kept
		s.reindex()
	}
	return removed
}

// Snapshot returns a copy of the event list in store order. The pointers are
// shared; callers must treat events as read-only.
func (s *Store) Snapshot() []*Event {
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}

// Reset discards everything.
func (s *Store) Reset() {
	s.events = nil
	s.byExt = make(map[string]int)
}

func (s *Store) reindex() {
	s.byExt = make(map[string]int, len(s.events))
	for i, e := range s.events {
		s.byExt[e.ExternalID] = i
	}
}
