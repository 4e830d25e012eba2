package vagkoll

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineState is the lifecycle of the synchronization engine. Live merges
// and expiry ticks are store mutations, not lifecycle transitions, and can
// arrive in any state.
type EngineState string

const (
	StateIdle        EngineState = "idle"
	StateLoading     EngineState = "loading"
	StateReady       EngineState = "ready"
	StateLoadingMore EngineState = "loading-more"
)

// DefaultPageSize matches the backend's page size.
const DefaultPageSize = 20

// LiveStream is the push collaborator: an unbounded sequence of raw event
// payloads with no delivery-order guarantee across distinct ExternalIDs.
// Run blocks until the stream ends or ctx is cancelled, invoking handler
// once per frame in receipt order. Frames stay undecoded at the transport:
// the engine needs the raw bytes to merge partial records over what it
// already holds.
type LiveStream interface {
	Run(ctx context.Context, handler func(payload []byte)) error
}

// EventListener receives every event the engine accepts from the live
// stream, after it has been merged into the store.
type EventListener func(Event)

// Notifier is the best-effort sound/notification cue fired on accepted live
// events. Failures are swallowed; a broken audio device must never affect
// the store.
type Notifier interface {
	Cue(e Event)
}

// Engine owns the canonical store and the pagination cursor. Every mutation
// funnels through it: REST pages, live merges and expiry sweeps are
// serialized under one lock, so the view always reflects a fully-applied
// sequence of operations, never a partial merge.
type Engine struct {
	loader   PageLoader
	pageSize int

	mu         sync.Mutex
	store      *Store
	mode       Mode
	filters    FilterState
	offset     int
	hasMore    bool
	generation uint64
	state      EngineState
	loading    bool
	connected  bool

	listenersMu  sync.Mutex
	listeners    map[int]EventListener
	nextListener int

	// Notifier and SoundEnabled are optional; set them before the first
	// live event arrives.
	Notifier     Notifier
	SoundEnabled func() bool

	now func() time.Time
}

func NewEngine(loader PageLoader, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Engine{
		loader:    loader,
		pageSize:  pageSize,
		store:     NewStore(),
		filters:   NewFilterState(),
		hasMore:   true,
		state:     StateIdle,
		listeners: make(map[int]EventListener),
		now:       time.Now,
	}
}

// SetClock overrides the engine's notion of now. Tests only.
func (eng *Engine) SetClock(clock func() time.Time) {
	eng.mu.Lock()
	eng.now = clock
	eng.mu.Unlock()
}

// EngineStatus is an observable snapshot of engine state.
type EngineStatus struct {
	State      EngineState `json:"state"`
	Connected  bool        `json:"connected"`
	Offset     int         `json:"offset"`
	HasMore    bool        `json:"hasMore"`
	StoreSize  int         `json:"storeSize"`
	Generation uint64      `json:"generation"`
}

func (eng *Engine) Status() EngineStatus {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return EngineStatus{
		State:      eng.state,
		Connected:  eng.connected,
		Offset:     eng.offset,
		HasMore:    eng.hasMore,
		StoreSize:  eng.store.Len(),
		Generation: eng.generation,
	}
}

// Reset discards the store and cursor, adopts the new mode and filters, and
// loads page zero. A reset always wins over anything in flight: the
// generation counter advances immediately, so a page result for the old
// filters that completes later is recognized as stale and dropped.
func (eng *Engine) Reset(ctx context.Context, mode Mode, filters FilterState) error {
	eng.mu.Lock()
	eng.generation++
	gen := eng.generation
	eng.store.Reset()
	eng.offset = 0
	eng.hasMore = true
	eng.loading = true
	eng.state = StateLoading
	eng.mode = mode
	eng.filters = filters.Clone()
	capturedFilters := eng.filters
	eng.mu.Unlock()

	logrus.WithFields(logrus.Fields{"mode": mode, "generation": gen}).Debug("🔄 engine reset")

	page, err := eng.loader.FetchEventsPage(ctx, 0, eng.pageSize, capturedFilters, mode)
	return eng.applyPage(gen, page, err)
}

// LoadMore fetches the next page. It is safe to call repeatedly from a
// visibility trigger: a call while a load is in flight, or after the last
// page, is a no-op.
func (eng *Engine) LoadMore(ctx context.Context) error {
	eng.mu.Lock()
	if eng.loading || !eng.hasMore {
		eng.mu.Unlock()
		return nil
	}
	eng.loading = true
	eng.state = StateLoadingMore
	gen := eng.generation
	off := eng.offset
	mode := eng.mode
	filters := eng.filters
	eng.mu.Unlock()

	page, err := eng.loader.FetchEventsPage(ctx, off, eng.pageSize, filters, mode)
	return eng.applyPage(gen, page, err)
}

// applyPage merges a completed page fetch, unless a reset advanced the
// generation while the request was in flight — stale results are discarded
// by design, not an error.
func (eng *Engine) applyPage(gen uint64, page []*Event, err error) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if gen != eng.generation {
		logrus.WithField("generation", gen).Debug("🗑️  discarding stale page result")
		return nil
	}

	eng.loading = false

	if err != nil {
		// Transient: the store is untouched and the caller may retry. A
		// failed initial load drops back to idle rather than ready, so
		// status never claims a synchronized view that was never built.
		if eng.offset == 0 && eng.store.Len() == 0 {
			eng.state = StateIdle
		} else {
			eng.state = StateReady
		}
		return fmt.Errorf("page load failed: %w", err)
	}
	eng.state = StateReady

	appended := 0
	for _, e := range page {
		// A live merge may have already delivered this row while the
		// page was in flight; the store keeps the fresher copy.
		if eng.store.Append(e) {
			appended++
		}
	}
	// The server-side offset counts every row it returned, including the
	// ones we already held.
	eng.offset += len(page)
	eng.hasMore = len(page) == eng.pageSize

	metricPagesLoaded.Inc()
	metricStoreSize.Set(float64(eng.store.Len()))
	logrus.WithFields(logrus.Fields{
		"returned": len(page),
		"appended": appended,
		"offset":   eng.offset,
		"hasMore":  eng.hasMore,
	}).Debug("📄 page merged")
	return nil
}

// HandleIncomingPayload decodes one raw stream frame and merges it. The
// stream may deliver partial records: fields the payload carries win, and
// everything the stored copy already holds is preserved, by unmarshalling
// the payload over a copy of the existing record. Malformed payloads are
// dropped and logged; the subscription is unaffected.
func (eng *Engine) HandleIncomingPayload(payload []byte) {
	var incoming Event
	if err := json.Unmarshal(payload, &incoming); err != nil {
		metricLiveMerged.WithLabelValues("dropped").Inc()
		logrus.WithError(err).Warn("dropping malformed stream payload")
		return
	}
	if incoming.ExternalID == "" {
		metricLiveMerged.WithLabelValues("dropped").Inc()
		logrus.Warn("dropping live event without externalId")
		return
	}

	eng.mu.Lock()
	if existing := eng.store.Get(incoming.ExternalID); existing != nil {
		merged := *existing
		if err := json.Unmarshal(payload, &merged); err == nil {
			incoming = merged
		}
	}
	eng.mu.Unlock()

	eng.HandleIncoming(&incoming)
}

// HandleIncoming merges one full record from the live stream. Records are
// processed to completion one at a time; correctness does not depend on
// arrival order across distinct ExternalIDs. Partial records must go
// through HandleIncomingPayload, which resolves them against the store.
func (eng *Engine) HandleIncoming(e *Event) {
	if e == nil || e.ExternalID == "" {
		metricLiveMerged.WithLabelValues("dropped").Inc()
		logrus.Warn("dropping live event without externalId")
		return
	}

	eng.mu.Lock()
	now := eng.now()

	// Stale on arrival: validity window already closed.
	if e.Expired(now) {
		eng.mu.Unlock()
		metricLiveMerged.WithLabelValues("dropped").Inc()
		return
	}

	// Wrong tab for the active mode filter.
	if eng.mode != ModeAll && EventMode(e, now) != eng.mode {
		eng.mu.Unlock()
		metricLiveMerged.WithLabelValues("dropped").Inc()
		return
	}

	inserted := eng.store.Upsert(e)
	if inserted {
		// A genuinely new row the REST loader has not seen: bump the
		// cursor so the next page fetch skips it. Upserts are the same
		// logical row, already counted.
		eng.offset++
	}
	metricStoreSize.Set(float64(eng.store.Len()))
	eng.mu.Unlock()

	if inserted {
		metricLiveMerged.WithLabelValues("insert").Inc()
	} else {
		metricLiveMerged.WithLabelValues("update").Inc()
	}

	eng.publish(*e)
	eng.cue(*e)
}

// publish fans the event out to registered listeners, outside the store
// lock so a slow listener can't stall merging.
func (eng *Engine) publish(e Event) {
	eng.listenersMu.Lock()
	listeners := make([]EventListener, 0, len(eng.listeners))
	for _, l := range eng.listeners {
		listeners = append(listeners, l)
	}
	eng.listenersMu.Unlock()

	for _, l := range listeners {
		l(e)
	}
}

// cue schedules the sound/notification side effect. Best-effort: it runs on
// its own goroutine and recovers from anything the notifier throws.
func (eng *Engine) cue(e Event) {
	if eng.Notifier == nil {
		return
	}
	if eng.SoundEnabled != nil && !eng.SoundEnabled() {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Debug("notification cue failed")
			}
		}()
		eng.Notifier.Cue(e)
	}()
}

// Subscribe registers a listener for live-merged events and returns its
// unsubscribe function.
func (eng *Engine) Subscribe(listener EventListener) func() {
	eng.listenersMu.Lock()
	id := eng.nextListener
	eng.nextListener++
	eng.listeners[id] = listener
	eng.listenersMu.Unlock()

	return func() {
		eng.listenersMu.Lock()
		delete(eng.listeners, id)
		eng.listenersMu.Unlock()
	}
}

// View returns the filtered store, most-recent-first. Pure projection: no
// state changes, safe to call at any point, even mid-load.
func (eng *Engine) View() []*Event {
	eng.mu.Lock()
	snapshot := eng.store.Snapshot()
	filters := eng.filters
	eng.mu.Unlock()

	view := make([]*Event, 0, len(snapshot))
	for _, e := range snapshot {
		if filters.Matches(e) {
			view = append(view, e)
		}
	}
	return view
}

// Filters returns the engine's active filter state (a copy).
func (eng *Engine) Filters() FilterState {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return eng.filters.Clone()
}

// Mode returns the active mode filter.
func (eng *Engine) Mode() Mode {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return eng.mode
}

// UnseenSince derives the badge count: how many store events changed after
// the given instant. Recomputed on demand from the store; there is no
// separate counter to drift.
func (eng *Engine) UnseenSince(mode Mode, since time.Time) int {
	eng.mu.Lock()
	snapshot := eng.store.Snapshot()
	now := eng.now()
	eng.mu.Unlock()

	count := 0
	for _, e := range snapshot {
		if !e.EffectiveTime().After(since) {
			continue
		}
		if mode != ModeAll && EventMode(e, now) != mode {
			continue
		}
		count++
	}
	return count
}

// Tick runs one expiry sweep, dropping events whose validity window closed.
// The cursor is deliberately untouched: expired rows were already counted
// once and must not be re-fetched.
func (eng *Engine) Tick() int {
	eng.mu.Lock()
	removed := eng.store.RemoveExpired(eng.now())
	metricStoreSize.Set(float64(eng.store.Len()))
	eng.mu.Unlock()

	if removed > 0 {
		metricEventsExpired.Add(float64(removed))
		logrus.WithField("removed", removed).Debug("🧹 expired events swept")
	}
	return removed
}

// SweepInterval is how often the expiry sweeper runs.
var SweepInterval = 1 * time.Minute

// RunSweeper ticks the expiry sweep until ctx ends.
func (eng *Engine) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eng.Tick()
		}
	}
}

// RunLive attaches the engine to a live stream and blocks until the stream
// ends. On any transport error the engine just flips its connected flag;
// reconnecting is the caller's concern, and a reconnect re-delivering events
// we have already seen is harmless (upsert by ExternalID is idempotent).
func (eng *Engine) RunLive(ctx context.Context, stream LiveStream) error {
	eng.setConnected(true)
	err := stream.Run(ctx, eng.HandleIncomingPayload)
	eng.setConnected(false)
	if err != nil && ctx.Err() == nil {
		logrus.WithError(err).Warn("📡 live stream disconnected")
	}
	return err
}

func (eng *Engine) setConnected(connected bool) {
	eng.mu.Lock()
	eng.connected = connected
	eng.mu.Unlock()
}

// Connected reports whether a live stream is currently attached.
func (eng *Engine) Connected() bool {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return eng.connected
}
