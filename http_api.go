package vagkoll

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	view := s.Engine.View()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": view,
		"count":  len(view),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"engine": s.Engine.Status(),
		"mode":   s.Engine.Mode(),
	}
	if s.Push != nil {
		payload["push"] = s.Push.State()
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleUnseen serves the badge count: events changed since ?since=RFC3339,
// optionally narrowed by ?mode=realtime|planned. Without ?since it falls
// back to the persisted last-seen mark for that mode, so a restarted
// frontend picks up where it left off.
func (s *Server) handleUnseen(w http.ResponseWriter, r *http.Request) {
	mode := Mode(r.URL.Query().Get("mode"))

	var since time.Time
	if sinceParam := r.URL.Query().Get("since"); sinceParam != "" {
		var err error
		since, err = time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
	} else if s.Prefs != nil {
		since = LoadLastSeen(s.Prefs, mode)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"unseen": s.Engine.UnseenSince(mode, since),
		"since":  since,
	})
}

// handleMarkSeen stamps the persisted last-seen mark for ?mode= at now,
// zeroing that tab's badge for subsequent unseen queries.
func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	if s.Prefs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "preferences not available"})
		return
	}
	mode := Mode(r.URL.Query().Get("mode"))
	now := time.Now()
	if err := SaveLastSeen(s.Prefs, mode, now); err != nil {
		logrus.WithError(err).Warn("failed to persist last-seen mark")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist mark"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode": mode,
		"seen": now,
	})
}

func (s *Server) handleCounties(w http.ResponseWriter, r *http.Request) {
	type county struct {
		CountyNo int    `json:"countyNo"`
		Name     string `json:"name"`
	}
	counties := make([]county, 0, len(countyNames))
	for no, name := range countyNames {
		counties = append(counties, county{CountyNo: no, Name: name})
	}
	sort.Slice(counties, func(i, j int) bool {
		return counties[i].CountyNo < counties[j].CountyNo
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"counties": counties})
}

// handleHistory proxies the on-demand history fetch for one event.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalId")
	if externalID == "" {
		http.NotFound(w, r)
		return
	}

	versions, err := s.Loader.FetchEventHistory(r.Context(), externalID)
	if err != nil {
		logrus.WithError(err).WithField("externalId", externalID).Warn("history fetch failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "history fetch failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"externalId": externalID,
		"versions":   versions,
	})
}
