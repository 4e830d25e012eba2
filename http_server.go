package vagkoll

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes the engine's derived view over local HTTP, for the browser
// frontend and for poking at a running daemon.
type Server struct {
	Engine *Engine
	Loader PageLoader
	Push   *PushManager
	Prefs  Preferences

	httpServer *http.Server
}

// responseLogger wraps ResponseWriter to capture the status code.
type responseLogger struct {
	http.ResponseWriter
	status int
}

func (rl *responseLogger) WriteHeader(code int) {
	rl.status = code
	rl.ResponseWriter.WriteHeader(code)
}

func (rl *responseLogger) Flush() {
	if f, ok := rl.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseLogger{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		logrus.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": wrapped.status,
		}).Debug("http request")
	})
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogging)

	r.Get("/api/events.json", s.handleEvents)
	r.Get("/api/status.json", s.handleStatus)
	r.Get("/api/unseen.json", s.handleUnseen)
	r.Post("/api/seen.json", s.handleMarkSeen)
	r.Get("/api/counties.json", s.handleCounties)
	r.Get("/api/history/{externalId}.json", s.handleHistory)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start begins serving on addr. Returns once the goroutine is launched;
// serve errors after startup are logged, not returned.
func (s *Server) Start(addr string) {
	if addr == "" {
		addr = ":8080"
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithField("addr", addr).Info("🌐 http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("http server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
