package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"node.town/hark/db"
	"node.town/hark/metrics"
	"node.town/hark/transcription"
)

// Archive is where finished sessions are kept.
type Archive interface {
	Save(ctx context.Context, t db.Transcript) (string, error)
	Recent(ctx context.Context, limit int) ([]db.Transcript, error)
	Get(ctx context.Context, id string) (db.Transcript, error)
}

// SessionFactory returns a fresh session writing to sink. Every request
// gets its own session, decoder and detokenizer.
type SessionFactory func(sink transcription.Sink) *transcription.Session

type Server struct {
	Router *chi.Mux

	sessions  SessionFactory
	archive   Archive
	metrics   *metrics.Metrics
	audioDir  string
	maxUpload int64
	logger    *log.Logger
	upgrader  websocket.Upgrader
}

type Options struct {
	Sessions  SessionFactory
	Archive   Archive
	Metrics   *metrics.Metrics
	AudioDir  string
	MaxUpload int64
	Logger    *log.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		Router:    chi.NewRouter(),
		sessions:  opts.Sessions,
		archive:   opts.Archive,
		metrics:   opts.Metrics,
		audioDir:  opts.AudioDir,
		maxUpload: opts.MaxUpload,
		logger:    logger,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 64 << 20
	}

	r := s.Router
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoutes)
	r.Post("/transcribe", s.handleTranscribe)
	if s.audioDir != "" {
		r.Get("/listen", s.handleListen)
	}
	r.Get("/transcripts", s.handleTranscripts)
	r.Get("/transcripts/{id}", s.handleTranscript)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return s
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http", "url", fmt.Sprintf("http://localhost%s", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info(r.Method,
			"path", r.URL.Path,
			"status", status,
			"elapsed", elapsed,
			"id", middleware.GetReqID(r.Context()),
		)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, route, status, elapsed)
		}
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	chi.Walk(s.Router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		fmt.Fprintf(&b, "%-6s %s\n", method, route)
		return nil
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, b.String())
}
