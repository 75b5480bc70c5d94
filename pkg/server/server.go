package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aigoflow/multichat-service/internal/handlers"
	"github.com/aigoflow/multichat-service/internal/services"
	"github.com/aigoflow/multichat-service/internal/web"
)

// Deps are the services the HTTP surface is built on
type Deps struct {
	Chat          *services.ChatService
	Credentials   *services.CredentialService
	Auth          *services.AuthService
	Feedback      *services.FeedbackService
	Metrics       *services.MetricsService
	Registry      *prometheus.Registry
	SessionCookie string
}

type Server struct {
	httpAddr string
	deps     Deps
}

func NewServer(httpAddr string, deps Deps) *Server {
	return &Server{
		httpAddr: httpAddr,
		deps:     deps,
	}
}

// Handler returns the complete HTTP handler with session and access log
// middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	handlers.NewAuthHandler(s.deps.Auth, s.deps.SessionCookie).RegisterRoutes(mux)
	handlers.NewKeysHandler(s.deps.Credentials).RegisterRoutes(mux)
	handlers.NewChatHandler(s.deps.Chat).RegisterRoutes(mux)
	handlers.NewFeedbackHandler(s.deps.Feedback).RegisterRoutes(mux)
	handlers.NewMetricsHandler(s.deps.Metrics).RegisterRoutes(mux)
	web.RegisterRoutes(mux)

	if s.deps.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}))
	}

	return accessLog(handlers.WithSession(s.deps.Auth, s.deps.SessionCookie, mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.httpAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", s.httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working behind the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = ulid.Make().String()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("HTTP request",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
