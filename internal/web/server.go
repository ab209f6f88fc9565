package web

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/loicwouters/SDL/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr        string
	handlers    *Handlers
	metrics     http.Handler
	metricsPath string
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics serves h at path (e.g. a Prometheus handler at /metrics).
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, broadcaster *StatusBroadcaster, dev Device, ui UIConfig, opts ...Option) (*Server, error) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("web: sub static fs: %w", err)
	}

	s := &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster, dev, ui, subFS),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /servo", s.handlers.HandleServo)
	mux.HandleFunc("GET /motor", s.handlers.HandleMotor)
	mux.HandleFunc("GET /launch", s.handlers.HandleLaunch)
	mux.HandleFunc("POST /launch", s.handlers.HandleLaunch)
	mux.HandleFunc("GET /state", s.handlers.HandleState)
	mux.HandleFunc("GET /config", s.handlers.HandleConfig)
	mux.HandleFunc("GET /status/stream", s.handlers.HandleStatusStream)
	if s.metrics != nil {
		mux.Handle("GET "+s.metricsPath, s.metrics)
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	mux.HandleFunc("GET /{$}", s.handlers.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
		// Status streams end with ctx so Shutdown is not held up by them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
