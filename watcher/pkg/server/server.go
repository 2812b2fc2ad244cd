package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/malbeclabs/fomo/client/pkg/fomo"
	"github.com/malbeclabs/fomo/watcher/pkg/metrics"
	"github.com/malbeclabs/fomo/watcher/pkg/view"
)

type Server struct {
	log     *slog.Logger
	cfg     Config
	view    *view.View
	router  chi.Router
	httpSrv *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log:    cfg.Logger,
		cfg:    cfg,
		view:   cfg.View,
		router: chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.healthzHandler)
	s.router.Get("/readyz", s.readyzHandler)
	s.router.Get("/version", s.versionHandler)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/round", s.roundHandler)
		r.Get("/keys/{index}", s.keyHandler)
	})

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the view refresh loop and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.view.Start(ctx)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("server: http listening", "address", s.cfg.ListenAddr)

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err(), "address", s.cfg.ListenAddr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		s.log.Info("server: http server shutdown complete")
		return nil
	case err := <-serveErrCh:
		return err
	}
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeText(w, http.StatusOK, "ok\n")
}

func (s *Server) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	if !s.view.Ready() {
		s.log.Debug("readyz: view not ready")
		s.writeText(w, http.StatusServiceUnavailable, "view not ready\n")
		return
	}
	s.writeText(w, http.StatusOK, "ok\n")
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.VersionInfo)
}

func (s *Server) roundHandler(w http.ResponseWriter, _ *http.Request) {
	snap := s.view.Snapshot()
	if snap == nil {
		s.writeError(w, http.StatusServiceUnavailable, "round not loaded yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) keyHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil || index == 0 {
		s.writeError(w, http.StatusBadRequest, "key index must be a positive integer")
		return
	}
	key, err := s.view.Key(r.Context(), index)
	if errors.Is(err, fomo.ErrAccountNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("key #%d not found", index))
		return
	}
	if err != nil {
		s.log.Error("server: failed to fetch key", "index", index, "error", err)
		s.writeError(w, http.StatusBadGateway, "failed to fetch key")
		return
	}
	s.writeJSON(w, http.StatusOK, key)
}

func (s *Server) writeText(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
