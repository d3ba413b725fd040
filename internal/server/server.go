package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"daystart/internal/cleanup"
	"daystart/internal/config"
	"daystart/internal/logging"
	"daystart/internal/queue"
)

// BatchProcessor is the slice of the worker the API invokes on the
// scheduler's processing trigger.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, max int) (queue.BatchSummary, error)
}

// ContentRefresher refreshes cached content on the scheduler's trigger.
type ContentRefresher interface {
	RefreshAll(ctx context.Context, types ...string) map[string]error
	ContentTypes() []string
}

// StorageSweeper runs the retention sweep on the admin trigger.
type StorageSweeper interface {
	Sweep(ctx context.Context) (cleanup.Report, error)
}

// Server hosts the HTTP API.
type Server struct {
	bind       string
	audioDir   string
	store      *queue.Store
	processor  BatchProcessor
	refresher  ContentRefresher
	sweeper    StorageSweeper
	auth       config.Auth
	batchMax   int
	jobTimeout time.Duration
	logger     *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New assembles the server; call Start to begin listening.
func New(cfg *config.Config, store *queue.Store, processor BatchProcessor, refresher ContentRefresher, sweeper StorageSweeper, logger *slog.Logger) *Server {
	s := &Server{
		bind:       cfg.Paths.APIBind,
		audioDir:   cfg.Paths.AudioDir,
		store:      store,
		processor:  processor,
		refresher:  refresher,
		sweeper:    sweeper,
		auth:       cfg.Auth,
		batchMax:   cfg.Jobs.BatchSize,
		jobTimeout: time.Duration(cfg.Jobs.JobTimeoutSeconds) * time.Second,
		logger:     logging.NewComponentLogger(logger, "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs", s.handleCreateJob)
	mux.HandleFunc("/api/jobs/status", s.handleJobStatus)
	mux.HandleFunc("/api/audio/", s.handleAudio)
	mux.HandleFunc("/api/jobs/process", authMiddleware(cfg.Auth.WorkerToken, s.handleProcess))
	mux.HandleFunc("/api/content/refresh", authMiddleware(cfg.Auth.WorkerToken, s.handleRefresh))
	mux.HandleFunc("/api/cleanup", authMiddleware(cfg.Auth.AdminToken, s.handleCleanup))
	mux.HandleFunc("/api/healthz", s.handleHealthz)

	s.server = &http.Server{
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the configured routes for in-process testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, allowing in-flight requests to finish.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
