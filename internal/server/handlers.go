package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"daystart/internal/logging"
	"daystart/internal/queue"
	"daystart/internal/services"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	identity, tier := parseIdentity(r.Header.Get(identityHeader))
	if identity == "" {
		s.writeError(w, http.StatusBadRequest, "missing "+identityHeader+" header")
		return
	}

	var body createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.store.Enqueue(r.Context(), queue.NewJobRequest{
		IdentityToken:   identity,
		Tier:            tier,
		LocalDate:       body.LocalDate,
		ScheduledAt:     body.ScheduledAt,
		Timezone:        body.Timezone,
		PreferredName:   body.PreferredName,
		Voice:           body.VoiceOption,
		LengthMinutes:   body.DaystartLength,
		Welcome:         body.Welcome,
		IncludeWeather:  body.IncludeWeather,
		IncludeNews:     body.IncludeNews,
		IncludeSports:   body.IncludeSports,
		IncludeStocks:   body.IncludeStocks,
		IncludeCalendar: body.IncludeCalendar,
		IncludeQuotes:   body.IncludeQuotes,
		StockSymbols:    body.StockSymbols,
		CalendarEvents:  body.CalendarEvents,
		Location:        body.Location,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, queue.ErrDuplicateJob):
			s.writeError(w, http.StatusConflict, "an active briefing already exists for this date")
		default:
			s.logger.Error("enqueue failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.writeJSON(w, http.StatusCreated, createJobResponse{
		JobID:     job.PublicID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID := strings.TrimSpace(r.URL.Query().Get("job_id"))
	if jobID == "" {
		s.writeError(w, http.StatusBadRequest, "job_id query parameter required")
		return
	}

	job, err := s.store.GetByPublicID(r.Context(), jobID)
	if err != nil {
		s.logger.Error("status lookup failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := jobStatusResponse{
		JobID:     job.PublicID,
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	switch job.Status {
	case queue.StatusCompleted:
		resp.AudioURL = "/api/audio/" + job.PublicID
		resp.DurationSeconds = job.ArtifactDuration
	case queue.StatusFailed:
		resp.Error = job.ErrorMessage
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/audio/")
	if jobID == "" || strings.Contains(jobID, "/") {
		s.writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	job, err := s.store.GetByPublicID(r.Context(), jobID)
	if err != nil {
		s.logger.Error("audio lookup failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if job == nil || job.Status != queue.StatusCompleted || job.ArtifactPath == "" {
		s.writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	// The artifact path is trusted only inside the audio directory.
	path := filepath.Clean(job.ArtifactPath)
	if !strings.HasPrefix(path, filepath.Clean(s.audioDir)+string(filepath.Separator)) {
		s.writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// A batch can run for minutes, well past the server's write timeout, so
	// the trigger acknowledges immediately and the work detaches from the
	// request context. The batch carries its own deadline.
	batchCtx, cancel := context.WithTimeout(
		context.WithoutCancel(r.Context()),
		time.Duration(s.batchMax+1)*s.jobTimeout,
	)
	go func() {
		defer cancel()
		summary, err := s.processor.ProcessBatch(batchCtx, s.batchMax)
		if err != nil {
			s.logger.Error("batch processing failed", logging.Error(err))
			return
		}
		if summary.Claimed > 0 || summary.Reclaimed > 0 {
			s.logger.Info("batch processed",
				logging.Int("claimed", summary.Claimed),
				logging.Int("completed", summary.Completed),
				logging.Int("requeued", summary.Requeued),
				logging.Int("failed", summary.Failed),
				logging.Int("reclaimed", summary.Reclaimed))
		}
	}()

	s.writeJSON(w, http.StatusAccepted, processResponse{Status: "accepted", BatchMax: s.batchMax})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	results := s.refresher.RefreshAll(r.Context())
	resp := refreshResponse{Results: make(map[string]string, len(results))}
	for contentType, err := range results {
		if err != nil {
			resp.Results[contentType] = err.Error()
			continue
		}
		resp.Results[contentType] = "ok"
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	report, err := s.sweeper.Sweep(r.Context())
	if err != nil {
		s.logger.Error("cleanup sweep failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := healthResponse{Healthy: true}
	if err := s.store.CheckHealth(r.Context()); err != nil {
		resp.Healthy = false
		resp.Detail = err.Error()
	}
	if health, err := s.store.Health(r.Context()); err == nil {
		resp.Queued = health.Queued
		resp.Processing = health.Processing
		resp.Completed = health.Completed
		resp.Failed = health.Failed
	}

	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

// parseIdentity splits the identity header into token and tier. A
// "purchased:" prefix marks the paid tier; everything else is anonymous.
func parseIdentity(value string) (string, queue.Tier) {
	value = strings.TrimSpace(value)
	if token, ok := strings.CutPrefix(value, "purchased:"); ok {
		return strings.TrimSpace(token), queue.TierPurchased
	}
	return value, queue.TierAnonymous
}
