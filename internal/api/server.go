// Package api exposes the HTTP surface: job submission, retrieval, transcript
// editing, deletion, and the live update stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"transcription-service/internal/broker"
	"transcription-service/internal/config"
	"transcription-service/internal/models"
	"transcription-service/internal/ratelimit"
	"transcription-service/internal/store"
	"transcription-service/internal/telemetry"
)

// Queue is the submission side of the job queue.
type Queue interface {
	Enqueue(ctx context.Context, work models.QueuedWork) error
	Depth(ctx context.Context) (int64, error)
}

// Server wires HTTP handlers for the transcription API.
type Server struct {
	cfg     config.Config
	store   store.JobStore
	queue   Queue
	broker  *broker.Broker
	limiter *ratelimit.TokenBucket
	logger  *slog.Logger
}

// New constructs the API server. limiter may be nil to disable rate limiting.
func New(cfg config.Config, st store.JobStore, q Queue, b *broker.Broker, limiter *ratelimit.TokenBucket, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		store:   st,
		queue:   q,
		broker:  b,
		limiter: limiter,
		logger:  logger,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// The service is consumed directly from browsers.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/jobs", s.handleSubmit)
	r.Get("/jobs", s.handleList)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Patch("/jobs/{id}/transcript", s.handleUpdateTranscript)
	r.Delete("/jobs/{id}", s.handleDelete)
	r.Get("/jobs/{id}/events", s.handleEvents)
	return r
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	ownerID := r.FormValue("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	opts, err := optionsFromForm(r, s.cfg.DefaultModelSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if s.limiter != nil {
		allowed, _, err := s.limiter.AllowOwner(r.Context(), ownerID)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", "error", err)
		} else if !allowed {
			telemetry.RateLimitRejects.Inc()
			writeError(w, http.StatusTooManyRequests, "too many submissions, slow down")
			return
		}
	}

	scratchPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("save upload", "error", err)
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	job, err := s.store.CreateJob(r.Context(), store.CreateJobParams{
		OwnerID:        ownerID,
		SourceFileName: header.Filename,
		Options:        opts,
	})
	if err != nil {
		s.removeScratch(scratchPath)
		s.logger.Error("create job", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create job")
		return
	}

	err = s.queue.Enqueue(r.Context(), models.QueuedWork{
		JobID:          job.ID,
		AudioPath:      scratchPath,
		SourceFileName: header.Filename,
		Options:        opts,
	})
	if err != nil {
		s.removeScratch(scratchPath)
		_ = s.store.MarkFailed(r.Context(), job.ID, "could not enqueue job")
		s.logger.Error("enqueue job", "job_id", job.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not enqueue job")
		return
	}

	telemetry.JobsEnqueued.Inc()
	if depth, err := s.queue.Depth(r.Context()); err == nil {
		telemetry.QueueDepthGauge.Set(float64(depth))
	}
	writeJSON(w, http.StatusAccepted, job)
}

// saveUpload streams the multipart file into scratch storage, keeping the
// original extension so ffmpeg can sniff the container format.
func (s *Server) saveUpload(file io.Reader, filename string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".tmp"
	}
	tmp, err := os.CreateTemp(s.cfg.ScratchDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, file); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *Server) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove scratch file", "path", path, "error", err)
	}
}

func optionsFromForm(r *http.Request, defaultModel string) (models.Options, error) {
	opts := models.DefaultOptions()
	if defaultModel != "" {
		opts.ModelSize = defaultModel
	}
	if v := r.FormValue("model_size"); v != "" {
		opts.ModelSize = v
	}
	if v := r.FormValue("language"); v != "" {
		opts.Language = v
	}
	if v := r.FormValue("timestamps"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("timestamps must be a boolean")
		}
		opts.Timestamps = b
	}
	if v := r.FormValue("words_per_line"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, errors.New("words_per_line must be a positive integer")
		}
		opts.WordsPerLine = n
	}
	if v := r.FormValue("beam_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, errors.New("beam_size must be a positive integer")
		}
		opts.BeamSize = n
	}
	return opts, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	jobs, err := s.store.ListJobsByOwner(r.Context(), ownerID, s.cfg.ListLimit)
	if err != nil {
		s.logger.Error("list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list jobs")
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get job", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type updateTranscriptRequest struct {
	Text *string `json:"text"`
}

func (s *Server) handleUpdateTranscript(w http.ResponseWriter, r *http.Request) {
	var req updateTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	err := s.store.UpdateTranscript(r.Context(), chi.URLParam(r, "id"), *req.Text)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if errors.Is(err, store.ErrNoResult) {
		writeError(w, http.StatusConflict, "job has no transcript to edit")
		return
	}
	if err != nil {
		s.logger.Error("update transcript", "error", err)
		writeError(w, http.StatusInternalServerError, "could not update transcript")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("delete job", "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
