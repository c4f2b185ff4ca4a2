package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"transcription-service/internal/models"
	"transcription-service/internal/store"
)

// streamEvent is the newline-delimited JSON wire form of a live update.
// Progress is a pointer so the initial 0% event is not dropped by omitempty.
type streamEvent struct {
	Type     string         `json:"type"`
	Progress *int           `json:"progress,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     *models.Result `json:"data,omitempty"`
}

func progressEvent(progress int, message string) streamEvent {
	return streamEvent{Type: models.UpdateProgress, Progress: &progress, Message: message}
}

func resultEvent(result *models.Result) streamEvent {
	if result == nil {
		result = &models.Result{}
	}
	return streamEvent{Type: models.UpdateResult, Data: result}
}

func errorEvent(message string) streamEvent {
	return streamEvent{Type: models.UpdateError, Message: message}
}

var keepAliveEvent = streamEvent{Type: "keepalive"}

func eventFromUpdate(u models.ProgressUpdate) streamEvent {
	switch u.Kind {
	case models.UpdateResult:
		return resultEvent(u.Result)
	case models.UpdateError:
		return errorEvent(u.Message)
	default:
		return progressEvent(u.Progress, u.Message)
	}
}

// terminalEvent maps a finished job record to its closing stream event.
func terminalEvent(job models.Job) streamEvent {
	if job.Status == models.StatusFailed {
		msg := "transcription failed"
		if job.Error != nil {
			msg = *job.Error
		}
		return errorEvent(msg)
	}
	return resultEvent(job.Result)
}

// handleEvents serves the long-lived NDJSON update stream for one job.
// Subscribers arriving after completion get the terminal event immediately
// from the store and never see intermediate progress; live subscribers get a
// snapshot first so they are not stuck waiting for the next worker event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get job for stream", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load job")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	enc := json.NewEncoder(w)
	emit := func(ev streamEvent) bool {
		if err := enc.Encode(ev); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	// Finished jobs never get a subscription: emit the stored terminal
	// payload and close, which also covers reconnects after completion.
	if models.IsTerminal(job.Status) {
		w.WriteHeader(http.StatusOK)
		emit(terminalEvent(job))
		return
	}

	sub := s.broker.Subscribe(id)
	defer sub.Cancel()

	// Re-read after subscribing: a terminal update landing between the first
	// read and the subscription would otherwise be lost.
	if fresh, err := s.store.GetJob(r.Context(), id); err == nil {
		job = fresh
		if models.IsTerminal(job.Status) {
			w.WriteHeader(http.StatusOK)
			emit(terminalEvent(job))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if !emit(progressEvent(job.Progress, job.Message)) {
		return
	}

	// Updates forwarded between Subscribe and the snapshot read sit buffered
	// in sub.C and may predate the snapshot. Tracking the last progress sent
	// on this connection keeps the emitted sequence non-decreasing.
	lastProgress := job.Progress

	keepAlive := time.NewTicker(s.cfg.KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Disconnect only ends this listener; the job keeps running.
			return
		case <-keepAlive.C:
			if !emit(keepAliveEvent) {
				return
			}
		case update := <-sub.C:
			if update.Kind == models.UpdateProgress {
				if update.Progress < lastProgress {
					continue
				}
				lastProgress = update.Progress
			}
			if !emit(eventFromUpdate(update)) {
				return
			}
			if update.Terminal() {
				return
			}
			keepAlive.Reset(s.cfg.KeepAliveInterval)
		}
	}
}
