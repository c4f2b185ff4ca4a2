// Package worker runs the single transcription pipeline consuming the job
// queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"transcription-service/internal/artifact"
	"transcription-service/internal/config"
	"transcription-service/internal/format"
	"transcription-service/internal/models"
	"transcription-service/internal/publisher"
	"transcription-service/internal/telemetry"
	"transcription-service/internal/transcribe"
)

// Progress sub-range for the model phase, leaving head room for conversion
// and tail room for formatting.
const (
	progressTranscribeStart = 10
	progressTranscribeEnd   = 90
	progressFormatting      = 95
)

const dequeueRetryDelay = time.Second

// ErrSegmentStuck aborts a job whose model stopped yielding segments.
var ErrSegmentStuck = errors.New("transcription stuck on a segment, aborting to free resources")

// Queue is the worker's view of the pending-job queue.
type Queue interface {
	Dequeue(ctx context.Context) (models.QueuedWork, error)
	Depth(ctx context.Context) (int64, error)
}

// Converter normalizes audio; on failure it returns the original path as a
// degraded fallback.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// Worker pulls queued jobs one at a time and executes the pipeline body
// (convert, transcribe, format, persist) under a process-wide mutex so at
// most one transcription runs at any instant.
type Worker struct {
	cfg       config.Config
	queue     Queue
	publisher *publisher.Publisher
	converter Converter
	registry  *transcribe.Registry
	artifacts artifact.Store
	logger    *slog.Logger

	// execMu serializes the entire pipeline body. It is a resource-pressure
	// control, not a correctness requirement of the model.
	execMu sync.Mutex
}

// New builds a worker. artifacts may be nil to skip transcript archiving.
func New(cfg config.Config, q Queue, pub *publisher.Publisher, conv Converter, reg *transcribe.Registry, artifacts artifact.Store, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:       cfg,
		queue:     q,
		publisher: pub,
		converter: conv,
		registry:  reg,
		artifacts: artifacts,
		logger:    logger,
	}
}

// Run consumes the queue in FIFO order until ctx is cancelled. A failing job
// never stops the loop; every outcome is absorbed at the per-job boundary.
func (w *Worker) Run(ctx context.Context) error {
	for {
		work, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(dequeueRetryDelay):
			}
			continue
		}
		if depth, err := w.queue.Depth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}
		w.process(ctx, work)
	}
}

// process runs one job start to finish. The mutex is always released and
// scratch files always removed, whatever the outcome.
func (w *Worker) process(ctx context.Context, work models.QueuedWork) {
	w.execMu.Lock()
	defer w.execMu.Unlock()

	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	audioPath := work.AudioPath
	defer func() {
		w.removeScratch(work.AudioPath)
		if audioPath != work.AudioPath {
			w.removeScratch(audioPath)
		}
	}()

	w.publisher.Publish(ctx, work.JobID, 0, "Processing audio...", models.StatusProcessing)

	converted, err := w.converter.Convert(ctx, work.AudioPath)
	if err != nil {
		// Degraded fallback: transcribe the unconverted upload.
		w.logger.Warn("audio conversion failed, using original file", "job_id", work.JobID, "error", err)
	}
	audioPath = converted

	if err := w.transcribeJob(ctx, work, audioPath); err != nil {
		w.logger.Error("job failed", "job_id", work.JobID, "error", err)
		w.publisher.PublishError(ctx, work.JobID, err.Error())
		telemetry.JobsFailed.Inc()
		return
	}
	telemetry.JobsCompleted.Inc()
}

func (w *Worker) transcribeJob(ctx context.Context, work models.QueuedWork, audioPath string) error {
	opts := work.Options
	if opts.ModelSize == "" {
		opts.ModelSize = w.cfg.DefaultModelSize
	}
	if opts.WordsPerLine <= 0 {
		opts.WordsPerLine = 8
	}

	w.publisher.Publish(ctx, work.JobID, progressTranscribeStart,
		fmt.Sprintf("Loading %s model...", opts.ModelSize), models.StatusProcessing)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Transcribe blocks until the model reports its metadata, so the stuck
	// ceiling has to cover model load too, not just segment waits. Cancelling
	// runCtx kills the helper process and unblocks the call.
	type startResult struct {
		stream *transcribe.Stream
		err    error
	}
	started := make(chan startResult, 1)
	go func() {
		stream, err := w.registry.Get(opts.ModelSize).Transcribe(runCtx, audioPath, transcribe.Options{
			Language:       opts.Language,
			BeamSize:       opts.BeamSize,
			WordTimestamps: true,
		})
		started <- startResult{stream: stream, err: err}
	}()

	var stream *transcribe.Stream
	select {
	case res := <-started:
		if res.err != nil {
			return res.err
		}
		stream = res.stream
	case <-time.After(w.cfg.SegmentTimeout):
		cancel()
		return ErrSegmentStuck
	case <-ctx.Done():
		return ctx.Err()
	}

	w.publisher.Publish(ctx, work.JobID, progressTranscribeStart, "Transcribing audio...", models.StatusProcessing)

	total := stream.Info.Duration
	var segments []transcribe.Segment
consume:
	for {
		select {
		case seg, ok := <-stream.Segments:
			if !ok {
				break consume
			}
			segments = append(segments, seg)
			if total > 0 {
				w.publisher.Publish(ctx, work.JobID, mapProgress(seg.End, total),
					fmt.Sprintf("Transcribed %s of %s...", format.Clock(seg.End), format.Clock(total)),
					models.StatusProcessing)
			}
		case <-time.After(w.cfg.SegmentTimeout):
			cancel()
			return ErrSegmentStuck
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}

	w.publisher.Publish(ctx, work.JobID, progressFormatting, "Formatting transcription...", models.StatusProcessing)

	text := format.Transcript(segments, opts.WordsPerLine, opts.Timestamps)
	language := stream.Info.Language
	if language == "" {
		language = opts.Language
	}

	w.archive(ctx, work.JobID, text, opts.Timestamps)

	w.publisher.PublishResult(ctx, work.JobID, models.Result{
		FormattedText: text,
		Text:          text,
		Language:      language,
	})
	return nil
}

// archive stores the transcript artifact; failures are not fatal to the job.
func (w *Worker) archive(ctx context.Context, jobID, text string, timestamps bool) {
	if w.artifacts == nil || text == "" {
		return
	}
	key := artifact.Key(jobID, timestamps)
	if _, err := w.artifacts.Save(ctx, key, []byte(text), "text/plain; charset=utf-8"); err != nil {
		w.logger.Warn("archive transcript failed", "job_id", jobID, "error", err)
	}
}

func (w *Worker) removeScratch(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("remove scratch file", "path", path, "error", err)
	}
}

// mapProgress linearly maps a segment end time over the total duration into
// the transcription sub-range of the progress bar.
func mapProgress(end, total float64) int {
	if total <= 0 {
		return progressTranscribeStart
	}
	span := float64(progressTranscribeEnd - progressTranscribeStart)
	p := progressTranscribeStart + int(end/total*span)
	if p > progressTranscribeEnd {
		p = progressTranscribeEnd
	}
	if p < progressTranscribeStart {
		p = progressTranscribeStart
	}
	return p
}
