// Package transcribe defines the speech-recognition collaborator boundary:
// audio file in, a lazy ordered sequence of timed segments out.
package transcribe

import (
	"context"
)

// Word is a single recognized word with its own timing.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"word"`
}

// Segment is a model-produced span of transcribed text. Words may be empty
// when the backend yields no word-level timing.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Info is the stream metadata reported before the first segment.
type Info struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Options controls a single transcription run.
type Options struct {
	// Language is an ISO code, or "auto" for detection.
	Language       string
	BeamSize       int
	WordTimestamps bool
}

// Stream delivers segments lazily as the model produces them. Segments is
// closed when the sequence is exhausted; Err reports any failure observed
// while producing it and must only be called after the channel closes.
type Stream struct {
	Info     Info
	Segments <-chan Segment

	errFn func() error
}

// NewStream builds a Stream over an already-open segment channel. errFn is
// consulted once the channel closes; nil means the stream cannot fail.
func NewStream(info Info, segments <-chan Segment, errFn func() error) *Stream {
	return &Stream{Info: info, Segments: segments, errFn: errFn}
}

// Err returns the terminal error of the stream, if any.
func (s *Stream) Err() error {
	if s == nil || s.errFn == nil {
		return nil
	}
	return s.errFn()
}

// Transcriber is the opaque model collaborator. Implementations must close
// the stream's segment channel exactly once, on success or failure.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (*Stream, error)
}
