package models

import (
	"time"
)

// Job lifecycle states. Transitions are strictly forward:
// queued -> processing -> completed|failed. There is no retry path.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Options is the immutable snapshot of transcription settings captured at
// submission time.
type Options struct {
	ModelSize    string `json:"model_size"`
	Language     string `json:"language"`
	Timestamps   bool   `json:"timestamps"`
	WordsPerLine int    `json:"words_per_line"`
	BeamSize     int    `json:"beam_size"`
}

// DefaultOptions returns the submission defaults used when a form field is absent.
func DefaultOptions() Options {
	return Options{
		ModelSize:    "base",
		Language:     "auto",
		Timestamps:   true,
		WordsPerLine: 8,
		BeamSize:     5,
	}
}

// Result holds the output of a completed job. The transcript text may later
// be edited by the owner without touching status or progress.
type Result struct {
	FormattedText string `json:"formatted_text"`
	Text          string `json:"text"`
	Language      string `json:"language"`
}

// Job represents one transcription request persisted in the job store.
type Job struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	SourceFileName string     `json:"source_file_name"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	Message        string     `json:"message"`
	Options        Options    `json:"options"`
	Result         *Result    `json:"result,omitempty"`
	Error          *string    `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// QueuedWork is the ephemeral queue payload referencing a job and the scratch
// location of its uploaded audio. It exists only between submission and the
// worker consuming it.
type QueuedWork struct {
	JobID          string  `json:"job_id"`
	AudioPath      string  `json:"audio_path"`
	SourceFileName string  `json:"source_file_name"`
	Options        Options `json:"options"`
}
