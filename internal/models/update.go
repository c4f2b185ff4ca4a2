package models

// Update kinds mirrored by the event types emitted to streaming clients.
const (
	UpdateProgress = "progress"
	UpdateResult   = "result"
	UpdateError    = "error"
)

// ProgressUpdate is a single state change produced by the worker and fanned
// out by the publisher to the job store and any live subscriber. Result is
// set only on a terminal success, Message carries the error text on a
// terminal failure.
type ProgressUpdate struct {
	Kind     string
	Progress int
	Message  string
	Result   *Result
}

// Terminal reports whether the update ends the stream.
func (u ProgressUpdate) Terminal() bool {
	return u.Kind == UpdateResult || u.Kind == UpdateError
}
