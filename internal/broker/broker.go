// Package broker fans job progress updates out to live stream subscribers.
package broker

import (
	"context"
	"sync"
	"time"

	"transcription-service/internal/models"
	"transcription-service/internal/telemetry"
)

const subscriberBuffer = 32

// entry is the per-job delivery state, created lazily on the first live
// listener and written only by the publisher side.
type entry struct {
	listeners map[*Subscription]struct{}
	terminal  bool
	touched   time.Time
}

// Subscription is one listener's view of a job's update stream. Updates
// arrive in publication order; the channel is never closed by the broker, the
// listener leaves by calling Cancel.
type Subscription struct {
	C chan models.ProgressUpdate

	broker *Broker
	jobID  string
	once   sync.Once
}

// Cancel detaches the subscription. The per-job entry outlives any single
// listener; the reaper removes it once the job is terminal and idle.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		defer s.broker.mu.Unlock()
		if e, ok := s.broker.entries[s.jobID]; ok {
			delete(e.listeners, s)
			e.touched = time.Now()
		}
		telemetry.LiveSubscribers.Dec()
	})
}

// Broker is the process-scoped registry of live per-job delivery channels.
type Broker struct {
	mu      sync.Mutex
	entries map[string]*entry
	grace   time.Duration
}

// New creates an empty broker. Terminal entries with no listeners are reaped
// after grace.
func New(grace time.Duration) *Broker {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Broker{
		entries: make(map[string]*entry),
		grace:   grace,
	}
}

// Subscribe attaches a new listener to jobID, creating the per-job entry on
// first use.
func (b *Broker) Subscribe(jobID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[jobID]
	if !ok {
		e = &entry{listeners: make(map[*Subscription]struct{})}
		b.entries[jobID] = e
	}
	sub := &Subscription{
		C:      make(chan models.ProgressUpdate, subscriberBuffer),
		broker: b,
		jobID:  jobID,
	}
	e.listeners[sub] = struct{}{}
	e.touched = time.Now()
	telemetry.LiveSubscribers.Inc()
	return sub
}

// Forward delivers an update to every live listener of jobID. Delivery never
// blocks: a listener whose buffer is full misses the update and catches up
// from the store on reconnect. No-op when the job has no live entry.
func (b *Broker) Forward(jobID string, update models.ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[jobID]
	if !ok {
		return
	}
	e.touched = time.Now()
	if update.Terminal() {
		e.terminal = true
	}
	for sub := range e.listeners {
		select {
		case sub.C <- update:
		default:
		}
	}
}

// Run sweeps terminal, listener-less entries past the grace period until ctx
// is cancelled.
func (b *Broker) Run(ctx context.Context) {
	ticker := time.NewTicker(b.grace / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.reap(now)
		}
	}
}

func (b *Broker) reap(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for jobID, e := range b.entries {
		if e.terminal && len(e.listeners) == 0 && now.Sub(e.touched) >= b.grace {
			delete(b.entries, jobID)
		}
	}
}

// Len reports the number of live per-job entries, for diagnostics and tests.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
