package broker

import (
	"testing"
	"time"

	"transcription-service/internal/models"
)

func TestForwardDeliversInOrder(t *testing.T) {
	b := New(time.Minute)
	sub := b.Subscribe("job-1")
	defer sub.Cancel()

	for i := 1; i <= 5; i++ {
		b.Forward("job-1", models.ProgressUpdate{Kind: models.UpdateProgress, Progress: i * 10})
	}

	for i := 1; i <= 5; i++ {
		select {
		case u := <-sub.C:
			if u.Progress != i*10 {
				t.Fatalf("expected progress %d, got %d", i*10, u.Progress)
			}
		default:
			t.Fatalf("missing update %d", i)
		}
	}
}

func TestForwardToOtherJobNotDelivered(t *testing.T) {
	b := New(time.Minute)
	sub := b.Subscribe("job-1")
	defer sub.Cancel()

	b.Forward("job-2", models.ProgressUpdate{Kind: models.UpdateProgress, Progress: 50})

	select {
	case u := <-sub.C:
		t.Fatalf("unexpected delivery: %+v", u)
	default:
	}
}

func TestForwardNeverBlocks(t *testing.T) {
	b := New(time.Minute)
	sub := b.Subscribe("job-1")
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nobody reads; more updates than the buffer holds must not stall.
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Forward("job-1", models.ProgressUpdate{Kind: models.UpdateProgress, Progress: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Forward blocked on a full subscriber")
	}
}

func TestForwardWithoutSubscribersIsNoop(t *testing.T) {
	b := New(time.Minute)
	b.Forward("job-1", models.ProgressUpdate{Kind: models.UpdateResult})
	if b.Len() != 0 {
		t.Fatalf("forward must not create entries, got %d", b.Len())
	}
}

func TestMultipleListenersEachReceive(t *testing.T) {
	b := New(time.Minute)
	s1 := b.Subscribe("job-1")
	defer s1.Cancel()
	s2 := b.Subscribe("job-1")
	defer s2.Cancel()

	b.Forward("job-1", models.ProgressUpdate{Kind: models.UpdateProgress, Progress: 42})

	for i, sub := range []*Subscription{s1, s2} {
		select {
		case u := <-sub.C:
			if u.Progress != 42 {
				t.Fatalf("listener %d got progress %d", i, u.Progress)
			}
		default:
			t.Fatalf("listener %d missed the update", i)
		}
	}
}

func TestReapRemovesIdleTerminalEntries(t *testing.T) {
	b := New(time.Minute)

	sub := b.Subscribe("job-1")
	b.Forward("job-1", models.ProgressUpdate{Kind: models.UpdateResult})
	sub.Cancel()

	// Still inside the grace period.
	b.reap(time.Now())
	if b.Len() != 1 {
		t.Fatalf("entry reaped before grace period")
	}

	b.reap(time.Now().Add(2 * time.Minute))
	if b.Len() != 0 {
		t.Fatalf("terminal idle entry not reaped")
	}
}

func TestReapKeepsActiveEntries(t *testing.T) {
	b := New(time.Minute)

	// Live listener on a terminal job.
	sub := b.Subscribe("job-1")
	defer sub.Cancel()
	b.Forward("job-1", models.ProgressUpdate{Kind: models.UpdateError, Message: "boom"})

	// Non-terminal job with no listeners left.
	s2 := b.Subscribe("job-2")
	b.Forward("job-2", models.ProgressUpdate{Kind: models.UpdateProgress, Progress: 10})
	s2.Cancel()

	b.reap(time.Now().Add(time.Hour))
	if b.Len() != 2 {
		t.Fatalf("expected both entries kept, got %d", b.Len())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	b := New(time.Minute)
	sub := b.Subscribe("job-1")
	sub.Cancel()
	sub.Cancel()
}
