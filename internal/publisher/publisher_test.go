package publisher

import (
	"context"
	"testing"
	"time"

	"transcription-service/internal/broker"
	"transcription-service/internal/models"
	"transcription-service/internal/store"
)

func newFixture(t *testing.T) (*Publisher, *store.Memory, *broker.Broker) {
	t.Helper()
	st := store.NewMemory()
	b := broker.New(time.Minute)
	return New(st, b, nil), st, b
}

func createJob(t *testing.T, st *store.Memory) models.Job {
	t.Helper()
	job, err := st.CreateJob(context.Background(), store.CreateJobParams{
		OwnerID: "owner-1",
		Options: models.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestPublishPersistsWithoutListener(t *testing.T) {
	ctx := context.Background()
	pub, st, _ := newFixture(t)
	job := createJob(t, st)

	pub.Publish(ctx, job.ID, 30, "Transcribing audio...", models.StatusProcessing)

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != models.StatusProcessing || got.Progress != 30 || got.Message != "Transcribing audio..." {
		t.Fatalf("store not updated: %+v", got)
	}
}

func TestPublishForwardsToListener(t *testing.T) {
	ctx := context.Background()
	pub, st, b := newFixture(t)
	job := createJob(t, st)

	sub := b.Subscribe(job.ID)
	defer sub.Cancel()

	pub.Publish(ctx, job.ID, 55, "halfway", models.StatusProcessing)

	select {
	case u := <-sub.C:
		if u.Kind != models.UpdateProgress || u.Progress != 55 || u.Message != "halfway" {
			t.Fatalf("unexpected update: %+v", u)
		}
	default:
		t.Fatalf("update not forwarded")
	}
}

func TestPublishResultFinalizesJob(t *testing.T) {
	ctx := context.Background()
	pub, st, b := newFixture(t)
	job := createJob(t, st)

	sub := b.Subscribe(job.ID)
	defer sub.Cancel()

	result := models.Result{FormattedText: "hello world", Text: "hello world", Language: "en"}
	pub.PublishResult(ctx, job.ID, result)

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != models.StatusCompleted || got.Progress != 100 {
		t.Fatalf("job not completed: %+v", got)
	}
	if got.Result == nil || got.Result.Text != "hello world" || got.Result.Language != "en" {
		t.Fatalf("result not stored: %+v", got.Result)
	}
	if got.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}

	select {
	case u := <-sub.C:
		if !u.Terminal() || u.Result == nil || u.Result.Language != "en" {
			t.Fatalf("unexpected terminal update: %+v", u)
		}
	default:
		t.Fatalf("terminal update not forwarded")
	}
}

func TestPublishErrorFinalizesJob(t *testing.T) {
	ctx := context.Background()
	pub, st, _ := newFixture(t)
	job := createJob(t, st)

	pub.PublishError(ctx, job.ID, "model exploded")

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Error == nil || *got.Error != "model exploded" {
		t.Fatalf("error not captured: %+v", got.Error)
	}
	if got.Result != nil {
		t.Fatalf("failed job must not carry a result")
	}
}

func TestPublishToleratesDeletedJob(t *testing.T) {
	ctx := context.Background()
	pub, st, b := newFixture(t)
	job := createJob(t, st)

	sub := b.Subscribe(job.ID)
	defer sub.Cancel()

	if err := st.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Must not panic; live listeners still hear the updates.
	pub.Publish(ctx, job.ID, 40, "still going", models.StatusProcessing)
	pub.PublishResult(ctx, job.ID, models.Result{Text: "done"})

	if got := len(sub.C); got != 2 {
		t.Fatalf("expected 2 forwarded updates, got %d", got)
	}
}

func TestProgressMonotoneInStore(t *testing.T) {
	ctx := context.Background()
	pub, st, _ := newFixture(t)
	job := createJob(t, st)

	pub.Publish(ctx, job.ID, 60, "a", models.StatusProcessing)
	pub.Publish(ctx, job.ID, 40, "b", models.StatusProcessing)

	got, _ := st.GetJob(ctx, job.ID)
	if got.Progress != 60 {
		t.Fatalf("progress regressed: %d", got.Progress)
	}
}
