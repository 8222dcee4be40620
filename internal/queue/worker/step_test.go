package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/geocoder89/surveyhub/internal/domain/message"
	"github.com/geocoder89/surveyhub/internal/notifications"
	"github.com/geocoder89/surveyhub/internal/observability"
)

type fakeRepo struct {
	queue []message.Message

	sent     []string
	failed   []string
	failedAt []time.Time
	attempts int

	stale  int64
	reaped chan time.Duration
}

func (f *fakeRepo) ClaimNext(ctx context.Context, workerID string) (message.Message, error) {
	if len(f.queue) == 0 {
		return message.Message{}, message.ErrNoneDue
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, nil
}

func (f *fakeRepo) MarkSent(ctx context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id string, errMsg string, retryAt time.Time) error {
	f.failed = append(f.failed, id)
	f.failedAt = append(f.failedAt, retryAt)
	return nil
}

func (f *fakeRepo) RecordAttempt(ctx context.Context, messageID, workerID string, attempt int, attemptErr *string) error {
	f.attempts++
	return nil
}

func (f *fakeRepo) RequeueStaleSending(ctx context.Context, lockTTL time.Duration) (int64, error) {
	if f.reaped != nil {
		select {
		case f.reaped <- lockTTL:
		default:
		}
	}
	return f.stale, nil
}

type fakeNotifier struct {
	err  error
	seen []notifications.Delivery
}

func (f *fakeNotifier) Send(ctx context.Context, d notifications.Delivery) error {
	f.seen = append(f.seen, d)
	return f.err
}

func testWorker(repo *fakeRepo, n notifications.Notifier) *Worker {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{WorkerID: "test-0"}, repo, n, observability.NewDeliveryMetrics(), nil, nil, log)
}

func TestProcessOneDeliversAndMarksSent(t *testing.T) {
	repo := &fakeRepo{queue: []message.Message{{
		ID: "m1", Channel: "email", Recipient: "jane@example.com",
		Subject: "Survey", Body: "token inside", MaxAttempts: 10,
	}}}
	n := &fakeNotifier{}
	w := testWorker(repo, n)

	processed, err := w.ProcessOne(context.Background(), "test-0")

	if err != nil || !processed {
		t.Fatalf("got processed=%v err=%v, want true,nil", processed, err)
	}
	if len(n.seen) != 1 || n.seen[0].Recipient != "jane@example.com" {
		t.Fatalf("notifier saw %+v", n.seen)
	}
	if len(repo.sent) != 1 || repo.sent[0] != "m1" {
		t.Fatalf("sent = %v, want [m1]", repo.sent)
	}
	if repo.attempts != 1 {
		t.Fatalf("attempts recorded = %d, want 1", repo.attempts)
	}

	snap := w.metrics.Snapshot()
	if snap.Claimed != 1 || snap.Sent != 1 {
		t.Fatalf("metrics = %+v", snap)
	}
}

func TestProcessOneFailureReschedules(t *testing.T) {
	repo := &fakeRepo{queue: []message.Message{{
		ID: "m1", Channel: "sms", Recipient: "+1555", Attempts: 2, MaxAttempts: 10,
	}}}
	n := &fakeNotifier{err: errors.New("provider down")}
	w := testWorker(repo, n)

	processed, err := w.ProcessOne(context.Background(), "test-0")

	if err != nil || !processed {
		t.Fatalf("got processed=%v err=%v, want true,nil", processed, err)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("failed = %v, want one entry", repo.failed)
	}
	if !repo.failedAt[0].After(time.Now()) {
		t.Fatalf("retryAt %v not in the future", repo.failedAt[0])
	}

	snap := w.metrics.Snapshot()
	if snap.Retried != 1 || snap.DeadLettered != 0 {
		t.Fatalf("metrics = %+v", snap)
	}
}

func TestProcessOneFinalFailureDeadLetters(t *testing.T) {
	repo := &fakeRepo{queue: []message.Message{{
		ID: "m1", Channel: "email", Recipient: "x@y", Attempts: 9, MaxAttempts: 10,
	}}}
	n := &fakeNotifier{err: errors.New("provider down")}
	w := testWorker(repo, n)

	if _, err := w.ProcessOne(context.Background(), "test-0"); err != nil {
		t.Fatal(err)
	}

	snap := w.metrics.Snapshot()
	if snap.DeadLettered != 1 || snap.Retried != 0 {
		t.Fatalf("metrics = %+v", snap)
	}
}

func TestReapLoopRequeuesStaleClaims(t *testing.T) {
	repo := &fakeRepo{stale: 3, reaped: make(chan time.Duration, 1)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := New(Config{WorkerID: "test-0", LockTTL: 10 * time.Millisecond}, repo, &fakeNotifier{}, observability.NewDeliveryMetrics(), nil, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.reapLoop(ctx)
		close(done)
	}()

	select {
	case ttl := <-repo.reaped:
		if ttl != 10*time.Millisecond {
			t.Fatalf("reaper used ttl %v, want 10ms", ttl)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reaper never ran")
	}

	cancel()
	<-done
}

func TestProcessOneNothingDue(t *testing.T) {
	repo := &fakeRepo{}
	w := testWorker(repo, &fakeNotifier{})

	processed, err := w.ProcessOne(context.Background(), "test-0")

	if processed || err != nil {
		t.Fatalf("got processed=%v err=%v, want false,nil", processed, err)
	}
}
