package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/geocoder89/surveyhub/internal/domain/message"
	"github.com/geocoder89/surveyhub/internal/notifications"
	"github.com/geocoder89/surveyhub/internal/observability"
)

type MessagesRepository interface {
	ClaimNext(ctx context.Context, workerID string) (message.Message, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string, retryAt time.Time) error
	RecordAttempt(ctx context.Context, messageID, workerID string, attempt int, attemptErr *string) error
	RequeueStaleSending(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// Waker lets the API process nudge the worker right after a registration
// commits instead of waiting out the poll interval.
type Waker interface {
	WaitForWake(ctx context.Context, timeout time.Duration) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration

	// LockTTL bounds how long a 'sending' claim may hold before the
	// reaper hands the message back to the queue.
	LockTTL time.Duration
}

type Worker struct {
	cfg      Config
	repo     MessagesRepository
	notifier notifications.Notifier
	metrics  *observability.DeliveryMetrics
	prom     *observability.Prom
	waker    Waker
	log      *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo MessagesRepository, notifier notifications.Notifier, metrics *observability.DeliveryMetrics, prom *observability.Prom, waker Waker, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.WorkerID == "" {
		host, _ := os.Hostname()
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		metrics:  metrics,
		prom:     prom,
		waker:    waker,
		log:      log,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)

		id := fmt.Sprintf("%s-%d", w.cfg.WorkerID, i)

		go func() {
			defer wg.Done()
			w.runLoop(ctx, id)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reapLoop(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal", "grace", w.cfg.ShutdownGrace)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("shutdown grace elapsed with deliveries still in flight")
	}

	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID string) {
	for {
		// drain everything due before sleeping
		for {
			processed, err := w.ProcessOne(ctx, workerID)

			if err != nil {
				w.log.Error("delivery step failed", "worker", workerID, "err", err)
			}
			if !processed {
				break
			}
			if ctx.Err() != nil {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		w.idle(ctx)
	}
}

// reapLoop periodically returns messages abandoned in 'sending' by a
// crashed worker to the queue.
func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reapCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		n, err := w.repo.RequeueStaleSending(reapCtx, w.cfg.LockTTL)
		cancel()

		if err != nil {
			if ctx.Err() == nil {
				w.log.Error("stale claim requeue failed", "err", err)
			}
			continue
		}
		if n > 0 {
			w.log.Warn("requeued stale deliveries", "count", n, "lock_ttl", w.cfg.LockTTL)
		}
	}
}

func (w *Worker) idle(ctx context.Context) {
	if w.waker != nil {
		if err := w.waker.WaitForWake(ctx, w.cfg.PollInterval); err != nil && ctx.Err() == nil {
			w.log.Warn("wake wait failed, falling back to poll sleep", "err", err)
		} else {
			return
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(w.cfg.PollInterval):
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
