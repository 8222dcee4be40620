package worker

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/surveyhub/internal/domain/message"
	"github.com/geocoder89/surveyhub/internal/notifications"
)

func (w *Worker) ProcessOne(ctx context.Context, workerID string) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	m, err := w.repo.ClaimNext(claimCtx, workerID)
	cancel()

	if err != nil {
		if errors.Is(err, message.ErrNoneDue) {
			return false, nil
		}

		return false, err
	}

	if w.metrics != nil {
		w.metrics.IncClaimed()
	}

	start := time.Now()
	sendErr := w.notifier.Send(ctx, notifications.Delivery{
		MessageID: m.ID,
		Channel:   m.Channel,
		Recipient: m.Recipient,
		Subject:   m.Subject,
		Body:      m.Body,
	})
	elapsed := time.Since(start)

	if w.metrics != nil {
		w.metrics.ObserveDuration(elapsed)
	}

	if sendErr != nil {
		w.handleFailure(ctx, m, workerID, sendErr, elapsed)
		return true, nil
	}

	if w.prom != nil {
		w.prom.DeliveryDuration.WithLabelValues(m.Channel, "sent").Observe(elapsed.Seconds())
		w.prom.DeliveryResults.WithLabelValues(m.Channel, "sent").Inc()
	}
	if w.metrics != nil {
		w.metrics.IncSent()
	}

	if err := w.repo.MarkSent(ctx, m.ID); err != nil {
		w.log.Error("mark sent failed", "message", m.ID, "err", err)
		return true, err
	}

	if err := w.repo.RecordAttempt(ctx, m.ID, workerID, m.Attempts+1, nil); err != nil {
		w.log.Warn("record attempt failed", "message", m.ID, "err", err)
	}

	w.log.Info("message delivered",
		"message", m.ID, "channel", m.Channel, "attempt", m.Attempts+1, "took", elapsed)

	return true, nil
}

func (w *Worker) handleFailure(ctx context.Context, m message.Message, workerID string, sendErr error, elapsed time.Duration) {
	attempt := m.Attempts + 1
	dead := attempt >= m.MaxAttempts

	result := "retry"
	if dead {
		result = "dead"
	}

	if w.prom != nil {
		w.prom.DeliveryDuration.WithLabelValues(m.Channel, result).Observe(elapsed.Seconds())
		w.prom.DeliveryResults.WithLabelValues(m.Channel, result).Inc()
	}
	if w.metrics != nil {
		if dead {
			w.metrics.IncDeadLettered()
		} else {
			w.metrics.IncRetried()
		}
	}

	errMsg := sendErr.Error()
	retryAt := time.Now().Add(ExponentialBackoff(m.Attempts))

	if err := w.repo.MarkFailed(ctx, m.ID, errMsg, retryAt); err != nil {
		w.log.Error("mark failed errored", "message", m.ID, "err", err)
	}

	if err := w.repo.RecordAttempt(ctx, m.ID, workerID, attempt, &errMsg); err != nil {
		w.log.Warn("record attempt failed", "message", m.ID, "err", err)
	}

	w.log.Warn("message delivery failed",
		"message", m.ID, "channel", m.Channel, "attempt", attempt, "dead", dead, "err", sendErr)
}
