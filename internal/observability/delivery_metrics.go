package observability

import (
	"sync/atomic"
	"time"
)

type DeliveryMetrics struct {
	claimed      atomic.Uint64
	sent         atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewDeliveryMetrics() *DeliveryMetrics {
	m := &DeliveryMetrics{}
	m.durationMax.Store(0)
	return m
}

func (m *DeliveryMetrics) IncClaimed() {
	m.claimed.Add(1)
}

func (m *DeliveryMetrics) IncSent() {
	m.sent.Add(1)
}

func (m *DeliveryMetrics) IncRetried() {
	m.retried.Add(1)
}

func (m *DeliveryMetrics) IncDeadLettered() {
	m.deadLettered.Add(1)
}

func (m *DeliveryMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	// max update

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type DeliveryMetricsSnapShot struct {
	Claimed         uint64        `json:"claimed"`
	Sent            uint64        `json:"sent"`
	Retried         uint64        `json:"retried"`
	DeadLettered    uint64        `json:"deadLettered"`
	DurationCount   uint64        `json:"durationCount"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
}

func (m *DeliveryMetrics) Snapshot() DeliveryMetricsSnapShot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()
	max := m.durationMax.Load()

	var avg time.Duration

	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return DeliveryMetricsSnapShot{
		Claimed:         m.claimed.Load(),
		Sent:            m.sent.Load(),
		Retried:         m.retried.Load(),
		DeadLettered:    m.deadLettered.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(max),
	}
}
