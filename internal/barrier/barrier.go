// Package barrier implements the readiness barrier coordinating a review
// session's asynchronous feeds. A fixed set of feeds is registered up front;
// each feed reports its outcome (possibly more than once, on re-subscription),
// and once every slot has settled the downstream callback runs synchronously
// with the aggregated outcomes. The callback re-runs on every subsequent
// report, so it must be idempotent.
package barrier

import (
	"sync"

	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Metrics holds Prometheus metrics for barrier activity.
type Metrics struct {
	reportsReceived *prometheus.CounterVec
	evaluations     prometheus.Counter
	openBarriers    prometheus.Gauge
}

var (
	metricsOnce   sync.Once
	globalMetrics *Metrics
)

// getMetrics initializes barrier metrics once and returns them.
func getMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			reportsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "feed_reports_total",
				Help: "Total number of feed settlement reports by status",
			}, []string{"status"}),
			evaluations: promauto.NewCounter(prometheus.CounterOpts{
				Name: "barrier_evaluations_total",
				Help: "Total number of all-settled callback invocations",
			}),
			openBarriers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "barriers_open",
				Help: "Number of barriers still waiting on at least one feed",
			}),
		}
	})
	return globalMetrics
}

// Callback receives the aggregated outcomes each time all feeds are settled.
type Callback func(outcomes map[types.FeedKey]types.FeedOutcome)

// Barrier tracks settlement of a fixed set of feeds.
type Barrier struct {
	log     *zap.SugaredLogger
	metrics *Metrics
	mu      sync.Mutex
	slots   map[types.FeedKey]types.FeedOutcome
	onAll   Callback
	// wasOpen tracks the open->settled edge for the gauge only; evaluation
	// itself fires on every report once all slots are settled.
	wasOpen bool
}

// New creates a barrier with no registered feeds.
func New() *Barrier {
	b := &Barrier{
		log:     logger.GetLogger().Named("readiness_barrier"),
		metrics: getMetrics(),
		slots:   make(map[types.FeedKey]types.FeedOutcome),
		wasOpen: true,
	}
	b.metrics.openBarriers.Inc()
	return b
}

// RegisterFeed adds a required feed slot in the unresolved state. Registering
// an already-known key is a no-op and keeps that slot's latest outcome.
func (b *Barrier) RegisterFeed(key types.FeedKey) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.slots[key]; exists {
		return
	}
	b.slots[key] = types.FeedOutcome{Status: types.FeedUnresolved}
}

// OnAllSettled sets the downstream decision callback. If every slot is already
// settled the callback fires immediately.
func (b *Barrier) OnAllSettled(cb Callback) {
	b.mu.Lock()
	b.onAll = cb
	settled := b.allSettledLocked()
	outcomes := b.snapshotLocked()
	b.mu.Unlock()

	if settled && cb != nil {
		b.fire(cb, outcomes)
	}
}

// Report records a feed's latest outcome, replacing any previous settlement
// for that slot, and re-evaluates the barrier. Reporting an unregistered key
// registers it implicitly.
func (b *Barrier) Report(key types.FeedKey, outcome types.FeedOutcome) {
	if !outcome.Settled() {
		b.log.Warnw("Ignoring unsettled feed report", "feed", key)
		return
	}

	b.mu.Lock()
	b.slots[key] = outcome
	b.metrics.reportsReceived.WithLabelValues(string(outcome.Status)).Inc()

	if !b.allSettledLocked() {
		b.mu.Unlock()
		return
	}
	if b.wasOpen {
		b.wasOpen = false
		b.metrics.openBarriers.Dec()
	}
	cb := b.onAll
	outcomes := b.snapshotLocked()
	b.mu.Unlock()

	if cb != nil {
		b.fire(cb, outcomes)
	}
}

// Outcome returns the latest outcome for a feed.
func (b *Barrier) Outcome(key types.FeedKey) types.FeedOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	outcome, exists := b.slots[key]
	if !exists {
		return types.FeedOutcome{Status: types.FeedUnresolved}
	}
	return outcome
}

// Failed reports whether any settled slot's latest outcome is a failure.
func (b *Barrier) Failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, outcome := range b.slots {
		if outcome.Status == types.FeedFailure {
			return true
		}
	}
	return false
}

func (b *Barrier) fire(cb Callback, outcomes map[types.FeedKey]types.FeedOutcome) {
	b.metrics.evaluations.Inc()
	b.log.Debugw("All feeds settled, running downstream decision", "feeds", len(outcomes))
	cb(outcomes)
}

func (b *Barrier) allSettledLocked() bool {
	if len(b.slots) == 0 {
		return false
	}
	for _, outcome := range b.slots {
		if !outcome.Settled() {
			return false
		}
	}
	return true
}

func (b *Barrier) snapshotLocked() map[types.FeedKey]types.FeedOutcome {
	snapshot := make(map[types.FeedKey]types.FeedOutcome, len(b.slots))
	for key, outcome := range b.slots {
		snapshot[key] = outcome
	}
	return snapshot
}
